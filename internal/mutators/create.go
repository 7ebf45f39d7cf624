package mutators

import (
	"slices"

	"desockfuzz/internal/input"
	"desockfuzz/internal/utils"
)

// RandomInsertionMutator inserts one freshly created random packet.
type RandomInsertionMutator[P input.Packet[P]] struct {
	maxPackets int
}

func NewRandomInsertionMutator[P input.Packet[P]](maxPackets int) *RandomInsertionMutator[P] {
	return &RandomInsertionMutator[P]{maxPackets}
}

func (m *RandomInsertionMutator[P]) Name() string { return "RandomPacketInsertionMutator" }

func (m *RandomInsertionMutator[P]) Mutate(st *State[P], in *input.Input[P]) (Result, error) {
	if in.Len() >= m.maxPackets {
		return Skipped, nil
	}
	idx := utils.Between(st.Rand, 0, in.Len())
	in.Packets = slices.Insert(in.Packets, idx, st.Factory.RandomPacket(st.Rand))
	return Mutated, nil
}

// GenerationMutator splices in a template exchange from the factory's
// catalogue. Templates longer than the remaining room are cut short.
type GenerationMutator[P input.Packet[P]] struct {
	maxPackets int
}

func NewGenerationMutator[P input.Packet[P]](maxPackets int) *GenerationMutator[P] {
	return &GenerationMutator[P]{maxPackets}
}

func (m *GenerationMutator[P]) Name() string { return "PacketGenerationMutator" }

func (m *GenerationMutator[P]) Mutate(st *State[P], in *input.Input[P]) (Result, error) {
	n := in.Len()
	if n >= m.maxPackets {
		return Skipped, nil
	}
	generated := st.Factory.GeneratePackets(st.Rand)
	if len(generated) == 0 {
		return Skipped, nil
	}
	if room := m.maxPackets - n; len(generated) > room {
		generated = generated[:room]
	}
	idx := utils.Between(st.Rand, 0, n)
	in.Packets = slices.Insert(in.Packets, idx, generated...)
	return Mutated, nil
}
