package mutators

import (
	"slices"

	"desockfuzz/internal/input"
	"desockfuzz/internal/utils"
)

// CopyMutator duplicates a random packet to a random position.
type CopyMutator[P input.Packet[P]] struct {
	maxPackets int
}

func NewCopyMutator[P input.Packet[P]](maxPackets int) *CopyMutator[P] {
	return &CopyMutator[P]{maxPackets}
}

func (m *CopyMutator[P]) Name() string { return "PacketCopyMutator" }

func (m *CopyMutator[P]) Mutate(st *State[P], in *input.Input[P]) (Result, error) {
	n := in.Len()
	if n == 0 || n >= m.maxPackets {
		return Skipped, nil
	}
	src := st.Rand.IntN(n)
	dst := utils.Between(st.Rand, 0, n)
	in.Packets = slices.Insert(in.Packets, dst, in.Packets[src].Clone())
	return Mutated, nil
}

// DeleteMutator removes a random packet.
type DeleteMutator[P input.Packet[P]] struct{}

func NewDeleteMutator[P input.Packet[P]]() *DeleteMutator[P] {
	return &DeleteMutator[P]{}
}

func (m *DeleteMutator[P]) Name() string { return "PacketDeleteMutator" }

func (m *DeleteMutator[P]) Mutate(st *State[P], in *input.Input[P]) (Result, error) {
	if in.Len() == 0 {
		return Skipped, nil
	}
	idx := st.Rand.IntN(in.Len())
	in.Packets = slices.Delete(in.Packets, idx, idx+1)
	return Mutated, nil
}

// RepeatMutator duplicates a contiguous run of packets right after itself.
type RepeatMutator[P input.Packet[P]] struct {
	maxPackets int
}

func NewRepeatMutator[P input.Packet[P]](maxPackets int) *RepeatMutator[P] {
	return &RepeatMutator[P]{maxPackets}
}

func (m *RepeatMutator[P]) Name() string { return "PacketRepeatMutator" }

func (m *RepeatMutator[P]) Mutate(st *State[P], in *input.Input[P]) (Result, error) {
	n := in.Len()
	if n == 0 || n >= m.maxPackets {
		return Skipped, nil
	}
	start := st.Rand.IntN(n)
	run := 1 + st.Rand.IntN(min(n-start, m.maxPackets-n))
	copies := make([]P, run)
	for i := range copies {
		copies[i] = in.Packets[start+i].Clone()
	}
	in.Packets = slices.Insert(in.Packets, start+run, copies...)
	return Mutated, nil
}

// SwapMutator exchanges two distinct packets.
type SwapMutator[P input.Packet[P]] struct{}

func NewSwapMutator[P input.Packet[P]]() *SwapMutator[P] {
	return &SwapMutator[P]{}
}

func (m *SwapMutator[P]) Name() string { return "PacketSwapMutator" }

func (m *SwapMutator[P]) Mutate(st *State[P], in *input.Input[P]) (Result, error) {
	n := in.Len()
	if n < 2 {
		return Skipped, nil
	}
	i := st.Rand.IntN(n)
	j := st.Rand.IntN(n - 1)
	if j >= i {
		j++
	}
	in.Packets[i], in.Packets[j] = in.Packets[j], in.Packets[i]
	return Mutated, nil
}
