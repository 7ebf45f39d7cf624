package mutators

import (
	"desockfuzz/internal/input"
)

// ContentMutator hands one random packet to a packet level mutator.
type ContentMutator[P input.Packet[P]] struct {
	inner PacketMutator[P]
}

func NewContentMutator[P input.Packet[P]](inner PacketMutator[P]) *ContentMutator[P] {
	return &ContentMutator[P]{inner}
}

func (m *ContentMutator[P]) Name() string { return "PacketContentMutator" }

func (m *ContentMutator[P]) Mutate(st *State[P], in *input.Input[P]) (Result, error) {
	if in.Len() == 0 {
		return Skipped, nil
	}
	return m.inner.MutatePacket(st, in.Packets[st.Rand.IntN(in.Len())])
}
