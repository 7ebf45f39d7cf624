package mutators

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"desockfuzz/internal/input"
	"desockfuzz/internal/utils"
)

// CrossoverMutator splices a run of packets taken from another corpus entry.
// It owns its generator so its choices are reproducible from the seed.
type CrossoverMutator[P input.Packet[P]] struct {
	maxPackets int
	rand       *rand.Rand
}

func NewCrossoverMutator[P input.Packet[P]](maxPackets int, seed uint64) *CrossoverMutator[P] {
	return &CrossoverMutator[P]{maxPackets, utils.NewRand(seed)}
}

func (m *CrossoverMutator[P]) Name() string { return "PacketCrossoverMutator" }

func (m *CrossoverMutator[P]) Mutate(st *State[P], in *input.Input[P]) (Result, error) {
	n := in.Len()
	if n >= m.maxPackets || st.Corpus == nil || st.Corpus.Count() == 0 {
		return Skipped, nil
	}
	id := m.rand.IntN(st.Corpus.Count())
	if cur, ok := st.Corpus.Current(); ok && cur == id {
		return Skipped, nil
	}
	other, err := st.Corpus.Get(id)
	if err != nil {
		return Skipped, fmt.Errorf("failed to load crossover donor %d: %w", id, err)
	}
	if other.Len() == 0 {
		return Skipped, nil
	}
	start := m.rand.IntN(other.Len())
	run := 1 + m.rand.IntN(min(other.Len()-start, m.maxPackets-n))
	donated := make([]P, run)
	for i := range donated {
		donated[i] = other.Packets[start+i].Clone()
	}
	dst := utils.Between(m.rand, 0, n)
	in.Packets = slices.Insert(in.Packets, dst, donated...)
	return Mutated, nil
}
