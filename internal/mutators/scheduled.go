package mutators

import (
	"desockfuzz/internal/input"
)

// ScheduledMutator applies 2^(1+k) randomly chosen mutators per round, with k
// drawn below maxStackPow.
type ScheduledMutator[P input.Packet[P]] struct {
	mutators    []Mutator[P]
	maxStackPow int
}

func NewScheduledMutator[P input.Packet[P]](maxStackPow int, mutators ...Mutator[P]) *ScheduledMutator[P] {
	return &ScheduledMutator[P]{mutators, max(maxStackPow, 1)}
}

func (m *ScheduledMutator[P]) Name() string { return "ScheduledMutator" }

func (m *ScheduledMutator[P]) Mutators() []Mutator[P] {
	return m.mutators
}

func (m *ScheduledMutator[P]) Mutate(st *State[P], in *input.Input[P]) (Result, error) {
	if len(m.mutators) == 0 {
		return Skipped, nil
	}
	iterations := 1 << (1 + st.Rand.IntN(m.maxStackPow))
	result := Skipped
	for range iterations {
		r, err := m.mutators[st.Rand.IntN(len(m.mutators))].Mutate(st, in)
		if err != nil {
			return result, err
		}
		if r == Mutated {
			result = Mutated
		}
	}
	return result, nil
}
