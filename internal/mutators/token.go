package mutators

import (
	"fmt"
	"math/rand/v2"

	"desockfuzz/internal/tokens"
	"desockfuzz/internal/tokens/mutate"
	"desockfuzz/internal/utils"
)

var stackDepths = []int{2, 4, 8, 32}

const tokenOperators = 19

// TokenStreamMutator stacks randomly chosen token operators on one packet.
// The stack depth comes from the state's generator, operator choice from the
// mutator's own.
type TokenStreamMutator struct {
	maxTokens int
	rand      *rand.Rand
}

func NewTokenStreamMutator(maxTokens int, seed uint64) *TokenStreamMutator {
	return &TokenStreamMutator{maxTokens, utils.NewRand(seed)}
}

func (m *TokenStreamMutator) MutatePacket(st *State[*tokens.Stream], packet *tokens.Stream) (Result, error) {
	depth := utils.Choose(st.Rand, stackDepths)
	mutated := false
	for range depth {
		var applied bool
		switch op := m.rand.IntN(tokenOperators); op {
		case 0:
			applied = mutate.Copy(m.rand, packet, m.maxTokens)
		case 1, 2:
			donor, err := m.donor(st)
			if err != nil {
				return Skipped, err
			}
			if donor == nil {
				continue
			}
			if op == 1 {
				applied = mutate.CrossoverInsert(m.rand, packet, donor, m.maxTokens)
			} else {
				applied = mutate.CrossoverReplace(m.rand, packet, donor, m.maxTokens)
			}
		case 3:
			applied = mutate.Delete(m.rand, packet)
		case 4:
			applied = mutate.Flip(m.rand, packet)
		case 5:
			applied = mutate.Interesting(m.rand, packet)
		case 6:
			applied = mutate.RandomInsert(m.rand, packet, m.maxTokens)
		case 7:
			applied = mutate.RandomReplace(m.rand, packet)
		case 8:
			applied = mutate.RepeatChar(m.rand, packet)
		case 9:
			applied = mutate.RepeatToken(m.rand, packet, m.maxTokens)
		case 10:
			applied = mutate.SpecialInsert(m.rand, packet)
		case 11:
			applied = mutate.SpecialReplace(m.rand, packet)
		case 12:
			applied = mutate.Split(m.rand, packet, m.maxTokens)
		case 13:
			applied = mutate.SwapTokens(m.rand, packet)
		case 14:
			applied = mutate.SwapWords(m.rand, packet)
		case 15:
			applied = mutate.Truncate(m.rand, packet)
		case 16:
			applied = mutate.DictInsert(m.rand, packet, st.Dictionary, m.maxTokens)
		case 17:
			applied = mutate.DictReplace(m.rand, packet, st.Dictionary)
		case 18:
			applied = mutate.SwapConstants(m.rand, packet, st.Dictionary)
		}
		mutated = mutated || applied
	}
	return resultOf(mutated), nil
}

// donor picks a random packet of a random other corpus entry. A nil stream
// means this step has nothing to cross over with.
func (m *TokenStreamMutator) donor(st *State[*tokens.Stream]) (*tokens.Stream, error) {
	if st.Corpus == nil || st.Corpus.Count() == 0 {
		return nil, nil
	}
	id := m.rand.IntN(st.Corpus.Count())
	if cur, ok := st.Corpus.Current(); ok && cur == id {
		return nil, nil
	}
	other, err := st.Corpus.Get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load crossover donor %d: %w", id, err)
	}
	if other.Len() == 0 {
		return nil, nil
	}
	return other.Packets[m.rand.IntN(other.Len())], nil
}
