package mutate

import (
	"math/rand/v2"
	"slices"

	"desockfuzz/internal/tokens"
	"desockfuzz/internal/utils"
)

func RandomInsert(r *rand.Rand, s *tokens.Stream, maxLen int) bool {
	if s.Len() >= maxLen {
		return false
	}
	idx := utils.Between(r, 0, s.Len())
	s.Tokens = slices.Insert(s.Tokens, idx, randomToken(r))
	return true
}

func RandomReplace(r *rand.Rand, s *tokens.Stream) bool {
	if s.IsEmpty() {
		return false
	}
	s.Tokens[r.IntN(s.Len())] = randomToken(r)
	return true
}
