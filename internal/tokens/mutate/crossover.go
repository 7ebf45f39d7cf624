package mutate

import (
	"math/rand/v2"
	"slices"

	"desockfuzz/internal/tokens"
	"desockfuzz/internal/utils"
)

// CrossoverReplace overwrites a random range of s with a random range of other.
func CrossoverReplace(r *rand.Rand, s, other *tokens.Stream, maxLen int) bool {
	if s.IsEmpty() || other.IsEmpty() || s.Len() >= maxLen {
		return false
	}
	dstStart, dstEnd := randomRange(r, s.Len(), s.Len())
	srcStart, srcEnd := randomRange(r, other.Len(), maxLen-s.Len()+dstEnd-dstStart)
	s.Tokens = slices.Replace(s.Tokens, dstStart, dstEnd, cloneTokens(other.Tokens[srcStart:srcEnd])...)
	return true
}

// CrossoverInsert splices a random range of other into s.
func CrossoverInsert(r *rand.Rand, s, other *tokens.Stream, maxLen int) bool {
	if s.IsEmpty() || other.IsEmpty() || s.Len() >= maxLen {
		return false
	}
	dst := utils.Between(r, 0, s.Len())
	srcStart, srcEnd := randomRange(r, other.Len(), maxLen-s.Len())
	s.Tokens = slices.Insert(s.Tokens, dst, cloneTokens(other.Tokens[srcStart:srcEnd])...)
	return true
}
