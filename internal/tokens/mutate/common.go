// Package mutate holds the token level mutation operators. Every operator is
// a pure function of its generator and arguments and reports whether it
// changed the stream; a false return means the preconditions did not hold.
package mutate

import (
	"math/rand/v2"

	"desockfuzz/internal/tokens"
	"desockfuzz/internal/utils"
)

// randomRange picks a non-empty range inside [0, upper) no longer than maxLen.
func randomRange(r *rand.Rand, upper, maxLen int) (int, int) {
	start := r.IntN(upper)
	n := 1 + r.IntN(min(upper-start, maxLen))
	return start, start + n
}

// randomToken draws the replacement for random insert/replace: a number,
// whitespace or, three times out of five, text.
func randomToken(r *rand.Rand) tokens.Token {
	switch utils.Between(r, 0, 4) {
	case 0:
		return tokens.RandomNumber(r, 16)
	case 1:
		return tokens.RandomWhitespace(r, 1, 16)
	default:
		return tokens.RandomText(r, 1, 16)
	}
}

// pick returns the index of a random token accepted by keep, or -1.
func pick(r *rand.Rand, s *tokens.Stream, keep func(tokens.Token) bool) int {
	var candidates []int
	for i, t := range s.Tokens {
		if keep(t) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	return candidates[r.IntN(len(candidates))]
}

func cloneTokens(ts []tokens.Token) []tokens.Token {
	out := make([]tokens.Token, len(ts))
	for i, t := range ts {
		out[i] = t.Clone()
	}
	return out
}
