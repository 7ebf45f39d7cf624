package mutate

import (
	"bytes"
	"math/rand/v2"
	"slices"

	"desockfuzz/internal/tokens"
	"desockfuzz/internal/utils"
)

func dictToken(r *rand.Rand, dict tokens.Dictionary) tokens.Token {
	return tokens.Token{Kind: tokens.Constant, Data: bytes.Clone(utils.Choose(r, dict))}
}

func DictInsert(r *rand.Rand, s *tokens.Stream, dict tokens.Dictionary, maxLen int) bool {
	if dict.Len() == 0 || s.Len() >= maxLen {
		return false
	}
	idx := utils.Between(r, 0, s.Len())
	s.Tokens = slices.Insert(s.Tokens, idx, dictToken(r, dict))
	return true
}

func DictReplace(r *rand.Rand, s *tokens.Stream, dict tokens.Dictionary) bool {
	if dict.Len() == 0 || s.IsEmpty() {
		return false
	}
	s.Tokens[r.IntN(s.Len())] = dictToken(r, dict)
	return true
}

// SwapConstants replaces the bytes of an existing Constant with another
// dictionary entry.
func SwapConstants(r *rand.Rand, s *tokens.Stream, dict tokens.Dictionary) bool {
	if dict.Len() == 0 {
		return false
	}
	idx := pick(r, s, func(t tokens.Token) bool { return t.Kind == tokens.Constant })
	if idx < 0 {
		return false
	}
	s.Tokens[idx].Data = bytes.Clone(utils.Choose(r, dict))
	return true
}
