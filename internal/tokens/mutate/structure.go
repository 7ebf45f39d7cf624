package mutate

import (
	"math/rand/v2"
	"slices"

	"desockfuzz/internal/tokens"
	"desockfuzz/internal/utils"
)

const maxTokenRepeat = 4

// Copy duplicates a random token to a random position.
func Copy(r *rand.Rand, s *tokens.Stream, maxLen int) bool {
	if s.IsEmpty() || s.Len() >= maxLen {
		return false
	}
	src := r.IntN(s.Len())
	dst := utils.Between(r, 0, s.Len())
	s.Tokens = slices.Insert(s.Tokens, dst, s.Tokens[src].Clone())
	return true
}

func Delete(r *rand.Rand, s *tokens.Stream) bool {
	if s.IsEmpty() {
		return false
	}
	idx := r.IntN(s.Len())
	s.Tokens = slices.Delete(s.Tokens, idx, idx+1)
	return true
}

// RepeatToken inserts up to four copies of a random token right after it.
func RepeatToken(r *rand.Rand, s *tokens.Stream, maxLen int) bool {
	if s.IsEmpty() || s.Len() >= maxLen {
		return false
	}
	idx := r.IntN(s.Len())
	n := 1 + r.IntN(min(maxTokenRepeat, maxLen-s.Len()))
	copies := make([]tokens.Token, n)
	for i := range copies {
		copies[i] = s.Tokens[idx].Clone()
	}
	s.Tokens = slices.Insert(s.Tokens, idx+1, copies...)
	return true
}

// Split cuts a random non-constant token in two tokens of the same kind.
func Split(r *rand.Rand, s *tokens.Stream, maxLen int) bool {
	if s.Len() >= maxLen {
		return false
	}
	idx := pick(r, s, func(t tokens.Token) bool {
		return t.Kind != tokens.Constant && t.Len() >= 2
	})
	if idx < 0 {
		return false
	}
	tok := s.Tokens[idx]
	at := utils.Between(r, 1, tok.Len()-1)
	if tok.Kind == tokens.Number && at == 1 && tokens.IsSign(tok.Data[0]) {
		return false
	}
	left := tokens.Token{Kind: tok.Kind, Data: tok.Data[:at:at]}
	right := tokens.Token{Kind: tok.Kind, Data: slices.Clone(tok.Data[at:])}
	s.Tokens[idx] = left
	s.Tokens = slices.Insert(s.Tokens, idx+1, right)
	return true
}

// SwapTokens exchanges two adjacent tokens.
func SwapTokens(r *rand.Rand, s *tokens.Stream) bool {
	if s.Len() < 2 {
		return false
	}
	i := r.IntN(s.Len() - 1)
	s.Tokens[i], s.Tokens[i+1] = s.Tokens[i+1], s.Tokens[i]
	return true
}

// SwapWords exchanges two distinct non-whitespace tokens anywhere in the stream.
func SwapWords(r *rand.Rand, s *tokens.Stream) bool {
	var words []int
	for i, t := range s.Tokens {
		if t.Kind != tokens.Whitespace {
			words = append(words, i)
		}
	}
	if len(words) < 2 {
		return false
	}
	a := r.IntN(len(words))
	b := r.IntN(len(words) - 1)
	if b >= a {
		b++
	}
	i, j := words[a], words[b]
	s.Tokens[i], s.Tokens[j] = s.Tokens[j], s.Tokens[i]
	return true
}

// Truncate shortens a random non-constant token of at least two bytes.
func Truncate(r *rand.Rand, s *tokens.Stream) bool {
	if s.IsEmpty() {
		return false
	}
	tok := &s.Tokens[r.IntN(s.Len())]
	if tok.Kind == tokens.Constant || tok.Len() < 2 {
		return false
	}
	n := 1 + utils.Between(r, 0, tok.Len()-2)
	if n == 1 && tok.Kind == tokens.Number && tokens.IsSign(tok.Data[0]) {
		return false
	}
	tok.Data = tok.Data[:n]
	return true
}
