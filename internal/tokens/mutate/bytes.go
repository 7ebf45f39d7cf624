package mutate

import (
	"bytes"
	"math/rand/v2"
	"slices"

	"desockfuzz/internal/tokens"
	"desockfuzz/internal/utils"
)

const maxCharRepeat = 16

// interestingNumbers are boundary values of the common integer widths.
var interestingNumbers = []string{
	"0", "1", "-1", "+1", "-0", "00", "007",
	"127", "128", "-128", "-129", "255", "256",
	"32767", "32768", "-32768", "-32769", "65535", "65536",
	"2147483647", "2147483648", "-2147483648", "-2147483649", "4294967295", "4294967296",
	"9223372036854775807", "-9223372036854775808", "18446744073709551615", "18446744073709551616",
	"100000000000000000000000000000000",
}

// specialSequences are delimiter and format sequences common in text protocols.
// None contains a digit, sign or whitespace byte so they stay legal inside Text.
var specialSequences = []string{
	"%s", "%n", "%x", "%p", "../", "..\\", "'", "\"", "`",
	"<", ">", "<>", "[", "]", "{", "}", "(", ")",
	";", ":", "::", ",", ".", "|", "&", "@", "=", "\\", "/",
	"*", "?", "!", "$", "#", "~", "^", "_",
	"\x00", "\x7f", "\x1b",
}

// Flip flips one bit of a random token. The result is no longer trusted to
// match its class, so the token becomes a Constant.
func Flip(r *rand.Rand, s *tokens.Stream) bool {
	idx := pick(r, s, func(t tokens.Token) bool { return t.Len() > 0 })
	if idx < 0 {
		return false
	}
	tok := &s.Tokens[idx]
	tok.Data[r.IntN(tok.Len())] ^= 1 << r.IntN(8)
	tok.Kind = tokens.Constant
	return true
}

// Interesting replaces a random Number with a boundary value.
func Interesting(r *rand.Rand, s *tokens.Stream) bool {
	idx := pick(r, s, func(t tokens.Token) bool { return t.Kind == tokens.Number })
	if idx < 0 {
		return false
	}
	s.Tokens[idx].Data = []byte(utils.Choose(r, interestingNumbers))
	return true
}

// RepeatChar repeats one byte of a random token up to 16 times in place.
func RepeatChar(r *rand.Rand, s *tokens.Stream) bool {
	idx := pick(r, s, func(t tokens.Token) bool { return t.Len() > 0 })
	if idx < 0 {
		return false
	}
	tok := &s.Tokens[idx]
	at := r.IntN(tok.Len())
	c := tok.Data[at]
	if tok.Kind != tokens.Constant && tokens.IsSign(c) {
		return false
	}
	n := 1 + r.IntN(maxCharRepeat)
	tok.Data = slices.Insert(tok.Data, at, bytes.Repeat([]byte{c}, n)...)
	return true
}

// SpecialInsert inserts a special sequence inside a random Text token.
func SpecialInsert(r *rand.Rand, s *tokens.Stream) bool {
	idx := pick(r, s, func(t tokens.Token) bool { return t.Kind == tokens.Text && t.Len() > 0 })
	if idx < 0 {
		return false
	}
	tok := &s.Tokens[idx]
	lo := 0
	if tokens.IsSign(tok.Data[0]) {
		lo = 1
	}
	at := utils.Between(r, lo, tok.Len())
	tok.Data = slices.Insert(tok.Data, at, []byte(utils.Choose(r, specialSequences))...)
	return true
}

// SpecialReplace replaces the bytes of a random Text token with a special sequence.
func SpecialReplace(r *rand.Rand, s *tokens.Stream) bool {
	idx := pick(r, s, func(t tokens.Token) bool { return t.Kind == tokens.Text })
	if idx < 0 {
		return false
	}
	s.Tokens[idx].Data = []byte(utils.Choose(r, specialSequences))
	return true
}
