package tokens

import (
	"math/rand/v2"

	"desockfuzz/internal/utils"
)

var whitespaceBytes = [...]byte{' ', '\t', '\n', 0x0b, 0x0c, '\r'}

// textAllowed marks the bytes random text may contain without remapping.
var textAllowed = func() (m [256]bool) {
	for b := 0; b < 0x80; b++ {
		m[b] = !IsWhitespace(byte(b)) && !IsDigit(byte(b)) && !IsSign(byte(b))
	}
	return m
}()

// RandomText draws lo..hi bytes below 0x80; bytes outside the allow set are
// remapped into the range 58..126.
func RandomText(r *rand.Rand, lo, hi int) Token {
	data := make([]byte, utils.Between(r, lo, hi))
	for i := range data {
		b := byte(r.Uint32()) & 0x7f
		if !textAllowed[b] {
			b = byte(utils.Between(r, 58, 126))
		}
		data[i] = b
	}
	return Token{Text, data}
}

func RandomWhitespace(r *rand.Rand, lo, hi int) Token {
	data := make([]byte, utils.Between(r, lo, hi))
	for i := range data {
		data[i] = utils.Choose(r, whitespaceBytes[:])
	}
	return Token{Whitespace, data}
}

// RandomNumber draws 2..max digits; a quarter of the time the first digit is
// replaced by '-' and another quarter by '+'.
func RandomNumber(r *rand.Rand, max int) Token {
	data := make([]byte, utils.Between(r, 2, max))
	for i := range data {
		data[i] = byte('0' + r.IntN(10))
	}
	switch r.IntN(4) {
	case 0:
		data[0] = '-'
	case 1:
		data[0] = '+'
	}
	return Token{Number, data}
}

// RandomStream builds a packet of 1..16 random text, whitespace or number tokens.
func RandomStream(r *rand.Rand) *Stream {
	n := 1 + utils.Between(r, 0, 15)
	tokens := make([]Token, n)
	for i := range tokens {
		switch r.IntN(3) {
		case 0:
			tokens[i] = RandomText(r, 1, 8)
		case 1:
			tokens[i] = RandomWhitespace(r, 1, 4)
		default:
			tokens[i] = RandomNumber(r, 8)
		}
	}
	return &Stream{tokens}
}
