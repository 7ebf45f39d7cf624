package tokens

import (
	"bytes"
	"fmt"
	"strconv"
)

// Kind classifies a run of protocol text.
type Kind uint8

const (
	Constant Kind = iota
	Number
	Whitespace
	Text
)

var kindNames = [...]string{"constant", "number", "whitespace", "text"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("unknown token kind %d", uint8(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if string(b) == name {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown token kind %q", b)
}

// Token is one classified run of bytes. Constant tokens only ever come from a
// dictionary and carry no legality constraint.
type Token struct {
	Kind Kind   `json:"kind"`
	Data []byte `json:"data"`
}

func (t Token) Len() int {
	return len(t.Data)
}

func (t Token) Clone() Token {
	return Token{t.Kind, bytes.Clone(t.Data)}
}

// Valid reports whether the token bytes satisfy the predicate of its kind.
func (t Token) Valid() bool {
	switch t.Kind {
	case Constant:
		return true
	case Number:
		digits := t.Data
		if len(digits) > 0 && IsSign(digits[0]) {
			digits = digits[1:]
		}
		if len(digits) == 0 {
			return false
		}
		for _, b := range digits {
			if !IsDigit(b) {
				return false
			}
		}
		return true
	case Whitespace:
		if len(t.Data) == 0 {
			return false
		}
		for _, b := range t.Data {
			if !IsWhitespace(b) {
				return false
			}
		}
		return true
	case Text:
		if len(t.Data) == 0 {
			return false
		}
		for i, b := range t.Data {
			// the lexer lets a sign open a text run, never continue one
			if b >= 0x80 || IsDigit(b) || IsWhitespace(b) || (i > 0 && IsSign(b)) {
				return false
			}
		}
		return true
	}
	return false
}

func (t Token) String() string {
	name := t.Kind.String()
	return fmt.Sprintf("%c%s(%s)", name[0]-'a'+'A', name[1:], strconv.Quote(string(t.Data)))
}

func IsWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', 0x0b, 0x0c, '\r':
		return true
	}
	return false
}

func IsDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func IsSign(b byte) bool {
	return b == '+' || b == '-'
}
