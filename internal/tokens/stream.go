package tokens

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var ErrNotUTF8 = errors.New("packet content is not valid UTF-8")

// ParseError reports the first byte no token class accepts.
type ParseError struct {
	Offset int
	Byte   byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot tokenize byte 0x%02x at offset %d", e.Byte, e.Offset)
}

// Stream is the content of one packet: tokens in wire order.
type Stream struct {
	Tokens []Token `json:"tokens"`
}

func NewStream(tokens ...Token) *Stream {
	return &Stream{Tokens: tokens}
}

// Parse lexes data left to right, trying whitespace, then number, then text.
func Parse(data []byte) (*Stream, error) {
	stream := &Stream{}
	cursor := 0
	for cursor < len(data) {
		rest := data[cursor:]
		var kind Kind
		n := scanWhitespace(rest)
		if n > 0 {
			kind = Whitespace
		} else if n = scanNumber(rest); n > 0 {
			kind = Number
		} else if n = scanText(rest); n > 0 {
			kind = Text
		} else {
			return nil, &ParseError{cursor, data[cursor]}
		}
		stream.Tokens = append(stream.Tokens, Token{kind, append([]byte(nil), rest[:n]...)})
		cursor += n
	}
	return stream, nil
}

func ParseString(s string) (*Stream, error) {
	return Parse([]byte(s))
}

// MustParse is Parse for literals known to be lexable.
func MustParse(s string) *Stream {
	stream, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return stream
}

func scanWhitespace(data []byte) int {
	n := 0
	for n < len(data) && IsWhitespace(data[n]) {
		n++
	}
	return n
}

func scanNumber(data []byte) int {
	sign := 0
	if len(data) > 0 && IsSign(data[0]) {
		sign = 1
	}
	n := 0
	for sign+n < len(data) && IsDigit(data[sign+n]) {
		n++
	}
	if n == 0 {
		return 0
	}
	return sign + n
}

func scanText(data []byte) int {
	n := 0
	for _, b := range data {
		if b >= 0x80 {
			break
		}
		if n > 0 && (IsWhitespace(b) || IsDigit(b) || IsSign(b)) {
			break
		}
		n++
	}
	return n
}

func (s *Stream) Len() int {
	return len(s.Tokens)
}

func (s *Stream) IsEmpty() bool {
	return len(s.Tokens) == 0
}

// Size is the number of bytes the stream serializes to.
func (s *Stream) Size() int {
	size := 0
	for _, t := range s.Tokens {
		size += len(t.Data)
	}
	return size
}

// SerializeContent copies the token bytes into buf back to back and returns the
// number of bytes written, stopping early when buf is full.
func (s *Stream) SerializeContent(buf []byte) int {
	cursor := 0
	for _, t := range s.Tokens {
		if cursor == len(buf) {
			break
		}
		cursor += copy(buf[cursor:], t.Data)
	}
	return cursor
}

func (s *Stream) Bytes() []byte {
	buf := make([]byte, s.Size())
	s.SerializeContent(buf)
	return buf
}

func (s *Stream) Clone() *Stream {
	tokens := make([]Token, len(s.Tokens))
	for i, t := range s.Tokens {
		tokens[i] = t.Clone()
	}
	return &Stream{tokens}
}

func (s *Stream) String() string {
	parts := make([]string, len(s.Tokens))
	for i, t := range s.Tokens {
		parts[i] = t.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// deserialize rebuilds a stream from wire bytes, which must be valid UTF-8.
func deserialize(data []byte) (*Stream, error) {
	if !utf8.Valid(data) {
		return nil, ErrNotUTF8
	}
	return Parse(data)
}
