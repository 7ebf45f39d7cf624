package dict

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"desockfuzz/internal/tokens"
)

// ParseFile reads an AFL-style dictionary file.
func ParseFile(path string) (tokens.Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer f.Close()
	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse reads dictionary entries, one per line, written as `name="value"`
// or `"value"`. Blank lines and lines starting with '#' are skipped.
// Values may use \\, \" and \xNN escapes. Duplicates are dropped.
func Parse(r io.Reader) (tokens.Dictionary, error) {
	var d tokens.Dictionary
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		start := bytes.IndexByte(line, '"')
		if start < 0 || line[len(line)-1] != '"' || start == len(line)-1 {
			return nil, fmt.Errorf("line %d: value is not quoted", lineNo)
		}
		value, err := unescape(line[start+1 : len(line)-1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if len(value) == 0 {
			continue
		}
		if _, ok := seen[string(value)]; ok {
			continue
		}
		seen[string(value)] = struct{}{}
		d = append(d, value)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	return d, nil
}

func unescape(s []byte) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			out = append(out, s[i])
			continue
		}
		i++
		if i == len(s) {
			return nil, errors.New("dangling backslash")
		}
		switch s[i] {
		case '\\', '"':
			out = append(out, s[i])
		case 'x':
			if i+3 > len(s) {
				return nil, errors.New("truncated \\x escape")
			}
			b, err := strconv.ParseUint(string(s[i+1:i+3]), 16, 8)
			if err != nil {
				return nil, fmt.Errorf("bad \\x escape %q", s[i+1:i+3])
			}
			out = append(out, byte(b))
			i += 2
		default:
			return nil, fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return out, nil
}
