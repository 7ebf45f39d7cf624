package input

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
)

// Decode reads a stored test case. JSON documents are decoded directly, a
// zero-length document is the empty input, anything else is read as a
// transcript. JSON documents holding null packets are rejected.
func Decode[P Packet[P]](f PacketFactory[P], data []byte) (*Input[P], error) {
	if len(data) == 0 {
		return &Input[P]{}, nil
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		var in Input[P]
		if err := json.Unmarshal(trimmed, &in); err != nil {
			return nil, fmt.Errorf("failed to decode input: %w", err)
		}
		for i, p := range in.Packets {
			if isNil(p) {
				return nil, fmt.Errorf("failed to decode input: packet %d is null", i)
			}
		}
		return &in, nil
	}
	return ParseTextOrOpaque(f, data)
}

func isNil[P any](p P) bool {
	v := reflect.ValueOf(any(p))
	switch v.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func Load[P Packet[P]](f PacketFactory[P], path string) (*Input[P], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	in, err := Decode(f, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

func (in *Input[P]) Encode() ([]byte, error) {
	return json.Marshal(in)
}

// Store writes the input to path through a hidden temporary file in the same
// directory so that watchers never observe a partial document.
func (in *Input[P]) Store(path string) error {
	data, err := in.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode input: %w", err)
	}
	return WriteAtomic(path, data)
}

func WriteAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
