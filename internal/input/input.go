package input

import (
	"fmt"
	"io"
)

// Input is a test case: the packets a target receives, in order.
type Input[P Packet[P]] struct {
	Packets []P `json:"packets"`
}

func New[P Packet[P]](packets ...P) *Input[P] {
	return &Input[P]{Packets: packets}
}

func (in *Input[P]) Len() int {
	return len(in.Packets)
}

func (in *Input[P]) Clone() *Input[P] {
	packets := make([]P, len(in.Packets))
	for i, p := range in.Packets {
		packets[i] = p.Clone()
	}
	return &Input[P]{packets}
}

// SerializeInto writes every packet back to back into buf and returns the
// number of bytes written. Content beyond len(buf) is dropped.
func (in *Input[P]) SerializeInto(buf []byte) int {
	cursor := 0
	for _, p := range in.Packets {
		if cursor == len(buf) {
			break
		}
		cursor += p.SerializeContent(buf[cursor:])
	}
	return cursor
}

// Dump writes a human readable listing of the packets.
func (in *Input[P]) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Input with %d packets\n", len(in.Packets)); err != nil {
		return err
	}
	for i, p := range in.Packets {
		if _, err := fmt.Fprintf(w, "  [%d] %v\n", i, p); err != nil {
			return err
		}
	}
	return nil
}
