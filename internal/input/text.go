package input

import (
	"bytes"
	"fmt"
)

// SplitPackets cuts raw protocol bytes after every line feed. A trailing
// unterminated chunk is kept as the last packet.
func SplitPackets(data []byte) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		end := bytes.IndexByte(data, '\n') + 1
		if end == 0 {
			end = len(data)
		}
		chunks = append(chunks, data[:end])
		data = data[end:]
	}
	return chunks
}

// ParseText builds an input from a raw protocol transcript, one packet per line.
func ParseText[P Packet[P]](f PacketFactory[P], data []byte) (*Input[P], error) {
	in := &Input[P]{}
	for i, chunk := range SplitPackets(data) {
		p, err := f.DeserializeContent(chunk)
		if err != nil {
			return nil, fmt.Errorf("packet %d: %w", i, err)
		}
		in.Packets = append(in.Packets, p)
	}
	return in, nil
}

// ParseTextOrOpaque is ParseText that wraps lines it cannot parse as opaque
// packets when the factory supports it.
func ParseTextOrOpaque[P Packet[P]](f PacketFactory[P], data []byte) (*Input[P], error) {
	opaque, ok := any(f).(OpaqueFactory[P])
	if !ok {
		return ParseText(f, data)
	}
	in := &Input[P]{}
	for _, chunk := range SplitPackets(data) {
		p, err := f.DeserializeContent(chunk)
		if err != nil {
			p = opaque.OpaqueContent(chunk)
		}
		in.Packets = append(in.Packets, p)
	}
	return in, nil
}
