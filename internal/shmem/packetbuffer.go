package shmem

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// PacketBufferSize is the total size of the segment shared with the shim.
	PacketBufferSize = 64 << 20
	// PacketBufferEnv names the variable the shim reads the segment id from.
	PacketBufferEnv = "LIBDESOCK_PACKET_BUFFER"

	cursorOffset = 0
	sizeOffset   = 8
	dataOffset   = 16
)

var ErrBufferTooSmall = errors.New("packet buffer region too small")

// PacketBuffer is the wire structure consumed by the desocketing shim:
// a machine word read cursor, a machine word payload size and the payload.
// The region is shared with a foreign process so every field goes through
// explicit offsets instead of a struct overlay.
type PacketBuffer struct {
	mem []byte
}

// NewPacketBuffer lays the buffer over mem, which usually is a Segment.
func NewPacketBuffer(mem []byte) (*PacketBuffer, error) {
	if len(mem) <= dataOffset {
		return nil, fmt.Errorf("%w: %d bytes", ErrBufferTooSmall, len(mem))
	}
	return &PacketBuffer{mem}, nil
}

// Capacity is the number of payload bytes the buffer can hold.
func (b *PacketBuffer) Capacity() int {
	return len(b.mem) - dataOffset
}

func (b *PacketBuffer) Cursor() uint64 {
	return binary.NativeEndian.Uint64(b.mem[cursorOffset:sizeOffset])
}

func (b *PacketBuffer) Size() uint64 {
	return binary.NativeEndian.Uint64(b.mem[sizeOffset:dataOffset])
}

// Reset rewinds the shim's read cursor and empties the payload.
func (b *PacketBuffer) Reset() {
	binary.NativeEndian.PutUint64(b.mem[cursorOffset:sizeOffset], 0)
	binary.NativeEndian.PutUint64(b.mem[sizeOffset:dataOffset], 0)
}

func (b *PacketBuffer) SetSize(n int) error {
	if n < 0 || n > b.Capacity() {
		return fmt.Errorf("payload size %d out of range [0, %d]", n, b.Capacity())
	}
	binary.NativeEndian.PutUint64(b.mem[sizeOffset:dataOffset], uint64(n))
	return nil
}

// Data is the whole payload region.
func (b *PacketBuffer) Data() []byte {
	return b.mem[dataOffset:]
}

// Payload returns the valid payload bytes. A size field larger than the
// region, which only a misbehaving peer can produce, is clamped.
func (b *PacketBuffer) Payload() []byte {
	n := b.Size()
	if n > uint64(b.Capacity()) {
		n = uint64(b.Capacity())
	}
	return b.mem[dataOffset : dataOffset+int(n)]
}

// Fill resets the buffer, lets write serialize into the payload region and
// records the byte count it reports.
func (b *PacketBuffer) Fill(write func(data []byte) int) error {
	b.Reset()
	return b.SetSize(write(b.Data()))
}
