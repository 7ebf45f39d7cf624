// Package shmem manages the System V shared memory segments a worker shares
// with its target: the packet buffer read by the desocketing shim and the
// coverage map written by the instrumentation.
package shmem

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"
)

// Segment is a private System V shared memory segment attached to this
// process. The target finds it through the decimal id in its environment.
type Segment struct {
	id   int
	data []byte
}

// NewSegment creates and attaches a fresh segment of the given size.
func NewSegment(size int) (*Segment, error) {
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, size, unix.IPC_CREAT|unix.IPC_EXCL|0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared memory segment of %d bytes: %w", size, err)
	}
	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return nil, fmt.Errorf("failed to attach shared memory segment %d: %w", id, err)
	}
	return &Segment{id, data}, nil
}

func (s *Segment) ID() int {
	return s.id
}

// Env renders the segment id the way the target side expects it.
func (s *Segment) Env(name string) string {
	return name + "=" + strconv.Itoa(s.id)
}

func (s *Segment) Bytes() []byte {
	return s.data
}

// Close detaches the segment and marks it for removal. The kernel frees it
// once the target detaches too.
func (s *Segment) Close() error {
	if s.data == nil {
		return nil
	}
	if err := unix.SysvShmDetach(s.data); err != nil {
		return fmt.Errorf("failed to detach shared memory segment %d: %w", s.id, err)
	}
	s.data = nil
	if _, err := unix.SysvShmCtl(s.id, unix.IPC_RMID, nil); err != nil {
		return fmt.Errorf("failed to remove shared memory segment %d: %w", s.id, err)
	}
	return nil
}
