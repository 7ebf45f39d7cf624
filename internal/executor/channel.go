package executor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	// forkserver descriptors as seen by the target
	ctlFD = 198
	stFD  = 199
)

// channel is the fuzzer's end of the control and status pipes. Every message
// is a 4 byte word in host byte order.
type channel struct {
	ctl *os.File
	st  *os.File
}

func (c *channel) writeWord(v uint32) error {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], v)
	if _, err := c.ctl.Write(buf[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrShortIO, err)
	}
	return nil
}

func (c *channel) readWord() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.st, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrShortIO, err)
	}
	return binary.NativeEndian.Uint32(buf[:]), nil
}

// readWordTimed waits at most d for a status word. ok is false when nothing
// arrived in time. A word that started arriving is always read to the end.
func (c *channel) readWordTimed(d time.Duration) (v uint32, ok bool, err error) {
	if err := c.st.SetReadDeadline(time.Now().Add(d)); err != nil {
		return 0, false, fmt.Errorf("failed to arm status deadline: %w", err)
	}
	defer c.st.SetReadDeadline(time.Time{})

	var buf [4]byte
	n, err := io.ReadFull(c.st, buf[:])
	switch {
	case err == nil:
	case errors.Is(err, os.ErrDeadlineExceeded) && n == 0:
		return 0, false, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		c.st.SetReadDeadline(time.Time{})
		if _, err := io.ReadFull(c.st, buf[n:]); err != nil {
			return 0, false, fmt.Errorf("%w: %w", ErrShortIO, err)
		}
	default:
		return 0, false, fmt.Errorf("%w: %w", ErrShortIO, err)
	}
	return binary.NativeEndian.Uint32(buf[:]), true, nil
}

// discard drops n bytes of status payload.
func (c *channel) discard(n int64) error {
	if _, err := io.CopyN(io.Discard, c.st, n); err != nil {
		return fmt.Errorf("%w: %w", ErrShortIO, err)
	}
	return nil
}

func (c *channel) Close() error {
	return errors.Join(c.ctl.Close(), c.st.Close())
}
