package executor

import "fmt"

const (
	fsNewError     = 0xeffe0000
	fsOptMapSize   = 0x00000001
	fsOptAutoDict  = 0x00000800
	fsMagicBase    = 0x41464c00
	fsMagicLast    = 0x41464cff
	fsVersion      = 1
	fsAckXorMask   = 0xffffffff
	maxAutoDictLen = 1 << 20
)

// handshake is what the coordinator advertised while starting up.
type handshake struct {
	version uint32
	// mapSize is zero unless the target announced its coverage map size.
	mapSize int
}

// doHandshake runs the version negotiation of the AFL++ forkserver protocol.
// An auto-dictionary blob, if offered, is read and dropped.
func doHandshake(c *channel) (handshake, error) {
	var hs handshake

	status, err := c.readWord()
	if err != nil {
		return hs, fmt.Errorf("failed to read forkserver hello: %w", err)
	}
	if status&fsNewError == fsNewError {
		return hs, fmt.Errorf("%w: status %#x", ErrInstrumentation, status)
	}
	if status < fsMagicBase || status > fsMagicLast {
		return hs, fmt.Errorf("%w: hello %#x", ErrIncompatible, status)
	}
	hs.version = status - fsMagicBase
	if hs.version != fsVersion {
		return hs, fmt.Errorf("%w: %d", ErrUnsupportedVersion, hs.version)
	}
	if err := c.writeWord(status ^ fsAckXorMask); err != nil {
		return hs, fmt.Errorf("failed to acknowledge forkserver hello: %w", err)
	}

	opts, err := c.readWord()
	if err != nil {
		return hs, fmt.Errorf("failed to read forkserver options: %w", err)
	}
	if opts&fsOptMapSize != 0 {
		size, err := c.readWord()
		if err != nil {
			return hs, fmt.Errorf("failed to read map size: %w", err)
		}
		hs.mapSize = int(size)
	}
	if opts&fsOptAutoDict != 0 {
		size, err := c.readWord()
		if err != nil {
			return hs, fmt.Errorf("failed to read auto-dictionary size: %w", err)
		}
		if size > maxAutoDictLen {
			return hs, fmt.Errorf("%w: auto-dictionary of %d bytes", ErrDesync, size)
		}
		if err := c.discard(int64(size)); err != nil {
			return hs, fmt.Errorf("failed to skip auto-dictionary: %w", err)
		}
	}

	last, err := c.readWord()
	if err != nil {
		return hs, fmt.Errorf("failed to read end of handshake: %w", err)
	}
	if last != status {
		return hs, fmt.Errorf("%w: got %#x, want %#x", ErrDesync, last, status)
	}
	return hs, nil
}
