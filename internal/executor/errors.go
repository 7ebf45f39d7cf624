package executor

import "errors"

var (
	ErrInstrumentation    = errors.New("forkserver instrumentation in target complained")
	ErrIncompatible       = errors.New("incompatible forkserver version")
	ErrUnsupportedVersion = errors.New("forkserver version not supported")
	ErrDesync             = errors.New("forkserver end of handshake not caught correctly")
	ErrInvalidPID         = errors.New("invalid PID from coordinator")
	ErrShortIO            = errors.New("short read or write on forkserver pipe")
	ErrHandshakeTimeout   = errors.New("forkserver handshake timed out")
	ErrNotReady           = errors.New("executor is not ready")
)
