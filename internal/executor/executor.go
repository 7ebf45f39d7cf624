// Package executor runs test cases against a target through an AFL++ style
// forkserver, feeding the packets through shared memory to the desocketing
// shim preloaded into the target.
package executor

import (
	"errors"
	"fmt"
	"time"

	"desockfuzz/internal/shmem"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// DefaultTimeout bounds a single run.
const DefaultTimeout = 5 * time.Second

type ExitKind int

const (
	Ok ExitKind = iota
	Crash
	Timeout
)

func (k ExitKind) String() string {
	switch k {
	case Ok:
		return "ok"
	case Crash:
		return "crash"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("ExitKind(%d)", int(k))
	}
}

type State int

const (
	Uninitialized State = iota
	Handshaking
	Ready
	Running
	Fatal
)

func (s State) String() string {
	return [...]string{"uninitialized", "handshaking", "ready", "running", "fatal"}[s]
}

// Serializer writes a test case into the packet buffer payload and reports
// how many bytes it used.
type Serializer interface {
	SerializeInto(buf []byte) int
}

// Executor owns one coordinator and its packet buffer. It is not safe for
// concurrent use; every worker has its own.
type Executor struct {
	ch      *channel
	packets *shmem.PacketBuffer
	timeout time.Duration
	logger  *zap.Logger

	state      State
	child      child
	timedOut   bool
	executions uint64
	mapSize    int

	// release frees the process and segments behind a launched executor
	release func() error
}

func newExecutor(ch *channel, packets *shmem.PacketBuffer, timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{ch: ch, packets: packets, timeout: timeout, logger: logger}
}

// start performs the handshake, moving the executor to Ready.
func (e *Executor) start() error {
	if e.state != Uninitialized {
		return fmt.Errorf("%w: handshake in state %s", ErrNotReady, e.state)
	}
	e.state = Handshaking
	hs, err := doHandshake(e.ch)
	if err != nil {
		e.state = Fatal
		return err
	}
	e.mapSize = hs.mapSize
	e.state = Ready
	e.logger.Debug("forkserver handshake done",
		zap.Uint32("version", hs.version),
		zap.Int("map_size", hs.mapSize),
	)
	return nil
}

func (e *Executor) State() State {
	return e.state
}

func (e *Executor) Executions() uint64 {
	return e.executions
}

// MapSize is the coverage map size the target announced, or zero.
func (e *Executor) MapSize() int {
	return e.mapSize
}

// Payload returns the bytes the last run was fed.
func (e *Executor) Payload() []byte {
	return e.packets.Payload()
}

// Run executes one test case and classifies how the child ended.
// Any error leaves the executor in the Fatal state.
func (e *Executor) Run(in Serializer) (ExitKind, error) {
	if e.state != Ready {
		return Ok, fmt.Errorf("%w: run in state %s", ErrNotReady, e.state)
	}
	e.state = Running
	kind, err := e.run(in)
	if err != nil {
		e.state = Fatal
		return Ok, err
	}
	e.state = Ready
	return kind, nil
}

func (e *Executor) run(in Serializer) (ExitKind, error) {
	e.executions++

	if err := e.packets.Fill(in.SerializeInto); err != nil {
		return Ok, fmt.Errorf("failed to fill packet buffer: %w", err)
	}

	var flag uint32
	if e.timedOut {
		flag = 1
	}
	e.timedOut = false
	if err := e.ch.writeWord(flag); err != nil {
		return Ok, fmt.Errorf("failed to request run: %w", err)
	}

	pid, err := e.ch.readWord()
	if err != nil {
		return Ok, fmt.Errorf("failed to read child pid: %w", err)
	}
	if int32(pid) <= 0 {
		return Ok, fmt.Errorf("%w: %d", ErrInvalidPID, int32(pid))
	}
	e.child.set(int(pid))

	status, ok, err := e.ch.readWordTimed(e.timeout)
	if err != nil {
		return Ok, fmt.Errorf("failed to read child status: %w", err)
	}
	if !ok {
		e.timedOut = true
		if err := e.child.kill(); err != nil {
			e.logger.Warn("failed to kill timed out child", zap.Int("pid", e.child.pid), zap.Error(err))
		}
		if _, err := e.ch.readWord(); err != nil {
			return Ok, fmt.Errorf("failed to read status of killed child: %w", err)
		}
		// reaped; the pid may be reused from here on
		e.child.clear()
		return Timeout, nil
	}

	ws := unix.WaitStatus(status)
	kind := Ok
	if ws.Signaled() {
		kind = Crash
	}
	if !ws.Stopped() {
		e.child.clear()
	}
	return kind, nil
}

// Close kills any live child, tears down the coordinator and releases
// the shared memory.
func (e *Executor) Close() error {
	var errs []error
	if err := e.child.kill(); err != nil {
		errs = append(errs, fmt.Errorf("failed to kill child: %w", err))
	}
	e.child.clear()
	if err := e.ch.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close forkserver pipes: %w", err))
	}
	if e.release != nil {
		errs = append(errs, e.release())
		e.release = nil
	}
	e.state = Fatal
	return errors.Join(errs...)
}
