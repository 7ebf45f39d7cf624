package executor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"desockfuzz/internal/shmem"

	"go.uber.org/zap"
)

// Options describe the target a worker fuzzes.
type Options struct {
	Program   string
	Args      []string
	Libdesock string
	Timeout   time.Duration
	// InitTimeout bounds the handshake; zero means ten run timeouts.
	InitTimeout time.Duration
	// Coverage is the map segment the instrumentation attaches to.
	Coverage *shmem.Segment
	// Output receives the target's stdout and stderr; nil discards them.
	Output io.Writer
	Env    []string
}

// Launch allocates the packet buffer, starts the target under the forkserver
// and completes the handshake. If the target announces a smaller coverage
// map, cov is truncated to match.
func Launch(opts Options, cov *shmem.CoverageMap, logger *zap.Logger) (*Executor, error) {
	if opts.Coverage == nil {
		return nil, errors.New("coverage map segment is not set")
	}
	seg, err := shmem.NewSegment(shmem.PacketBufferSize)
	if err != nil {
		return nil, err
	}
	packets, err := shmem.NewPacketBuffer(seg.Bytes())
	if err != nil {
		seg.Close()
		return nil, err
	}

	ctlR, ctlW, err := os.Pipe()
	if err != nil {
		seg.Close()
		return nil, fmt.Errorf("failed to create control pipe: %w", err)
	}
	stR, stW, err := os.Pipe()
	if err != nil {
		seg.Close()
		ctlR.Close()
		ctlW.Close()
		return nil, fmt.Errorf("failed to create status pipe: %w", err)
	}

	cmd := exec.Command(opts.Program, opts.Args...)
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Env = append(cmd.Env,
		"LD_PRELOAD="+opts.Libdesock,
		seg.Env(shmem.PacketBufferEnv),
		opts.Coverage.Env(shmem.CoverageMapEnv),
		shmem.MapSizeEnv+"="+strconv.Itoa(shmem.MapSize),
	)
	cmd.Stdout = opts.Output
	cmd.Stderr = opts.Output
	// ExtraFiles[i] becomes descriptor 3+i in the target
	cmd.ExtraFiles = make([]*os.File, stFD-2)
	cmd.ExtraFiles[ctlFD-3] = ctlR
	cmd.ExtraFiles[stFD-3] = stW
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Pdeathsig: syscall.SIGKILL}

	logger.Info("starting forkserver", zap.String("command", cmd.String()), zap.Int("packet_buffer", seg.ID()))
	err = cmd.Start()
	ctlR.Close()
	stW.Close()
	ch := &channel{ctl: ctlW, st: stR}
	if err != nil {
		ch.Close()
		seg.Close()
		return nil, fmt.Errorf("failed to start %s: %w", opts.Program, err)
	}

	e := newExecutor(ch, packets, opts.Timeout, logger)
	e.release = func() error {
		cmd.Process.Kill()
		cmd.Wait()
		return seg.Close()
	}

	initTimeout := opts.InitTimeout
	if initTimeout <= 0 {
		initTimeout = 10 * e.timeout
	}
	stR.SetReadDeadline(time.Now().Add(initTimeout))
	err = e.start()
	stR.SetReadDeadline(time.Time{})
	if err != nil {
		e.Close()
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrHandshakeTimeout, initTimeout)
		}
		return nil, err
	}

	if size := e.MapSize(); size > 0 && cov != nil {
		if err := cov.Truncate(size); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}
