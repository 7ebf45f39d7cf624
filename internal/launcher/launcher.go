// Package launcher starts one worker process per core and supervises them
// until the campaign is interrupted.
package launcher

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"desockfuzz/config"
	"desockfuzz/pkg/telemetry"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// GracePeriod is how long an interrupted worker may take to flush its stats
// before it is killed.
const GracePeriod = 10 * time.Second

type Launcher struct {
	Executable string // desockfuzz binary the workers are started from
	Campaign   config.CampaignConfig
	// MetricsAddr, if set, is the address of the first worker's metrics
	// endpoint. Further workers listen on the following ports.
	MetricsAddr string
	Stdout      io.Writer
	Stderr      io.Writer

	logger *zap.Logger
}

func New(executable string, campaign config.CampaignConfig, logger *zap.Logger) *Launcher {
	return &Launcher{
		Executable: executable,
		Campaign:   campaign,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		logger:     logger,
	}
}

// Run starts every worker and blocks until all of them have exited. Once ctx
// is done the workers receive SIGINT and, after GracePeriod, SIGKILL.
// Workers that fail on their own are reported; the others keep running.
func (l *Launcher) Run(ctx context.Context, workers []Worker) error {
	tracer := telemetry.FromContext(ctx)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.supervise(ctx, w, tracer); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errs
}

func (l *Launcher) supervise(ctx context.Context, w Worker, tracer telemetry.Tracer) error {
	workerTracer := tracer.Spawn("running worker")
	workerTracer.WithAttributes(telemetry.NewSpanAttributes(telemetry.Fuzzing).
		WithCore(w.Core).
		WithTargetBinary(w.Binary))
	workerTracer.Start()
	defer workerTracer.End()

	env, err := l.workerEnv(w, workerTracer.Export())
	if err != nil {
		return err
	}
	cmd := exec.Command(l.Executable, l.workerArgs(w)...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}

	l.logger.Info("starting worker",
		zap.Int("core", w.Core),
		zap.String("binary", w.Binary),
		zap.String("command", cmd.String()))
	if err := cmd.Start(); err != nil {
		workerTracer.SetStatus(codes.Error, "failed to start worker")
		return fmt.Errorf("core %d: failed to start worker: %w", w.Core, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var exitErr error
	select {
	case exitErr = <-done:
		// the worker gave up on its own
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGINT)
		timer := time.NewTimer(GracePeriod)
		select {
		case <-done:
		case <-timer.C:
			l.logger.Warn("worker ignored SIGINT, killing it", zap.Int("core", w.Core))
			_ = cmd.Process.Kill()
			<-done
		}
		timer.Stop()
	}

	if attrs, err := l.lastStats(w.Core); err != nil {
		l.logger.Warn("failed to read worker stats", zap.Int("core", w.Core), zap.Error(err))
	} else if attrs != nil {
		workerTracer.WithAttributes(attrs)
	}

	if exitErr != nil {
		workerTracer.SetStatus(codes.Error, exitErr.Error())
		l.logger.Error("worker exited", zap.Int("core", w.Core), zap.Error(exitErr))
		return fmt.Errorf("core %d: worker exited: %w", w.Core, exitErr)
	}
	return nil
}

// workerArgs builds the worker command line. Everything the worker cannot
// read from the environment is passed as a flag.
func (l *Launcher) workerArgs(w Worker) []string {
	c := l.Campaign
	args := []string{"worker",
		"--core", strconv.Itoa(w.Core),
		"--position", strconv.Itoa(w.Position),
		"--num-cores", strconv.Itoa(w.NumCores),
		"--binary", w.Binary,
		"--output", c.OutputDir,
		"--libdesock", c.Libdesock,
	}
	if c.CorpusDir != "" {
		args = append(args, "--corpus", c.CorpusDir)
	}
	if c.DictPath != "" {
		args = append(args, "--dict", c.DictPath)
	}
	if c.Timeout > 0 {
		args = append(args, "--timeout", c.Timeout.String())
	}
	args = append(args, "--")
	return append(args, c.Command...)
}

func (l *Launcher) workerEnv(w Worker, traceParent string) ([]string, error) {
	var env []string
	if traceParent != "" {
		env = append(env, telemetry.TraceParentEnv+"="+traceParent)
	}
	if l.MetricsAddr != "" {
		addr, err := offsetPort(l.MetricsAddr, w.Position)
		if err != nil {
			return nil, err
		}
		env = append(env, "METRICS_ADDR="+addr)
	}
	return env, nil
}

func offsetPort(addr string, offset int) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid metrics address %q: %w", addr, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return "", fmt.Errorf("invalid metrics port %q: %w", port, err)
	}
	if p == 0 {
		return addr, nil
	}
	return net.JoinHostPort(host, strconv.Itoa(p+offset)), nil
}

type statsRecord struct {
	Event      string  `json:"event"`
	Core       int     `json:"core"`
	Executions uint64  `json:"executions"`
	Corpus     int     `json:"corpus"`
	Crashes    int     `json:"crashes"`
	Timeouts   int     `json:"timeouts"`
	ExecPerSec float64 `json:"exec_per_sec"`
}

// lastStats returns the worker's final record from the shared stats log,
// or nil if it never wrote one.
func (l *Launcher) lastStats(core int) (*telemetry.SpanAttributes, error) {
	f, err := os.Open(filepath.Join(l.Campaign.OutputDir, "log.jsonl"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseStatsLog(f, core, l.logger)
}

func parseStatsLog(r io.Reader, core int, logger *zap.Logger) (*telemetry.SpanAttributes, error) {
	var last *statsRecord
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var rec statsRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			logger.Debug("skipping malformed stats record", zap.Error(err))
			continue
		}
		if rec.Event != "stats" || rec.Core != core {
			continue
		}
		last = &rec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	if last == nil {
		return nil, nil
	}
	return telemetry.EmptySpanAttributes().
		WithExecutions(last.Executions).
		WithCorpusSize(last.Corpus).
		WithCrashes(last.Crashes).
		WithTimeouts(last.Timeouts).
		WithExtraAttribute("fuzzer.exec_per_sec", last.ExecPerSec), nil
}
