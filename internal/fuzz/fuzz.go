// Package fuzz runs one fuzzing worker: a single-threaded loop that selects,
// mutates and executes test cases against a target pinned to one core.
package fuzz

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"desockfuzz/config"
	"desockfuzz/internal/corpus"
	"desockfuzz/internal/crash"
	"desockfuzz/internal/dict"
	"desockfuzz/internal/executor"
	"desockfuzz/internal/input"
	"desockfuzz/internal/mutators"
	"desockfuzz/internal/shmem"
	"desockfuzz/internal/tokens"
	"desockfuzz/internal/types"
	"desockfuzz/internal/utils"
	"desockfuzz/pkg/logger"
	"desockfuzz/pkg/metrics"
	"desockfuzz/pkg/telemetry"
	"desockfuzz/pkg/watchdog"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// maxStackPow bounds the havoc stack at 2^4 packet operators per round.
const maxStackPow = 4

// WorkerOptions identify the worker within the campaign.
type WorkerOptions struct {
	Core     int
	Position int // index of Core in the campaign's core list
	NumCores int
	Binary   string
}

type FuzzRunner struct {
	logger        *zap.Logger
	appConfig     *config.AppConfig
	tracerFactory *telemetry.TracerFactory
	dictGrabber   *dict.DictGrabber
	watchDogFac   *watchdog.WatchDogFactory
	metrics       *metrics.Metrics
	crashParams   crash.CrashManagerParams
}

type FuzzRunnerParams struct {
	fx.In

	Logger        *zap.Logger
	AppConfig     *config.AppConfig
	TracerFactory *telemetry.TracerFactory
	DictGrabber   *dict.DictGrabber
	WatchDogFac   *watchdog.WatchDogFactory
	Metrics       *metrics.Metrics
	CrashParams   crash.CrashManagerParams
}

func NewFuzzRunner(params FuzzRunnerParams) *FuzzRunner {
	return &FuzzRunner{
		params.Logger,
		params.AppConfig,
		params.TracerFactory,
		params.DictGrabber,
		params.WatchDogFac,
		params.Metrics,
		params.CrashParams,
	}
}

// RunWorker fuzzes until ctx is done or the target breaks the forkserver
// protocol.
func (f *FuzzRunner) RunWorker(ctx context.Context, opts WorkerOptions) error {
	campaignCfg := f.appConfig.Campaign
	lg := f.logger.With(zap.Int("core", opts.Core), zap.String("binary", opts.Binary))

	// the target is forked from this thread and inherits its affinity
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	var set unix.CPUSet
	set.Set(opts.Core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		lg.Warn("failed to pin worker to core", zap.Error(err))
	}

	var tracer telemetry.Tracer
	if parent := os.Getenv(telemetry.TraceParentEnv); parent != "" {
		tracer = f.tracerFactory.NewTracerSpawnedFrom(ctx, parent, "fuzzing campaign")
	} else {
		tracer = f.tracerFactory.NewTracer(ctx, "fuzzing campaign")
	}
	tracer.WithAttributes(telemetry.NewSpanAttributes(telemetry.Fuzzing).
		WithCore(opts.Core).
		WithTargetBinary(opts.Binary))
	tracer.Start()
	defer tracer.End()
	ctx = context.WithValue(ctx, telemetry.TracerKey{}, tracer)

	err := f.runWorker(ctx, opts, campaignCfg, lg, tracer)
	if err != nil {
		tracer.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (f *FuzzRunner) runWorker(ctx context.Context, opts WorkerOptions, cfg config.CampaignConfig, lg *zap.Logger, tracer telemetry.Tracer) error {
	seed := utils.CoreSeed(opts.Core)
	queueDir := filepath.Join(cfg.OutputDir, "queue")
	crashDir := filepath.Join(cfg.OutputDir, "crashes")
	if err := os.MkdirAll(queueDir, 0755); err != nil {
		return fmt.Errorf("failed to create queue folder: %w", err)
	}

	catalogue := tokens.DefaultCatalogue()
	if cfg.TemplatesFile != "" {
		c, err := tokens.LoadCatalogue(cfg.TemplatesFile)
		if err != nil {
			return err
		}
		catalogue = c
	}
	factory := tokens.NewFactory(catalogue)

	dictionary, err := f.dictGrabber.GrabDict(ctx, cfg.DictPath)
	if err != nil {
		return err
	}

	covSeg, err := shmem.NewSegment(shmem.MapSize)
	if err != nil {
		return err
	}
	defer covSeg.Close()
	coverage := shmem.NewCoverageMap(covSeg.Bytes())

	args := cfg.Command
	if len(args) > 0 {
		args = args[1:]
	}
	target, err := executor.Launch(executor.Options{
		Program:   opts.Binary,
		Args:      args,
		Libdesock: cfg.Libdesock,
		Timeout:   cfg.Timeout,
		Coverage:  covSeg,
	}, coverage, lg)
	if err != nil {
		return fmt.Errorf("failed to start forkserver: %w", err)
	}
	defer target.Close()

	crashManager, err := crash.NewManager(f.crashParams, crashDir)
	if err != nil {
		return err
	}
	crashManager.Start()
	defer crashManager.Stop()
	crashChan := make(chan types.CrashMessage, 64)
	crashManager.RegisterCrashChan(ctx, crashChan)
	defer close(crashChan)

	queue := corpus.New[S](queueDir, factory, lg)
	shard := corpus.Shard{Position: opts.Position, Count: opts.NumCores}
	if cfg.CorpusDir != "" {
		if _, err := queue.LoadSeeds(ctx, cfg.CorpusDir, shard); err != nil {
			return err
		}
	}
	if _, err := queue.LoadQueue(ctx, shard); err != nil {
		return err
	}
	if queue.Count() == 0 {
		lg.Info("corpus is empty, starting from the empty input")
		if _, err := queue.Add(input.New[S]()); err != nil {
			return err
		}
	}

	imports := make(chan string, 256)
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	wd, err := f.watchDogFac.New(watchCtx, imports, watchdog.IgnoreHidden)
	if err != nil {
		return err
	}
	if err := wd.AddDir(queueDir); err != nil {
		return err
	}

	statsLog, closeStats, err := logger.NewStatsLogger(filepath.Join(cfg.OutputDir, "log.jsonl"))
	if err != nil {
		return err
	}
	defer closeStats()

	c := &campaign{
		core:   opts.Core,
		binary: opts.Binary,
		corpus: queue,
		target: target,
		mutator: mutators.NewTokenStreamPipeline(mutators.Options{
			MaxPackets:  cfg.MaxPackets,
			MaxTokens:   cfg.MaxTokens,
			MaxStackPow: maxStackPow,
			Seed:        seed,
		}),
		state: &mutators.State[S]{
			Rand:       utils.NewRand(seed),
			Corpus:     queue,
			Factory:    factory,
			Dictionary: dictionary,
		},
		feedback: NoFeedback{},
		coverage: coverage,
		crashes:  crashChan,
		imports:  imports,
		stats:    NewStats(cfg.StatsInterval, f.metrics.Worker(opts.Core), time.Now()),
		statsLog: statsLog,
		logger:   lg,
		now:      time.Now,
	}

	lg.Info("fuzzing",
		zap.Uint64("seed", seed),
		zap.Int("corpus", queue.Count()),
		zap.Int("dictionary", dictionary.Len()),
		zap.Int("map_size", coverage.Len()))
	err = c.loop(ctx)
	c.stats.Report(time.Now(), opts.Core, queue.Count(), statsLog)
	c.stats.Summarize(queue.Count(), tracer)
	return err
}
