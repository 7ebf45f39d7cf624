package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"desockfuzz/config"
	"desockfuzz/internal/launcher"
	"desockfuzz/pkg/telemetry"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type campaignFlags struct {
	Output    string        `long:"output" description:"Output directory" required:"true"`
	Libdesock string        `long:"libdesock" description:"Path to libdesock.so" required:"true"`
	Corpus    string        `long:"corpus" description:"Seed corpus directory or .tar.gz"`
	Dict      string        `long:"dict" description:"AFL dictionary file"`
	Timeout   time.Duration `long:"timeout" description:"Per-run timeout"`
}

// apply overrides the environment configuration with the flags that were set.
func (f campaignFlags) apply(c *config.CampaignConfig, command []string) error {
	if len(command) == 0 {
		return errors.New("missing target command after --")
	}
	c.OutputDir = f.Output
	c.Libdesock = f.Libdesock
	c.Command = command
	if f.Corpus != "" {
		c.CorpusDir = f.Corpus
	}
	if f.Dict != "" {
		c.DictPath = f.Dict
	}
	if f.Timeout > 0 {
		c.Timeout = f.Timeout
	}
	return nil
}

type fuzzCommand struct {
	campaignFlags
	Cores       string   `long:"cores" description:"Cores to fuzz on, e.g. 0-3,5 or all"`
	ExtraBinary []string `long:"extra-binary" description:"Additional target binary, assigned to cores round robin"`
}

func (c *fuzzCommand) Execute(args []string) error {
	cfg := config.LoadConfig()
	if err := c.apply(&cfg.Campaign, args); err != nil {
		return err
	}
	if c.Cores != "" {
		cfg.Campaign.Cores = c.Cores
	}
	cfg.Campaign.ExtraBinaries = c.ExtraBinary

	cores, err := launcher.ParseCores(cfg.Campaign.Cores)
	if err != nil {
		return err
	}
	for _, dir := range []string{"queue", "crashes"} {
		if err := os.MkdirAll(filepath.Join(cfg.Campaign.OutputDir, dir), 0755); err != nil {
			return fmt.Errorf("failed to create %s folder: %w", dir, err)
		}
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate own executable: %w", err)
	}

	var (
		lg            *zap.Logger
		tracerFactory *telemetry.TracerFactory
	)
	app := fx.New(baseModule(cfg), fx.Populate(&lg, &tracerFactory))
	if err := app.Err(); err != nil {
		return err
	}

	return runApp(app, func(ctx context.Context) error {
		binaries := append([]string{cfg.Campaign.Command[0]}, cfg.Campaign.ExtraBinaries...)
		workers := launcher.Plan(cores, binaries)

		tracer := tracerFactory.NewTracer(ctx, "fuzz")
		tracer.WithAttributes(telemetry.NewSpanAttributes(telemetry.Fuzzing).
			WithTargetBinary(binaries[0]))
		tracer.Start()
		defer tracer.End()
		ctx = context.WithValue(ctx, telemetry.TracerKey{}, tracer)

		lg.Info("starting campaign",
			zap.Ints("cores", cores),
			zap.Strings("binaries", binaries),
			zap.String("output", cfg.Campaign.OutputDir))

		l := launcher.New(exe, cfg.Campaign, lg)
		l.MetricsAddr = cfg.MetricsAddr
		if err := l.Run(ctx, workers); err != nil {
			tracer.SetStatus(codes.Error, err.Error())
			lg.Error("campaign ended with failed workers", zap.Error(err))
			return err
		}
		lg.Info("campaign finished")
		return nil
	})
}
