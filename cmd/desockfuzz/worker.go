package main

import (
	"context"

	"desockfuzz/config"
	"desockfuzz/internal/dict"
	"desockfuzz/internal/fuzz"
	"desockfuzz/pkg/database"
	"desockfuzz/pkg/metrics"
	"desockfuzz/pkg/mq"
	"desockfuzz/pkg/watchdog"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type workerCommand struct {
	campaignFlags
	Core     int    `long:"core" description:"Core to pin to" required:"true"`
	Position int    `long:"position" description:"Index of the core in the campaign's core list"`
	NumCores int    `long:"num-cores" description:"Number of workers in the campaign" default:"1"`
	Binary   string `long:"binary" description:"Target binary; defaults to the command's first word"`
}

func (c *workerCommand) Execute(args []string) error {
	cfg := config.LoadConfig()
	if err := c.apply(&cfg.Campaign, args); err != nil {
		return err
	}
	opts := fuzz.WorkerOptions{
		Core:     c.Core,
		Position: c.Position,
		NumCores: c.NumCores,
		Binary:   c.Binary,
	}
	if opts.Binary == "" {
		opts.Binary = cfg.Campaign.Command[0]
	}

	var (
		lg     *zap.Logger
		runner *fuzz.FuzzRunner
	)
	app := fx.New(
		baseModule(cfg),
		fx.Provide(
			database.NewDBConnection,    // inject db connection
			database.NewRedisClient,     // inject redis client
			mq.NewRabbitMQ,              // inject rabbitmq service
			metrics.NewMetrics,          // inject prometheus metrics
			watchdog.NewWatchDogFactory, // inject watchdog factory
			dict.NewDictGrabber,         // inject dict grabber
			fuzz.NewFuzzRunner,          // inject fuzz runner
		),
		fx.Populate(&lg, &runner),
	)
	if err := app.Err(); err != nil {
		return err
	}

	return runApp(app, func(ctx context.Context) error {
		lg := lg.With(zap.String("run", uuid.NewString()))
		lg.Info("worker starting", zap.String("binary", opts.Binary))
		if err := runner.RunWorker(ctx, opts); err != nil {
			lg.Error("worker failed", zap.Error(err))
			return err
		}
		lg.Info("worker stopped")
		return nil
	})
}
