package fuzz

import (
	"time"

	"desockfuzz/internal/executor"
	"desockfuzz/pkg/metrics"
	"desockfuzz/pkg/telemetry"

	"go.uber.org/zap"
)

// Stats counts a worker's runs and periodically reports them.
type Stats struct {
	Executions uint64
	Crashes    int
	Timeouts   int

	start      time.Time
	lastReport time.Time
	interval   time.Duration
	series     *metrics.Worker
}

func NewStats(interval time.Duration, series *metrics.Worker, now time.Time) *Stats {
	return &Stats{start: now, lastReport: now, interval: interval, series: series}
}

func (s *Stats) Record(kind executor.ExitKind) {
	s.Executions++
	if s.series != nil {
		s.series.Executions.Inc()
	}
	switch kind {
	case executor.Crash:
		s.Crashes++
		if s.series != nil {
			s.series.Crashes.Inc()
		}
	case executor.Timeout:
		s.Timeouts++
		if s.series != nil {
			s.series.Timeouts.Inc()
		}
	}
}

// ExecsPerSec is the average rate since the worker started.
func (s *Stats) ExecsPerSec(now time.Time) float64 {
	elapsed := now.Sub(s.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.Executions) / elapsed
}

// Due reports whether the reporting interval has elapsed.
func (s *Stats) Due(now time.Time) bool {
	return now.Sub(s.lastReport) >= s.interval
}

// Report writes one stats record.
func (s *Stats) Report(now time.Time, core, corpusSize int, statsLog *zap.Logger) {
	s.lastReport = now
	if s.series != nil {
		s.series.Corpus.Set(float64(corpusSize))
	}
	statsLog.Info("stats",
		zap.Int("core", core),
		zap.Uint64("executions", s.Executions),
		zap.Int("corpus", corpusSize),
		zap.Int("crashes", s.Crashes),
		zap.Int("timeouts", s.Timeouts),
		zap.Float64("exec_per_sec", s.ExecsPerSec(now)),
	)
}

// Summarize attaches the final totals to the campaign span. Span attributes
// merge only into unset fields, so this happens once.
func (s *Stats) Summarize(corpusSize int, tracer telemetry.Tracer) {
	tracer.WithAttributes(telemetry.EmptySpanAttributes().
		WithExecutions(s.Executions).
		WithCorpusSize(corpusSize).
		WithCrashes(s.Crashes).
		WithTimeouts(s.Timeouts))
}
