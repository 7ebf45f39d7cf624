// Package metrics exposes the per-worker fuzzing counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"desockfuzz/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Metrics struct {
	registry   *prometheus.Registry
	executions *prometheus.CounterVec
	crashes    *prometheus.CounterVec
	timeouts   *prometheus.CounterVec
	corpus     *prometheus.GaugeVec
}

// Worker is the set of series belonging to one core.
type Worker struct {
	Executions prometheus.Counter
	Crashes    prometheus.Counter
	Timeouts   prometheus.Counter
	Corpus     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desockfuzz_executions_total",
			Help: "Test cases run against the target.",
		}, []string{"core"}),
		crashes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desockfuzz_crashes_total",
			Help: "Runs that ended with the target killed by a signal.",
		}, []string{"core"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "desockfuzz_timeouts_total",
			Help: "Runs that exceeded the execution timeout.",
		}, []string{"core"}),
		corpus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "desockfuzz_corpus_size",
			Help: "Entries in the worker's corpus.",
		}, []string{"core"}),
	}
	m.registry.MustRegister(m.executions, m.crashes, m.timeouts, m.corpus)
	return m
}

func (m *Metrics) Worker(core int) *Worker {
	label := strconv.Itoa(core)
	return &Worker{
		Executions: m.executions.WithLabelValues(label),
		Crashes:    m.crashes.WithLabelValues(label),
		Timeouts:   m.timeouts.WithLabelValues(label),
		Corpus:     m.corpus.WithLabelValues(label),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type MetricsParams struct {
	fx.In

	Config    *config.AppConfig
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

// NewMetrics registers the collectors and, when METRICS_ADDR is set, serves
// them on /metrics for the lifetime of the app.
func NewMetrics(p MetricsParams) *Metrics {
	m := New()
	if p.Config.MetricsAddr == "" {
		return m
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", p.Config.MetricsAddr)
			if err != nil {
				return err
			}
			p.Logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("metrics server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
	return m
}
