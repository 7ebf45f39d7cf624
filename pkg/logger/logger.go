package logger

import (
	"context"
	"desockfuzz/config"
	"desockfuzz/pkg/telemetry"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerParams struct {
	fx.In
	Lc        fx.Lifecycle
	AppConfig *config.AppConfig
	Telemetry telemetry.Telemetry `optional:"true"`
}

func NewLogger(p LoggerParams) *zap.Logger {
	loggerCtx, cancel := context.WithCancel(context.Background())
	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})

	level := ParseLevel(p.AppConfig.LogLevel)

	var cfg zap.Config
	if level > zapcore.InfoLevel {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	opts := []zap.Option{zap.AddCaller()}
	if p.Telemetry != nil && p.Telemetry.GetLogger() != nil {
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return &otelCore{
				Core: core,
				ctx:  loggerCtx,
				emit: p.Telemetry.GetLogger().Emit,
				base: []log.KeyValue{
					log.String("crs.action.name", "fuzzing_log"),
					log.String("service.name", p.AppConfig.ServiceName),
				},
			}
		}))
	}
	lg, err := cfg.Build(opts...)
	if err != nil {
		// log failed to build, return a default one
		return zap.NewExample()
	}
	return lg
}

// ParseLevel maps a LOG_LEVEL value to a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// otelCore tees every entry that the wrapped core accepts into an OTel log
// record. Fields added through With are kept so child loggers export them too.
type otelCore struct {
	zapcore.Core
	ctx    context.Context
	emit   func(context.Context, log.Record)
	base   []log.KeyValue
	fields []zapcore.Field
}

func (c *otelCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.Core = c.Core.With(fields)
	clone.fields = append(slices.Clip(c.fields), fields...)
	return &clone
}

func (c *otelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}
	return ce.AddCore(ent, c)
}

func (c *otelCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if err := c.Core.Write(ent, fields); err != nil {
		return err
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	var rec log.Record
	rec.SetTimestamp(ent.Time)
	rec.SetBody(log.StringValue(ent.Message))
	rec.SetSeverity(severity(ent.Level))
	rec.SetSeverityText(ent.Level.String())
	rec.AddAttributes(c.base...)
	for k, v := range enc.Fields {
		rec.AddAttributes(log.KeyValue{Key: k, Value: logValue(v)})
	}
	c.emit(c.ctx, rec)
	return nil
}

func severity(l zapcore.Level) log.Severity {
	switch {
	case l <= zapcore.DebugLevel:
		return log.SeverityDebug
	case l == zapcore.InfoLevel:
		return log.SeverityInfo
	case l == zapcore.WarnLevel:
		return log.SeverityWarn
	case l == zapcore.ErrorLevel:
		return log.SeverityError
	default:
		return log.SeverityFatal
	}
}

// logValue converts what a MapObjectEncoder stores back into a typed value.
func logValue(v any) log.Value {
	switch v := v.(type) {
	case string:
		return log.StringValue(v)
	case bool:
		return log.BoolValue(v)
	case int:
		return log.IntValue(v)
	case int64:
		return log.Int64Value(v)
	case int32:
		return log.Int64Value(int64(v))
	case uint64:
		return log.Int64Value(int64(v))
	case uint32:
		return log.Int64Value(int64(v))
	case float64:
		return log.Float64Value(v)
	case float32:
		return log.Float64Value(float64(v))
	default:
		return log.StringValue(fmt.Sprint(v))
	}
}
