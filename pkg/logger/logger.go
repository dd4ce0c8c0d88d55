//go:generate mockgen -source logger.go -destination ../../internal/mocks/mock_logger.go -package mocks Logger
package logger

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openfga/scientist/internal/build"
)

type Logger interface {
	// These are ops that call directly to the actual zap implementation
	Debug(string, ...zap.Field)
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)

	// These are the equivalent logger function but with context provided
	DebugWithContext(context.Context, string, ...zap.Field)
	InfoWithContext(context.Context, string, ...zap.Field)
	WarnWithContext(context.Context, string, ...zap.Field)
	ErrorWithContext(context.Context, string, ...zap.Field)

	// With returns a child logger that carries the given fields on every entry.
	With(...zap.Field) Logger
}

// ZapLogger is an implementation of Logger that uses the uber/zap logger underneath.
// The *WithContext variants attach the trace and span ids of the active span, if any.
type ZapLogger struct {
	*zap.Logger
}

var _ Logger = (*ZapLogger)(nil)

func (l *ZapLogger) With(fields ...zap.Field) Logger {
	return &ZapLogger{l.Logger.With(fields...)}
}

func (l *ZapLogger) Debug(msg string, fields ...zap.Field) {
	l.Logger.Debug(msg, fields...)
}

func (l *ZapLogger) Info(msg string, fields ...zap.Field) {
	l.Logger.Info(msg, fields...)
}

func (l *ZapLogger) Warn(msg string, fields ...zap.Field) {
	l.Logger.Warn(msg, fields...)
}

func (l *ZapLogger) Error(msg string, fields ...zap.Field) {
	l.Logger.Error(msg, fields...)
}

func (l *ZapLogger) DebugWithContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.Logger.Debug(msg, withSpanFields(ctx, fields)...)
}

func (l *ZapLogger) InfoWithContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.Logger.Info(msg, withSpanFields(ctx, fields)...)
}

func (l *ZapLogger) WarnWithContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.Logger.Warn(msg, withSpanFields(ctx, fields)...)
}

func (l *ZapLogger) ErrorWithContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.Logger.Error(msg, withSpanFields(ctx, fields)...)
}

func withSpanFields(ctx context.Context, fields []zap.Field) []zap.Field {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return fields
	}
	return append(fields,
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

// NewNoopLogger provides noop logger that satisfies the logger interface.
func NewNoopLogger() *ZapLogger {
	return &ZapLogger{
		zap.NewNop(),
	}
}

type config struct {
	format          string
	level           string
	timestampFormat string
}

type OptionLogger func(*config)

func WithFormat(format string) OptionLogger {
	return func(c *config) {
		c.format = format
	}
}

func WithLevel(level string) OptionLogger {
	return func(c *config) {
		c.level = level
	}
}

// WithTimestampFormat selects between "ISO8601" and "Unix" (epoch seconds) timestamps.
func WithTimestampFormat(timestampFormat string) OptionLogger {
	return func(c *config) {
		c.timestampFormat = timestampFormat
	}
}

func NewLogger(options ...OptionLogger) (*ZapLogger, error) {
	logOptions := &config{
		format:          "text",
		level:           "info",
		timestampFormat: "ISO8601",
	}
	for _, opt := range options {
		opt(logOptions)
	}

	if logOptions.level == "none" {
		return NewNoopLogger(), nil
	}

	level, err := zapcore.ParseLevel(logOptions.level)
	if err != nil {
		return nil, fmt.Errorf("unknown log level: %s", logOptions.level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.CallerKey = "" // remove the "caller" field
	cfg.DisableStacktrace = true

	switch logOptions.timestampFormat {
	case "ISO8601":
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "Unix":
		cfg.EncoderConfig.EncodeTime = zapcore.EpochTimeEncoder
	default:
		return nil, fmt.Errorf("unknown timestamp format: %s", logOptions.timestampFormat)
	}

	switch logOptions.format {
	case "text":
		cfg.Encoding = "console"
		cfg.DisableCaller = true
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
	default:
		return nil, fmt.Errorf("unknown log format: %s", logOptions.format)
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	if logOptions.format == "json" {
		log = log.With(zap.String("build.version", build.Version), zap.String("build.commit", build.Commit))
	}

	return &ZapLogger{log}, nil
}

func MustNewLogger(options ...OptionLogger) *ZapLogger {
	logger, err := NewLogger(options...)
	if err != nil {
		panic(err)
	}

	return logger
}
