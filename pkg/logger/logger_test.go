package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext(t *testing.T) {
	for _, tc := range []struct {
		name          string
		log           func(Logger, context.Context, string)
		expectedLevel zapcore.Level
	}{
		{
			name:          "DebugWithContext",
			log:           func(l Logger, ctx context.Context, msg string) { l.DebugWithContext(ctx, msg) },
			expectedLevel: zapcore.DebugLevel,
		},
		{
			name:          "InfoWithContext",
			log:           func(l Logger, ctx context.Context, msg string) { l.InfoWithContext(ctx, msg) },
			expectedLevel: zapcore.InfoLevel,
		},
		{
			name:          "WarnWithContext",
			log:           func(l Logger, ctx context.Context, msg string) { l.WarnWithContext(ctx, msg) },
			expectedLevel: zapcore.WarnLevel,
		},
		{
			name:          "ErrorWithContext",
			log:           func(l Logger, ctx context.Context, msg string) { l.ErrorWithContext(ctx, msg) },
			expectedLevel: zapcore.ErrorLevel,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			dut := &ZapLogger{zap.New(core)}

			tc.log(dut, context.Background(), "ABC")

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			require.Equal(t, "ABC", entry.Message)
			require.Empty(t, entry.ContextMap())
			require.Equal(t, tc.expectedLevel, entry.Level)
		})
	}
}

func TestWithContextAddsSpanFields(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "span")
	defer span.End()

	core, logs := observer.New(zap.DebugLevel)
	dut := &ZapLogger{zap.New(core)}
	dut.InfoWithContext(ctx, "ABC", zap.String("experiment", "sum"))

	fields := logs.All()[0].ContextMap()
	require.Equal(t, "sum", fields["experiment"])
	require.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	require.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}

func TestWithFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := &ZapLogger{zap.New(core)}

	child := logger.With(zap.String("experiment", "sum"))
	child.Info("ABC")
	logger.Info("ABC")

	require.Equal(t, map[string]interface{}{"experiment": "sum"}, logs.All()[0].ContextMap())
	require.Empty(t, logs.All()[1].ContextMap())
}

func TestNewLogger(t *testing.T) {
	t.Run("none_level_is_noop", func(t *testing.T) {
		l, err := NewLogger(WithLevel("none"))
		require.NoError(t, err)
		require.False(t, l.Core().Enabled(zapcore.ErrorLevel))
	})

	t.Run("unknown_level", func(t *testing.T) {
		_, err := NewLogger(WithLevel("loud"))
		require.EqualError(t, err, "unknown log level: loud")
	})

	t.Run("unknown_format", func(t *testing.T) {
		_, err := NewLogger(WithFormat("xml"))
		require.EqualError(t, err, "unknown log format: xml")
	})

	t.Run("unknown_timestamp_format", func(t *testing.T) {
		_, err := NewLogger(WithTimestampFormat("RFC1123"))
		require.EqualError(t, err, "unknown timestamp format: RFC1123")
	})

	t.Run("json_at_warn", func(t *testing.T) {
		l, err := NewLogger(WithFormat("json"), WithLevel("warn"), WithTimestampFormat("Unix"))
		require.NoError(t, err)
		require.False(t, l.Core().Enabled(zapcore.InfoLevel))
		require.True(t, l.Core().Enabled(zapcore.WarnLevel))
	})
}

func TestNewObserverLogger(t *testing.T) {
	l, logs := NewObserverLogger("warn")
	l.Info("dropped")
	l.Warn("kept")
	require.Equal(t, 1, logs.Len())
	require.Equal(t, 1, logs.FilterMessage("kept").Len())
}
