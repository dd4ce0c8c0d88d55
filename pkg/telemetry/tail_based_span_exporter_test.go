package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTailLatencySpanExporter(t *testing.T) {
	record := func(t *testing.T, opts ...TailBasedSpanExporterOption) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
		exporter := tracetest.NewInMemoryExporter()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewTailLatencySpanExporter(exporter, opts...)))
		return exporter, tp
	}

	t.Run("drops_fast_traces", func(t *testing.T) {
		exporter, tp := record(t, WithLatencyInMs(50))
		_, span := tp.Tracer("").Start(context.Background(), "fast")
		span.End()

		require.Empty(t, exporter.GetSpans())
	})

	t.Run("keeps_slow_traces", func(t *testing.T) {
		exporter, tp := record(t, WithLatencyInMs(1))
		_, span := tp.Tracer("").Start(context.Background(), "slow")
		time.Sleep(5 * time.Millisecond)
		span.End()

		require.Len(t, exporter.GetSpans(), 1)
	})

	t.Run("keeps_mismatched_runs", func(t *testing.T) {
		exporter, tp := record(t, WithLatencyInMs(DefaultLatencyInMs))
		_, span := tp.Tracer("").Start(context.Background(), "experiment.Run")
		span.SetAttributes(attribute.Bool("experiment.matched", false))
		span.End()

		require.Len(t, exporter.GetSpans(), 1)
	})

	t.Run("mismatches_can_be_dropped", func(t *testing.T) {
		exporter, tp := record(t, WithLatencyInMs(DefaultLatencyInMs), WithMismatchedTraces(false))
		_, span := tp.Tracer("").Start(context.Background(), "experiment.Run")
		span.SetAttributes(attribute.Bool("experiment.matched", false))
		span.End()

		require.Empty(t, exporter.GetSpans())
	})

	t.Run("nil_exporter", func(t *testing.T) {
		require.NoError(t, NewTailLatencySpanExporter(nil).ExportSpans(context.Background(), nil))
	})
}
