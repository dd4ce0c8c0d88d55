package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfga/scientist/internal/build"
)

type TracerOption func(d *CustomTracer)

func WithOTLPEndpoint(endpoint string) TracerOption {
	return func(d *CustomTracer) {
		d.endpoint = endpoint
	}
}

func WithServiceName(serviceName string) TracerOption {
	return func(d *CustomTracer) {
		d.serviceName = serviceName
	}
}

func WithSamplingRatio(samplingRatio float64) TracerOption {
	return func(d *CustomTracer) {
		d.samplingRatio = samplingRatio
	}
}

// WithAttributes adds resource attributes to every span.
func WithAttributes(attrs ...attribute.KeyValue) TracerOption {
	return func(d *CustomTracer) {
		d.attributes = append(d.attributes, attrs...)
	}
}

// WithExporter replaces the OTLP exporter.
func WithExporter(exporter sdktrace.SpanExporter) TracerOption {
	return func(d *CustomTracer) {
		d.exporter = exporter
	}
}

func WithEnableTailLatencySpanExporter(enable bool) TracerOption {
	return func(d *CustomTracer) {
		d.enableTailLatencySpanExporter = enable
	}
}

func WithTailLatencyInMillisecond(latency int) TracerOption {
	return func(d *CustomTracer) {
		d.tailLatencyInMs = latency
	}
}

type CustomTracer struct {
	endpoint    string
	serviceName string
	attributes  []attribute.KeyValue
	exporter    sdktrace.SpanExporter

	samplingRatio float64

	enableTailLatencySpanExporter bool
	tailLatencyInMs               int
}

// MustNewTracerProvider builds a tracer provider exporting to an OTLP gRPC
// endpoint and installs it as the global provider.
func MustNewTracerProvider(opts ...TracerOption) TracerProvider {
	tracer := &CustomTracer{
		endpoint:                      "",
		serviceName:                   build.ProjectName,
		samplingRatio:                 0,
		enableTailLatencySpanExporter: false,
		tailLatencyInMs:               DefaultLatencyInMs,
	}

	for _, opt := range opts {
		opt(tracer)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(append([]attribute.KeyValue{
			semconv.ServiceNameKey.String(tracer.serviceName),
			semconv.ServiceVersionKey.String(build.Version),
		}, tracer.attributes...)...))
	if err != nil {
		panic(err)
	}

	exp := tracer.exporter
	if exp == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		exp, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(tracer.endpoint),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create the otlp exporter: %v", err))
		}
	}

	if tracer.enableTailLatencySpanExporter {
		exp = NewTailLatencySpanExporter(exp, WithLatencyInMs(tracer.tailLatencyInMs))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tracer.samplingRatio))),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exp)),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	otel.SetTracerProvider(tp)

	return &tracerProvider{tp: tp}
}

func TraceError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
