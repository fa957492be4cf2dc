// Package buildtrace wires kiln's build phases into OpenTelemetry:
// tracer initialization, exporter selection, and span helpers for
// per-phase and per-item tracing.
package buildtrace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/kilnbuild/kiln"

// Tracer returns the global tracer for kiln build instrumentation.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Init creates and registers a global TracerProvider. It returns a
// shutdown function that flushes pending spans; the caller should defer
// it. Supported exporter values: "stdout", "otlp-grpc", "otlp-http",
// "none" (a no-op provider, the default — most kiln builds run on a
// developer's laptop with nothing to export to).
func Init(ctx context.Context, version, exporter, endpoint string, sampleRate float64, insecure bool) (shutdown func(context.Context) error, err error) {
	if exporter == "" || exporter == "none" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("kiln"),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("buildtrace: creating otel resource: %w", err)
	}

	exp, err := newExporter(ctx, exporter, endpoint, insecure)
	if err != nil {
		return nil, fmt.Errorf("buildtrace: creating otel exporter: %w", err)
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, name, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp-grpc":
		opts := []otlptracegrpc.Option{}
		if endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
		}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "otlp-http":
		opts := []otlptracehttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("buildtrace: unknown exporter %q (supported: stdout, otlp-grpc, otlp-http, none)", name)
	}
}

// StartPhase starts a span named after an orchestrator phase (the
// orchestrator records "run", "discover", "render" and "hooks").
func StartPhase(ctx context.Context, phase string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "kiln.phase."+phase)
}

// StartItem starts a child span for rendering or writing a single item.
func StartItem(ctx context.Context, op string, itemKey string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "kiln.item."+op)
	span.SetAttributes(attribute.String("kiln.item_key", itemKey))
	return ctx, span
}
