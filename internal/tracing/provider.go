// Package tracing wires OpenTelemetry spans around a scheduler run: one
// span covering the whole run, one per poll cycle, and one per test
// dispatch. Spans are exported as JSON Lines to a local file rather than
// shipped to a collector, since a batch test run has no fleet to phone
// home to — the point is a local, greppable record of dispatch timing.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/kitware/ctest-go/internal/scheduler"

// Setup configures the global trace provider with a JSONL file exporter
// and returns a shutdown func the caller must invoke (flushing and
// closing the file) before the process exits. If path is empty, tracing
// is a no-op: Setup leaves the global provider untouched and returns a
// shutdown that does nothing.
func Setup(ctx context.Context, path, serviceName string) (shutdown func(context.Context) error, err error) {
	if path == "" {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := NewJSONLExporter(path)
	if err != nil {
		return nil, fmt.Errorf("tracing: creating exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("tracing: shutting down provider: %w", err)
		}
		return nil
	}, nil
}

// Tracer returns the package-level tracer used to start scheduler spans.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
