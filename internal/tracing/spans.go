package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StartRun opens the span covering the entire scheduler run.
func StartRun(ctx context.Context, totalTests int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "scheduler.run",
		trace.WithAttributes(attribute.Int("test.total", totalTests)))
}

// StartPollCycle opens a span for one iteration of the poll loop.
func StartPollCycle(ctx context.Context, running, pending int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "scheduler.poll_cycle",
		trace.WithAttributes(
			attribute.Int("test.running", running),
			attribute.Int("test.pending", pending),
		))
}

// StartTestDispatch opens a span covering a single test's dispatch and
// execution.
func StartTestDispatch(ctx context.Context, id int, name string, processors int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "scheduler.test",
		trace.WithAttributes(
			attribute.Int("test.id", id),
			attribute.String("test.name", name),
			attribute.Int("test.processors", processors),
		))
}
