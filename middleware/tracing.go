package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openjobspec/ojs-go/job"
)

// tracerName is the instrumentation scope name for ojs tracing.
const tracerName = "github.com/openjobspec/ojs-go"

// Tracing returns middleware that wraps job execution in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used
// and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: ojs.job.id, ojs.job.type, ojs.queue, and
// ojs.attempt. On error, the span status is set to codes.Error with the
// error message.
func Tracing() Func {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Func {
	return func(ctx context.Context, ex *job.Execution, next Next) (any, error) {
		ctx, span := tracer.Start(ctx, "ojs.job.execute",
			trace.WithAttributes(
				attribute.String("ojs.job.id", ex.Job.ID.String()),
				attribute.String("ojs.job.type", ex.Job.Type),
				attribute.String("ojs.queue", ex.Job.Queue),
				attribute.Int("ojs.attempt", ex.Job.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindConsumer),
		)
		defer span.End()

		result, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return result, err
	}
}
