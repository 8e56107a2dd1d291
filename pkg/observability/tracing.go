package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/agent-protocol/ucp-shopper"

// Tracer provides OpenTelemetry spans for tool invocations. It uses the
// global tracer provider, which is a no-op until the host installs one.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartToolSpan starts a span for one tool invocation.
func (t *Tracer) StartToolSpan(ctx context.Context, tool, sessionID, storeID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "shopper.tool",
		trace.WithAttributes(
			attribute.String("shopper.tool", tool),
			attribute.String("shopper.session_id", sessionID),
			attribute.String("shopper.store_id", storeID),
		),
	)
}

// EndToolSpan ends a tool span with its outcome. Failures mark the span as
// an error.
func (t *Tracer) EndToolSpan(span trace.Span, outcome string, failed bool, detail string) {
	span.SetAttributes(attribute.String("shopper.outcome", outcome))
	if failed {
		span.SetStatus(codes.Error, detail)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
