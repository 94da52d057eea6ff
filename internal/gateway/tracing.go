// Tracing instrumentation for gateway invocations.
package gateway

import (
	"context"

	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// startActionSpan starts a span for one action invocation.
func (g *Gateway) startActionSpan(ctx context.Context, spec ActionSpec, user string) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "action."+spec.Name)
	span.SetAttributes(
		attribute.String("action.name", spec.Name),
		attribute.String("action.tier", spec.Tier.String()),
		attribute.String("action.user", user),
	)
	return ctx, span
}

// endActionSpan ends the span with the audit outcome.
func (g *Gateway) endActionSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("action.outcome", outcome))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
