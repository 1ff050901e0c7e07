package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "testforge"

// StartSessionSpan starts a span covering one requirements submission.
func StartSessionSpan(ctx context.Context, sessionID, category string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "session",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("session.category", category),
		),
	)
}

// StartScenarioSpan starts a span for one scenario execution on a worker.
func StartScenarioSpan(ctx context.Context, sessionID, scenarioID, agentKey string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "scenario",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("scenario.id", scenarioID),
			attribute.String("agent.key", agentKey),
		),
	)
}

// StartVerificationSpan starts a span for the session verdict computation.
func StartVerificationSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "verification",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
		),
	)
}
