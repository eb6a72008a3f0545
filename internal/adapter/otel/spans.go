package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "konsil"

// StartConsultationSpan starts a span for one consultation.
func StartConsultationSpan(ctx context.Context, consultationID, complexity string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "consultation",
		trace.WithAttributes(
			attribute.String("consultation.id", consultationID),
			attribute.String("consultation.complexity", complexity),
		),
	)
}

// StartRoleSpan starts a span for a role invocation within a consultation.
func StartRoleSpan(ctx context.Context, consultationID, roleID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "role",
		trace.WithAttributes(
			attribute.String("consultation.id", consultationID),
			attribute.String("role.id", roleID),
		),
	)
}
