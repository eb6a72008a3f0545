package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "konsil"

// Metrics holds all Konsil metric instruments.
type Metrics struct {
	ConsultationsStarted   metric.Int64Counter
	ConsultationsCompleted metric.Int64Counter
	ConsultationsFailed    metric.Int64Counter
	ConsultationsCached    metric.Int64Counter
	RFIsIssued             metric.Int64Counter
	RoleInvocations        metric.Int64Counter
	ConflictsDetected      metric.Int64Counter
	ConflictsUnresolved    metric.Int64Counter
	HITLFlagged            metric.Int64Counter
	TokensUsed             metric.Int64Counter
	RoleDuration           metric.Float64Histogram
	ConsultationDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ConsultationsStarted, err = meter.Int64Counter("konsil.consultations.started",
		metric.WithDescription("Number of consultations started"))
	if err != nil {
		return nil, err
	}

	m.ConsultationsCompleted, err = meter.Int64Counter("konsil.consultations.completed",
		metric.WithDescription("Number of consultations completed"))
	if err != nil {
		return nil, err
	}

	m.ConsultationsFailed, err = meter.Int64Counter("konsil.consultations.failed",
		metric.WithDescription("Number of consultations failed"))
	if err != nil {
		return nil, err
	}

	m.ConsultationsCached, err = meter.Int64Counter("konsil.consultations.cached",
		metric.WithDescription("Number of consultations served from cache"))
	if err != nil {
		return nil, err
	}

	m.RFIsIssued, err = meter.Int64Counter("konsil.consultations.rfi",
		metric.WithDescription("Number of consultations answered with a request for information"))
	if err != nil {
		return nil, err
	}

	m.RoleInvocations, err = meter.Int64Counter("konsil.roles.invocations",
		metric.WithDescription("Number of role invocations"))
	if err != nil {
		return nil, err
	}

	m.ConflictsDetected, err = meter.Int64Counter("konsil.conflicts.detected",
		metric.WithDescription("Number of conflicts detected"))
	if err != nil {
		return nil, err
	}

	m.ConflictsUnresolved, err = meter.Int64Counter("konsil.conflicts.unresolved",
		metric.WithDescription("Number of conflicts no policy could settle"))
	if err != nil {
		return nil, err
	}

	m.HITLFlagged, err = meter.Int64Counter("konsil.consultations.hitl",
		metric.WithDescription("Number of consultations flagged for human review"))
	if err != nil {
		return nil, err
	}

	m.TokensUsed, err = meter.Int64Counter("konsil.tokens.used",
		metric.WithDescription("Prompt and completion tokens consumed"))
	if err != nil {
		return nil, err
	}

	m.RoleDuration, err = meter.Float64Histogram("konsil.role.duration_seconds",
		metric.WithDescription("Role invocation duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.ConsultationDuration, err = meter.Float64Histogram("konsil.consultation.duration_seconds",
		metric.WithDescription("End-to-end consultation duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
