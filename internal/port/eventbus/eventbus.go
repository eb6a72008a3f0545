// Package eventbus defines the port for publishing consultation lifecycle
// events.
package eventbus

import "context"

// Handler processes a message received from the bus.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Bus is the port interface for publishing and subscribing to lifecycle
// events. Publishing is fire-and-forget from the engine's perspective: a
// failed publish is logged, never escalated.
type Bus interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the bus connection immediately.
	Close() error

	// IsConnected reports whether the bus is currently connected.
	IsConnected() bool
}

// Subject constants for consultation lifecycle events. SubjectAll matches
// every lifecycle subject, for consumers that want the whole stream.
const (
	SubjectAll           = "konsil.consultation.>"
	SubjectAccepted      = "konsil.consultation.accepted"
	SubjectClassified    = "konsil.consultation.classified"
	SubjectRFI           = "konsil.consultation.rfi"
	SubjectRoleCompleted = "konsil.consultation.role_completed"
	SubjectConflicts     = "konsil.consultation.conflicts"
	SubjectResolved      = "konsil.consultation.resolved"
	SubjectConsensus     = "konsil.consultation.consensus"
	SubjectCompleted     = "konsil.consultation.completed"
	SubjectFailed        = "konsil.consultation.failed"
)
