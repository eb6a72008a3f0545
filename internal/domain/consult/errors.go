package consult

import (
	"fmt"

	"github.com/kalkwerk/konsil/internal/domain"
)

// ClassificationError means the task could not be classified: too short,
// unusable, or carrying an invalid override. It unwraps to
// domain.ErrValidation so transports map it to a client error.
type ClassificationError struct {
	Reason string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed: %s", e.Reason)
}

func (e *ClassificationError) Unwrap() error { return domain.ErrValidation }

// ParsingError means an executor reply did not match the role's output
// schema. It is transient: the executor attempts one loosened re-parse
// before surfacing it.
type ParsingError struct {
	RoleID string
	Raw    string
	Cause  error
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("role %s: output parse failed: %v", e.RoleID, e.Cause)
}

func (e *ParsingError) Unwrap() error { return e.Cause }

// Stage names the phase of a role invocation that failed.
type Stage string

const (
	StageTransport Stage = "transport"
	StageTimeout   Stage = "timeout"
	StageParse     Stage = "parse"
	StageCancelled Stage = "cancelled"
	StageContract  Stage = "contract"
)

// RoleExecutionError means one role invocation failed fatally and the
// consultation cannot complete. It carries the failing role and stage.
type RoleExecutionError struct {
	RoleID string
	Stage  Stage
	Cause  error
}

func (e *RoleExecutionError) Error() string {
	return fmt.Sprintf("role %s failed at %s: %v", e.RoleID, e.Stage, e.Cause)
}

func (e *RoleExecutionError) Unwrap() error { return e.Cause }
