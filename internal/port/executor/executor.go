// Package executor defines the port through which consultant roles are
// invoked. The engine never talks to a model provider directly.
package executor

import (
	"context"

	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/domain/role"
	"github.com/kalkwerk/konsil/internal/port/knowledge"
)

// Request carries everything one role invocation needs: the role itself,
// the task, the outputs of previously consulted roles ordered most recent
// first, and any knowledge-base facts relevant to the task's domains.
type Request struct {
	Role         *role.Role
	Task         consult.Task
	PriorOutputs []consult.RoleOutput
	Facts        []knowledge.Fact
}

// RoleExecutor invokes a single role and returns its structured output.
// Implementations must respect ctx cancellation and deadlines, clamp the
// returned confidence to [0,1], and perform at most one loosened re-parse
// before returning a *consult.ParsingError.
type RoleExecutor interface {
	Invoke(ctx context.Context, req Request) (*consult.RoleOutput, error)
}
