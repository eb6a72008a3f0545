package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kotel "github.com/kalkwerk/konsil/internal/adapter/otel"
	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/port/executor"
	"github.com/kalkwerk/konsil/internal/port/knowledge"
)

// defaultFactLimit caps how many knowledge facts go into role prompts.
const defaultFactLimit = 12

// Orchestrator runs the consultation plan: strictly sequential role
// execution in priority order, with per-role timeouts, accumulated context
// and token accounting. It never runs roles in parallel.
type Orchestrator struct {
	registry *Registry
	executor executor.RoleExecutor
	kb       knowledge.Base

	defaultTimeout time.Duration
	maxTimeout     time.Duration
	factLimit      int

	onRoleCompleted func(ctx context.Context, c *consult.Consultation, out *consult.RoleOutput)
}

// NewOrchestrator creates an Orchestrator. kb may be nil when no knowledge
// base is configured.
func NewOrchestrator(registry *Registry, exec executor.RoleExecutor, kb knowledge.Base, defaultTimeout, maxTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		registry:       registry,
		executor:       exec,
		kb:             kb,
		defaultTimeout: defaultTimeout,
		maxTimeout:     maxTimeout,
		factLimit:      defaultFactLimit,
	}
}

// SetOnRoleCompleted registers a callback invoked after each successful role
// invocation, before the next role starts.
func (o *Orchestrator) SetOnRoleCompleted(fn func(ctx context.Context, c *consult.Consultation, out *consult.RoleOutput)) {
	o.onRoleCompleted = fn
}

// SetFactLimit overrides how many knowledge facts each consultation may pull
// into role prompts. Values below one keep the default.
func (o *Orchestrator) SetFactLimit(n int) {
	if n > 0 {
		o.factLimit = n
	}
}

// Execute runs every planned role in order, accumulating outputs and usage
// on the consultation. The first failing role aborts the run with a
// *consult.RoleExecutionError; outputs gathered so far stay on the
// consultation for diagnostics.
func (o *Orchestrator) Execute(ctx context.Context, c *consult.Consultation) error {
	cls := c.Classification
	if cls == nil || len(cls.Roles) == 0 {
		return &consult.RoleExecutionError{
			Stage: consult.StageContract,
			Cause: errors.New("consultation has no execution plan"),
		}
	}

	facts := o.lookupFacts(ctx, c)

	for _, spec := range cls.Roles {
		// Cancellation is honored at role boundaries only: a role that
		// already produced output keeps it.
		if err := ctx.Err(); err != nil {
			return &consult.RoleExecutionError{RoleID: spec.RoleID, Stage: consult.StageCancelled, Cause: err}
		}

		out, err := o.runRole(ctx, c, spec.RoleID, facts)
		if err != nil {
			return err
		}

		c.Outputs = append(c.Outputs, *out)
		c.Usage.Add(out)

		slog.Info("role completed",
			"consultation_id", c.ID,
			"role", out.RoleID,
			"confidence", out.Confidence,
			"tokens_in", out.TokensIn,
			"tokens_out", out.TokensOut,
			"duration_ms", out.Duration.Milliseconds(),
			"decisions", len(out.Decisions))

		if o.onRoleCompleted != nil {
			o.onRoleCompleted(ctx, c, out)
		}
	}
	return nil
}

// runRole invokes a single role with its effective timeout and classifies
// any failure into a typed execution error.
func (o *Orchestrator) runRole(ctx context.Context, c *consult.Consultation, roleID string, facts []knowledge.Fact) (*consult.RoleOutput, error) {
	rl, err := o.registry.Get(roleID)
	if err != nil {
		return nil, &consult.RoleExecutionError{RoleID: roleID, Stage: consult.StageContract, Cause: err}
	}

	req := executor.Request{
		Role:         rl,
		Task:         c.Task,
		PriorOutputs: recentFirst(c.Outputs),
		Facts:        facts,
	}

	timeout := rl.EffectiveTimeout(o.defaultTimeout, o.maxTimeout)
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rctx, span := kotel.StartRoleSpan(rctx, c.ID, rl.ID)
	defer span.End()

	start := time.Now()
	out, err := o.executor.Invoke(rctx, req)
	elapsed := time.Since(start)

	if err != nil {
		return nil, classifyInvokeError(roleID, ctx, rctx, err)
	}

	out.RoleID = rl.ID
	out.Duration = elapsed
	out.ClampConfidence()
	if err := out.Validate(); err != nil {
		return nil, &consult.RoleExecutionError{RoleID: rl.ID, Stage: consult.StageContract, Cause: err}
	}
	return out, nil
}

// lookupFacts queries the knowledge base once per consultation. A failing
// lookup degrades the consultation with a warning, it never fails it.
func (o *Orchestrator) lookupFacts(ctx context.Context, c *consult.Consultation) []knowledge.Fact {
	if o.kb == nil || c.Classification == nil || len(c.Classification.Domains) == 0 {
		return nil
	}
	facts, err := o.kb.Lookup(ctx, c.Classification.Domains, o.factLimit)
	if err != nil {
		slog.Warn("knowledge base lookup failed",
			"consultation_id", c.ID, "error", err)
		c.Warn("knowledge base unavailable, roles consulted without normative facts")
		return nil
	}
	return facts
}

// classifyInvokeError maps an executor failure to the right stage. The
// parent context decides between cancellation and a per-role timeout.
func classifyInvokeError(roleID string, parent, rctx context.Context, err error) error {
	var parseErr *consult.ParsingError
	switch {
	case errors.As(err, &parseErr):
		return &consult.RoleExecutionError{RoleID: roleID, Stage: consult.StageParse, Cause: err}
	case parent.Err() != nil:
		return &consult.RoleExecutionError{RoleID: roleID, Stage: consult.StageCancelled, Cause: parent.Err()}
	case errors.Is(err, context.DeadlineExceeded) || rctx.Err() != nil:
		return &consult.RoleExecutionError{RoleID: roleID, Stage: consult.StageTimeout, Cause: err}
	default:
		return &consult.RoleExecutionError{RoleID: roleID, Stage: consult.StageTransport, Cause: err}
	}
}

// recentFirst returns the accumulated outputs ordered most recent first, as
// later roles weigh fresh findings over early ones.
func recentFirst(outputs []consult.RoleOutput) []consult.RoleOutput {
	if len(outputs) == 0 {
		return nil
	}
	rev := make([]consult.RoleOutput, len(outputs))
	for i, o := range outputs {
		rev[len(outputs)-1-i] = o
	}
	return rev
}
