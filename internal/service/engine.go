package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	kotel "github.com/kalkwerk/konsil/internal/adapter/otel"
	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/port/cache"
	"github.com/kalkwerk/konsil/internal/port/eventbus"
)

// cacheKeyPrefix versions the result cache namespace. Dot-separated so the
// key stays legal for NATS KV backends.
const cacheKeyPrefix = "konsil.v1."

// Engine drives a task through the full consultation pipeline: classify,
// execute roles, detect and resolve conflicts, compute consensus and
// synthesize the final output. It owns the result cache, lifecycle events
// and the consultation state machine.
type Engine struct {
	classifier   *Classifier
	orchestrator *Orchestrator
	detector     *ConflictDetector
	resolver     *ConflictResolver
	consensus    *ConsensusCalculator
	synthesizer  *Synthesizer
	registry     *Registry

	cache    cache.Cache
	cacheTTL time.Duration
	bus      eventbus.Bus
	metrics  *kotel.Metrics

	group singleflight.Group
}

// NewEngine creates an Engine from its stage services. Cache, bus and
// metrics are optional and attached via the Set methods.
func NewEngine(
	classifier *Classifier,
	orchestrator *Orchestrator,
	detector *ConflictDetector,
	resolver *ConflictResolver,
	consensus *ConsensusCalculator,
	synthesizer *Synthesizer,
	registry *Registry,
) *Engine {
	e := &Engine{
		classifier:   classifier,
		orchestrator: orchestrator,
		detector:     detector,
		resolver:     resolver,
		consensus:    consensus,
		synthesizer:  synthesizer,
		registry:     registry,
	}
	orchestrator.SetOnRoleCompleted(e.handleRoleCompleted)
	return e
}

// SetCache attaches the result cache. A zero ttl disables expiry decisions
// at the engine level and stores forever.
func (e *Engine) SetCache(c cache.Cache, ttl time.Duration) {
	e.cache = c
	e.cacheTTL = ttl
}

// SetBus attaches the lifecycle event bus.
func (e *Engine) SetBus(bus eventbus.Bus) {
	e.bus = bus
}

// SetMetrics attaches the metric instruments.
func (e *Engine) SetMetrics(m *kotel.Metrics) {
	e.metrics = m
}

// Consult answers a task. Identical tasks are served from the result cache
// without touching the pipeline; identical concurrent tasks share one run.
func (e *Engine) Consult(ctx context.Context, req consult.CreateRequest) (*consult.FinalOutput, error) {
	task := consult.Task{
		ID:          uuid.NewString(),
		Text:        req.Text,
		Context:     req.Context,
		Kind:        req.Kind,
		Override:    req.Override,
		SubmittedAt: time.Now().UTC(),
	}

	key := cacheKeyPrefix + task.Hash(e.registry.Revision())
	if out := e.cacheGet(ctx, key); out != nil {
		if e.metrics != nil {
			e.metrics.ConsultationsCached.Add(ctx, 1)
		}
		slog.Info("consultation served from cache", "task_id", task.ID, "key", key[:24])
		return out, nil
	}

	v, err, shared := e.group.Do(key, func() (any, error) {
		return e.run(ctx, task, key)
	})
	if err != nil {
		return nil, err
	}
	out := v.(*consult.FinalOutput)
	if shared {
		// A collapsed caller gets its own copy so response mutation in one
		// handler cannot leak into another.
		cp := *out
		out = &cp
	}
	return out, nil
}

// Classify runs the classifier without executing any role, for dry-run
// inspection of the routing decision.
func (e *Engine) Classify(_ context.Context, req consult.CreateRequest) (*consult.Classification, error) {
	task := consult.Task{
		ID:          uuid.NewString(),
		Text:        req.Text,
		Context:     req.Context,
		Kind:        req.Kind,
		Override:    req.Override,
		SubmittedAt: time.Now().UTC(),
	}
	return e.classifier.Classify(task)
}

// run drives the state machine for one uncached consultation.
func (e *Engine) run(ctx context.Context, task consult.Task, key string) (*consult.FinalOutput, error) {
	start := time.Now()
	c := consult.NewConsultation(task.ID, task)

	if e.metrics != nil {
		e.metrics.ConsultationsStarted.Add(ctx, 1)
	}
	e.publish(ctx, eventbus.SubjectAccepted, c, nil)
	slog.Info("consultation accepted", "consultation_id", c.ID, "kind", task.Kind)

	cls, err := e.classifier.Classify(task)
	if err != nil {
		return nil, e.fail(ctx, c, err)
	}
	c.Classification = cls
	e.advance(c, consult.StateClassified)
	e.publish(ctx, eventbus.SubjectClassified, c, map[string]any{
		"complexity": cls.Complexity,
		"domains":    cls.Domains,
		"roles":      len(cls.Roles),
	})
	slog.Info("consultation classified",
		"consultation_id", c.ID,
		"complexity", cls.Complexity,
		"domains", len(cls.Domains),
		"roles", len(cls.Roles),
		"requires_rfi", cls.RequiresRFI)

	if cls.RequiresRFI {
		e.advance(c, consult.StateRFIPending)
		if e.metrics != nil {
			e.metrics.RFIsIssued.Add(ctx, 1)
		}
		e.publish(ctx, eventbus.SubjectRFI, c, map[string]any{
			"missing_fields": cls.MissingFields,
		})
		// RFI responses are never cached: the caller is expected to come
		// back with a different, richer task.
		return e.synthesizer.SynthesizeRFI(c), nil
	}

	e.advance(c, consult.StateExecuting)
	sctx, span := kotel.StartConsultationSpan(ctx, c.ID, string(cls.Complexity))
	err = e.orchestrator.Execute(sctx, c)
	span.End()
	if err != nil {
		return nil, e.fail(ctx, c, err)
	}

	e.advance(c, consult.StateConflictsDetected)
	c.Conflicts = e.detector.Detect(c.Outputs)
	if len(c.Conflicts) > 0 {
		if e.metrics != nil {
			e.metrics.ConflictsDetected.Add(ctx, int64(len(c.Conflicts)))
		}
		e.publish(ctx, eventbus.SubjectConflicts, c, map[string]any{
			"count": len(c.Conflicts),
		})
	}

	e.advance(c, consult.StateResolving)
	c.Resolutions = e.resolver.Resolve(cls, c.Conflicts)
	unresolved := 0
	for _, r := range c.Resolutions {
		if !r.Resolved {
			unresolved++
		}
	}
	if unresolved > 0 && e.metrics != nil {
		e.metrics.ConflictsUnresolved.Add(ctx, int64(unresolved))
	}
	if len(c.Resolutions) > 0 {
		e.publish(ctx, eventbus.SubjectResolved, c, map[string]any{
			"resolved":   len(c.Resolutions) - unresolved,
			"unresolved": unresolved,
		})
	}

	e.advance(c, consult.StateConsensus)
	report := e.consensus.Compute(c.Outputs, c.Conflicts, c.Resolutions)
	c.Consensus = &report
	if report.HITLRequired && e.metrics != nil {
		e.metrics.HITLFlagged.Add(ctx, 1)
	}
	e.publish(ctx, eventbus.SubjectConsensus, c, map[string]any{
		"tier":          report.Tier,
		"agreement":     report.Agreement,
		"hitl_required": report.HITLRequired,
	})

	out := e.synthesizer.Synthesize(c)
	out.ExecutionTimeSeconds = time.Since(start).Seconds()
	e.advance(c, consult.StateDone)

	if e.metrics != nil {
		e.metrics.ConsultationsCompleted.Add(ctx, 1)
		e.metrics.TokensUsed.Add(ctx, out.TotalTokens)
		e.metrics.ConsultationDuration.Record(ctx, out.ExecutionTimeSeconds,
			metric.WithAttributes(attribute.String("tier", string(out.Tier))))
	}
	e.publish(ctx, eventbus.SubjectCompleted, c, map[string]any{
		"status":       out.Status,
		"tier":         out.Tier,
		"total_tokens": out.TotalTokens,
	})
	slog.Info("consultation completed",
		"consultation_id", c.ID,
		"status", out.Status,
		"tier", out.Tier,
		"roles", len(out.RolesConsulted),
		"conflicts", len(out.Conflicts),
		"hitl_required", out.HITLRequired,
		"total_tokens", out.TotalTokens,
		"duration_s", out.ExecutionTimeSeconds)

	e.cacheSet(ctx, key, out)
	return out, nil
}

// handleRoleCompleted is the orchestrator hook: per-role metrics and events.
func (e *Engine) handleRoleCompleted(ctx context.Context, c *consult.Consultation, out *consult.RoleOutput) {
	if e.metrics != nil {
		e.metrics.RoleInvocations.Add(ctx, 1,
			metric.WithAttributes(attribute.String("role", out.RoleID)))
		e.metrics.RoleDuration.Record(ctx, out.Duration.Seconds(),
			metric.WithAttributes(attribute.String("role", out.RoleID)))
	}
	e.publish(ctx, eventbus.SubjectRoleCompleted, c, map[string]any{
		"role":       out.RoleID,
		"confidence": out.Confidence,
		"tokens":     out.TokensIn + out.TokensOut,
	})
}

// fail marks the consultation failed, reports it and passes the cause on.
func (e *Engine) fail(ctx context.Context, c *consult.Consultation, cause error) error {
	if err := c.Fail(cause); err != nil {
		slog.Error("consultation fail transition", "consultation_id", c.ID, "error", err)
	}
	if e.metrics != nil {
		e.metrics.ConsultationsFailed.Add(ctx, 1)
	}
	e.publish(ctx, eventbus.SubjectFailed, c, map[string]any{
		"error": cause.Error(),
	})
	slog.Error("consultation failed", "consultation_id", c.ID, "state", c.State, "error", cause)
	return cause
}

// advance moves the state machine. Illegal edges are programming errors;
// they are logged, never panicked on.
func (e *Engine) advance(c *consult.Consultation, next consult.State) {
	if err := c.Advance(next); err != nil {
		slog.Error("consultation state transition", "consultation_id", c.ID, "error", err)
	}
}

// event is the JSON envelope published for every lifecycle change.
type event struct {
	ID             string         `json:"id"`
	ConsultationID string         `json:"consultation_id"`
	State          consult.State  `json:"state"`
	At             time.Time      `json:"at"`
	Detail         map[string]any `json:"detail,omitempty"`
}

// publish emits a lifecycle event. Publish failures degrade to a log line.
func (e *Engine) publish(ctx context.Context, subject string, c *consult.Consultation, detail map[string]any) {
	if e.bus == nil {
		return
	}
	data, err := json.Marshal(event{
		ID:             uuid.NewString(),
		ConsultationID: c.ID,
		State:          c.State,
		At:             time.Now().UTC(),
		Detail:         detail,
	})
	if err != nil {
		slog.Warn("marshal lifecycle event", "subject", subject, "error", err)
		return
	}
	if err := e.bus.Publish(ctx, subject, data); err != nil {
		slog.Warn("publish lifecycle event", "subject", subject, "error", err)
	}
}

// cacheGet returns a decoded cached output, or nil on miss or error.
func (e *Engine) cacheGet(ctx context.Context, key string) *consult.FinalOutput {
	if e.cache == nil {
		return nil
	}
	data, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("result cache get", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var out consult.FinalOutput
	if err := json.Unmarshal(data, &out); err != nil {
		slog.Warn("result cache decode", "error", err)
		return nil
	}
	out.CacheHit = true
	return &out
}

// cacheSet stores a finished output under the task key.
func (e *Engine) cacheSet(ctx context.Context, key string, out *consult.FinalOutput) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(out)
	if err != nil {
		slog.Warn("result cache encode", "error", err)
		return
	}
	if err := e.cache.Set(ctx, key, data, e.cacheTTL); err != nil {
		slog.Warn("result cache set", "error", err)
	}
}
