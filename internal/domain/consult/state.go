package consult

import (
	"fmt"

	"github.com/kalkwerk/konsil/internal/domain"
)

// State is the lifecycle position of a consultation.
type State string

const (
	StateInit              State = "init"
	StateClassified        State = "classified"
	StateRFIPending        State = "rfi_pending"
	StateExecuting         State = "executing"
	StateConflictsDetected State = "conflicts_detected"
	StateResolving         State = "resolving"
	StateConsensus         State = "consensus"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// IsTerminal returns true if the consultation is in a final state.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed || s == StateRFIPending
}

// transitions is the legal edge set of the consultation lifecycle. Failure
// is reachable from every non-terminal state.
var transitions = map[State][]State{
	StateInit:              {StateClassified, StateFailed},
	StateClassified:        {StateRFIPending, StateExecuting, StateFailed},
	StateExecuting:         {StateConflictsDetected, StateFailed},
	StateConflictsDetected: {StateResolving, StateFailed},
	StateResolving:         {StateConsensus, StateFailed},
	StateConsensus:         {StateDone, StateFailed},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Consultation tracks one task through the pipeline. Stage services fill in
// their results as the state advances.
type Consultation struct {
	ID             string           `json:"id"`
	Task           Task             `json:"task"`
	State          State            `json:"state"`
	Classification *Classification  `json:"classification,omitempty"`
	Outputs        []RoleOutput     `json:"outputs,omitempty"`
	Conflicts      []Conflict       `json:"conflicts,omitempty"`
	Resolutions    []Resolution     `json:"resolutions,omitempty"`
	Consensus      *ConsensusReport `json:"consensus,omitempty"`
	Usage          Usage            `json:"usage"`
	Warnings       []string         `json:"warnings,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// Warn records a pipeline-level warning (degraded knowledge base, fallback
// parses and similar) for the final output.
func (c *Consultation) Warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

// NewConsultation starts a consultation in the init state.
func NewConsultation(id string, task Task) *Consultation {
	return &Consultation{ID: id, Task: task, State: StateInit}
}

// Advance moves the consultation to next, rejecting illegal edges with
// domain.ErrConflict.
func (c *Consultation) Advance(next State) error {
	if !c.State.CanTransition(next) {
		return fmt.Errorf("%w: consultation %s cannot move %s -> %s",
			domain.ErrConflict, c.ID, c.State, next)
	}
	c.State = next
	return nil
}

// Fail moves the consultation to the failed state and records the cause.
// Failing a terminal consultation is rejected.
func (c *Consultation) Fail(cause error) error {
	if c.State.IsTerminal() {
		return fmt.Errorf("%w: consultation %s already terminal in %s",
			domain.ErrConflict, c.ID, c.State)
	}
	c.State = StateFailed
	if cause != nil {
		c.Error = cause.Error()
	}
	return nil
}
