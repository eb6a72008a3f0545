// Package consult defines the consultation domain: tasks, classifications,
// role outputs, conflicts, resolutions, consensus reports and the final
// synthesized output of a multi-role consultation.
package consult

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind distinguishes the two task shapes the engine accepts.
type Kind string

const (
	// KindQuestion is a free-form technical question.
	KindQuestion Kind = "question"
	// KindPositionAudit is a cost-estimate line item to audit.
	KindPositionAudit Kind = "position_audit"
)

// MinTaskLength is the default minimum viable task text length in runes.
// Configurable via engine.min_task_length.
const MinTaskLength = 12

// Task is the unit of work submitted to the engine.
type Task struct {
	ID          string         `json:"id"`
	Text        string         `json:"text"`
	Context     map[string]any `json:"context,omitempty"`
	Kind        Kind           `json:"kind"`
	Override    *Override      `json:"override,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

// Override lets a caller pin the classification instead of deriving it.
// Either field may be set; both are validated before use.
type Override struct {
	Complexity Complexity `json:"complexity,omitempty"`
	Roles      []RoleSpec `json:"roles,omitempty"`
}

// CreateRequest holds the fields for submitting a new consultation task.
type CreateRequest struct {
	Text     string         `json:"text"`
	Context  map[string]any `json:"context,omitempty"`
	Kind     Kind           `json:"kind,omitempty"`
	Override *Override      `json:"override,omitempty"`
}

// Validate checks the request against the given minimum text length.
// Violations wrap domain.ErrValidation so the transport layer maps them to 400.
func (r *CreateRequest) Validate(minLength int) error {
	if minLength <= 0 {
		minLength = MinTaskLength
	}
	text := strings.TrimSpace(r.Text)
	if utf8.RuneCountInString(text) < minLength {
		return &ClassificationError{
			Reason: fmt.Sprintf("task text too short: need at least %d characters of substance", minLength),
		}
	}
	switch r.Kind {
	case "", KindQuestion, KindPositionAudit:
	default:
		return &ClassificationError{Reason: fmt.Sprintf("unknown task kind %q", r.Kind)}
	}
	if r.Override != nil {
		if err := r.Override.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that an override names a known complexity and that any
// explicit role list keeps priorities non-decreasing. Role existence is
// checked later against the registry.
func (o *Override) Validate() error {
	if o.Complexity != "" && !o.Complexity.Valid() {
		return &ClassificationError{Reason: fmt.Sprintf("unknown complexity override %q", o.Complexity)}
	}
	for i := 1; i < len(o.Roles); i++ {
		if o.Roles[i].Priority < o.Roles[i-1].Priority {
			return &ClassificationError{
				Reason: fmt.Sprintf("override role %q breaks priority order (%d after %d)",
					o.Roles[i].RoleID, o.Roles[i].Priority, o.Roles[i-1].Priority),
			}
		}
	}
	return nil
}

// NormalizedText returns the task text trimmed and lowercased for
// classification and hashing.
func (t *Task) NormalizedText() string {
	return strings.ToLower(strings.TrimSpace(t.Text))
}
