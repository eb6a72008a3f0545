// Package role defines the consultant Role entity: a named specialist with
// its domains, decision authority, sampling temperature and prompt template.
package role

import (
	"fmt"
	"time"

	"github.com/kalkwerk/konsil/internal/domain/consult"
)

// MaxTimeout caps any role's execution window. Per-role timeouts above the
// cap are clamped, never honored.
const MaxTimeout = 90 * time.Second

// Role represents one specialist consultant in the registry.
type Role struct {
	ID           string                 `json:"id" yaml:"id"`
	Name         string                 `json:"name" yaml:"name"`
	Description  string                 `json:"description" yaml:"description"`
	Builtin      bool                   `json:"builtin" yaml:"-"`
	Domains      []consult.Domain       `json:"domains" yaml:"domains"`
	AuthorityFor []consult.DecisionKind `json:"authority_for,omitempty" yaml:"authority_for"`
	Temperature  float64                `json:"temperature" yaml:"temperature"`
	Timeout      time.Duration          `json:"timeout" yaml:"timeout"`
	SystemPrompt string                 `json:"system_prompt,omitempty" yaml:"system_prompt"`
}

// Validate checks that a Role has all required fields and valid values.
func (r *Role) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	for _, d := range r.Domains {
		if !d.Valid() {
			return fmt.Errorf("unknown domain %q", d)
		}
	}
	for _, k := range r.AuthorityFor {
		if !k.Valid() {
			return fmt.Errorf("unknown decision kind %q", k)
		}
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %.2f", r.Temperature)
	}
	if r.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// EffectiveTimeout returns the role's execution window clamped to the given
// cap (or MaxTimeout when cap is zero). Roles without a timeout inherit the
// default.
func (r *Role) EffectiveTimeout(defaultTimeout, cap time.Duration) time.Duration {
	if cap <= 0 {
		cap = MaxTimeout
	}
	t := r.Timeout
	if t <= 0 {
		t = defaultTimeout
	}
	if t <= 0 || t > cap {
		t = cap
	}
	return t
}

// IsAuthorityFor reports whether the role holds decision authority for the
// given kind.
func (r *Role) IsAuthorityFor(kind consult.DecisionKind) bool {
	for _, k := range r.AuthorityFor {
		if k == kind {
			return true
		}
	}
	return false
}
