package consult

import (
	"fmt"
	"time"
)

// RoleOutput is the structured result of one role invocation.
type RoleOutput struct {
	RoleID         string          `json:"role_id"`
	Narrative      string          `json:"narrative"`
	Decisions      []DecisionField `json:"decisions,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
	CriticalIssues []string        `json:"critical_issues,omitempty"`
	Confidence     float64         `json:"confidence"`
	TokensIn       int64           `json:"tokens_in"`
	TokensOut      int64           `json:"tokens_out"`
	Duration       time.Duration   `json:"duration_ms"`
	FallbackParsed bool            `json:"fallback_parsed,omitempty"`
}

// ClampConfidence forces the confidence into [0, 1].
func (o *RoleOutput) ClampConfidence() {
	if o.Confidence < 0 {
		o.Confidence = 0
	}
	if o.Confidence > 1 {
		o.Confidence = 1
	}
}

// Validate checks the output against the role contract: a narrative, a
// confidence in range and well-formed decision fields.
func (o *RoleOutput) Validate() error {
	if o.RoleID == "" {
		return fmt.Errorf("role output: missing role id")
	}
	if o.Narrative == "" {
		return fmt.Errorf("role output: empty narrative")
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("role output: confidence %.3f out of [0,1]", o.Confidence)
	}
	for i, d := range o.Decisions {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("role output: decision %d: %w", i, err)
		}
	}
	return nil
}

// Usage accumulates token and wall-clock accounting across a consultation.
type Usage struct {
	TokensIn  int64         `json:"tokens_in"`
	TokensOut int64         `json:"tokens_out"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Add folds one role's accounting into the totals.
func (u *Usage) Add(o *RoleOutput) {
	u.TokensIn += o.TokensIn
	u.TokensOut += o.TokensOut
	u.Elapsed += o.Duration
}

// TotalTokens is prompt plus completion tokens over all roles.
func (u Usage) TotalTokens() int64 {
	return u.TokensIn + u.TokensOut
}
