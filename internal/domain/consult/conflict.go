package consult

// Severity grades how dangerous a conflict is if left unresolved.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// rank orders severities for comparisons; higher is worse.
func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// AtLeast reports whether s is as severe as other or worse.
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// ConflictPosition is one role's stake in a conflict: the decision it took
// and the confidence behind it.
type ConflictPosition struct {
	RoleID     string        `json:"role_id"`
	Decision   DecisionField `json:"decision"`
	Confidence float64       `json:"confidence"`
}

// Conflict records that two or more roles took distinct decisions of the
// same kind. Positions keep role execution order.
type Conflict struct {
	ID        string             `json:"id"`
	Kind      DecisionKind       `json:"kind"`
	Positions []ConflictPosition `json:"positions"`
	Severity  Severity           `json:"severity"`
	Summary   string             `json:"summary"`
}

// Roles returns the IDs of all roles party to the conflict, in position order.
func (c *Conflict) Roles() []string {
	ids := make([]string, 0, len(c.Positions))
	for _, p := range c.Positions {
		ids = append(ids, p.RoleID)
	}
	return ids
}
