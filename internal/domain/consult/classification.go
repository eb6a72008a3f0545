package consult

import "fmt"

// Domain is one entry of the fixed six-domain vocabulary a task can touch.
type Domain string

const (
	DomainStructural      Domain = "structural"
	DomainGeotechnics     Domain = "geotechnics"
	DomainMaterial        Domain = "material"
	DomainBuildingPhysics Domain = "building_physics"
	DomainFireSafety      Domain = "fire_safety"
	DomainCost            Domain = "cost"
)

// AllDomains lists the vocabulary in canonical consultation order. The order
// also fixes role priorities: earlier domains consult earlier.
var AllDomains = []Domain{
	DomainStructural,
	DomainGeotechnics,
	DomainMaterial,
	DomainBuildingPhysics,
	DomainFireSafety,
	DomainCost,
}

// Valid reports whether d is part of the vocabulary.
func (d Domain) Valid() bool {
	for _, known := range AllDomains {
		if d == known {
			return true
		}
	}
	return false
}

// Complexity grades how demanding a task is, derived from the number of
// domains it touches.
type Complexity string

const (
	// ComplexitySimple covers single-domain tasks.
	ComplexitySimple Complexity = "simple"
	// ComplexityStandard covers two-domain tasks.
	ComplexityStandard Complexity = "standard"
	// ComplexityComplex covers tasks touching three or more domains.
	ComplexityComplex Complexity = "complex"
	// ComplexityCreative covers open-ended tasks with no recognized domain.
	ComplexityCreative Complexity = "creative"
)

// Valid reports whether c is a known complexity grade.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityStandard, ComplexityComplex, ComplexityCreative:
		return true
	}
	return false
}

// RoleSpec names one role to consult, its execution priority and why it was
// selected. Lower priority runs earlier.
type RoleSpec struct {
	RoleID   string `json:"role_id"`
	Priority int    `json:"priority"`
	Reason   string `json:"reason,omitempty"`
}

// Classification is the routing decision for a task: which domains it
// touches, how complex it is, which roles to consult in which order, and
// whether required context fields are missing.
type Classification struct {
	TaskID        string     `json:"task_id"`
	Kind          Kind       `json:"kind"`
	Complexity    Complexity `json:"complexity"`
	Domains       []Domain   `json:"domains"`
	Roles         []RoleSpec `json:"roles"`
	RequiresRFI   bool       `json:"requires_rfi"`
	MissingFields []string   `json:"missing_fields,omitempty"`
	Overridden    bool       `json:"overridden,omitempty"`
}

// Validate checks the structural invariants of a classification: a valid
// complexity, at least one role unless an RFI is pending, and priorities
// that never decrease in list order.
func (c *Classification) Validate() error {
	if !c.Complexity.Valid() {
		return fmt.Errorf("classification: invalid complexity %q", c.Complexity)
	}
	for _, d := range c.Domains {
		if !d.Valid() {
			return fmt.Errorf("classification: unknown domain %q", d)
		}
	}
	if !c.RequiresRFI && len(c.Roles) == 0 {
		return fmt.Errorf("classification: no roles selected")
	}
	for i := 1; i < len(c.Roles); i++ {
		if c.Roles[i].Priority < c.Roles[i-1].Priority {
			return fmt.Errorf("classification: role %q priority %d after %d",
				c.Roles[i].RoleID, c.Roles[i].Priority, c.Roles[i-1].Priority)
		}
	}
	return nil
}

// HasDomain reports whether d is among the classified domains.
func (c *Classification) HasDomain(d Domain) bool {
	for _, got := range c.Domains {
		if got == d {
			return true
		}
	}
	return false
}
