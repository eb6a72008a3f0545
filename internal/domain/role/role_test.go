package role_test

import (
	"testing"
	"time"

	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/domain/role"
)

func TestRoleValidate_Valid(t *testing.T) {
	r := &role.Role{
		ID:          "timber-specialist",
		Name:        "Timber Specialist",
		Domains:     []consult.Domain{consult.DomainStructural, consult.DomainMaterial},
		Temperature: 0.2,
		Timeout:     60 * time.Second,
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid, got: %v", err)
	}
}

func TestRoleValidate_MissingID(t *testing.T) {
	r := &role.Role{Name: "Nameless"}
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestRoleValidate_MissingName(t *testing.T) {
	r := &role.Role{ID: "x"}
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestRoleValidate_UnknownDomain(t *testing.T) {
	r := &role.Role{ID: "x", Name: "X", Domains: []consult.Domain{"plumbing"}}
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for unknown domain")
	}
}

func TestRoleValidate_UnknownAuthorityKind(t *testing.T) {
	r := &role.Role{ID: "x", Name: "X", AuthorityFor: []consult.DecisionKind{"aesthetic"}}
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for unknown decision kind")
	}
}

func TestRoleValidate_TemperatureRange(t *testing.T) {
	r := &role.Role{ID: "x", Name: "X", Temperature: 2.5}
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for temperature above 2")
	}
	r.Temperature = -0.1
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for negative temperature")
	}
}

func TestRoleValidate_NegativeTimeout(t *testing.T) {
	r := &role.Role{ID: "x", Name: "X", Timeout: -time.Second}
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for negative timeout")
	}
}

func TestEffectiveTimeout_OwnValue(t *testing.T) {
	r := &role.Role{Timeout: 45 * time.Second}
	if got := r.EffectiveTimeout(60*time.Second, 90*time.Second); got != 45*time.Second {
		t.Fatalf("timeout = %v, want role's own 45s", got)
	}
}

func TestEffectiveTimeout_InheritsDefault(t *testing.T) {
	r := &role.Role{}
	if got := r.EffectiveTimeout(60*time.Second, 90*time.Second); got != 60*time.Second {
		t.Fatalf("timeout = %v, want default 60s", got)
	}
}

func TestEffectiveTimeout_ClampsToCap(t *testing.T) {
	r := &role.Role{Timeout: 10 * time.Minute}
	if got := r.EffectiveTimeout(60*time.Second, 90*time.Second); got != 90*time.Second {
		t.Fatalf("timeout = %v, want clamped to 90s", got)
	}
}

func TestEffectiveTimeout_ZeroCapUsesMax(t *testing.T) {
	r := &role.Role{Timeout: 10 * time.Minute}
	if got := r.EffectiveTimeout(60*time.Second, 0); got != role.MaxTimeout {
		t.Fatalf("timeout = %v, want MaxTimeout %v", got, role.MaxTimeout)
	}
}

func TestEffectiveTimeout_NothingSetFallsToCap(t *testing.T) {
	r := &role.Role{}
	if got := r.EffectiveTimeout(0, 90*time.Second); got != 90*time.Second {
		t.Fatalf("timeout = %v, want cap when nothing else is set", got)
	}
}

func TestIsAuthorityFor(t *testing.T) {
	r := &role.Role{AuthorityFor: []consult.DecisionKind{consult.DecisionCompliance}}
	if !r.IsAuthorityFor(consult.DecisionCompliance) {
		t.Fatal("expected authority for compliance")
	}
	if r.IsAuthorityFor(consult.DecisionCost) {
		t.Fatal("no authority for cost expected")
	}
}

func TestBuiltins_AllValid(t *testing.T) {
	for _, r := range role.Builtins() {
		if err := r.Validate(); err != nil {
			t.Errorf("builtin %q invalid: %v", r.ID, err)
		}
		if !r.Builtin {
			t.Errorf("builtin %q not flagged as builtin", r.ID)
		}
		if r.SystemPrompt == "" {
			t.Errorf("builtin %q has no system prompt", r.ID)
		}
	}
}

func TestBuiltins_CoversEveryDomain(t *testing.T) {
	covered := make(map[consult.Domain]bool)
	for _, r := range role.Builtins() {
		for _, d := range r.Domains {
			covered[d] = true
		}
	}
	for _, d := range consult.AllDomains {
		if !covered[d] {
			t.Errorf("no builtin role covers domain %q", d)
		}
	}
}

func TestBuiltins_ExpectedRoster(t *testing.T) {
	want := map[string]bool{
		"structural-engineer":    true,
		"geotechnics-consultant": true,
		"material-specialist":    true,
		"building-physicist":     true,
		"fire-safety-assessor":   true,
		"cost-estimator":         true,
		"compliance-auditor":     true,
		"generalist-consultant":  true,
	}
	builtins := role.Builtins()
	if len(builtins) != len(want) {
		t.Fatalf("builtin count = %d, want %d", len(builtins), len(want))
	}
	for _, r := range builtins {
		if !want[r.ID] {
			t.Errorf("unexpected builtin %q", r.ID)
		}
	}
}

func TestBuiltins_AuthorityAssignments(t *testing.T) {
	byID := make(map[string]role.Role)
	for _, r := range role.Builtins() {
		byID[r.ID] = r
	}

	se := byID["structural-engineer"]
	if !se.IsAuthorityFor(consult.DecisionStructural) {
		t.Error("structural-engineer should hold structural authority")
	}
	ca := byID["compliance-auditor"]
	if !ca.IsAuthorityFor(consult.DecisionCompliance) {
		t.Error("compliance-auditor should hold compliance authority")
	}
	for id, r := range byID {
		if r.IsAuthorityFor(consult.DecisionCost) {
			t.Errorf("%s holds cost authority, but cost conflicts must go to vote", id)
		}
	}
}
