package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kalkwerk/konsil/internal/domain"
	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/domain/role"
)

func TestRegistryBuiltinsPreloaded(t *testing.T) {
	r := NewRegistry()
	roles := r.List()
	if len(roles) != 8 {
		t.Fatalf("builtin count = %d, want 8", len(roles))
	}
	for i := 1; i < len(roles); i++ {
		if roles[i].ID < roles[i-1].ID {
			t.Fatalf("list not sorted: %q after %q", roles[i].ID, roles[i-1].ID)
		}
	}
	got, err := r.Get("structural-engineer")
	if err != nil {
		t.Fatalf("get builtin: %v", err)
	}
	if !got.Builtin {
		t.Fatal("structural-engineer should be flagged builtin")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nonexistent-role")
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestRegistryRegisterCustom(t *testing.T) {
	r := NewRegistry()
	custom := &role.Role{
		ID:          "timber-specialist",
		Name:        "Timber Specialist",
		Domains:     []consult.Domain{consult.DomainStructural, consult.DomainMaterial},
		Temperature: 0.2,
	}
	if err := r.Register(custom); err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := r.Get("timber-specialist")
	if err != nil {
		t.Fatalf("get custom: %v", err)
	}
	if got.Builtin {
		t.Fatal("custom role must not be flagged builtin")
	}
	if len(r.List()) != 9 {
		t.Fatalf("list = %d roles, want 9", len(r.List()))
	}
}

func TestRegistryRegisterInvalid(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&role.Role{ID: "bad", Name: "Bad", Temperature: 3})
	if err == nil {
		t.Fatal("expected error for invalid role")
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got: %v", err)
	}
}

func TestRegistryBuiltinImmutable(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&role.Role{ID: "cost-estimator", Name: "Hijacked", Temperature: 0.1})
	if err == nil {
		t.Fatal("expected error overwriting a builtin")
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got: %v", err)
	}
	got, _ := r.Get("cost-estimator")
	if got.Name != "Cost Estimator" {
		t.Fatalf("builtin was mutated: %q", got.Name)
	}
}

func TestRegistryReplaceCustom(t *testing.T) {
	r := NewRegistry()
	first := &role.Role{ID: "surveyor", Name: "Surveyor", Temperature: 0.3}
	if err := r.Register(first); err != nil {
		t.Fatalf("register: %v", err)
	}
	second := &role.Role{ID: "surveyor", Name: "Surveyor v2", Temperature: 0.4}
	if err := r.Register(second); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	got, _ := r.Get("surveyor")
	if got.Name != "Surveyor v2" {
		t.Fatalf("custom role not replaced: %q", got.Name)
	}
}

func TestRegistryRevision(t *testing.T) {
	r := NewRegistry()
	rev := r.Revision()
	if len(rev) != 16 {
		t.Fatalf("revision length = %d, want 16", len(rev))
	}
	if r.Revision() != rev {
		t.Fatal("revision should be stable without changes")
	}

	err := r.Register(&role.Role{ID: "surveyor", Name: "Surveyor", Temperature: 0.3})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if r.Revision() == rev {
		t.Fatal("revision should change when the catalog changes")
	}

	// Two registries with the same catalog agree on the revision.
	if NewRegistry().Revision() != rev {
		t.Fatal("identical catalogs should share a revision")
	}
}

func TestRegistryAuthorityFor(t *testing.T) {
	r := NewRegistry()

	among := []string{"structural-engineer", "geotechnics-consultant"}
	got := r.AuthorityFor(consult.DecisionStructural, among)
	if got == nil || got.ID != "structural-engineer" {
		t.Fatalf("authority = %v, want structural-engineer", got)
	}

	if r.AuthorityFor(consult.DecisionMaterial, among) != nil {
		t.Fatal("no role in the set holds material authority")
	}

	// A second structural authority makes the lookup ambiguous.
	err := r.Register(&role.Role{
		ID:           "checking-engineer",
		Name:         "Checking Engineer",
		AuthorityFor: []consult.DecisionKind{consult.DecisionStructural},
		Temperature:  0.1,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ambiguous := []string{"structural-engineer", "checking-engineer"}
	if r.AuthorityFor(consult.DecisionStructural, ambiguous) != nil {
		t.Fatal("two authorities should resolve to none")
	}
}

func TestRegistryLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	content := `roles:
  - id: timber-specialist
    name: Timber Specialist
    description: Timber design per EN 1995.
    domains: [structural, material]
    temperature: 0.2
    timeout_seconds: 45
    system_prompt: You are a timber specialist.
  - id: refurbishment-surveyor
    name: Refurbishment Surveyor
    domains: [cost]
    authority_for: [cost]
    temperature: 0.3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	r := NewRegistry()
	before := r.Revision()
	loaded, err := r.LoadCatalog(path)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if loaded != 2 {
		t.Fatalf("loaded = %d, want 2", loaded)
	}

	timber, err := r.Get("timber-specialist")
	if err != nil {
		t.Fatalf("get timber-specialist: %v", err)
	}
	if timber.Timeout != 45*time.Second {
		t.Fatalf("timeout = %v, want 45s", timber.Timeout)
	}
	if timber.Temperature != 0.2 {
		t.Fatalf("temperature = %v, want 0.2", timber.Temperature)
	}
	if len(timber.Domains) != 2 {
		t.Fatalf("domains = %v, want structural+material", timber.Domains)
	}

	surveyor, _ := r.Get("refurbishment-surveyor")
	if !surveyor.IsAuthorityFor(consult.DecisionCost) {
		t.Fatal("surveyor should hold cost authority")
	}
	if r.Revision() == before {
		t.Fatal("catalog load should bump the revision")
	}
}

func TestRegistryLoadCatalogRejectsBuiltinOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	content := `roles:
  - id: structural-engineer
    name: Hijacked
    temperature: 0.9
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	r := NewRegistry()
	if _, err := r.LoadCatalog(path); err == nil {
		t.Fatal("expected error overlaying a builtin")
	}
}

func TestRegistryLoadCatalogMissingFile(t *testing.T) {
	r := NewRegistry()
	if _, err := r.LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRegistryLoadCatalogBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	if err := os.WriteFile(path, []byte("{{not yaml}}"), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	r := NewRegistry()
	if _, err := r.LoadCatalog(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
