package consult_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/kalkwerk/konsil/internal/domain"
	"github.com/kalkwerk/konsil/internal/domain/consult"
)

func TestCreateRequestValidate_Valid(t *testing.T) {
	req := &consult.CreateRequest{
		Text: "Bodenplatte 20cm für Einfamilienhaus, Beton prüfen",
		Kind: consult.KindQuestion,
	}
	if err := req.Validate(0); err != nil {
		t.Fatalf("expected valid, got: %v", err)
	}
}

func TestCreateRequestValidate_TooShort(t *testing.T) {
	req := &consult.CreateRequest{Text: "ok?"}
	err := req.Validate(0)
	if err == nil {
		t.Fatal("expected error for short text")
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got: %v", err)
	}
}

func TestCreateRequestValidate_WhitespaceDoesNotCount(t *testing.T) {
	req := &consult.CreateRequest{Text: "   abc   " + strings.Repeat(" ", 40)}
	if err := req.Validate(0); err == nil {
		t.Fatal("expected error: padding must not satisfy the minimum length")
	}
}

func TestCreateRequestValidate_CustomMinLength(t *testing.T) {
	req := &consult.CreateRequest{Text: "Kellerwand WU-Beton"}
	if err := req.Validate(5); err != nil {
		t.Fatalf("expected valid at min length 5, got: %v", err)
	}
	if err := req.Validate(50); err == nil {
		t.Fatal("expected error at min length 50")
	}
}

func TestCreateRequestValidate_CountsRunes(t *testing.T) {
	// 12 runes but more than 12 bytes.
	req := &consult.CreateRequest{Text: "Wärmebrückeü"}
	if err := req.Validate(12); err != nil {
		t.Fatalf("expected 12 runes to pass, got: %v", err)
	}
}

func TestCreateRequestValidate_UnknownKind(t *testing.T) {
	req := &consult.CreateRequest{
		Text: "Bodenplatte 20cm für Einfamilienhaus",
		Kind: "inspection",
	}
	if err := req.Validate(0); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestCreateRequestValidate_EmptyKindAllowed(t *testing.T) {
	req := &consult.CreateRequest{Text: "Bodenplatte 20cm für Einfamilienhaus"}
	if err := req.Validate(0); err != nil {
		t.Fatalf("empty kind should default later, got: %v", err)
	}
}

func TestCreateRequestValidate_OverrideChecked(t *testing.T) {
	req := &consult.CreateRequest{
		Text:     "Bodenplatte 20cm für Einfamilienhaus",
		Override: &consult.Override{Complexity: "heroic"},
	}
	err := req.Validate(0)
	if err == nil {
		t.Fatal("expected error for unknown complexity override")
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got: %v", err)
	}
}

func TestOverrideValidate_PriorityOrder(t *testing.T) {
	ov := &consult.Override{
		Roles: []consult.RoleSpec{
			{RoleID: "structural-engineer", Priority: 10},
			{RoleID: "cost-estimator", Priority: 5},
		},
	}
	if err := ov.Validate(); err == nil {
		t.Fatal("expected error for decreasing priorities")
	}
}

func TestOverrideValidate_EqualPrioritiesAllowed(t *testing.T) {
	ov := &consult.Override{
		Roles: []consult.RoleSpec{
			{RoleID: "structural-engineer", Priority: 10},
			{RoleID: "material-specialist", Priority: 10},
		},
	}
	if err := ov.Validate(); err != nil {
		t.Fatalf("equal priorities should be valid, got: %v", err)
	}
}

func TestOverrideValidate_Empty(t *testing.T) {
	ov := &consult.Override{}
	if err := ov.Validate(); err != nil {
		t.Fatalf("empty override should be valid, got: %v", err)
	}
}

func TestTaskNormalizedText(t *testing.T) {
	task := &consult.Task{Text: "  Bodenplatte C25/30 Prüfen \n"}
	got := task.NormalizedText()
	want := "bodenplatte c25/30 prüfen"
	if got != want {
		t.Fatalf("normalized = %q, want %q", got, want)
	}
}
