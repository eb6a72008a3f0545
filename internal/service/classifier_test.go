package service

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kalkwerk/konsil/internal/domain"
	"github.com/kalkwerk/konsil/internal/domain/consult"
)

func newTestClassifier() *Classifier {
	return NewClassifier(NewRegistry(), 0)
}

func planIDs(cls *consult.Classification) []string {
	ids := make([]string, 0, len(cls.Roles))
	for _, spec := range cls.Roles {
		ids = append(ids, spec.RoleID)
	}
	return ids
}

func TestClassifyGermanStructuralSimple(t *testing.T) {
	cls, err := newTestClassifier().Classify(consult.Task{
		ID:   "t1",
		Text: "Statik der Geschossdecke bewerten, Spannweite 7,50 m",
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cls.Kind != consult.KindQuestion {
		t.Fatalf("kind = %q, want question", cls.Kind)
	}
	if cls.Complexity != consult.ComplexitySimple {
		t.Fatalf("complexity = %q, want simple", cls.Complexity)
	}
	if !reflect.DeepEqual(cls.Domains, []consult.Domain{consult.DomainStructural}) {
		t.Fatalf("domains = %v, want [structural]", cls.Domains)
	}
	if got := planIDs(cls); !reflect.DeepEqual(got, []string{"structural-engineer"}) {
		t.Fatalf("plan = %v, want a single structural-engineer", got)
	}
	if cls.RequiresRFI {
		t.Fatal("structural question needs no extra context")
	}
}

func TestClassifyEnglishTwoDomains(t *testing.T) {
	cls, err := newTestClassifier().Classify(consult.Task{
		Text: "Which concrete strength class for the basement slab?",
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cls.Complexity != consult.ComplexityStandard {
		t.Fatalf("complexity = %q, want standard", cls.Complexity)
	}
	want := []consult.Domain{consult.DomainStructural, consult.DomainMaterial}
	if !reflect.DeepEqual(cls.Domains, want) {
		t.Fatalf("domains = %v, want %v", cls.Domains, want)
	}
	// Structural and material specialists plus the auditor, priorities ascending.
	if got := planIDs(cls); !reflect.DeepEqual(got, []string{"structural-engineer", "material-specialist", "compliance-auditor"}) {
		t.Fatalf("plan = %v", got)
	}
	for i := 1; i < len(cls.Roles); i++ {
		if cls.Roles[i].Priority < cls.Roles[i-1].Priority {
			t.Fatalf("priorities not ascending: %+v", cls.Roles)
		}
	}
}

func TestClassifyStrengthClassPattern(t *testing.T) {
	cls, err := newTestClassifier().Classify(consult.Task{
		Text: "Reicht C25/30 für die Bodenplatte aus?",
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !cls.HasDomain(consult.DomainMaterial) {
		t.Fatalf("explicit strength class should pull in material, got %v", cls.Domains)
	}
}

func TestClassifyContextKeysImplyDomains(t *testing.T) {
	cls, err := newTestClassifier().Classify(consult.Task{
		Text:    "Bitte diese Annahme fachlich bewerten",
		Context: map[string]any{"soil_class": "SE, mitteldicht gelagert"},
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !reflect.DeepEqual(cls.Domains, []consult.Domain{consult.DomainGeotechnics}) {
		t.Fatalf("domains = %v, want [geotechnics]", cls.Domains)
	}
	if got := planIDs(cls); !reflect.DeepEqual(got, []string{"geotechnics-consultant"}) {
		t.Fatalf("plan = %v", got)
	}
	if cls.RequiresRFI {
		t.Fatal("soil_class is provided, no RFI expected")
	}
}

func TestClassifyCreativeFallsToGeneralist(t *testing.T) {
	cls, err := newTestClassifier().Classify(consult.Task{
		Text: "Wie würden Sie diese Aufgabe grundsätzlich angehen?",
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cls.Complexity != consult.ComplexityCreative {
		t.Fatalf("complexity = %q, want creative", cls.Complexity)
	}
	if len(cls.Domains) != 0 {
		t.Fatalf("domains = %v, want none", cls.Domains)
	}
	if got := planIDs(cls); !reflect.DeepEqual(got, []string{"generalist-consultant"}) {
		t.Fatalf("plan = %v, want generalist only", got)
	}
}

func TestClassifyComplexThreeDomains(t *testing.T) {
	cls, err := newTestClassifier().Classify(consult.Task{
		Text:    "Tragwerk der Kellerwand aus Beton, Brandschutz F90 nachweisen",
		Context: map[string]any{"building_class": "GK 3"},
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cls.Complexity != consult.ComplexityComplex {
		t.Fatalf("complexity = %q, want complex", cls.Complexity)
	}
	want := []consult.Domain{consult.DomainStructural, consult.DomainMaterial, consult.DomainFireSafety}
	if !reflect.DeepEqual(cls.Domains, want) {
		t.Fatalf("domains = %v, want %v", cls.Domains, want)
	}
	if got := planIDs(cls); !reflect.DeepEqual(got,
		[]string{"structural-engineer", "material-specialist", "fire-safety-assessor", "compliance-auditor"}) {
		t.Fatalf("plan = %v", got)
	}
	if cls.RequiresRFI {
		t.Fatal("building_class is provided, no RFI expected")
	}
}

func TestClassifyRFIMissingFieldsSorted(t *testing.T) {
	cls, err := newTestClassifier().Classify(consult.Task{
		Text: "Gründung im Baugrund und Brandschutz prüfen",
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !cls.RequiresRFI {
		t.Fatal("geotechnics and fire safety need context fields")
	}
	if !reflect.DeepEqual(cls.MissingFields, []string{"building_class", "soil_class"}) {
		t.Fatalf("missing = %v, want sorted [building_class soil_class]", cls.MissingFields)
	}
	// The plan is still derived so a resubmission can be previewed.
	if len(cls.Roles) == 0 {
		t.Fatal("RFI classification should keep the derived plan")
	}
}

func TestClassifyEmptyContextValueCountsAsMissing(t *testing.T) {
	cls, err := newTestClassifier().Classify(consult.Task{
		Text:    "Gründung im Baugrund bewerten bitte",
		Context: map[string]any{"soil_class": ""},
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !cls.RequiresRFI {
		t.Fatal("empty soil_class should still trigger an RFI")
	}
}

func TestClassifyAuditKindFromContext(t *testing.T) {
	cls, err := newTestClassifier().Classify(consult.Task{
		Text:    "Position 02.3.110 Ortbetondecke prüfen",
		Context: map[string]any{"unit_price": 185.0, "quantity": 240.5},
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cls.Kind != consult.KindPositionAudit {
		t.Fatalf("kind = %q, want position_audit inferred from priced context", cls.Kind)
	}
	if cls.Complexity != consult.ComplexityStandard {
		t.Fatalf("complexity = %q, audits are never simple", cls.Complexity)
	}
	if got := planIDs(cls); !reflect.DeepEqual(got, []string{"cost-estimator"}) {
		t.Fatalf("plan = %v", got)
	}
	if cls.RequiresRFI {
		t.Fatalf("quantity and unit_price are provided, got missing %v", cls.MissingFields)
	}
}

func TestClassifyAuditAppendsCostRole(t *testing.T) {
	cls, err := newTestClassifier().Classify(consult.Task{
		Text: "Bewehrung der Stütze prüfen",
		Kind: consult.KindPositionAudit,
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got := planIDs(cls); !reflect.DeepEqual(got,
		[]string{"structural-engineer", "cost-estimator", "compliance-auditor"}) {
		t.Fatalf("plan = %v, want cost-estimator and auditor appended", got)
	}
	var costReason string
	for _, spec := range cls.Roles {
		if spec.RoleID == "cost-estimator" {
			costReason = spec.Reason
		}
	}
	if costReason != "position audits always price the item" {
		t.Fatalf("cost reason = %q", costReason)
	}
	// Structural audits need loads before anyone runs.
	if !cls.RequiresRFI || !reflect.DeepEqual(cls.MissingFields, []string{"loads"}) {
		t.Fatalf("missing = %v (rfi=%v), want [loads]", cls.MissingFields, cls.RequiresRFI)
	}
}

func TestClassifyTooShort(t *testing.T) {
	_, err := newTestClassifier().Classify(consult.Task{Text: "Kurz prüfen"})
	if err == nil {
		t.Fatal("expected error for short text")
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got: %v", err)
	}
}

func TestClassifyOverrideRoles(t *testing.T) {
	cls, err := newTestClassifier().Classify(consult.Task{
		Text: "Statik der Geschossdecke bewerten",
		Override: &consult.Override{
			Roles: []consult.RoleSpec{{RoleID: "cost-estimator", Priority: 5, Reason: "caller request"}},
		},
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !cls.Overridden {
		t.Fatal("override should be flagged")
	}
	if got := planIDs(cls); !reflect.DeepEqual(got, []string{"cost-estimator"}) {
		t.Fatalf("plan = %v, want the pinned role only", got)
	}
}

func TestClassifyOverrideUnknownRole(t *testing.T) {
	_, err := newTestClassifier().Classify(consult.Task{
		Text: "Statik der Geschossdecke bewerten",
		Override: &consult.Override{
			Roles: []consult.RoleSpec{{RoleID: "astrologer", Priority: 1}},
		},
	})
	if err == nil {
		t.Fatal("expected error for unknown override role")
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got: %v", err)
	}
}

func TestClassifyOverrideComplexityRebuildsPlan(t *testing.T) {
	cls, err := newTestClassifier().Classify(consult.Task{
		Text:     "Statik der Geschossdecke bewerten",
		Override: &consult.Override{Complexity: consult.ComplexityComplex},
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if cls.Complexity != consult.ComplexityComplex {
		t.Fatalf("complexity = %q, want overridden complex", cls.Complexity)
	}
	// Raising the grade pulls the auditor into a single-domain task.
	if got := planIDs(cls); !reflect.DeepEqual(got, []string{"structural-engineer", "compliance-auditor"}) {
		t.Fatalf("plan = %v", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	task := consult.Task{
		Text:    "Tragwerk der Kellerwand aus Beton, Brandschutz F90 nachweisen",
		Context: map[string]any{"building_class": "GK 3", "loads": 12.5},
	}
	c := newTestClassifier()
	first, err := c.Classify(task)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	for range 5 {
		again, err := c.Classify(task)
		if err != nil {
			t.Fatalf("classify: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("classification not deterministic:\n%+v\n%+v", first, again)
		}
	}
}

func TestClassifierVocabulary(t *testing.T) {
	vocab := newTestClassifier().Vocabulary()
	if len(vocab) != len(consult.AllDomains) {
		t.Fatalf("vocabulary covers %d domains, want %d", len(vocab), len(consult.AllDomains))
	}
	for d, kws := range vocab {
		if len(kws) == 0 {
			t.Errorf("domain %q has no keywords", d)
		}
	}
}

func TestTokenizeKeepsUnits(t *testing.T) {
	tokens := tokenize("c25/30 u-wert dämmung xf3")
	for _, want := range []string{"c25/30", "u-wert", "dämmung", "xf3"} {
		if !tokens[want] {
			t.Errorf("token %q not preserved, got %v", want, tokens)
		}
	}
}
