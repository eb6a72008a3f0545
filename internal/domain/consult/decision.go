package consult

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DecisionKind tags the comparable category of a decision field. Decisions of
// the same kind from different roles are compared for conflicts.
type DecisionKind string

const (
	DecisionMaterial   DecisionKind = "material"
	DecisionCost       DecisionKind = "cost"
	DecisionCompliance DecisionKind = "compliance"
	DecisionStructural DecisionKind = "structural"
)

// Valid reports whether k is a known decision kind.
func (k DecisionKind) Valid() bool {
	switch k {
	case DecisionMaterial, DecisionCost, DecisionCompliance, DecisionStructural:
		return true
	}
	return false
}

// Verdict is a compliance judgment. Order of severity: non_compliant >
// conditional > compliant.
type Verdict string

const (
	VerdictCompliant    Verdict = "compliant"
	VerdictConditional  Verdict = "conditional"
	VerdictNonCompliant Verdict = "non_compliant"
)

// Rank returns the strictness rank of a verdict; higher is stricter.
// Unknown verdicts rank below all known ones.
func (v Verdict) Rank() int {
	switch v {
	case VerdictCompliant:
		return 1
	case VerdictConditional:
		return 2
	case VerdictNonCompliant:
		return 3
	}
	return 0
}

// Adequacy is a structural fitness judgment. Order of severity: inadequate >
// reinforcement_required > adequate.
type Adequacy string

const (
	AdequacyAdequate      Adequacy = "adequate"
	AdequacyReinforcement Adequacy = "reinforcement_required"
	AdequacyInadequate    Adequacy = "inadequate"
)

// Rank returns the strictness rank of an adequacy judgment; higher is stricter.
func (a Adequacy) Rank() int {
	switch a {
	case AdequacyAdequate:
		return 1
	case AdequacyReinforcement:
		return 2
	case AdequacyInadequate:
		return 3
	}
	return 0
}

// strengthLadder is the EN 206 normal-strength concrete ladder in ascending
// order. Classes outside the ladder are tolerated but not ordered.
var strengthLadder = []string{
	"C12/15", "C16/20", "C20/25", "C25/30", "C30/37",
	"C35/45", "C40/50", "C45/55", "C50/60",
}

// StrengthRank returns the position of a concrete strength class on the
// EN 206 ladder (0-based) and whether the class is known.
func StrengthRank(class string) (int, bool) {
	c := strings.ToUpper(strings.TrimSpace(class))
	for i, known := range strengthLadder {
		if c == known {
			return i, true
		}
	}
	return 0, false
}

// exposureParts splits an EN 206 exposure class like "XC3" into its family
// ("XC") and severity digit (3). "X0" is its own family with severity 0.
func exposureParts(class string) (family string, severity int, ok bool) {
	c := strings.ToUpper(strings.TrimSpace(class))
	if c == "X0" {
		return "X0", 0, true
	}
	if len(c) < 3 || c[0] != 'X' {
		return "", 0, false
	}
	family = c[:2]
	switch family {
	case "XC", "XD", "XS", "XF", "XA":
	default:
		return "", 0, false
	}
	n, err := strconv.Atoi(c[2:])
	if err != nil {
		return "", 0, false
	}
	return family, n, true
}

// MaterialDecision is a concrete specification: strength class on the EN 206
// ladder plus the governing exposure class.
type MaterialDecision struct {
	StrengthClass string `json:"strength_class"`
	ExposureClass string `json:"exposure_class,omitempty"`
}

func (m MaterialDecision) String() string {
	if m.ExposureClass == "" {
		return m.StrengthClass
	}
	return m.StrengthClass + " " + m.ExposureClass
}

// CostDecision is a monetary estimate. Amounts are compared by relative
// deviation, never by a strictness order.
type CostDecision struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Basis    string  `json:"basis,omitempty"`
}

func (c CostDecision) String() string {
	return fmt.Sprintf("%.2f %s", c.Amount, c.Currency)
}

// RelativeDeviation returns |a-b| relative to the smaller non-zero amount.
// Two zero amounts deviate by zero; one zero amount deviates fully.
func (c CostDecision) RelativeDeviation(other CostDecision) float64 {
	a, b := c.Amount, other.Amount
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		return 0
	}
	if lo == 0 {
		return 1
	}
	return (hi - lo) / lo
}

// ComplianceDecision is a standards verdict with the standard it judges
// against (e.g. "EN 1992-1-1").
type ComplianceDecision struct {
	Verdict  Verdict `json:"verdict"`
	Standard string  `json:"standard,omitempty"`
}

func (c ComplianceDecision) String() string {
	if c.Standard == "" {
		return string(c.Verdict)
	}
	return fmt.Sprintf("%s (%s)", c.Verdict, c.Standard)
}

// StructuralDecision is a load-bearing fitness judgment with the estimated
// utilization of the governing member in percent.
type StructuralDecision struct {
	Adequacy       Adequacy `json:"adequacy"`
	UtilizationPct float64  `json:"utilization_pct,omitempty"`
}

func (s StructuralDecision) String() string {
	if s.UtilizationPct == 0 {
		return string(s.Adequacy)
	}
	return fmt.Sprintf("%s (%.0f%% utilization)", s.Adequacy, s.UtilizationPct)
}

// DecisionField is a tagged variant: exactly one payload matching Kind is
// populated. Fields of the same kind across roles are conflict-checked.
type DecisionField struct {
	Kind       DecisionKind        `json:"kind"`
	Material   *MaterialDecision   `json:"-"`
	Cost       *CostDecision       `json:"-"`
	Compliance *ComplianceDecision `json:"-"`
	Structural *StructuralDecision `json:"-"`
}

// Validate checks that exactly the payload matching Kind is set.
func (d DecisionField) Validate() error {
	if !d.Kind.Valid() {
		return fmt.Errorf("decision: unknown kind %q", d.Kind)
	}
	set := 0
	if d.Material != nil {
		set++
	}
	if d.Cost != nil {
		set++
	}
	if d.Compliance != nil {
		set++
	}
	if d.Structural != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("decision: kind %s needs exactly one payload, got %d", d.Kind, set)
	}
	switch d.Kind {
	case DecisionMaterial:
		if d.Material == nil {
			return fmt.Errorf("decision: kind material without material payload")
		}
		if strings.TrimSpace(d.Material.StrengthClass) == "" {
			return fmt.Errorf("decision: material without strength class")
		}
	case DecisionCost:
		if d.Cost == nil {
			return fmt.Errorf("decision: kind cost without cost payload")
		}
		if d.Cost.Currency == "" {
			return fmt.Errorf("decision: cost without currency")
		}
		if d.Cost.Amount < 0 {
			return fmt.Errorf("decision: cost with negative amount")
		}
	case DecisionCompliance:
		if d.Compliance == nil {
			return fmt.Errorf("decision: kind compliance without compliance payload")
		}
		if d.Compliance.Verdict.Rank() == 0 {
			return fmt.Errorf("decision: compliance with unknown verdict %q", d.Compliance.Verdict)
		}
	case DecisionStructural:
		if d.Structural == nil {
			return fmt.Errorf("decision: kind structural without structural payload")
		}
		if d.Structural.Adequacy.Rank() == 0 {
			return fmt.Errorf("decision: structural with unknown adequacy %q", d.Structural.Adequacy)
		}
	}
	return nil
}

// String renders the populated payload for transcripts and conflict reports.
func (d DecisionField) String() string {
	switch {
	case d.Material != nil:
		return d.Material.String()
	case d.Cost != nil:
		return d.Cost.String()
	case d.Compliance != nil:
		return d.Compliance.String()
	case d.Structural != nil:
		return d.Structural.String()
	}
	return string(d.Kind)
}

// VoteKey returns the canonical grouping key used when tallying a weighted
// vote: positions with equal keys back the same value.
func (d DecisionField) VoteKey() string {
	switch {
	case d.Material != nil:
		return "material:" + strings.ToUpper(d.Material.StrengthClass) + "/" + strings.ToUpper(d.Material.ExposureClass)
	case d.Cost != nil:
		return "cost:" + d.Cost.Currency + ":" + strconv.FormatFloat(d.Cost.Amount, 'f', 2, 64)
	case d.Compliance != nil:
		return "compliance:" + string(d.Compliance.Verdict)
	case d.Structural != nil:
		return "structural:" + string(d.Structural.Adequacy)
	}
	return "unknown"
}

// StricterThan reports whether d is strictly stricter than other under the
// kind's strictness order. The second return is false when the two values
// have no defined order (different kinds, unknown classes, incomparable
// exposure families, or cost decisions, which carry no such order).
func (d DecisionField) StricterThan(other DecisionField) (stricter, comparable bool) {
	if d.Kind != other.Kind {
		return false, false
	}
	switch d.Kind {
	case DecisionMaterial:
		if d.Material == nil || other.Material == nil {
			return false, false
		}
		a, aok := StrengthRank(d.Material.StrengthClass)
		b, bok := StrengthRank(other.Material.StrengthClass)
		if !aok || !bok {
			return false, false
		}
		if a != b {
			return a > b, true
		}
		fa, sa, aok := exposureParts(d.Material.ExposureClass)
		fb, sb, bok := exposureParts(other.Material.ExposureClass)
		if !aok || !bok || fa != fb {
			return false, false
		}
		return sa > sb, true
	case DecisionCompliance:
		if d.Compliance == nil || other.Compliance == nil {
			return false, false
		}
		return d.Compliance.Verdict.Rank() > other.Compliance.Verdict.Rank(), true
	case DecisionStructural:
		if d.Structural == nil || other.Structural == nil {
			return false, false
		}
		ra, rb := d.Structural.Adequacy.Rank(), other.Structural.Adequacy.Rank()
		if ra != rb {
			return ra > rb, true
		}
		// Equal adequacy: the more pessimistic utilization estimate governs.
		return d.Structural.UtilizationPct > other.Structural.UtilizationPct, true
	case DecisionCost:
		return false, false
	}
	return false, false
}

// decisionJSON is the flat wire form of a DecisionField.
type decisionJSON struct {
	Kind           DecisionKind `json:"kind"`
	StrengthClass  string       `json:"strength_class,omitempty"`
	ExposureClass  string       `json:"exposure_class,omitempty"`
	Amount         *float64     `json:"amount,omitempty"`
	Currency       string       `json:"currency,omitempty"`
	Basis          string       `json:"basis,omitempty"`
	Verdict        Verdict      `json:"verdict,omitempty"`
	Standard       string       `json:"standard,omitempty"`
	Adequacy       Adequacy     `json:"adequacy,omitempty"`
	UtilizationPct *float64     `json:"utilization_pct,omitempty"`
}

// MarshalJSON flattens the populated variant next to the kind discriminator.
func (d DecisionField) MarshalJSON() ([]byte, error) {
	out := decisionJSON{Kind: d.Kind}
	switch {
	case d.Material != nil:
		out.StrengthClass = d.Material.StrengthClass
		out.ExposureClass = d.Material.ExposureClass
	case d.Cost != nil:
		amount := d.Cost.Amount
		out.Amount = &amount
		out.Currency = d.Cost.Currency
		out.Basis = d.Cost.Basis
	case d.Compliance != nil:
		out.Verdict = d.Compliance.Verdict
		out.Standard = d.Compliance.Standard
	case d.Structural != nil:
		out.Adequacy = d.Structural.Adequacy
		if d.Structural.UtilizationPct != 0 {
			pct := d.Structural.UtilizationPct
			out.UtilizationPct = &pct
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the kind discriminator and populates the matching
// variant.
func (d *DecisionField) UnmarshalJSON(data []byte) error {
	var in decisionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*d = DecisionField{Kind: in.Kind}
	switch in.Kind {
	case DecisionMaterial:
		d.Material = &MaterialDecision{StrengthClass: in.StrengthClass, ExposureClass: in.ExposureClass}
	case DecisionCost:
		c := &CostDecision{Currency: in.Currency, Basis: in.Basis}
		if in.Amount != nil {
			c.Amount = *in.Amount
		}
		d.Cost = c
	case DecisionCompliance:
		d.Compliance = &ComplianceDecision{Verdict: in.Verdict, Standard: in.Standard}
	case DecisionStructural:
		s := &StructuralDecision{Adequacy: in.Adequacy}
		if in.UtilizationPct != nil {
			s.UtilizationPct = *in.UtilizationPct
		}
		d.Structural = s
	default:
		return fmt.Errorf("decision: unknown kind %q", in.Kind)
	}
	return nil
}
