package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kalkwerk/konsil/internal/domain/consult"
)

// domainKeywords maps each vocabulary domain to its trigger terms. Single
// words are matched against the task's token set, phrases against the
// normalized text. The vocabulary is bilingual because estimate texts arrive
// in both English and German.
var domainKeywords = map[consult.Domain][]string{
	consult.DomainStructural: {
		"load-bearing", "tragend", "tragwerk", "statik", "beam", "träger",
		"column", "stütze", "slab", "decke", "span", "spannweite",
		"reinforcement", "bewehrung", "structural", "load", "lastannahme",
	},
	consult.DomainGeotechnics: {
		"soil", "baugrund", "boden", "foundation", "fundament", "gründung",
		"settlement", "setzung", "groundwater", "grundwasser", "pile",
		"pfahl", "excavation", "baugrube", "bearing capacity",
	},
	consult.DomainMaterial: {
		"concrete", "beton", "strength class", "festigkeitsklasse",
		"exposure", "expositionsklasse", "steel", "stahl", "timber", "holz",
		"cement", "zement", "mortar", "mörtel", "material",
	},
	consult.DomainBuildingPhysics: {
		"insulation", "dämmung", "u-value", "u-wert", "thermal",
		"wärmebrücke", "thermal bridge", "condensation", "tauwasser",
		"acoustic", "schallschutz", "moisture", "feuchte", "airtightness",
	},
	consult.DomainFireSafety: {
		"fire", "brand", "brandschutz", "fire rating", "feuerwiderstand",
		"f30", "f90", "rei", "escape route", "fluchtweg", "brandabschnitt",
		"sprinkler", "compartmentation",
	},
	consult.DomainCost: {
		"cost", "kosten", "price", "preis", "unit price", "einheitspreis",
		"estimate", "kostenschätzung", "budget", "eur", "lump sum",
		"pauschale", "quantity", "menge", "aufmaß",
	},
}

// strengthClassPattern catches explicit concrete classes like "C25/30",
// which always pull in the material domain.
var strengthClassPattern = regexp.MustCompile(`\bc\d{2}/\d{2}\b`)

// contextKeyDomains maps structured-context keys to the domain they imply.
var contextKeyDomains = map[string]consult.Domain{
	"loads":          consult.DomainStructural,
	"soil_class":     consult.DomainGeotechnics,
	"exposure_class": consult.DomainMaterial,
	"building_class": consult.DomainFireSafety,
	"unit_price":     consult.DomainCost,
	"quantity":       consult.DomainCost,
	"position":       consult.DomainCost,
}

// domainRoles fixes the primary role and canonical priority per domain.
// Earlier priorities consult earlier; the order follows the engineering
// dependency chain (structure before pricing).
var domainRoles = map[consult.Domain]consult.RoleSpec{
	consult.DomainStructural:      {RoleID: "structural-engineer", Priority: 10},
	consult.DomainGeotechnics:     {RoleID: "geotechnics-consultant", Priority: 20},
	consult.DomainMaterial:        {RoleID: "material-specialist", Priority: 30},
	consult.DomainBuildingPhysics: {RoleID: "building-physicist", Priority: 40},
	consult.DomainFireSafety:      {RoleID: "fire-safety-assessor", Priority: 50},
	consult.DomainCost:            {RoleID: "cost-estimator", Priority: 60},
}

const (
	complianceRoleID   = "compliance-auditor"
	compliancePriority = 70
	generalistRoleID   = "generalist-consultant"
)

// requiredQuestionFields lists context fields a domain needs before any role
// runs on a free-form question.
var requiredQuestionFields = map[consult.Domain][]string{
	consult.DomainGeotechnics: {"soil_class"},
	consult.DomainFireSafety:  {"building_class"},
}

// requiredAuditFields lists additional context fields a position audit needs.
var requiredAuditFields = map[consult.Domain][]string{
	consult.DomainStructural: {"loads"},
	consult.DomainCost:       {"quantity", "unit_price"},
}

// Classifier derives the consultation plan for a task: domains, complexity,
// ordered role list and the RFI gate. Classification is pure and
// deterministic; it performs no I/O.
type Classifier struct {
	registry  *Registry
	minLength int
}

// NewClassifier creates a Classifier backed by the given role registry.
func NewClassifier(registry *Registry, minLength int) *Classifier {
	if minLength <= 0 {
		minLength = consult.MinTaskLength
	}
	return &Classifier{registry: registry, minLength: minLength}
}

// Classify derives the routing decision for a task. Unusable tasks are
// rejected with a *consult.ClassificationError.
func (c *Classifier) Classify(task consult.Task) (*consult.Classification, error) {
	req := consult.CreateRequest{
		Text:     task.Text,
		Context:  task.Context,
		Kind:     task.Kind,
		Override: task.Override,
	}
	if err := req.Validate(c.minLength); err != nil {
		return nil, err
	}

	kind := c.detectKind(task)
	domains, reasons := c.detectDomains(task)

	cls := &consult.Classification{
		TaskID:     task.ID,
		Kind:       kind,
		Domains:    domains,
		Complexity: c.grade(kind, domains),
	}

	if task.Override != nil {
		if err := c.applyOverride(cls, task.Override, reasons); err != nil {
			return nil, err
		}
	} else {
		cls.Roles = c.buildPlan(kind, domains, cls.Complexity, reasons)
	}

	cls.MissingFields = c.missingFields(kind, domains, task.Context)
	cls.RequiresRFI = len(cls.MissingFields) > 0

	if err := cls.Validate(); err != nil {
		return nil, &consult.ClassificationError{Reason: err.Error()}
	}
	return cls, nil
}

// detectKind resolves the task kind: explicit wins, a priced line item in
// the context marks an audit, everything else is a question.
func (c *Classifier) detectKind(task consult.Task) consult.Kind {
	if task.Kind != "" {
		return task.Kind
	}
	for _, key := range []string{"position", "unit_price", "quantity"} {
		if _, ok := task.Context[key]; ok {
			return consult.KindPositionAudit
		}
	}
	return consult.KindQuestion
}

// detectDomains scans text tokens, phrases and context keys. Returned
// domains follow the canonical vocabulary order; reasons explain each hit.
func (c *Classifier) detectDomains(task consult.Task) ([]consult.Domain, map[consult.Domain]string) {
	text := task.NormalizedText()
	tokens := tokenize(text)
	hits := make(map[consult.Domain][]string)

	for _, d := range consult.AllDomains {
		for _, kw := range domainKeywords[d] {
			if strings.ContainsRune(kw, ' ') || strings.ContainsRune(kw, '-') {
				if strings.Contains(text, kw) {
					hits[d] = append(hits[d], kw)
				}
			} else if tokens[kw] {
				hits[d] = append(hits[d], kw)
			}
		}
	}

	if m := strengthClassPattern.FindString(text); m != "" {
		hits[consult.DomainMaterial] = append(hits[consult.DomainMaterial], m)
	}

	for key := range task.Context {
		if d, ok := contextKeyDomains[key]; ok {
			hits[d] = append(hits[d], "context:"+key)
		}
	}

	var domains []consult.Domain
	reasons := make(map[consult.Domain]string)
	for _, d := range consult.AllDomains {
		if len(hits[d]) == 0 {
			continue
		}
		domains = append(domains, d)
		matched := hits[d]
		sort.Strings(matched)
		if len(matched) > 3 {
			matched = matched[:3]
		}
		reasons[d] = "matched " + strings.Join(matched, ", ")
	}
	return domains, reasons
}

// grade maps the number of touched domains to a complexity. Position audits
// are never graded simple: pricing always needs a second pair of eyes.
func (c *Classifier) grade(kind consult.Kind, domains []consult.Domain) consult.Complexity {
	switch {
	case len(domains) == 0:
		return consult.ComplexityCreative
	case len(domains) >= 3:
		return consult.ComplexityComplex
	case len(domains) == 2:
		return consult.ComplexityStandard
	case kind == consult.KindPositionAudit:
		return consult.ComplexityStandard
	default:
		return consult.ComplexitySimple
	}
}

// buildPlan assembles the ordered role list for the task's domains.
func (c *Classifier) buildPlan(kind consult.Kind, domains []consult.Domain, complexity consult.Complexity, reasons map[consult.Domain]string) []consult.RoleSpec {
	if complexity == consult.ComplexityCreative {
		return []consult.RoleSpec{{
			RoleID:   generalistRoleID,
			Priority: 10,
			Reason:   "no recognized domain, open-ended consultation",
		}}
	}

	var plan []consult.RoleSpec
	needsCompliance := false
	hasCost := false
	for _, d := range domains {
		spec := domainRoles[d]
		spec.Reason = reasons[d]
		plan = append(plan, spec)
		switch d {
		case consult.DomainStructural, consult.DomainMaterial, consult.DomainFireSafety:
			needsCompliance = true
		case consult.DomainCost:
			hasCost = true
		}
	}

	if kind == consult.KindPositionAudit && !hasCost {
		spec := domainRoles[consult.DomainCost]
		spec.Reason = "position audits always price the item"
		plan = append(plan, spec)
	}

	// The auditor joins once at least two specialists are involved, or
	// whenever money is on the line.
	if needsCompliance && (complexity != consult.ComplexitySimple || kind == consult.KindPositionAudit) {
		plan = append(plan, consult.RoleSpec{
			RoleID:   complianceRoleID,
			Priority: compliancePriority,
			Reason:   "standards conformance check",
		})
	}

	sort.SliceStable(plan, func(i, j int) bool { return plan[i].Priority < plan[j].Priority })
	return plan
}

// applyOverride honors a caller-pinned classification after validating it
// against the registry.
func (c *Classifier) applyOverride(cls *consult.Classification, o *consult.Override, reasons map[consult.Domain]string) error {
	cls.Overridden = true
	if o.Complexity != "" {
		cls.Complexity = o.Complexity
	}
	if len(o.Roles) > 0 {
		for _, spec := range o.Roles {
			if _, err := c.registry.Get(spec.RoleID); err != nil {
				return &consult.ClassificationError{
					Reason: fmt.Sprintf("override names unknown role %q", spec.RoleID),
				}
			}
		}
		cls.Roles = o.Roles
		return nil
	}
	cls.Roles = c.buildPlan(cls.Kind, cls.Domains, cls.Complexity, reasons)
	return nil
}

// missingFields returns the sorted set of required context fields the task
// does not provide.
func (c *Classifier) missingFields(kind consult.Kind, domains []consult.Domain, ctx map[string]any) []string {
	required := make(map[string]bool)
	for _, d := range domains {
		for _, f := range requiredQuestionFields[d] {
			required[f] = true
		}
		if kind == consult.KindPositionAudit {
			for _, f := range requiredAuditFields[d] {
				required[f] = true
			}
		}
	}

	var missing []string
	for f := range required {
		if v, ok := ctx[f]; !ok || v == nil || v == "" {
			missing = append(missing, f)
		}
	}
	sort.Strings(missing)
	return missing
}

// Vocabulary returns the fixed domain set with a sample of trigger keywords,
// for the discovery endpoint.
func (c *Classifier) Vocabulary() map[consult.Domain][]string {
	out := make(map[consult.Domain][]string, len(domainKeywords))
	for d, kws := range domainKeywords {
		sample := make([]string, len(kws))
		copy(sample, kws)
		sort.Strings(sample)
		out[d] = sample
	}
	return out
}

// tokenize splits normalized text into a word set. Slashes and hyphens stay
// inside tokens so "c25/30" and "u-value" survive as units.
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens[b.String()] = true
			b.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '/', r == '-',
			r == 'ä', r == 'ö', r == 'ü', r == 'ß':
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}
