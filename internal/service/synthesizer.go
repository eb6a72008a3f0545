package service

import (
	"fmt"
	"strings"

	"github.com/kalkwerk/konsil/internal/domain/consult"
)

// Synthesizer merges a finished consultation into the single FinalOutput
// returned to the caller. Synthesis is pure: the same consultation content
// always yields a byte-identical answer.
type Synthesizer struct{}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize builds the final output from a consultation that has passed
// consensus.
func (s *Synthesizer) Synthesize(c *consult.Consultation) *consult.FinalOutput {
	report := c.Consensus
	if report == nil {
		report = &consult.ConsensusReport{Tier: consult.TierRed, HITLRequired: true}
	}

	warnings := collectWarnings(c, report)
	critical := collectCritical(c)

	out := &consult.FinalOutput{
		ConsultationID: c.ID,
		Answer:         buildAnswer(c, report),
		Status:         deriveStatus(c, report, warnings, critical),
		RolesConsulted: rolesConsulted(c.Outputs),
		Conflicts:      emptyIfNil(c.Conflicts),
		Resolutions:    emptyIfNil(c.Resolutions),
		Warnings:       warnings,
		CriticalIssues: critical,
		Tier:           report.Tier,
		HITLRequired:   report.HITLRequired,
		HITLReasons:    report.HITLReasons,
		TotalTokens:    c.Usage.TotalTokens(),
		Confidence:     report.AvgConfidence,
	}
	if c.Classification != nil {
		out.Complexity = c.Classification.Complexity
		out.Domains = c.Classification.Domains
	}
	return out
}

// SynthesizeRFI builds the short-circuit output for a consultation that
// needs more information before any role can run.
func (s *Synthesizer) SynthesizeRFI(c *consult.Consultation) *consult.FinalOutput {
	cls := c.Classification
	out := &consult.FinalOutput{
		ConsultationID: c.ID,
		Status:         consult.StatusWarnings,
		RolesConsulted: []string{},
		Conflicts:      []consult.Conflict{},
		Resolutions:    []consult.Resolution{},
		CriticalIssues: []string{},
		RequiresRFI:    true,
	}
	if cls != nil {
		out.Complexity = cls.Complexity
		out.Domains = cls.Domains
		out.MissingFields = cls.MissingFields
	}
	out.Answer = fmt.Sprintf(
		"This task cannot be assessed yet: required information is missing (%s). "+
			"Provide the listed fields in the structured context and resubmit.",
		strings.Join(out.MissingFields, ", "))
	out.Warnings = []string{"consultation paused pending requested information"}
	return out
}

// deriveStatus grades the overall answer. Critical issues and critical
// conflicts dominate; any warning, conflict or review flag degrades to
// warnings; only a clean transcript is ok.
func deriveStatus(c *consult.Consultation, report *consult.ConsensusReport, warnings, critical []string) consult.Status {
	if len(critical) > 0 {
		return consult.StatusCritical
	}
	for _, conf := range c.Conflicts {
		if conf.Severity == consult.SeverityCritical {
			return consult.StatusCritical
		}
	}
	if len(warnings) > 0 || len(c.Conflicts) > 0 || report.HITLRequired {
		return consult.StatusWarnings
	}
	return consult.StatusOK
}

// collectWarnings aggregates role warnings, fallback-parse notes, pipeline
// warnings and review reasons in a stable order.
func collectWarnings(c *consult.Consultation, report *consult.ConsensusReport) []string {
	warnings := make([]string, 0, len(c.Warnings))
	warnings = append(warnings, c.Warnings...)
	for _, o := range c.Outputs {
		for _, w := range o.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", o.RoleID, w))
		}
		if o.FallbackParsed {
			warnings = append(warnings, fmt.Sprintf("%s: output required fallback parsing", o.RoleID))
		}
	}
	for _, r := range report.HITLReasons {
		warnings = append(warnings, "human review: "+r)
	}
	return warnings
}

// collectCritical aggregates role-reported critical issues and critical
// conflict summaries.
func collectCritical(c *consult.Consultation) []string {
	critical := make([]string, 0)
	for _, o := range c.Outputs {
		for _, issue := range o.CriticalIssues {
			critical = append(critical, fmt.Sprintf("%s: %s", o.RoleID, issue))
		}
	}
	for _, conf := range c.Conflicts {
		if conf.Severity == consult.SeverityCritical {
			critical = append(critical, conf.Summary)
		}
	}
	return critical
}

// buildAnswer renders the merged answer text: verdict, settled decisions,
// role assessments in consultation order, then open items.
func buildAnswer(c *consult.Consultation, report *consult.ConsensusReport) string {
	var b strings.Builder

	b.WriteString(verdictLine(report))
	b.WriteString("\n")

	if lines := decisionLines(c); len(lines) > 0 {
		b.WriteString("\nKey decisions:\n")
		for _, l := range lines {
			b.WriteString("- " + l + "\n")
		}
	}

	if len(c.Outputs) > 0 {
		b.WriteString("\nRole assessments:\n")
		for _, o := range c.Outputs {
			fmt.Fprintf(&b, "\n[%s] confidence %.2f\n%s\n", o.RoleID, o.Confidence, strings.TrimSpace(o.Narrative))
		}
	}

	if open := openItems(c); len(open) > 0 {
		b.WriteString("\nOpen items:\n")
		for _, l := range open {
			b.WriteString("- " + l + "\n")
		}
	}

	return b.String()
}

// verdictLine summarizes tier and review need in one sentence.
func verdictLine(report *consult.ConsensusReport) string {
	switch {
	case report.HITLRequired:
		return fmt.Sprintf("Verdict: %s tier, human review required (average confidence %.2f).",
			report.Tier, report.AvgConfidence)
	case report.Tier == consult.TierGreen:
		return fmt.Sprintf("Verdict: green tier, roles agree (average confidence %.2f).",
			report.AvgConfidence)
	default:
		return fmt.Sprintf("Verdict: %s tier (average confidence %.2f).",
			report.Tier, report.AvgConfidence)
	}
}

// decisionLines lists conflict winners first, then uncontested decisions,
// each exactly once.
func decisionLines(c *consult.Consultation) []string {
	var lines []string
	byID := conflictsByID(c.Conflicts)

	resolvedKinds := make(map[consult.DecisionKind]bool)
	for _, res := range c.Resolutions {
		conf, ok := byID[res.ConflictID]
		if !ok || !res.Resolved || res.Winner == nil {
			continue
		}
		resolvedKinds[conf.Kind] = true
		lines = append(lines, fmt.Sprintf("%s: %s (%s)",
			conf.Kind, res.Winner.Decision.String(), res.Rationale))
	}

	contested := make(map[string]bool)
	for _, conf := range c.Conflicts {
		for _, p := range conf.Positions {
			contested[p.RoleID+"|"+p.Decision.VoteKey()] = true
		}
	}

	seen := make(map[string]bool)
	for _, o := range c.Outputs {
		for _, d := range o.Decisions {
			key := d.VoteKey()
			if seen[key] || resolvedKinds[d.Kind] || contested[o.RoleID+"|"+key] {
				continue
			}
			seen[key] = true
			lines = append(lines, fmt.Sprintf("%s: %s (%s)", d.Kind, d.String(), o.RoleID))
		}
	}
	return lines
}

// openItems lists unresolved conflicts with their summaries.
func openItems(c *consult.Consultation) []string {
	var items []string
	byID := conflictsByID(c.Conflicts)
	for _, res := range c.Resolutions {
		conf, ok := byID[res.ConflictID]
		if !ok || res.Resolved {
			continue
		}
		items = append(items, fmt.Sprintf("%s (unresolved, needs human review)", conf.Summary))
	}
	return items
}

// conflictsByID indexes conflicts for resolution lookups.
func conflictsByID(conflicts []consult.Conflict) map[string]*consult.Conflict {
	byID := make(map[string]*consult.Conflict, len(conflicts))
	for i := range conflicts {
		byID[conflicts[i].ID] = &conflicts[i]
	}
	return byID
}

// rolesConsulted returns role IDs in execution order.
func rolesConsulted(outputs []consult.RoleOutput) []string {
	ids := make([]string, 0, len(outputs))
	for _, o := range outputs {
		ids = append(ids, o.RoleID)
	}
	return ids
}

// emptyIfNil keeps JSON arrays as [] instead of null.
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
