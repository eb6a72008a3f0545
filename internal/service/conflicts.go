package service

import (
	"fmt"
	"strings"

	"github.com/kalkwerk/konsil/internal/domain/consult"
)

// utilizationSpreadPts is the structural utilization divergence (in
// percentage points) that counts as a conflict even when all roles agree on
// adequacy.
const utilizationSpreadPts = 15.0

// ConflictDetector finds divergent decisions of the same kind across a role
// transcript. Detection is pure and deterministic; conflicts keep first-
// appearance order and their IDs are stable for a given transcript.
type ConflictDetector struct {
	costDeviation float64
}

// NewConflictDetector creates a detector with the given consensus knobs.
func NewConflictDetector(t consult.Thresholds) *ConflictDetector {
	return &ConflictDetector{costDeviation: t.CostDeviation}
}

// Detect returns every conflict in the transcript. A transcript from fewer
// than two roles never conflicts.
func (d *ConflictDetector) Detect(outputs []consult.RoleOutput) []consult.Conflict {
	if len(outputs) < 2 {
		return nil
	}

	groups := make(map[consult.DecisionKind][]consult.ConflictPosition)
	var kindOrder []consult.DecisionKind
	for _, out := range outputs {
		for _, dec := range out.Decisions {
			if !dec.Kind.Valid() {
				continue
			}
			if _, seen := groups[dec.Kind]; !seen {
				kindOrder = append(kindOrder, dec.Kind)
			}
			groups[dec.Kind] = append(groups[dec.Kind], consult.ConflictPosition{
				RoleID:     out.RoleID,
				Decision:   dec,
				Confidence: out.Confidence,
			})
		}
	}

	var conflicts []consult.Conflict
	for _, kind := range kindOrder {
		positions := groups[kind]
		var found []consult.Conflict
		if kind == consult.DecisionCost {
			found = d.costConflicts(positions)
		} else if c, ok := d.valueConflict(kind, positions); ok {
			found = append(found, c)
		}
		conflicts = append(conflicts, found...)
	}

	for i := range conflicts {
		conflicts[i].ID = fmt.Sprintf("conflict-%d", i+1)
	}
	return conflicts
}

// valueConflict checks a non-cost kind: two or more distinct values held by
// two or more distinct roles make a conflict.
func (d *ConflictDetector) valueConflict(kind consult.DecisionKind, positions []consult.ConflictPosition) (consult.Conflict, bool) {
	if !distinct(positions) {
		// Structural positions can still diverge on utilization while
		// agreeing on adequacy.
		if kind == consult.DecisionStructural {
			return d.utilizationConflict(positions)
		}
		return consult.Conflict{}, false
	}

	c := consult.Conflict{
		Kind:      kind,
		Positions: positions,
		Severity:  severityFor(kind, positions),
		Summary:   summarize(kind, positions),
	}
	return c, true
}

// utilizationConflict flags structural positions whose utilization estimates
// spread further than utilizationSpreadPts.
func (d *ConflictDetector) utilizationConflict(positions []consult.ConflictPosition) (consult.Conflict, bool) {
	if !multiRole(positions) {
		return consult.Conflict{}, false
	}
	lo, hi := 0.0, 0.0
	first := true
	for _, p := range positions {
		if p.Decision.Structural == nil {
			continue
		}
		u := p.Decision.Structural.UtilizationPct
		if first {
			lo, hi = u, u
			first = false
			continue
		}
		if u < lo {
			lo = u
		}
		if u > hi {
			hi = u
		}
	}
	if first || hi-lo <= utilizationSpreadPts {
		return consult.Conflict{}, false
	}
	return consult.Conflict{
		Kind:      consult.DecisionStructural,
		Positions: positions,
		Severity:  consult.SeverityHigh,
		Summary: fmt.Sprintf("structural: utilization estimates spread %.0f points (%.0f%% to %.0f%%)",
			hi-lo, lo, hi),
	}, true
}

// costConflicts checks cost positions per currency: a relative spread at or
// above the configured deviation is a conflict. Amounts inside the band are
// treated as the same value.
func (d *ConflictDetector) costConflicts(positions []consult.ConflictPosition) []consult.Conflict {
	byCurrency := make(map[string][]consult.ConflictPosition)
	var order []string
	for _, p := range positions {
		if p.Decision.Cost == nil {
			continue
		}
		cur := p.Decision.Cost.Currency
		if _, seen := byCurrency[cur]; !seen {
			order = append(order, cur)
		}
		byCurrency[cur] = append(byCurrency[cur], p)
	}

	var conflicts []consult.Conflict
	for _, cur := range order {
		group := byCurrency[cur]
		if !multiRole(group) {
			continue
		}
		maxDev := 0.0
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				dev := group[i].Decision.Cost.RelativeDeviation(*group[j].Decision.Cost)
				if dev > maxDev {
					maxDev = dev
				}
			}
		}
		if maxDev < d.costDeviation {
			continue
		}
		conflicts = append(conflicts, consult.Conflict{
			Kind:      consult.DecisionCost,
			Positions: group,
			Severity:  consult.SeverityMedium,
			Summary: fmt.Sprintf("cost: estimates deviate %.0f%% (%s)",
				maxDev*100, positionValues(group)),
		})
	}
	return conflicts
}

// distinct reports whether positions carry at least two distinct values held
// by at least two distinct roles.
func distinct(positions []consult.ConflictPosition) bool {
	if !multiRole(positions) {
		return false
	}
	values := make(map[string]bool)
	for _, p := range positions {
		values[p.Decision.VoteKey()] = true
	}
	return len(values) >= 2
}

// multiRole reports whether at least two distinct roles are involved.
func multiRole(positions []consult.ConflictPosition) bool {
	roles := make(map[string]bool)
	for _, p := range positions {
		roles[p.RoleID] = true
	}
	return len(roles) >= 2
}

// severityFor grades a value conflict by kind.
func severityFor(kind consult.DecisionKind, positions []consult.ConflictPosition) consult.Severity {
	switch kind {
	case consult.DecisionStructural:
		return consult.SeverityCritical
	case consult.DecisionCompliance:
		for _, p := range positions {
			if p.Decision.Compliance != nil && p.Decision.Compliance.Verdict == consult.VerdictNonCompliant {
				return consult.SeverityCritical
			}
		}
		return consult.SeverityHigh
	case consult.DecisionMaterial:
		loRank, hiRank, ranked := -1, -1, false
		for _, p := range positions {
			if p.Decision.Material == nil {
				continue
			}
			r, ok := consult.StrengthRank(p.Decision.Material.StrengthClass)
			if !ok {
				continue
			}
			if !ranked {
				loRank, hiRank, ranked = r, r, true
				continue
			}
			if r < loRank {
				loRank = r
			}
			if r > hiRank {
				hiRank = r
			}
		}
		if ranked && hiRank-loRank >= 2 {
			return consult.SeverityHigh
		}
		return consult.SeverityMedium
	default:
		return consult.SeverityMedium
	}
}

// summarize renders a human-readable one-liner for a conflict.
func summarize(kind consult.DecisionKind, positions []consult.ConflictPosition) string {
	return fmt.Sprintf("%s: roles disagree (%s)", kind, positionValues(positions))
}

// positionValues renders "role holds value" pairs in position order.
func positionValues(positions []consult.ConflictPosition) string {
	parts := make([]string, 0, len(positions))
	for _, p := range positions {
		parts = append(parts, fmt.Sprintf("%s: %s", p.RoleID, p.Decision.String()))
	}
	return strings.Join(parts, "; ")
}
