package service

import (
	"fmt"
	"sort"

	"github.com/kalkwerk/konsil/internal/domain/consult"
)

// ConsensusCalculator turns a role transcript plus resolution results into
// a traffic-light tier and the human-review decision.
type ConsensusCalculator struct {
	thresholds consult.Thresholds
}

// NewConsensusCalculator creates a calculator with the given knobs.
func NewConsensusCalculator(t consult.Thresholds) *ConsensusCalculator {
	return &ConsensusCalculator{thresholds: t}
}

// Thresholds returns the active knobs.
func (c *ConsensusCalculator) Thresholds() consult.Thresholds {
	return c.thresholds
}

// Compute derives the consensus report. An empty transcript yields a red
// report demanding human review; that case never reaches synthesis in the
// normal pipeline.
func (c *ConsensusCalculator) Compute(outputs []consult.RoleOutput, conflicts []consult.Conflict, resolutions []consult.Resolution) consult.ConsensusReport {
	report := consult.ConsensusReport{Tier: consult.TierRed}
	if len(outputs) == 0 {
		report.HITLRequired = true
		report.HITLReasons = []string{"no role outputs to assess"}
		return report
	}

	sum := 0.0
	minConf := outputs[0].Confidence
	for _, o := range outputs {
		sum += o.Confidence
		if o.Confidence < minConf {
			minConf = o.Confidence
		}
	}
	avg := sum / float64(len(outputs))

	report.AvgConfidence = avg
	report.MinConfidence = minConf
	report.Agreement = minConf >= avg*c.thresholds.ConsensusRatio

	switch {
	case avg >= c.thresholds.Green && report.Agreement:
		report.Tier = consult.TierGreen
	case avg >= c.thresholds.Amber && report.Agreement:
		report.Tier = consult.TierAmber
	default:
		report.Tier = consult.TierRed
	}

	reasons := make(map[string]bool)
	if report.Tier == consult.TierRed {
		reasons["confidence tier is red"] = true
	}
	if !report.Agreement {
		reasons[fmt.Sprintf("no consensus: minimum confidence %.2f below %.2f of the %.2f average",
			minConf, c.thresholds.ConsensusRatio, avg)] = true
	}
	for _, o := range outputs {
		if o.Confidence < c.thresholds.ConfidenceFloor {
			reasons[fmt.Sprintf("role %s confidence %.2f below floor %.2f",
				o.RoleID, o.Confidence, c.thresholds.ConfidenceFloor)] = true
		}
	}
	for _, res := range resolutions {
		if !res.Resolved {
			reasons[fmt.Sprintf("conflict %s unresolved", res.ConflictID)] = true
		}
	}
	if dev, over := c.residualCostDeviation(conflicts); over {
		reasons[fmt.Sprintf("cost estimates deviate %.0f%% beyond the %.0f%% tolerance",
			dev*100, c.thresholds.CostDeviation*100)] = true
	}

	if len(reasons) > 0 {
		report.HITLRequired = true
		for r := range reasons {
			report.HITLReasons = append(report.HITLReasons, r)
		}
		sort.Strings(report.HITLReasons)
	}
	return report
}

// residualCostDeviation reports the worst cost spread among detected cost
// conflicts. Money disagreements beyond tolerance keep a human in the loop
// even when a vote formally settled them.
func (c *ConsensusCalculator) residualCostDeviation(conflicts []consult.Conflict) (float64, bool) {
	worst := 0.0
	for _, conf := range conflicts {
		if conf.Kind != consult.DecisionCost {
			continue
		}
		for i := 0; i < len(conf.Positions); i++ {
			for j := i + 1; j < len(conf.Positions); j++ {
				a, b := conf.Positions[i].Decision.Cost, conf.Positions[j].Decision.Cost
				if a == nil || b == nil {
					continue
				}
				if dev := a.RelativeDeviation(*b); dev > worst {
					worst = dev
				}
			}
		}
	}
	return worst, worst >= c.thresholds.CostDeviation
}
