package consult

// Tier is the traffic-light confidence grade of a consultation.
type Tier string

const (
	TierGreen Tier = "green"
	TierAmber Tier = "amber"
	TierRed   Tier = "red"
)

// Thresholds are the tunable knobs of the consensus calculation. The zero
// value is not usable; DefaultThresholds provides the documented defaults
// and config may override each knob.
type Thresholds struct {
	// Green is the minimum average confidence for the green tier.
	Green float64 `json:"green"`
	// Amber is the minimum average confidence for the amber tier.
	Amber float64 `json:"amber"`
	// ConsensusRatio: agreement holds when min >= avg * ratio.
	ConsensusRatio float64 `json:"consensus_ratio"`
	// ConfidenceFloor: any single role below this forces human review.
	ConfidenceFloor float64 `json:"confidence_floor"`
	// CostDeviation: relative cost spread at or above this is a conflict and,
	// if it survives resolution, forces human review.
	CostDeviation float64 `json:"cost_deviation"`
}

// DefaultThresholds returns the standard consensus knobs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Green:           0.95,
		Amber:           0.75,
		ConsensusRatio:  0.90,
		ConfidenceFloor: 0.70,
		CostDeviation:   0.15,
	}
}

// ConsensusReport is the outcome of the consensus calculation over a full
// role transcript.
type ConsensusReport struct {
	AvgConfidence float64  `json:"avg_confidence"`
	MinConfidence float64  `json:"min_confidence"`
	Agreement     bool     `json:"agreement"`
	Tier          Tier     `json:"tier"`
	HITLRequired  bool     `json:"hitl_required"`
	HITLReasons   []string `json:"hitl_reasons,omitempty"`
}
