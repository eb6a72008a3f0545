package consult

// Policy names the strategy that settled (or failed to settle) a conflict.
// Policies are always tried in the order authority, stricter, weighted vote.
type Policy string

const (
	PolicyAuthority    Policy = "authority"
	PolicyStricter     Policy = "stricter"
	PolicyWeightedVote Policy = "weighted_vote"
	// PolicyUnresolved marks a conflict no policy could settle. Unresolved
	// conflicts always force human review.
	PolicyUnresolved Policy = "unresolved"
)

// Resolution records the outcome of resolving one conflict.
type Resolution struct {
	ConflictID string            `json:"conflict_id"`
	Policy     Policy            `json:"policy"`
	Winner     *ConflictPosition `json:"winner,omitempty"`
	Rationale  string            `json:"rationale"`
	Resolved   bool              `json:"resolved"`
}
