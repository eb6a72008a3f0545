package service

import (
	"fmt"
	"math"

	"github.com/kalkwerk/konsil/internal/domain/consult"
)

// ConflictResolver settles conflicts by policy. Policies are tried strictly
// in order: decision authority, strictness order, weighted vote. What no
// policy settles stays unresolved and forces human review downstream.
type ConflictResolver struct {
	registry *Registry
}

// NewConflictResolver creates a resolver backed by the role registry.
func NewConflictResolver(registry *Registry) *ConflictResolver {
	return &ConflictResolver{registry: registry}
}

// Resolve settles each conflict independently. The returned slice parallels
// the input order; resolution is deterministic, never randomized.
func (r *ConflictResolver) Resolve(cls *consult.Classification, conflicts []consult.Conflict) []consult.Resolution {
	priorities := planPriorities(cls)

	resolutions := make([]consult.Resolution, 0, len(conflicts))
	for i := range conflicts {
		resolutions = append(resolutions, r.resolveOne(&conflicts[i], priorities))
	}
	return resolutions
}

// resolveOne applies the policy chain to a single conflict.
func (r *ConflictResolver) resolveOne(c *consult.Conflict, priorities map[string]int) consult.Resolution {
	if res, ok := r.byAuthority(c); ok {
		return res
	}
	if res, ok := byStrictness(c); ok {
		return res
	}
	if res, ok := byWeightedVote(c, priorities); ok {
		return res
	}
	return consult.Resolution{
		ConflictID: c.ID,
		Policy:     consult.PolicyUnresolved,
		Resolved:   false,
		Rationale:  "no policy could settle the conflict: equal vote weight and equal role priority",
	}
}

// byAuthority wins the conflict for the single participating role holding
// decision authority for the kind. Zero or several authorities make the
// policy inapplicable.
func (r *ConflictResolver) byAuthority(c *consult.Conflict) (consult.Resolution, bool) {
	authority := r.registry.AuthorityFor(c.Kind, c.Roles())
	if authority == nil {
		return consult.Resolution{}, false
	}
	for i := range c.Positions {
		if c.Positions[i].RoleID != authority.ID {
			continue
		}
		winner := c.Positions[i]
		return consult.Resolution{
			ConflictID: c.ID,
			Policy:     consult.PolicyAuthority,
			Winner:     &winner,
			Resolved:   true,
			Rationale: fmt.Sprintf("%s holds decision authority for %s decisions: %s",
				authority.ID, c.Kind, winner.Decision.String()),
		}, true
	}
	return consult.Resolution{}, false
}

// byStrictness wins the conflict for the strictest value when the kind
// defines a strictness order and all positions are mutually comparable.
func byStrictness(c *consult.Conflict) (consult.Resolution, bool) {
	if len(c.Positions) == 0 {
		return consult.Resolution{}, false
	}
	winner := c.Positions[0]
	for _, p := range c.Positions[1:] {
		stricter, comparable := p.Decision.StricterThan(winner.Decision)
		if !comparable {
			return consult.Resolution{}, false
		}
		if stricter {
			winner = p
		}
	}
	return consult.Resolution{
		ConflictID: c.ID,
		Policy:     consult.PolicyStricter,
		Winner:     &winner,
		Resolved:   true,
		Rationale: fmt.Sprintf("strictest %s value governs: %s (held by %s)",
			c.Kind, winner.Decision.String(), winner.RoleID),
	}, true
}

// byWeightedVote tallies confidence per distinct value. The heaviest value
// wins; a tie falls to the value backed by the earliest-priority role; a tie
// on both is unresolvable.
func byWeightedVote(c *consult.Conflict, priorities map[string]int) (consult.Resolution, bool) {
	type tally struct {
		total        float64
		bestPriority int
		first        *consult.ConflictPosition
	}

	tallies := make(map[string]*tally)
	var order []string
	for i := range c.Positions {
		p := &c.Positions[i]
		key := p.Decision.VoteKey()
		t, ok := tallies[key]
		if !ok {
			t = &tally{bestPriority: math.MaxInt, first: p}
			tallies[key] = t
			order = append(order, key)
		}
		t.total += p.Confidence
		if prio, known := priorities[p.RoleID]; known && prio < t.bestPriority {
			t.bestPriority = prio
		}
	}

	if len(order) < 2 {
		return consult.Resolution{}, false
	}

	best := tallies[order[0]]
	tiedOnEverything := false
	for _, key := range order[1:] {
		t := tallies[key]
		switch {
		case t.total > best.total:
			best, tiedOnEverything = t, false
		case t.total == best.total && t.bestPriority < best.bestPriority:
			best, tiedOnEverything = t, false
		case t.total == best.total && t.bestPriority == best.bestPriority:
			tiedOnEverything = true
		}
	}
	if tiedOnEverything {
		return consult.Resolution{}, false
	}

	winner := *best.first
	return consult.Resolution{
		ConflictID: c.ID,
		Policy:     consult.PolicyWeightedVote,
		Winner:     &winner,
		Resolved:   true,
		Rationale: fmt.Sprintf("weighted vote favors %s (confidence weight %.2f, earliest priority %d)",
			winner.Decision.String(), best.total, best.bestPriority),
	}, true
}

// planPriorities maps each planned role to its priority. Earlier entries
// win when a role appears twice.
func planPriorities(cls *consult.Classification) map[string]int {
	priorities := make(map[string]int)
	if cls == nil {
		return priorities
	}
	for _, spec := range cls.Roles {
		if _, seen := priorities[spec.RoleID]; !seen {
			priorities[spec.RoleID] = spec.Priority
		}
	}
	return priorities
}
