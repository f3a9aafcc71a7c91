// Package matcher places a new preference vector into an existing group of a
// trained CentroidTable without retraining.
//
// Matching runs in two tiers. The exact tier scans centroids in ascending
// label order and returns the first whose every field equals the input. The
// weighted tier, enabled by PolicyExactThenWeighted, returns the centroid with
// the smallest weighted distance (destination mismatch 3, others 1), ties
// going to the first label. Under PolicyExactOnly a vector with no exact
// match yields no group.
package matcher

import (
	"strings"

	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// Policy selects which tiers run.
type Policy string

const (
	PolicyExactThenWeighted Policy = "exact_then_weighted"
	PolicyExactOnly         Policy = "exact_only"
)

// ParsePolicy accepts the policy names case-insensitively. An empty string
// selects the default.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyExactThenWeighted:
		return PolicyExactThenWeighted, nil
	case PolicyExactOnly:
		return PolicyExactOnly, nil
	default:
		return "", errors.Newf(errors.ErrCodeValidation, "unknown match policy %q", s)
	}
}

// Tier records which tier produced a match.
type Tier string

const (
	TierExact    Tier = "exact"
	TierWeighted Tier = "weighted"
	TierNone     Tier = "none"
)

// Match is the outcome of one assignment.
type Match struct {
	Label cluster.Label `json:"label"`
	Tier  Tier          `json:"tier"`
	// Distance is the weighted distance to the chosen centroid; zero for an
	// exact match.
	Distance int `json:"distance"`
}

// Assigner is stateless and safe for concurrent use.
type Assigner struct {
	policy Policy
}

// NewAssigner returns an Assigner for policy. An unknown policy falls back to
// PolicyExactThenWeighted.
func NewAssigner(policy Policy) *Assigner {
	if policy != PolicyExactOnly {
		policy = PolicyExactThenWeighted
	}
	return &Assigner{policy: policy}
}

// Policy returns the active policy.
func (a *Assigner) Policy() Policy { return a.policy }

// Assign validates v and matches it against table. found is false with a nil
// error when no tier matched.
func (a *Assigner) Assign(v preference.AttributeVector, table *cluster.CentroidTable) (Match, bool, error) {
	if !v.Complete() {
		return Match{Tier: TierNone}, false, errors.New(errors.ErrCodeSchemaViolation, "preference vector is missing a required field").
			WithDetail("missing=" + strings.Join(v.Missing(), ","))
	}
	if table.Len() == 0 {
		return Match{Tier: TierNone}, false, errors.New(errors.ErrCodeEmptyCentroidTable, "centroid table has no groups")
	}

	if m, ok := exact(v, table); ok {
		return m, true, nil
	}
	if a.policy == PolicyExactOnly {
		return Match{Tier: TierNone}, false, nil
	}
	return weighted(v, table), true, nil
}

// Assign runs the default policy and returns only the label.
func Assign(v preference.AttributeVector, table *cluster.CentroidTable) (cluster.Label, bool, error) {
	m, ok, err := NewAssigner(PolicyExactThenWeighted).Assign(v, table)
	return m.Label, ok, err
}

func exact(v preference.AttributeVector, table *cluster.CentroidTable) (Match, bool) {
	var (
		m     Match
		found bool
	)
	table.Each(func(c cluster.Centroid) bool {
		if c.Vector.Equal(v) {
			m, found = Match{Label: c.Label, Tier: TierExact}, true
			return false
		}
		return true
	})
	return m, found
}

func weighted(v preference.AttributeVector, table *cluster.CentroidTable) Match {
	best := Match{Tier: TierWeighted, Distance: -1}
	table.Each(func(c cluster.Centroid) bool {
		if d := preference.Weighted(v, c.Vector); best.Distance < 0 || d < best.Distance {
			best.Label, best.Distance = c.Label, d
		}
		return true
	})
	return best
}

//Personal.AI order the ending
