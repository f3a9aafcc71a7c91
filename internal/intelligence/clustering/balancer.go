package clustering

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/internal/intelligence/kmodes"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// Splitter partitions a group's member vectors into at most k sub-groups and
// returns one sub-group index per vector.
type Splitter interface {
	Split(ctx context.Context, vectors []preference.AttributeVector, k int) ([]int, error)
}

// KModesSplitter splits with k-modes.
type KModesSplitter struct {
	Restarts int
	MaxIter  int
	Rand     *rand.Rand
}

// Split implements Splitter.
func (s *KModesSplitter) Split(ctx context.Context, vectors []preference.AttributeVector, k int) ([]int, error) {
	res, err := kmodes.Run(ctx, vectors, kmodes.Config{K: k, Restarts: s.Restarts, MaxIter: s.MaxIter, Rand: s.Rand})
	if err != nil {
		return nil, err
	}
	return res.Assignments, nil
}

// PassStats summarizes one merge and/or split pass.
type PassStats struct {
	// Merged is the number of undersized groups folded into a neighbor.
	Merged int
	// Unmerged lists undersized groups with no eligible merge target.
	Unmerged []cluster.Label
	// Split is the number of oversized groups subdivided.
	Split int
	// Unsplit lists oversized groups that could not be subdivided.
	Unsplit []cluster.Label
}

func (s *PassStats) add(o PassStats) {
	s.Merged += o.Merged
	s.Unmerged = append(s.Unmerged, o.Unmerged...)
	s.Split += o.Split
	s.Unsplit = append(s.Unsplit, o.Unsplit...)
}

// Balancer repairs group sizes against the band [MinSize, MaxSize]. It holds
// no state between calls.
type Balancer struct {
	MinSize  int
	MaxSize  int
	splitter Splitter
	logger   logging.Logger
}

// NewBalancer returns a Balancer for the band [minSize, maxSize].
func NewBalancer(minSize, maxSize int, splitter Splitter, logger logging.Logger) *Balancer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Balancer{MinSize: minSize, MaxSize: maxSize, splitter: splitter, logger: logger}
}

// Balance runs exactly one merge pass followed by exactly one split pass.
func (b *Balancer) Balance(ctx context.Context, records []preference.AttributeVector, p *cluster.Partition) (PassStats, error) {
	stats := b.MergePass(records, p)
	split, err := b.SplitPass(ctx, records, p)
	stats.add(split)
	return stats, err
}

// MergePass moves every group below MinSize into the group at or above
// MinSize whose centroid is nearest by simple distance to its own centroid.
// Eligibility and centroids are taken from the partition as it stood when the
// pass began. Ties go to the first target in ascending label order. A group
// with no eligible target is left in place and reported.
func (b *Balancer) MergePass(records []preference.AttributeVector, p *cluster.Partition) PassStats {
	var stats PassStats
	groups := p.Groups()

	type target struct {
		label    cluster.Label
		centroid preference.AttributeVector
	}
	var targets []target
	for _, g := range groups {
		if g.Size() >= b.MinSize {
			targets = append(targets, target{label: g.Label, centroid: g.Centroid(records)})
		}
	}

	for _, g := range groups {
		if g.Size() >= b.MinSize {
			continue
		}
		if len(targets) == 0 {
			b.logger.Warn("no merge target for undersized group",
				logging.String("code", errors.ErrCodeEmptyGroupTarget.String()),
				logging.String("label", g.Label.String()),
				logging.Int("size", g.Size()),
				logging.Int("min_size", b.MinSize))
			stats.Unmerged = append(stats.Unmerged, g.Label)
			continue
		}

		centroid := g.Centroid(records)
		best, bestD := 0, preference.Simple(centroid, targets[0].centroid)
		for i := 1; i < len(targets); i++ {
			if d := preference.Simple(centroid, targets[i].centroid); d < bestD {
				best, bestD = i, d
			}
		}
		for _, m := range g.Members {
			p.Set(m, targets[best].label)
		}
		stats.Merged++
		b.logger.Debug("merged undersized group",
			logging.String("label", g.Label.String()),
			logging.String("into", targets[best].label.String()),
			logging.Int("distance", bestD))
	}
	return stats
}

// SubGroupCount is ceil(size / (maxSize * 0.75)).
func SubGroupCount(size, maxSize int) int {
	return int(math.Ceil(float64(size) / (float64(maxSize) * splitFactor)))
}

// SplitPass subdivides every group above MaxSize into SubGroupCount
// sub-groups labeled "<parent>_0" .. "<parent>_<n-1>". A group for which
// fewer than two sub-groups are computed, or for which the splitter finds
// fewer than two, is left untouched and reported.
func (b *Balancer) SplitPass(ctx context.Context, records []preference.AttributeVector, p *cluster.Partition) (PassStats, error) {
	var stats PassStats
	for _, g := range p.Groups() {
		if g.Size() <= b.MaxSize {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		k := SubGroupCount(g.Size(), b.MaxSize)
		if k < 2 {
			b.warnUnsplit(g, k, "fewer than two sub-groups computed")
			stats.Unsplit = append(stats.Unsplit, g.Label)
			continue
		}

		vectors := make([]preference.AttributeVector, len(g.Members))
		for i, m := range g.Members {
			vectors[i] = records[m]
		}
		sub, err := b.splitter.Split(ctx, vectors, k)
		if err != nil {
			return stats, errors.Wrap(err, errors.CodeUnknown, "split of group "+g.Label.String()+" failed")
		}

		dense := denseIndex(sub)
		if len(dense) < 2 {
			b.warnUnsplit(g, k, "members are indistinguishable")
			stats.Unsplit = append(stats.Unsplit, g.Label)
			continue
		}
		for i, m := range g.Members {
			p.Set(m, g.Label.Child(dense[sub[i]]))
		}
		stats.Split++
		b.logger.Debug("split oversized group",
			logging.String("label", g.Label.String()),
			logging.Int("size", g.Size()),
			logging.Int("sub_groups", len(dense)))
	}
	return stats, nil
}

func (b *Balancer) warnUnsplit(g cluster.Group, k int, reason string) {
	b.logger.Warn("cannot split oversized group",
		logging.String("code", errors.ErrCodeEmptyGroupTarget.String()),
		logging.String("label", g.Label.String()),
		logging.Int("size", g.Size()),
		logging.Int("max_size", b.MaxSize),
		logging.Int("sub_groups", k),
		logging.String("reason", reason))
}

// denseIndex maps the distinct values of sub, in ascending order, to 0..n-1.
func denseIndex(sub []int) map[int]int {
	seen := make(map[int]struct{})
	for _, s := range sub {
		seen[s] = struct{}{}
	}
	keys := make([]int, 0, len(seen))
	for s := range seen {
		keys = append(keys, s)
	}
	sort.Ints(keys)
	out := make(map[int]int, len(keys))
	for i, s := range keys {
		out[s] = i
	}
	return out
}

//Personal.AI order the ending
