// Package kmodes implements k-modes partitioning of categorical vectors with
// Huang seeding and repeated restarts. The best restart is the one with the
// lowest total within-group simple distance.
//
// Results depend on the random source. Callers that need reproducible runs
// pass a seeded *rand.Rand.
package kmodes

import (
	"context"
	"math/rand"

	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// Defaults for a single Run.
const (
	DefaultRestarts = 10
	DefaultMaxIter  = 100
)

// Config controls one Run.
type Config struct {
	// K is the requested group count.
	K int
	// Restarts is the number of independent seedings tried.
	Restarts int
	// MaxIter bounds relocation rounds per restart.
	MaxIter int
	// Rand is the random source. Required.
	Rand *rand.Rand
}

// Result is the best partitioning found.
type Result struct {
	// Assignments[i] is the group index of vector i, in [0, K).
	Assignments []int
	// Modes[k] is the mode of group k.
	Modes []preference.AttributeVector
	// K is the effective group count. It is below the requested K when the
	// input has fewer distinct vectors.
	K int
	// Cost is the total simple distance of every vector to its group mode.
	Cost int
	// Iterations is the number of relocation rounds of the kept restart.
	Iterations int
	// Restart is the index of the kept restart.
	Restart int
}

// Run partitions vectors into at most cfg.K groups.
func Run(ctx context.Context, vectors []preference.AttributeVector, cfg Config) (*Result, error) {
	if len(vectors) == 0 {
		return nil, errors.New(errors.ErrCodeNoRecords, "kmodes: no vectors to partition")
	}
	if cfg.K < 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidTrainConfig, "kmodes: k must be positive, got %d", cfg.K)
	}
	if cfg.Rand == nil {
		return nil, errors.New(errors.ErrCodeInvalidTrainConfig, "kmodes: random source is required")
	}
	if cfg.Restarts < 1 {
		cfg.Restarts = DefaultRestarts
	}
	if cfg.MaxIter < 1 {
		cfg.MaxIter = DefaultMaxIter
	}

	distinct := distinctVectors(vectors)
	if len(distinct) <= cfg.K {
		return partitionByValue(vectors, distinct), nil
	}

	var best *Result
	for r := 0; r < cfg.Restarts; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := runOnce(vectors, distinct, cfg.K, cfg.MaxIter, cfg.Rand)
		res.Restart = r
		if best == nil || res.Cost < best.Cost {
			best = res
		}
	}
	return best, nil
}

// distinctVectors returns the distinct vectors in first-seen order.
func distinctVectors(vectors []preference.AttributeVector) []preference.AttributeVector {
	seen := make(map[string]struct{}, len(vectors))
	var out []preference.AttributeVector
	for _, v := range vectors {
		k := v.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// partitionByValue puts each distinct vector in its own group. Used when
// there are no more distinct vectors than requested groups.
func partitionByValue(vectors, distinct []preference.AttributeVector) *Result {
	index := make(map[string]int, len(distinct))
	for i, v := range distinct {
		index[v.Key()] = i
	}
	assign := make([]int, len(vectors))
	for i, v := range vectors {
		assign[i] = index[v.Key()]
	}
	modes := make([]preference.AttributeVector, len(distinct))
	copy(modes, distinct)
	return &Result{Assignments: assign, Modes: modes, K: len(distinct), Cost: 0}
}

func runOnce(vectors, distinct []preference.AttributeVector, k, maxIter int, rng *rand.Rand) *Result {
	modes := huangInit(vectors, distinct, k, rng)
	assign := make([]int, len(vectors))
	for i := range assign {
		assign[i] = -1
	}

	iter := 0
	for iter < maxIter {
		iter++
		moved := 0
		for i, v := range vectors {
			g := nearest(modes, v)
			if g != assign[i] {
				assign[i] = g
				moved++
			}
		}
		reseedEmpty(vectors, assign, modes)
		updateModes(vectors, assign, modes)
		if moved == 0 {
			break
		}
	}

	return &Result{
		Assignments: assign,
		Modes:       modes,
		K:           k,
		Cost:        cost(vectors, assign, modes),
		Iterations:  iter,
	}
}

// huangInit draws each mode attribute-wise with probability proportional to
// value frequency, then snaps each draw to the closest data vector not
// already chosen.
func huangInit(vectors, distinct []preference.AttributeVector, k int, rng *rand.Rand) []preference.AttributeVector {
	var choices [preference.NumFields][]string
	for f := 0; f < preference.NumFields; f++ {
		for _, v := range vectors {
			choices[f] = append(choices[f], v.Value(preference.Field(f)))
		}
	}

	modes := make([]preference.AttributeVector, k)
	used := make(map[string]bool, k)
	for g := 0; g < k; g++ {
		var draw [preference.NumFields]string
		for f := 0; f < preference.NumFields; f++ {
			draw[f] = choices[f][rng.Intn(len(choices[f]))]
		}
		target := preference.FromValues(draw)

		bestIdx, bestD := -1, 0
		for i, v := range distinct {
			if used[v.Key()] {
				continue
			}
			d := preference.Simple(target, v)
			if bestIdx < 0 || d < bestD {
				bestIdx, bestD = i, d
			}
		}
		// Only reachable when k exceeds the distinct count, which Run rules out.
		if bestIdx < 0 {
			bestIdx = rng.Intn(len(distinct))
		}
		modes[g] = distinct[bestIdx]
		used[distinct[bestIdx].Key()] = true
	}
	return modes
}

// nearest returns the index of the closest mode; ties go to the lowest index.
func nearest(modes []preference.AttributeVector, v preference.AttributeVector) int {
	best, bestD := 0, preference.Simple(modes[0], v)
	for g := 1; g < len(modes); g++ {
		if d := preference.Simple(modes[g], v); d < bestD {
			best, bestD = g, d
		}
	}
	return best
}

// reseedEmpty moves, for every empty group, the vector of the largest group
// that lies farthest from its mode into the empty group.
func reseedEmpty(vectors []preference.AttributeVector, assign []int, modes []preference.AttributeVector) {
	for {
		sizes := make([]int, len(modes))
		for _, a := range assign {
			sizes[a]++
		}
		empty := -1
		largest := 0
		for g, s := range sizes {
			if s == 0 && empty < 0 {
				empty = g
			}
			if s > sizes[largest] {
				largest = g
			}
		}
		if empty < 0 || sizes[largest] < 2 {
			return
		}

		far, farD := -1, -1
		for i, a := range assign {
			if a != largest {
				continue
			}
			if d := preference.Simple(modes[largest], vectors[i]); d > farD {
				far, farD = i, d
			}
		}
		assign[far] = empty
		modes[empty] = vectors[far]
	}
}

func updateModes(vectors []preference.AttributeVector, assign []int, modes []preference.AttributeVector) {
	members := make([][]int, len(modes))
	for i, a := range assign {
		members[a] = append(members[a], i)
	}
	for g := range modes {
		if len(members[g]) > 0 {
			modes[g] = cluster.Mode(vectors, members[g])
		}
	}
}

func cost(vectors []preference.AttributeVector, assign []int, modes []preference.AttributeVector) int {
	total := 0
	for i, v := range vectors {
		total += preference.Simple(modes[assign[i]], v)
	}
	return total
}

//Personal.AI order the ending
