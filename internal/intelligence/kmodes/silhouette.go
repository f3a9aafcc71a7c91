package kmodes

import (
	"math/rand"

	"github.com/turtacn/TripMatch/internal/domain/preference"
)

// DefaultSilhouetteSample bounds the quadratic silhouette computation.
const DefaultSilhouetteSample = 2000

// Silhouette returns the mean silhouette coefficient of assignments under
// simple distance, computed over at most sampleSize vectors drawn with rng.
// Vectors in singleton groups score 0. It returns 0 when fewer than two
// groups are present in the sample.
func Silhouette(vectors []preference.AttributeVector, assignments []int, sampleSize int, rng *rand.Rand) float64 {
	n := len(vectors)
	if n == 0 || len(assignments) != n {
		return 0
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSilhouetteSample
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if n > sampleSize {
		if rng != nil {
			rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		}
		idx = idx[:sampleSize]
	}

	groupSize := make(map[int]int)
	for _, i := range idx {
		groupSize[assignments[i]]++
	}
	if len(groupSize) < 2 {
		return 0
	}

	total := 0.0
	for _, i := range idx {
		own := assignments[i]
		if groupSize[own] == 1 {
			continue
		}
		sums := make(map[int]int, len(groupSize))
		for _, j := range idx {
			if i == j {
				continue
			}
			sums[assignments[j]] += preference.Simple(vectors[i], vectors[j])
		}

		a := float64(sums[own]) / float64(groupSize[own]-1)
		b := -1.0
		for g, size := range groupSize {
			if g == own {
				continue
			}
			if mean := float64(sums[g]) / float64(size); b < 0 || mean < b {
				b = mean
			}
		}

		denom := a
		if b > denom {
			denom = b
		}
		if denom > 0 {
			total += (b - a) / denom
		}
	}
	return total / float64(len(idx))
}

//Personal.AI order the ending
