package kmodes

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/pkg/errors"
)

func repeat(v preference.AttributeVector, n int) []preference.AttributeVector {
	out := make([]preference.AttributeVector, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// threeFamilies returns 30 vectors in three families of two variants each.
func threeFamilies() []preference.AttributeVector {
	var out []preference.AttributeVector
	out = append(out, repeat(preference.MustOf("paris", "yes", "weekend"), 5)...)
	out = append(out, repeat(preference.MustOf("rome", "no", "month"), 5)...)
	out = append(out, repeat(preference.MustOf("oslo", "maybe", "never"), 5)...)
	out = append(out, repeat(preference.MustOf("paris", "yes", "weekday"), 5)...)
	out = append(out, repeat(preference.MustOf("rome", "no", "year"), 5)...)
	out = append(out, repeat(preference.MustOf("oslo", "maybe", "always"), 5)...)
	return out
}

func TestRun_Validation(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	_, err := Run(ctx, nil, Config{K: 2, Rand: rng})
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoRecords))

	vs := threeFamilies()
	_, err = Run(ctx, vs, Config{K: 0, Rand: rng})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTrainConfig))

	_, err = Run(ctx, vs, Config{K: 2})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTrainConfig))
}

func TestRun_FewerDistinctThanK(t *testing.T) {
	vs := append(repeat(preference.MustOf("paris", "yes", "weekend"), 4),
		repeat(preference.MustOf("rome", "no", "weekday"), 3)...)

	res, err := Run(context.Background(), vs, Config{K: 5, Rand: rand.New(rand.NewSource(1))})
	require.NoError(t, err)

	assert.Equal(t, 2, res.K)
	assert.Equal(t, 0, res.Cost)
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1}, res.Assignments)
}

func TestRun_FindsFamilies(t *testing.T) {
	vs := threeFamilies()
	res, err := Run(context.Background(), vs, Config{K: 3, Restarts: 20, Rand: rand.New(rand.NewSource(42))})
	require.NoError(t, err)

	assert.Equal(t, 3, res.K)
	assert.Equal(t, 15, res.Cost, "optimum keeps each family together")
	require.Len(t, res.Assignments, len(vs))
	for family := 0; family < 3; family++ {
		a := res.Assignments[family*5]
		b := res.Assignments[(family+3)*5]
		assert.Equal(t, a, b, "family %d split across groups", family)
	}
}

func TestRun_EveryGroupNonEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	dests := []string{"a", "b", "c", "d", "e", "f", "g"}
	var vs []preference.AttributeVector
	for i := 0; i < 300; i++ {
		vs = append(vs, preference.MustOf(dests[rng.Intn(len(dests))], []string{"yes", "no"}[rng.Intn(2)], []string{"w", "d", "m"}[rng.Intn(3)]))
	}

	res, err := Run(context.Background(), vs, Config{K: 12, Restarts: 3, Rand: rand.New(rand.NewSource(9))})
	require.NoError(t, err)

	sizes := make([]int, res.K)
	for _, a := range res.Assignments {
		require.GreaterOrEqual(t, a, 0)
		require.Less(t, a, res.K)
		sizes[a]++
	}
	for g, s := range sizes {
		assert.Positive(t, s, "group %d is empty", g)
	}
	assert.Len(t, res.Modes, res.K)
	assert.Less(t, res.Restart, 3)
}

func TestRun_SameSeedSameResult(t *testing.T) {
	vs := threeFamilies()
	a, err := Run(context.Background(), vs, Config{K: 4, Restarts: 5, Rand: rand.New(rand.NewSource(11))})
	require.NoError(t, err)
	b, err := Run(context.Background(), vs, Config{K: 4, Restarts: 5, Rand: rand.New(rand.NewSource(11))})
	require.NoError(t, err)

	assert.Equal(t, a.Assignments, b.Assignments)
	assert.Equal(t, a.Cost, b.Cost)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, threeFamilies(), Config{K: 3, Rand: rand.New(rand.NewSource(1))})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSilhouette(t *testing.T) {
	vs := threeFamilies()
	good := make([]int, len(vs))
	for i := range vs {
		good[i] = (i / 5) % 3
	}
	score := Silhouette(vs, good, 0, nil)
	assert.Greater(t, score, 0.5)

	bad := make([]int, len(vs))
	for i := range vs {
		bad[i] = i % 3
	}
	assert.Less(t, Silhouette(vs, bad, 0, nil), score)

	assert.Equal(t, 0.0, Silhouette(vs, make([]int, len(vs)), 0, nil), "single group")
	assert.Equal(t, 0.0, Silhouette(nil, nil, 0, nil))

	sampled := Silhouette(vs, good, 10, rand.New(rand.NewSource(5)))
	assert.GreaterOrEqual(t, sampled, -1.0)
	assert.LessOrEqual(t, sampled, 1.0)
}

//Personal.AI order the ending
