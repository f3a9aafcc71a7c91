package minio

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/internal/intelligence/clustering"
	"github.com/turtacn/TripMatch/internal/intelligence/common"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// memStore is an in-memory ObjectStore. failOn makes Put fail for keys with
// that suffix.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && strings.HasSuffix(key, m.failOn) {
		return errors.New(errors.ErrCodeStorageError, "injected")
	}
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.objects[key]
	if !ok {
		return nil, errors.New(errors.ErrCodeArtifactNotFound, "object not found").WithDetail(key)
	}
	return d, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func testModel(t *testing.T, version string) (*common.Model, []cluster.Member) {
	t.Helper()
	records := []preference.AttributeVector{
		preference.MustOf("paris", "yes", "weekend"),
		preference.MustOf("paris", "yes", "weekend"),
		preference.MustOf("rome", "no", "month"),
	}
	p := cluster.PartitionFromLabels([]cluster.Label{"0", "0", "1"})
	table, err := cluster.DeriveCentroidTable(records, p)
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &common.Model{
		Version:     version,
		TrainedAt:   at,
		Centroids:   table,
		GroupCount:  table.Len(),
		RecordCount: len(records),
		Seed:        42,
		Silhouette:  0.5,
		Config:      clustering.DefaultTrainConfig(),
	}
	members, err := cluster.NewMembers(version, []string{"a", "b", "c"}, records, p, at)
	require.NoError(t, err)
	return m, members
}

func TestArtifactRepository_SaveAndLoadLatest(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	repo := NewArtifactRepository(store, nil)

	m, members := testModel(t, "v1")
	require.NoError(t, repo.Save(ctx, m, members))
	assert.Equal(t, "v1", string(store.objects[LatestKey]))
	assert.Contains(t, store.objects, "models/v1/centroids.json")

	got, err := repo.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Version)
	assert.Equal(t, 2, got.GroupCount)
	assert.Equal(t, int64(42), got.Seed)
	assert.True(t, got.TrainedAt.Equal(m.TrainedAt))
	assert.Equal(t, m.Config, got.Config)
	assert.Equal(t, m.Centroids.Entries(), got.Centroids.Entries())

	back, err := repo.LoadMembers(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, back, 3)
	assert.Equal(t, cluster.Label("1"), back[2].Label)
	assert.True(t, back[2].Vector.Equal(members[2].Vector))
}

func TestArtifactRepository_FailedSaveKeepsLatest(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	repo := NewArtifactRepository(store, nil)

	m1, mem1 := testModel(t, "v1")
	require.NoError(t, repo.Save(ctx, m1, mem1))

	store.failOn = manifestObject
	m2, mem2 := testModel(t, "v2")
	require.Error(t, repo.Save(ctx, m2, mem2))

	v, err := repo.LatestVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
}

func TestArtifactRepository_StageLeavesLatest(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	repo := NewArtifactRepository(store, nil)

	m1, mem1 := testModel(t, "v1")
	require.NoError(t, repo.Save(ctx, m1, mem1))

	m2, mem2 := testModel(t, "v2")
	require.NoError(t, repo.Stage(ctx, m2, mem2))
	assert.Contains(t, store.objects, "models/v2/manifest.json")
	v, err := repo.LatestVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	require.NoError(t, repo.Promote(ctx, "v2"))
	v, err = repo.LatestVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestArtifactRepository_PromoteRequiresStagedVersion(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	repo := NewArtifactRepository(store, nil)

	err := repo.Promote(ctx, "v9")
	assert.True(t, errors.IsNotFound(err))
	assert.NotContains(t, store.objects, LatestKey)
	assert.True(t, errors.IsCode(repo.Promote(ctx, "a/b"), errors.ErrCodeValidation))
}

func TestArtifactRepository_LoadLatestMissing(t *testing.T) {
	_, err := NewArtifactRepository(newMemStore(), nil).LoadLatest(context.Background())
	assert.True(t, errors.IsNotFound(err))
}

func TestArtifactRepository_RestoresRegistry(t *testing.T) {
	ctx := context.Background()
	repo := NewArtifactRepository(newMemStore(), nil)
	m, members := testModel(t, "v7")
	require.NoError(t, repo.Save(ctx, m, members))

	reg := common.NewModelRegistry(nil)
	require.NoError(t, reg.Restore(ctx, repo))
	active, err := reg.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v7", active.Version)
}

func TestArtifactRepository_Validation(t *testing.T) {
	repo := NewArtifactRepository(newMemStore(), nil)
	m, members := testModel(t, "../escape")
	err := repo.Save(context.Background(), m, members)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	assert.True(t, errors.IsCode(repo.Save(context.Background(), nil, nil), errors.ErrCodeValidation))
}

func TestArtifactRepository_CorruptCentroids(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	repo := NewArtifactRepository(store, nil)
	m, members := testModel(t, "v1")
	require.NoError(t, repo.Save(ctx, m, members))

	store.objects["models/v1/centroids.json"] = []byte(`[{"label":"0","vector":{"wantstotravelto":"paris"}}]`)
	_, err := repo.Load(ctx, "v1")
	assert.Error(t, err)
}

func TestArtifactRepository_VersionsAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewArtifactRepository(newMemStore(), nil)
	for _, v := range []string{"v2", "v1"} {
		m, members := testModel(t, v)
		require.NoError(t, repo.Save(ctx, m, members))
	}

	versions, err := repo.Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, versions)

	err = repo.Delete(ctx, "v1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))

	require.NoError(t, repo.Delete(ctx, "v2"))
	versions, err = repo.Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, versions)
}

//Personal.AI order the ending
