package clustering

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/domain/preference"
	"github.com/turtacn/TripMatch/internal/infrastructure/database/redis"
	"github.com/turtacn/TripMatch/internal/infrastructure/ingest"
	"github.com/turtacn/TripMatch/internal/infrastructure/messaging/kafka"
	trainer "github.com/turtacn/TripMatch/internal/intelligence/clustering"
	"github.com/turtacn/TripMatch/internal/intelligence/common"
)

func syntheticRecords(n int, seed int64) []ingest.Record {
	rng := rand.New(rand.NewSource(seed))
	dests := []string{"paris", "rome", "oslo", "lima"}
	spont := []string{"yes", "no"}
	leave := []string{"weekend", "month", "year"}
	out := make([]ingest.Record, n)
	for i := range out {
		out[i] = ingest.Record{
			ID:     fmt.Sprintf("u%03d", i),
			Vector: preference.MustOf(dests[rng.Intn(len(dests))], spont[rng.Intn(len(spont))], leave[rng.Intn(len(leave))]),
		}
	}
	return out
}

func testTrainConfig() trainer.TrainConfig {
	cfg := trainer.DefaultTrainConfig()
	cfg.TargetInitialGroups = 6
	cfg.MinGroupSize = 5
	cfg.MaxGroupSize = 40
	cfg.InitRestarts = 2
	cfg.SplitRestarts = 2
	cfg.SilhouetteSample = 50
	cfg.Seed = 7
	return cfg
}

// publishedModel returns a registry holding a two-group model.
func publishedModel(version string) common.ModelRegistry {
	table, err := cluster.NewCentroidTable([]cluster.Centroid{
		{Label: "0", Vector: preference.MustOf("paris", "yes", "weekend"), Size: 12},
		{Label: "1", Vector: preference.MustOf("rome", "no", "month"), Size: 20},
	})
	if err != nil {
		panic(err)
	}
	reg := common.NewModelRegistry(nil)
	if err := reg.Publish(context.Background(), &common.Model{
		Version:     version,
		TrainedAt:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Centroids:   table,
		GroupCount:  2,
		RecordCount: 32,
	}); err != nil {
		panic(err)
	}
	return reg
}

// ─────────────────────────────────────────────────────────────────────────────
// Mocks
// ─────────────────────────────────────────────────────────────────────────────

type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) SaveRun(ctx context.Context, run cluster.TrainingRun, members []cluster.Member) error {
	return m.Called(ctx, run, members).Error(0)
}

func (m *MockMemberRepository) LatestRun(ctx context.Context) (*cluster.TrainingRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cluster.TrainingRun), args.Error(1)
}

func (m *MockMemberRepository) UpsertMember(ctx context.Context, member cluster.Member) error {
	return m.Called(ctx, member).Error(0)
}

func (m *MockMemberRepository) GetMember(ctx context.Context, recordID string) (*cluster.Member, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cluster.Member), args.Error(1)
}

func (m *MockMemberRepository) ListGroupMembers(ctx context.Context, label cluster.Label, excludeRecordID string, limit, offset int) ([]cluster.Member, error) {
	args := m.Called(ctx, label, excludeRecordID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cluster.Member), args.Error(1)
}

func (m *MockMemberRepository) CountByGroup(ctx context.Context) ([]cluster.GroupSize, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cluster.GroupSize), args.Error(1)
}

type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) Stage(ctx context.Context, model *common.Model, members []cluster.Member) error {
	return m.Called(ctx, model, members).Error(0)
}

func (m *MockArtifactStore) Promote(ctx context.Context, version string) error {
	return m.Called(ctx, version).Error(0)
}

type MockTrainingLock struct {
	mock.Mock
}

func (m *MockTrainingLock) TryLock(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockTrainingLock) Unlock(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*kafka.ProducerMessage
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg *kafka.ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) envelopes() []*kafka.EventEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*kafka.EventEnvelope, 0, len(p.msgs))
	for _, m := range p.msgs {
		env, err := kafka.MessageToEventEnvelope(&kafka.Message{Topic: m.Topic, Value: m.Value})
		if err != nil {
			panic(err)
		}
		out = append(out, env)
	}
	return out
}

// memCache is an in-memory redis.Cache.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	sets    int
	deleted []string
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

var _ redis.Cache = (*memCache)(nil)

func (c *memCache) Get(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return c.getErr
	}
	d, ok := c.data[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(d, dest)
}

func (c *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = d
	c.sets++
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) GetOrSet(ctx context.Context, key string, dest any, ttl time.Duration, loader func(ctx context.Context) (any, error)) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}
	v, err := loader(ctx)
	if err != nil {
		return err
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		return err
	}
	return c.Get(ctx, key, dest)
}

func (c *memCache) DeleteByPrefix(_ context.Context, prefix string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			c.deleted = append(c.deleted, k)
			n++
		}
	}
	return n, nil
}

func (c *memCache) Ping(context.Context) error { return nil }

//Personal.AI order the ending
