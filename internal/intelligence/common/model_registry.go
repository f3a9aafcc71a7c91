// Package common holds model lifecycle pieces shared by the training and
// assignment paths.
package common

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/internal/intelligence/clustering"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// DefaultHistoryLimit is the number of published models kept for rollback.
const DefaultHistoryLimit = 5

// Model is an immutable published model. Callers must not mutate it.
type Model struct {
	Version     string                 `json:"version"`
	TrainedAt   time.Time              `json:"trained_at"`
	Centroids   *cluster.CentroidTable `json:"centroids"`
	GroupCount  int                    `json:"group_count"`
	RecordCount int                    `json:"record_count"`
	Seed        int64                  `json:"seed"`
	Silhouette  float64                `json:"silhouette"`
	Config      clustering.TrainConfig `json:"config"`
}

// ModelVersion summarizes one entry of the publish history.
type ModelVersion struct {
	Version    string    `json:"version"`
	TrainedAt  time.Time `json:"trained_at"`
	GroupCount int       `json:"group_count"`
	Active     bool      `json:"active"`
}

// ModelLoader restores the most recently persisted model.
type ModelLoader interface {
	LoadLatest(ctx context.Context) (*Model, error)
}

// ModelRegistry publishes trained models. Readers always see a complete
// model: either the one before or the one after a Publish.
type ModelRegistry interface {
	Publish(ctx context.Context, m *Model) error
	Active(ctx context.Context) (*Model, error)
	Rollback(ctx context.Context) (*Model, error)
	Versions(ctx context.Context) []ModelVersion
	Restore(ctx context.Context, loader ModelLoader) error
}

// RegistryOption customizes the registry.
type RegistryOption func(*modelRegistry)

// WithHistoryLimit bounds the rollback history.
func WithHistoryLimit(n int) RegistryOption {
	return func(r *modelRegistry) {
		if n > 0 {
			r.historyLimit = n
		}
	}
}

// WithPublishHook registers fn to run after every successful Publish or
// Rollback, outside the registry lock.
func WithPublishHook(fn func(ctx context.Context, m *Model)) RegistryOption {
	return func(r *modelRegistry) {
		if fn != nil {
			r.hooks = append(r.hooks, fn)
		}
	}
}

type modelRegistry struct {
	active atomic.Pointer[Model]

	mu           sync.Mutex // guards history
	history      []*Model   // oldest first; last entry is active
	historyLimit int

	hooks  []func(ctx context.Context, m *Model)
	logger logging.Logger
}

// NewModelRegistry returns an empty registry.
func NewModelRegistry(logger logging.Logger, opts ...RegistryOption) ModelRegistry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &modelRegistry{historyLimit: DefaultHistoryLimit, logger: logger.Named("model_registry")}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewModel builds a Model from a completed training run.
func NewModel(version string, res *clustering.TrainResult, cfg clustering.TrainConfig) *Model {
	return &Model{
		Version:     version,
		TrainedAt:   time.Now().UTC(),
		Centroids:   res.Centroids,
		GroupCount:  res.Centroids.Len(),
		RecordCount: res.Partition.Len(),
		Seed:        res.Seed,
		Silhouette:  res.Silhouette,
		Config:      cfg,
	}
}

func validateModel(m *Model) error {
	if m == nil {
		return errors.New(errors.ErrCodeValidation, "model is nil")
	}
	if m.Version == "" {
		return errors.New(errors.ErrCodeValidation, "model version is required")
	}
	if m.Centroids.Len() == 0 {
		return errors.New(errors.ErrCodeEmptyCentroidTable, "model has no groups")
	}
	return nil
}

func (r *modelRegistry) Publish(ctx context.Context, m *Model) error {
	if err := validateModel(m); err != nil {
		return err
	}

	r.mu.Lock()
	for _, h := range r.history {
		if h.Version == m.Version {
			r.mu.Unlock()
			return errors.Newf(errors.ErrCodeConflict, "model version %s already published", m.Version)
		}
	}
	r.history = append(r.history, m)
	if len(r.history) > r.historyLimit {
		r.history = r.history[len(r.history)-r.historyLimit:]
	}
	r.active.Store(m)
	r.mu.Unlock()

	r.logger.Info("model published",
		logging.String("version", m.Version),
		logging.Int("groups", m.GroupCount),
		logging.Int("records", m.RecordCount))
	r.notify(ctx, m)
	return nil
}

func (r *modelRegistry) Active(_ context.Context) (*Model, error) {
	m := r.active.Load()
	if m == nil {
		return nil, errors.New(errors.ErrCodeModelNotTrained, "no model has been trained")
	}
	return m, nil
}

func (r *modelRegistry) Rollback(ctx context.Context) (*Model, error) {
	r.mu.Lock()
	if len(r.history) < 2 {
		r.mu.Unlock()
		return nil, errors.New(errors.ErrCodeModelNotTrained, "no previous model to roll back to")
	}
	dropped := r.history[len(r.history)-1]
	r.history = r.history[:len(r.history)-1]
	prev := r.history[len(r.history)-1]
	r.active.Store(prev)
	r.mu.Unlock()

	r.logger.Warn("model rolled back",
		logging.String("from", dropped.Version),
		logging.String("to", prev.Version))
	r.notify(ctx, prev)
	return prev, nil
}

func (r *modelRegistry) Versions(_ context.Context) []ModelVersion {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := r.active.Load()
	out := make([]ModelVersion, 0, len(r.history))
	for i := len(r.history) - 1; i >= 0; i-- {
		m := r.history[i]
		out = append(out, ModelVersion{
			Version:    m.Version,
			TrainedAt:  m.TrainedAt,
			GroupCount: m.GroupCount,
			Active:     m == active,
		})
	}
	return out
}

// Restore publishes the loader's latest model. A missing artifact leaves the
// registry empty and is not an error.
func (r *modelRegistry) Restore(ctx context.Context, loader ModelLoader) error {
	if loader == nil {
		return nil
	}
	m, err := loader.LoadLatest(ctx)
	if err != nil {
		if errors.IsNotFound(err) {
			r.logger.Info("no persisted model to restore")
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to restore model")
	}
	return r.Publish(ctx, m)
}

func (r *modelRegistry) notify(ctx context.Context, m *Model) {
	for _, h := range r.hooks {
		h(ctx, m)
	}
}

//Personal.AI order the ending
