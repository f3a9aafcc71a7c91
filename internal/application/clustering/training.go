package clustering

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/TripMatch/internal/domain/cluster"
	"github.com/turtacn/TripMatch/internal/infrastructure/database/redis"
	"github.com/turtacn/TripMatch/internal/infrastructure/ingest"
	"github.com/turtacn/TripMatch/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/prometheus"
	trainer "github.com/turtacn/TripMatch/internal/intelligence/clustering"
	"github.com/turtacn/TripMatch/internal/intelligence/common"
	"github.com/turtacn/TripMatch/pkg/errors"
)

// TrainingService builds and publishes models.
type TrainingService interface {
	TrainFromFile(ctx context.Context, path string, opts TrainOptions) (*TrainingSummary, error)
	TrainFromRecords(ctx context.Context, records []ingest.Record, opts TrainOptions) (*TrainingSummary, error)
}

// TrainOptions overrides the service's training configuration for one run.
type TrainOptions struct {
	// Seed replaces the configured seed when non-nil.
	Seed *int64
	// Source labels the run in logs and metrics ("api", "cli", "worker").
	Source string
}

// TrainingSummary describes a published run.
type TrainingSummary struct {
	Version      string              `json:"version"`
	TrainedAt    time.Time           `json:"trained_at"`
	RecordCount  int                 `json:"record_count"`
	Dropped      int                 `json:"dropped"`
	GroupCount   int                 `json:"group_count"`
	Seed         int64               `json:"seed"`
	Silhouette   float64             `json:"silhouette"`
	Converged    bool                `json:"converged"`
	Iterations   int                 `json:"balance_iterations"`
	Distribution []cluster.GroupSize `json:"distribution"`
	Undersized   []cluster.GroupSize `json:"undersized,omitempty"`
	Oversized    []cluster.GroupSize `json:"oversized,omitempty"`
	Duration     time.Duration       `json:"duration"`

	// Table and Partition are index-aligned; kept for writing the clustered
	// table.
	Table     *ingest.Table      `json:"-"`
	Partition *cluster.Partition `json:"-"`
}

// TrainingDeps wires a TrainingService. Registry is required.
type TrainingDeps struct {
	Registry  common.ModelRegistry
	Loader    TableLoader
	Artifacts ArtifactStore
	Members   cluster.MemberRepository
	Cache     redis.Cache
	Events    EventPublisher
	Lock      TrainingLock
	Metrics   *prometheus.AppMetrics
	Logger    logging.Logger
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

type trainingService struct {
	cfg     trainer.TrainConfig
	deps    TrainingDeps
	logger  logging.Logger
	running atomic.Bool
}

// NewTrainingService validates cfg and returns a service.
func NewTrainingService(cfg trainer.TrainConfig, deps TrainingDeps) (TrainingService, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Registry == nil {
		return nil, errors.New(errors.ErrCodeInternal, "training service requires a model registry")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Loader == nil {
		deps.Loader = ingest.NewLoader(deps.Logger)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &trainingService{cfg: cfg, deps: deps, logger: deps.Logger.Named("training")}, nil
}

func (s *trainingService) TrainFromFile(ctx context.Context, path string, opts TrainOptions) (*TrainingSummary, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeValidation, "data file is required")
	}
	table, err := s.deps.Loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return s.train(ctx, table, opts)
}

func (s *trainingService) TrainFromRecords(ctx context.Context, records []ingest.Record, opts TrainOptions) (*TrainingSummary, error) {
	return s.train(ctx, &ingest.Table{Records: records}, opts)
}

func (s *trainingService) acquire(ctx context.Context) (func(), error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, errors.New(errors.ErrCodeTrainingInProgress, "a training run is already in progress")
	}
	if s.deps.Lock == nil {
		return func() { s.running.Store(false) }, nil
	}
	ok, err := s.deps.Lock.TryLock(ctx)
	if err != nil || !ok {
		s.running.Store(false)
		if err != nil {
			return nil, err
		}
		return nil, errors.New(errors.ErrCodeTrainingInProgress, "a training run is in progress on another instance")
	}
	return func() {
		// Released with a fresh context so a cancelled run still unlocks.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.deps.Lock.Unlock(unlockCtx); err != nil {
			s.logger.Warn("training lock release failed", logging.Err(err))
		}
		s.running.Store(false)
	}, nil
}

func (s *trainingService) train(ctx context.Context, table *ingest.Table, opts TrainOptions) (summary *TrainingSummary, err error) {
	if opts.Source == "" {
		opts.Source = "api"
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	started := time.Now()
	defer func() {
		if err != nil {
			prometheus.RecordTrainingRun(s.deps.Metrics, opts.Source, false, time.Since(started), 0, 0, 0)
			prometheus.RecordError(s.deps.Metrics, "training", string(errors.GetCode(err)))
		}
	}()

	cfg := s.cfg
	if opts.Seed != nil {
		cfg.Seed = *opts.Seed
	}

	res, err := trainer.Train(ctx, table.Vectors(), cfg, trainer.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	cfg.Seed = res.Seed

	at := s.deps.Now().UTC()
	version := newVersion(at)
	model := common.NewModel(version, res, cfg)
	model.TrainedAt = at

	ids := make([]string, len(table.Records))
	for i, r := range table.Records {
		ids[i] = r.ID
		if ids[i] == "" {
			ids[i] = strconv.Itoa(i)
		}
	}
	members, err := cluster.NewMembers(version, ids, table.Vectors(), res.Partition, at)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(logging.String("version", version), logging.String("source", opts.Source))

	// The version is staged before member rows are replaced and promoted
	// after, so the restored model and the stored members never disagree.
	if s.deps.Artifacts != nil {
		if err := s.deps.Artifacts.Stage(ctx, model, members); err != nil {
			log.Error("staging artifact failed; previous model stays active", logging.Err(err))
			return nil, err
		}
	}
	if s.deps.Members != nil {
		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode training config")
		}
		run := cluster.TrainingRun{
			RunID:       version,
			TrainedAt:   at,
			GroupCount:  model.GroupCount,
			RecordCount: model.RecordCount,
			Seed:        model.Seed,
			Silhouette:  model.Silhouette,
			Config:      cfgJSON,
		}
		if err := s.deps.Members.SaveRun(ctx, run, members); err != nil {
			log.Error("persisting members failed; previous model stays active", logging.Err(err))
			return nil, err
		}
	}
	if s.deps.Artifacts != nil {
		if err := s.deps.Artifacts.Promote(ctx, version); err != nil {
			log.Error("promoting artifact failed", logging.Err(err))
			return nil, err
		}
	}
	if err := s.deps.Registry.Publish(ctx, model); err != nil {
		return nil, err
	}

	if s.deps.Cache != nil {
		if n, err := s.deps.Cache.DeleteByPrefix(ctx, matchCachePrefix); err != nil {
			log.Warn("assignment cache invalidation failed", logging.Err(err))
		} else {
			log.Debug("assignment cache invalidated", logging.Int64("keys", n))
		}
	}
	if err := publishEvent(ctx, s.deps.Events, kafka.TopicModelTrained, version, kafka.EventModelTrained, kafka.ModelTrainedPayload{
		Version:     version,
		TrainedAt:   at,
		GroupCount:  model.GroupCount,
		RecordCount: model.RecordCount,
		Seed:        model.Seed,
		Silhouette:  model.Silhouette,
	}); err != nil {
		log.Warn("model trained event not published", logging.Err(err))
	}

	summary = &TrainingSummary{
		Version:      version,
		TrainedAt:    at,
		RecordCount:  res.Partition.Len(),
		Dropped:      table.Dropped,
		GroupCount:   model.GroupCount,
		Seed:         res.Seed,
		Silhouette:   res.Silhouette,
		Converged:    res.Converged,
		Iterations:   res.BalanceIterations,
		Distribution: res.Report.Distribution,
		Undersized:   res.Report.Undersized,
		Oversized:    res.Report.Oversized,
		Duration:     time.Since(started),
		Table:        table,
		Partition:    res.Partition,
	}
	prometheus.RecordTrainingRun(s.deps.Metrics, opts.Source, true, summary.Duration, summary.GroupCount, summary.RecordCount, summary.Iterations)
	prometheus.RecordEmptyGroupTargets(s.deps.Metrics, "merge", len(res.Unresolved.Unmerged))
	prometheus.RecordEmptyGroupTargets(s.deps.Metrics, "split", len(res.Unresolved.Unsplit))

	log.Info("model published",
		logging.Int("groups", summary.GroupCount),
		logging.Int("records", summary.RecordCount),
		logging.Int("dropped", summary.Dropped),
		logging.Bool("converged", summary.Converged),
		logging.Duration("duration", summary.Duration))
	return summary, nil
}

// newVersion returns a version that sorts by training time.
func newVersion(at time.Time) string {
	return fmt.Sprintf("%s-%s", at.Format("20060102T150405Z"), uuid.NewString()[:8])
}

//Personal.AI order the ending
