// Package bootstrap builds the infrastructure shared by the API server, the
// training worker and the CLI from one Config. Every backing service is
// optional: a disabled section leaves its collaborator nil and the
// application services skip the corresponding step.
package bootstrap

import (
	"context"
	"fmt"

	app "github.com/turtacn/TripMatch/internal/application/clustering"
	"github.com/turtacn/TripMatch/internal/config"
	"github.com/turtacn/TripMatch/internal/infrastructure/database/postgres"
	"github.com/turtacn/TripMatch/internal/infrastructure/database/postgres/repositories"
	redisinfra "github.com/turtacn/TripMatch/internal/infrastructure/database/redis"
	"github.com/turtacn/TripMatch/internal/infrastructure/ingest"
	"github.com/turtacn/TripMatch/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TripMatch/internal/infrastructure/storage/local"
	minioinfra "github.com/turtacn/TripMatch/internal/infrastructure/storage/minio"
	"github.com/turtacn/TripMatch/internal/intelligence/common"
	"github.com/turtacn/TripMatch/internal/intelligence/matcher"
)

const trainingLockName = "training"

// Infrastructure holds the connected backing services. Nil fields are
// disabled in the configuration.
type Infrastructure struct {
	Config *config.Config
	Logger logging.Logger

	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	Postgres *postgres.Connection
	Members  *repositories.MemberRepository

	Redis *redisinfra.Client
	Cache redisinfra.Cache
	Lock  *redisinfra.Mutex

	MinIO     *minioinfra.MinIOClient
	Artifacts *minioinfra.ArtifactRepository

	Producer *kafka.Producer
	Registry common.ModelRegistry
}

// New connects every enabled service, runs pending migrations when
// configured and restores the latest persisted model into the registry. On
// error everything already opened is closed.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Infrastructure, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	infra := &Infrastructure{Config: cfg, Logger: logger}
	if err := infra.init(ctx); err != nil {
		infra.Close()
		return nil, err
	}
	return infra, nil
}

func (i *Infrastructure) init(ctx context.Context) error {
	cfg, log := i.Config, i.Logger

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, log)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		i.Collector = collector
		i.Metrics = prometheus.NewAppMetrics(collector)
	}

	if cfg.Postgres.Enabled {
		if cfg.Postgres.AutoMigrate {
			if err := postgres.RunMigrations(cfg.Postgres.DSN()); err != nil {
				return fmt.Errorf("postgres migrations: %w", err)
			}
			log.Info("database migrations applied")
		}
		conn, err := postgres.NewConnection(ctx, cfg.Postgres, log)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		i.Postgres = conn
		i.Members = repositories.NewMemberRepository(conn, log)
	}

	if cfg.Redis.Enabled {
		client, err := redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		i.Redis = client
		i.Cache = redisinfra.NewRedisCache(client, log,
			redisinfra.WithPrefix(cfg.Redis.KeyPrefix),
			redisinfra.WithDefaultTTL(cfg.Redis.AssignmentTTL))
		i.Lock = redisinfra.NewMutex(client, cfg.Redis.KeyPrefix, trainingLockName, log,
			redisinfra.WithLockTTL(cfg.Server.TrainTimeout))
	}

	var store minioinfra.ObjectStore
	if cfg.MinIO.Enabled {
		client, err := minioinfra.NewMinIOClient(ctx, minioinfra.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			Region:    cfg.MinIO.Region,
			UseSSL:    cfg.MinIO.UseSSL,
		}, log)
		if err != nil {
			return fmt.Errorf("minio: %w", err)
		}
		i.MinIO = client
		store = client
	} else {
		fs, err := local.NewFileStore(cfg.Clustering.ModelDir, log)
		if err != nil {
			return fmt.Errorf("model dir: %w", err)
		}
		store = fs
	}
	i.Artifacts = minioinfra.NewArtifactRepository(store, log)

	if cfg.Kafka.Enabled {
		ensureTopics(ctx, cfg.Kafka, log)
		producer, err := kafka.NewProducer(cfg.Kafka, log)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		i.Producer = producer
	}

	i.Registry = common.NewModelRegistry(log, common.WithPublishHook(func(_ context.Context, m *common.Model) {
		if i.Metrics != nil {
			i.Metrics.TrainingGroups.WithLabelValues().Set(float64(m.GroupCount))
			i.Metrics.TrainingRecords.WithLabelValues().Set(float64(m.RecordCount))
		}
	}))
	if err := i.Registry.Restore(ctx, i.Artifacts); err != nil {
		return err
	}
	return nil
}

type topicEnsurer interface {
	EnsureDefaultTopics(ctx context.Context, replication int) error
	Close() error
}

// dialTopics is replaced in tests.
var dialTopics = func(ctx context.Context, brokers []string, log logging.Logger) (topicEnsurer, error) {
	tm, err := kafka.NewTopicManager(ctx, brokers, log)
	if err != nil {
		return nil, err
	}
	return tm, nil
}

// ensureTopics creates the clustering topics. Brokers that auto-create topics
// or forbid admin requests still work, so failures only warn.
func ensureTopics(ctx context.Context, cfg config.KafkaConfig, log logging.Logger) {
	tm, err := dialTopics(ctx, cfg.Brokers, log)
	if err != nil {
		log.Warn("kafka topic setup skipped", logging.Err(err))
		return
	}
	defer func() { _ = tm.Close() }()
	if err := tm.EnsureDefaultTopics(ctx, cfg.TopicReplication); err != nil {
		log.Warn("kafka topic setup failed", logging.Err(err))
		return
	}
	log.Info("kafka topics ensured", logging.Int("replication", cfg.TopicReplication))
}

// TrainingService builds a training service over the connected services.
func (i *Infrastructure) TrainingService() (app.TrainingService, error) {
	deps := app.TrainingDeps{
		Registry:  i.Registry,
		Loader:    ingest.NewLoader(i.Logger),
		Artifacts: i.Artifacts,
		Cache:     i.Cache,
		Metrics:   i.Metrics,
		Logger:    i.Logger,
	}
	if i.Members != nil {
		deps.Members = i.Members
	}
	if i.Lock != nil {
		deps.Lock = i.Lock
	}
	if i.Producer != nil {
		deps.Events = i.Producer
	}
	return app.NewTrainingService(i.Config.Clustering.TrainConfig, deps)
}

// AssignmentService builds an assignment service over the connected
// services.
func (i *Infrastructure) AssignmentService() (app.AssignmentService, error) {
	policy, err := matcher.ParsePolicy(i.Config.Clustering.MatchPolicy)
	if err != nil {
		return nil, err
	}
	deps := app.AssignmentDeps{
		Registry: i.Registry,
		Policy:   policy,
		Cache:    i.Cache,
		CacheTTL: i.Config.Redis.AssignmentTTL,
		Metrics:  i.Metrics,
		Logger:   i.Logger,
	}
	if i.Members != nil {
		deps.Members = i.Members
	}
	if i.Producer != nil {
		deps.Events = i.Producer
	}
	return app.NewAssignmentService(deps)
}

// HealthChecks returns a readiness probe per connected service, keyed by
// component name.
func (i *Infrastructure) HealthChecks() map[string]func(ctx context.Context) error {
	checks := make(map[string]func(ctx context.Context) error)
	if i.Postgres != nil {
		checks["postgres"] = i.Postgres.HealthCheck
	}
	if i.Redis != nil {
		checks["redis"] = i.Redis.Ping
	}
	if i.MinIO != nil {
		checks["minio"] = i.MinIO.HealthCheck
	}
	return checks
}

// Close releases every connected service. It is safe on a partially
// initialized Infrastructure.
func (i *Infrastructure) Close() {
	if i.Producer != nil {
		if err := i.Producer.Close(); err != nil {
			i.Logger.Warn("kafka producer close failed", logging.Err(err))
		}
	}
	if i.MinIO != nil {
		_ = i.MinIO.Close()
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			i.Logger.Warn("redis close failed", logging.Err(err))
		}
	}
	if i.Postgres != nil {
		i.Postgres.Close()
	}
}

//Personal.AI order the ending
