package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8081
  mode: debug
  train_timeout: 2m
  allowed_origins: ["http://localhost:5000"]
log:
  level: debug
  format: console
clustering:
  target_initial_groups: 150
  max_group_size: 40
  min_group_size: 8
  seed: 1234
  match_policy: exact_only
postgres:
  enabled: true
  host: db
  user: tripmatch
  password: secret
  db_name: trips
redis:
  enabled: true
  addr: cache:6379
minio:
  enabled: false
kafka:
  brokers: ["k1:9092", "k2:9092"]
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(WithConfigPath(path))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.TrainTimeout)
	assert.Equal(t, []string{"http://localhost:5000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "console", cfg.Log.Format)

	assert.Equal(t, 150, cfg.Clustering.TargetInitialGroups)
	assert.Equal(t, 40, cfg.Clustering.MaxGroupSize)
	assert.Equal(t, 8, cfg.Clustering.MinGroupSize)
	assert.Equal(t, int64(1234), cfg.Clustering.Seed)
	assert.Equal(t, "exact_only", cfg.Clustering.MatchPolicy)
	assert.Equal(t, 5, cfg.Clustering.AdditionalSplitRounds, "omitted key keeps its default")
	assert.Equal(t, 50, cfg.Clustering.BalanceIterationBudget)

	assert.True(t, cfg.Postgres.Enabled)
	assert.Equal(t, "trips", cfg.Postgres.DBName)
	assert.Equal(t, DefaultDBPort, cfg.Postgres.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_SplitRounds(t *testing.T) {
	path := createTempConfigFile(t, "clustering:\n  additional_split_rounds: 0\n")
	cfg, err := Load(WithConfigPath(path))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Clustering.AdditionalSplitRounds)

	path = createTempConfigFile(t, "clustering:\n  additional_split_rounds: -1\n")
	cfg, err = Load(WithConfigPath(path))
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Clustering.AdditionalSplitRounds)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(WithConfigPath("non_existent_config.yaml"))
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	path := createTempConfigFile(t, "invalid_yaml: [")
	_, err := Load(WithConfigPath(path))
	assert.ErrorIs(t, err, ErrConfigParseError)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	path := createTempConfigFile(t, "clustering:\n  min_group_size: 90\n  max_group_size: 60\n")
	_, err := Load(WithConfigPath(path))
	assert.ErrorIs(t, err, ErrConfigValidation)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	t.Setenv("TRIPMATCH_SERVER_PORT", "9999")
	t.Setenv("TRIPMATCH_CLUSTERING_MAX_GROUP_SIZE", "70")

	cfg, err := Load(WithConfigPath(path))
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 70, cfg.Clustering.MaxGroupSize)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TRIPMATCH_POSTGRES_ENABLED", "true")
	t.Setenv("TRIPMATCH_POSTGRES_HOST", "db-host")
	t.Setenv("TRIPMATCH_POSTGRES_USER", "svc")
	t.Setenv("TRIPMATCH_CLUSTERING_SEED", "77")
	t.Setenv("TRIPMATCH_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Postgres.Enabled)
	assert.Equal(t, "db-host", cfg.Postgres.Host)
	assert.Equal(t, int64(77), cfg.Clustering.Seed)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(WithConfigPath("missing.yaml")) })
}

func TestWatch_ReportsChanges(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	var mu sync.Mutex
	var levels []string
	var errs []error
	Watch(path, func(c *Config) {
		mu.Lock()
		defer mu.Unlock()
		levels = append(levels, c.Log.Level)
	}, func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	})

	updated := strings.Replace(validConfigYAML, "level: debug", "level: error", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(levels) > 0 && levels[len(levels)-1] == "error"
	}, 5*time.Second, 20*time.Millisecond)

	invalid := strings.Replace(updated, "max_group_size: 40", "max_group_size: 2", 1)
	require.NoError(t, os.WriteFile(path, []byte(invalid), 0o644))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) > 0
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, errs[0], ErrConfigValidation)
}

//Personal.AI order the ending
