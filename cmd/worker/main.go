// Training worker entry point for TripMatch. It consumes TrainingRequested
// events, retrains and publishes the model through the shared stores.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/TripMatch/internal/bootstrap"
	"github.com/turtacn/TripMatch/internal/config"
	"github.com/turtacn/TripMatch/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/TripMatch/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/TripMatch/internal/interfaces/http"
	"github.com/turtacn/TripMatch/internal/interfaces/http/handlers"
)

const defaultHealthPort = 8081

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (env only when empty)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port of the health and metrics endpoints")
	flag.Parse()

	if err := run(*configPath, *healthPort); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, healthPort int) error {
	var opts []config.LoadOption
	if configPath != "" {
		opts = append(opts, config.WithConfigPath(configPath))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("kafka must be enabled for the worker")
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	training, err := infra.TrainingService()
	if err != nil {
		return err
	}
	handler := &trainingRequestHandler{
		training: training,
		dataFile: cfg.Clustering.DataFile,
		dataDir:  cfg.Clustering.DataDir,
		timeout:  cfg.Server.TrainTimeout,
		logger:   logger,
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfigFromKafka(cfg.Kafka, kafka.TopicTrainingRequested), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("consumer close failed", logging.Err(err))
		}
	}()
	if err := consumer.Subscribe(kafka.TopicTrainingRequested, handler.Handle); err != nil {
		return err
	}

	healthCfg := cfg.Server
	healthCfg.Port = healthPort
	health := httpserver.NewServer(healthCfg, httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler:    handlers.NewHealthHandler(version, handlers.CheckFuncs(infra.HealthChecks())...),
		MetricsCollector: infra.Collector,
		MetricsPath:      cfg.Metrics.Path,
		Logger:           logger,
	}), logger)
	errCh := make(chan error, 1)
	go func() { errCh <- health.Start() }()

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	logger.Info("worker started",
		logging.String("topic", kafka.TopicTrainingRequested),
		logging.String("group", cfg.Kafka.GroupID),
		logging.Int("health_port", healthPort))

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("health server failed", logging.Err(err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	m := consumer.Metrics()
	logger.Info("worker stopping",
		logging.Int64("consumed", m.MessagesConsumed),
		logging.Int64("processed", m.MessagesProcessed),
		logging.Int64("dead_lettered", m.MessagesDeadLettered))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return health.Stop(shutdownCtx)
}

//Personal.AI order the ending
