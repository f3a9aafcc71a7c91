package main

import (
	"net/http"

	"github.com/turtacn/TripMatch/internal/bootstrap"
	httpserver "github.com/turtacn/TripMatch/internal/interfaces/http"
	"github.com/turtacn/TripMatch/internal/interfaces/http/handlers"
	"github.com/turtacn/TripMatch/internal/interfaces/http/middleware"
)

// newRouter wires handlers and middleware over infra.
func newRouter(infra *bootstrap.Infrastructure, version string) (http.Handler, error) {
	cfg := infra.Config

	training, err := infra.TrainingService()
	if err != nil {
		return nil, err
	}
	assignment, err := infra.AssignmentService()
	if err != nil {
		return nil, err
	}

	clustering := handlers.NewClusteringHandler(training, assignment, handlers.ClusteringHandlerConfig{
		DataFile:     cfg.Clustering.DataFile,
		DataDir:      cfg.Clustering.DataDir,
		TrainTimeout: cfg.Server.TrainTimeout,
		MaxBodyBytes: cfg.Server.MaxBodySize,
	}, infra.Logger)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.Server.AllowedOrigins

	routerCfg := httpserver.RouterConfig{
		ClusteringHandler: clustering,
		HealthHandler:     handlers.NewHealthHandler(version, handlers.CheckFuncs(infra.HealthChecks())...),
		CORSMiddleware:    middleware.NewCORSMiddleware(corsCfg),
		LoggingMiddleware: middleware.NewLoggingMiddleware(infra.Logger, infra.Metrics, middleware.DefaultLoggingConfig()),
		RateLimitMiddleware: middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Requests: cfg.Server.RateLimitRequests,
			Window:   cfg.Server.RateLimitWindow,
		}, infra.Logger),
		MetricsPath: cfg.Metrics.Path,
		Logger:      infra.Logger,
	}
	if infra.Collector != nil {
		routerCfg.MetricsCollector = infra.Collector
	}
	return httpserver.NewRouter(routerCfg), nil
}

//Personal.AI order the ending
