package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mverbeek/buurtlens/internal/cbs"
	"github.com/mverbeek/buurtlens/internal/config"
	"github.com/mverbeek/buurtlens/internal/domain"
	"github.com/mverbeek/buurtlens/internal/jobs"
	"github.com/mverbeek/buurtlens/internal/logger"
	"github.com/mverbeek/buurtlens/internal/repository"
	"github.com/mverbeek/buurtlens/internal/telemetry"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "buurtlens-worker",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		"poll_interval":      cfg.Worker.PollInterval.String(),
		"cancel_check_every": cfg.Worker.CancelCheckEvery,
		"batch_size":         cfg.Worker.BatchSize,
		"metrics_addr":       cfg.Worker.MetricsAddr,
	}).Info("Starting batch job worker")

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	jobRepo := repository.NewBatchJobRepository(db)
	neighborhoodRepo := repository.NewNeighborhoodRepository(db)

	// Initialize CBS clients
	cbsCfg := &cbs.Config{
		WFSBaseURL:   cfg.CBS.WFSBaseURL,
		ODataBaseURL: cfg.CBS.ODataBaseURL,
		StatsTableID: cfg.CBS.StatsTableID,
		CrimeTableID: cfg.CBS.CrimeTableID,
		Timeout:      cfg.CBS.Timeout,
	}
	geoClient := cbs.NewGeoClient(cbsCfg, appLogger)
	statsClient := cbs.NewStatsClient(cbsCfg, appLogger)
	crimeClient := cbs.NewCrimeClient(cbsCfg, appLogger)

	// Register processors
	registry := jobs.NewRegistry(
		jobs.NewCityIngestionProcessor(
			jobRepo,
			neighborhoodRepo,
			geoClient,
			statsClient,
			crimeClient,
			cfg.Worker.CancelCheckEvery,
			cfg.Worker.BatchSize,
			appLogger,
		),
		jobs.NewAllCitiesProcessor(jobRepo, geoClient, cfg.Worker.CancelCheckEvery, appLogger),
		jobs.NewMapGenerationProcessor(appLogger),
	)

	state := jobs.NewStateManager(jobRepo, appLogger)
	executor := jobs.NewExecutor(jobRepo, state, registry, appLogger)
	worker := jobs.NewWorker(executor, cfg.Worker.PollInterval, appLogger)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Expose Prometheus metrics
	go func() {
		if err := http.ListenAndServe(cfg.Worker.MetricsAddr, telemetry.Handler()); err != nil {
			appLogger.WithError(err).Error("Metrics server stopped")
		}
	}()

	// Update the pending queue depth gauge in the background
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				count, err := jobRepo.CountByStatus(ctx, domain.JobStatusPending)
				if err == nil {
					telemetry.PendingDepthGauge.Set(float64(count))
				}
			}
		}
	}()

	// Run the worker loop until shutdown or a fatal error
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.WithError(err).Fatal("Worker stopped")
	}

	appLogger.Info("Worker exited")
}
