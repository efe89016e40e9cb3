package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/crash-data-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/crash-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/crash-data-etl/internal/adapter/portal"
	"github.com/couchcryptid/crash-data-etl/internal/archive"
	"github.com/couchcryptid/crash-data-etl/internal/cache"
	"github.com/couchcryptid/crash-data-etl/internal/config"
	"github.com/couchcryptid/crash-data-etl/internal/domain"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
	"github.com/couchcryptid/crash-data-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client, err := portal.NewClient(cfg.SourceURL, cfg.HTTPTimeout, logger)
	if err != nil {
		logger.Error("failed to create portal client", "error", err)
		os.Exit(1)
	}
	store := archive.NewStore(client, cfg.DataDir, cfg.LatestMaxAge, logger, metrics)
	loader := pipeline.NewRegionLoader(store, domain.AccidentSchema, logger, metrics)
	regions := cache.New(loader, logger, metrics,
		cache.NewMemoryTier(),
		cache.NewDiskTier(cfg.DataDir, cfg.CachePath, domain.AccidentSchema, nil),
	)
	merger := pipeline.NewMerger(regions, cfg.MergeConcurrency, logger)

	// Export is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var batchLoader pipeline.BatchLoader
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		batchLoader = writer
		logger.Info("kafka export enabled", "topic", cfg.KafkaTopic, "batch_size", cfg.BatchSize)
	} else {
		logger.Info("kafka export disabled")
	}

	p := pipeline.New(merger, batchLoader, cfg.Regions, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, cfg.Regions, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ingestion pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
