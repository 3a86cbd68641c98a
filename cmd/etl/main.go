package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/quake-region-etl/internal/adapter/boundary"
	"github.com/couchcryptid/quake-region-etl/internal/adapter/export"
	httpadapter "github.com/couchcryptid/quake-region-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-region-etl/internal/adapter/kafka"
	"github.com/couchcryptid/quake-region-etl/internal/adapter/usgs"
	"github.com/couchcryptid/quake-region-etl/internal/config"
	"github.com/couchcryptid/quake-region-etl/internal/domain"
	"github.com/couchcryptid/quake-region-etl/internal/observability"
	"github.com/couchcryptid/quake-region-etl/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	eventCRS, err := domain.ParseCRS(cfg.EventCRS)
	if err != nil {
		logger.Error("invalid EVENT_CRS", "error", err)
		os.Exit(1)
	}

	catalog := usgs.NewClient(cfg.CatalogURL, cfg.CatalogTimeout, metrics.CatalogCache, logger)
	regions := boundary.NewLoader(cfg, logger)
	exporter := export.NewWriter(cfg, logger)

	// Kafka sink is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var publisher pipeline.Publisher
	var sink *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		sink = kafkaadapter.NewWriter(cfg, logger)
		publisher = sink
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka sink disabled")
	}

	p := pipeline.New(catalog, regions, exporter, publisher,
		eventCRS, logger, metrics, cfg.RunInterval, cfg.FetchRetries)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// In run-once mode (RUN_INTERVAL=0) the pipeline finishing is the exit
	// signal; in interval mode it runs until SIGINT/SIGTERM.
	runDone := make(chan error, 1)
	go func() {
		runDone <- p.Run(ctx)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-runDone:
		if err != nil {
			logger.Error("pipeline error", "error", err)
			exitCode = 1
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	os.Exit(exitCode)
}
