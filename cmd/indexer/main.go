package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/persianhub/backend/internal/adapters/database"
	"github.com/persianhub/backend/internal/adapters/search"
	"github.com/persianhub/backend/internal/application/services"
	"github.com/persianhub/backend/internal/infrastructure/clients/postgres"
	"github.com/persianhub/backend/internal/infrastructure/clients/typesense"
	"github.com/persianhub/backend/internal/infrastructure/observability"
	"github.com/persianhub/backend/pkg/config"
)

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete the existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.Log.Environment, cfg.Log.Level)
	logger := observability.GetLogger()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			logger.Fatal().Err(err).Str("interval", intervalValue).Msg("Invalid interval")
		}
		if interval <= 0 {
			logger.Fatal().Msg("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, reset); err != nil {
			logger.Error().Err(err).Msg("Reindex failed")
		}

		if interval <= 0 {
			return
		}

		reset = false
		logger.Info().Dur("next_run_in", interval).Msg("Reindex complete")

		select {
		case <-ctx.Done():
			logger.Info().Msg("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	logger := observability.GetLogger()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		logger.Info().Msg("Reset requested, deleting businesses collection")
		if err := tsClient.DropCollection(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to delete collection")
		}
	}

	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	businesses := services.NewBusinessService(
		database.NewBusinessAdapter(pgClient),
		database.NewCategoryAdapter(pgClient),
		database.NewCategoryRequestAdapter(pgClient),
		search.NewTypesenseAdapter(tsClient),
		nil, nil, nil, nil, nil,
	)

	start := time.Now()
	indexed, err := businesses.ReindexApproved(ctx)
	if err != nil {
		return err
	}

	logger.Info().Int("indexed", indexed).Dur("duration", time.Since(start)).Msg("Indexed approved businesses")
	return nil
}
