package main

import (
	"errors"
	"flag"
	"log"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/persianhub/backend/internal/infrastructure/clients/postgres"
	"github.com/persianhub/backend/internal/infrastructure/observability"
	"github.com/persianhub/backend/migrations"
	"github.com/persianhub/backend/pkg/config"
)

func main() {
	var direction string
	var steps int
	flag.StringVar(&direction, "direction", "up", "migration direction: up or down")
	flag.IntVar(&steps, "steps", 0, "number of migrations to apply (0 applies all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-migrate", cfg.Log.Environment, cfg.Log.Level)
	logger := observability.GetLogger()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open embedded migrations")
	}
	driver, err := migratepg.WithInstance(pgClient.DB(), &migratepg.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create migrator")
	}

	switch {
	case steps != 0 && direction == "down":
		err = m.Steps(-steps)
	case steps != 0:
		err = m.Steps(steps)
	case direction == "down":
		err = m.Down()
	case direction == "up":
		err = m.Up()
	default:
		logger.Fatal().Str("direction", direction).Msg("Unknown direction")
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Str("direction", direction).Msg("Migration failed")
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		logger.Warn().Err(verr).Msg("Failed to read schema version")
	}
	logger.Info().Str("direction", direction).Uint("version", version).Bool("dirty", dirty).
		Bool("changed", err == nil).Msg("Migrations applied")
}
