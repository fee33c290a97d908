package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/persianhub/backend/internal/adapters/database"
	"github.com/persianhub/backend/internal/adapters/events"
	"github.com/persianhub/backend/internal/application/services"
	"github.com/persianhub/backend/internal/domain/providers"
	"github.com/persianhub/backend/internal/infrastructure/clients/postgres"
	"github.com/persianhub/backend/internal/infrastructure/clients/redis"
	"github.com/persianhub/backend/internal/infrastructure/notifications"
	"github.com/persianhub/backend/internal/infrastructure/observability"
	"github.com/persianhub/backend/pkg/config"
	"github.com/robfig/cron/v3"
)

const runTimeout = 5 * time.Minute

func main() {
	var once bool
	flag.BoolVar(&once, "once", false, "run auto-approval once and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-scheduler", cfg.Log.Environment, cfg.Log.Level)
	logger := observability.GetLogger()

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Approval events invalidate the API's category cache
	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, approval events disabled")
		} else {
			defer redisClient.Close()
			eventBus = events.NewRedisEventBus(redisClient)
			defer eventBus.Close()
		}
	}

	var sender providers.EmailSender = notifications.LogSender{}
	if cfg.SMTP.Enabled {
		smtp, err := notifications.NewSMTPSender(cfg.SMTP)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize email sender")
		}
		sender = smtp
	}
	notifier := services.NewNotificationService(
		sender,
		database.NewEmailLogAdapter(pgClient),
		cfg.SMTP.AdminEmails,
		cfg.Server.PublicURL,
		metrics,
	)

	approver := services.NewCategoryAutoApprover(
		database.NewCategoryRequestAdapter(pgClient),
		database.NewCategoryAdapter(pgClient),
		database.NewSearchAnalyticsAdapter(pgClient),
		eventBus,
		metrics,
	).WithNotifier(notifier)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := func() {
		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()

		summary, err := approver.Run(runCtx)
		if err != nil {
			logger.Error().Err(err).Msg("Category auto-approval failed")
			return
		}
		logger.Info().Int("processed", summary.Processed).Int("approved", summary.Approved).Msg(summary.Message)
	}

	if once {
		run()
		return
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Scheduler.AutoApproveSpec, run); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.Scheduler.AutoApproveSpec).Msg("Invalid auto-approve schedule")
	}
	scheduler.Start()
	logger.Info().Str("spec", cfg.Scheduler.AutoApproveSpec).Msg("Scheduler started")

	<-ctx.Done()
	logger.Info().Msg("Scheduler shutting down")
	<-scheduler.Stop().Done()
}
