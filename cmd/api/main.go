package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/persianhub/backend/internal/adapters/cache"
	"github.com/persianhub/backend/internal/adapters/database"
	"github.com/persianhub/backend/internal/adapters/events"
	"github.com/persianhub/backend/internal/adapters/search"
	"github.com/persianhub/backend/internal/api/handlers"
	"github.com/persianhub/backend/internal/api/middleware"
	"github.com/persianhub/backend/internal/api/routes"
	"github.com/persianhub/backend/internal/application/services"
	"github.com/persianhub/backend/internal/domain/providers"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/clients/postgres"
	"github.com/persianhub/backend/internal/infrastructure/clients/redis"
	"github.com/persianhub/backend/internal/infrastructure/clients/typesense"
	"github.com/persianhub/backend/internal/infrastructure/notifications"
	"github.com/persianhub/backend/internal/infrastructure/observability"
	"github.com/persianhub/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Log.Environment, cfg.Log.Level)
	logger := observability.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis backs the response cache and the event bus. The API keeps
	// serving without it.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, running without cache and events")
		} else {
			defer redisClient.Close()
		}
	}

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	}

	var searchIndex repositories.BusinessSearchIndex
	if cfg.Typesense.Enabled {
		typesenseClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			logger.Warn().Err(err).Msg("Typesense unavailable, search index disabled")
		} else {
			if err := typesenseClient.InitSchema(ctx); err != nil {
				logger.Warn().Err(err).Msg("Failed to init Typesense schema")
			}
			searchIndex = search.NewTypesenseAdapter(typesenseClient)
		}
	}

	sender, err := newEmailSender(cfg.SMTP)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize email sender")
	}

	// Adapters
	businessAdapter := database.NewBusinessAdapter(pgClient)
	categoryAdapter := database.NewCategoryAdapter(pgClient)
	categoryRequestAdapter := database.NewCategoryRequestAdapter(pgClient)
	reviewAdapter := database.NewReviewAdapter(pgClient)
	searchAnalyticsAdapter := database.NewSearchAnalyticsAdapter(pgClient)
	emailLogAdapter := database.NewEmailLogAdapter(pgClient)

	// Services
	notifier := services.NewNotificationService(sender, emailLogAdapter, cfg.SMTP.AdminEmails, cfg.Server.PublicURL, metrics)
	searchAnalytics := services.NewSearchAnalyticsService(searchAnalyticsAdapter)
	businessService := services.NewBusinessService(
		businessAdapter,
		categoryAdapter,
		categoryRequestAdapter,
		searchIndex,
		services.NewSearchRanker(),
		searchAnalytics,
		notifier,
		eventBus,
		metrics,
	)
	categoryService := services.NewCategoryService(categoryAdapter, categoryRequestAdapter, eventBus)
	reviewService := services.NewReviewService(reviewAdapter, businessAdapter, eventBus)
	autoApprover := services.NewCategoryAutoApprover(
		categoryRequestAdapter,
		categoryAdapter,
		searchAnalyticsAdapter,
		eventBus,
		metrics,
	).WithNotifier(notifier)

	var cacheInvalidationService *services.CacheInvalidationService
	if cacheProvider != nil && eventBus != nil {
		cacheInvalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := cacheInvalidationService.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start cache invalidation service")
			cacheInvalidationService = nil
		}
	}

	// Handlers
	businessHandler := handlers.NewBusinessHandler(businessService, reviewService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	adminHandler := handlers.NewAdminHandler(businessService, categoryService, searchAnalytics)
	autoApproveHandler := handlers.NewAutoApproveHandler(autoApprover)
	sseHandler := handlers.NewSSEHandler(eventBus)

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, metrics, middleware.DefaultCacheRoutes())
	}

	router := routes.NewRouter(
		businessHandler,
		categoryHandler,
		adminHandler,
		autoApproveHandler,
		sseHandler,
		middleware.NewAuth(cfg.Auth),
		cacheMiddleware,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}

	// Let in-flight search tracking finish before the pool closes
	searchAnalytics.Wait()

	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing event bus")
		}
	}

	logger.Info().Msg("Server stopped")
}

// newEmailSender returns the SMTP sender when mail is enabled and a
// logging sender otherwise
func newEmailSender(cfg config.SMTPConfig) (providers.EmailSender, error) {
	if !cfg.Enabled {
		return notifications.LogSender{}, nil
	}
	return notifications.NewSMTPSender(cfg)
}
