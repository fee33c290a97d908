package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/providers"
	"github.com/persianhub/backend/internal/infrastructure/observability"
)

const invalidationTimeout = 5 * time.Second

// CacheInvalidationService drops cached API responses when the directory
// changes. Listing pages are cheap to rebuild, so every business change
// clears all business responses.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to directory events and invalidates in the background
func (s *CacheInvalidationService) Start() error {
	events, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelDirectory)
	if err != nil {
		return fmt.Errorf("failed to subscribe to directory updates: %w", err)
	}

	s.wg.Add(1)
	go s.processEvents(events)
	observability.GetLogger().Info().Msg("Cache invalidation service started")
	return nil
}

// Stop cancels the subscription and waits for the worker to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	s.wg.Wait()
	observability.GetLogger().Info().Msg("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(events <-chan *entities.DirectoryEvent) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(s.ctx, invalidationTimeout)
			if err := s.HandleEvent(ctx, event); err != nil {
				observability.GetLogger().Warn().Err(err).Str("event_id", event.ID).Msg("Cache invalidation failed")
			}
			cancel()
		}
	}
}

// HandleEvent drops the cached responses affected by event
func (s *CacheInvalidationService) HandleEvent(ctx context.Context, event *entities.DirectoryEvent) error {
	for _, pattern := range InvalidationPatterns(event.Type) {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to invalidate pattern %s: %w", pattern, err)
		}
	}
	observability.GetLogger().Debug().
		Str("event_type", string(event.Type)).
		Str("entity_id", event.EntityID).
		Msg("Invalidated cached responses")
	return nil
}

// InvalidationPatterns returns the cache key globs made stale by an event type
func InvalidationPatterns(eventType entities.EventType) []string {
	businesses := providers.HTTPCachePrefix + "/api/businesses*"
	categories := providers.HTTPCachePrefix + "/api/categories*"

	switch eventType {
	case entities.EventBusinessSubmitted:
		// pending listings are not publicly visible
		return nil
	case entities.EventBusinessUpdated, entities.EventBusinessApproved:
		return []string{businesses}
	case entities.EventCategoryApproved, entities.EventCategoryUpdated:
		return []string{categories}
	default:
		return []string{businesses, categories}
	}
}
