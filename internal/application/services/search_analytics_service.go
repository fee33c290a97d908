package services

import (
	"context"
	"sync"
	"time"

	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/observability"
	"github.com/persianhub/backend/pkg/utils"
)

const trackSearchTimeout = 5 * time.Second

// SearchAnalyticsService tallies search terms for trend reports and
// category auto-approval.
type SearchAnalyticsService struct {
	repo repositories.SearchAnalyticsRepository
	wg   sync.WaitGroup
}

// NewSearchAnalyticsService creates a new search analytics service
func NewSearchAnalyticsService(repo repositories.SearchAnalyticsRepository) *SearchAnalyticsService {
	return &SearchAnalyticsService{repo: repo}
}

// Track records one search for term. Blank terms are ignored.
func (s *SearchAnalyticsService) Track(ctx context.Context, term string) error {
	normalized := utils.NormalizeTerm(term)
	if normalized == "" {
		return nil
	}
	return s.repo.Increment(ctx, normalized)
}

// TrackAsync records the search off the request path. The request context
// is not used so a finished request does not cancel the write.
func (s *SearchAnalyticsService) TrackAsync(term string) {
	if utils.NormalizeTerm(term) == "" {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), trackSearchTimeout)
		defer cancel()

		if err := s.Track(ctx, term); err != nil {
			observability.GetLogger().Warn().Err(err).Str("term", term).Msg("Failed to track search term")
		}
	}()
}

// Wait blocks until pending TrackAsync writes finish
func (s *SearchAnalyticsService) Wait() {
	s.wg.Wait()
}

// TopSearches returns the most searched terms
func (s *SearchAnalyticsService) TopSearches(ctx context.Context, limit int) ([]*entities.SearchAnalytic, error) {
	return s.repo.Top(ctx, limit)
}
