package repositories

import (
	"context"

	"github.com/persianhub/backend/internal/domain/entities"
)

// SearchAnalyticsRepository keeps per-term search counts
type SearchAnalyticsRepository interface {
	// Increment adds one search for term, creating the row if needed
	Increment(ctx context.Context, term string) error
	// CountsByTerm returns counts for the given normalized terms; missing terms are absent
	CountsByTerm(ctx context.Context, terms []string) (map[string]int64, error)
	Top(ctx context.Context, limit int) ([]*entities.SearchAnalytic, error)
}
