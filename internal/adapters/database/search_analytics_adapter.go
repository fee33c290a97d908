package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/persianhub/backend/pkg/errors"
)

const defaultTopSearchesLimit = 20

// SearchAnalyticsAdapter implements SearchAnalyticsRepository
type SearchAnalyticsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSearchAnalyticsAdapter creates a new search analytics adapter
func NewSearchAnalyticsAdapter(client *postgres.Client) repositories.SearchAnalyticsRepository {
	return &SearchAnalyticsAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Increment upserts the tally for an already normalized term
func (a *SearchAnalyticsAdapter) Increment(ctx context.Context, term string) error {
	if term == "" {
		return nil
	}

	now := time.Now()
	query, args, err := a.db.Insert("search_analytics").
		Rows(goqu.Record{
			"term":              term,
			"search_count":      1,
			"first_searched_at": now,
			"last_searched_at":  now,
		}).
		OnConflict(goqu.DoUpdate("term", goqu.Record{
			"search_count":     goqu.L(`"search_analytics"."search_count" + 1`),
			"last_searched_at": now,
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to track search term", err)
	}

	return nil
}

// CountsByTerm returns the tallies of the given terms
func (a *SearchAnalyticsAdapter) CountsByTerm(ctx context.Context, terms []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(terms))
	if len(terms) == 0 {
		return counts, nil
	}

	query, args, err := a.db.From("search_analytics").
		Select("term", "search_count").
		Where(goqu.Ex{"term": terms}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get search counts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			term  string
			count int64
		)
		if err := rows.Scan(&term, &count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan search count", err)
		}
		counts[term] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate search counts", err)
	}

	return counts, nil
}

// Top returns the most searched terms
func (a *SearchAnalyticsAdapter) Top(ctx context.Context, limit int) ([]*entities.SearchAnalytic, error) {
	if limit <= 0 {
		limit = defaultTopSearchesLimit
	}

	query, args, err := a.db.From("search_analytics").
		Select("term", "search_count", "first_searched_at", "last_searched_at").
		Order(goqu.I("search_count").Desc(), goqu.I("term").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get top searches", err)
	}
	defer rows.Close()

	analytics := make([]*entities.SearchAnalytic, 0, limit)
	for rows.Next() {
		s := &entities.SearchAnalytic{}
		if err := rows.Scan(&s.Term, &s.SearchCount, &s.FirstSearchedAt, &s.LastSearchedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan search analytic", err)
		}
		analytics = append(analytics, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate search analytics", err)
	}

	return analytics, nil
}
