package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/persianhub/backend/pkg/errors"
)

// ReviewAdapter implements ReviewRepository
type ReviewAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewReviewAdapter creates a new review adapter
func NewReviewAdapter(client *postgres.Client) repositories.ReviewRepository {
	return &ReviewAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a review; a second review by the same user is a conflict
func (a *ReviewAdapter) Create(ctx context.Context, review *entities.Review) error {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now()
	}

	query, args, err := a.db.Insert("reviews").Rows(goqu.Record{
		"id":          review.ID,
		"business_id": review.BusinessID,
		"user_id":     review.UserID,
		"rating":      review.Rating,
		"comment":     review.Comment,
		"created_at":  review.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperrors.NewConflictError("you have already reviewed this business", err)
		}
		return apperrors.NewInternalError("failed to create review", err)
	}

	return nil
}

// ListByBusiness returns reviews of a business, newest first
func (a *ReviewAdapter) ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]*entities.Review, error) {
	ds := a.db.From("reviews").
		Select("id", "business_id", "user_id", "rating", "comment", "created_at").
		Where(goqu.Ex{"business_id": businessID}).
		Order(goqu.I("created_at").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list reviews", err)
	}
	defer rows.Close()

	reviews := make([]*entities.Review, 0)
	for rows.Next() {
		r := &entities.Review{}
		if err := rows.Scan(&r.ID, &r.BusinessID, &r.UserID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan review", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate reviews", err)
	}

	return reviews, nil
}

// Summary returns the review count and average rating of a business
func (a *ReviewAdapter) Summary(ctx context.Context, businessID string) (*entities.ReviewSummary, error) {
	query, args, err := a.db.From("reviews").
		Select(
			goqu.COUNT("*"),
			goqu.COALESCE(goqu.AVG("rating"), 0),
		).
		Where(goqu.Ex{"business_id": businessID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	summary := &entities.ReviewSummary{BusinessID: businessID}
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&summary.Count, &summary.AverageRating); err != nil {
		return nil, apperrors.NewInternalError("failed to summarize reviews", err)
	}

	return summary, nil
}
