package repositories

import (
	"context"

	"github.com/persianhub/backend/internal/domain/entities"
)

// ReviewRepository defines storage for business reviews.
// Create returns a CONFLICT AppError when the user already reviewed the business.
type ReviewRepository interface {
	Create(ctx context.Context, review *entities.Review) error
	ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]*entities.Review, error)
	Summary(ctx context.Context, businessID string) (*entities.ReviewSummary, error)
}
