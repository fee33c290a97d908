package repositories

import (
	"context"

	"github.com/persianhub/backend/internal/domain/entities"
)

// CategoryRepository defines storage for approved categories and subcategories.
// Create methods return a CONFLICT AppError when the name already exists.
type CategoryRepository interface {
	Create(ctx context.Context, category *entities.Category) error
	FindByName(ctx context.Context, name string) (*entities.Category, error)
	List(ctx context.Context) ([]*entities.Category, error)
	CreateSubcategory(ctx context.Context, subcategory *entities.Subcategory) error
}

// CategoryRequestRepository defines storage for category requests
type CategoryRequestRepository interface {
	Create(ctx context.Context, request *entities.CategoryRequest) error
	GetByID(ctx context.Context, id string) (*entities.CategoryRequest, error)
	ListByStatus(ctx context.Context, status entities.CategoryRequestStatus) ([]*entities.CategoryRequest, error)
	// UpdateStatusIfPending transitions the given pending requests and
	// returns how many rows changed. Rows that are no longer pending are
	// left untouched.
	UpdateStatusIfPending(ctx context.Context, ids []string, status entities.CategoryRequestStatus, adminNotes string) (int64, error)
}
