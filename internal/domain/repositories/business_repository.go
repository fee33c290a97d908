package repositories

import (
	"context"
	"time"

	"github.com/persianhub/backend/internal/domain/entities"
)

// BusinessRepository defines the interface for business listing storage
type BusinessRepository interface {
	Create(ctx context.Context, business *entities.Business) error
	GetByID(ctx context.Context, id string) (*entities.Business, error)
	List(ctx context.Context, filter BusinessFilter) ([]*entities.Business, error)
	UpdateStatus(ctx context.Context, id string, status entities.BusinessStatus, adminNotes string) error
	UpdatePromotion(ctx context.Context, id string, promotion PromotionUpdate) error
}

// BusinessFilter narrows business listings.
//
// Query keeps rows where any searchable text field contains it,
// case-insensitively. IDs restricts the result to these ids when non-nil;
// an empty, non-nil slice matches nothing. PlacementFirst orders promoted
// then sponsored rows before the rest, nearest to Near when set and then
// newest.
type BusinessFilter struct {
	Status         entities.BusinessStatus
	CategoryName   string
	OwnerID        string
	Query          string
	IDs            []string
	PlacementFirst bool
	Near           *entities.Location
	Limit          int
	Offset         int
}

// PromotionUpdate carries new placement flags for a business
type PromotionUpdate struct {
	Promoted      bool
	Sponsored     bool
	PromotedUntil *time.Time
}

// BusinessSearchIndex mirrors approved listings into a search engine and
// queries them
type BusinessSearchIndex interface {
	Index(ctx context.Context, business *entities.Business) error
	Delete(ctx context.Context, id string) error
	// Search returns the ids of indexed listings matching q, most relevant
	// first. category narrows by exact category name when non-empty.
	Search(ctx context.Context, q, category string, limit int) ([]string, error)
}
