package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/providers"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/observability"
	apperrors "github.com/persianhub/backend/pkg/errors"
)

const maxReviewCommentLength = 1000

// ReviewService handles business reviews. A user may review a business once.
type ReviewService struct {
	reviews    repositories.ReviewRepository
	businesses repositories.BusinessRepository
	eventBus   providers.EventBus
}

// NewReviewService creates a new review service. eventBus may be nil.
func NewReviewService(reviews repositories.ReviewRepository, businesses repositories.BusinessRepository, eventBus providers.EventBus) *ReviewService {
	return &ReviewService{
		reviews:    reviews,
		businesses: businesses,
		eventBus:   eventBus,
	}
}

// Create stores a review of an approved business
func (s *ReviewService) Create(ctx context.Context, user *entities.User, businessID string, rating int, comment string) (*entities.Review, error) {
	if user == nil || user.ID == "" {
		return nil, apperrors.NewUnauthorizedError("authentication required")
	}
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxReviewCommentLength {
		return nil, apperrors.NewValidationError("comment must be at most 1000 characters")
	}

	business, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if business.Status != entities.BusinessStatusApproved {
		return nil, apperrors.NewNotFoundError("business not found")
	}

	review := &entities.Review{
		ID:         uuid.New().String(),
		BusinessID: businessID,
		UserID:     user.ID,
		Rating:     rating,
		Comment:    comment,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}

	if s.eventBus != nil {
		event := entities.NewDirectoryEvent(entities.EventBusinessUpdated, businessID, map[string]interface{}{
			"review_id": review.ID,
		})
		if err := s.eventBus.Publish(ctx, providers.EventChannelDirectory, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("business_id", businessID).Msg("Failed to publish review event")
		}
	}
	return review, nil
}

// List returns reviews of a business, newest first
func (s *ReviewService) List(ctx context.Context, businessID string, limit, offset int) ([]*entities.Review, error) {
	return s.reviews.ListByBusiness(ctx, businessID, clampLimit(limit), max(offset, 0))
}

// Summary returns the review count and average rating of a business
func (s *ReviewService) Summary(ctx context.Context, businessID string) (*entities.ReviewSummary, error) {
	return s.reviews.Summary(ctx, businessID)
}
