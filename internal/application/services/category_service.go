package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/providers"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/observability"
	apperrors "github.com/persianhub/backend/pkg/errors"
	"github.com/persianhub/backend/pkg/utils"
)

const maxCategoryNameLength = 100

// CategoryService handles the category catalogue and manual moderation of
// category requests. Automatic approval lives in CategoryAutoApprover.
type CategoryService struct {
	categories repositories.CategoryRepository
	requests   repositories.CategoryRequestRepository
	eventBus   providers.EventBus
}

// NewCategoryService creates a new category service. eventBus may be nil.
func NewCategoryService(
	categories repositories.CategoryRepository,
	requests repositories.CategoryRequestRepository,
	eventBus providers.EventBus,
) *CategoryService {
	return &CategoryService{
		categories: categories,
		requests:   requests,
		eventBus:   eventBus,
	}
}

// List returns every approved category with its subcategories
func (s *CategoryService) List(ctx context.Context) ([]*entities.Category, error) {
	return s.categories.List(ctx)
}

// Request files a proposal for a new category, or for a new subcategory of
// an existing one.
func (s *CategoryService) Request(ctx context.Context, user *entities.User, categoryName, subcategoryName string) (*entities.CategoryRequest, error) {
	if user == nil || user.ID == "" {
		return nil, apperrors.NewUnauthorizedError("authentication required")
	}
	categoryName = strings.Join(strings.Fields(categoryName), " ")
	subcategoryName = strings.Join(strings.Fields(subcategoryName), " ")
	if err := validateCategoryName("category_name", categoryName, true); err != nil {
		return nil, err
	}
	if err := validateCategoryName("subcategory_name", subcategoryName, false); err != nil {
		return nil, err
	}

	existing, err := s.categories.FindByName(ctx, categoryName)
	switch {
	case err == nil && subcategoryName == "":
		return nil, apperrors.NewConflictError(fmt.Sprintf("category %q already exists", existing.Name), nil)
	case err != nil && !apperrors.IsNotFound(err):
		return nil, err
	}

	request := &entities.CategoryRequest{
		ID:              uuid.New().String(),
		CategoryName:    categoryName,
		SubcategoryName: subcategoryName,
		Status:          entities.CategoryRequestPending,
		RequesterID:     user.ID,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

// ListRequests returns category requests in status, oldest first. An empty
// status returns every request.
func (s *CategoryService) ListRequests(ctx context.Context, status entities.CategoryRequestStatus) ([]*entities.CategoryRequest, error) {
	switch status {
	case "", entities.CategoryRequestPending, entities.CategoryRequestApproved,
		entities.CategoryRequestRejected, entities.CategoryRequestMerged:
	default:
		return nil, apperrors.NewValidationError("status must be one of pending, approved, rejected, merged")
	}
	return s.requests.ListByStatus(ctx, status)
}

// RejectRequest declines a pending request
func (s *CategoryService) RejectRequest(ctx context.Context, id, notes string) (*entities.CategoryRequest, error) {
	return s.resolve(ctx, id, entities.CategoryRequestRejected, strings.TrimSpace(notes))
}

// MergeRequest folds a pending request into an existing category. The
// requested subcategory, if any, is created under the target.
func (s *CategoryService) MergeRequest(ctx context.Context, id, targetCategory string) (*entities.CategoryRequest, error) {
	if strings.TrimSpace(targetCategory) == "" {
		return nil, apperrors.NewValidationError("target_category is required")
	}
	target, err := s.categories.FindByName(ctx, targetCategory)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("target category %q does not exist", targetCategory))
		}
		return nil, err
	}

	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.IsTerminal() {
		return nil, apperrors.NewConflictError(fmt.Sprintf("category request is already %s", request.Status), nil)
	}

	if sub := utils.NormalizeTerm(request.SubcategoryName); sub != "" {
		err := s.categories.CreateSubcategory(ctx, &entities.Subcategory{
			CategoryID: target.ID,
			Name:       utils.TitleCase(sub),
		})
		if err != nil && !apperrors.IsConflict(err) {
			return nil, err
		}
	}

	resolved, err := s.resolve(ctx, id, entities.CategoryRequestMerged, "Merged into "+target.Name)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, target)
	return resolved, nil
}

func (s *CategoryService) resolve(ctx context.Context, id string, status entities.CategoryRequestStatus, notes string) (*entities.CategoryRequest, error) {
	updated, err := s.requests.UpdateStatusIfPending(ctx, []string{id}, status, notes)
	if err != nil {
		return nil, err
	}

	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if updated == 0 {
		return nil, apperrors.NewConflictError(fmt.Sprintf("category request is already %s", request.Status), nil)
	}

	observability.LoggerFromContext(ctx).Info().
		Str("request_id", id).
		Str("status", string(status)).
		Msg("Category request resolved")
	return request, nil
}

func (s *CategoryService) publish(ctx context.Context, category *entities.Category) {
	if s.eventBus == nil {
		return
	}
	event := entities.NewDirectoryEvent(entities.EventCategoryUpdated, category.ID, map[string]interface{}{
		"name": category.Name,
	})
	if err := s.eventBus.Publish(ctx, providers.EventChannelDirectory, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("category", category.Name).Msg("Failed to publish category update")
	}
}

func validateCategoryName(field, name string, required bool) error {
	if name == "" {
		if required {
			return apperrors.NewValidationError(field + " is required")
		}
		return nil
	}
	if utf8.RuneCountInString(name) > maxCategoryNameLength {
		return apperrors.NewValidationError(fmt.Sprintf("%s must be at most %d characters", field, maxCategoryNameLength))
	}
	return nil
}
