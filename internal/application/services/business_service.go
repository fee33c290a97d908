package services

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/providers"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/observability"
	apperrors "github.com/persianhub/backend/pkg/errors"
	"github.com/persianhub/backend/pkg/utils"
)

const (
	// indexCandidateLimit bounds how many ids are read from the search
	// index for one query
	indexCandidateLimit = 1000

	defaultPageSize = 50
	maxPageSize     = 100

	maxBusinessNameLength = 200
	maxDescriptionLength  = 5000
	maxServices           = 50
)

// SearchParams describes a directory search
type SearchParams struct {
	Query    string
	Category string
	Location *entities.Location
	Limit    int
	Offset   int
}

// BusinessService handles listing search, submission and moderation
type BusinessService struct {
	repo       repositories.BusinessRepository
	categories repositories.CategoryRepository
	requests   repositories.CategoryRequestRepository
	index      repositories.BusinessSearchIndex
	ranker     *SearchRanker
	analytics  *SearchAnalyticsService
	notifier   *NotificationService
	eventBus   providers.EventBus
	metrics    *observability.Metrics
}

// NewBusinessService creates a new business service. index, notifier,
// eventBus and metrics are optional and may be nil.
func NewBusinessService(
	repo repositories.BusinessRepository,
	categories repositories.CategoryRepository,
	requests repositories.CategoryRequestRepository,
	index repositories.BusinessSearchIndex,
	ranker *SearchRanker,
	analytics *SearchAnalyticsService,
	notifier *NotificationService,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
) *BusinessService {
	if ranker == nil {
		ranker = NewSearchRanker()
	}
	return &BusinessService{
		repo:       repo,
		categories: categories,
		requests:   requests,
		index:      index,
		ranker:     ranker,
		analytics:  analytics,
		notifier:   notifier,
		eventBus:   eventBus,
		metrics:    metrics,
	}
}

// Search ranks approved businesses against params and returns one page.
// A non-empty query is counted in search analytics.
func (s *BusinessService) Search(ctx context.Context, params SearchParams) ([]RankedBusiness, error) {
	ctx, span := observability.StartSpan(ctx, "BusinessService.Search")
	defer span.End()

	candidates, err := s.searchCandidates(ctx, params)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	ranked := s.ranker.Rank(params.Query, candidates, params.Location)

	hasQuery := utils.NormalizeTerm(params.Query) != ""
	if hasQuery && s.analytics != nil {
		s.analytics.TrackAsync(params.Query)
	}
	observability.RecordSearch(ctx, s.metrics, hasQuery, len(ranked))

	return paginate(ranked, params.Limit, params.Offset), nil
}

// searchCandidates loads every approved listing the ranker could place on
// the requested page. A query narrows candidates through the search index
// when one is configured, and through a text match in the database
// otherwise or when the index fails. Without a query the database returns
// rows already in placement order, so only the rows up to the end of the
// page are needed.
func (s *BusinessService) searchCandidates(ctx context.Context, params SearchParams) ([]*entities.Business, error) {
	filter := repositories.BusinessFilter{
		Status:       entities.BusinessStatusApproved,
		CategoryName: strings.TrimSpace(params.Category),
	}

	query := utils.NormalizeTerm(params.Query)
	if query == "" {
		filter.PlacementFirst = true
		filter.Near = params.Location
		filter.Limit = max(params.Offset, 0) + clampLimit(params.Limit)
		return s.repo.List(ctx, filter)
	}

	if s.index != nil {
		ids, err := s.index.Search(ctx, query, filter.CategoryName, indexCandidateLimit)
		if err == nil {
			if len(ids) == 0 {
				return []*entities.Business{}, nil
			}
			filter.IDs = ids
			return s.repo.List(ctx, filter)
		}
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Search index query failed, falling back to database")
	}

	filter.Query = query
	return s.repo.List(ctx, filter)
}

// GetApproved returns a listing visible to the public
func (s *BusinessService) GetApproved(ctx context.Context, id string) (*entities.Business, error) {
	business, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if business.Status != entities.BusinessStatusApproved {
		return nil, apperrors.NewNotFoundError("business not found")
	}
	return business, nil
}

// Submit stores a new listing for moderation. When the category is not
// known yet a category request is filed on the owner's behalf.
func (s *BusinessService) Submit(ctx context.Context, owner *entities.User, input *entities.Business) (*entities.Business, error) {
	if owner == nil || owner.ID == "" {
		return nil, apperrors.NewUnauthorizedError("authentication required")
	}
	if err := normalizeSubmission(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	business := *input
	business.ID = uuid.New().String()
	business.OwnerID = owner.ID
	business.Status = entities.BusinessStatusPending
	business.Promoted = false
	business.Sponsored = false
	business.PromotedUntil = nil
	business.AdminNotes = ""
	business.CreatedAt = now
	business.UpdatedAt = now

	if err := s.repo.Create(ctx, &business); err != nil {
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx)
	if err := s.requestCategoryIfUnknown(ctx, owner, &business); err != nil {
		logger.Error().Err(err).Str("business_id", business.ID).Msg("Failed to file category request")
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyBusinessSubmitted(ctx, &business); err != nil {
			logger.Warn().Err(err).Str("business_id", business.ID).Msg("Failed to notify admins of submission")
		}
	}

	s.publish(ctx, entities.EventBusinessSubmitted, &business)

	logger.Info().Str("business_id", business.ID).Str("category", business.CategoryName).Msg("Business submitted")
	return &business, nil
}

func (s *BusinessService) requestCategoryIfUnknown(ctx context.Context, owner *entities.User, business *entities.Business) error {
	_, err := s.categories.FindByName(ctx, business.CategoryName)
	if err == nil {
		return nil
	}
	if !apperrors.IsNotFound(err) {
		return err
	}
	return s.requests.Create(ctx, &entities.CategoryRequest{
		ID:              uuid.New().String(),
		CategoryName:    business.CategoryName,
		SubcategoryName: business.SubcategoryName,
		Status:          entities.CategoryRequestPending,
		RequesterID:     owner.ID,
		BusinessID:      business.ID,
	})
}

// ListForModeration returns listings in the given status. An empty status
// means pending.
func (s *BusinessService) ListForModeration(ctx context.Context, status entities.BusinessStatus, limit, offset int) ([]*entities.Business, error) {
	if status == "" {
		status = entities.BusinessStatusPending
	}
	if !validBusinessStatus(status) {
		return nil, apperrors.NewValidationError("status must be one of pending, approved, rejected")
	}
	return s.repo.List(ctx, repositories.BusinessFilter{
		Status: status,
		Limit:  clampLimit(limit),
		Offset: max(offset, 0),
	})
}

// Approve publishes a listing
func (s *BusinessService) Approve(ctx context.Context, id, notes string) (*entities.Business, error) {
	business, err := s.transition(ctx, id, entities.BusinessStatusApproved, notes)
	if err != nil {
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx)
	s.reindex(ctx, business)
	s.publish(ctx, entities.EventBusinessApproved, business)
	if s.notifier != nil {
		if err := s.notifier.NotifyBusinessApproved(ctx, business); err != nil {
			logger.Warn().Err(err).Str("business_id", id).Msg("Failed to notify owner of approval")
		}
	}
	return business, nil
}

// Reject declines a listing and removes it from the public index
func (s *BusinessService) Reject(ctx context.Context, id, reason string) (*entities.Business, error) {
	business, err := s.transition(ctx, id, entities.BusinessStatusRejected, reason)
	if err != nil {
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx)
	if s.index != nil {
		if err := s.index.Delete(ctx, id); err != nil {
			logger.Warn().Err(err).Str("business_id", id).Msg("Failed to remove business from search index")
		}
	}
	s.publish(ctx, entities.EventBusinessUpdated, business)
	if s.notifier != nil {
		if err := s.notifier.NotifyBusinessRejected(ctx, business, reason); err != nil {
			logger.Warn().Err(err).Str("business_id", id).Msg("Failed to notify owner of rejection")
		}
	}
	return business, nil
}

func (s *BusinessService) transition(ctx context.Context, id string, status entities.BusinessStatus, notes string) (*entities.Business, error) {
	business, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	if err := s.repo.UpdateStatus(ctx, id, status, notes); err != nil {
		return nil, err
	}
	business.Status = status
	business.AdminNotes = notes
	business.UpdatedAt = time.Now().UTC()
	return business, nil
}

// UpdatePromotion sets the placement flags of a listing
func (s *BusinessService) UpdatePromotion(ctx context.Context, id string, promotion repositories.PromotionUpdate) (*entities.Business, error) {
	if promotion.PromotedUntil != nil && !promotion.Promoted {
		return nil, apperrors.NewValidationError("promoted_until requires promoted")
	}
	if err := s.repo.UpdatePromotion(ctx, id, promotion); err != nil {
		return nil, err
	}

	business, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if business.Status == entities.BusinessStatusApproved {
		s.reindex(ctx, business)
	}
	s.publish(ctx, entities.EventBusinessUpdated, business)
	return business, nil
}

// ReindexApproved pushes every approved listing to the search index and
// returns how many were indexed.
func (s *BusinessService) ReindexApproved(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, apperrors.NewValidationError("search index is not configured")
	}

	indexed := 0
	for offset := 0; ; offset += maxPageSize {
		page, err := s.repo.List(ctx, repositories.BusinessFilter{
			Status: entities.BusinessStatusApproved,
			Limit:  maxPageSize,
			Offset: offset,
		})
		if err != nil {
			return indexed, err
		}
		for _, b := range page {
			if err := s.index.Index(ctx, b); err != nil {
				return indexed, apperrors.NewExternalError("failed to index business "+b.ID, err)
			}
			indexed++
		}
		if len(page) < maxPageSize {
			return indexed, nil
		}
	}
}

func (s *BusinessService) reindex(ctx context.Context, business *entities.Business) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, business); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("business_id", business.ID).Msg("Failed to index business")
	}
}

func (s *BusinessService) publish(ctx context.Context, eventType entities.EventType, business *entities.Business) {
	if s.eventBus == nil {
		return
	}
	event := entities.NewDirectoryEvent(eventType, business.ID, map[string]interface{}{
		"status":   string(business.Status),
		"category": business.CategoryName,
	})
	if err := s.eventBus.Publish(ctx, providers.EventChannelDirectory, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("business_id", business.ID).Msg("Failed to publish business event")
	}
}

func normalizeSubmission(b *entities.Business) error {
	if b == nil {
		return apperrors.NewValidationError("business is required")
	}
	b.Name = strings.TrimSpace(b.Name)
	b.Description = strings.TrimSpace(b.Description)
	b.Address = strings.TrimSpace(b.Address)
	b.Phone = strings.TrimSpace(b.Phone)
	b.Email = strings.TrimSpace(b.Email)
	b.Website = strings.TrimSpace(b.Website)
	b.CategoryName = strings.Join(strings.Fields(b.CategoryName), " ")
	b.SubcategoryName = strings.Join(strings.Fields(b.SubcategoryName), " ")
	b.Services = compactStrings(b.Services)
	b.SearchKeywords = compactStrings(b.SearchKeywords)

	switch {
	case b.Name == "":
		return apperrors.NewValidationError("name is required")
	case len(b.Name) > maxBusinessNameLength:
		return apperrors.NewValidationError("name is too long")
	case len(b.Description) > maxDescriptionLength:
		return apperrors.NewValidationError("description is too long")
	case b.CategoryName == "":
		return apperrors.NewValidationError("category is required")
	case len(b.Services) > maxServices:
		return apperrors.NewValidationError("too many services")
	}
	if b.Email != "" {
		if _, err := mail.ParseAddress(b.Email); err != nil {
			return apperrors.NewValidationError("email is invalid")
		}
	}
	if !b.Location.Valid() {
		b.Location = nil
	}
	return nil
}

func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := utils.NormalizeTerm(v)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func validBusinessStatus(status entities.BusinessStatus) bool {
	switch status {
	case entities.BusinessStatusPending, entities.BusinessStatusApproved, entities.BusinessStatusRejected:
		return true
	}
	return false
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	return min(limit, maxPageSize)
}

func paginate[T any](items []T, limit, offset int) []T {
	limit = clampLimit(limit)
	offset = max(offset, 0)
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}
