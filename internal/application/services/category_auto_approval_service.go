package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/providers"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/observability"
	apperrors "github.com/persianhub/backend/pkg/errors"
	"github.com/persianhub/backend/pkg/utils"
)

// Auto-approval policy. A category group qualifies when either threshold
// is reached.
const (
	MinRequestCount = 10
	MinSearchCount  = 100
)

// AutoApprovalStatus is the outcome for one category group
type AutoApprovalStatus string

const (
	AutoApprovalApproved AutoApprovalStatus = "approved"
	AutoApprovalPending  AutoApprovalStatus = "pending"
	AutoApprovalError    AutoApprovalStatus = "error"
)

// AutoApprovalResult reports one category group
type AutoApprovalResult struct {
	Category             string             `json:"category"`
	RequestCount         int                `json:"requestCount"`
	SearchCount          int64              `json:"searchCount"`
	Status               AutoApprovalStatus `json:"status"`
	SubcategoriesCreated int                `json:"subcategoriesCreated"`
	RequestsUpdated      int64              `json:"requestsUpdated"`
	Error                string             `json:"error,omitempty"`
}

// AutoApprovalSummary is the response of one auto-approval run.
// Processed and Approved count category groups.
type AutoApprovalSummary struct {
	Message   string               `json:"message"`
	Processed int                  `json:"processed"`
	Approved  int                  `json:"approved"`
	Results   []AutoApprovalResult `json:"results"`
}

// CategoryApprovalNotifier is told about every category the approver publishes
type CategoryApprovalNotifier interface {
	NotifyCategoryApproved(ctx context.Context, categoryID, categoryName string, requestCount int, searchCount int64) error
}

// CategoryAutoApprover promotes pending category requests that reached the
// adoption thresholds.
type CategoryAutoApprover struct {
	requests   repositories.CategoryRequestRepository
	categories repositories.CategoryRepository
	analytics  repositories.SearchAnalyticsRepository
	eventBus   providers.EventBus
	notifier   CategoryApprovalNotifier
	metrics    *observability.Metrics
}

// NewCategoryAutoApprover creates a new approver. eventBus and metrics may be nil.
func NewCategoryAutoApprover(
	requests repositories.CategoryRequestRepository,
	categories repositories.CategoryRepository,
	analytics repositories.SearchAnalyticsRepository,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
) *CategoryAutoApprover {
	return &CategoryAutoApprover{
		requests:   requests,
		categories: categories,
		analytics:  analytics,
		eventBus:   eventBus,
		metrics:    metrics,
	}
}

// WithNotifier sets the notifier called after each approval. Notification
// failures are logged and do not affect the result.
func (s *CategoryAutoApprover) WithNotifier(notifier CategoryApprovalNotifier) *CategoryAutoApprover {
	s.notifier = notifier
	return s
}

type requestGroup struct {
	key      string
	requests []*entities.CategoryRequest
}

// Run processes every pending request. Failing to load requests or search
// counts aborts the run; a failure inside one group is reported in that
// group's result and the remaining groups still run.
func (s *CategoryAutoApprover) Run(ctx context.Context) (*AutoApprovalSummary, error) {
	ctx, span := observability.StartSpan(ctx, "CategoryAutoApprover.Run")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	pending, err := s.requests.ListByStatus(ctx, entities.CategoryRequestPending)
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewInternalError("failed to fetch pending category requests", err)
	}

	groups := groupRequests(pending)
	keys := make([]string, 0, len(groups))
	for _, g := range groups {
		keys = append(keys, g.key)
	}

	searchCounts, err := s.analytics.CountsByTerm(ctx, keys)
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewInternalError("failed to fetch search analytics", err)
	}

	summary := &AutoApprovalSummary{Results: make([]AutoApprovalResult, 0, len(groups))}
	for _, g := range groups {
		result := s.processGroup(ctx, g, searchCounts[g.key])
		if result.Status == AutoApprovalError {
			logger.Error().Str("category", result.Category).Str("error", result.Error).Msg("Auto-approval failed for category group")
		}
		if result.Status == AutoApprovalApproved {
			summary.Approved++
		}
		summary.Processed++
		summary.Results = append(summary.Results, result)
	}

	summary.Message = fmt.Sprintf("Processed %d category groups, approved %d", summary.Processed, summary.Approved)
	observability.RecordAutoApproval(ctx, s.metrics, summary.Approved)
	logger.Info().
		Int("pending_requests", len(pending)).
		Int("processed", summary.Processed).
		Int("approved", summary.Approved).
		Msg("Category auto-approval finished")

	return summary, nil
}

func (s *CategoryAutoApprover) processGroup(ctx context.Context, g requestGroup, searchCount int64) AutoApprovalResult {
	result := AutoApprovalResult{
		Category:     utils.TitleCase(g.key),
		RequestCount: len(g.requests),
		SearchCount:  searchCount,
		Status:       AutoApprovalPending,
	}

	if !eligible(result.RequestCount, result.SearchCount) {
		return result
	}

	category, err := s.ensureCategory(ctx, result.Category)
	if err != nil {
		return failed(result, err)
	}

	created, err := s.createSubcategories(ctx, category.ID, g.requests)
	result.SubcategoriesCreated = created
	if err != nil {
		return failed(result, err)
	}

	ids := make([]string, len(g.requests))
	for i, r := range g.requests {
		ids[i] = r.ID
	}
	note := fmt.Sprintf("Auto-approved: %d businesses requested, %d searches, %d subcategories created",
		result.RequestCount, result.SearchCount, result.SubcategoriesCreated)

	updated, err := s.requests.UpdateStatusIfPending(ctx, ids, entities.CategoryRequestApproved, note)
	if err != nil {
		return failed(result, err)
	}
	result.RequestsUpdated = updated
	if updated == 0 {
		// An admin resolved every request of the group mid-run
		observability.LoggerFromContext(ctx).Info().Str("category", result.Category).
			Msg("Category requests already resolved, skipping approval")
		return result
	}
	result.Status = AutoApprovalApproved

	s.publishApproved(ctx, category, result)
	if s.notifier != nil {
		if err := s.notifier.NotifyCategoryApproved(ctx, category.ID, category.Name, result.RequestCount, result.SearchCount); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("category", category.Name).Msg("Failed to send category approval email")
		}
	}
	return result
}

// ensureCategory creates the category, falling back to the existing row
// when the name is already taken.
func (s *CategoryAutoApprover) ensureCategory(ctx context.Context, name string) (*entities.Category, error) {
	category := &entities.Category{Name: name}
	err := s.categories.Create(ctx, category)
	if err == nil {
		return category, nil
	}
	if !apperrors.IsConflict(err) {
		return nil, err
	}

	existing, err := s.categories.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("resolve existing category %q: %w", name, err)
	}
	return existing, nil
}

func (s *CategoryAutoApprover) createSubcategories(ctx context.Context, categoryID string, requests []*entities.CategoryRequest) (int, error) {
	created := 0
	seen := make(map[string]struct{})
	for _, r := range requests {
		key := utils.NormalizeTerm(r.SubcategoryName)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		err := s.categories.CreateSubcategory(ctx, &entities.Subcategory{
			CategoryID: categoryID,
			Name:       utils.TitleCase(key),
		})
		switch {
		case err == nil:
			created++
		case apperrors.IsConflict(err):
		default:
			return created, err
		}
	}
	return created, nil
}

func (s *CategoryAutoApprover) publishApproved(ctx context.Context, category *entities.Category, result AutoApprovalResult) {
	if s.eventBus == nil {
		return
	}
	event := entities.NewDirectoryEvent(entities.EventCategoryApproved, category.ID, map[string]interface{}{
		"name":          category.Name,
		"request_count": result.RequestCount,
		"search_count":  result.SearchCount,
	})
	if err := s.eventBus.Publish(ctx, providers.EventChannelDirectory, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("category", category.Name).Msg("Failed to publish category approval")
	}
}

// groupRequests partitions requests by normalized category name, sorted by
// that key. Requests without a name are skipped.
func groupRequests(requests []*entities.CategoryRequest) []requestGroup {
	byKey := make(map[string]*requestGroup)
	for _, r := range requests {
		if r == nil {
			continue
		}
		key := utils.NormalizeTerm(r.CategoryName)
		if key == "" {
			continue
		}
		g, ok := byKey[key]
		if !ok {
			g = &requestGroup{key: key}
			byKey[key] = g
		}
		g.requests = append(g.requests, r)
	}

	groups := make([]requestGroup, 0, len(byKey))
	for _, g := range byKey {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	return groups
}

func eligible(requestCount int, searchCount int64) bool {
	return requestCount >= MinRequestCount || searchCount >= MinSearchCount
}

func failed(result AutoApprovalResult, err error) AutoApprovalResult {
	result.Status = AutoApprovalError
	result.Error = err.Error()
	return result
}
