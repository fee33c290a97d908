package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/repositories"
	apperrors "github.com/persianhub/backend/pkg/errors"
	"github.com/persianhub/backend/pkg/utils"
	"github.com/stretchr/testify/mock"
)

// memoryCategoryRequests is an in-memory CategoryRequestRepository with
// compare-and-swap updates like the Postgres adapter.
type memoryCategoryRequests struct {
	mu        sync.Mutex
	rows      map[string]*entities.CategoryRequest
	listErr   error
	updateErr map[string]error // keyed by normalized category name
	// beforeUpdate runs under the lock ahead of each compare-and-swap
	beforeUpdate func(rows map[string]*entities.CategoryRequest)
}

func newMemoryCategoryRequests(requests ...*entities.CategoryRequest) *memoryCategoryRequests {
	m := &memoryCategoryRequests{rows: make(map[string]*entities.CategoryRequest), updateErr: make(map[string]error)}
	for _, r := range requests {
		_ = m.Create(context.Background(), r)
	}
	return m
}

func (m *memoryCategoryRequests) Create(_ context.Context, r *entities.CategoryRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = entities.CategoryRequestPending
	}
	copied := *r
	m.rows[r.ID] = &copied
	return nil
}

func (m *memoryCategoryRequests) GetByID(_ context.Context, id string) (*entities.CategoryRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("category request not found")
	}
	copied := *r
	return &copied, nil
}

func (m *memoryCategoryRequests) ListByStatus(_ context.Context, status entities.CategoryRequestStatus) ([]*entities.CategoryRequest, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entities.CategoryRequest, 0)
	for _, r := range m.rows {
		if status == "" || r.Status == status {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryCategoryRequests) UpdateStatusIfPending(_ context.Context, ids []string, status entities.CategoryRequestStatus, notes string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeUpdate != nil {
		m.beforeUpdate(m.rows)
	}
	var affected int64
	for _, id := range ids {
		r, ok := m.rows[id]
		if !ok {
			continue
		}
		if err := m.updateErr[utils.NormalizeTerm(r.CategoryName)]; err != nil {
			return 0, err
		}
		if r.Status != entities.CategoryRequestPending {
			continue
		}
		r.Status = status
		r.AdminNotes = notes
		affected++
	}
	return affected, nil
}

func (m *memoryCategoryRequests) statuses() map[string]entities.CategoryRequestStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]entities.CategoryRequestStatus, len(m.rows))
	for id, r := range m.rows {
		out[id] = r.Status
	}
	return out
}

// memoryCategories enforces case-insensitive unique names like the schema
type memoryCategories struct {
	mu            sync.Mutex
	byName        map[string]*entities.Category
	subcategories map[string]*entities.Subcategory
	createErr     map[string]error
}

func newMemoryCategories(existing ...string) *memoryCategories {
	m := &memoryCategories{
		byName:        make(map[string]*entities.Category),
		subcategories: make(map[string]*entities.Subcategory),
		createErr:     make(map[string]error),
	}
	for _, name := range existing {
		_ = m.Create(context.Background(), &entities.Category{Name: name})
	}
	return m
}

func (m *memoryCategories) Create(_ context.Context, c *entities.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := utils.NormalizeTerm(c.Name)
	if err := m.createErr[key]; err != nil {
		return err
	}
	if _, exists := m.byName[key]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("category %q already exists", c.Name), nil)
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	copied := *c
	m.byName[key] = &copied
	return nil
}

func (m *memoryCategories) FindByName(_ context.Context, name string) (*entities.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byName[utils.NormalizeTerm(name)]
	if !ok {
		return nil, apperrors.NewNotFoundError("category not found")
	}
	copied := *c
	return &copied, nil
}

func (m *memoryCategories) List(_ context.Context) ([]*entities.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entities.Category, 0, len(m.byName))
	for _, c := range m.byName {
		copied := *c
		copied.Subcategories = nil
		for _, s := range m.subcategories {
			if s.CategoryID == c.ID {
				copied.Subcategories = append(copied.Subcategories, s)
			}
		}
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryCategories) CreateSubcategory(_ context.Context, s *entities.Subcategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := s.CategoryID + "/" + utils.NormalizeTerm(s.Name)
	if _, exists := m.subcategories[key]; exists {
		return apperrors.NewConflictError("subcategory already exists", nil)
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	copied := *s
	m.subcategories[key] = &copied
	return nil
}

func (m *memoryCategories) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byName)
}

func (m *memoryCategories) subcategoryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subcategories)
}

// memorySearchAnalytics is an in-memory SearchAnalyticsRepository
type memorySearchAnalytics struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newMemorySearchAnalytics(counts map[string]int64) *memorySearchAnalytics {
	if counts == nil {
		counts = make(map[string]int64)
	}
	return &memorySearchAnalytics{counts: counts}
}

func (m *memorySearchAnalytics) Increment(_ context.Context, term string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.counts[term]++
	return nil
}

func (m *memorySearchAnalytics) CountsByTerm(_ context.Context, terms []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]int64)
	for _, t := range terms {
		if c, ok := m.counts[t]; ok {
			out[t] = c
		}
	}
	return out, nil
}

func (m *memorySearchAnalytics) Top(_ context.Context, limit int) ([]*entities.SearchAnalytic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entities.SearchAnalytic, 0, len(m.counts))
	for term, count := range m.counts {
		out = append(out, &entities.SearchAnalytic{Term: term, SearchCount: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SearchCount != out[j].SearchCount {
			return out[i].SearchCount > out[j].SearchCount
		}
		return out[i].Term < out[j].Term
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memorySearchAnalytics) get(term string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[term]
}

// MockEventBus is a testify mock of providers.EventBus
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.DirectoryEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DirectoryEvent, error) {
	args := m.Called(ctx, channel)
	ch, _ := args.Get(0).(<-chan *entities.DirectoryEvent)
	return ch, args.Error(1)
}

func (m *MockEventBus) Close() error {
	return m.Called().Error(0)
}

// memoryBusinesses is an in-memory BusinessRepository
type memoryBusinesses struct {
	mu    sync.Mutex
	rows  map[string]*entities.Business
	lists []repositories.BusinessFilter
	err   error
}

func newMemoryBusinesses(businesses ...*entities.Business) *memoryBusinesses {
	m := &memoryBusinesses{rows: make(map[string]*entities.Business)}
	for _, b := range businesses {
		_ = m.Create(context.Background(), b)
	}
	return m
}

func (m *memoryBusinesses) Create(_ context.Context, b *entities.Business) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = entities.BusinessStatusPending
	}
	copied := *b
	m.rows[b.ID] = &copied
	return nil
}

func (m *memoryBusinesses) GetByID(_ context.Context, id string) (*entities.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("business not found")
	}
	copied := *b
	return &copied, nil
}

func (m *memoryBusinesses) List(_ context.Context, filter repositories.BusinessFilter) ([]*entities.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = append(m.lists, filter)
	if m.err != nil {
		return nil, m.err
	}
	var ids map[string]bool
	if filter.IDs != nil {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}
	out := make([]*entities.Business, 0)
	for _, b := range m.rows {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.CategoryName != "" && utils.NormalizeTerm(b.CategoryName) != utils.NormalizeTerm(filter.CategoryName) {
			continue
		}
		if filter.OwnerID != "" && b.OwnerID != filter.OwnerID {
			continue
		}
		if ids != nil && !ids[b.ID] {
			continue
		}
		if filter.Query != "" && !matchesText(b, filter.Query) {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	now := time.Now()
	sort.Slice(out, func(i, j int) bool {
		if filter.PlacementFirst {
			if pi, pj := out[i].IsPromotedAt(now), out[j].IsPromotedAt(now); pi != pj {
				return pi
			}
			if out[i].Sponsored != out[j].Sponsored {
				return out[i].Sponsored
			}
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*entities.Business{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memoryBusinesses) listCalls() []repositories.BusinessFilter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repositories.BusinessFilter(nil), m.lists...)
}

// matchesText mirrors the database text filter: q within any scored field
func matchesText(b *entities.Business, q string) bool {
	fields := []string{b.Name, b.CategoryName, b.SubcategoryName, b.Description, b.Address}
	fields = append(fields, b.Services...)
	fields = append(fields, b.SearchKeywords...)
	for _, field := range fields {
		if utils.ContainsFold(field, q) {
			return true
		}
	}
	return false
}

func (m *memoryBusinesses) UpdateStatus(_ context.Context, id string, status entities.BusinessStatus, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return apperrors.NewNotFoundError("business not found")
	}
	b.Status = status
	b.AdminNotes = notes
	return nil
}

func (m *memoryBusinesses) UpdatePromotion(_ context.Context, id string, p repositories.PromotionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return apperrors.NewNotFoundError("business not found")
	}
	b.Promoted = p.Promoted
	b.Sponsored = p.Sponsored
	b.PromotedUntil = p.PromotedUntil
	return nil
}

// memoryReviews enforces one review per user and business like the schema
type memoryReviews struct {
	mu   sync.Mutex
	rows []*entities.Review
}

func (m *memoryReviews) Create(_ context.Context, r *entities.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.BusinessID == r.BusinessID && existing.UserID == r.UserID {
			return apperrors.NewConflictError("you have already reviewed this business", nil)
		}
	}
	copied := *r
	m.rows = append(m.rows, &copied)
	return nil
}

func (m *memoryReviews) ListByBusiness(_ context.Context, businessID string, limit, offset int) ([]*entities.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entities.Review, 0)
	for _, r := range m.rows {
		if r.BusinessID == businessID {
			out = append(out, r)
		}
	}
	if offset >= len(out) {
		return []*entities.Review{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryReviews) Summary(_ context.Context, businessID string) (*entities.ReviewSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := &entities.ReviewSummary{BusinessID: businessID}
	total := 0
	for _, r := range m.rows {
		if r.BusinessID == businessID {
			summary.Count++
			total += r.Rating
		}
	}
	if summary.Count > 0 {
		summary.AverageRating = float64(total) / float64(summary.Count)
	}
	return summary, nil
}

// MockSearchIndex is a testify mock of repositories.BusinessSearchIndex
type MockSearchIndex struct {
	mock.Mock
}

func (m *MockSearchIndex) Index(ctx context.Context, business *entities.Business) error {
	return m.Called(ctx, business).Error(0)
}

func (m *MockSearchIndex) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSearchIndex) Search(ctx context.Context, q, category string, limit int) ([]string, error) {
	args := m.Called(ctx, q, category, limit)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

var (
	_ repositories.BusinessRepository        = (*memoryBusinesses)(nil)
	_ repositories.ReviewRepository          = (*memoryReviews)(nil)
	_ repositories.BusinessSearchIndex       = (*MockSearchIndex)(nil)
	_ repositories.CategoryRequestRepository = (*memoryCategoryRequests)(nil)
	_ repositories.CategoryRepository        = (*memoryCategories)(nil)
	_ repositories.SearchAnalyticsRepository = (*memorySearchAnalytics)(nil)
)
