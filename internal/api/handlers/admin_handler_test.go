package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/persianhub/backend/internal/api/handlers"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/repositories"
	apperrors "github.com/persianhub/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockModerationService struct {
	mock.Mock
}

func (m *MockModerationService) ListForModeration(ctx context.Context, status entities.BusinessStatus, limit, offset int) ([]*entities.Business, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Business), args.Error(1)
}

func (m *MockModerationService) Approve(ctx context.Context, id, notes string) (*entities.Business, error) {
	args := m.Called(ctx, id, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Business), args.Error(1)
}

func (m *MockModerationService) Reject(ctx context.Context, id, reason string) (*entities.Business, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Business), args.Error(1)
}

func (m *MockModerationService) UpdatePromotion(ctx context.Context, id string, promotion repositories.PromotionUpdate) (*entities.Business, error) {
	args := m.Called(ctx, id, promotion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Business), args.Error(1)
}

type MockCategoryModerationService struct {
	mock.Mock
}

func (m *MockCategoryModerationService) ListRequests(ctx context.Context, status entities.CategoryRequestStatus) ([]*entities.CategoryRequest, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.CategoryRequest), args.Error(1)
}

func (m *MockCategoryModerationService) RejectRequest(ctx context.Context, id, notes string) (*entities.CategoryRequest, error) {
	args := m.Called(ctx, id, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CategoryRequest), args.Error(1)
}

func (m *MockCategoryModerationService) MergeRequest(ctx context.Context, id, targetCategory string) (*entities.CategoryRequest, error) {
	args := m.Called(ctx, id, targetCategory)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CategoryRequest), args.Error(1)
}

type MockSearchTrendService struct {
	mock.Mock
}

func (m *MockSearchTrendService) TopSearches(ctx context.Context, limit int) ([]*entities.SearchAnalytic, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.SearchAnalytic), args.Error(1)
}

type adminFixture struct {
	businesses *MockModerationService
	categories *MockCategoryModerationService
	trends     *MockSearchTrendService
	handler    *handlers.AdminHandler
}

func newAdminFixture() *adminFixture {
	f := &adminFixture{
		businesses: new(MockModerationService),
		categories: new(MockCategoryModerationService),
		trends:     new(MockSearchTrendService),
	}
	f.handler = handlers.NewAdminHandler(f.businesses, f.categories, f.trends)
	return f
}

func TestAdminListBusinesses_ForwardsStatus(t *testing.T) {
	f := newAdminFixture()
	f.businesses.On("ListForModeration", mock.Anything, entities.BusinessStatusRejected, 25, 0).
		Return([]*entities.Business{{ID: "b1"}}, nil)

	rec := httptest.NewRecorder()
	f.handler.ListBusinesses(rec, httptest.NewRequest(http.MethodGet, "/api/admin/businesses?status=rejected&limit=25", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])
}

func TestApproveBusiness_EmptyBodyAllowed(t *testing.T) {
	f := newAdminFixture()
	f.businesses.On("Approve", mock.Anything, "b1", "").
		Return(&entities.Business{ID: "b1", Status: entities.BusinessStatusApproved}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/businesses/b1/approve", nil)
	req.SetPathValue("id", "b1")
	rec := httptest.NewRecorder()
	f.handler.ApproveBusiness(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decodeBody(t, rec)["status"])
}

func TestRejectBusiness_UsesReason(t *testing.T) {
	f := newAdminFixture()
	f.businesses.On("Reject", mock.Anything, "b1", "duplicate listing").
		Return(&entities.Business{ID: "b1", Status: entities.BusinessStatusRejected}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/businesses/b1/reject", strings.NewReader(`{"reason":"duplicate listing"}`))
	req.SetPathValue("id", "b1")
	rec := httptest.NewRecorder()
	f.handler.RejectBusiness(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	f.businesses.AssertExpectations(t)
}

func TestRejectBusiness_AlreadyModeratedIsConflict(t *testing.T) {
	f := newAdminFixture()
	f.businesses.On("Reject", mock.Anything, "b1", "").
		Return(nil, apperrors.NewConflictError("business is already rejected", nil))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/businesses/b1/reject", nil)
	req.SetPathValue("id", "b1")
	rec := httptest.NewRecorder()
	f.handler.RejectBusiness(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdatePromotion_ParsesBody(t *testing.T) {
	f := newAdminFixture()
	f.businesses.On("UpdatePromotion", mock.Anything, "b1", mock.MatchedBy(func(p repositories.PromotionUpdate) bool {
		return p.Promoted && !p.Sponsored && p.PromotedUntil != nil && p.PromotedUntil.Year() == 2030
	})).Return(&entities.Business{ID: "b1", Promoted: true}, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/businesses/b1/promotion",
		strings.NewReader(`{"promoted":true,"promoted_until":"2030-01-01T00:00:00Z"}`))
	req.SetPathValue("id", "b1")
	rec := httptest.NewRecorder()
	f.handler.UpdatePromotion(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	f.businesses.AssertExpectations(t)
}

func TestListCategoryRequests_StatusDefaults(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  entities.CategoryRequestStatus
	}{
		{"default pending", "", entities.CategoryRequestPending},
		{"all", "?status=all", ""},
		{"merged", "?status=merged", entities.CategoryRequestMerged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture()
			f.categories.On("ListRequests", mock.Anything, tt.want).Return([]*entities.CategoryRequest{}, nil)

			rec := httptest.NewRecorder()
			f.handler.ListCategoryRequests(rec, httptest.NewRequest(http.MethodGet, "/api/admin/category-requests"+tt.query, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			f.categories.AssertExpectations(t)
		})
	}
}

func TestMergeCategoryRequest(t *testing.T) {
	f := newAdminFixture()
	f.categories.On("MergeRequest", mock.Anything, "req-1", "Restaurants").
		Return(&entities.CategoryRequest{ID: "req-1", Status: entities.CategoryRequestMerged}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/category-requests/req-1/merge", strings.NewReader(`{"target_category":"Restaurants"}`))
	req.SetPathValue("id", "req-1")
	rec := httptest.NewRecorder()
	f.handler.MergeCategoryRequest(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "merged", decodeBody(t, rec)["status"])
}

func TestMergeCategoryRequest_MissingBody(t *testing.T) {
	f := newAdminFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/category-requests/req-1/merge", nil)
	req.SetPathValue("id", "req-1")
	rec := httptest.NewRecorder()
	f.handler.MergeCategoryRequest(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectCategoryRequest_TerminalIsConflict(t *testing.T) {
	f := newAdminFixture()
	f.categories.On("RejectRequest", mock.Anything, "req-1", "spam").
		Return(nil, apperrors.NewConflictError("category request is already approved", nil))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/category-requests/req-1/reject", strings.NewReader(`{"notes":"spam"}`))
	req.SetPathValue("id", "req-1")
	rec := httptest.NewRecorder()
	f.handler.RejectCategoryRequest(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTopSearches(t *testing.T) {
	f := newAdminFixture()
	f.trends.On("TopSearches", mock.Anything, 20).
		Return([]*entities.SearchAnalytic{{Term: "pizza", SearchCount: 12}}, nil)

	rec := httptest.NewRecorder()
	f.handler.TopSearches(rec, httptest.NewRequest(http.MethodGet, "/api/admin/analytics/top-searches", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestTopSearches_LimitOutOfRange(t *testing.T) {
	f := newAdminFixture()

	rec := httptest.NewRecorder()
	f.handler.TopSearches(rec, httptest.NewRequest(http.MethodGet, "/api/admin/analytics/top-searches?limit=500", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.trends.AssertNotCalled(t, "TopSearches", mock.Anything, mock.Anything)
}
