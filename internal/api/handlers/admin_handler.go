package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/repositories"
)

// ModerationService is the admin listing behaviour the handler depends on
type ModerationService interface {
	ListForModeration(ctx context.Context, status entities.BusinessStatus, limit, offset int) ([]*entities.Business, error)
	Approve(ctx context.Context, id, notes string) (*entities.Business, error)
	Reject(ctx context.Context, id, reason string) (*entities.Business, error)
	UpdatePromotion(ctx context.Context, id string, promotion repositories.PromotionUpdate) (*entities.Business, error)
}

// CategoryModerationService is the admin category behaviour the handler depends on
type CategoryModerationService interface {
	ListRequests(ctx context.Context, status entities.CategoryRequestStatus) ([]*entities.CategoryRequest, error)
	RejectRequest(ctx context.Context, id, notes string) (*entities.CategoryRequest, error)
	MergeRequest(ctx context.Context, id, targetCategory string) (*entities.CategoryRequest, error)
}

// SearchTrendService reports popular search terms
type SearchTrendService interface {
	TopSearches(ctx context.Context, limit int) ([]*entities.SearchAnalytic, error)
}

// AdminHandler handles moderation requests. Every route requires the admin role.
type AdminHandler struct {
	businesses ModerationService
	categories CategoryModerationService
	trends     SearchTrendService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(businesses ModerationService, categories CategoryModerationService, trends SearchTrendService) *AdminHandler {
	return &AdminHandler{
		businesses: businesses,
		categories: categories,
		trends:     trends,
	}
}

// ListBusinesses handles GET /api/admin/businesses
func (h *AdminHandler) ListBusinesses(w http.ResponseWriter, r *http.Request) {
	status := entities.BusinessStatus(r.URL.Query().Get("status"))
	businesses, err := h.businesses.ListForModeration(r.Context(), status, queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"businesses": businesses,
		"count":      len(businesses),
	})
}

type moderationRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// ApproveBusiness handles POST /api/admin/businesses/{id}/approve
func (h *AdminHandler) ApproveBusiness(w http.ResponseWriter, r *http.Request) {
	var req moderationRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	business, err := h.businesses.Approve(r.Context(), r.PathValue("id"), req.Notes)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, business)
}

// RejectBusiness handles POST /api/admin/businesses/{id}/reject
func (h *AdminHandler) RejectBusiness(w http.ResponseWriter, r *http.Request) {
	var req moderationRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = req.Notes
	}
	business, err := h.businesses.Reject(r.Context(), r.PathValue("id"), reason)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, business)
}

type promotionRequest struct {
	Promoted      bool       `json:"promoted"`
	Sponsored     bool       `json:"sponsored"`
	PromotedUntil *time.Time `json:"promoted_until"`
}

// UpdatePromotion handles PATCH /api/admin/businesses/{id}/promotion
func (h *AdminHandler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	business, err := h.businesses.UpdatePromotion(r.Context(), r.PathValue("id"), repositories.PromotionUpdate{
		Promoted:      req.Promoted,
		Sponsored:     req.Sponsored,
		PromotedUntil: req.PromotedUntil,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, business)
}

// ListCategoryRequests handles GET /api/admin/category-requests
func (h *AdminHandler) ListCategoryRequests(w http.ResponseWriter, r *http.Request) {
	status := entities.CategoryRequestStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = entities.CategoryRequestPending
	} else if status == "all" {
		status = ""
	}
	requests, err := h.categories.ListRequests(r.Context(), status)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	})
}

// RejectCategoryRequest handles POST /api/admin/category-requests/{id}/reject
func (h *AdminHandler) RejectCategoryRequest(w http.ResponseWriter, r *http.Request) {
	var req moderationRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	notes := req.Notes
	if notes == "" {
		notes = req.Reason
	}
	request, err := h.categories.RejectRequest(r.Context(), r.PathValue("id"), notes)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, request)
}

type mergeRequest struct {
	TargetCategory string `json:"target_category"`
}

// MergeCategoryRequest handles POST /api/admin/category-requests/{id}/merge
func (h *AdminHandler) MergeCategoryRequest(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	request, err := h.categories.MergeRequest(r.Context(), r.PathValue("id"), req.TargetCategory)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, request)
}

// TopSearches handles GET /api/admin/analytics/top-searches
func (h *AdminHandler) TopSearches(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		respondWithError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	terms, err := h.trends.TopSearches(r.Context(), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"searches": terms,
		"count":    len(terms),
	})
}
