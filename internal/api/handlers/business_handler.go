package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/persianhub/backend/internal/api/middleware"
	"github.com/persianhub/backend/internal/application/services"
	"github.com/persianhub/backend/internal/domain/entities"
)

// BusinessService is the listing behaviour the handler depends on
type BusinessService interface {
	Search(ctx context.Context, params services.SearchParams) ([]services.RankedBusiness, error)
	GetApproved(ctx context.Context, id string) (*entities.Business, error)
	Submit(ctx context.Context, owner *entities.User, input *entities.Business) (*entities.Business, error)
}

// ReviewService is the review behaviour the handler depends on
type ReviewService interface {
	Create(ctx context.Context, user *entities.User, businessID string, rating int, comment string) (*entities.Review, error)
	List(ctx context.Context, businessID string, limit, offset int) ([]*entities.Review, error)
	Summary(ctx context.Context, businessID string) (*entities.ReviewSummary, error)
}

// BusinessHandler handles public listing and review requests
type BusinessHandler struct {
	businesses BusinessService
	reviews    ReviewService
}

// NewBusinessHandler creates a new business handler
func NewBusinessHandler(businesses BusinessService, reviews ReviewService) *BusinessHandler {
	return &BusinessHandler{
		businesses: businesses,
		reviews:    reviews,
	}
}

// ListBusinesses handles GET /api/businesses
func (h *BusinessHandler) ListBusinesses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := services.SearchParams{
		Query:    query.Get("q"),
		Category: query.Get("category"),
		Location: parseLocation(query.Get("lat"), query.Get("lng")),
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
	}

	results, err := h.businesses.Search(r.Context(), params)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"businesses": results,
		"count":      len(results),
	})
}

// GetBusiness handles GET /api/businesses/{id}
func (h *BusinessHandler) GetBusiness(w http.ResponseWriter, r *http.Request) {
	business, err := h.businesses.GetApproved(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, business)
}

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type submitBusinessRequest struct {
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Address        string           `json:"address"`
	Phone          string           `json:"phone"`
	Email          string           `json:"email"`
	Website        string           `json:"website"`
	Category       string           `json:"category"`
	Subcategory    string           `json:"subcategory"`
	Services       []string         `json:"services"`
	SearchKeywords []string         `json:"search_keywords"`
	Location       *locationRequest `json:"location"`
}

// SubmitBusiness handles POST /api/businesses
func (h *BusinessHandler) SubmitBusiness(w http.ResponseWriter, r *http.Request) {
	var req submitBusinessRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input := &entities.Business{
		Name:            req.Name,
		Description:     req.Description,
		Address:         req.Address,
		Phone:           req.Phone,
		Email:           req.Email,
		Website:         req.Website,
		CategoryName:    req.Category,
		SubcategoryName: req.Subcategory,
		Services:        req.Services,
		SearchKeywords:  req.SearchKeywords,
	}
	if req.Location != nil {
		input.Location = &entities.Location{Latitude: req.Location.Latitude, Longitude: req.Location.Longitude}
	}

	business, err := h.businesses.Submit(r.Context(), middleware.UserFromContext(r.Context()), input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, business)
}

// ListReviews handles GET /api/businesses/{id}/reviews
func (h *BusinessHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.businesses.GetApproved(r.Context(), id); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	reviews, err := h.reviews.List(r.Context(), id, queryInt(r, "limit", 0), queryInt(r, "offset", 0))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	summary, err := h.reviews.Summary(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"reviews": reviews,
		"summary": summary,
	})
}

type createReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// CreateReview handles POST /api/businesses/{id}/reviews
func (h *BusinessHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	review, err := h.reviews.Create(r.Context(), middleware.UserFromContext(r.Context()), r.PathValue("id"), req.Rating, req.Comment)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, review)
}

// parseLocation returns nil unless both coordinates parse and form a
// usable point
func parseLocation(lat, lng string) *entities.Location {
	if lat == "" || lng == "" {
		return nil
	}
	latitude, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil
	}
	longitude, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil
	}
	loc := &entities.Location{Latitude: latitude, Longitude: longitude}
	if !loc.Valid() {
		return nil
	}
	return loc
}
