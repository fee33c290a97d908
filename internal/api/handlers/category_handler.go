package handlers

import (
	"context"
	"net/http"

	"github.com/persianhub/backend/internal/api/middleware"
	"github.com/persianhub/backend/internal/domain/entities"
)

// CategoryService is the public category behaviour the handler depends on
type CategoryService interface {
	List(ctx context.Context) ([]*entities.Category, error)
	Request(ctx context.Context, user *entities.User, categoryName, subcategoryName string) (*entities.CategoryRequest, error)
}

// CategoryHandler handles category catalogue requests
type CategoryHandler struct {
	categories CategoryService
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(categories CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// ListCategories handles GET /api/categories
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

type categoryRequestBody struct {
	CategoryName    string `json:"category_name"`
	SubcategoryName string `json:"subcategory_name"`
}

// RequestCategory handles POST /api/category-requests
func (h *CategoryHandler) RequestCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}
	request, err := h.categories.Request(r.Context(), middleware.UserFromContext(r.Context()), req.CategoryName, req.SubcategoryName)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, request)
}
