package routes

import (
	"net/http"

	"github.com/persianhub/backend/internal/api/handlers"
	"github.com/persianhub/backend/internal/api/middleware"
	"github.com/persianhub/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	businessHandler    *handlers.BusinessHandler
	categoryHandler    *handlers.CategoryHandler
	adminHandler       *handlers.AdminHandler
	autoApproveHandler *handlers.AutoApproveHandler
	sseHandler         *handlers.SSEHandler

	auth            *middleware.Auth
	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router. cacheMiddleware and metrics may be nil.
func NewRouter(
	businessHandler *handlers.BusinessHandler,
	categoryHandler *handlers.CategoryHandler,
	adminHandler *handlers.AdminHandler,
	autoApproveHandler *handlers.AutoApproveHandler,
	sseHandler *handlers.SSEHandler,
	auth *middleware.Auth,
	cacheMiddleware *middleware.CacheMiddleware,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		businessHandler:    businessHandler,
		categoryHandler:    categoryHandler,
		adminHandler:       adminHandler,
		autoApproveHandler: autoApproveHandler,
		sseHandler:         sseHandler,
		auth:               auth,
		cacheMiddleware:    cacheMiddleware,
		allowedOrigins:     allowedOrigins,
		metrics:            metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	user := r.auth.RequireUser
	admin := r.auth.RequireAdmin

	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Public directory
	r.mux.HandleFunc("GET /api/businesses", r.businessHandler.ListBusinesses)
	r.mux.HandleFunc("GET /api/businesses/{id}", r.businessHandler.GetBusiness)
	r.mux.HandleFunc("GET /api/businesses/{id}/reviews", r.businessHandler.ListReviews)
	r.mux.HandleFunc("GET /api/categories", r.categoryHandler.ListCategories)

	// Signed-in users
	r.mux.Handle("POST /api/businesses", user(http.HandlerFunc(r.businessHandler.SubmitBusiness)))
	r.mux.Handle("POST /api/businesses/{id}/reviews", user(http.HandlerFunc(r.businessHandler.CreateReview)))
	r.mux.Handle("POST /api/category-requests", user(http.HandlerFunc(r.categoryHandler.RequestCategory)))

	// Moderation
	r.mux.Handle("GET /api/admin/businesses", admin(http.HandlerFunc(r.adminHandler.ListBusinesses)))
	r.mux.Handle("POST /api/admin/businesses/{id}/approve", admin(http.HandlerFunc(r.adminHandler.ApproveBusiness)))
	r.mux.Handle("POST /api/admin/businesses/{id}/reject", admin(http.HandlerFunc(r.adminHandler.RejectBusiness)))
	r.mux.Handle("PATCH /api/admin/businesses/{id}/promotion", admin(http.HandlerFunc(r.adminHandler.UpdatePromotion)))
	r.mux.Handle("GET /api/admin/category-requests", admin(http.HandlerFunc(r.adminHandler.ListCategoryRequests)))
	r.mux.Handle("POST /api/admin/category-requests/{id}/reject", admin(http.HandlerFunc(r.adminHandler.RejectCategoryRequest)))
	r.mux.Handle("POST /api/admin/category-requests/{id}/merge", admin(http.HandlerFunc(r.adminHandler.MergeCategoryRequest)))
	r.mux.Handle("GET /api/admin/analytics/top-searches", admin(http.HandlerFunc(r.adminHandler.TopSearches)))
	r.mux.Handle("GET /api/admin/stream", admin(http.HandlerFunc(r.sseHandler.StreamDirectoryEvents)))

	// Auto-approval trigger, called by the scheduler with the cron secret.
	// GET is kept for manual runs from a browser session.
	autoApprove := r.auth.RequireCronOrAdmin(http.HandlerFunc(r.autoApproveHandler.Run))
	r.mux.Handle("POST /api/admin/auto-approve", autoApprove)
	r.mux.Handle("GET /api/admin/auto-approve", autoApprove)

	// Observability must wrap the mux directly so r.Pattern is visible
	// after routing. CORS is outermost so cached responses get its headers.
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}
	handler = r.auth.Middleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.CORS(r.allowedOrigins)(handler)

	return handler
}
