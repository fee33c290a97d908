package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/persianhub/backend/internal/application/services"
	"github.com/persianhub/backend/internal/infrastructure/observability"
	apperrors "github.com/persianhub/backend/pkg/errors"
)

// AutoApprover runs one category auto-approval pass
type AutoApprover interface {
	Run(ctx context.Context) (*services.AutoApprovalSummary, error)
}

// AutoApproveHandler exposes the category auto-approval trigger
type AutoApproveHandler struct {
	approver AutoApprover
}

// NewAutoApproveHandler creates a new auto-approve handler
func NewAutoApproveHandler(approver AutoApprover) *AutoApproveHandler {
	return &AutoApproveHandler{approver: approver}
}

// Run handles POST /api/admin/auto-approve and its GET alias. A failed run
// returns 500 with the underlying cause so the scheduler log shows it.
func (h *AutoApproveHandler) Run(w http.ResponseWriter, r *http.Request) {
	summary, err := h.approver.Run(r.Context())
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("Category auto-approval failed")

		message := "auto-approval failed"
		details := err.Error()
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			message = appErr.Message
			if appErr.Err != nil {
				details = appErr.Err.Error()
			}
		}
		respondWithJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   message,
			"details": details,
		})
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}
