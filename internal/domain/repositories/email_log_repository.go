package repositories

import (
	"context"

	"github.com/persianhub/backend/internal/domain/entities"
)

// EmailLogRepository records every email attempt
type EmailLogRepository interface {
	Create(ctx context.Context, entry *entities.EmailLog) error
	// WasSent reports whether a successful send exists for dedupKey
	WasSent(ctx context.Context, dedupKey string) (bool, error)
}
