package providers

import (
	"context"

	"github.com/persianhub/backend/internal/domain/entities"
)

// EmailSender delivers a rendered email
type EmailSender interface {
	Send(ctx context.Context, msg *entities.EmailMessage) error
}
