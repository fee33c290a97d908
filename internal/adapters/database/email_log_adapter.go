package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/persianhub/backend/pkg/errors"
)

// EmailLogAdapter implements EmailLogRepository
type EmailLogAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewEmailLogAdapter creates a new email log adapter
func NewEmailLogAdapter(client *postgres.Client) repositories.EmailLogRepository {
	return &EmailLogAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create records one send attempt. A second successful send for the same
// dedup key violates the partial unique index and is reported as a conflict.
func (a *EmailLogAdapter) Create(ctx context.Context, entry *entities.EmailLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	record := goqu.Record{
		"id":            entry.ID,
		"dedup_key":     entry.DedupKey,
		"template":      entry.Template,
		"recipient":     entry.Recipient,
		"entity_id":     entry.EntityID,
		"status":        entry.Status,
		"error_message": entry.ErrorMessage,
		"created_at":    entry.CreatedAt,
	}

	query, args, err := a.db.Insert("email_logs").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperrors.NewConflictError("email already sent", err)
		}
		return apperrors.NewInternalError("failed to log email", err)
	}

	return nil
}

// WasSent reports whether a successful send is on record for dedupKey
func (a *EmailLogAdapter) WasSent(ctx context.Context, dedupKey string) (bool, error) {
	query, args, err := a.db.From("email_logs").
		Select(goqu.COUNT("*")).
		Where(goqu.Ex{
			"dedup_key": dedupKey,
			"status":    entities.EmailStatusSent,
		}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, apperrors.NewInternalError("failed to check email log", err)
	}

	return count > 0, nil
}
