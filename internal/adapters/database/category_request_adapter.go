package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/persianhub/backend/pkg/errors"
)

var categoryRequestColumns = []interface{}{
	"id", "category_name", "subcategory_name", "status", "requester_id",
	"business_id", "admin_notes", "created_at", "updated_at",
}

// CategoryRequestAdapter implements CategoryRequestRepository
type CategoryRequestAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCategoryRequestAdapter creates a new category request adapter
func NewCategoryRequestAdapter(client *postgres.Client) repositories.CategoryRequestRepository {
	return &CategoryRequestAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a new pending request
func (a *CategoryRequestAdapter) Create(ctx context.Context, request *entities.CategoryRequest) error {
	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	now := time.Now()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	if request.Status == "" {
		request.Status = entities.CategoryRequestPending
	}

	query, args, err := a.db.Insert("category_requests").Rows(goqu.Record{
		"id":               request.ID,
		"category_name":    request.CategoryName,
		"subcategory_name": request.SubcategoryName,
		"status":           request.Status,
		"requester_id":     request.RequesterID,
		"business_id":      nullString(request.BusinessID),
		"admin_notes":      request.AdminNotes,
		"created_at":       request.CreatedAt,
		"updated_at":       request.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create category request", err)
	}

	return nil
}

// GetByID retrieves one request
func (a *CategoryRequestAdapter) GetByID(ctx context.Context, id string) (*entities.CategoryRequest, error) {
	query, args, err := a.db.From("category_requests").
		Select(categoryRequestColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	request, err := scanCategoryRequest(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("category request with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get category request", err)
	}

	return request, nil
}

// ListByStatus returns requests in the given status, oldest first. An
// empty status lists everything.
func (a *CategoryRequestAdapter) ListByStatus(ctx context.Context, status entities.CategoryRequestStatus) ([]*entities.CategoryRequest, error) {
	ds := a.db.From("category_requests").Select(categoryRequestColumns...)
	if status != "" {
		ds = ds.Where(goqu.Ex{"status": status})
	}

	query, args, err := ds.Order(goqu.I("created_at").Asc()).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list category requests", err)
	}
	defer rows.Close()

	requests := make([]*entities.CategoryRequest, 0)
	for rows.Next() {
		request, err := scanCategoryRequest(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan category request", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate category requests", err)
	}

	return requests, nil
}

// UpdateStatusIfPending transitions the given requests only while they
// are still pending.
func (a *CategoryRequestAdapter) UpdateStatusIfPending(ctx context.Context, ids []string, status entities.CategoryRequestStatus, adminNotes string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := a.db.Update("category_requests").
		Set(goqu.Record{
			"status":      status,
			"admin_notes": adminNotes,
			"updated_at":  time.Now(),
		}).
		Where(goqu.Ex{
			"id":     ids,
			"status": entities.CategoryRequestPending,
		}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to update category requests", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to read affected rows", err)
	}

	return affected, nil
}

func scanCategoryRequest(row rowScanner) (*entities.CategoryRequest, error) {
	var (
		r          entities.CategoryRequest
		businessID sql.NullString
	)

	err := row.Scan(
		&r.ID,
		&r.CategoryName,
		&r.SubcategoryName,
		&r.Status,
		&r.RequesterID,
		&businessID,
		&r.AdminNotes,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.BusinessID = businessID.String

	return &r, nil
}
