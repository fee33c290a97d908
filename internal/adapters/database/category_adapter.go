package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/persianhub/backend/pkg/errors"
)

// CategoryAdapter implements CategoryRepository
type CategoryAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCategoryAdapter creates a new category adapter
func NewCategoryAdapter(client *postgres.Client) repositories.CategoryRepository {
	return &CategoryAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a category. Names are unique case-insensitively.
func (a *CategoryAdapter) Create(ctx context.Context, category *entities.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now()
	}

	query, args, err := a.db.Insert("categories").Rows(goqu.Record{
		"id":         category.ID,
		"name":       category.Name,
		"created_at": category.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperrors.NewConflictError(fmt.Sprintf("category %q already exists", category.Name), err)
		}
		return apperrors.NewInternalError("failed to create category", err)
	}

	return nil
}

// FindByName looks a category up by case-insensitive name
func (a *CategoryAdapter) FindByName(ctx context.Context, name string) (*entities.Category, error) {
	query, args, err := a.db.From("categories").
		Select("id", "name", "created_at").
		Where(goqu.Func("LOWER", goqu.C("name")).Eq(strings.ToLower(strings.TrimSpace(name)))).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	category := &entities.Category{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&category.ID, &category.Name, &category.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("category %q not found", name))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get category", err)
	}

	return category, nil
}

// List returns every category with its subcategories, ordered by name
func (a *CategoryAdapter) List(ctx context.Context) ([]*entities.Category, error) {
	query, args, err := a.db.From("categories").
		Select("id", "name", "created_at").
		Order(goqu.I("name").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list categories", err)
	}
	defer rows.Close()

	categories := make([]*entities.Category, 0)
	byID := make(map[string]*entities.Category)
	for rows.Next() {
		c := &entities.Category{Subcategories: []*entities.Subcategory{}}
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan category", err)
		}
		categories = append(categories, c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate categories", err)
	}
	if len(categories) == 0 {
		return categories, nil
	}

	subQuery, subArgs, err := a.db.From("subcategories").
		Select("id", "category_id", "name", "created_at").
		Order(goqu.I("name").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	subRows, err := a.client.DB().QueryContext(ctx, subQuery, subArgs...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list subcategories", err)
	}
	defer subRows.Close()

	for subRows.Next() {
		s := &entities.Subcategory{}
		if err := subRows.Scan(&s.ID, &s.CategoryID, &s.Name, &s.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan subcategory", err)
		}
		if parent, ok := byID[s.CategoryID]; ok {
			parent.Subcategories = append(parent.Subcategories, s)
		}
	}
	if err := subRows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate subcategories", err)
	}

	return categories, nil
}

// CreateSubcategory inserts a subcategory under its parent
func (a *CategoryAdapter) CreateSubcategory(ctx context.Context, subcategory *entities.Subcategory) error {
	if subcategory.ID == "" {
		subcategory.ID = uuid.New().String()
	}
	if subcategory.CreatedAt.IsZero() {
		subcategory.CreatedAt = time.Now()
	}

	query, args, err := a.db.Insert("subcategories").Rows(goqu.Record{
		"id":          subcategory.ID,
		"category_id": subcategory.CategoryID,
		"name":        subcategory.Name,
		"created_at":  subcategory.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperrors.NewConflictError(fmt.Sprintf("subcategory %q already exists", subcategory.Name), err)
		}
		return apperrors.NewInternalError("failed to create subcategory", err)
	}

	return nil
}
