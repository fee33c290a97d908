package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/persianhub/backend/pkg/errors"
)

var businessColumns = []interface{}{
	"id", "owner_id", "name", "description", "address", "phone", "email", "website",
	"category_name", "subcategory_name", "services", "search_keywords",
	"latitude", "longitude", "status", "promoted", "sponsored", "promoted_until",
	"admin_notes", "created_at", "updated_at",
}

// BusinessAdapter implements BusinessRepository
type BusinessAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewBusinessAdapter creates a new business adapter
func NewBusinessAdapter(client *postgres.Client) repositories.BusinessRepository {
	return &BusinessAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a new business listing
func (a *BusinessAdapter) Create(ctx context.Context, business *entities.Business) error {
	if business == nil {
		return apperrors.NewInternalError("business is nil", fmt.Errorf("business is nil"))
	}
	if business.ID == "" {
		business.ID = uuid.New().String()
	}
	now := time.Now()
	if business.CreatedAt.IsZero() {
		business.CreatedAt = now
	}
	business.UpdatedAt = now
	if business.Status == "" {
		business.Status = entities.BusinessStatusPending
	}

	lat, lng := nullCoordinates(business.Location)
	record := goqu.Record{
		"id":               business.ID,
		"owner_id":         business.OwnerID,
		"name":             business.Name,
		"description":      business.Description,
		"address":          business.Address,
		"phone":            business.Phone,
		"email":            business.Email,
		"website":          business.Website,
		"category_name":    business.CategoryName,
		"subcategory_name": business.SubcategoryName,
		"services":         pq.Array(nonNilStrings(business.Services)),
		"search_keywords":  pq.Array(nonNilStrings(business.SearchKeywords)),
		"latitude":         lat,
		"longitude":        lng,
		"status":           business.Status,
		"promoted":         business.Promoted,
		"sponsored":        business.Sponsored,
		"promoted_until":   nullTime(business.PromotedUntil),
		"admin_notes":      business.AdminNotes,
		"created_at":       business.CreatedAt,
		"updated_at":       business.UpdatedAt,
	}

	query, args, err := a.db.Insert("businesses").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperrors.NewConflictError("business already exists", err)
		}
		return apperrors.NewInternalError("failed to create business", err)
	}

	return nil
}

// GetByID retrieves a business by ID
func (a *BusinessAdapter) GetByID(ctx context.Context, id string) (*entities.Business, error) {
	query, args, err := a.db.From("businesses").
		Select(businessColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	business, err := scanBusiness(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("business with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get business", err)
	}

	return business, nil
}

// List retrieves businesses matching the filter, newest first unless
// filter.PlacementFirst is set
func (a *BusinessAdapter) List(ctx context.Context, filter repositories.BusinessFilter) ([]*entities.Business, error) {
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return []*entities.Business{}, nil
	}

	ds := a.db.From("businesses").Select(businessColumns...)

	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": filter.Status})
	}
	if name := strings.TrimSpace(filter.CategoryName); name != "" {
		ds = ds.Where(goqu.Func("LOWER", goqu.C("category_name")).Eq(strings.ToLower(name)))
	}
	if filter.OwnerID != "" {
		ds = ds.Where(goqu.Ex{"owner_id": filter.OwnerID})
	}
	if len(filter.IDs) > 0 {
		ds = ds.Where(goqu.Ex{"id": filter.IDs})
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		ds = ds.Where(textMatch(q))
	}

	ds = ds.Order(listOrder(filter)...)

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list businesses", err)
	}
	defer rows.Close()

	businesses := make([]*entities.Business, 0)
	for rows.Next() {
		business, err := scanBusiness(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan business", err)
		}
		businesses = append(businesses, business)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate businesses", err)
	}

	return businesses, nil
}

// UpdateStatus moves a business to a new moderation status
func (a *BusinessAdapter) UpdateStatus(ctx context.Context, id string, status entities.BusinessStatus, adminNotes string) error {
	return a.update(ctx, id, goqu.Record{
		"status":      status,
		"admin_notes": adminNotes,
		"updated_at":  time.Now(),
	})
}

// UpdatePromotion sets the promoted and sponsored flags
func (a *BusinessAdapter) UpdatePromotion(ctx context.Context, id string, promotion repositories.PromotionUpdate) error {
	return a.update(ctx, id, goqu.Record{
		"promoted":       promotion.Promoted,
		"sponsored":      promotion.Sponsored,
		"promoted_until": nullTime(promotion.PromotedUntil),
		"updated_at":     time.Now(),
	})
}

func (a *BusinessAdapter) update(ctx context.Context, id string, record goqu.Record) error {
	query, args, err := a.db.Update("businesses").
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update business", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to read affected rows", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("business with id %s not found", id))
	}

	return nil
}

// textMatch matches q anywhere in the fields the search ranker scores
func textMatch(q string) exp.ExpressionList {
	pattern := "%" + likeEscaper.Replace(q) + "%"
	return goqu.Or(
		goqu.C("name").ILike(pattern),
		goqu.C("category_name").ILike(pattern),
		goqu.C("subcategory_name").ILike(pattern),
		goqu.L(`array_to_string("services", ' ') ILIKE ?`, pattern),
		goqu.C("description").ILike(pattern),
		goqu.C("address").ILike(pattern),
		goqu.L(`array_to_string("search_keywords", ' ') ILIKE ?`, pattern),
	)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func listOrder(filter repositories.BusinessFilter) []exp.OrderedExpression {
	newest := goqu.I("created_at").Desc()
	if !filter.PlacementFirst {
		return []exp.OrderedExpression{newest}
	}

	order := []exp.OrderedExpression{
		goqu.L(`("promoted" AND ("promoted_until" IS NULL OR "promoted_until" > NOW()))`).Desc(),
		goqu.I("sponsored").Desc(),
	}
	if near := filter.Near; near.Valid() {
		// Equirectangular approximation, good enough to pick the nearest rows
		scale := math.Cos(near.Latitude * math.Pi / 180)
		order = append(order,
			goqu.L(`("latitude" IS NULL OR "longitude" IS NULL)`).Asc(),
			goqu.L(`POWER("latitude" - ?, 2) + POWER(("longitude" - ?) * ?, 2)`,
				near.Latitude, near.Longitude, scale).Asc(),
		)
	}
	return append(order, newest)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBusiness(row rowScanner) (*entities.Business, error) {
	var (
		b             entities.Business
		lat, lng      sql.NullFloat64
		promotedUntil sql.NullTime
	)

	err := row.Scan(
		&b.ID,
		&b.OwnerID,
		&b.Name,
		&b.Description,
		&b.Address,
		&b.Phone,
		&b.Email,
		&b.Website,
		&b.CategoryName,
		&b.SubcategoryName,
		pq.Array(&b.Services),
		pq.Array(&b.SearchKeywords),
		&lat,
		&lng,
		&b.Status,
		&b.Promoted,
		&b.Sponsored,
		&promotedUntil,
		&b.AdminNotes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		b.Location = &entities.Location{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	if promotedUntil.Valid {
		t := promotedUntil.Time
		b.PromotedUntil = &t
	}

	return &b, nil
}

func nullCoordinates(loc *entities.Location) (sql.NullFloat64, sql.NullFloat64) {
	if !loc.Valid() {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: loc.Latitude, Valid: true},
		sql.NullFloat64{Float64: loc.Longitude, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
