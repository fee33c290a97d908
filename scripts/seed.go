package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/persianhub/backend/internal/adapters/database"
	"github.com/persianhub/backend/internal/adapters/search"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/repositories"
	"github.com/persianhub/backend/internal/infrastructure/clients/postgres"
	"github.com/persianhub/backend/internal/infrastructure/clients/typesense"
	"github.com/persianhub/backend/internal/infrastructure/observability"
	"github.com/persianhub/backend/pkg/config"
	apperrors "github.com/persianhub/backend/pkg/errors"
)

// Starter catalogue for local development
var seedCategories = map[string][]string{
	"Restaurants":   {"Persian Cuisine", "Cafes", "Bakeries"},
	"Grocery":       {"Persian Markets", "Butchers"},
	"Health":        {"Dentists", "Family Doctors"},
	"Legal":         {"Immigration Lawyers", "Notaries"},
	"Beauty":        {"Hair Salons"},
	"Automotive":    {"Auto Repair"},
	"Education":     {"Farsi Classes", "Music Lessons"},
	"Real Estate":   {},
	"Events":        {"Wedding Planners", "Photographers"},
	"Home Services": {"Contractors"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-seed", cfg.Log.Environment, cfg.Log.Level)
	logger := observability.GetLogger()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		logger.Warn().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				reviews,
				category_requests,
				businesses,
				subcategories,
				categories,
				search_analytics,
				email_logs
			CASCADE
		`)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to reset tables")
		}
	}

	categoryRepo := database.NewCategoryAdapter(pgClient)
	businessRepo := database.NewBusinessAdapter(pgClient)

	// 1. Seed categories and subcategories
	for name, subcategories := range seedCategories {
		category, err := ensureCategory(ctx, categoryRepo, name)
		if err != nil {
			logger.Error().Err(err).Str("category", name).Msg("Failed to seed category")
			continue
		}
		for _, sub := range subcategories {
			err := categoryRepo.CreateSubcategory(ctx, &entities.Subcategory{CategoryID: category.ID, Name: sub})
			if err != nil && !apperrors.IsConflict(err) {
				logger.Error().Err(err).Str("subcategory", sub).Msg("Failed to seed subcategory")
			}
		}
	}

	// 2. Seed approved sample listings around Los Angeles
	now := time.Now().UTC()
	promotedUntil := now.AddDate(0, 1, 0)
	businesses := []*entities.Business{
		{
			Name:            "Shiraz Kitchen",
			Description:     "Family-run restaurant serving kabob, stews and fresh tahdig.",
			Address:         "1520 Westwood Blvd, Los Angeles, CA",
			Phone:           "+1 310 555 0101",
			CategoryName:    "Restaurants",
			SubcategoryName: "Persian Cuisine",
			Services:        []string{"Dine-in", "Catering", "Takeout"},
			SearchKeywords:  []string{"kabob", "chelo", "ghormeh sabzi"},
			Location:        &entities.Location{Latitude: 34.0569, Longitude: -118.4427},
			Promoted:        true,
			PromotedUntil:   &promotedUntil,
		},
		{
			Name:            "Golestan Market",
			Description:     "Persian groceries, spices, saffron and fresh bread daily.",
			Address:         "1840 Westwood Blvd, Los Angeles, CA",
			CategoryName:    "Grocery",
			SubcategoryName: "Persian Markets",
			Services:        []string{"Spices", "Bakery", "Delivery"},
			SearchKeywords:  []string{"saffron", "barbari", "sangak"},
			Location:        &entities.Location{Latitude: 34.0521, Longitude: -118.4335},
			Sponsored:       true,
		},
		{
			Name:            "Dr. Rahimi Dental",
			Description:     "General and cosmetic dentistry. Farsi spoken.",
			Address:         "9400 Brighton Way, Beverly Hills, CA",
			CategoryName:    "Health",
			SubcategoryName: "Dentists",
			Services:        []string{"Cleaning", "Implants", "Whitening"},
			Location:        &entities.Location{Latitude: 34.0681, Longitude: -118.4024},
		},
		{
			Name:            "Pars Immigration Law",
			Description:     "Visa, green card and citizenship applications.",
			Address:         "11601 Wilshire Blvd, Los Angeles, CA",
			CategoryName:    "Legal",
			SubcategoryName: "Immigration Lawyers",
			Services:        []string{"Family visas", "Asylum", "Citizenship"},
			Location:        &entities.Location{Latitude: 34.0497, Longitude: -118.4641},
		},
		{
			Name:            "Navid Farsi School",
			Description:     "Weekend Farsi reading and writing classes for kids and adults.",
			Address:         "Online",
			CategoryName:    "Education",
			SubcategoryName: "Farsi Classes",
			Services:        []string{"Kids classes", "Adult classes"},
		},
	}

	seeded := make([]*entities.Business, 0, len(businesses))
	for _, b := range businesses {
		b.ID = uuid.New().String()
		b.OwnerID = "seed"
		b.Status = entities.BusinessStatusApproved
		b.CreatedAt = now
		b.UpdatedAt = now
		if err := businessRepo.Create(ctx, b); err != nil {
			logger.Error().Err(err).Str("business", b.Name).Msg("Failed to seed business")
			continue
		}
		seeded = append(seeded, b)
	}

	// 3. Mirror listings into Typesense when it is enabled
	if cfg.Typesense.Enabled {
		indexSeeded(ctx, cfg, seeded)
	}

	logger.Info().Int("categories", len(seedCategories)).Int("businesses", len(seeded)).Msg("Seeding complete")
}

func ensureCategory(ctx context.Context, repo repositories.CategoryRepository, name string) (*entities.Category, error) {
	category := &entities.Category{Name: name}
	err := repo.Create(ctx, category)
	if err == nil {
		return category, nil
	}
	if !apperrors.IsConflict(err) {
		return nil, err
	}
	return repo.FindByName(ctx, name)
}

func indexSeeded(ctx context.Context, cfg *config.Config, businesses []*entities.Business) {
	logger := observability.GetLogger()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		logger.Warn().Err(err).Msg("Typesense unavailable, skipping index")
		return
	}
	if err := tsClient.InitSchema(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to init Typesense schema")
		return
	}

	index := search.NewTypesenseAdapter(tsClient)
	for _, b := range businesses {
		if err := index.Index(ctx, b); err != nil {
			logger.Warn().Err(err).Str("business", b.Name).Msg("Failed to index business")
		}
	}
}
