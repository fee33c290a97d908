package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/repositories"
	tsclient "github.com/persianhub/backend/internal/infrastructure/clients/typesense"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

// Typesense caps per_page at 250
const maxPerPage = 250

const searchFields = "name,category,subcategory,services,description,address,keywords"

// TypesenseAdapter mirrors approved businesses into Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.BusinessSearchIndex = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a business document
func (a *TypesenseAdapter) Index(ctx context.Context, business *entities.Business) error {
	document := buildBusinessDocument(business)
	if document == nil {
		return fmt.Errorf("cannot index nil business")
	}

	_, err := a.client.Client().Collection(tsclient.BusinessesCollection).Documents().Upsert(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to index business: %w", err)
	}

	return nil
}

// Delete removes a business from the index. Missing documents are ignored.
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.BusinessesCollection).Document(id).Delete(ctx)
	if err != nil {
		var httpErr *typesense.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete business from index: %w", err)
	}
	return nil
}

// Search returns matching business ids in relevance order, reading
// result pages until limit ids are collected or the hits run out
func (a *TypesenseAdapter) Search(ctx context.Context, q, category string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}

	ids := make([]string, 0, min(limit, maxPerPage))
	for page := 1; len(ids) < limit; page++ {
		params := buildSearchParams(q, category, page, min(limit-len(ids), maxPerPage))
		result, err := a.client.Client().Collection(tsclient.BusinessesCollection).Documents().Search(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("failed to search businesses: %w", err)
		}
		if result.Hits == nil || len(*result.Hits) == 0 {
			break
		}

		for _, hit := range *result.Hits {
			if hit.Document == nil {
				continue
			}
			if id, ok := (*hit.Document)["id"].(string); ok && id != "" {
				ids = append(ids, id)
			}
		}
		if len(*result.Hits) < *params.PerPage {
			break
		}
	}

	return ids, nil
}

func buildSearchParams(q, category string, page, perPage int) *api.SearchCollectionParams {
	params := &api.SearchCollectionParams{
		Q:                    pointer.String(strings.TrimSpace(q)),
		QueryBy:              pointer.String(searchFields),
		Page:                 pointer.Int(page),
		PerPage:              pointer.Int(perPage),
		Prefix:               pointer.String("true"),
		NumTypos:             pointer.String("1"),
		IncludeFields:        pointer.String("id"),
		ExhaustiveSearch:     pointer.True(),
		PrioritizeExactMatch: pointer.True(),
	}
	if category = strings.TrimSpace(category); category != "" {
		// Token match keeps the filter case-insensitive like the database's
		params.FilterBy = pointer.String(fmt.Sprintf("category:`%s`", strings.ReplaceAll(category, "`", "")))
	}
	return params
}

func buildBusinessDocument(business *entities.Business) map[string]interface{} {
	if business == nil {
		return nil
	}

	document := map[string]interface{}{
		"id":          business.ID,
		"name":        strings.TrimSpace(business.Name),
		"description": business.Description,
		"address":     business.Address,
		"category":    business.CategoryName,
		"services":    cleanTerms(business.Services),
		"keywords":    cleanTerms(business.SearchKeywords),
		"promoted":    business.Promoted,
		"sponsored":   business.Sponsored,
		"created_at":  business.CreatedAt.Unix(),
	}
	if business.SubcategoryName != "" {
		document["subcategory"] = business.SubcategoryName
	}
	if business.Location.Valid() {
		document["location"] = []float64{business.Location.Latitude, business.Location.Longitude}
	}

	return document
}

func cleanTerms(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	terms := make([]string, 0, len(values))
	for _, v := range values {
		term := strings.ToLower(strings.TrimSpace(v))
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}
