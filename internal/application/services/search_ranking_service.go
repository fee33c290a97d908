package services

import (
	"math"
	"sort"
	"time"

	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/pkg/utils"
)

// RankWeights is the score contributed by each matching signal. Signals are
// independent; a business can collect several.
type RankWeights struct {
	ExactName   int
	PartialName int
	Category    int
	Subcategory int
	Service     int
	Description int
	Address     int
	Keyword     int
}

// DefaultRankWeights is the production weight table
var DefaultRankWeights = RankWeights{
	ExactName:   100,
	PartialName: 50,
	Category:    30,
	Subcategory: 25,
	Service:     20,
	Description: 10,
	Address:     5,
	Keyword:     3,
}

const (
	earthRadiusKm = 6371.0

	// UnknownDistanceKm is assigned to businesses without a usable
	// coordinate so they sort after every located business.
	UnknownDistanceKm = 999.0
)

// RankedBusiness is a business with its relevance score and, when the
// caller supplied a location, its distance from the caller.
type RankedBusiness struct {
	*entities.Business
	Score      int      `json:"score"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// SearchRanker scores and orders businesses against a free-text query
type SearchRanker struct {
	weights RankWeights
	now     func() time.Time
}

// NewSearchRanker creates a ranker using DefaultRankWeights
func NewSearchRanker() *SearchRanker {
	return NewSearchRankerWithWeights(DefaultRankWeights)
}

// NewSearchRankerWithWeights creates a ranker with a custom weight table
func NewSearchRankerWithWeights(weights RankWeights) *SearchRanker {
	return &SearchRanker{weights: weights, now: time.Now}
}

// Rank returns the businesses matching query, best first. With an empty
// query every business is returned in placement order. user may be nil.
func (r *SearchRanker) Rank(query string, businesses []*entities.Business, user *entities.Location) []RankedBusiness {
	q := utils.NormalizeTerm(query)
	withDistance := user.Valid()
	now := r.now()

	ranked := make([]RankedBusiness, 0, len(businesses))
	for _, b := range businesses {
		if b == nil {
			continue
		}

		item := RankedBusiness{Business: b}
		if q != "" {
			item.Score = r.Score(q, b)
			if item.Score == 0 {
				continue
			}
		}
		if withDistance {
			d := DistanceKm(user, b.Location)
			item.DistanceKm = &d
		}
		ranked = append(ranked, item)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]

		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if pa, pb := a.IsPromotedAt(now), b.IsPromotedAt(now); pa != pb {
			return pa
		}
		if a.Sponsored != b.Sponsored {
			return a.Sponsored
		}
		if a.DistanceKm != nil && b.DistanceKm != nil && *a.DistanceKm != *b.DistanceKm {
			return *a.DistanceKm < *b.DistanceKm
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	return ranked
}

// Score computes the relevance of b for an already lowercased, trimmed
// query. It returns 0 when nothing matches.
func (r *SearchRanker) Score(q string, b *entities.Business) int {
	if q == "" || b == nil {
		return 0
	}

	score := 0
	switch {
	case utils.NormalizeTerm(b.Name) == q:
		score += r.weights.ExactName
	case utils.ContainsFold(b.Name, q):
		score += r.weights.PartialName
	}

	if utils.ContainsFold(b.CategoryName, q) {
		score += r.weights.Category
	}
	if utils.ContainsFold(b.SubcategoryName, q) {
		score += r.weights.Subcategory
	}
	if anyContainsFold(b.Services, q) {
		score += r.weights.Service
	}
	if utils.ContainsFold(b.Description, q) {
		score += r.weights.Description
	}
	if utils.ContainsFold(b.Address, q) {
		score += r.weights.Address
	}
	if anyContainsFold(b.SearchKeywords, q) {
		score += r.weights.Keyword
	}

	return score
}

// DistanceKm returns the great-circle distance between from and to, or
// UnknownDistanceKm when either coordinate is unusable.
func DistanceKm(from, to *entities.Location) float64 {
	if !from.Valid() || !to.Valid() {
		return UnknownDistanceKm
	}

	lat1 := from.Latitude * math.Pi / 180
	lat2 := to.Latitude * math.Pi / 180
	dLat := (to.Latitude - from.Latitude) * math.Pi / 180
	dLon := (to.Longitude - from.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func anyContainsFold(values []string, q string) bool {
	for _, v := range values {
		if utils.ContainsFold(v, q) {
			return true
		}
	}
	return false
}
