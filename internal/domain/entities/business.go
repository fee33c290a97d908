package entities

import (
	"math"
	"time"
)

// BusinessStatus is the moderation state of a listing
type BusinessStatus string

const (
	BusinessStatusPending  BusinessStatus = "pending"
	BusinessStatusApproved BusinessStatus = "approved"
	BusinessStatusRejected BusinessStatus = "rejected"
)

// Business represents a directory listing
type Business struct {
	ID              string         `json:"id" db:"id"`
	OwnerID         string         `json:"owner_id" db:"owner_id"`
	Name            string         `json:"name" db:"name"`
	Description     string         `json:"description" db:"description"`
	Address         string         `json:"address" db:"address"`
	Phone           string         `json:"phone,omitempty" db:"phone"`
	Email           string         `json:"email,omitempty" db:"email"`
	Website         string         `json:"website,omitempty" db:"website"`
	CategoryName    string         `json:"category" db:"category_name"`
	SubcategoryName string         `json:"subcategory,omitempty" db:"subcategory_name"`
	Services        []string       `json:"services" db:"services"`
	SearchKeywords  []string       `json:"-" db:"search_keywords"` // owner keywords, ranking only
	Location        *Location      `json:"location,omitempty" db:"-"`
	Status          BusinessStatus `json:"status" db:"status"`
	Promoted        bool           `json:"promoted" db:"promoted"`
	Sponsored       bool           `json:"sponsored" db:"sponsored"`
	PromotedUntil   *time.Time     `json:"promoted_until,omitempty" db:"promoted_until"`
	AdminNotes      string         `json:"-" db:"admin_notes"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// Location represents geographical coordinates
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether l holds a usable coordinate. The zero point is
// treated as missing because listings without a geocode store 0,0.
func (l *Location) Valid() bool {
	if l == nil {
		return false
	}
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) {
		return false
	}
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return false
	}
	return l.Latitude != 0 || l.Longitude != 0
}

// IsPromotedAt reports whether the promoted flag is in effect at t
func (b *Business) IsPromotedAt(t time.Time) bool {
	if !b.Promoted {
		return false
	}
	return b.PromotedUntil == nil || t.Before(*b.PromotedUntil)
}
