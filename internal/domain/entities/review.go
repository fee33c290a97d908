package entities

import "time"

// Review is a user's rating of a business
type Review struct {
	ID         string    `json:"id" db:"id"`
	BusinessID string    `json:"business_id" db:"business_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Rating     int       `json:"rating" db:"rating"`
	Comment    string    `json:"comment,omitempty" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ReviewSummary aggregates the reviews of a business
type ReviewSummary struct {
	BusinessID    string  `json:"business_id"`
	Count         int     `json:"count"`
	AverageRating float64 `json:"average_rating"`
}
