package entities

import "time"

// SearchAnalytic is the running tally for one normalized search term
type SearchAnalytic struct {
	Term            string    `json:"term" db:"term"`
	SearchCount     int64     `json:"search_count" db:"search_count"`
	FirstSearchedAt time.Time `json:"first_searched_at" db:"first_searched_at"`
	LastSearchedAt  time.Time `json:"last_searched_at" db:"last_searched_at"`
}
