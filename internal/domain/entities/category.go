package entities

import "time"

// Category is an approved top-level business category
type Category struct {
	ID            string         `json:"id" db:"id"`
	Name          string         `json:"name" db:"name"`
	Subcategories []*Subcategory `json:"subcategories,omitempty" db:"-"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// Subcategory belongs to exactly one category
type Subcategory struct {
	ID         string    `json:"id" db:"id"`
	CategoryID string    `json:"category_id" db:"category_id"`
	Name       string    `json:"name" db:"name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CategoryRequestStatus is the lifecycle state of a category request.
// Everything other than pending is terminal.
type CategoryRequestStatus string

const (
	CategoryRequestPending  CategoryRequestStatus = "pending"
	CategoryRequestApproved CategoryRequestStatus = "approved"
	CategoryRequestRejected CategoryRequestStatus = "rejected"
	CategoryRequestMerged   CategoryRequestStatus = "merged"
)

// CategoryRequest is a user proposal for a category that does not exist yet
type CategoryRequest struct {
	ID              string                `json:"id" db:"id"`
	CategoryName    string                `json:"category_name" db:"category_name"`
	SubcategoryName string                `json:"subcategory_name,omitempty" db:"subcategory_name"`
	Status          CategoryRequestStatus `json:"status" db:"status"`
	RequesterID     string                `json:"requester_id" db:"requester_id"`
	BusinessID      string                `json:"business_id,omitempty" db:"business_id"`
	AdminNotes      string                `json:"admin_notes,omitempty" db:"admin_notes"`
	CreatedAt       time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at" db:"updated_at"`
}

// IsTerminal reports whether the request can no longer change status
func (r *CategoryRequest) IsTerminal() bool {
	return r.Status != CategoryRequestPending
}
