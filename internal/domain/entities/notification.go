package entities

import (
	"strings"
	"time"
)

// EmailTemplate identifies the purpose of a transactional email
type EmailTemplate string

const (
	EmailBusinessSubmitted EmailTemplate = "business_submitted"
	EmailBusinessApproved  EmailTemplate = "business_approved"
	EmailBusinessRejected  EmailTemplate = "business_rejected"
	EmailCategoryApproved  EmailTemplate = "category_approved"
)

// EmailStatus represents the delivery outcome of one attempt
type EmailStatus string

const (
	EmailStatusSent   EmailStatus = "sent"
	EmailStatusFailed EmailStatus = "failed"
)

// EmailLog is the audit record of a send attempt
type EmailLog struct {
	ID           string        `json:"id" db:"id"`
	DedupKey     string        `json:"dedup_key" db:"dedup_key"`
	Template     EmailTemplate `json:"template" db:"template"`
	Recipient    string        `json:"recipient" db:"recipient"`
	EntityID     string        `json:"entity_id" db:"entity_id"`
	Status       EmailStatus   `json:"status" db:"status"`
	ErrorMessage *string       `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

// EmailMessage is a rendered email ready for delivery
type EmailMessage struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

// DedupKey derives the key that suppresses sending the same template twice
// for one entity and recipient.
func DedupKey(template EmailTemplate, entityID, recipient string) string {
	return string(template) + ":" + entityID + ":" + strings.ToLower(strings.TrimSpace(recipient))
}
