package entities

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of directory change event
type EventType string

const (
	EventBusinessSubmitted EventType = "business.submitted"
	EventBusinessUpdated   EventType = "business.updated"
	EventBusinessApproved  EventType = "business.approved"
	EventCategoryApproved  EventType = "category.approved"
	EventCategoryUpdated   EventType = "category.updated"
)

// DirectoryEvent is published when listings or categories change so that
// caches and indexes can be refreshed.
type DirectoryEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	EntityID  string                 `json:"entity_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewDirectoryEvent creates an event stamped with the current time
func NewDirectoryEvent(eventType EventType, entityID string, data map[string]interface{}) *DirectoryEvent {
	return &DirectoryEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		EntityID:  entityID,
		Data:      data,
		Timestamp: time.Now(),
	}
}
