package providers

import (
	"context"

	"github.com/persianhub/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.DirectoryEvent) error

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.DirectoryEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelDirectory carries every listing and category change
const EventChannelDirectory = "directory:updates"
