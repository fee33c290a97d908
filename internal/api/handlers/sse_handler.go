package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/internal/domain/providers"
	"github.com/persianhub/backend/internal/infrastructure/observability"
)

const defaultHeartbeatInterval = 30 * time.Second

// SSEHandler streams directory change events to the moderation dashboard
// as Server-Sent Events
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration
}

// NewSSEHandler creates a new SSE handler. A nil eventBus makes the
// stream unavailable.
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		heartbeat: defaultHeartbeatInterval,
	}
}

// WithHeartbeat overrides the keep-alive interval
func (h *SSEHandler) WithHeartbeat(interval time.Duration) *SSEHandler {
	if interval > 0 {
		h.heartbeat = interval
	}
	return h
}

// StreamDirectoryEvents handles GET /api/admin/stream. The optional types
// query parameter is a comma separated list of event types to forward,
// e.g. types=business.submitted,category.approved.
func (h *SSEHandler) StreamDirectoryEvents(w http.ResponseWriter, r *http.Request) {
	if h.eventBus == nil {
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx)
	rc := http.NewResponseController(w)

	events, err := h.eventBus.Subscribe(ctx, providers.EventChannelDirectory)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to subscribe to directory events")
		respondWithError(w, http.StatusBadGateway, "event stream unavailable")
		return
	}

	// Streams outlive the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	wanted := parseEventTypes(r.URL.Query().Get("types"))
	h.sendEvent(w, "connected", map[string]interface{}{
		"timestamp": time.Now().UTC(),
	})
	if err := rc.Flush(); err != nil {
		logger.Error().Err(err).Msg("Streaming not supported")
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Client disconnected from directory stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now().UTC(),
			})
		case event, ok := <-events:
			if !ok {
				return
			}
			if event == nil || (len(wanted) > 0 && !wanted[event.Type]) {
				continue
			}
			h.sendEvent(w, string(event.Type), event)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// sendEvent writes one SSE frame
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		observability.GetLogger().Error().Err(err).Str("event", eventType).Msg("Failed to marshal event data")
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func parseEventTypes(raw string) map[entities.EventType]bool {
	wanted := map[entities.EventType]bool{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			wanted[entities.EventType(part)] = true
		}
	}
	return wanted
}
