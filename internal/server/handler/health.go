package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// FeedStatus reports the live state of the WebSocket feed for health output.
type FeedStatus interface {
	Subscribers() int
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	feed    FeedStatus
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler reporting on the given feed.
func NewHealthHandler(feed FeedStatus, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{feed: feed, started: time.Now(), logger: logger}
}

// HealthCheck reports liveness along with uptime and the number of connected
// feed subscribers.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	subscribers := 0
	if h.feed != nil {
		subscribers = h.feed.Subscribers()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"uptime":      time.Since(h.started).Round(time.Second).String(),
		"subscribers": subscribers,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}
