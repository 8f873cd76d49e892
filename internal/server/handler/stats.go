package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

// StatsSource provides the current aggregate snapshot. Declared locally so
// the handler package does not depend on the concrete aggregator.
type StatsSource interface {
	Snapshot() domain.StatsSnapshot
}

// StatsHandler serves the aggregate-stats endpoint.
type StatsHandler struct {
	stats  StatsSource
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler over the given source.
func NewStatsHandler(stats StatsSource, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		stats:  stats,
		logger: logHandler(logger, "stats"),
	}
}

// GetStats returns the current aggregate totals in the same shape the
// WebSocket feed uses for STATS messages.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Snapshot().Message())
}
