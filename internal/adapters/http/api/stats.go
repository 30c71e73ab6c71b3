package api

import (
	"net/http"
)

// StatsProvider reports advisor counters, catalog cache ages and the shape of
// the loaded oracles.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the advisor snapshot.
type StatsHandler struct {
	advisor StatsProvider
}

// NewStatsHandler wraps the advisor's stats for GET /stats.
func NewStatsHandler(advisor StatsProvider) *StatsHandler {
	return &StatsHandler{advisor: advisor}
}

// HandleStats writes a snapshot taken at request time.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.advisor.GetStats())
}
