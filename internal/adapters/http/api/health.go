package api

import (
	"net/http"

	service "github.com/okian/admit/internal/app"
)

// HealthProvider reports oracle availability.
type HealthProvider interface {
	Health() service.Health
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	provider HealthProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(provider HealthProvider) *HealthHandler {
	return &HealthHandler{provider: provider}
}

// HandleHealth handles GET /healthz. A degraded service still answers 200 so
// that liveness probes keep it running; a stopped one answers 503.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	health := h.provider.Health()
	code := http.StatusOK
	if health.Status == service.StatusStopped {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}
