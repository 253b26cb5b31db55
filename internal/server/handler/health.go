package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	catalog   domain.Catalog
	access    func() domain.Access
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(catalog domain.Catalog, access func() domain.Access, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		catalog:   catalog,
		access:    access,
		startedAt: time.Now().UTC(),
		logger:    logHandler(logger, "health"),
	}
}

// HealthCheck reports liveness plus catalog size and broker-session state.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	_, authenticated := domain.SessionFrom(h.access())

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"symbols":        len(h.catalog.Symbols()),
		"broker_session": authenticated,
	})
}
