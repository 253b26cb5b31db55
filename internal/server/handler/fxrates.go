package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// FXRateHandler serves FX-rate history queries.
type FXRateHandler struct {
	store  domain.FXRateHistoryStore
	logger *slog.Logger
}

// NewFXRateHandler creates the handler. store may be nil when no persistence
// backend is configured.
func NewFXRateHandler(store domain.FXRateHistoryStore, logger *slog.Logger) *FXRateHandler {
	return &FXRateHandler{
		store:  store,
		logger: logHandler(logger, "fxrates"),
	}
}

// ListRange returns rate observations for one kind over a time range.
// GET /api/fxrates?kind=ccl&from=2026-08-01T00:00:00Z&to=2026-08-31T00:00:00Z
func (h *FXRateHandler) ListRange(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "fx rate persistence is not configured")
		return
	}

	q := r.URL.Query()
	kind := q.Get("kind")
	if kind == "" {
		kind = "ccl"
	}

	to := time.Now().UTC()
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be RFC 3339")
			return
		}
		to = t
	}

	from := to.Add(-24 * time.Hour)
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC 3339")
			return
		}
		from = t
	}
	if !from.Before(to) {
		writeError(w, http.StatusBadRequest, "from must precede to")
		return
	}

	rates, err := h.store.ListRange(r.Context(), kind, from, to)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list range failed", "kind", kind, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list fx rates")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"kind":  kind,
		"from":  from,
		"to":    to,
		"rates": rates,
		"count": len(rates),
	})
}
