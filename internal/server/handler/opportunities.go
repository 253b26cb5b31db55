package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// OpportunityHandler serves persisted opportunity queries.
type OpportunityHandler struct {
	store  domain.OpportunityStore
	logger *slog.Logger
}

// NewOpportunityHandler creates the handler. store may be nil when no
// persistence backend is configured; queries then answer 503.
func NewOpportunityHandler(store domain.OpportunityStore, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		store:  store,
		logger: logHandler(logger, "opportunities"),
	}
}

// ListRecent returns the most recent opportunities across all symbols.
// GET /api/opportunities/recent?limit=50
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "opportunity persistence is not configured")
		return
	}

	opps, err := h.store.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list recent failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": opps,
		"count":         len(opps),
	})
}

// ListBySymbol returns recent opportunities for one symbol.
// GET /api/opportunities/{symbol}?limit=50
func (h *OpportunityHandler) ListBySymbol(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "opportunity persistence is not configured")
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	opps, err := h.store.ListBySymbol(r.Context(), symbol, parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list by symbol failed", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":        symbol,
		"opportunities": opps,
		"count":         len(opps),
	})
}
