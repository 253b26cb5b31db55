package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
	"github.com/agustinrios/cedearscan/internal/engine"
)

// scanTimeout bounds one on-demand scan; slow upstreams must not pin the
// request handler forever.
const scanTimeout = 2 * time.Minute

// ScanHandler triggers on-demand evaluations.
type ScanHandler struct {
	engine  *engine.Engine
	catalog domain.Catalog
	access  func() domain.Access
	logger  *slog.Logger
}

// NewScanHandler creates the handler. access supplies the current broker
// capability per request so a refreshed session is picked up without restart.
func NewScanHandler(eng *engine.Engine, catalog domain.Catalog, access func() domain.Access, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{
		engine:  eng,
		catalog: catalog,
		access:  access,
		logger:  logHandler(logger, "scan"),
	}
}

// scanRequest is the optional POST body. With no symbols, the whole catalog
// is scanned.
type scanRequest struct {
	Symbols []string `json:"symbols"`
}

// TriggerScan evaluates the requested symbols (or the full catalog) and
// returns the batch result synchronously.
// POST /api/scan
func (h *ScanHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	symbols := make([]string, 0, len(req.Symbols))
	for _, s := range req.Symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		symbols = h.catalog.Symbols()
	}

	ctx, cancel := context.WithTimeout(r.Context(), scanTimeout)
	defer cancel()

	h.logger.InfoContext(ctx, "scan triggered", "symbols", len(symbols))
	result := h.engine.EvaluateBatch(ctx, symbols, h.access())

	failures := make(map[string]string, len(result.Failures))
	for symbol, err := range result.Failures {
		failures[symbol] = err.Error()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ran_at":        result.RanAt.UTC(),
		"evaluated":     result.Evaluated,
		"opportunities": result.Opportunities,
		"failures":      failures,
	})
}
