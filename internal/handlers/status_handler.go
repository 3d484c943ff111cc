package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/services/warmer"
)

// SourceLister reports the configured providers in priority order.
type SourceLister interface {
	Sources() []string
}

// WarmerReporter reports the cache warmer's schedule and last pass.
type WarmerReporter interface {
	Status() warmer.Status
}

// StatusHandler handles HTTP requests for application health
type StatusHandler struct {
	sources SourceLister
	warmer  WarmerReporter
	logger  arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler. warmer may be nil.
func NewStatusHandler(sources SourceLister, warmer WarmerReporter, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{sources: sources, warmer: warmer, logger: logger}
}

// HealthHandler handles GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "ok",
		"version": common.VersionInfo(),
		"sources": h.sources.Sources(),
	}
	if h.warmer != nil {
		body["warmer"] = h.warmer.Status()
	}
	WriteJSON(w, http.StatusOK, body)
}
