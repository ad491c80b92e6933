package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// StatusHandler serves the running mode and the defaults merged into scans.
type StatusHandler struct {
	mode      string
	providers []string
	defaults  domain.ScanRequest
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, providers []string, defaults domain.ScanRequest, startedAt time.Time) *StatusHandler {
	return &StatusHandler{mode: mode, providers: providers, defaults: defaults, startedAt: startedAt}
}

// GetStatus responds with the mode, provider order and scan defaults.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"providers":      h.providers,
		"scan_defaults":  h.defaults,
		"started_at":     h.startedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}
