package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// SyncService defines what the watchlist handler needs from the service
// layer.
type SyncService interface {
	RefreshWatchlist(ctx context.Context, watchlistID string) (domain.RefreshSummary, error)
	GetWatchlist(ctx context.Context, id string) (domain.Watchlist, error)
	SetWatchlist(ctx context.Context, id string, symbols []string) (domain.Watchlist, error)
	ListRuns(ctx context.Context, opts domain.ListOpts) ([]domain.RefreshRun, error)
}

// WatchlistHandler serves watchlist and refresh endpoints.
type WatchlistHandler struct {
	sync   SyncService
	logger *slog.Logger
}

// NewWatchlistHandler creates a WatchlistHandler.
func NewWatchlistHandler(sync SyncService, logger *slog.Logger) *WatchlistHandler {
	return &WatchlistHandler{sync: sync, logger: logger}
}

// GetWatchlist returns one watchlist.
// GET /api/watchlists/{id}
func (h *WatchlistHandler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	wl, err := h.sync.GetWatchlist(r.Context(), pathParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get watchlist", err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

type putWatchlistRequest struct {
	Symbols []string `json:"symbols"`
}

// PutWatchlist replaces the symbols of a watchlist.
// PUT /api/watchlists/{id}
func (h *WatchlistHandler) PutWatchlist(w http.ResponseWriter, r *http.Request) {
	var body putWatchlistRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wl, err := h.sync.SetWatchlist(r.Context(), pathParam(r, "id"), body.Symbols)
	if err != nil {
		h.fail(w, r, "put watchlist", err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

// RefreshWatchlist runs a refresh and returns its summary. A refresh already
// running for the watchlist yields 202 with in_progress set.
// POST /api/watchlists/{id}/refresh
func (h *WatchlistHandler) RefreshWatchlist(w http.ResponseWriter, r *http.Request) {
	sum, err := h.sync.RefreshWatchlist(r.Context(), pathParam(r, "id"))
	if err != nil {
		h.fail(w, r, "refresh watchlist", err)
		return
	}
	status := http.StatusOK
	if sum.InProgress {
		status = http.StatusAccepted
	}
	writeJSON(w, status, sum)
}

// ListRuns returns recorded refreshes newest first.
// GET /api/refresh/runs?limit=50&since=2026-03-01T00:00:00Z
func (h *WatchlistHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	runs, err := h.sync.ListRuns(r.Context(), opts)
	if err != nil {
		h.fail(w, r, "list refresh runs", err)
		return
	}
	if runs == nil {
		runs = []domain.RefreshRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":   runs,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

func (h *WatchlistHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed", slog.String("error", err.Error()))
		writeError(w, status, op+" failed")
		return
	}
	writeError(w, status, err.Error())
}
