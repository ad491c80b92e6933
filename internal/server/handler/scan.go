package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// ScanService defines what the scan handler needs from the service layer.
type ScanService interface {
	Scan(ctx context.Context, req domain.ScanRequest) (domain.ScanResult, error)
	QueryStored(ctx context.Context, f domain.OpportunityFilter) ([]domain.StoredOpportunity, error)
	ExportCSV(ctx context.Context, w io.Writer, f domain.OpportunityFilter) (int, error)
	ExportToBlob(ctx context.Context, f domain.OpportunityFilter) (string, int, error)
	ListExports(ctx context.Context) ([]domain.BlobInfo, error)
}

// ScanHandler serves scan, query and export endpoints.
type ScanHandler struct {
	scans  ScanService
	logger *slog.Logger
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(scans ScanService, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{scans: scans, logger: logger}
}

// Scan runs an interactive scan. Omitted request fields take the server's
// defaults. A partially failed scan still answers 200 with failure counts.
// POST /api/scan
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req domain.ScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.scans.Scan(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: scan failed", slog.String("error", err.Error()))
			writeError(w, status, "scan failed")
			return
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type listOpportunitiesResponse struct {
	Opportunities []domain.StoredOpportunity `json:"opportunities"`
	Count         int                        `json:"count"`
	Limit         int                        `json:"limit"`
	Offset        int                        `json:"offset"`
}

// ListOpportunities reads stored opportunities without scanning.
// GET /api/opportunities?symbols=ABC,XYZ&min_score=50&include_stale=true
func (h *ScanHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opps, err := h.scans.QueryStored(r.Context(), f)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	if opps == nil {
		opps = []domain.StoredOpportunity{}
	}
	writeJSON(w, http.StatusOK, listOpportunitiesResponse{
		Opportunities: opps,
		Count:         len(opps),
		Limit:         f.Limit,
		Offset:        f.Offset,
	})
}

// ExportOpportunities streams stored opportunities as CSV, or uploads them
// to the object store when upload=true.
// GET /api/opportunities/export
func (h *ScanHandler) ExportOpportunities(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if upload, _ := strconv.ParseBool(r.URL.Query().Get("upload")); upload {
		path, n, err := h.scans.ExportToBlob(r.Context(), f)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: export upload failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "export upload failed")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"path": path, "rows": n})
		return
	}

	name := "opportunities-" + time.Now().UTC().Format("20060102T150405Z") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := h.scans.ExportCSV(r.Context(), w, f); err != nil {
		// Headers are already sent; the truncated body is the only signal.
		h.logger.ErrorContext(r.Context(), "handler: export csv failed", slog.String("error", err.Error()))
	}
}

// ListExports lists uploaded exports.
// GET /api/exports
func (h *ScanHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	infos, err := h.scans.ListExports(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list exports failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list exports")
		return
	}
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": infos})
}
