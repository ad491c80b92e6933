package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/optionscan/internal/domain"
	"github.com/alanyoungcy/optionscan/internal/export"
	"github.com/alanyoungcy/optionscan/internal/pipeline"
)

// Scanner runs one scan through the shared worker pool.
type Scanner interface {
	Run(ctx context.Context, req domain.ScanRequest, job pipeline.Job) (domain.ScanResult, error)
}

// ScanService is the interactive entry point: scans, stored-result queries
// and exports.
type ScanService struct {
	scanner      Scanner
	store        domain.OpportunityStore
	blobs        domain.BlobWriter
	exports      domain.BlobReader
	exportPrefix string
	defaults     domain.ScanRequest
	logger       *slog.Logger
	now          func() time.Time
}

// NewScanService creates a ScanService. blobs and exports may be nil when
// no object store is configured.
func NewScanService(
	scanner Scanner,
	store domain.OpportunityStore,
	blobs domain.BlobWriter,
	exports domain.BlobReader,
	exportPrefix string,
	defaults domain.ScanRequest,
	logger *slog.Logger,
) *ScanService {
	return &ScanService{
		scanner:      scanner,
		store:        store,
		blobs:        blobs,
		exports:      exports,
		exportPrefix: strings.Trim(exportPrefix, "/"),
		defaults:     defaults,
		logger:       logger.With(slog.String("component", "scan_service")),
		now:          time.Now,
	}
}

// Defaults returns the request values applied to omitted fields.
func (s *ScanService) Defaults() domain.ScanRequest {
	return s.defaults
}

// Scan fills omitted fields from the defaults, validates the request and
// returns the ranked best-effort result.
func (s *ScanService) Scan(ctx context.Context, req domain.ScanRequest) (domain.ScanResult, error) {
	req, err := domain.NewScanRequest(WithDefaults(req, s.defaults))
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("scan_service: scan: %w", err)
	}

	res, err := s.scanner.Run(ctx, req, pipeline.Job{Trigger: pipeline.TriggerUser, Sink: pipeline.SinkStoreAndReturn})
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("scan_service: scan: %w", err)
	}
	return res, nil
}

// QueryStored reads the persistent tier without scanning.
func (s *ScanService) QueryStored(ctx context.Context, f domain.OpportunityFilter) ([]domain.StoredOpportunity, error) {
	opps, err := s.store.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("scan_service: query stored: %w", err)
	}
	return opps, nil
}

// ExportCSV writes the stored opportunities matching f to w and returns how
// many rows were written.
func (s *ScanService) ExportCSV(ctx context.Context, w io.Writer, f domain.OpportunityFilter) (int, error) {
	opps, err := s.QueryStored(ctx, f)
	if err != nil {
		return 0, err
	}
	if err := export.WriteStored(w, opps); err != nil {
		return 0, fmt.Errorf("scan_service: export csv: %w", err)
	}
	return len(opps), nil
}

// ExportToBlob uploads the CSV of stored opportunities matching f and
// returns the object path.
func (s *ScanService) ExportToBlob(ctx context.Context, f domain.OpportunityFilter) (string, int, error) {
	if s.blobs == nil {
		return "", 0, fmt.Errorf("scan_service: export to blob: no object store configured")
	}

	var buf bytes.Buffer
	n, err := s.ExportCSV(ctx, &buf, f)
	if err != nil {
		return "", 0, err
	}

	path := fmt.Sprintf("opportunities-%s.csv", s.now().UTC().Format("20060102T150405Z"))
	if s.exportPrefix != "" {
		path = s.exportPrefix + "/" + path
	}
	if err := s.blobs.Put(ctx, path, &buf, export.ContentType); err != nil {
		return "", 0, fmt.Errorf("scan_service: export to blob: %w", err)
	}

	s.logger.InfoContext(ctx, "exported opportunities",
		slog.String("path", path),
		slog.Int("rows", n),
	)
	return path, n, nil
}

// ListExports returns uploaded exports, newest first.
func (s *ScanService) ListExports(ctx context.Context) ([]domain.BlobInfo, error) {
	if s.exports == nil {
		return nil, nil
	}
	prefix := ""
	if s.exportPrefix != "" {
		prefix = s.exportPrefix + "/"
	}
	infos, err := s.exports.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan_service: list exports: %w", err)
	}
	return infos, nil
}

// WithDefaults fills the fields of req whose zero value is not usable.
// Volume and open interest minimums are taken as given. A call scan without
// a delta range mirrors the default put range.
func WithDefaults(req, def domain.ScanRequest) domain.ScanRequest {
	if len(req.TargetDTEs) == 0 {
		req.TargetDTEs = append([]int(nil), def.TargetDTEs...)
	}
	if req.OptionType == "" {
		req.OptionType = def.OptionType
	}
	if req.DeltaRange == (domain.DeltaRange{}) {
		req.DeltaRange = def.DeltaRange
		if req.OptionType == domain.OptionCall && def.DeltaRange.Max <= 0 {
			req.DeltaRange = domain.DeltaRange{Min: -def.DeltaRange.Max, Max: -def.DeltaRange.Min}
		}
	}
	if req.MaxBidAskSpreadPct == 0 {
		req.MaxBidAskSpreadPct = def.MaxBidAskSpreadPct
	}
	if req.MaxStockPrice == nil {
		req.MaxStockPrice = def.MaxStockPrice
	}
	if req.MinPremiumPct == nil {
		req.MinPremiumPct = def.MinPremiumPct
	}
	if req.Limit == 0 {
		req.Limit = def.Limit
	}
	return req
}
