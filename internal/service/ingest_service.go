package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/ingest"
)

var (
	ErrInvalidBatch   = errors.New("service: invalid ledger batch")
	ErrImportDisabled = errors.New("service: object import is not configured")
)

type IngestService struct {
	ingestor *ingest.Ingestor
	loader   *ingest.ObjectLoader
	prefix   string
}

// NewIngestService wires ingestion. loader may be nil when no object
// store is configured.
func NewIngestService(ingestor *ingest.Ingestor, loader *ingest.ObjectLoader, prefix string) *IngestService {
	return &IngestService{ingestor: ingestor, loader: loader, prefix: prefix}
}

// IngestBatch appends already validated records. Only identity and the
// calendar date are checked here.
func (s *IngestService) IngestBatch(ctx context.Context, source string, records []domain.LedgerRecord) (ingest.Result, error) {
	if len(records) == 0 {
		return ingest.Result{Source: source}, fmt.Errorf("%w: no records", ErrInvalidBatch)
	}
	for i := range records {
		r := &records[i]
		r.Organization = strings.TrimSpace(r.Organization)
		r.Location = strings.TrimSpace(r.Location)
		r.Item = strings.TrimSpace(r.Item)
		if r.Organization == "" || r.Location == "" || r.Item == "" {
			return ingest.Result{Source: source}, fmt.Errorf("%w: record %d is missing organization, location or item", ErrInvalidBatch, i)
		}
		if r.Date.IsZero() {
			return ingest.Result{Source: source}, fmt.Errorf("%w: record %d has no date", ErrInvalidBatch, i)
		}
		if r.LeadTimeDays < 0 {
			return ingest.Result{Source: source}, fmt.Errorf("%w: record %d has a negative lead time", ErrInvalidBatch, i)
		}
		r.Date = domain.Day(r.Date)
	}
	if source == "" {
		source = "api"
	}
	return s.ingestor.IngestRecords(ctx, source, records)
}

// IngestFile parses an uploaded CSV or XLSX sheet.
func (s *IngestService) IngestFile(ctx context.Context, name string, r io.Reader) (ingest.Result, error) {
	if !ingest.Supported(name) {
		return ingest.Result{Source: name}, fmt.Errorf("%w: unsupported file %q", ErrInvalidBatch, name)
	}
	res, err := s.ingestor.IngestReader(ctx, name, r)
	if err != nil {
		var rowErr *ingest.RowError
		if errors.Is(err, ingest.ErrMissingColumn) || errors.Is(err, ingest.ErrEmptySheet) || errors.As(err, &rowErr) {
			return res, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
		}
		return res, err
	}
	return res, nil
}

// ImportObjects ingests every sheet under prefix, or the configured
// prefix when empty.
func (s *IngestService) ImportObjects(ctx context.Context, prefix string) ([]ingest.Result, error) {
	if s.loader == nil {
		return nil, ErrImportDisabled
	}
	if prefix == "" {
		prefix = s.prefix
	}
	return s.loader.Load(ctx, prefix)
}
