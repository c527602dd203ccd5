package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/changelog"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"
)

// Result summarizes one ingested batch.
type Result struct {
	Source     string `json:"source"`
	Read       int    `json:"read"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
}

// Ingestor appends parsed records to the ledger and announces new rows on
// the ledger change log. Re-ingesting a file is harmless: records already
// present are skipped and no change is announced.
type Ingestor struct {
	ledger repository.LedgerRepository
	log    *changelog.Log
}

func NewIngestor(ledger repository.LedgerRepository, log *changelog.Log) *Ingestor {
	return &Ingestor{ledger: ledger, log: log}
}

func (i *Ingestor) IngestRecords(ctx context.Context, source string, records []domain.LedgerRecord) (Result, error) {
	res := Result{Source: source, Read: len(records)}
	if len(records) == 0 {
		return res, nil
	}

	start := time.Now()
	inserted, err := i.ledger.Append(ctx, records)
	if err != nil {
		return res, fmt.Errorf("append ledger records from %s: %w", source, err)
	}
	res.Inserted = inserted
	res.Duplicates = len(records) - inserted

	if inserted > 0 && i.log != nil {
		i.log.Append(source, inserted)
	}

	log.Info().
		Str("source", source).
		Int("read", res.Read).
		Int("inserted", res.Inserted).
		Int("duplicates", res.Duplicates).
		Dur("elapsed", time.Since(start)).
		Msg("ledger batch ingested")
	return res, nil
}

// IngestReader parses r according to the extension of name.
func (i *Ingestor) IngestReader(ctx context.Context, name string, r io.Reader) (Result, error) {
	var (
		records []domain.LedgerRecord
		err     error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		records, err = ReadCSV(r)
	case ".xlsx":
		records, err = ReadXLSX(r)
	default:
		return Result{Source: name}, fmt.Errorf("ingest: unsupported file type %q", filepath.Ext(name))
	}
	if err != nil {
		return Result{Source: name}, fmt.Errorf("parse %s: %w", name, err)
	}
	return i.IngestRecords(ctx, name, records)
}

func (i *Ingestor) IngestFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{Source: path}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return i.IngestReader(ctx, filepath.Base(path), f)
}

// Supported reports whether a file name has an ingestible extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}
