// Package ingest loads daily ledger movements from CSV and XLSX sheets
// into the ledger store.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/xuri/excelize/v2"
)

var (
	ErrMissingColumn = errors.New("ingest: missing required column")
	ErrEmptySheet    = errors.New("ingest: sheet has no header row")
)

// maxReportedRows caps how many bad rows a single error carries.
const maxReportedRows = 20

// RowError reports a row that could not be parsed. Row is 1-based and
// counts the header, so it matches what a spreadsheet shows.
type RowError struct {
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

type column struct {
	name    string
	aliases []string
}

var ledgerColumns = []column{
	{"date", []string{"date", "ledger_date", "stock_date"}},
	{"organization", []string{"organization", "organisation", "org", "hospital"}},
	{"location", []string{"location", "loc", "store", "ward"}},
	{"item", []string{"item", "item_name", "sku", "product"}},
	{"opening_stock", []string{"opening_stock", "opening"}},
	{"received", []string{"received", "receipts"}},
	{"issued", []string{"issued", "issues", "usage"}},
	{"closing_stock", []string{"closing_stock", "closing", "stock"}},
	{"lead_time_days", []string{"lead_time_days", "lead_time"}},
}

var dateLayouts = []string{
	domain.DateLayout,
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01-02-06",
	"1/2/06",
}

// rowSource yields raw rows and returns io.EOF after the last one.
type rowSource interface {
	Next() ([]string, error)
}

type csvSource struct{ r *csv.Reader }

func (s csvSource) Next() ([]string, error) { return s.r.Read() }

type xlsxSource struct{ rows *excelize.Rows }

func (s xlsxSource) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return s.rows.Columns()
}

// ReadCSV parses a ledger CSV with a header row.
func ReadCSV(r io.Reader) ([]domain.LedgerRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return decode(csvSource{r: reader})
}

// ReadXLSX parses the first sheet of a workbook.
func ReadXLSX(r io.Reader) ([]domain.LedgerRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	defer rows.Close()

	return decode(xlsxSource{rows: rows})
}

func decode(src rowSource) ([]domain.LedgerRecord, error) {
	header, err := src.Next()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptySheet
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var (
		records []domain.LedgerRecord
		rowErrs []error
		bad     int
	)
	for row := 2; ; row++ {
		fields, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &RowError{Row: row, Err: err}
		}
		if blank(fields) {
			continue
		}

		rec, err := parseRow(fields, index)
		if err != nil {
			bad++
			if len(rowErrs) < maxReportedRows {
				var rowErr *RowError
				if errors.As(err, &rowErr) {
					rowErr.Row = row
				}
				rowErrs = append(rowErrs, err)
			}
			continue
		}
		if rec.ClosingStock < 0 {
			log.Warn().
				Int("row", row).
				Str("group", rec.Key().String()).
				Int64("closing_stock", rec.ClosingStock).
				Msg("negative closing stock")
		}
		records = append(records, rec)
	}

	if bad > 0 {
		if bad > len(rowErrs) {
			rowErrs = append(rowErrs, fmt.Errorf("%d more rows failed", bad-len(rowErrs)))
		}
		return nil, fmt.Errorf("ingest: %d rows failed to parse: %w", bad, errors.Join(rowErrs...))
	}
	return records, nil
}

func normalizeColumnName(name string) string {
	name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
	name = strings.NewReplacer(" ", "_", "-", "_", ".", "").Replace(name)
	return name
}

func mapHeader(header []string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeColumnName(h)
		if _, seen := positions[key]; !seen {
			positions[key] = i
		}
	}

	index := make(map[string]int, len(ledgerColumns))
	var missing []string
	for _, col := range ledgerColumns {
		found := false
		for _, alias := range col.aliases {
			if idx, ok := positions[alias]; ok {
				index[col.name] = idx
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, col.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return index, nil
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseRow(fields []string, index map[string]int) (domain.LedgerRecord, error) {
	get := func(name string) string {
		if idx := index[name]; idx < len(fields) {
			return strings.TrimSpace(fields[idx])
		}
		return ""
	}

	var rec domain.LedgerRecord
	date, err := parseDate(get("date"))
	if err != nil {
		return rec, &RowError{Column: "date", Err: err}
	}
	rec.Date = date

	for _, col := range []struct {
		name string
		dst  *string
	}{
		{"organization", &rec.Organization},
		{"location", &rec.Location},
		{"item", &rec.Item},
	} {
		v := get(col.name)
		if v == "" {
			return rec, &RowError{Column: col.name, Err: errors.New("value is required")}
		}
		*col.dst = v
	}

	for _, col := range []struct {
		name string
		dst  *int64
	}{
		{"opening_stock", &rec.OpeningStock},
		{"received", &rec.Received},
		{"issued", &rec.Issued},
		{"closing_stock", &rec.ClosingStock},
	} {
		n, err := parseQuantity(get(col.name))
		if err != nil {
			return rec, &RowError{Column: col.name, Err: err}
		}
		*col.dst = n
	}

	lead, err := parseQuantity(get("lead_time_days"))
	if err != nil {
		return rec, &RowError{Column: "lead_time_days", Err: err}
	}
	if lead < 0 {
		return rec, &RowError{Column: "lead_time_days", Err: fmt.Errorf("negative lead time %d", lead)}
	}
	rec.LeadTimeDays = int(lead)

	return rec, nil
}

// parseQuantity accepts integers and whole floats such as "12.0", which
// spreadsheets commonly emit. Empty cells count as zero.
func parseQuantity(raw string) (int64, error) {
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not a whole number", raw)
	}
	return int64(f), nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("value is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return domain.Day(t), nil
		}
	}
	// raw spreadsheet serial
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return domain.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}
