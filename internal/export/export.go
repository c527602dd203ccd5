// Package export renders ranked reorder recommendations as CSV or XLSX
// reports.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheetName = "Reorder"
)

var header = []string{
	"organization", "location", "item",
	"closing_stock", "lead_time_days", "avg_daily_usage", "days_left",
	"reorder_qty", "reorder_qty_with_safety", "urgency_level",
	"priority_score", "criticality", "weighted_priority_score",
	"ordered", "last_updated",
}

func cells(r domain.RankedRecommendation) []any {
	return []any{
		r.Organization, r.Location, r.Item,
		r.ClosingStock, r.LeadTimeDays, r.AvgDailyUsage, r.DaysLeft,
		r.ReorderQty, r.ReorderQtyWithSafety, string(r.UrgencyLevel),
		r.PriorityScore, r.Criticality, r.WeightedPriorityScore,
		r.Ordered, r.LastUpdated.Format(domain.DateLayout),
	}
}

func WriteCSV(w io.Writer, rows []domain.RankedRecommendation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(header))
	for _, r := range rows {
		for i, v := range cells(r) {
			record[i] = formatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", r.GroupKey, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// WriteXLSX writes a single-sheet workbook with a bold, filterable header.
func WriteXLSX(w io.Writer, rows []domain.RankedRecommendation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := cells(r)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %s: %w", r.GroupKey, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", style); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	lastCell := fmt.Sprintf("%s%d", lastCol, len(rows)+1)
	if err := f.AutoFilter(sheetName, "A1:"+lastCell, nil); err != nil {
		return fmt.Errorf("add filter: %w", err)
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
