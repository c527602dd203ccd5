package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/xuri/excelize/v2"
)

func sampleRows() []domain.RankedRecommendation {
	return []domain.RankedRecommendation{
		{
			ReorderRecommendation: domain.ReorderRecommendation{
				GroupKey:             domain.GroupKey{Organization: "City Hospital", Location: "Emergency Unit", Item: "Insulin"},
				ClosingStock:         15,
				LeadTimeDays:         10,
				AvgDailyUsage:        20,
				DaysLeft:             0.75,
				ReorderQty:           185,
				ReorderQtyWithSafety: 785,
				UrgencyLevel:         domain.UrgencyCritical,
				PriorityScore:        42.5,
				LastUpdated:          time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
			},
			Criticality:           10,
			WeightedPriorityScore: 52.5,
			Ordered:               true,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRows()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, header, records[0])
	assert.Equal(t, []string{
		"City Hospital", "Emergency Unit", "Insulin",
		"15", "10", "20", "0.75",
		"185", "785", "CRITICAL",
		"42.5", "10", "52.5",
		"true", "2024-03-07",
	}, records[1])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRows()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "organization", rows[0][0])
	assert.Equal(t, "Insulin", rows[1][2])
	assert.Equal(t, "185", rows[1][7])
	assert.Equal(t, "CRITICAL", rows[1][9])
}
