package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/changelog"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository/memory"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/storage"
	"github.com/xuri/excelize/v2"
)

const ledgerCSV = `Date, Organization, Location, Item, Opening Stock, Received, Issued, Closing Stock, Lead Time Days
2024-03-01,City Hospital,Ward A,Insulin,40,0,10,30,10
2024-03-02,City Hospital,Ward A,Insulin,30,0,15.0,15,10

2024-03-02,City Hospital,Pharmacy,Rice,500,0,10,490,7
`

func TestReadCSVNormalizesHeaders(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(ledgerCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "City Hospital", first.Organization)
	assert.Equal(t, "Ward A", first.Location)
	assert.Equal(t, "Insulin", first.Item)
	assert.Equal(t, int64(30), first.ClosingStock)
	assert.Equal(t, 10, first.LeadTimeDays)

	assert.Equal(t, int64(15), records[1].Issued)
}

func TestReadCSVMissingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("date,organization,location,item\n2024-03-01,a,b,c\n"))
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "closing_stock")
	assert.Contains(t, err.Error(), "lead_time_days")
}

func TestReadCSVReportsRowNumbers(t *testing.T) {
	input := "date,organization,location,item,opening_stock,received,issued,closing_stock,lead_time_days\n" +
		"2024-03-01,a,b,c,1,0,1,0,3\n" +
		"yesterday,a,b,c,1,0,1,0,3\n" +
		"2024-03-03,a,b,,1,0,1,0,3\n" +
		"2024-03-04,a,b,c,1,0,1.5,0,3\n"

	_, err := ReadCSV(strings.NewReader(input))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "3 rows failed")
	assert.Contains(t, msg, "row 3, column date")
	assert.Contains(t, msg, "row 4, column item")
	assert.Contains(t, msg, "row 5, column issued")
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptySheet)
}

func TestParseQuantityAndDate(t *testing.T) {
	n, err := parseQuantity("1,200")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), n)

	n, err = parseQuantity("")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = parseQuantity("ten")
	assert.Error(t, err)

	d, err := parseDate("2024/03/05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDate("2024-03-05T18:30:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d)
}

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestReadXLSXFirstSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	writeWorkbook(t, path, [][]any{
		{"date", "organization", "location", "item", "opening_stock", "received", "issued", "closing_stock", "lead_time_days"},
		{"2024-03-01", "City Hospital", "Ward A", "Insulin", 40, 0, 10, 30, 10},
	})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := ReadXLSX(f)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Insulin", records[0].Item)
	assert.Equal(t, int64(10), records[0].Issued)
}

func TestIngestAnnouncesOnlyNewRows(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedgerRepository()
	log := changelog.New("ledger")
	log.Register("stock_analytics")
	ing := NewIngestor(ledger, log)

	res, err := ing.IngestReader(ctx, "march.csv", strings.NewReader(ledgerCSV))
	require.NoError(t, err)
	assert.Equal(t, Result{Source: "march.csv", Read: 3, Inserted: 3}, res)
	assert.Equal(t, uint64(1), log.Head())

	res, err = ing.IngestReader(ctx, "march.csv", strings.NewReader(ledgerCSV))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 3, res.Duplicates)
	assert.Equal(t, uint64(1), log.Head(), "duplicates must not signal a change")

	count, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIngestRejectsUnknownExtension(t *testing.T) {
	ing := NewIngestor(memory.NewLedgerRepository(), nil)
	_, err := ing.IngestReader(context.Background(), "ledger.json", strings.NewReader("{}"))
	assert.Error(t, err)
}

func TestObjectLoaderImportsSheets(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewDirStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.UploadObject(ctx, "inbox/2024-03.csv", []byte(ledgerCSV), "text/csv"))
	require.NoError(t, store.UploadObject(ctx, "inbox/readme.txt", []byte("skip me"), "text/plain"))

	ledger := memory.NewLedgerRepository()
	loader := NewObjectLoader(store, NewIngestor(ledger, changelog.New("ledger")), t.TempDir())

	results, err := loader.Load(ctx, "inbox/")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "inbox/2024-03.csv", results[0].Source)
	assert.Equal(t, 3, results[0].Inserted)
}
