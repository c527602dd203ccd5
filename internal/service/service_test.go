package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/analytics"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/changelog"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/ingest"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/pipeline"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository/memory"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/snapshot"
)

var (
	today    = time.Date(2024, 3, 8, 9, 30, 0, 0, time.UTC)
	insulin  = domain.GroupKey{Organization: "City Hospital", Location: "Emergency Unit", Item: "Insulin"}
	bandages = domain.GroupKey{Organization: "City Hospital", Location: "Ward B", Item: "Bandages"}
	rice     = domain.GroupKey{Organization: "Rural Clinic", Location: "Store", Item: "Rice"}
)

func fixedClock() time.Time { return today }

type fixture struct {
	repos     *repository.Repositories
	snapshots *snapshot.Store
	cache     *countingCache
	query     *QueryService
	actions   *ActionService
	published []domain.OrderEvent
}

func (f *fixture) PublishOrderPlaced(_ context.Context, order domain.OrderEvent) error {
	f.published = append(f.published, order)
	return nil
}

// countingCache is a map-backed stand-in for the redis query cache.
type countingCache struct {
	mu          sync.Mutex
	entries     map[string]any
	hits        int
	invalidated int
}

func newCountingCache() *countingCache { return &countingCache{entries: make(map[string]any)} }

func (c *countingCache) key(view string, version uint64, filter domain.AnalyticsFilter) string {
	return fmt.Sprintf("%s|%d|%+v", view, version, filter)
}

func (c *countingCache) Get(_ context.Context, view string, version uint64, filter domain.AnalyticsFilter, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[c.key(view, version, filter)]
	if !ok {
		return false, nil
	}
	c.hits++
	switch d := dest.(type) {
	case *Page[domain.StockAnalytics]:
		*d = *v.(*Page[domain.StockAnalytics])
	case *Page[domain.RankedRecommendation]:
		*d = *v.(*Page[domain.RankedRecommendation])
	case *Page[domain.UsageStats]:
		*d = *v.(*Page[domain.UsageStats])
	}
	return true, nil
}

func (c *countingCache) Set(_ context.Context, view string, version uint64, filter domain.AnalyticsFilter, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(view, version, filter)] = value
	return nil
}

func (c *countingCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]any)
	c.invalidated++
	return nil
}

func analyticsRow(key domain.GroupKey, closing int64, lead int, avg float64) domain.StockAnalytics {
	days := analytics.DaysLeft(closing, avg)
	return domain.StockAnalytics{
		GroupKey:      key,
		ClosingStock:  closing,
		LeadTimeDays:  lead,
		AvgDailyUsage: avg,
		DaysLeft:      days,
		RiskStatus:    analytics.Risk(days, lead),
		RecordCount:   7,
		LastUpdated:   domain.Day(today),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repos:     memory.NewRepositories(),
		snapshots: snapshot.NewStore(),
		cache:     newCountingCache(),
	}

	rows := []domain.StockAnalytics{
		analyticsRow(insulin, 15, 10, 20),
		analyticsRow(bandages, 100, 5, 30),
		analyticsRow(rice, 500, 7, 10),
	}
	f.snapshots.PublishStockAnalytics(rows, today)

	calc := analytics.NewReorderCalculator()
	var recs []domain.ReorderRecommendation
	for _, r := range rows {
		if rec, ok := calc.Compute(r); ok {
			recs = append(recs, rec)
		}
	}
	f.snapshots.PublishReorderRecommendations(recs, today)

	f.query = NewQueryService(f.snapshots, f.repos, nil, f.cache).WithClock(fixedClock)
	f.actions = NewActionService(f.repos, f.snapshots, f, f.cache).WithClock(fixedClock)
	return f
}

func TestStockAnalyticsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.query.StockAnalytics(ctx, domain.AnalyticsFilter{RiskStatus: domain.RiskHigh})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, insulin, page.Rows[0].GroupKey)

	page, err = f.query.StockAnalytics(ctx, domain.AnalyticsFilter{Organizations: []string{"City Hospital"}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Rows, 1)
}

func TestStockAnalyticsCachedPerVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.query.StockAnalytics(ctx, domain.AnalyticsFilter{})
	require.NoError(t, err)
	_, err = f.query.StockAnalytics(ctx, domain.AnalyticsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)

	f.snapshots.PublishStockAnalytics([]domain.StockAnalytics{analyticsRow(rice, 1, 7, 10)}, today)
	page, err := f.query.StockAnalytics(ctx, domain.AnalyticsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits, "a new version must miss")
	assert.Equal(t, 1, page.Total)
}

func TestReorderRanksAndAnnotatesOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.query.Reorder(ctx, domain.AnalyticsFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total, "rice needs no order")

	top := page.Rows[0]
	assert.Equal(t, insulin, top.GroupKey)
	assert.Equal(t, int64(185), top.ReorderQty)
	assert.Equal(t, 10, top.Criticality)
	assert.Equal(t, top.PriorityScore+10, top.WeightedPriorityScore)
	assert.False(t, top.Ordered)

	_, err = f.actions.PlaceOrder(ctx, OrderRequest{
		Organization: insulin.Organization,
		Location:     insulin.Location,
		Item:         insulin.Item,
		Quantity:     185,
		OrderedBy:    "pharmacist",
	})
	require.NoError(t, err)

	page, err = f.query.Reorder(ctx, domain.AnalyticsFilter{})
	require.NoError(t, err)
	assert.True(t, page.Rows[0].Ordered)

	page, err = f.query.Reorder(ctx, domain.AnalyticsFilter{ExcludeOrdered: true})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, bandages, page.Rows[0].GroupKey)
}

func TestReorderOrderedFlagResetsAtMidnight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.actions.PlaceOrder(ctx, OrderRequest{Organization: insulin.Organization, Location: insulin.Location, Item: insulin.Item, Quantity: 185})
	require.NoError(t, err)

	now := today
	query := NewQueryService(f.snapshots, f.repos, nil, f.cache).WithClock(func() time.Time { return now })
	page, err := query.Reorder(ctx, domain.AnalyticsFilter{})
	require.NoError(t, err)
	require.Equal(t, insulin, page.Rows[0].GroupKey)
	assert.True(t, page.Rows[0].Ordered)

	_, err = query.Reorder(ctx, domain.AnalyticsFilter{})
	require.NoError(t, err)
	hits := f.cache.hits
	assert.Equal(t, 1, hits)

	// same snapshot version, next calendar day
	now = domain.Day(today).AddDate(0, 0, 1).Add(time.Minute)
	page, err = query.Reorder(ctx, domain.AnalyticsFilter{})
	require.NoError(t, err)
	assert.Equal(t, hits, f.cache.hits)
	require.Equal(t, insulin, page.Rows[0].GroupKey)
	assert.False(t, page.Rows[0].Ordered)
}

func TestTopActionsExplainsAndSkipsOrdered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rows, err := f.query.TopActions(ctx, domain.AnalyticsFilter{}, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, insulin, rows[0].GroupKey)
	assert.Contains(t, rows[0].Explanation, "high risk of stock-out")

	_, err = f.actions.PlaceOrder(ctx, OrderRequest{Organization: insulin.Organization, Location: insulin.Location, Item: insulin.Item, Quantity: 10})
	require.NoError(t, err)

	rows, err = f.query.TopActions(ctx, domain.AnalyticsFilter{}, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, bandages, rows[0].GroupKey)
}

func TestWhatIf(t *testing.T) {
	f := newFixture(t)

	w, err := f.query.WhatIf(insulin, 400)
	require.NoError(t, err)
	assert.Equal(t, int64(415), w.ProjectedStock)
	assert.InDelta(t, 20.75, w.ProjectedDaysLeft, 0.001)
	assert.Equal(t, analytics.CoverageSafe, w.Coverage)

	_, err = f.query.WhatIf(domain.GroupKey{Organization: "x", Location: "y", Item: "z"}, 1)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	_, err = f.query.WhatIf(insulin, -1)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestHistoryDefaultsToSevenDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var records []domain.LedgerRecord
	for i := 0; i < 10; i++ {
		records = append(records, domain.LedgerRecord{
			Date:         today.AddDate(0, 0, -10+i),
			Organization: insulin.Organization,
			Location:     insulin.Location,
			Item:         insulin.Item,
			Issued:       5,
			ClosingStock: int64(100 - i*5),
			LeadTimeDays: 10,
		})
	}
	_, err := f.repos.Ledger.Append(ctx, records)
	require.NoError(t, err)

	h, err := f.query.History(ctx, insulin, 0)
	require.NoError(t, err)
	require.Len(t, h.Points, 7)
	assert.Equal(t, int64(55), h.Points[6].ClosingStock)

	_, err = f.query.History(ctx, rice, 7)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestSummaryRejectsInvertedRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.query.Summary(context.Background(), today, today.AddDate(0, 0, -1), nil)
	assert.ErrorIs(t, err, ErrInvalidRange)

	rows, err := f.query.Summary(context.Background(), time.Time{}, time.Time{}, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPlaceOrderValidatesAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.actions.PlaceOrder(ctx, OrderRequest{Organization: "a", Location: "b", Item: "c", Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidOrder)
	_, err = f.actions.PlaceOrder(ctx, OrderRequest{Organization: "a", Item: "c", Quantity: 3})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	order, err := f.actions.PlaceOrder(ctx, OrderRequest{
		Organization: insulin.Organization, Location: insulin.Location, Item: insulin.Item, Quantity: 185,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.UrgencyCritical, order.Urgency)
	assert.Equal(t, systemActor, order.OrderedBy)
	assert.Equal(t, today, order.OrderedAt)
	require.Len(t, f.published, 1)
	assert.Equal(t, 1, f.cache.invalidated)

	orders, err := f.actions.Orders(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	actions, err := f.actions.Actions(ctx, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionOrderPlaced, actions[0].ActionType)
}

func TestAcknowledgeAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repos.Alerts.InsertIfAbsent(ctx, []domain.AlertRecord{{
		ID: "a-1", Organization: insulin.Organization, Location: insulin.Location, Item: insulin.Item,
		AlertType: domain.AlertCriticalRisk, AlertDate: today,
	}})
	require.NoError(t, err)

	alert, err := f.actions.AcknowledgeAlert(ctx, "a-1", "nurse")
	require.NoError(t, err)
	require.NotNil(t, alert.AcknowledgedAt)

	_, err = f.actions.AcknowledgeAlert(ctx, "missing", "nurse")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	alerts, err := f.query.Alerts(ctx, domain.AlertFilter{From: today, To: today})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

type fakeController struct {
	triggered []string
	suspended map[string]bool
}

func (c *fakeController) Status() []pipeline.NodeStatus {
	return []pipeline.NodeStatus{{Name: pipeline.TaskStockAnalytics, State: domain.StateFresh}}
}

func (c *fakeController) Trigger(name string) error {
	if name != pipeline.TaskStockAnalytics {
		return pipeline.ErrUnknownTask
	}
	c.triggered = append(c.triggered, name)
	return nil
}

func (c *fakeController) Suspend(name string) error { c.suspended[name] = true; return nil }

func (c *fakeController) Resume(name string) error { delete(c.suspended, name); return nil }

func TestTaskServiceRunLogsAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ctrl := &fakeController{suspended: make(map[string]bool)}
	svc := NewTaskService(ctrl, f.repos.TaskLogs, pipeline.NewChangeLogs(), f.actions).WithClock(fixedClock)

	require.NoError(t, svc.Run(ctx, pipeline.TaskStockAnalytics, "ops"))
	assert.ErrorIs(t, svc.Run(ctx, "nope", "ops"), pipeline.ErrUnknownTask)
	assert.Equal(t, []string{pipeline.TaskStockAnalytics}, ctrl.triggered)

	actions, err := f.actions.Actions(ctx, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionManualRefresh, actions[0].ActionType)

	overview := svc.Overview()
	assert.Len(t, overview.Tasks, 1)
	assert.Len(t, overview.ChangeLogs, 3)

	require.NoError(t, svc.Suspend(pipeline.TaskStockAnalytics))
	assert.True(t, ctrl.suspended[pipeline.TaskStockAnalytics])
}

func TestTaskServicePerformanceWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewTaskService(&fakeController{}, f.repos.TaskLogs, nil, nil).WithClock(fixedClock)

	for _, e := range []domain.TaskExecutionLog{
		{ID: "1", TaskName: pipeline.TaskReorder, StartTime: today.Add(-time.Hour), Status: domain.TaskSuccess, Duration: time.Second},
		{ID: "2", TaskName: pipeline.TaskReorder, StartTime: today.Add(-2 * time.Hour), Status: domain.TaskFailed, Duration: 3 * time.Second},
		{ID: "3", TaskName: pipeline.TaskReorder, StartTime: today.AddDate(0, 0, -8), Status: domain.TaskSuccess, Duration: time.Second},
	} {
		require.NoError(t, f.repos.TaskLogs.Append(ctx, e))
	}

	perf, err := svc.Performance(ctx, 0)
	require.NoError(t, err)
	require.Len(t, perf, 1)
	assert.Equal(t, 2, perf[0].Runs)
	assert.Equal(t, 1, perf[0].Failures)
	assert.Equal(t, 3*time.Second, perf[0].MaxDuration)
}

func TestIngestServiceValidatesBatch(t *testing.T) {
	ctx := context.Background()
	ledgerLog := changelog.New("ledger")
	svc := NewIngestService(ingest.NewIngestor(memory.NewLedgerRepository(), ledgerLog), nil, "")

	_, err := svc.IngestBatch(ctx, "api", nil)
	assert.ErrorIs(t, err, ErrInvalidBatch)

	_, err = svc.IngestBatch(ctx, "api", []domain.LedgerRecord{{Date: today, Organization: "a", Location: " ", Item: "c"}})
	assert.ErrorIs(t, err, ErrInvalidBatch)

	res, err := svc.IngestBatch(ctx, "api", []domain.LedgerRecord{
		{Date: today, Organization: "a", Location: "b", Item: "c", ClosingStock: 5, LeadTimeDays: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, uint64(1), ledgerLog.Head())

	_, err = svc.IngestFile(ctx, "ledger.csv", strings.NewReader("date,organization\n"))
	assert.ErrorIs(t, err, ErrInvalidBatch)

	_, err = svc.ImportObjects(ctx, "")
	assert.True(t, errors.Is(err, ErrImportDisabled))
}
