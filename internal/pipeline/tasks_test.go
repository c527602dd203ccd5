package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository/memory"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/snapshot"
)

type fakeArchiver struct {
	failKind string
	kinds    []string
}

func (a *fakeArchiver) Archive(_ context.Context, kind string, day time.Time, _ any) (string, error) {
	if kind == a.failKind {
		return "", errors.New("bucket unavailable")
	}
	a.kinds = append(a.kinds, kind)
	return "archive/" + kind + "/" + day.Format(domain.DateLayout) + ".json", nil
}

func cleanupEnv(t *testing.T, now time.Time) *Env {
	t.Helper()
	ctx := context.Background()
	repos := memory.NewRepositories()
	today := domain.Day(now)

	_, err := repos.Alerts.InsertIfAbsent(ctx, []domain.AlertRecord{
		{ID: "old", Organization: "o", Location: "l", Item: "i", AlertDate: today.AddDate(0, 0, -181)},
		{ID: "new", Organization: "o", Location: "l", Item: "i", AlertDate: today.AddDate(0, 0, -179)},
	})
	require.NoError(t, err)
	require.NoError(t, repos.Summaries.Upsert(ctx, []domain.AnalyticsSummary{
		{SummaryDate: today.AddDate(0, 0, -91), Organization: "o"},
		{SummaryDate: today.AddDate(0, 0, -89), Organization: "o"},
	}))
	require.NoError(t, repos.TaskLogs.Append(ctx, domain.TaskExecutionLog{ID: "a", TaskName: "x", StartTime: today.AddDate(0, 0, -31)}))
	require.NoError(t, repos.TaskLogs.Append(ctx, domain.TaskExecutionLog{ID: "b", TaskName: "x", StartTime: today.AddDate(0, 0, -29)}))

	return &Env{Repos: repos, Now: func() time.Time { return now }}
}

func TestCleanupHonoursRetention(t *testing.T) {
	ctx := context.Background()
	env := cleanupEnv(t, start)
	archiver := &fakeArchiver{}
	env.Archiver = archiver

	n, err := NewCleanupTask(Retention{SummaryDays: 90, AlertDays: 180, LogDays: 30}).Run(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"summaries", "alerts", "task_logs"}, archiver.kinds)

	alerts, err := env.Repos.Alerts.List(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "new", alerts[0].ID)

	logs, err := env.Repos.TaskLogs.List(ctx, domain.TaskLogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "b", logs[0].ID)
}

func TestCleanupFailureIsLocalToKind(t *testing.T) {
	ctx := context.Background()
	env := cleanupEnv(t, start)
	env.Archiver = &fakeArchiver{failKind: "alerts"}

	n, err := NewCleanupTask(Retention{SummaryDays: 90, AlertDays: 180, LogDays: 30}).Run(ctx, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alerts: archive")
	assert.Equal(t, 2, n)

	alerts, err := env.Repos.Alerts.List(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestAlertTaskSuppressesOrderedGroups(t *testing.T) {
	ctx := context.Background()
	env := &Env{
		Repos:     memory.NewRepositories(),
		Snapshots: snapshot.NewStore(),
		Now:       func() time.Time { return start },
	}
	key := domain.GroupKey{Organization: "Helping Hands", Location: "Emergency Unit A", Item: "Insulin"}
	env.Snapshots.PublishStockAnalytics([]domain.StockAnalytics{
		{GroupKey: key, ClosingStock: 15, LeadTimeDays: 10, AvgDailyUsage: 20, DaysLeft: 0.75, RiskStatus: domain.RiskHigh},
		{GroupKey: domain.GroupKey{Organization: "Helping Hands", Location: "Ward", Item: "Masks"}, ClosingStock: 40, LeadTimeDays: 10, AvgDailyUsage: 5, DaysLeft: 8, RiskStatus: domain.RiskHigh},
	}, start)
	require.NoError(t, env.Repos.Orders.Record(ctx, domain.OrderEvent{
		ID: "o1", Organization: key.Organization, Location: key.Location, Item: key.Item, Quantity: 185, OrderedAt: start,
	}))

	n, err := NewAlertTask(3, true).Run(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	alerts, err := env.Repos.Alerts.List(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Masks", alerts[0].Item)
	assert.Equal(t, domain.AlertHighRisk, alerts[0].AlertType)
	assert.NotEmpty(t, alerts[0].Explanation)
}

func TestComputeGroupsKeepsKeyOrderAndRecoversPanics(t *testing.T) {
	groups := map[domain.GroupKey][]domain.LedgerRecord{
		{Organization: "b"}: {{Organization: "b", Issued: 2}},
		{Organization: "a"}: {{Organization: "a", Issued: 1}},
		{Organization: "c"}: nil,
	}
	out, err := computeGroups(context.Background(), 2, groups, func(rs []domain.LedgerRecord) (int64, bool) {
		if len(rs) == 0 {
			return 0, false
		}
		return rs[0].Issued, true
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, out)

	_, err = computeGroups(context.Background(), 2, groups, func(rs []domain.LedgerRecord) (int64, bool) {
		panic("bad group")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad group")
}

func TestPrimePublishesPersistedTables(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories()
	key := domain.GroupKey{Organization: "o", Location: "l", Item: "i"}
	require.NoError(t, repos.Snapshots.SaveStockAnalytics(ctx, []domain.StockAnalytics{{GroupKey: key, DaysLeft: 2}}))
	require.NoError(t, repos.Snapshots.SaveReorderRecommendations(ctx, []domain.ReorderRecommendation{{GroupKey: key, ReorderQty: 10}}))

	env := &Env{Repos: repos, Snapshots: snapshot.NewStore(), Now: func() time.Time { return start }}
	require.NoError(t, Prime(ctx, env))

	assert.Equal(t, 1, env.Snapshots.StockAnalytics().Len())
	assert.Equal(t, int64(10), env.Snapshots.ReorderRecommendations().Rows[0].ReorderQty)
	assert.Equal(t, 0, env.Snapshots.UsageStats().Len())
	assert.Equal(t, start, env.Snapshots.StockAnalytics().RefreshedAt)
}
