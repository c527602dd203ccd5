package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/analytics"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/snapshot"
)

// AggregationTask rebuilds StockAnalytics from the trailing ledger window.
type AggregationTask struct {
	agg *analytics.Aggregator
}

func NewAggregationTask(window int) *AggregationTask {
	return &AggregationTask{agg: analytics.NewAggregator(window)}
}

func (t *AggregationTask) Name() string { return TaskStockAnalytics }

func (t *AggregationTask) Run(ctx context.Context, env *Env) (int, error) {
	groups, err := env.Repos.Ledger.TrailingWindows(ctx, t.agg.Window())
	if err != nil {
		return 0, fmt.Errorf("load ledger windows: %w", err)
	}
	rows, err := computeGroups(ctx, env.workers(), groups, t.agg.Compute)
	if err != nil {
		return 0, fmt.Errorf("aggregate groups: %w", err)
	}

	prev := env.Snapshots.StockAnalytics().Rows
	if err := env.Repos.Snapshots.SaveStockAnalytics(ctx, rows); err != nil {
		return 0, fmt.Errorf("persist stock analytics: %w", err)
	}
	snap := env.Snapshots.PublishStockAnalytics(rows, env.now())
	invalidate(ctx, env, t.Name())

	if rowsChanged(prev, snap.Rows, sameAnalytics) {
		env.Logs.StockAnalytics.Append(t.Name(), len(snap.Rows))
	}
	return len(rows), nil
}

// ReorderTask derives recommendations from the published StockAnalytics.
type ReorderTask struct {
	calc *analytics.ReorderCalculator
}

func NewReorderTask() *ReorderTask {
	return &ReorderTask{calc: analytics.NewReorderCalculator()}
}

func (t *ReorderTask) Name() string { return TaskReorder }

func (t *ReorderTask) Run(ctx context.Context, env *Env) (int, error) {
	source := env.Snapshots.StockAnalytics()
	recs := make([]domain.ReorderRecommendation, 0, source.Len())
	for _, sa := range source.Rows {
		if rec, ok := t.calc.Compute(sa); ok {
			recs = append(recs, rec)
		}
	}
	snapshot.SortRecommendations(recs)

	prev := env.Snapshots.ReorderRecommendations().Rows
	if err := env.Repos.Snapshots.SaveReorderRecommendations(ctx, recs); err != nil {
		return 0, fmt.Errorf("persist reorder recommendations: %w", err)
	}
	snap := env.Snapshots.PublishReorderRecommendations(recs, env.now())
	invalidate(ctx, env, t.Name())

	if rowsChanged(prev, snap.Rows, sameRecommendation) {
		env.Logs.Reorder.Append(t.Name(), len(snap.Rows))
	}
	return source.Len(), nil
}

// UsageStatsTask computes trend and volatility per group.
type UsageStatsTask struct {
	trend *analytics.TrendAnalyzer
}

func NewUsageStatsTask(short, long int) *UsageStatsTask {
	return &UsageStatsTask{trend: analytics.NewTrendAnalyzer(short, long)}
}

func (t *UsageStatsTask) Name() string { return TaskUsageStats }

func (t *UsageStatsTask) Run(ctx context.Context, env *Env) (int, error) {
	groups, err := env.Repos.Ledger.TrailingWindows(ctx, t.trend.LongWindow())
	if err != nil {
		return 0, fmt.Errorf("load ledger windows: %w", err)
	}
	rows, err := computeGroups(ctx, env.workers(), groups, t.trend.Compute)
	if err != nil {
		return 0, fmt.Errorf("analyze usage: %w", err)
	}
	if err := env.Repos.Snapshots.SaveUsageStats(ctx, rows); err != nil {
		return 0, fmt.Errorf("persist usage stats: %w", err)
	}
	env.Snapshots.PublishUsageStats(rows, env.now())
	invalidate(ctx, env, t.Name())
	return len(rows), nil
}

// SummaryTask upserts today's per-organization roll-up.
type SummaryTask struct{}

func NewSummaryTask() *SummaryTask { return &SummaryTask{} }

func (t *SummaryTask) Name() string { return TaskSummary }

func (t *SummaryTask) Run(ctx context.Context, env *Env) (int, error) {
	now := env.now()
	rows := analytics.Summarize(domain.Day(now),
		env.Snapshots.StockAnalytics().Rows,
		env.Snapshots.ReorderRecommendations().Rows)
	for i := range rows {
		rows[i].UpdatedAt = now
	}
	if err := env.Repos.Summaries.Upsert(ctx, rows); err != nil {
		return 0, fmt.Errorf("upsert summaries: %w", err)
	}
	return len(rows), nil
}

// AlertTask inserts at most one alert per group per calendar day.
type AlertTask struct {
	policy          analytics.AlertPolicy
	suppressOrdered bool
}

func NewAlertTask(criticalDays float64, suppressOrdered bool) *AlertTask {
	return &AlertTask{policy: analytics.NewAlertPolicy(criticalDays), suppressOrdered: suppressOrdered}
}

func (t *AlertTask) Name() string { return TaskAlerts }

func (t *AlertTask) Run(ctx context.Context, env *Env) (int, error) {
	now := env.now()
	today := domain.Day(now)
	recs := snapshot.ReorderIndex(env.Snapshots.ReorderRecommendations())

	var ordered map[domain.GroupKey]bool
	if t.suppressOrdered {
		var err error
		if ordered, err = env.Repos.Orders.OrderedSince(ctx, today); err != nil {
			return 0, fmt.Errorf("load orders: %w", err)
		}
	}

	var candidates []domain.AlertRecord
	for _, sa := range env.Snapshots.StockAnalytics().Rows {
		if !t.policy.Triggers(sa) || ordered[sa.GroupKey] {
			continue
		}
		alert := domain.AlertRecord{
			ID:           uuid.NewString(),
			Organization: sa.Organization,
			Location:     sa.Location,
			Item:         sa.Item,
			DaysLeft:     sa.DaysLeft,
			AlertDate:    today,
			Explanation:  analytics.Explain(sa),
			CreatedAt:    now,
		}
		var recPtr *domain.ReorderRecommendation
		if rec, ok := recs[sa.GroupKey]; ok {
			recPtr = &rec
			alert.ReorderQty = rec.ReorderQty
			alert.PriorityScore = rec.PriorityScore
		}
		alert.AlertType = t.policy.Classify(sa, recPtr)
		candidates = append(candidates, alert)
	}

	inserted, err := env.Repos.Alerts.InsertIfAbsent(ctx, candidates)
	if err != nil {
		return 0, fmt.Errorf("insert alerts: %w", err)
	}
	alertsGeneratedTotal.Add(float64(len(inserted)))

	if len(inserted) > 0 && env.Publisher != nil {
		if err := env.Publisher.PublishAlerts(ctx, inserted); err != nil {
			log.Warn().Err(err).Int("alerts", len(inserted)).Msg("failed to publish alerts")
		}
	}
	return len(inserted), nil
}

// Retention is expressed in days per record kind.
type Retention struct {
	SummaryDays int
	AlertDays   int
	LogDays     int
}

// CleanupTask archives and deletes expired rows. Each kind is handled
// independently; the run fails if any kind failed.
type CleanupTask struct {
	retention Retention
}

func NewCleanupTask(r Retention) *CleanupTask {
	return &CleanupTask{retention: r}
}

func (t *CleanupTask) Name() string { return TaskCleanup }

func (t *CleanupTask) Run(ctx context.Context, env *Env) (int, error) {
	today := domain.Day(env.now())
	var errs []error
	total := 0

	purge := func(kind string, days int, list func(context.Context, time.Time) (any, int, error), del func(context.Context, time.Time) (int, error)) {
		if days <= 0 {
			return
		}
		cutoff := today.AddDate(0, 0, -days)
		rows, n, err := list(ctx, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: list expired: %w", kind, err))
			return
		}
		if n == 0 {
			return
		}
		if env.Archiver != nil {
			key, err := env.Archiver.Archive(ctx, kind, today, rows)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: archive: %w", kind, err))
				return
			}
			log.Info().Str("kind", kind).Str("object", key).Int("rows", n).Msg("archived expired rows")
		}
		deleted, err := del(ctx, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: delete: %w", kind, err))
			return
		}
		total += deleted
		log.Info().Str("kind", kind).Time("cutoff", cutoff).Int("deleted", deleted).Msg("retention cleanup")
	}

	purge("summaries", t.retention.SummaryDays,
		func(ctx context.Context, c time.Time) (any, int, error) {
			rows, err := env.Repos.Summaries.ListBefore(ctx, c)
			return rows, len(rows), err
		}, env.Repos.Summaries.DeleteBefore)
	purge("alerts", t.retention.AlertDays,
		func(ctx context.Context, c time.Time) (any, int, error) {
			rows, err := env.Repos.Alerts.ListBefore(ctx, c)
			return rows, len(rows), err
		}, env.Repos.Alerts.DeleteBefore)
	purge("task_logs", t.retention.LogDays,
		func(ctx context.Context, c time.Time) (any, int, error) {
			rows, err := env.Repos.TaskLogs.ListBefore(ctx, c)
			return rows, len(rows), err
		}, env.Repos.TaskLogs.DeleteBefore)

	return total, errors.Join(errs...)
}

func invalidate(ctx context.Context, env *Env, task string) {
	if env.Cache == nil {
		return
	}
	if err := env.Cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Str("task", task).Msg("failed to invalidate query cache")
	}
}

func rowsChanged[T any](prev, next []T, same func(a, b T) bool) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range prev {
		if !same(prev[i], next[i]) {
			return true
		}
	}
	return false
}

func sameAnalytics(a, b domain.StockAnalytics) bool {
	if !a.LastUpdated.Equal(b.LastUpdated) {
		return false
	}
	a.LastUpdated, b.LastUpdated = time.Time{}, time.Time{}
	return a == b
}

func sameRecommendation(a, b domain.ReorderRecommendation) bool {
	if !a.LastUpdated.Equal(b.LastUpdated) {
		return false
	}
	a.LastUpdated, b.LastUpdated = time.Time{}, time.Time{}
	return a == b
}
