package pipeline

import (
	"time"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/config"
)

// DefaultNodes wires the refresh graph:
//
//	ledger -> stock_analytics -> reorder_recommendations -> {analytics_summary, generate_alerts}
//	ledger -> usage_stats
//	daily_cleanup (time only)
//
// Summary and alerts consume the stock_analytics log so they rerun whenever
// risk changes, even when no recommendation changed.
func DefaultNodes(cfg *config.Config, logs *ChangeLogs) []NodeSpec {
	sc := cfg.Scheduler
	return []NodeSpec{
		{
			Task:     NewAggregationTask(sc.AggregationWindow),
			Interval: orDefault(sc.StockAnalytics, 5*time.Minute),
			Source:   logs.Ledger,
		},
		{
			Task:     NewReorderTask(),
			Interval: orDefault(sc.Reorder, 10*time.Minute),
			Source:   logs.StockAnalytics,
			After:    []string{TaskStockAnalytics},
		},
		{
			Task:     NewSummaryTask(),
			Interval: orDefault(sc.Summary, 10*time.Minute),
			Source:   logs.StockAnalytics,
			After:    []string{TaskReorder},
		},
		{
			Task:     NewAlertTask(cfg.Alerts.CriticalDays, cfg.Alerts.SuppressOrdered),
			Interval: orDefault(sc.Alerts, 10*time.Minute),
			Source:   logs.StockAnalytics,
			After:    []string{TaskReorder},
		},
		{
			Task:     NewUsageStatsTask(sc.UsageShortWindow, sc.UsageLongWindow),
			Interval: orDefault(sc.UsageStats, 15*time.Minute),
			Source:   logs.Ledger,
		},
		{
			Task:     NewCleanupTask(Retention{SummaryDays: cfg.Retention.SummaryDays, AlertDays: cfg.Retention.AlertDays, LogDays: cfg.Retention.LogDays}),
			Interval: orDefault(sc.Cleanup, 24*time.Hour),
		},
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
