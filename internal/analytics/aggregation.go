// Package analytics holds the pure per-group calculators behind the
// derived views. Nothing here touches storage or clocks.
package analytics

import (
	"sort"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

// DefaultAggregationWindow is the number of trailing ledger records
// averaged into avg_daily_usage.
const DefaultAggregationWindow = 7

// Aggregator derives StockAnalytics from a group's trailing ledger window.
type Aggregator struct {
	window int
}

func NewAggregator(window int) *Aggregator {
	if window <= 0 {
		window = DefaultAggregationWindow
	}
	return &Aggregator{window: window}
}

func (a *Aggregator) Window() int { return a.window }

// Compute returns false when the group has no records.
func (a *Aggregator) Compute(records []domain.LedgerRecord) (domain.StockAnalytics, bool) {
	if len(records) == 0 {
		return domain.StockAnalytics{}, false
	}

	window := trailing(records, a.window)
	latest := window[len(window)-1]

	var issued int64
	for _, r := range window {
		issued += r.Issued
	}
	avg := float64(issued) / float64(len(window))
	daysLeft := DaysLeft(latest.ClosingStock, avg)

	return domain.StockAnalytics{
		GroupKey:      latest.Key(),
		ClosingStock:  latest.ClosingStock,
		LeadTimeDays:  latest.LeadTimeDays,
		AvgDailyUsage: avg,
		DaysLeft:      daysLeft,
		RiskStatus:    Risk(daysLeft, latest.LeadTimeDays),
		RecordCount:   len(window),
		LastUpdated:   domain.Day(latest.Date),
	}, true
}

// DaysLeft is closing/avg, or the sentinel when there is no usage.
func DaysLeft(closing int64, avgUsage float64) float64 {
	if avgUsage == 0 {
		return domain.DaysLeftSentinel
	}
	return float64(closing) / avgUsage
}

// Risk is HIGH iff days_left <= lead_time_days.
func Risk(daysLeft float64, leadTimeDays int) domain.RiskStatus {
	if daysLeft <= float64(leadTimeDays) {
		return domain.RiskHigh
	}
	return domain.RiskNormal
}

// trailing returns the last n records ordered by date. The input is
// copied before sorting when it is not already ascending.
func trailing(records []domain.LedgerRecord, n int) []domain.LedgerRecord {
	if !sort.SliceIsSorted(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) }) {
		sorted := make([]domain.LedgerRecord, len(records))
		copy(sorted, records)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
		records = sorted
	}
	if len(records) > n {
		return records[len(records)-n:]
	}
	return records
}
