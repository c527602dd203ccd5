package analytics

import (
	"sort"
	"time"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

// Summarize rolls the current snapshots up per organization for one day.
// Sentinel days_left values are left out of the average.
func Summarize(day time.Time, rows []domain.StockAnalytics, recs []domain.ReorderRecommendation) []domain.AnalyticsSummary {
	type acc struct {
		s        domain.AnalyticsSummary
		daysSum  float64
		daysSeen int
	}
	byOrg := make(map[string]*acc)
	get := func(org string) *acc {
		a, ok := byOrg[org]
		if !ok {
			a = &acc{s: domain.AnalyticsSummary{SummaryDate: domain.Day(day), Organization: org}}
			byOrg[org] = a
		}
		return a
	}

	for _, r := range rows {
		a := get(r.Organization)
		a.s.TotalGroups++
		if r.RiskStatus == domain.RiskHigh {
			a.s.HighRiskGroups++
		}
		if r.DaysLeft < domain.DaysLeftSentinel {
			a.daysSum += r.DaysLeft
			a.daysSeen++
		}
	}
	for _, rec := range recs {
		a := get(rec.Organization)
		a.s.ReorderCount++
		a.s.TotalReorderQty += rec.ReorderQty
		if rec.UrgencyLevel == domain.UrgencyCritical {
			a.s.CriticalGroups++
		}
	}

	out := make([]domain.AnalyticsSummary, 0, len(byOrg))
	for _, a := range byOrg {
		if a.daysSeen > 0 {
			a.s.AvgDaysLeft = a.daysSum / float64(a.daysSeen)
		}
		out = append(out, a.s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Organization < out[j].Organization })
	return out
}
