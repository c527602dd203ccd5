package analytics

import (
	"github.com/shopspring/decimal"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

// SafetyBufferDays is added to lead time for the safety reorder variant.
const SafetyBufferDays = 30

// ReorderCalculator turns a StockAnalytics row into a recommendation.
type ReorderCalculator struct {
	safetyBufferDays int
}

func NewReorderCalculator() *ReorderCalculator {
	return &ReorderCalculator{safetyBufferDays: SafetyBufferDays}
}

// Compute returns false when the bare reorder quantity is zero; such
// groups are excluded rather than kept as zero rows.
func (c *ReorderCalculator) Compute(sa domain.StockAnalytics) (domain.ReorderRecommendation, bool) {
	qty := ReorderQty(sa.LeadTimeDays, sa.AvgDailyUsage, sa.ClosingStock)
	if qty == 0 {
		return domain.ReorderRecommendation{}, false
	}

	return domain.ReorderRecommendation{
		GroupKey:             sa.GroupKey,
		ClosingStock:         sa.ClosingStock,
		LeadTimeDays:         sa.LeadTimeDays,
		AvgDailyUsage:        sa.AvgDailyUsage,
		DaysLeft:             sa.DaysLeft,
		ReorderQty:           qty,
		ReorderQtyWithSafety: ReorderQty(sa.LeadTimeDays+c.safetyBufferDays, sa.AvgDailyUsage, sa.ClosingStock),
		UrgencyLevel:         Urgency(sa.DaysLeft, sa.LeadTimeDays),
		PriorityScore:        PriorityScore(sa.LeadTimeDays, sa.AvgDailyUsage, sa.ClosingStock),
		LastUpdated:          sa.LastUpdated,
	}, true
}

// ReorderQty is max(0, round(days*avg - closing)), rounding half away from zero.
func ReorderQty(days int, avgUsage float64, closing int64) int64 {
	need := decimal.NewFromInt(int64(days)).
		Mul(decimal.NewFromFloat(avgUsage)).
		Sub(decimal.NewFromInt(closing)).
		Round(0)
	if need.Sign() <= 0 {
		return 0
	}
	return need.IntPart()
}

// Urgency tiers are evaluated in order, first match wins.
func Urgency(daysLeft float64, leadTimeDays int) domain.UrgencyLevel {
	lead := float64(leadTimeDays)
	switch {
	case daysLeft <= 0:
		return domain.UrgencyCritical
	case daysLeft <= 0.5*lead:
		return domain.UrgencyCritical
	case daysLeft <= lead:
		return domain.UrgencyHigh
	case daysLeft <= 1.5*lead:
		return domain.UrgencyMedium
	default:
		return domain.UrgencyLow
	}
}

// PriorityScore ranks recommendations for triage. It is independent of
// urgency and carries no criticality term.
func PriorityScore(leadTimeDays int, avgUsage float64, closing int64) float64 {
	return priorityBase(leadTimeDays, avgUsage, closing).Round(2).InexactFloat64()
}

func priorityBase(leadTimeDays int, avgUsage float64, closing int64) decimal.Decimal {
	return decimal.NewFromInt(int64(leadTimeDays)).Mul(decimal.NewFromInt(2)).
		Add(decimal.NewFromFloat(avgUsage).Mul(decimal.NewFromFloat(1.5))).
		Sub(decimal.NewFromInt(closing).Mul(decimal.NewFromFloat(0.5)))
}
