package analytics

import "github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"

// DefaultCriticalDays is the days_left threshold that alerts regardless of lead time.
const DefaultCriticalDays = 3.0

// AlertPolicy decides which groups alert and with which type.
type AlertPolicy struct {
	CriticalDays float64
}

func NewAlertPolicy(criticalDays float64) AlertPolicy {
	if criticalDays <= 0 {
		criticalDays = DefaultCriticalDays
	}
	return AlertPolicy{CriticalDays: criticalDays}
}

// Triggers reports risk HIGH or days_left at or below the critical threshold.
func (p AlertPolicy) Triggers(sa domain.StockAnalytics) bool {
	return sa.RiskStatus == domain.RiskHigh || sa.DaysLeft <= p.CriticalDays
}

// Classify picks the alert type. rec is nil when the group has no
// reorder recommendation.
func (p AlertPolicy) Classify(sa domain.StockAnalytics, rec *domain.ReorderRecommendation) domain.AlertType {
	switch {
	case sa.DaysLeft <= p.CriticalDays:
		return domain.AlertCriticalRisk
	case rec != nil && rec.ReorderQty > 0:
		return domain.AlertReorderNeeded
	default:
		return domain.AlertHighRisk
	}
}
