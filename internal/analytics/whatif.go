package analytics

import "github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"

// Coverage labels for a projected order.
const (
	CoverageSafe     = "SAFE"
	CoverageModerate = "MODERATE"
	CoverageAtRisk   = "HIGH"
)

// WhatIf projects how long stock lasts after ordering qty units.
type WhatIf struct {
	OrderQty          int64   `json:"order_qty"`
	CurrentDaysLeft   float64 `json:"current_days_left"`
	ProjectedStock    int64   `json:"projected_stock"`
	ProjectedDaysLeft float64 `json:"projected_days_left"`
	DaysGained        float64 `json:"days_gained"`
	Coverage          string  `json:"coverage"`
	SuggestedQty60d   int64   `json:"suggested_qty_60d"`
}

// ProjectOrder evaluates an order against the group's current usage.
// Coverage is SAFE above twice the lead time and MODERATE above it.
func ProjectOrder(sa domain.StockAnalytics, qty int64) WhatIf {
	if qty < 0 {
		qty = 0
	}
	stock := sa.ClosingStock + qty
	current := DaysLeft(sa.ClosingStock, sa.AvgDailyUsage)
	projected := DaysLeft(stock, sa.AvgDailyUsage)

	coverage := CoverageAtRisk
	lead := float64(sa.LeadTimeDays)
	switch {
	case projected > lead*2:
		coverage = CoverageSafe
	case projected > lead:
		coverage = CoverageModerate
	}

	return WhatIf{
		OrderQty:          qty,
		CurrentDaysLeft:   current,
		ProjectedStock:    stock,
		ProjectedDaysLeft: projected,
		DaysGained:        projected - current,
		Coverage:          coverage,
		SuggestedQty60d:   ReorderQty(60, sa.AvgDailyUsage, sa.ClosingStock),
	}
}
