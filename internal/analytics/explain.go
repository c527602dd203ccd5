package analytics

import (
	"fmt"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

// Explain renders the rule-based explanation shown next to alerts and
// top actions.
func Explain(sa domain.StockAnalytics) string {
	if sa.DaysLeft >= domain.DaysLeftSentinel {
		return fmt.Sprintf("%s at %s - %s has no recorded usage in the last %d records; current stock of %d units is not being drawn down.",
			sa.Item, sa.Organization, sa.Location, sa.RecordCount, sa.ClosingStock)
	}
	if sa.RiskStatus == domain.RiskHigh {
		return fmt.Sprintf("%s at %s - %s is at high risk of stock-out. Average daily usage is %.1f units with a supplier lead time of %d days. Current stock will last approximately %.1f days, which is insufficient to cover the lead time period.",
			sa.Item, sa.Organization, sa.Location, sa.AvgDailyUsage, sa.LeadTimeDays, sa.DaysLeft)
	}
	return fmt.Sprintf("%s at %s - %s will run out in approximately %.1f days at an average daily usage of %.1f units. The supplier lead time of %d days is still covered.",
		sa.Item, sa.Organization, sa.Location, sa.DaysLeft, sa.AvgDailyUsage, sa.LeadTimeDays)
}
