package domain

import "strings"

// RiskStatus classifies a group's runway against its supplier lead time.
type RiskStatus string

const (
	RiskHigh   RiskStatus = "HIGH"
	RiskNormal RiskStatus = "NORMAL"
)

// UrgencyLevel is the coarse triage bucket of a reorder recommendation.
type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "CRITICAL"
	UrgencyHigh     UrgencyLevel = "HIGH"
	UrgencyMedium   UrgencyLevel = "MEDIUM"
	UrgencyLow      UrgencyLevel = "LOW"
)

// Rank orders urgency tiers, lower is more urgent.
func (u UrgencyLevel) Rank() int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyHigh:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 3
	default:
		return 4
	}
}

type TrendDirection string

const (
	TrendIncreasing TrendDirection = "INCREASING"
	TrendDecreasing TrendDirection = "DECREASING"
	TrendStable     TrendDirection = "STABLE"
)

type DemandPattern string

const (
	DemandHighlyVariable DemandPattern = "HIGHLY_VARIABLE"
	DemandVariable       DemandPattern = "VARIABLE"
	DemandStable         DemandPattern = "STABLE"
)

type AlertType string

const (
	AlertHighRisk      AlertType = "HIGH_RISK"
	AlertCriticalRisk  AlertType = "CRITICAL_RISK"
	AlertReorderNeeded AlertType = "REORDER_NEEDED"
)

// TaskStatus is the outcome recorded in the execution log.
type TaskStatus string

const (
	TaskSuccess TaskStatus = "SUCCESS"
	TaskFailed  TaskStatus = "FAILED"
)

// RefreshState is the scheduler-side state of a managed derived table.
type RefreshState string

const (
	StateStale      RefreshState = "STALE"
	StateRefreshing RefreshState = "REFRESHING"
	StateFresh      RefreshState = "FRESH"
)

type ActionType string

const (
	ActionOrderPlaced    ActionType = "ORDER_PLACED"
	ActionReportExported ActionType = "REPORT_EXPORTED"
	ActionAlertAcked     ActionType = "ALERT_ACKNOWLEDGED"
	ActionManualRefresh  ActionType = "MANUAL_REFRESH"
)

var riskStatuses = map[string]RiskStatus{
	"high":   RiskHigh,
	"normal": RiskNormal,
}

var urgencyLevels = map[string]UrgencyLevel{
	"critical": UrgencyCritical,
	"high":     UrgencyHigh,
	"medium":   UrgencyMedium,
	"low":      UrgencyLow,
}

var trendDirections = map[string]TrendDirection{
	"increasing": TrendIncreasing,
	"decreasing": TrendDecreasing,
	"stable":     TrendStable,
}

var demandPatterns = map[string]DemandPattern{
	"highly_variable": DemandHighlyVariable,
	"variable":        DemandVariable,
	"stable":          DemandStable,
}

// ParseRiskStatus returns the risk status for a given label (case-insensitive).
func ParseRiskStatus(label string) (RiskStatus, bool) {
	v, ok := riskStatuses[strings.ToLower(strings.TrimSpace(label))]
	return v, ok
}

// ParseUrgencyLevel returns the urgency tier for a given label (case-insensitive).
func ParseUrgencyLevel(label string) (UrgencyLevel, bool) {
	v, ok := urgencyLevels[strings.ToLower(strings.TrimSpace(label))]
	return v, ok
}

func ParseTrendDirection(label string) (TrendDirection, bool) {
	v, ok := trendDirections[strings.ToLower(strings.TrimSpace(label))]
	return v, ok
}

func ParseDemandPattern(label string) (DemandPattern, bool) {
	v, ok := demandPatterns[strings.ToLower(strings.TrimSpace(label))]
	return v, ok
}
