// internal/domain/models.go
package domain

import (
	"fmt"
	"time"
)

// DaysLeftSentinel marks a group with zero average usage: effectively
// infinite runway.
const DaysLeftSentinel = 9999.0

// DateLayout is the calendar-day format used across ledger dates,
// alert dates and summary dates.
const DateLayout = "2006-01-02"

// GroupKey identifies a unique (organization, location, item) combination.
type GroupKey struct {
	Organization string `json:"organization" db:"organization"`
	Location     string `json:"location" db:"location"`
	Item         string `json:"item" db:"item"`
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Organization, k.Location, k.Item)
}

// Less orders keys by organization, then location, then item.
func (k GroupKey) Less(o GroupKey) bool {
	if k.Organization != o.Organization {
		return k.Organization < o.Organization
	}
	if k.Location != o.Location {
		return k.Location < o.Location
	}
	return k.Item < o.Item
}

// LedgerRecord is one immutable daily stock movement for a group.
type LedgerRecord struct {
	Date         time.Time `json:"date" db:"date"`
	Organization string    `json:"organization" db:"organization"`
	Location     string    `json:"location" db:"location"`
	Item         string    `json:"item" db:"item"`
	OpeningStock int64     `json:"opening_stock" db:"opening_stock"`
	Received     int64     `json:"received" db:"received"`
	Issued       int64     `json:"issued" db:"issued"`
	ClosingStock int64     `json:"closing_stock" db:"closing_stock"`
	LeadTimeDays int       `json:"lead_time_days" db:"lead_time_days"`
}

func (r LedgerRecord) Key() GroupKey {
	return GroupKey{Organization: r.Organization, Location: r.Location, Item: r.Item}
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StockAnalytics is the derived risk view of a group, rebuilt on every refresh.
type StockAnalytics struct {
	GroupKey
	ClosingStock  int64      `json:"closing_stock" db:"closing_stock"`
	LeadTimeDays  int        `json:"lead_time_days" db:"lead_time_days"`
	AvgDailyUsage float64    `json:"avg_daily_usage" db:"avg_daily_usage"`
	DaysLeft      float64    `json:"days_left" db:"days_left"`
	RiskStatus    RiskStatus `json:"risk_status" db:"risk_status"`
	RecordCount   int        `json:"record_count" db:"record_count"`
	LastUpdated   time.Time  `json:"last_updated" db:"last_updated"`
}

// ReorderRecommendation exists only for groups whose reorder_qty is positive.
type ReorderRecommendation struct {
	GroupKey
	ClosingStock         int64        `json:"closing_stock" db:"closing_stock"`
	LeadTimeDays         int          `json:"lead_time_days" db:"lead_time_days"`
	AvgDailyUsage        float64      `json:"avg_daily_usage" db:"avg_daily_usage"`
	DaysLeft             float64      `json:"days_left" db:"days_left"`
	ReorderQty           int64        `json:"reorder_qty" db:"reorder_qty"`
	ReorderQtyWithSafety int64        `json:"reorder_qty_with_safety" db:"reorder_qty_with_safety"`
	UrgencyLevel         UrgencyLevel `json:"urgency_level" db:"urgency_level"`
	PriorityScore        float64      `json:"priority_score" db:"priority_score"`
	LastUpdated          time.Time    `json:"last_updated" db:"last_updated"`
}

// RankedRecommendation decorates a recommendation with collaborator-side
// ranking inputs. WeightedPriorityScore includes criticality and is
// distinct from PriorityScore.
type RankedRecommendation struct {
	ReorderRecommendation
	Criticality           int     `json:"criticality"`
	WeightedPriorityScore float64 `json:"weighted_priority_score"`
	Ordered               bool    `json:"ordered"`
	Explanation           string  `json:"explanation,omitempty"`
}

// UsageStats carries trend and volatility statistics for a group.
type UsageStats struct {
	GroupKey
	AvgDailyUsage7d    float64        `json:"avg_daily_usage_7d" db:"avg_daily_usage_7d"`
	AvgDailyUsage30d   float64        `json:"avg_daily_usage_30d" db:"avg_daily_usage_30d"`
	MinUsage7d         int64          `json:"min_usage_7d" db:"min_usage_7d"`
	MaxUsage7d         int64          `json:"max_usage_7d" db:"max_usage_7d"`
	UsageStddev7d      float64        `json:"usage_stddev_7d" db:"usage_stddev_7d"`
	TrendDirection     TrendDirection `json:"trend_direction" db:"trend_direction"`
	UsageVolatilityPct float64        `json:"usage_volatility_pct" db:"usage_volatility_pct"`
	DemandPattern      DemandPattern  `json:"demand_pattern" db:"demand_pattern"`
	LastUpdated        time.Time      `json:"last_updated" db:"last_updated"`
}

// AlertRecord is unique per (organization, location, item, alert_date).
type AlertRecord struct {
	ID             string     `json:"id" db:"id"`
	Organization   string     `json:"organization" db:"organization"`
	Location       string     `json:"location" db:"location"`
	Item           string     `json:"item" db:"item"`
	AlertType      AlertType  `json:"alert_type" db:"alert_type"`
	DaysLeft       float64    `json:"days_left" db:"days_left"`
	ReorderQty     int64      `json:"reorder_qty" db:"reorder_qty"`
	PriorityScore  float64    `json:"priority_score" db:"priority_score"`
	AlertDate      time.Time  `json:"alert_date" db:"alert_date"`
	Explanation    string     `json:"explanation" db:"explanation"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
}

func (a AlertRecord) Key() GroupKey {
	return GroupKey{Organization: a.Organization, Location: a.Location, Item: a.Item}
}

// DedupKey is the uniqueness key of an alert: group plus calendar day.
func (a AlertRecord) DedupKey() string {
	return a.Key().String() + "|" + Day(a.AlertDate).Format(DateLayout)
}

// TaskExecutionLog is one append-only audit entry per task run.
type TaskExecutionLog struct {
	ID               string        `json:"id" db:"id"`
	TaskName         string        `json:"task_name" db:"task_name"`
	StartTime        time.Time     `json:"start_time" db:"start_time"`
	Status           TaskStatus    `json:"status" db:"status"`
	RecordsProcessed int           `json:"records_processed" db:"records_processed"`
	Duration         time.Duration `json:"duration" db:"duration"`
	ErrorMessage     string        `json:"error_message,omitempty" db:"error_message"`
	Trigger          string        `json:"trigger" db:"trigger"`
}

// TaskPerformance aggregates the execution log for one task.
type TaskPerformance struct {
	TaskName     string        `json:"task_name" db:"task_name"`
	Runs         int           `json:"runs" db:"runs"`
	Successes    int           `json:"successes" db:"successes"`
	Failures     int           `json:"failures" db:"failures"`
	AvgDuration  time.Duration `json:"avg_duration" db:"avg_duration"`
	MaxDuration  time.Duration `json:"max_duration" db:"max_duration"`
	LastRunAt    time.Time     `json:"last_run_at" db:"last_run_at"`
	RecordsTotal int           `json:"records_total" db:"records_total"`
}

// OrderEvent records that a group was ordered. Order lifecycle is out of scope.
type OrderEvent struct {
	ID           string       `json:"id" db:"id"`
	Organization string       `json:"organization" db:"organization"`
	Location     string       `json:"location" db:"location"`
	Item         string       `json:"item" db:"item"`
	Quantity     int64        `json:"quantity" db:"quantity"`
	Urgency      UrgencyLevel `json:"urgency,omitempty" db:"urgency"`
	OrderedBy    string       `json:"ordered_by" db:"ordered_by"`
	OrderedAt    time.Time    `json:"ordered_at" db:"ordered_at"`
}

func (o OrderEvent) Key() GroupKey {
	return GroupKey{Organization: o.Organization, Location: o.Location, Item: o.Item}
}

// ActionLog is an audit entry for operator actions.
type ActionLog struct {
	ID           string     `json:"id" db:"id"`
	ActionType   ActionType `json:"action_type" db:"action_type"`
	Actor        string     `json:"actor" db:"actor"`
	Organization string     `json:"organization,omitempty" db:"organization"`
	Location     string     `json:"location,omitempty" db:"location"`
	Item         string     `json:"item,omitempty" db:"item"`
	Details      string     `json:"details,omitempty" db:"details"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// AnalyticsSummary is a daily per-organization roll-up of the risk views.
type AnalyticsSummary struct {
	SummaryDate     time.Time `json:"summary_date" db:"summary_date"`
	Organization    string    `json:"organization" db:"organization"`
	TotalGroups     int       `json:"total_groups" db:"total_groups"`
	HighRiskGroups  int       `json:"high_risk_groups" db:"high_risk_groups"`
	CriticalGroups  int       `json:"critical_groups" db:"critical_groups"`
	ReorderCount    int       `json:"reorder_count" db:"reorder_count"`
	TotalReorderQty int64     `json:"total_reorder_qty" db:"total_reorder_qty"`
	AvgDaysLeft     float64   `json:"avg_days_left" db:"avg_days_left"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// HistoryPoint is one day of closing stock for a group sparkline.
type HistoryPoint struct {
	Date         time.Time `json:"date" db:"date"`
	ClosingStock int64     `json:"closing_stock" db:"closing_stock"`
	Issued       int64     `json:"issued" db:"issued"`
}
