package domain

import "time"

// AnalyticsFilter narrows snapshot reads. Empty fields match everything.
type AnalyticsFilter struct {
	Organizations  []string       `json:"organizations,omitempty"`
	Locations      []string       `json:"locations,omitempty"`
	Items          []string       `json:"items,omitempty"`
	RiskStatus     RiskStatus     `json:"risk_status,omitempty"`
	UrgencyLevel   UrgencyLevel   `json:"urgency_level,omitempty"`
	TrendDirection TrendDirection `json:"trend_direction,omitempty"`
	DemandPattern  DemandPattern  `json:"demand_pattern,omitempty"`
	ExcludeOrdered bool           `json:"exclude_ordered,omitempty"`
	Limit          int            `json:"limit,omitempty"`
}

// MatchesKey reports whether a group passes the organization, location and item filters.
func (f AnalyticsFilter) MatchesKey(k GroupKey) bool {
	return matchAny(f.Organizations, k.Organization) &&
		matchAny(f.Locations, k.Location) &&
		matchAny(f.Items, k.Item)
}

func matchAny(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	AnalyticsFilter
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	AlertType AlertType `json:"alert_type,omitempty"`
}

// TaskLogFilter narrows execution-log listings.
type TaskLogFilter struct {
	TaskName string     `json:"task_name,omitempty"`
	Status   TaskStatus `json:"status,omitempty"`
	Since    time.Time  `json:"since"`
	Limit    int        `json:"limit,omitempty"`
}
