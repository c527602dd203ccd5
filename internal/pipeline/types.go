package pipeline

import (
	"context"
	"time"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/changelog"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/snapshot"
)

// Task names of the managed refresh graph.
const (
	TaskStockAnalytics = "stock_analytics"
	TaskReorder        = "reorder_recommendations"
	TaskSummary        = "analytics_summary"
	TaskAlerts         = "generate_alerts"
	TaskUsageStats     = "usage_stats"
	TaskCleanup        = "daily_cleanup"
)

// Trigger reasons recorded in the execution log.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Task is one bounded, non-reentrant unit of work. Run either completes a
// full recompute or returns an error; it never publishes partial output.
type Task interface {
	// Name returns the unique identifier for this task
	Name() string

	// Run recomputes the task's output and returns the number of records processed
	Run(ctx context.Context, env *Env) (int, error)
}

// ChangeLogs are the change logs the refresh graph reads and appends.
type ChangeLogs struct {
	Ledger         *changelog.Log
	StockAnalytics *changelog.Log
	Reorder        *changelog.Log
}

func NewChangeLogs() *ChangeLogs {
	return &ChangeLogs{
		Ledger:         changelog.New("ledger"),
		StockAnalytics: changelog.New(TaskStockAnalytics),
		Reorder:        changelog.New(TaskReorder),
	}
}

func (c *ChangeLogs) All() []*changelog.Log {
	return []*changelog.Log{c.Ledger, c.StockAnalytics, c.Reorder}
}

// CacheInvalidator drops cached query results after a publish.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// AlertPublisher fans newly inserted alerts out to subscribers.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, alerts []domain.AlertRecord) error
}

// Archiver stores expired rows before cleanup deletes them.
type Archiver interface {
	Archive(ctx context.Context, kind string, day time.Time, rows any) (string, error)
}

// Env is the execution context handed to every task run: storage and
// compute handles plus the clock. Tasks hold no other shared state.
type Env struct {
	Repos     *repository.Repositories
	Snapshots *snapshot.Store
	Logs      *ChangeLogs
	Cache     CacheInvalidator
	Publisher AlertPublisher
	Archiver  Archiver
	Workers   int
	Now       func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

func (e *Env) workers() int {
	if e.Workers < 1 {
		return 1
	}
	return e.Workers
}

// NodeSpec declares a task's place in the refresh graph.
type NodeSpec struct {
	Task Task
	// Interval is the minimum time between attempts.
	Interval time.Duration
	// Source gates the node on pending change events. Nil means the node
	// is time-triggered only.
	Source *changelog.Log
	// After lists nodes that must settle in the same cycle first.
	After []string
}

// NodeStatus is the externally visible state of a managed node.
type NodeStatus struct {
	Name        string              `json:"name"`
	State       domain.RefreshState `json:"state"`
	Suspended   bool                `json:"suspended"`
	Running     bool                `json:"running"`
	Interval    string              `json:"interval"`
	Source      string              `json:"source,omitempty"`
	After       []string            `json:"after,omitempty"`
	Pending     uint64              `json:"pending"`
	LastAttempt *time.Time          `json:"last_attempt,omitempty"`
	LastSuccess *time.Time          `json:"last_success,omitempty"`
	LastError   string              `json:"last_error,omitempty"`
	LastRecords int                 `json:"last_records"`
	Runs        int                 `json:"runs"`
	Failures    int                 `json:"failures"`
}

// Outcome describes what happened to one node during a cycle.
type Outcome struct {
	Task    string `json:"task"`
	Ran     bool   `json:"ran"`
	Success bool   `json:"success"`
	Skipped string `json:"skipped,omitempty"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// Skip reasons.
const (
	SkipSuspended  = "suspended"
	SkipNotDue     = "not_due"
	SkipNoChanges  = "no_changes"
	SkipDependency = "dependency"
	SkipRunning    = "running"
)
