// internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

var ErrNotFound = errors.New("repository: not found")

// LedgerRepository is the read/append boundary of the external ledger store.
type LedgerRepository interface {
	// Append inserts records whose identity is not yet present and
	// returns how many were inserted.
	Append(ctx context.Context, records []domain.LedgerRecord) (int, error)
	// TrailingWindows returns at most n records per group, ascending by date.
	TrailingWindows(ctx context.Context, n int) (map[domain.GroupKey][]domain.LedgerRecord, error)
	History(ctx context.Context, key domain.GroupKey, n int) ([]domain.HistoryPoint, error)
	Count(ctx context.Context) (int, error)
}

// SnapshotPersister stores the derived tables. Each Save replaces the
// whole table atomically.
type SnapshotPersister interface {
	SaveStockAnalytics(ctx context.Context, rows []domain.StockAnalytics) error
	SaveReorderRecommendations(ctx context.Context, rows []domain.ReorderRecommendation) error
	SaveUsageStats(ctx context.Context, rows []domain.UsageStats) error
	LoadStockAnalytics(ctx context.Context) ([]domain.StockAnalytics, error)
	LoadReorderRecommendations(ctx context.Context) ([]domain.ReorderRecommendation, error)
	LoadUsageStats(ctx context.Context) ([]domain.UsageStats, error)
}

type AlertRepository interface {
	// InsertIfAbsent skips alerts whose (group, alert_date) already exists
	// and returns the ones actually inserted.
	InsertIfAbsent(ctx context.Context, alerts []domain.AlertRecord) ([]domain.AlertRecord, error)
	List(ctx context.Context, filter domain.AlertFilter) ([]domain.AlertRecord, error)
	Acknowledge(ctx context.Context, id string, at time.Time) (*domain.AlertRecord, error)
	ListBefore(ctx context.Context, cutoff time.Time) ([]domain.AlertRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type TaskLogRepository interface {
	Append(ctx context.Context, entry domain.TaskExecutionLog) error
	List(ctx context.Context, filter domain.TaskLogFilter) ([]domain.TaskExecutionLog, error)
	Performance(ctx context.Context, since time.Time) ([]domain.TaskPerformance, error)
	ListBefore(ctx context.Context, cutoff time.Time) ([]domain.TaskExecutionLog, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type SummaryRepository interface {
	Upsert(ctx context.Context, rows []domain.AnalyticsSummary) error
	List(ctx context.Context, from, to time.Time, organizations []string) ([]domain.AnalyticsSummary, error)
	ListBefore(ctx context.Context, cutoff time.Time) ([]domain.AnalyticsSummary, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// OrderRepository records "mark as ordered" events and the action audit log.
type OrderRepository interface {
	Record(ctx context.Context, order domain.OrderEvent) error
	List(ctx context.Context, since time.Time) ([]domain.OrderEvent, error)
	OrderedSince(ctx context.Context, since time.Time) (map[domain.GroupKey]bool, error)
	LogAction(ctx context.Context, action domain.ActionLog) error
	ListActions(ctx context.Context, since time.Time, limit int) ([]domain.ActionLog, error)
}

// Repositories bundles every store the service needs.
type Repositories struct {
	Ledger    LedgerRepository
	Snapshots SnapshotPersister
	Alerts    AlertRepository
	TaskLogs  TaskLogRepository
	Summaries SummaryRepository
	Orders    OrderRepository
}
