package postgres

import "github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"

// NewRepositories wires every store onto one pool.
func NewRepositories(db *DB) *repository.Repositories {
	return &repository.Repositories{
		Ledger:    NewLedgerRepository(db),
		Snapshots: NewSnapshotRepository(db),
		Alerts:    NewAlertRepository(db),
		TaskLogs:  NewTaskLogRepository(db),
		Summaries: NewSummaryRepository(db),
		Orders:    NewOrderRepository(db),
	}
}
