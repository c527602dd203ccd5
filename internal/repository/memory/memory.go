package memory

import "github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"

// NewRepositories wires a complete in-memory repository set.
func NewRepositories() *repository.Repositories {
	return &repository.Repositories{
		Ledger:    NewLedgerRepository(),
		Snapshots: NewSnapshotPersister(),
		Alerts:    NewAlertRepository(),
		TaskLogs:  NewTaskLogRepository(),
		Summaries: NewSummaryRepository(),
		Orders:    NewOrderRepository(),
	}
}
