package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

const taskLogColumns = `id, task_name, start_time, status, records_processed, duration, error_message, "trigger"`

type taskLogRepository struct {
	db *DB
}

func NewTaskLogRepository(db *DB) *taskLogRepository {
	return &taskLogRepository{db: db}
}

func (r *taskLogRepository) Append(ctx context.Context, e domain.TaskExecutionLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_execution_log (`+taskLogColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.TaskName, e.StartTime, e.Status, e.RecordsProcessed, int64(e.Duration), e.ErrorMessage, e.Trigger)
	if err != nil {
		return fmt.Errorf("failed to append task log: %w", err)
	}
	return nil
}

// List returns newest first.
func (r *taskLogRepository) List(ctx context.Context, filter domain.TaskLogFilter) ([]domain.TaskExecutionLog, error) {
	b := newClauseBuilder("")
	if filter.TaskName != "" {
		b.add("%stask_name = $%d", filter.TaskName)
	}
	if filter.Status != "" {
		b.add("%sstatus = $%d", filter.Status)
	}
	if !filter.Since.IsZero() {
		b.add("%sstart_time >= $%d", filter.Since)
	}
	query := `SELECT ` + taskLogColumns + ` FROM task_execution_log` + b.where() +
		` ORDER BY start_time DESC` + b.limit(filter.Limit)

	var rows []domain.TaskExecutionLog
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, b.args...); err != nil {
		return nil, fmt.Errorf("failed to list task logs: %w", err)
	}
	return rows, nil
}

func (r *taskLogRepository) Performance(ctx context.Context, since time.Time) ([]domain.TaskPerformance, error) {
	query := `
		SELECT
			task_name,
			COUNT(*) AS runs,
			COUNT(*) FILTER (WHERE status = 'SUCCESS') AS successes,
			COUNT(*) FILTER (WHERE status = 'FAILED') AS failures,
			COALESCE(AVG(duration), 0)::BIGINT AS avg_duration,
			COALESCE(MAX(duration), 0) AS max_duration,
			MAX(start_time) AS last_run_at,
			COALESCE(SUM(records_processed), 0) AS records_total
		FROM task_execution_log
		WHERE start_time >= $1
		GROUP BY task_name
		ORDER BY task_name
	`
	var rows []domain.TaskPerformance
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, since); err != nil {
		return nil, fmt.Errorf("failed to aggregate task performance: %w", err)
	}
	return rows, nil
}

func (r *taskLogRepository) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.TaskExecutionLog, error) {
	var rows []domain.TaskExecutionLog
	query := `SELECT ` + taskLogColumns + ` FROM task_execution_log WHERE start_time < $1 ORDER BY start_time`
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list expired task logs: %w", err)
	}
	return rows, nil
}

func (r *taskLogRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return deleteBefore(ctx, r.db, "task_execution_log", "start_time", cutoff)
}
