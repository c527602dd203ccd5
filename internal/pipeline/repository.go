package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"
)

// Recorder writes one TaskExecutionLog entry per run.
type Recorder struct {
	logs repository.TaskLogRepository
}

// NewRecorder creates a new execution recorder
func NewRecorder(logs repository.TaskLogRepository) *Recorder {
	return &Recorder{logs: logs}
}

// Begin opens an entry for a run starting now.
func (r *Recorder) Begin(task, trigger string, start time.Time) *domain.TaskExecutionLog {
	return &domain.TaskExecutionLog{
		ID:        uuid.NewString(),
		TaskName:  task,
		StartTime: start,
		Trigger:   trigger,
	}
}

// Finish closes the entry and appends it. A failure to write the log is
// reported but never changes the outcome of the run itself.
func (r *Recorder) Finish(ctx context.Context, entry *domain.TaskExecutionLog, end time.Time, records int, runErr error) error {
	entry.Duration = end.Sub(entry.StartTime)
	entry.RecordsProcessed = records
	entry.Status = domain.TaskSuccess
	if runErr != nil {
		entry.Status = domain.TaskFailed
		entry.ErrorMessage = runErr.Error()
	}
	if r.logs == nil {
		return nil
	}
	if err := r.logs.Append(ctx, *entry); err != nil {
		log.Error().Err(err).Str("task", entry.TaskName).Msg("failed to write task execution log")
		return err
	}
	return nil
}
