package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

// TaskLogRepository is append-only apart from retention deletes.
type TaskLogRepository struct {
	mu      sync.RWMutex
	entries []domain.TaskExecutionLog
}

func NewTaskLogRepository() *TaskLogRepository {
	return &TaskLogRepository{}
}

func (r *TaskLogRepository) Append(ctx context.Context, entry domain.TaskExecutionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// List returns newest first.
func (r *TaskLogRepository) List(ctx context.Context, filter domain.TaskLogFilter) ([]domain.TaskExecutionLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.TaskExecutionLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if filter.TaskName != "" && e.TaskName != filter.TaskName {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && e.StartTime.Before(filter.Since) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *TaskLogRepository) Performance(ctx context.Context, since time.Time) ([]domain.TaskPerformance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byTask := make(map[string]*domain.TaskPerformance)
	totals := make(map[string]time.Duration)
	for _, e := range r.entries {
		if e.StartTime.Before(since) {
			continue
		}
		p, ok := byTask[e.TaskName]
		if !ok {
			p = &domain.TaskPerformance{TaskName: e.TaskName}
			byTask[e.TaskName] = p
		}
		p.Runs++
		if e.Status == domain.TaskSuccess {
			p.Successes++
		} else {
			p.Failures++
		}
		if e.Duration > p.MaxDuration {
			p.MaxDuration = e.Duration
		}
		if e.StartTime.After(p.LastRunAt) {
			p.LastRunAt = e.StartTime
		}
		p.RecordsTotal += e.RecordsProcessed
		totals[e.TaskName] += e.Duration
	}

	out := make([]domain.TaskPerformance, 0, len(byTask))
	for name, p := range byTask {
		p.AvgDuration = totals[name] / time.Duration(p.Runs)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskName < out[j].TaskName })
	return out, nil
}

func (r *TaskLogRepository) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.TaskExecutionLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.TaskExecutionLog
	for _, e := range r.entries {
		if e.StartTime.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *TaskLogRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	removed := 0
	for _, e := range r.entries {
		if e.StartTime.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}
