package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"
)

type AlertRepository struct {
	mu     sync.RWMutex
	alerts []domain.AlertRecord
	index  map[string]int
}

func NewAlertRepository() *AlertRepository {
	return &AlertRepository{index: make(map[string]int)}
}

func (r *AlertRepository) InsertIfAbsent(ctx context.Context, alerts []domain.AlertRecord) ([]domain.AlertRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var inserted []domain.AlertRecord
	for _, a := range alerts {
		a.AlertDate = domain.Day(a.AlertDate)
		key := a.DedupKey()
		if _, exists := r.index[key]; exists {
			continue
		}
		r.index[key] = len(r.alerts)
		r.alerts = append(r.alerts, a)
		inserted = append(inserted, a)
	}
	return inserted, nil
}

func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]domain.AlertRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.AlertRecord
	for _, a := range r.alerts {
		if !filter.MatchesKey(a.Key()) {
			continue
		}
		if filter.AlertType != "" && a.AlertType != filter.AlertType {
			continue
		}
		if !filter.From.IsZero() && a.AlertDate.Before(domain.Day(filter.From)) {
			continue
		}
		if !filter.To.IsZero() && a.AlertDate.After(domain.Day(filter.To)) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AlertDate.Equal(out[j].AlertDate) {
			return out[i].AlertDate.After(out[j].AlertDate)
		}
		return out[i].PriorityScore > out[j].PriorityScore
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *AlertRepository) Acknowledge(ctx context.Context, id string, at time.Time) (*domain.AlertRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.alerts {
		if r.alerts[i].ID == id {
			if r.alerts[i].AcknowledgedAt == nil {
				ts := at
				r.alerts[i].AcknowledgedAt = &ts
			}
			a := r.alerts[i]
			return &a, nil
		}
	}
	return nil, fmt.Errorf("alert %s: %w", id, repository.ErrNotFound)
}

func (r *AlertRepository) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.AlertRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.AlertRecord
	for _, a := range r.alerts {
		if a.AlertDate.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *AlertRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.alerts[:0]
	removed := 0
	for _, a := range r.alerts {
		if a.AlertDate.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	r.alerts = kept
	r.index = make(map[string]int, len(kept))
	for i, a := range kept {
		r.index[a.DedupKey()] = i
	}
	return removed, nil
}
