// Package memory provides in-process implementations of the repository
// interfaces. They back tests and single-node deployments without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

type LedgerRepository struct {
	mu     sync.RWMutex
	groups map[domain.GroupKey][]domain.LedgerRecord
	count  int
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{groups: make(map[domain.GroupKey][]domain.LedgerRecord)}
}

func (r *LedgerRepository) Append(ctx context.Context, records []domain.LedgerRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, rec := range records {
		rec.Date = domain.Day(rec.Date)
		key := rec.Key()
		rows := r.groups[key]

		idx := sort.Search(len(rows), func(i int) bool { return !rows[i].Date.Before(rec.Date) })
		if idx < len(rows) && rows[idx].Date.Equal(rec.Date) {
			continue
		}
		rows = append(rows, domain.LedgerRecord{})
		copy(rows[idx+1:], rows[idx:])
		rows[idx] = rec
		r.groups[key] = rows
		inserted++
	}
	r.count += inserted
	return inserted, nil
}

func (r *LedgerRepository) TrailingWindows(ctx context.Context, n int) (map[domain.GroupKey][]domain.LedgerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[domain.GroupKey][]domain.LedgerRecord, len(r.groups))
	for key, rows := range r.groups {
		start := 0
		if n > 0 && len(rows) > n {
			start = len(rows) - n
		}
		window := make([]domain.LedgerRecord, len(rows)-start)
		copy(window, rows[start:])
		out[key] = window
	}
	return out, nil
}

func (r *LedgerRepository) History(ctx context.Context, key domain.GroupKey, n int) ([]domain.HistoryPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.groups[key]
	start := 0
	if n > 0 && len(rows) > n {
		start = len(rows) - n
	}
	out := make([]domain.HistoryPoint, 0, len(rows)-start)
	for _, rec := range rows[start:] {
		out = append(out, domain.HistoryPoint{Date: rec.Date, ClosingStock: rec.ClosingStock, Issued: rec.Issued})
	}
	return out, nil
}

func (r *LedgerRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count, nil
}
