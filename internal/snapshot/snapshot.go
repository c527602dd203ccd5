// Package snapshot holds the currently published derived tables. Each
// publish swaps in a complete, immutable snapshot; readers never wait on
// a refresh and never observe a partially built table.
package snapshot

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

// Snapshot is immutable once published. Callers must not modify Rows.
type Snapshot[T any] struct {
	Version     uint64    `json:"version"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Rows        []T       `json:"rows"`
}

func (s *Snapshot[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

type Store struct {
	version   atomic.Uint64
	analytics atomic.Pointer[Snapshot[domain.StockAnalytics]]
	reorder   atomic.Pointer[Snapshot[domain.ReorderRecommendation]]
	usage     atomic.Pointer[Snapshot[domain.UsageStats]]
}

func NewStore() *Store {
	s := &Store{}
	s.analytics.Store(&Snapshot[domain.StockAnalytics]{})
	s.reorder.Store(&Snapshot[domain.ReorderRecommendation]{})
	s.usage.Store(&Snapshot[domain.UsageStats]{})
	return s
}

func (s *Store) StockAnalytics() *Snapshot[domain.StockAnalytics] { return s.analytics.Load() }

func (s *Store) ReorderRecommendations() *Snapshot[domain.ReorderRecommendation] {
	return s.reorder.Load()
}

func (s *Store) UsageStats() *Snapshot[domain.UsageStats] { return s.usage.Load() }

// PublishStockAnalytics sorts rows by group key and swaps them in.
func (s *Store) PublishStockAnalytics(rows []domain.StockAnalytics, at time.Time) *Snapshot[domain.StockAnalytics] {
	sorted := append([]domain.StockAnalytics(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].GroupKey.Less(sorted[j].GroupKey) })
	snap := &Snapshot[domain.StockAnalytics]{Version: s.version.Add(1), RefreshedAt: at, Rows: sorted}
	s.analytics.Store(snap)
	return snap
}

// PublishReorderRecommendations orders rows by priority_score descending,
// then by group key.
func (s *Store) PublishReorderRecommendations(rows []domain.ReorderRecommendation, at time.Time) *Snapshot[domain.ReorderRecommendation] {
	sorted := append([]domain.ReorderRecommendation(nil), rows...)
	SortRecommendations(sorted)
	snap := &Snapshot[domain.ReorderRecommendation]{Version: s.version.Add(1), RefreshedAt: at, Rows: sorted}
	s.reorder.Store(snap)
	return snap
}

func (s *Store) PublishUsageStats(rows []domain.UsageStats, at time.Time) *Snapshot[domain.UsageStats] {
	sorted := append([]domain.UsageStats(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].GroupKey.Less(sorted[j].GroupKey) })
	snap := &Snapshot[domain.UsageStats]{Version: s.version.Add(1), RefreshedAt: at, Rows: sorted}
	s.usage.Store(snap)
	return snap
}

func SortRecommendations(rows []domain.ReorderRecommendation) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PriorityScore != rows[j].PriorityScore {
			return rows[i].PriorityScore > rows[j].PriorityScore
		}
		return rows[i].GroupKey.Less(rows[j].GroupKey)
	})
}

// StockAnalyticsIndex maps the current analytics rows by group.
func StockAnalyticsIndex(snap *Snapshot[domain.StockAnalytics]) map[domain.GroupKey]domain.StockAnalytics {
	out := make(map[domain.GroupKey]domain.StockAnalytics, snap.Len())
	if snap == nil {
		return out
	}
	for _, r := range snap.Rows {
		out[r.GroupKey] = r
	}
	return out
}

func ReorderIndex(snap *Snapshot[domain.ReorderRecommendation]) map[domain.GroupKey]domain.ReorderRecommendation {
	out := make(map[domain.GroupKey]domain.ReorderRecommendation, snap.Len())
	if snap == nil {
		return out
	}
	for _, r := range snap.Rows {
		out[r.GroupKey] = r
	}
	return out
}
