package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

type summaryKey struct {
	day string
	org string
}

type SummaryRepository struct {
	mu   sync.RWMutex
	rows map[summaryKey]domain.AnalyticsSummary
}

func NewSummaryRepository() *SummaryRepository {
	return &SummaryRepository{rows: make(map[summaryKey]domain.AnalyticsSummary)}
}

func (r *SummaryRepository) Upsert(ctx context.Context, rows []domain.AnalyticsSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range rows {
		s.SummaryDate = domain.Day(s.SummaryDate)
		r.rows[summaryKey{day: s.SummaryDate.Format(domain.DateLayout), org: s.Organization}] = s
	}
	return nil
}

func (r *SummaryRepository) List(ctx context.Context, from, to time.Time, organizations []string) ([]domain.AnalyticsSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filter := domain.AnalyticsFilter{Organizations: organizations}
	var out []domain.AnalyticsSummary
	for _, s := range r.rows {
		if !filter.MatchesKey(domain.GroupKey{Organization: s.Organization}) {
			continue
		}
		if !from.IsZero() && s.SummaryDate.Before(domain.Day(from)) {
			continue
		}
		if !to.IsZero() && s.SummaryDate.After(domain.Day(to)) {
			continue
		}
		out = append(out, s)
	}
	sortSummaries(out)
	return out, nil
}

func (r *SummaryRepository) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.AnalyticsSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.AnalyticsSummary
	for _, s := range r.rows {
		if s.SummaryDate.Before(cutoff) {
			out = append(out, s)
		}
	}
	sortSummaries(out)
	return out, nil
}

func (r *SummaryRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for k, s := range r.rows {
		if s.SummaryDate.Before(cutoff) {
			delete(r.rows, k)
			removed++
		}
	}
	return removed, nil
}

func sortSummaries(rows []domain.AnalyticsSummary) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].SummaryDate.Equal(rows[j].SummaryDate) {
			return rows[i].SummaryDate.Before(rows[j].SummaryDate)
		}
		return rows[i].Organization < rows[j].Organization
	})
}
