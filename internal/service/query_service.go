package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/analytics"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/cache"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/snapshot"
)

const (
	defaultHistoryDays = 7
	defaultTopActions  = 5
	maxHistoryDays     = 90
)

// ErrGroupNotFound means the group is absent from the current snapshot.
var ErrGroupNotFound = errors.New("service: group not found")

// Page is one filtered read of a published snapshot.
type Page[T any] struct {
	Version     uint64    `json:"version"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Total       int       `json:"total"`
	Rows        []T       `json:"rows"`
}

// GroupHistory is the closing-stock sparkline of one group.
type GroupHistory struct {
	domain.GroupKey
	Points []domain.HistoryPoint `json:"points"`
}

// QueryService serves reads over the published snapshots. Results are
// cached per snapshot version, so a newer snapshot never hits a stale entry.
type QueryService struct {
	snapshots *snapshot.Store
	repos     *repository.Repositories
	scorer    *analytics.CriticalityScorer
	cache     cache.QueryCache
	now       func() time.Time
}

func NewQueryService(snapshots *snapshot.Store, repos *repository.Repositories, scorer *analytics.CriticalityScorer, cacheImpl cache.QueryCache) *QueryService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopQueryCache()
	}
	if scorer == nil {
		scorer = analytics.NewCriticalityScorer(domain.DefaultCriticalityConfig())
	}
	return &QueryService{
		snapshots: snapshots,
		repos:     repos,
		scorer:    scorer,
		cache:     cacheImpl,
		now:       time.Now,
	}
}

// WithClock overrides the clock used to decide which orders count as today's.
func (s *QueryService) WithClock(now func() time.Time) *QueryService {
	s.now = now
	return s
}

func (s *QueryService) cached(ctx context.Context, view string, version uint64, filter domain.AnalyticsFilter, dest any, load func() error) error {
	if ok, err := s.cache.Get(ctx, view, version, filter, dest); err == nil && ok {
		return nil
	} else if err != nil {
		log.Warn().Err(err).Str("view", view).Msg("query cache get failed")
	}

	if err := load(); err != nil {
		return err
	}

	if err := s.cache.Set(ctx, view, version, filter, dest); err != nil {
		log.Warn().Err(err).Str("view", view).Msg("query cache set failed")
	}
	return nil
}

func (s *QueryService) StockAnalytics(ctx context.Context, filter domain.AnalyticsFilter) (*Page[domain.StockAnalytics], error) {
	snap := s.snapshots.StockAnalytics()
	page := &Page[domain.StockAnalytics]{}
	err := s.cached(ctx, "stock", snap.Version, filter, page, func() error {
		rows := make([]domain.StockAnalytics, 0)
		for _, r := range snap.Rows {
			if !filter.MatchesKey(r.GroupKey) {
				continue
			}
			if filter.RiskStatus != "" && r.RiskStatus != filter.RiskStatus {
				continue
			}
			rows = append(rows, r)
		}
		fillPage(page, snap.Version, snap.RefreshedAt, rows, filter.Limit)
		return nil
	})
	return page, err
}

// Reorder returns recommendations in priority order, decorated with
// criticality, the weighted score and whether the group was ordered today.
func (s *QueryService) Reorder(ctx context.Context, filter domain.AnalyticsFilter) (*Page[domain.RankedRecommendation], error) {
	snap := s.snapshots.ReorderRecommendations()
	page := &Page[domain.RankedRecommendation]{}
	// ordered flags reset at midnight, so entries are scoped to the day
	view := "reorder:" + domain.Day(s.now()).Format(domain.DateLayout)
	err := s.cached(ctx, view, snap.Version, filter, page, func() error {
		ordered, err := s.orderedToday(ctx)
		if err != nil {
			return err
		}
		rows := make([]domain.RankedRecommendation, 0)
		for _, r := range snap.Rows {
			if !filter.MatchesKey(r.GroupKey) {
				continue
			}
			if filter.UrgencyLevel != "" && r.UrgencyLevel != filter.UrgencyLevel {
				continue
			}
			if filter.ExcludeOrdered && ordered[r.GroupKey] {
				continue
			}
			ranked := s.scorer.Rank(r)
			ranked.Ordered = ordered[r.GroupKey]
			rows = append(rows, ranked)
		}
		fillPage(page, snap.Version, snap.RefreshedAt, rows, filter.Limit)
		return nil
	})
	return page, err
}

func (s *QueryService) UsageStats(ctx context.Context, filter domain.AnalyticsFilter) (*Page[domain.UsageStats], error) {
	snap := s.snapshots.UsageStats()
	page := &Page[domain.UsageStats]{}
	err := s.cached(ctx, "usage", snap.Version, filter, page, func() error {
		rows := make([]domain.UsageStats, 0)
		for _, r := range snap.Rows {
			if !filter.MatchesKey(r.GroupKey) {
				continue
			}
			if filter.TrendDirection != "" && r.TrendDirection != filter.TrendDirection {
				continue
			}
			if filter.DemandPattern != "" && r.DemandPattern != filter.DemandPattern {
				continue
			}
			rows = append(rows, r)
		}
		fillPage(page, snap.Version, snap.RefreshedAt, rows, filter.Limit)
		return nil
	})
	return page, err
}

// TopActions ranks open recommendations by weighted priority and explains
// each one. Groups already ordered today are left out.
func (s *QueryService) TopActions(ctx context.Context, filter domain.AnalyticsFilter, n int) ([]domain.RankedRecommendation, error) {
	if n <= 0 {
		n = defaultTopActions
	}
	filter.ExcludeOrdered = true
	filter.Limit = 0

	page, err := s.Reorder(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows := append([]domain.RankedRecommendation(nil), page.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].WeightedPriorityScore > rows[j].WeightedPriorityScore
	})
	if len(rows) > n {
		rows = rows[:n]
	}

	index := snapshot.StockAnalyticsIndex(s.snapshots.StockAnalytics())
	for i := range rows {
		if sa, ok := index[rows[i].GroupKey]; ok {
			rows[i].Explanation = analytics.Explain(sa)
		}
	}
	return rows, nil
}

func (s *QueryService) Summary(ctx context.Context, from, to time.Time, organizations []string) ([]domain.AnalyticsSummary, error) {
	if to.IsZero() {
		to = domain.Day(s.now())
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: from is after to", ErrInvalidRange)
	}
	rows, err := s.repos.Summaries.List(ctx, domain.Day(from), domain.Day(to), organizations)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = make([]domain.AnalyticsSummary, 0)
	}
	return rows, nil
}

func (s *QueryService) History(ctx context.Context, key domain.GroupKey, days int) (*GroupHistory, error) {
	if days <= 0 {
		days = defaultHistoryDays
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}
	points, err := s.repos.Ledger.History(ctx, key, days)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, key)
	}
	return &GroupHistory{GroupKey: key, Points: points}, nil
}

// WhatIf projects the runway of a group after ordering qty units.
func (s *QueryService) WhatIf(key domain.GroupKey, qty int64) (*analytics.WhatIf, error) {
	if qty < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidOrder)
	}
	sa, ok := snapshot.StockAnalyticsIndex(s.snapshots.StockAnalytics())[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, key)
	}
	w := analytics.ProjectOrder(sa, qty)
	return &w, nil
}

func (s *QueryService) Alerts(ctx context.Context, filter domain.AlertFilter) ([]domain.AlertRecord, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, fmt.Errorf("%w: from is after to", ErrInvalidRange)
	}
	rows, err := s.repos.Alerts.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = make([]domain.AlertRecord, 0)
	}
	return rows, nil
}

// Criticality exposes the rules in effect.
func (s *QueryService) Criticality() domain.CriticalityConfig {
	return s.scorer.Config()
}

func (s *QueryService) orderedToday(ctx context.Context) (map[domain.GroupKey]bool, error) {
	ordered, err := s.repos.Orders.OrderedSince(ctx, domain.Day(s.now()))
	if err != nil {
		return nil, fmt.Errorf("load today's orders: %w", err)
	}
	return ordered, nil
}

func fillPage[T any](page *Page[T], version uint64, at time.Time, rows []T, limit int) {
	page.Version = version
	page.RefreshedAt = at
	page.Total = len(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	page.Rows = rows
}
