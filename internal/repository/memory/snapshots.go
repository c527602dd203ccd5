package memory

import (
	"context"
	"sync"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

// SnapshotPersister keeps the last saved derived tables in memory.
// FailNext makes the next Save return the given error, for tests.
type SnapshotPersister struct {
	mu        sync.Mutex
	analytics []domain.StockAnalytics
	reorder   []domain.ReorderRecommendation
	usage     []domain.UsageStats
	failNext  error
}

func NewSnapshotPersister() *SnapshotPersister {
	return &SnapshotPersister{}
}

func (p *SnapshotPersister) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

func (p *SnapshotPersister) takeFailure() error {
	err := p.failNext
	p.failNext = nil
	return err
}

func (p *SnapshotPersister) SaveStockAnalytics(ctx context.Context, rows []domain.StockAnalytics) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return err
	}
	p.analytics = append([]domain.StockAnalytics(nil), rows...)
	return nil
}

func (p *SnapshotPersister) SaveReorderRecommendations(ctx context.Context, rows []domain.ReorderRecommendation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return err
	}
	p.reorder = append([]domain.ReorderRecommendation(nil), rows...)
	return nil
}

func (p *SnapshotPersister) SaveUsageStats(ctx context.Context, rows []domain.UsageStats) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return err
	}
	p.usage = append([]domain.UsageStats(nil), rows...)
	return nil
}

func (p *SnapshotPersister) LoadStockAnalytics(ctx context.Context) ([]domain.StockAnalytics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.StockAnalytics(nil), p.analytics...), nil
}

func (p *SnapshotPersister) LoadReorderRecommendations(ctx context.Context) ([]domain.ReorderRecommendation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ReorderRecommendation(nil), p.reorder...), nil
}

func (p *SnapshotPersister) LoadUsageStats(ctx context.Context) ([]domain.UsageStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.UsageStats(nil), p.usage...), nil
}
