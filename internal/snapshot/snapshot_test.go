package snapshot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

func key(item string) domain.GroupKey {
	return domain.GroupKey{Organization: "O", Location: "L", Item: item}
}

func TestPublishReplacesWholeSnapshot(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 0, s.StockAnalytics().Len())

	first := s.PublishStockAnalytics([]domain.StockAnalytics{{GroupKey: key("b")}, {GroupKey: key("a")}}, time.Unix(1, 0))
	require.Equal(t, 2, first.Len())
	assert.Equal(t, "a", first.Rows[0].Item)

	second := s.PublishStockAnalytics([]domain.StockAnalytics{{GroupKey: key("c")}}, time.Unix(2, 0))
	assert.Greater(t, second.Version, first.Version)
	assert.Equal(t, 1, s.StockAnalytics().Len())

	// readers holding the old snapshot keep a consistent view
	assert.Equal(t, 2, first.Len())
}

func TestRecommendationsOrderedByPriority(t *testing.T) {
	s := NewStore()
	snap := s.PublishReorderRecommendations([]domain.ReorderRecommendation{
		{GroupKey: key("low"), PriorityScore: 1},
		{GroupKey: key("b"), PriorityScore: 9},
		{GroupKey: key("a"), PriorityScore: 9},
	}, time.Now())

	require.Len(t, snap.Rows, 3)
	assert.Equal(t, "a", snap.Rows[0].Item)
	assert.Equal(t, "b", snap.Rows[1].Item)
	assert.Equal(t, "low", snap.Rows[2].Item)
}

func TestConcurrentReadsDuringPublish(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap := s.UsageStats()
				if snap.Len() > 0 {
					assert.Len(t, snap.Rows, 3)
				}
			}
		}()
	}
	for j := 0; j < 50; j++ {
		s.PublishUsageStats([]domain.UsageStats{{GroupKey: key("a")}, {GroupKey: key("b")}, {GroupKey: key("c")}}, time.Now())
	}
	wg.Wait()
}
