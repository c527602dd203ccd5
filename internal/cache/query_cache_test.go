package cache

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/config"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

func TestFilterHashIsOrderInsensitive(t *testing.T) {
	a := domain.AnalyticsFilter{Locations: []string{"Ward B", "Ward A"}, RiskStatus: domain.RiskHigh}
	b := domain.AnalyticsFilter{Locations: []string{"Ward A", " Ward B"}, RiskStatus: domain.RiskHigh}
	assert.Equal(t, filterHash(a), filterHash(b))

	c := domain.AnalyticsFilter{Locations: []string{"Ward A"}, RiskStatus: domain.RiskHigh}
	assert.NotEqual(t, filterHash(a), filterHash(c))

	assert.Equal(t, "default", filterHash(domain.AnalyticsFilter{}))
}

func TestQueryKeyIncludesVersion(t *testing.T) {
	f := domain.AnalyticsFilter{Items: []string{"Insulin"}}
	assert.NotEqual(t, buildQueryKey("stock", 1, f), buildQueryKey("stock", 2, f))
	assert.NotEqual(t, buildQueryKey("stock", 1, f), buildQueryKey("reorder", 1, f))
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(nil, 60)
	require.NoError(t, c.Set(ctx, "stock", 1, domain.AnalyticsFilter{}, []int{1}))

	var out []int
	hit, err := c.Get(ctx, "stock", 1, domain.AnalyticsFilter{}, &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.InvalidateAll(ctx))
}

func TestRedisQueryCacheRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(config.CacheConfig{RedisURL: url})
	require.NoError(t, err)
	defer client.Close()

	c := NewQueryCache(client, 30)
	f := domain.AnalyticsFilter{Organizations: []string{"Helping Hands"}}
	rows := []domain.StockAnalytics{{GroupKey: domain.GroupKey{Organization: "Helping Hands", Item: "Rice"}, DaysLeft: 4}}
	require.NoError(t, c.Set(ctx, "stock", 7, f, rows))

	var got []domain.StockAnalytics
	hit, err := c.Get(ctx, "stock", 7, f, &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, rows[0].GroupKey, got[0].GroupKey)

	require.NoError(t, c.InvalidateAll(ctx))
	hit, err = c.Get(ctx, "stock", 7, f, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}
