package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

const (
	queryKeyPrefix     = "intellistock:query"
	queryScanBatchSize = 100
)

// QueryCache memoizes filtered reads of the published snapshots. Keys
// carry the snapshot version, so a publish makes older entries
// unreachable even before InvalidateAll clears them.
type QueryCache interface {
	Get(ctx context.Context, view string, version uint64, filter domain.AnalyticsFilter, dest any) (bool, error)
	Set(ctx context.Context, view string, version uint64, filter domain.AnalyticsFilter, value any) error
	InvalidateAll(ctx context.Context) error
}

type redisQueryCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopQueryCache struct{}

// NewQueryCache wraps an existing client. A nil client yields the no-op cache.
func NewQueryCache(client *redis.Client, ttlSeconds int) QueryCache {
	if client == nil {
		return &noopQueryCache{}
	}
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisQueryCache{client: client, ttl: ttl}
}

func NewNoopQueryCache() QueryCache {
	return &noopQueryCache{}
}

func (c *redisQueryCache) Get(ctx context.Context, view string, version uint64, filter domain.AnalyticsFilter, dest any) (bool, error) {
	payload, err := c.client.Get(ctx, buildQueryKey(view, version, filter)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode %s cache: %w", view, err)
	}
	return true, nil
}

func (c *redisQueryCache) Set(ctx context.Context, view string, version uint64, filter domain.AnalyticsFilter, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s cache: %w", view, err)
	}
	if err := c.client.Set(ctx, buildQueryKey(view, version, filter), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisQueryCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, queryKeyPrefix, queryScanBatchSize)
}

func (n *noopQueryCache) Get(context.Context, string, uint64, domain.AnalyticsFilter, any) (bool, error) {
	return false, nil
}

func (n *noopQueryCache) Set(context.Context, string, uint64, domain.AnalyticsFilter, any) error {
	return nil
}

func (n *noopQueryCache) InvalidateAll(context.Context) error { return nil }

func buildQueryKey(view string, version uint64, filter domain.AnalyticsFilter) string {
	return fmt.Sprintf("%s:%s:v%d:%s", queryKeyPrefix, view, version, filterHash(filter))
}

func filterHash(filter domain.AnalyticsFilter) string {
	parts := []string{}

	if len(filter.Organizations) > 0 {
		parts = append(parts, "organizations="+joinStrings(filter.Organizations))
	}
	if len(filter.Locations) > 0 {
		parts = append(parts, "locations="+joinStrings(filter.Locations))
	}
	if len(filter.Items) > 0 {
		parts = append(parts, "items="+joinStrings(filter.Items))
	}
	if filter.RiskStatus != "" {
		parts = append(parts, "risk_status="+string(filter.RiskStatus))
	}
	if filter.UrgencyLevel != "" {
		parts = append(parts, "urgency_level="+string(filter.UrgencyLevel))
	}
	if filter.TrendDirection != "" {
		parts = append(parts, "trend_direction="+string(filter.TrendDirection))
	}
	if filter.DemandPattern != "" {
		parts = append(parts, "demand_pattern="+string(filter.DemandPattern))
	}
	if filter.ExcludeOrdered {
		parts = append(parts, "exclude_ordered=true")
	}
	if filter.Limit > 0 {
		parts = append(parts, "limit="+strconv.Itoa(filter.Limit))
	}

	if len(parts) == 0 {
		return "default"
	}

	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// joinStrings keeps values case-sensitive since group keys are exact matches.
func joinStrings(values []string) string {
	c := append([]string(nil), values...)
	for i := range c {
		c[i] = strings.TrimSpace(c[i])
	}
	sort.Strings(c)
	return strings.Join(c, ",")
}
