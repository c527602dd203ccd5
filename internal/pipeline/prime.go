package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Prime publishes the persisted derived tables so reads are served from the
// last completed refresh until the scheduler recomputes them.
func Prime(ctx context.Context, env *Env) error {
	now := env.now()

	analytics, err := env.Repos.Snapshots.LoadStockAnalytics(ctx)
	if err != nil {
		return fmt.Errorf("load stock analytics: %w", err)
	}
	recs, err := env.Repos.Snapshots.LoadReorderRecommendations(ctx)
	if err != nil {
		return fmt.Errorf("load reorder recommendations: %w", err)
	}
	usage, err := env.Repos.Snapshots.LoadUsageStats(ctx)
	if err != nil {
		return fmt.Errorf("load usage stats: %w", err)
	}

	env.Snapshots.PublishStockAnalytics(analytics, now)
	env.Snapshots.PublishReorderRecommendations(recs, now)
	env.Snapshots.PublishUsageStats(usage, now)

	log.Info().
		Int("stock_analytics", len(analytics)).
		Int("reorder_recommendations", len(recs)).
		Int("usage_stats", len(usage)).
		Msg("snapshots primed from storage")
	return nil
}
