package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

const (
	stockAnalyticsColumns = `organization, location, item, closing_stock, lead_time_days, avg_daily_usage, days_left, risk_status, record_count, last_updated`
	reorderColumns        = `organization, location, item, closing_stock, lead_time_days, avg_daily_usage, days_left, reorder_qty, reorder_qty_with_safety, urgency_level, priority_score, last_updated`
	usageStatsColumns     = `organization, location, item, avg_daily_usage_7d, avg_daily_usage_30d, min_usage_7d, max_usage_7d, usage_stddev_7d, trend_direction, usage_volatility_pct, demand_pattern, last_updated`
)

// snapshotRepository replaces each derived table wholesale inside one
// transaction, so a concurrent reader sees either the old or the new table.
type snapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *snapshotRepository {
	return &snapshotRepository{db: db}
}

func replaceTable[T any](ctx context.Context, db *DB, table, insert string, rows []T, args func(T) []interface{}) error {
	return db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
		if len(rows) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, args(row)...); err != nil {
				return fmt.Errorf("failed to insert into %s: %w", table, err)
			}
		}
		return nil
	})
}

func (r *snapshotRepository) SaveStockAnalytics(ctx context.Context, rows []domain.StockAnalytics) error {
	return replaceTable(ctx, r.db, "stock_analytics",
		`INSERT INTO stock_analytics (`+stockAnalyticsColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rows, func(s domain.StockAnalytics) []interface{} {
			return []interface{}{s.Organization, s.Location, s.Item, s.ClosingStock, s.LeadTimeDays,
				s.AvgDailyUsage, s.DaysLeft, s.RiskStatus, s.RecordCount, s.LastUpdated}
		})
}

func (r *snapshotRepository) SaveReorderRecommendations(ctx context.Context, rows []domain.ReorderRecommendation) error {
	return replaceTable(ctx, r.db, "reorder_recommendations",
		`INSERT INTO reorder_recommendations (`+reorderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rows, func(s domain.ReorderRecommendation) []interface{} {
			return []interface{}{s.Organization, s.Location, s.Item, s.ClosingStock, s.LeadTimeDays,
				s.AvgDailyUsage, s.DaysLeft, s.ReorderQty, s.ReorderQtyWithSafety, s.UrgencyLevel,
				s.PriorityScore, s.LastUpdated}
		})
}

func (r *snapshotRepository) SaveUsageStats(ctx context.Context, rows []domain.UsageStats) error {
	return replaceTable(ctx, r.db, "usage_stats",
		`INSERT INTO usage_stats (`+usageStatsColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rows, func(s domain.UsageStats) []interface{} {
			return []interface{}{s.Organization, s.Location, s.Item, s.AvgDailyUsage7d, s.AvgDailyUsage30d,
				s.MinUsage7d, s.MaxUsage7d, s.UsageStddev7d, s.TrendDirection, s.UsageVolatilityPct,
				s.DemandPattern, s.LastUpdated}
		})
}

func (r *snapshotRepository) LoadStockAnalytics(ctx context.Context) ([]domain.StockAnalytics, error) {
	var rows []domain.StockAnalytics
	query := `SELECT ` + stockAnalyticsColumns + ` FROM stock_analytics ORDER BY organization, location, item`
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load stock analytics: %w", err)
	}
	return rows, nil
}

func (r *snapshotRepository) LoadReorderRecommendations(ctx context.Context) ([]domain.ReorderRecommendation, error) {
	var rows []domain.ReorderRecommendation
	query := `SELECT ` + reorderColumns + ` FROM reorder_recommendations ORDER BY priority_score DESC, organization, location, item`
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load reorder recommendations: %w", err)
	}
	return rows, nil
}

func (r *snapshotRepository) LoadUsageStats(ctx context.Context) ([]domain.UsageStats, error) {
	var rows []domain.UsageStats
	query := `SELECT ` + usageStatsColumns + ` FROM usage_stats ORDER BY organization, location, item`
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load usage stats: %w", err)
	}
	return rows, nil
}
