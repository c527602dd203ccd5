package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

const summaryColumns = `summary_date, organization, total_groups, high_risk_groups, critical_groups, reorder_count, total_reorder_qty, avg_days_left, updated_at`

type summaryRepository struct {
	db *DB
}

func NewSummaryRepository(db *DB) *summaryRepository {
	return &summaryRepository{db: db}
}

func (r *summaryRepository) Upsert(ctx context.Context, rows []domain.AnalyticsSummary) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO analytics_summary (`+summaryColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (summary_date, organization)
			DO UPDATE SET
				total_groups = EXCLUDED.total_groups,
				high_risk_groups = EXCLUDED.high_risk_groups,
				critical_groups = EXCLUDED.critical_groups,
				reorder_count = EXCLUDED.reorder_count,
				total_reorder_qty = EXCLUDED.total_reorder_qty,
				avg_days_left = EXCLUDED.avg_days_left,
				updated_at = EXCLUDED.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, s := range rows {
			_, err := stmt.ExecContext(ctx, domain.Day(s.SummaryDate), s.Organization, s.TotalGroups,
				s.HighRiskGroups, s.CriticalGroups, s.ReorderCount, s.TotalReorderQty, s.AvgDaysLeft, s.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to upsert summary %s: %w", s.Organization, err)
			}
		}
		return nil
	})
}

func (r *summaryRepository) List(ctx context.Context, from, to time.Time, organizations []string) ([]domain.AnalyticsSummary, error) {
	b := newClauseBuilder("")
	if !from.IsZero() {
		b.add("%ssummary_date >= $%d", domain.Day(from))
	}
	if !to.IsZero() {
		b.add("%ssummary_date <= $%d", domain.Day(to))
	}
	b.anyOf("organization", organizations)

	query := `SELECT ` + summaryColumns + ` FROM analytics_summary` + b.where() + ` ORDER BY summary_date, organization`
	var rows []domain.AnalyticsSummary
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, b.args...); err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	return rows, nil
}

func (r *summaryRepository) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.AnalyticsSummary, error) {
	var rows []domain.AnalyticsSummary
	query := `SELECT ` + summaryColumns + ` FROM analytics_summary WHERE summary_date < $1 ORDER BY summary_date, organization`
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list expired summaries: %w", err)
	}
	return rows, nil
}

func (r *summaryRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return deleteBefore(ctx, r.db, "analytics_summary", "summary_date", cutoff)
}
