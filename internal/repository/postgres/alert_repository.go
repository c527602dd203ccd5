package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"
)

const alertColumns = `id, organization, location, item, alert_type, days_left, reorder_qty, priority_score, alert_date, explanation, created_at, acknowledged_at`

type alertRepository struct {
	db *DB
}

func NewAlertRepository(db *DB) *alertRepository {
	return &alertRepository{db: db}
}

// InsertIfAbsent relies on the (organization, location, item, alert_date)
// unique key; a conflicting row returns nothing and is skipped.
func (r *alertRepository) InsertIfAbsent(ctx context.Context, alerts []domain.AlertRecord) ([]domain.AlertRecord, error) {
	if len(alerts) == 0 {
		return nil, nil
	}
	var inserted []domain.AlertRecord
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO stock_alerts (id, organization, location, item, alert_type, days_left,
				reorder_qty, priority_score, alert_date, explanation, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (organization, location, item, alert_date) DO NOTHING
			RETURNING id
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, a := range alerts {
			a.AlertDate = domain.Day(a.AlertDate)
			var id string
			err := stmt.QueryRowContext(ctx, a.ID, a.Organization, a.Location, a.Item, a.AlertType,
				a.DaysLeft, a.ReorderQty, a.PriorityScore, a.AlertDate, a.Explanation, a.CreatedAt).Scan(&id)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to insert alert for %s: %w", a.Key(), err)
			}
			inserted = append(inserted, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func (r *alertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]domain.AlertRecord, error) {
	b := newClauseBuilder("")
	b.applyGroupFilter(filter.AnalyticsFilter)
	if !filter.From.IsZero() {
		b.add("%salert_date >= $%d", domain.Day(filter.From))
	}
	if !filter.To.IsZero() {
		b.add("%salert_date <= $%d", domain.Day(filter.To))
	}
	if filter.AlertType != "" {
		b.add("%salert_type = $%d", filter.AlertType)
	}
	query := `SELECT ` + alertColumns + ` FROM stock_alerts` + b.where() +
		` ORDER BY alert_date DESC, priority_score DESC, organization, location, item` + b.limit(filter.Limit)

	var rows []domain.AlertRecord
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, b.args...); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return rows, nil
}

// Acknowledge keeps the first acknowledgement time.
func (r *alertRepository) Acknowledge(ctx context.Context, id string, at time.Time) (*domain.AlertRecord, error) {
	var row domain.AlertRecord
	err := r.db.GetContext(ctx, &row, `
		UPDATE stock_alerts SET acknowledged_at = COALESCE(acknowledged_at, $2)
		WHERE id = $1
		RETURNING `+alertColumns, id, at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert %s: %w", id, err)
	}
	return &row, nil
}

func (r *alertRepository) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.AlertRecord, error) {
	var rows []domain.AlertRecord
	query := `SELECT ` + alertColumns + ` FROM stock_alerts WHERE alert_date < $1 ORDER BY alert_date`
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list expired alerts: %w", err)
	}
	return rows, nil
}

func (r *alertRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return deleteBefore(ctx, r.db, "stock_alerts", "alert_date", cutoff)
}

func deleteBefore(ctx context.Context, db *DB, table, column string, cutoff time.Time) (int, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+column+` < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
