package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

const ledgerColumns = `date, organization, location, item, opening_stock, received, issued, closing_stock, lead_time_days`

type ledgerRepository struct {
	db *DB
}

func NewLedgerRepository(db *DB) *ledgerRepository {
	return &ledgerRepository{db: db}
}

// Append inserts new ledger identities and ignores ones already present.
func (r *ledgerRepository) Append(ctx context.Context, records []domain.LedgerRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	inserted := 0
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO inventory_ledger (`+ledgerColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (organization, location, item, date) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			res, err := stmt.ExecContext(ctx,
				domain.Day(rec.Date), rec.Organization, rec.Location, rec.Item,
				rec.OpeningStock, rec.Received, rec.Issued, rec.ClosingStock, rec.LeadTimeDays,
			)
			if err != nil {
				return fmt.Errorf("failed to insert ledger record %s %s: %w", rec.Key(), rec.Date.Format(domain.DateLayout), err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// TrailingWindows returns the latest n records per group in ascending date order.
func (r *ledgerRepository) TrailingWindows(ctx context.Context, n int) (map[domain.GroupKey][]domain.LedgerRecord, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM (
			SELECT ` + ledgerColumns + `,
			       ROW_NUMBER() OVER (PARTITION BY organization, location, item ORDER BY date DESC) AS rn
			FROM inventory_ledger
		) w
		WHERE rn <= $1
		ORDER BY organization, location, item, date
	`
	var rows []domain.LedgerRecord
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, n); err != nil {
		return nil, fmt.Errorf("failed to load trailing windows: %w", err)
	}

	out := make(map[domain.GroupKey][]domain.LedgerRecord)
	for _, rec := range rows {
		k := rec.Key()
		out[k] = append(out[k], rec)
	}
	return out, nil
}

func (r *ledgerRepository) History(ctx context.Context, key domain.GroupKey, n int) ([]domain.HistoryPoint, error) {
	query := `
		SELECT date, closing_stock, issued FROM (
			SELECT date, closing_stock, issued
			FROM inventory_ledger
			WHERE organization = $1 AND location = $2 AND item = $3
			ORDER BY date DESC
			LIMIT $4
		) h
		ORDER BY date
	`
	var points []domain.HistoryPoint
	if err := sqlx.SelectContext(ctx, r.db, &points, query, key.Organization, key.Location, key.Item, n); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return points, nil
}

func (r *ledgerRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM inventory_ledger`); err != nil {
		return 0, fmt.Errorf("failed to count ledger: %w", err)
	}
	return n, nil
}
