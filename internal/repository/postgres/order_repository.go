package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

const (
	orderColumns  = `id, organization, location, item, quantity, urgency, ordered_by, ordered_at`
	actionColumns = `id, action_type, actor, organization, location, item, details, created_at`
)

type orderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *orderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Record(ctx context.Context, o domain.OrderEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_events (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, o.ID, o.Organization, o.Location, o.Item, o.Quantity, o.Urgency, o.OrderedBy, o.OrderedAt)
	if err != nil {
		return fmt.Errorf("failed to record order: %w", err)
	}
	return nil
}

func (r *orderRepository) List(ctx context.Context, since time.Time) ([]domain.OrderEvent, error) {
	var rows []domain.OrderEvent
	query := `SELECT ` + orderColumns + ` FROM order_events WHERE ordered_at >= $1 ORDER BY ordered_at DESC`
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, since); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return rows, nil
}

func (r *orderRepository) OrderedSince(ctx context.Context, since time.Time) (map[domain.GroupKey]bool, error) {
	var keys []domain.GroupKey
	query := `SELECT DISTINCT organization, location, item FROM order_events WHERE ordered_at >= $1`
	if err := sqlx.SelectContext(ctx, r.db, &keys, query, since); err != nil {
		return nil, fmt.Errorf("failed to load ordered groups: %w", err)
	}
	out := make(map[domain.GroupKey]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out, nil
}

func (r *orderRepository) LogAction(ctx context.Context, a domain.ActionLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO action_log (`+actionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.ActionType, a.Actor, a.Organization, a.Location, a.Item, a.Details, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to log action: %w", err)
	}
	return nil
}

func (r *orderRepository) ListActions(ctx context.Context, since time.Time, limit int) ([]domain.ActionLog, error) {
	b := newClauseBuilder("", since)
	query := `SELECT ` + actionColumns + ` FROM action_log WHERE created_at >= $1 ORDER BY created_at DESC` + b.limit(limit)
	var rows []domain.ActionLog
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, b.args...); err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	return rows, nil
}
