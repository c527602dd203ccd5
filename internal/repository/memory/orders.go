package memory

import (
	"context"
	"sync"
	"time"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

type OrderRepository struct {
	mu      sync.RWMutex
	orders  []domain.OrderEvent
	actions []domain.ActionLog
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{}
}

func (r *OrderRepository) Record(ctx context.Context, order domain.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, order)
	return nil
}

// List returns newest first.
func (r *OrderRepository) List(ctx context.Context, since time.Time) ([]domain.OrderEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.OrderEvent
	for i := len(r.orders) - 1; i >= 0; i-- {
		if !r.orders[i].OrderedAt.Before(since) {
			out = append(out, r.orders[i])
		}
	}
	return out, nil
}

func (r *OrderRepository) OrderedSince(ctx context.Context, since time.Time) (map[domain.GroupKey]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[domain.GroupKey]bool)
	for _, o := range r.orders {
		if !o.OrderedAt.Before(since) {
			out[o.Key()] = true
		}
	}
	return out, nil
}

func (r *OrderRepository) LogAction(ctx context.Context, action domain.ActionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
	return nil
}

func (r *OrderRepository) ListActions(ctx context.Context, since time.Time, limit int) ([]domain.ActionLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.ActionLog
	for i := len(r.actions) - 1; i >= 0; i-- {
		a := r.actions[i]
		if a.CreatedAt.Before(since) {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
