package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/cache"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/repository"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/snapshot"
)

var (
	ErrInvalidOrder = errors.New("service: invalid order")
	ErrInvalidRange = errors.New("service: invalid date range")
)

const systemActor = "system"

// OrderPublisher announces placed orders to downstream consumers.
type OrderPublisher interface {
	PublishOrderPlaced(ctx context.Context, order domain.OrderEvent) error
}

type OrderRequest struct {
	Organization string `json:"organization"`
	Location     string `json:"location"`
	Item         string `json:"item"`
	Quantity     int64  `json:"quantity"`
	OrderedBy    string `json:"ordered_by"`
}

func (r OrderRequest) Key() domain.GroupKey {
	return domain.GroupKey{
		Organization: strings.TrimSpace(r.Organization),
		Location:     strings.TrimSpace(r.Location),
		Item:         strings.TrimSpace(r.Item),
	}
}

// ActionService records operator actions: orders, alert acknowledgements
// and exports. Every action lands in the action log.
type ActionService struct {
	orders    repository.OrderRepository
	alerts    repository.AlertRepository
	snapshots *snapshot.Store
	publisher OrderPublisher
	cache     cache.QueryCache
	now       func() time.Time
}

func NewActionService(repos *repository.Repositories, snapshots *snapshot.Store, publisher OrderPublisher, cacheImpl cache.QueryCache) *ActionService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopQueryCache()
	}
	return &ActionService{
		orders:    repos.Orders,
		alerts:    repos.Alerts,
		snapshots: snapshots,
		publisher: publisher,
		cache:     cacheImpl,
		now:       time.Now,
	}
}

func (s *ActionService) WithClock(now func() time.Time) *ActionService {
	s.now = now
	return s
}

// PlaceOrder records that a group was ordered. The urgency at order time
// is copied from the current recommendation when one exists.
func (s *ActionService) PlaceOrder(ctx context.Context, req OrderRequest) (*domain.OrderEvent, error) {
	key := req.Key()
	if key.Organization == "" || key.Location == "" || key.Item == "" {
		return nil, fmt.Errorf("%w: organization, location and item are required", ErrInvalidOrder)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrder, req.Quantity)
	}

	order := domain.OrderEvent{
		ID:           uuid.NewString(),
		Organization: key.Organization,
		Location:     key.Location,
		Item:         key.Item,
		Quantity:     req.Quantity,
		OrderedBy:    actor(req.OrderedBy),
		OrderedAt:    s.now().UTC(),
	}
	if rec, ok := snapshot.ReorderIndex(s.snapshots.ReorderRecommendations())[key]; ok {
		order.Urgency = rec.UrgencyLevel
	}

	if err := s.orders.Record(ctx, order); err != nil {
		return nil, fmt.Errorf("record order: %w", err)
	}
	s.logAction(ctx, domain.ActionLog{
		ActionType:   domain.ActionOrderPlaced,
		Actor:        order.OrderedBy,
		Organization: order.Organization,
		Location:     order.Location,
		Item:         order.Item,
		Details:      fmt.Sprintf("quantity=%d urgency=%s", order.Quantity, order.Urgency),
	})

	if err := s.cache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("invalidate query cache after order")
	}
	if s.publisher != nil {
		if err := s.publisher.PublishOrderPlaced(ctx, order); err != nil {
			log.Error().Err(err).Str("order_id", order.ID).Msg("publish order event")
		}
	}

	log.Info().
		Str("order_id", order.ID).
		Str("group", key.String()).
		Int64("quantity", order.Quantity).
		Msg("order recorded")
	return &order, nil
}

func (s *ActionService) Orders(ctx context.Context, since time.Time) ([]domain.OrderEvent, error) {
	if since.IsZero() {
		since = domain.Day(s.now()).AddDate(0, 0, -7)
	}
	orders, err := s.orders.List(ctx, since)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = make([]domain.OrderEvent, 0)
	}
	return orders, nil
}

func (s *ActionService) AcknowledgeAlert(ctx context.Context, id, by string) (*domain.AlertRecord, error) {
	alert, err := s.alerts.Acknowledge(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.logAction(ctx, domain.ActionLog{
		ActionType:   domain.ActionAlertAcked,
		Actor:        actor(by),
		Organization: alert.Organization,
		Location:     alert.Location,
		Item:         alert.Item,
		Details:      "alert_id=" + alert.ID,
	})
	return alert, nil
}

func (s *ActionService) RecordExport(ctx context.Context, by, format string, rows int) {
	s.logAction(ctx, domain.ActionLog{
		ActionType: domain.ActionReportExported,
		Actor:      actor(by),
		Details:    fmt.Sprintf("format=%s rows=%d", format, rows),
	})
}

func (s *ActionService) RecordManualRefresh(ctx context.Context, by, task string) {
	s.logAction(ctx, domain.ActionLog{
		ActionType: domain.ActionManualRefresh,
		Actor:      actor(by),
		Details:    "task=" + task,
	})
}

func (s *ActionService) Actions(ctx context.Context, since time.Time, limit int) ([]domain.ActionLog, error) {
	if since.IsZero() {
		since = domain.Day(s.now()).AddDate(0, 0, -7)
	}
	actions, err := s.orders.ListActions(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	if actions == nil {
		actions = make([]domain.ActionLog, 0)
	}
	return actions, nil
}

// logAction never fails the surrounding action; the audit trail is best effort.
func (s *ActionService) logAction(ctx context.Context, entry domain.ActionLog) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = s.now().UTC()
	if err := s.orders.LogAction(ctx, entry); err != nil {
		log.Error().Err(err).Str("action", string(entry.ActionType)).Msg("write action log")
	}
}

func actor(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return systemActor
	}
	return name
}
