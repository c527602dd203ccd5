package broker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

const (
	EventTypeAlertRaised = "ALERT_RAISED"
	EventTypeOrderPlaced = "ORDER_PLACED"
)

// BaseEvent is the envelope every published event carries.
type BaseEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

type AlertRaisedEvent struct {
	BaseEvent
	Alert domain.AlertRecord `json:"alert"`
}

type OrderPlacedEvent struct {
	BaseEvent
	Order domain.OrderEvent `json:"order"`
}

// EventPublisher turns domain records into broker events.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBase(eventType string) BaseEvent {
	return BaseEvent{EventID: uuid.NewString(), EventType: eventType, OccurredAt: time.Now().UTC()}
}

// PublishAlerts emits one ALERT_RAISED event per alert, keyed by group.
func (ep *EventPublisher) PublishAlerts(ctx context.Context, alerts []domain.AlertRecord) error {
	events := make([]Keyed, 0, len(alerts))
	for _, a := range alerts {
		events = append(events, Keyed{
			Key:   a.Key().String(),
			Event: AlertRaisedEvent{BaseEvent: newBase(EventTypeAlertRaised), Alert: a},
		})
	}
	return ep.producer.PublishEvents(ctx, events)
}

func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, order domain.OrderEvent) error {
	return ep.producer.PublishEvents(ctx, []Keyed{{
		Key:   order.Key().String(),
		Event: OrderPlacedEvent{BaseEvent: newBase(EventTypeOrderPlaced), Order: order},
	}})
}

func (ep *EventPublisher) Close() error {
	return ep.producer.Close()
}

// NoopPublisher drops events when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishAlerts(context.Context, []domain.AlertRecord) error { return nil }

func (NoopPublisher) PublishOrderPlaced(context.Context, domain.OrderEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
