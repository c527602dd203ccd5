package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON events to one topic.
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	return &Producer{writer: writer, topic: topic}
}

// PublishEvents writes all events in one batch. Events sharing a key land
// on the same partition, so per-group ordering holds.
func (p *Producer) PublishEvents(ctx context.Context, events []Keyed) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	now := time.Now().UTC()
	for _, e := range events {
		payload, err := json.Marshal(e.Event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(e.Key), Value: payload, Time: now})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write messages to kafka: %w", err)
	}

	log.Debug().Str("topic", p.topic).Int("events", len(msgs)).Msg("published events")
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Keyed pairs an event with its partition key.
type Keyed struct {
	Key   string
	Event any
}
