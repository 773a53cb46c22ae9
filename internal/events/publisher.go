// Package events publishes order events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bellavista/internal/models"
)

// DefaultTopic receives order.placed events.
const DefaultTopic = "bellavista.orders"

// OrderPlaced is the event type of a checked out cart.
const OrderPlaced = "order.placed"

// OrderEvent is the JSON body of an order event.
type OrderEvent struct {
	Type      string        `json:"type"`
	OrderID   string        `json:"order_id"`
	SessionID string        `json:"session_id"`
	Total     float64       `json:"total"`
	Order     *models.Order `json:"order"`
	SentAt    time.Time     `json:"sent_at"`
}

// MessageWriter is the part of kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends order events. A publisher without a writer drops events silently.
type Publisher struct {
	writer MessageWriter
	logger *zap.Logger
	now    func() time.Time
}

// NewPublisher creates a Kafka publisher for brokers and topic. With no brokers it returns a
// no-op publisher.
func NewPublisher(brokers []string, topic string, logger *zap.Logger) *Publisher {
	if len(brokers) == 0 {
		return NewPublisherWithWriter(nil, logger)
	}
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireOne,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(w, logger)
}

// NewPublisherWithWriter creates a publisher over an existing writer, which may be nil.
func NewPublisherWithWriter(w MessageWriter, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: w, logger: logger, now: time.Now}
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool {
	return p.writer != nil
}

// RecordOrder publishes an order.placed event keyed by session id.
func (p *Publisher) RecordOrder(ctx context.Context, order *models.Order) error {
	if p.writer == nil {
		return nil
	}

	body, err := json.Marshal(OrderEvent{
		Type:      OrderPlaced,
		OrderID:   order.OrderNumber,
		SessionID: order.SessionID,
		Total:     order.Total,
		Order:     order,
		SentAt:    p.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.SessionID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(OrderPlaced)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s for %s: %w", OrderPlaced, order.OrderNumber, err)
	}
	p.logger.Debug("order event published", zap.String("order", order.OrderNumber))
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
