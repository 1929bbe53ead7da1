package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/schooltrack/alert-engine/internal/core/domain"
	"github.com/schooltrack/alert-engine/internal/core/ports"
)

var _ ports.BatchPublisher = (*AlertPublisher)(nil)

const defaultExchange = "tracker.alerts"

// Connect dials the broker.
func Connect(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}
	return conn, nil
}

// AlertPublisher forwards persisted alert batches to a fanout exchange so
// push-notification and reporting consumers can bind their own queues.
// It owns one channel and must be driven from a single goroutine.
type AlertPublisher struct {
	ch       *amqp.Channel
	exchange string
}

// NewAlertPublisher opens a channel and declares a durable fanout exchange.
func NewAlertPublisher(conn *amqp.Connection, exchange string) (*AlertPublisher, error) {
	if exchange == "" {
		exchange = defaultExchange
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AlertPublisher{ch: ch, exchange: exchange}, nil
}

type batchMessage struct {
	Seq    uint64              `json:"seq"`
	At     int64               `json:"at"`
	Events []domain.AlertEvent `json:"events"`
}

// PublishBatch sends one message per batch.
func (p *AlertPublisher) PublishBatch(ctx context.Context, batch domain.Batch) error {
	body, err := json.Marshal(batchMessage{
		Seq:    batch.Seq,
		At:     batch.At.Unix(),
		Events: batch.Events,
	})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Type:         "alert.batch",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: publish batch %d: %w", domain.ErrDelivery, batch.Seq, err)
	}
	return nil
}

// Close releases the channel.
func (p *AlertPublisher) Close() error {
	return p.ch.Close()
}
