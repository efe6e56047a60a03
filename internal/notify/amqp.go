package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

// channel is the part of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a durable topic exchange, routed by
// event type (booking.confirmed, booking.cancelled).
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
	logger   *logrus.Logger

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
	ch channel
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange string, logger *logrus.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: exchange declare failed: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event models.BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event failed: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    event.BookingID + ":" + event.Type,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, event.Type, false, false, msg); err != nil {
		p.logger.WithError(err).WithField("event", event.Type).Warn("rabbitmq: publish failed")
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ch.Close()
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Handler processes one delivered event.
type Handler func(ctx context.Context, event models.BookingEvent) error

// Consume binds a durable queue to every booking event on the exchange and
// hands each message to h until ctx is done. Messages h rejects are dropped
// rather than redelivered forever.
func Consume(ctx context.Context, url, exchange, queue string, h Handler, logger *logrus.Logger) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: exchange declare failed: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue declare failed: %w", err)
	}
	if err := ch.QueueBind(queue, "booking.*", exchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue bind failed: %w", err)
	}
	if err := ch.Qos(50, 0, false); err != nil {
		logger.WithError(err).Warn("rabbitmq: set QoS failed")
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume failed: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("rabbitmq: delivery channel closed")
			}
			if err := dispatch(ctx, d.Body, h); err != nil {
				logger.WithError(err).Warn("rabbitmq: dropping booking event")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func dispatch(ctx context.Context, body []byte, h Handler) error {
	var event models.BookingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return h(ctx, event)
}
