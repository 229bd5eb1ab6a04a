package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"vehicle_parking/internal/domain"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a topic exchange, routed by event type
// (reservation.created, reservation.completed, reservation.cancelled).
type AMQPPublisher struct {
	exchange string
	logger   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   amqpChannel
}

// NewAMQPPublisher dials url, retrying with backoff until ctx is done or the
// attempts run out, and declares exchange as a durable topic exchange.
func NewAMQPPublisher(ctx context.Context, url, exchange string, logger *zap.Logger) (*AMQPPublisher, error) {
	const maxRetries = 5
	retryDelay := time.Second

	for attempt := 1; ; attempt++ {
		conn, ch, err := dialAMQP(url, exchange)
		if err == nil {
			logger.Info("connected to rabbitmq", zap.String("exchange", exchange), zap.Int("attempt", attempt))
			return &AMQPPublisher{exchange: exchange, logger: logger, conn: conn, ch: ch}, nil
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", maxRetries, err)
		}
		logger.Warn("rabbitmq connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", retryDelay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
			retryDelay = retryDelay * 3 / 2
		}
	}
}

func dialAMQP(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event domain.ReservationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("rabbitmq channel not available")
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(publishCtx, p.exchange, string(event.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
	})
	if err != nil {
		return fmt.Errorf("publish to rabbitmq: %w", err)
	}
	p.logger.Debug("reservation event published", zap.String("routing_key", string(event.Type)))
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.ch != nil {
		err = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
		p.conn = nil
	}
	return err
}
