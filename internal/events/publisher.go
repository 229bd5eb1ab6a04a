// Package events fans committed reservation transitions out to dashboards and
// message brokers.
package events

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/metrics"
)

type Publisher interface {
	Publish(ctx context.Context, event domain.ReservationEvent) error
}

type Nop struct{}

func (Nop) Publish(context.Context, domain.ReservationEvent) error { return nil }

type named struct {
	name string
	Publisher
}

// Multi delivers every event to each of its publishers.
type Multi struct {
	targets []named
	metrics *metrics.Metrics
}

func NewMulti(m *metrics.Metrics) *Multi {
	return &Multi{metrics: m}
}

// Add registers p under name, which labels the publish metrics.
func (m *Multi) Add(name string, p Publisher) *Multi {
	m.targets = append(m.targets, named{name: name, Publisher: p})
	return m
}

func (m *Multi) Publish(ctx context.Context, event domain.ReservationEvent) error {
	var errs []error
	for _, t := range m.targets {
		err := t.Publish(ctx, event)
		m.metrics.ObservePublish(t.name, err)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatcher decouples request handling from broker latency. Publish only
// enqueues; a single worker started by Run delivers to the wrapped publisher.
type Dispatcher struct {
	next   Publisher
	queue  chan domain.ReservationEvent
	logger *zap.Logger
}

func NewDispatcher(next Publisher, buffer int, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		next:   next,
		queue:  make(chan domain.ReservationEvent, buffer),
		logger: logger,
	}
}

// Publish never blocks. When the buffer is full the event is dropped and
// logged.
func (d *Dispatcher) Publish(_ context.Context, event domain.ReservationEvent) error {
	select {
	case d.queue <- event:
		return nil
	default:
		d.logger.Warn("event buffer full, dropping event",
			zap.String("type", string(event.Type)),
			zap.Int("reservation_id", event.ReservationID))
		return errors.New("events: dispatcher buffer full")
	}
}

// Run delivers queued events until ctx is cancelled, then drains what is
// already buffered.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		case <-ctx.Done():
			for {
				select {
				case event := <-d.queue:
					d.deliver(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.ReservationEvent) {
	if err := d.next.Publish(ctx, event); err != nil {
		d.logger.Error("failed to publish reservation event",
			zap.String("type", string(event.Type)),
			zap.Int("reservation_id", event.ReservationID),
			zap.Error(err))
	}
}
