package events

import (
	"context"
	"sync"
	"time"

	"github.com/example/ec-order-core/internal/infrastructure/logger"
)

// Publisher writes events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event.
func NewNoopPublisher() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, Event) error { return nil }

func (noopPublisher) Close() error { return nil }

// Bus publishes events in the background so a slow or unavailable broker never
// affects the outcome of a command. Failures are logged and dropped.
type Bus struct {
	publisher Publisher
	timeout   time.Duration
	log       *logger.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewBus(publisher Publisher, timeout time.Duration, log *logger.Logger) *Bus {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Bus{publisher: publisher, timeout: timeout, log: log.Component("events")}
}

// Emit wraps payload in an envelope and publishes it asynchronously.
func (b *Bus) Emit(ctx context.Context, orderID, eventType string, payload any) {
	e, err := New(orderID, eventType, payload)
	if err != nil {
		b.log.Error("failed to build event", "event_type", eventType, "order_id", orderID, "error", err)
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.log.Warn("bus closed, event dropped", "event_type", eventType, "order_id", orderID)
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer cancel()

		if err := b.publisher.Publish(ctx, e); err != nil {
			b.log.Warn("failed to publish event", "event_type", eventType, "order_id", orderID, "error", err)
			return
		}
		b.log.Debug("event published", "event_type", eventType, "order_id", orderID, "event_id", e.ID)
	}()
}

// Wait blocks until every in-flight publication has finished.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Close drains in-flight publications and closes the publisher. Events
// emitted after Close are dropped.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	return b.publisher.Close()
}
