package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/example/ec-order-core/internal/events"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
)

// Connect dials the server, retrying a few times before giving up.
func Connect(ctx context.Context, url, name string, log *logger.Logger) (*nats.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var (
		nc  *nats.Conn
		err error
	)
	for i := 0; i < 3; i++ {
		nc, err = nats.Connect(url,
			nats.Name(name),
			nats.MaxReconnects(5),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn("NATS disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info("NATS reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err == nil {
			log.Info("connected to NATS", "url", url)
			return nc, nil
		}

		log.Warn("failed to connect to NATS", "attempt", i+1, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("failed to connect to NATS after retries: %w", err)
}

// Publisher writes events to <subject>.<event type>.
type Publisher struct {
	nc      *nats.Conn
	subject string
	log     *logger.Logger
}

func NewPublisher(nc *nats.Conn, subject string, log *logger.Logger) *Publisher {
	return &Publisher{nc: nc, subject: subject, log: log.Component("nats-publisher")}
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.subject + "." + e.EventType
	for i := 0; i < 3; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := p.nc.Publish(subject, data); err != nil {
			p.log.Warn("failed to publish to NATS", "attempt", i+1, "subject", subject, "error", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if err := p.nc.FlushWithContext(ctx); err != nil {
			p.log.Warn("failed to flush NATS connection", "error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to publish %s after retries", e.EventType)
}

func (p *Publisher) Close() error {
	if p.nc != nil && !p.nc.IsClosed() {
		if err := p.nc.Drain(); err != nil {
			p.nc.Close()
			return err
		}
	}
	return nil
}

type MessageHandler func(ctx context.Context, key, value []byte) error

// Subscriber consumes every event under the subject as part of a queue
// group, so each event is handled by one notifier instance.
type Subscriber struct {
	nc      *nats.Conn
	subject string
	queue   string
	log     *logger.Logger
}

func NewSubscriber(nc *nats.Conn, subject, queue string, log *logger.Logger) *Subscriber {
	return &Subscriber{nc: nc, subject: subject, queue: queue, log: log.Component("nats-subscriber")}
}

// Consume blocks until ctx is cancelled.
func (s *Subscriber) Consume(ctx context.Context, handler MessageHandler) error {
	sub, err := s.nc.QueueSubscribe(s.subject+".>", s.queue, func(msg *nats.Msg) {
		if err := handler(ctx, []byte(msg.Subject), msg.Data); err != nil {
			s.log.Error("error handling message", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		s.log.Warn("failed to drain subscription", "error", err)
	}
	return ctx.Err()
}

func (s *Subscriber) Close() error {
	if !s.nc.IsClosed() {
		return s.nc.Drain()
	}
	return nil
}
