// Package bootstrap builds the infrastructure shared by the binaries from
// configuration: the order and notification stores and the event transport.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/example/ec-order-core/internal/config"
	"github.com/example/ec-order-core/internal/events"
	"github.com/example/ec-order-core/internal/infrastructure/kafka"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
	natsinfra "github.com/example/ec-order-core/internal/infrastructure/nats"
	"github.com/example/ec-order-core/internal/infrastructure/store"
)

type Stores struct {
	Orders        store.OrderStore
	Notifications store.NotificationStore
	// Health pings the backing database.
	Health func(ctx context.Context) error
	Close  func()
}

// OpenStores connects to the configured store driver.
func OpenStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Stores, error) {
	switch cfg.Store.Driver {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		return &Stores{
			Orders:        store.NewMemoryOrderStore(),
			Notifications: store.NewMemoryNotificationStore(),
			Health:        func(context.Context) error { return nil },
			Close:         func() {},
		}, nil

	case "mongo":
		client, err := store.ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Mongo.DB)
		orders, err := store.NewMongoOrderStore(ctx, db)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		notifications, err := store.NewMongoNotificationStore(ctx, db)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		log.Info("connected to MongoDB", "database", cfg.Mongo.DB)
		return &Stores{
			Orders:        orders,
			Notifications: notifications,
			Health:        func(ctx context.Context) error { return client.Ping(ctx, nil) },
			Close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					log.Warn("failed to disconnect MongoDB", "error", err)
				}
			},
		}, nil

	case "postgres":
		db, err := store.ConnectPostgres(cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if err := store.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate PostgreSQL: %w", err)
		}
		log.Info("connected to PostgreSQL")
		return &Stores{
			Orders:        store.NewPostgresOrderStore(db),
			Notifications: store.NewPostgresNotificationStore(db),
			Health:        db.PingContext,
			Close: func() {
				if err := db.Close(); err != nil {
					log.Warn("failed to close PostgreSQL", "error", err)
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// NewPublisher returns the publisher for the configured events driver.
func NewPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "noop":
		return events.NewNoopPublisher(), nil
	case "kafka":
		log.Info("publishing events to Kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		return kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic), nil
	case "nats":
		nc, err := natsinfra.Connect(ctx, cfg.NATS.URL, "ec-order-core-publisher", log)
		if err != nil {
			return nil, err
		}
		log.Info("publishing events to NATS", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
		return natsinfra.NewPublisher(nc, cfg.NATS.Subject, log), nil
	}
	return nil, fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
}

// Consume runs handler for every event on the configured transport until ctx
// is cancelled.
func Consume(ctx context.Context, cfg *config.Config, log *logger.Logger, handler func(ctx context.Context, key, value []byte) error) error {
	switch cfg.Events.Driver {
	case "kafka":
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		log.Info("consuming events from Kafka", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID)
		return consumer.Consume(ctx, handler)
	case "nats":
		nc, err := natsinfra.Connect(ctx, cfg.NATS.URL, "ec-order-core-notifier", log)
		if err != nil {
			return err
		}
		sub := natsinfra.NewSubscriber(nc, cfg.NATS.Subject, cfg.NATS.Queue, log)
		defer sub.Close()
		log.Info("consuming events from NATS", "subject", cfg.NATS.Subject, "queue", cfg.NATS.Queue)
		return sub.Consume(ctx, handler)
	}
	return fmt.Errorf("events driver %q cannot be consumed", cfg.Events.Driver)
}
