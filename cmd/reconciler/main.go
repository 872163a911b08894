package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ec-order-core/internal/bootstrap"
	"github.com/example/ec-order-core/internal/config"
	"github.com/example/ec-order-core/internal/domain/payment"
	"github.com/example/ec-order-core/internal/events"
	"github.com/example/ec-order-core/internal/infrastructure/chapa"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.New("reconciler", "info", "text").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("reconciler", cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log, *once); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("reconciler stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	publisher, err := bootstrap.NewPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	bus := events.NewBus(publisher, cfg.Events.PublishTimeout, log)
	defer bus.Close()

	gateway := chapa.NewClient(cfg.Chapa.BaseURL, cfg.Chapa.SecretKey, cfg.Chapa.Timeout)
	paymentSvc := payment.NewService(stores.Orders, gateway, bus, payment.Config{
		Currency:    cfg.Chapa.Currency,
		CallbackURL: cfg.Chapa.CallbackURL,
		ReturnURL:   cfg.Chapa.ReturnURL,
	}, log)

	reconciler := payment.NewReconciler(paymentSvc, payment.ReconcilerConfig{
		Interval:   cfg.Reconciler.Interval,
		Grace:      cfg.Reconciler.Grace,
		StaleAfter: cfg.Reconciler.StaleAfter,
		BatchSize:  cfg.Reconciler.BatchSize,
	}, log)

	if once {
		stats, err := reconciler.RunOnce(ctx)
		if err != nil {
			return err
		}
		log.Info("sweep complete", "checked", stats.Checked, "verified", stats.Verified,
			"unverified", stats.Unverified, "skipped", stats.Skipped)
		return nil
	}
	return reconciler.Run(ctx)
}
