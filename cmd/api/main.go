package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/ec-order-core/internal/api"
	"github.com/example/ec-order-core/internal/auth"
	"github.com/example/ec-order-core/internal/bootstrap"
	"github.com/example/ec-order-core/internal/command"
	"github.com/example/ec-order-core/internal/config"
	"github.com/example/ec-order-core/internal/domain/notification"
	"github.com/example/ec-order-core/internal/domain/order"
	"github.com/example/ec-order-core/internal/domain/payment"
	"github.com/example/ec-order-core/internal/events"
	"github.com/example/ec-order-core/internal/infrastructure/chapa"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
	"github.com/example/ec-order-core/internal/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("api", "info", "text").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("api", cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log); err != nil {
		log.Error("api stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting order service",
		"store", cfg.Store.Driver, "events", cfg.Events.Driver, "port", cfg.HTTP.Port)

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
	defer func() {
		if err := bus.Close(); err != nil {
			log.Warn("failed to close event publisher", "error", err)
		}
	}()

	if cfg.Chapa.SecretKey == "" {
		log.Warn("CHAPA_SECRET_KEY is not set; payment initiation will be rejected by the gateway")
	}
	gateway := chapa.NewClient(cfg.Chapa.BaseURL, cfg.Chapa.SecretKey, cfg.Chapa.Timeout)

	// Domain services
	orderSvc := order.NewService(stores.Orders, log)
	paymentSvc := payment.NewService(stores.Orders, gateway, bus, payment.Config{
		Currency:    cfg.Chapa.Currency,
		CallbackURL: cfg.Chapa.CallbackURL,
		ReturnURL:   cfg.Chapa.ReturnURL,
	}, log)
	notificationSvc := notification.NewService(stores.Notifications)

	cmdHandler := command.NewHandler(orderSvc, paymentSvc, notificationSvc, bus, log)
	queryHandler := query.NewHandler(orderSvc, notificationSvc)
	dispatcher := api.NewCallbackDispatcher(cmdHandler.HandlePaymentCallback, cfg.HTTP.CallbackTimeout, log)

	router := api.NewRouter(api.RouterConfig{
		Handlers:       api.NewHandlers(cmdHandler, queryHandler, dispatcher, cfg.Chapa.WebhookSecret, log),
		JWTService:     auth.NewJWTService(cfg.JWT.Secret, 15*time.Minute),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Health:         stores.Health,
		Logger:         log,
	})

	var wg sync.WaitGroup
	if cfg.Reconciler.InAPI {
		reconciler := payment.NewReconciler(paymentSvc, payment.ReconcilerConfig{
			Interval:   cfg.Reconciler.Interval,
			Grace:      cfg.Reconciler.Grace,
			StaleAfter: cfg.Reconciler.StaleAfter,
			BatchSize:  cfg.Reconciler.BatchSize,
		}, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reconciler.Run(ctx)
		}()
	}

	server := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server started", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", "error", err)
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.Warn("payment callbacks still in flight at shutdown", "error", err)
	}
	wg.Wait()
	return nil
}
