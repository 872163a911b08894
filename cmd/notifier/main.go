package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ec-order-core/internal/bootstrap"
	"github.com/example/ec-order-core/internal/config"
	"github.com/example/ec-order-core/internal/email"
	"github.com/example/ec-order-core/internal/infrastructure/logger"
	"github.com/example/ec-order-core/internal/notification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("notifier", "info", "text").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("notifier", cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting email notification service",
		"events", cfg.Events.Driver,
		"smtp", cfg.SMTP.Host+":"+cfg.SMTP.Port,
		"from", cfg.SMTP.From)

	emailSvc := email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
	handler := notification.NewHandler(emailSvc, cfg.SMTP.AdminEmail, log)

	if err := bootstrap.Consume(ctx, cfg, log, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("notifier stopped")
}
