package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/prototrack/prototrack/pkg/config"
	"github.com/prototrack/prototrack/pkg/notify"
	"github.com/prototrack/prototrack/pkg/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	mailer := notify.NewSMTPMailer(&cfg.SMTP)
	repo := postgres.NewNotificationRepository(db.DB())
	relay := notify.NewRelay(repo, mailer, logger, cfg.Notifier.PollInterval, cfg.Notifier.BatchSize, cfg.Notifier.MaxAttempts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := relay.Run(ctx); err != nil && err != context.Canceled {
			logger.Fatal("notifier stopped with error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("notifier shutting down")
}
