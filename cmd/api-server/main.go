package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/prototrack/prototrack/pkg/apiserver"
	"github.com/prototrack/prototrack/pkg/config"
	"github.com/prototrack/prototrack/pkg/eventbus"
	"github.com/prototrack/prototrack/pkg/invoice"
	"github.com/prototrack/prototrack/pkg/storage"
	"github.com/prototrack/prototrack/pkg/store/postgres"
	redisclient "github.com/prototrack/prototrack/pkg/store/redis"
	"github.com/prototrack/prototrack/pkg/supplier"
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

	if err := db.AutoMigrate(); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	deps := apiserver.Dependencies{}

	redis, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, running without cache and events", zap.Error(err))
	} else {
		defer redis.Close()
		deps.Redis = redis
		deps.Bus = eventbus.NewBus(redis.Client())
	}

	files, err := storage.NewStore(&cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialize attachment storage", zap.Error(err))
	}
	deps.Files = files

	if cfg.Supplier.DSN != "" {
		directory, err := supplier.Open(cfg.Supplier.DSN, cfg.Supplier.Timeout, cfg.Supplier.ResultLimit)
		if err != nil {
			logger.Warn("supplier directory unavailable", zap.Error(err))
		} else {
			defer directory.Close()
			deps.Suppliers = directory
		}
	}
	if cfg.Invoice.BaseURL != "" {
		deps.Invoices = invoice.NewClient(cfg.Invoice.BaseURL, cfg.Invoice.Timeout)
	}

	server := apiserver.NewServer(db, cfg, logger, deps)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.ReadTimeout * 2,
	}

	go func() {
		logger.Info("starting API server", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("starting metrics server", zap.Int("port", cfg.Server.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("metrics server forced to shutdown", zap.Error(err))
	}
}
