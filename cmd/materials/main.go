package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"materials/internal/amqp"
	"materials/internal/cache"
	"materials/internal/cli"
	"materials/internal/config"
	apphttp "materials/internal/http"
	applog "materials/internal/log"
	"materials/internal/metrics"
	"materials/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
	cacheSweep      = 10 * time.Minute
)

func main() {
	cli.LoadEnvFile()

	base := cli.SetupLogger(config.Load().Env)
	logger := base.WithComponent(applog.ComponentApp)
	cfg := cli.LoadConfig(logger, (*config.Config).Validate)

	logger.Info("Starting materials", "env", cfg.Env, "port", cfg.Port)

	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	opts := []services.Option{}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
		opts = append(opts, services.WithMetrics(m))
	}

	if cfg.MirrorEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Records are still saved; the worker sweep picks them up later.
			logger.Warn("AMQP unavailable, sheet mirror will rely on the worker sweep", "error", err)
		} else {
			defer client.Close()
			opts = append(opts, services.WithPublisher(client))
			logger.Info("Publishing record sync messages", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := services.NewRecordService(repo, opts...)

	caches := cache.NewManager(logger.Logger)
	caches.Register(svc.DashboardCache())
	caches.StartCleanup(cacheSweep)
	defer caches.Stop()

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		SecretKey: cfg.SecretKey,
		Metrics:   m,
		Logger:    base,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", "error", err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger.Logger)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
		return
	}
	logger.Info("Server stopped")
}
