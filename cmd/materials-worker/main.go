package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"materials/internal/amqp"
	"materials/internal/cli"
	"materials/internal/config"
	applog "materials/internal/log"
	gsheet "materials/internal/sheets/google"
	"materials/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(config.Load().Env).WithComponent(applog.ComponentWorker)
	cfg := cli.LoadConfig(logger, (*config.Config).ValidateWorker)

	logger.Info("Starting materials-worker", "interval", cfg.SyncInterval, "batch_size", cfg.SyncBatchSize)

	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	ctx, stop := cli.SignalContext(logger.Logger)
	defer stop()

	sheetsClient, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	if err := sheetsClient.EnsureHeader(ctx); err != nil {
		logger.Error("Failed to write sheet header", "error", err, applog.FieldSheetsRef, cfg.GoogleSheetName)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	syncWorker := worker.NewSyncWorker(repo, sheetsClient, cfg.SyncBatchSize)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.MirrorEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			logger.Info("Consuming record sync messages", "queue", cfg.AMQPQueue)
			return client.RunConsumer(ctx, syncWorker.HandleSyncMessage)
		})
	} else {
		logger.Info("AMQP_URL not set, relying on the periodic sweep only")
	}

	g.Go(func() error {
		return sweep(ctx, logger, syncWorker, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}

// sweep runs a pending pass at start-up and then every interval.
func sweep(ctx context.Context, logger *applog.Logger, w *worker.SyncWorker, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, _, err := w.ProcessPending(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Periodic sync failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
