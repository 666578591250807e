package main

import (
	"context"
	"errors"
	"os"
	"time"

	"installments/internal/amqp"
	"installments/internal/cache"
	"installments/internal/cli"
	"installments/internal/sheets"
	"installments/internal/sheets/google"
	sheetsmem "installments/internal/sheets/memory"
	"installments/internal/storage"
	"installments/internal/worker"
)

func main() {
	cfg := cli.MustLoadConfig("sheets-worker")
	logger := cli.SetupLogger(cfg, "sheets-worker")
	logger.Info("Starting sheets-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the sheets worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	// The worker reads the sync queue straight from SQLite.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	caches := cache.NewManager()
	caches.StartCleanup(10 * time.Minute)
	defer caches.Stop()

	var exporter sheets.Exporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := google.NewFromConfig(ctx, cfg)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		client.RegisterCaches(caches)
		exporter = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		// Dry run: events are consumed and acknowledged, rows stay in memory.
		exporter = sheetsmem.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, exporting to memory only")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, repo, exporter)

	// Catch up on anything written while the worker was down.
	if n, err := syncWorker.ProcessPending(ctx, cfg.SyncBatchSize); err != nil {
		logger.Error("Startup sync failed", "error", err)
	} else if n > 0 {
		logger.Info("Startup sync exported pending installments", "count", n)
	}

	poller := worker.NewPoller(syncWorker, cfg.SyncInterval, cfg.SyncBatchSize)
	if err := poller.Start(ctx); err != nil {
		logger.Error("Failed to start sync poller", "error", err)
		os.Exit(1)
	}

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- amqpClient.Consume(ctx, syncWorker.HandleEvent)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-consumeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := poller.Stop(shutdownCtx); err != nil {
		logger.Warn("Sync poller did not stop cleanly", "error", err)
	}
	logger.Info("Worker shutdown complete")
}
