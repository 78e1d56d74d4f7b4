package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finetrail/internal/amqp"
	"finetrail/internal/cli"
	"finetrail/internal/config"
	"finetrail/internal/log"
	"finetrail/internal/sheets"
	gsheet "finetrail/internal/sheets/google"
	mem "finetrail/internal/sheets/memory"
	"finetrail/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting finetrail-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is private to this process; the worker will only see its own data")
	}

	// The worker only reads the ledger, it never publishes.
	storeCfg := *cfg
	storeCfg.AMQPURL = ""
	app, err := cli.OpenApp(context.Background(), &storeCfg, logger, false)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	mirror, err := newMirror(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		_ = app.Close()
		os.Exit(1)
	}

	w := worker.NewMirrorWorker(app.Service, app.Service.Store(), mirror, worker.Config{
		ResyncInterval: cfg.SyncInterval,
		BatchSize:      cfg.SyncBatchSize,
	}, logger)

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			_ = app.Close()
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled, relying on periodic resync only")
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := w.Stop(ctx); err != nil {
			logger.Error("Mirror worker stop error", log.FieldError, err)
		}
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
		if err := app.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("Failed to start mirror worker", log.FieldError, err)
		os.Exit(1)
	}

	if consumer != nil {
		go func() {
			if err := consumer.Consume(ctx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}

// newMirror returns the Google Sheets mirror when configured and an
// in-process mirror otherwise.
func newMirror(cfg *config.Config, logger *log.Logger) (sheets.LedgerMirror, error) {
	if !cfg.MirrorEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory")
		return mem.New(), nil
	}
	client, err := gsheet.New(context.Background(), gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		Prefix:          cfg.GoogleSheetPrefix,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}
