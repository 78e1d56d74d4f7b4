package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finetrail/internal/cache"
	"finetrail/internal/cli"
	apphttp "finetrail/internal/http"
	"finetrail/internal/log"
)

const (
	shutdownTimeout = 30 * time.Second
	cacheSweepEvery = time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	app, err := cli.OpenApp(context.Background(), cfg, logger, true)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	caches := cache.NewManager(logger)
	caches.Register(app.Service.SnapshotCache())
	caches.StartCleanup(cacheSweepEvery)

	srv := apphttp.NewServer(":"+cfg.Port, cfg, app.Service, logger)
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := app.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting finetrail server", log.FieldOperation, log.OpStartup,
		"port", cfg.Port, "backend", cfg.DataBackend, "events", app.Backend.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
