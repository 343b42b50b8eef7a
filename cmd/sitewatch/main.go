package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sitewatch/internal/api"
	"sitewatch/internal/config"
	"sitewatch/internal/monitor"
	"sitewatch/internal/notify"
	"sitewatch/internal/probe"
	"sitewatch/internal/screenshot"
	"sitewatch/internal/storage"
	"sitewatch/internal/storage/postgres"
	"sitewatch/internal/storage/sqlite"
)

func main() {
	// The main function is the entry point of the application.
	// It's responsible for initializing components, starting the server and
	// the monitor loop, and handling graceful shutdown.
	if err := run(); err != nil {
		log.Fatalf("application failed: %v", err)
	}
}

type closableStore interface {
	storage.Storer
	io.Closer
}

func run() error {
	// Load application configuration from .env / environment variables.
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	// Create a context that is canceled on OS signals like SIGINT or SIGTERM.
	// This is the foundation for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize the storage layer for the configured driver.
	var store closableStore
	switch cfg.DatabaseDriver {
	case "postgres":
		store, err = postgres.New(ctx, cfg.DatabaseURL)
	default:
		store, err = sqlite.New(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", cfg.DatabaseDriver, err)
	}
	defer store.Close()
	logger.Info("database connection successful",
		zap.String("driver", cfg.DatabaseDriver), zap.String("url", cfg.DatabaseURL))

	// Screenshot capture is best-effort and optional.
	var shots screenshot.Capturer = screenshot.Disabled{}
	if cfg.ScreenshotsEnabled {
		chrome, err := screenshot.NewChrome(cfg.ScreenshotDir, cfg.ScreenshotTimeout, logger)
		if err != nil {
			logger.Warn("screenshot capture unavailable, continuing without it", zap.Error(err))
		} else {
			shots = chrome
		}
	}

	prober := probe.New(cfg.HTTPTimeout, shots, logger)
	mon := monitor.New(store, prober, logger, monitor.Options{
		MaxConcurrency:   cfg.MaxConcurrency,
		ProbeDeadline:    cfg.ProbeDeadline,
		DefaultInterval:  cfg.DefaultInterval,
		FailureThreshold: cfg.FailureThreshold,
	})
	notifier := notify.NewLogNotifier(logger)
	server := api.NewServer(cfg.HTTPPort, mon, cfg.MinInterval, logger)

	server.Start()

	// The driver tick wakes the monitor loop; each site's own interval
	// decides whether it is actually checked.
	go func() {
		ticker := time.NewTicker(cfg.CheckTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				anomalies, err := mon.CheckAll(ctx)
				if err != nil {
					notifier.SystemError(ctx, err)
					continue
				}
				if len(anomalies) > 0 {
					notifier.Notify(ctx, anomalies)
				}
			}
		}
	}()

	logger.Info("sitewatch is running", zap.Duration("check_tick", cfg.CheckTick))

	// Block here until the context is canceled (e.g., by pressing Ctrl+C).
	<-ctx.Done()

	logger.Info("shutdown signal received, starting graceful shutdown...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown error: %w", err)
	}
	logger.Info("application shut down gracefully")
	return nil
}
