package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/app"
	"github.com/creatrr/competitor-tracker-go/internal/config"
	"github.com/creatrr/competitor-tracker-go/internal/util"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Competitor tracker starting...",
		zap.String("discovery_mode", cfg.Discovery.Mode),
		zap.String("log_level", cfg.Logging.Level),
	)

	buildCtx, buildCancel := context.WithTimeout(context.Background(), 30*time.Second)
	container, err := app.Build(buildCtx, cfg, logger)
	buildCancel()
	if err != nil {
		logger.Error("Failed to assemble application services", zap.Error(err))
		os.Exit(1)
	}
	defer container.Close()

	// Runtime lifecycle context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)

	// Callback server comes up before leases are requested so the hub's
	// verification GET can be answered.
	if container.Server != nil {
		go func() {
			logger.Info("Callback server listening", zap.String("addr", container.Server.Addr))
			if err := container.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		go func() {
			subscribed, failed, err := container.Subscriber.SubscribeAll(ctx)
			if err != nil {
				logger.Error("Initial subscription pass failed", zap.Error(err))
				return
			}
			logger.Info("Initial subscriptions requested",
				zap.Int("subscribed", subscribed),
				zap.Int("failed", failed))
		}()
	}

	go container.Runner.Start(ctx)

	logger.Info("Tracker started, waiting for signals...")

	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("Server error", zap.Error(err))
	}

	// Graceful shutdown
	logger.Info("Shutting down gracefully...")
	cancel()
	container.Runner.Stop()

	if container.Server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := container.Server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during server shutdown", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
}
