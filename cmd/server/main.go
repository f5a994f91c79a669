// Package main is the entry point for the ecosort HTTP server.
// In Go, the `main` package with a `main()` function is what gets executed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/app"
	"github.com/fleveque/ecosort/internal/capture"
	"github.com/fleveque/ecosort/internal/capture/gocvcam"
	"github.com/fleveque/ecosort/internal/config"
	"github.com/fleveque/ecosort/internal/server"
	"github.com/fleveque/ecosort/internal/session"
)

func main() {
	// We call run() separately so deferred cleanup functions execute properly
	// (deferred functions don't run when os.Exit is called directly).
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("ECOSORT_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := app.NewLogger(cfg.Log.Level, false)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync commonly fails on stdout/stderr, so the error is ignored.
	defer func() { _ = logger.Sync() }()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// The server-side camera is whatever is plugged into this host.
	cameras := capture.NewProvider(cfg.Camera, gocvcam.Opener(cfg.Camera.WarmupFrames), logger)
	store := a.NewStore(session.ProviderCamera(cameras))
	go a.RunMaintenance(ctx, store)

	srv := server.New(cfg, server.Deps{Service: a.Service, Sessions: store}, logger)

	// Graceful shutdown: listen for SIGINT (Ctrl+C) or SIGTERM (docker stop).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// select waits until one of the channels is ready.
	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	// Give in-flight requests 10 seconds to complete. Shutdown also closes
	// every session, which releases any open camera.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
