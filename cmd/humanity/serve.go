package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/bootstrap"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, cleanup, err := bootstrap.Init(ctx, configPath)
		if err != nil {
			return err
		}
		logger := app.Logger
		cfg := app.Config

		srv := server.New(cfg, app.Routes, logger)

		if cfg.Cleanup.Enabled {
			app.Sweeper.RunPeriodic(ctx, cfg.CleanupInterval)
			logger.Info("periodic sweep enabled", zap.Duration("interval", cfg.CleanupInterval))
		}

		errCh := make(chan error, 1)
		go func() {
			addr := fmt.Sprintf(":%d", cfg.App.Port)
			logger.Info("server listening", zap.String("addr", addr))
			errCh <- srv.Listen(addr)
		}()

		if err := app.Registrar.Register(); err != nil {
			logger.Warn("service registration failed", zap.Error(err))
		}

		select {
		case err = <-errCh:
			logger.Error("server stopped", zap.Error(err))
		case <-ctx.Done():
			logger.Info("shutting down server...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if serr := srv.ShutdownWithContext(shutdownCtx); serr != nil {
			logger.Error("server forced to shutdown", zap.Error(serr))
		}
		cleanup(shutdownCtx)
		return err
	},
}
