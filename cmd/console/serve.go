package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/application/dashboard"
	"github.com/BenjaminAGH/NocturneScope/application/editor"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/config"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/upstream"
	"github.com/BenjaminAGH/NocturneScope/interfaces/http/rest"
	"github.com/BenjaminAGH/NocturneScope/pkg/auth"
	appmetrics "github.com/BenjaminAGH/NocturneScope/pkg/metrics"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the console HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	collectors := appmetrics.NewDefault()
	client := upstream.NewClient(cfg.Upstream, logger, collectors)
	sessions := auth.NewMemorySessionStore()
	defer sessions.Close()

	manager := editor.NewManager(client, cfg.Editor, logger, collectors)
	dashboardService := dashboard.NewService(client, logger)

	watcher, err := config.NewWatcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}
	defer watcher.Stop()
	watcher.OnChange(func(updated config.Config) {
		manager.ApplyConfig(updated.Editor)
	})

	router := rest.NewRouter(cfg, client, sessions, manager, dashboardService, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting console",
			zap.String("address", srv.Addr),
			zap.String("environment", string(cfg.Environment)),
			zap.String("upstream", cfg.Upstream.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down console")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	// Editor sessions flush pending saves before the process exits.
	manager.Shutdown(shutdownCtx)

	logger.Info("console stopped")
	return nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
