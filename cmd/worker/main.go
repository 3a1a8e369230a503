package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loomwork/loom/internal/config"
	"github.com/loomwork/loom/internal/engine"
	"github.com/loomwork/loom/internal/integration"
	"github.com/loomwork/loom/internal/integration/builtin"
	"github.com/loomwork/loom/internal/metrics"
	"github.com/loomwork/loom/internal/queue"
	"github.com/loomwork/loom/internal/workflow"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := workflow.NewPostgresStore(db)

	registry := integration.NewRegistry(logger)
	for _, d := range builtin.All() {
		if err := registry.Register(d); err != nil {
			slog.Error("failed to register integration", "integration", d.ID, "error", err)
			os.Exit(1)
		}
	}

	metricsRegistry := prometheus.NewRegistry()
	m := metrics.New()
	if err := m.Register(metricsRegistry); err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddress,
		Handler: promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}),
	}
	go func() {
		slog.Info("starting metrics server", "address", cfg.MetricsAddress)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Crash-recovery: any execution left running from a prior process
	// is failed, never resumed.
	queue.RecoverStuckExecutions(ctx, store, logger)

	exec := engine.New(store, registry, m, logger)
	processor := queue.New(store, exec, queue.Config{
		IdleInterval:  cfg.IdleInterval,
		ErrorInterval: cfg.ErrorInterval,
	}, m, logger)

	go func() {
		slog.Info("starting queue processor",
			"idle_interval", cfg.IdleInterval,
			"error_interval", cfg.ErrorInterval,
		)
		processor.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	processor.Stop()
	processor.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server forced to shutdown", "error", err)
	}

	slog.Info("worker stopped")
}
