package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/joshdurbin/linkregistry/internal/config"
	"github.com/joshdurbin/linkregistry/internal/logging"
	"github.com/joshdurbin/linkregistry/internal/metrics"
	"github.com/joshdurbin/linkregistry/internal/registry"
	"github.com/joshdurbin/linkregistry/internal/shortener"
	"github.com/joshdurbin/linkregistry/internal/store"
	"github.com/joshdurbin/linkregistry/internal/store/memory"
	"github.com/joshdurbin/linkregistry/internal/store/postgres"
	"github.com/joshdurbin/linkregistry/internal/store/sqlite"
	httpTransport "github.com/joshdurbin/linkregistry/internal/transport/http"
)

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyServerFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logs := logging.NewBuffer(cfg.Logging.BufferSize)
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr, logs)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promRegistry)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("error closing storage", "error", err)
		}
	}()
	logger.Info("storage ready", "backend", cfg.Storage.Backend)

	generator, err := shortener.NewGenerator(cfg.Shortener, backend)
	if err != nil {
		return fmt.Errorf("failed to create shortener generator: %w", err)
	}
	logger.Info("shortener generator selected", "type", generator.Type())

	reg := registry.New(
		store.WithRetry(backend, cfg.Storage.PersistAttempts),
		generator,
		registry.WithStorageKey(cfg.Storage.Key),
		registry.WithLogger(logger),
		registry.WithMetrics(m),
	)
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Error("error closing registry", "error", err)
		}
	}()

	// Refuse to start rather than overwrite an unreadable snapshot on the first write
	if err := reg.Load(ctx); err != nil {
		return fmt.Errorf("failed to load saved links: %w", err)
	}

	if cfg.Registry.MaintenanceInterval > 0 {
		if err := reg.StartMaintenance(ctx, cfg.Registry.MaintenanceInterval, cfg.Registry.AutoPurge); err != nil {
			return fmt.Errorf("failed to start maintenance: %w", err)
		}
	}

	server := httpTransport.NewServer(reg, cfg.Server, httpTransport.ServerOptions{
		Logger:   logger,
		Logs:     logs,
		Metrics:  m,
		Gatherer: promRegistry,
		Verbose:  cfg.Logging.Verbose,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// applyServerFlags copies explicitly set flags over the environment configuration
func applyServerFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetString("port")
	}
	if flags.Changed("server-url") {
		cfg.Server.ServerURL, _ = flags.GetString("server-url")
	}
	if flags.Changed("storage") {
		cfg.Storage.Backend, _ = flags.GetString("storage")
	}
	if flags.Changed("db-path") {
		cfg.Storage.SQLitePath, _ = flags.GetString("db-path")
	}
	if flags.Changed("sqlite-driver") {
		cfg.Storage.SQLiteDriver, _ = flags.GetString("sqlite-driver")
	}
	if flags.Changed("postgres-dsn") {
		cfg.Storage.PostgresDSN, _ = flags.GetString("postgres-dsn")
	}
	if flags.Changed("storage-key") {
		cfg.Storage.Key, _ = flags.GetString("storage-key")
	}
	if flags.Changed("generator") {
		cfg.Shortener.Type, _ = flags.GetString("generator")
	}
	if flags.Changed("counter-step") {
		cfg.Shortener.CounterStep, _ = flags.GetInt64("counter-step")
	}
	if flags.Changed("maintenance-interval") {
		cfg.Registry.MaintenanceInterval, _ = flags.GetDuration("maintenance-interval")
	}
	if flags.Changed("auto-purge") {
		cfg.Registry.AutoPurge, _ = flags.GetBool("auto-purge")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
	}
	if flags.Changed("verbose") {
		cfg.Logging.Verbose, _ = flags.GetBool("verbose")
	}
}

// openBackend opens the configured persistent store
func openBackend(ctx context.Context, cfg config.StorageConfig) (store.Backend, error) {
	switch cfg.Backend {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StorageSQLite:
		return sqlite.NewWithDriver(cfg.SQLiteDriver, cfg.SQLitePath)
	case config.StoragePostgres:
		return postgres.New(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
