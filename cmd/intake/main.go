package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	env "github.com/Netflix/go-env"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/goliatone/go-message-intake/core"
	"github.com/goliatone/go-message-intake/metrics"
	"github.com/goliatone/go-message-intake/rest"
	sqlstore "github.com/goliatone/go-message-intake/store/sql"
	"github.com/goliatone/go-message-intake/webhooks"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	_, logger := glog.Resolve("intake", nil, nil)
	logger = glog.Ensure(logger)

	db, err := openDatabase(config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("database close failed", "error", closeErr.Error())
		}
	}()

	factory, err := sqlstore.NewRepositoryFactoryFromDB(db)
	if err != nil {
		return fmt.Errorf("store wiring failed: %w", err)
	}

	recorder := metrics.NewMemoryRecorder()
	service, err := core.NewService(
		core.Config{WebhookSecret: config.WebhookSecret},
		core.WithLogger(logger),
		core.WithMetricsRecorder(recorder),
		core.WithStoreProvider(factory),
	)
	if err != nil {
		return fmt.Errorf("service wiring failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := service.Store().EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema setup failed: %w", err)
	}
	if strings.TrimSpace(config.WebhookSecret) == "" {
		logger.Error("webhook secret is not configured; readiness will fail until it is set")
	}

	pipeline := webhooks.NewPipeline(
		webhooks.NewHeaderHMACVerifier(service.SecretSource()),
		service.Store(),
		service.Logger(),
		recorder,
	)
	server := rest.NewServer(service, pipeline, rest.WithMetricsSnapshotter(recorder))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

// openDatabase resolves a DSN into a bun DB: postgres:// DSNs use lib/pq,
// sqlite:// DSNs (and bare paths) use mattn/go-sqlite3.
func openDatabase(dsn string) (*bun.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}

	path := strings.TrimPrefix(dsn, "sqlite://")
	if !strings.Contains(path, "?") && !strings.HasPrefix(path, "file:") {
		path += "?_busy_timeout=5000"
	}
	sqldb, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
