// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"commitsync/internal/api"
	"commitsync/internal/apikey"
	"commitsync/internal/config"
	"commitsync/internal/extractor"
	"commitsync/internal/ingest"
	"commitsync/internal/metrics"
	"commitsync/internal/puller"
	"commitsync/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	db := store.New(dbpool)
	authority := apikey.NewAuthority(db, logger)
	ingestion := ingest.NewService(dbpool, db, logger, m, cfg.MaxBatchSize)
	ext := extractor.New(logger)

	appPuller := puller.New(db, ingestion, ext, logger, m, puller.Config{
		MirrorDir:    cfg.MirrorDir,
		PollInterval: cfg.PullPollInterval,
		Concurrency:  cfg.PullConcurrency,
		MaxAttempts:  cfg.PullMaxAttempts,
		FetchTimeout: cfg.PullFetchTimeout,
		BatchSize:    cfg.MaxBatchSize,
		SealKey:      cfg.SealKey,
	})

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Ingestion:      ingestion,
		Authority:      authority,
		Logger:         logger,
		Metrics:        m,
		Registry:       registry,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	// 6. Start the puller in a separate goroutine
	go appPuller.Start(ctx)

	// 7. Start the HTTP server
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// 8. Wait for shutdown signal
	logger.Info("Application started. Waiting for shutdown signal...")
	<-ctx.Done()
	logger.Info("Shutdown signal received. Exiting.")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
