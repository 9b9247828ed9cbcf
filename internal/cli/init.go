// Package cli holds the start-up steps shared by cmd/materials and
// cmd/materials-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"materials/internal/config"
	applog "materials/internal/log"
	"materials/internal/storage"
)

// LoadEnvFile loads .env for local development. A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger for env, honouring LOG_LEVEL when
// set, and installs it as the slog default.
func SetupLogger(env string) *applog.Logger {
	cfg := applog.ConfigForEnv(env)
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Level = applog.ParseLevel(lvl)
	}
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadConfig loads and validates configuration with validate, exiting on failure.
func LoadConfig(logger *applog.Logger, validate func(*config.Config) error) *config.Config {
	cfg := config.Load()
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", "error", err, "error_type", applog.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the database named by DATABASE_URL, exiting on failure.
func InitSQLite(logger *applog.Logger, cfg *config.Config) *storage.SQLiteRepository {
	dbPath, err := cfg.SQLitePath()
	if err != nil {
		logger.Error("Invalid database URL", "error", err)
		os.Exit(1)
	}
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	logger.Info("SQLite repository ready", "path", dbPath)
	return repo
}

// SignalContext is cancelled on SIGINT, SIGTERM or when stop is called.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
	}()
	return ctx, stop
}
