// Package cli holds the start-up steps shared by cmd/installments,
// cmd/sheets-worker and cmd/reminder-worker.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"installments/internal/config"
	applog "installments/internal/log"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from config and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	logCfg := applog.DefaultConfig()
	logCfg.Component = component
	if cfg != nil {
		logCfg.Level = applog.ParseLevel(cfg.LogLevel)
		logCfg.Format = cfg.LogFormat
	}
	logger := applog.New(logCfg)
	applog.SetDefault(logger)
	return logger
}

// LoadConfig loads .env and the environment, then validates with each
// validator. The first error is returned with the binary's name attached.
func LoadConfig(binary string, validators ...func(*config.Config) error) (*config.Config, error) {
	LoadEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", binary, err)
	}
	for _, v := range validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", binary, err)
		}
	}
	return cfg, nil
}

// MustLoadConfig is LoadConfig that logs and exits on failure.
func MustLoadConfig(binary string, validators ...func(*config.Config) error) *config.Config {
	cfg, err := LoadConfig(binary, validators...)
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
