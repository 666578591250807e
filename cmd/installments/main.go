package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"installments/internal/auth"
	"installments/internal/backend"
	"installments/internal/cli"
	"installments/internal/config"
	apphttp "installments/internal/http"
	"installments/internal/services"
)

func main() {
	cfg := cli.MustLoadConfig("installments")
	logger := cli.SetupLogger(cfg, "server")

	ctx, stop := cli.SignalContext()
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.Logger).Create(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Warn("Backend cleanup failed", "error", err)
		}
	}()

	seedUsers, _ := config.ParseSeedUsers(cfg.SeedUsers)
	creds := make([]services.Credential, 0, len(seedUsers))
	for _, u := range seedUsers {
		creds = append(creds, services.Credential{Username: u.Username, Password: u.Password})
	}
	if err := services.Seed(ctx, be.Store, creds); err != nil {
		logger.Error("Failed to seed database", "error", err)
		os.Exit(1)
	}

	deps := apphttp.Dependencies{
		Catalog:  services.NewCatalog(be.Store, be.Events),
		Status:   services.NewStatusResolver(be.Store, be.Events, time.Now),
		Totals:   services.NewAggregator(be.Store, be.Store, time.Now),
		CashFlow: services.NewCashFlowAggregator(be.Store),
		Ping:     be.Ping,
		Logger:   logger,
	}

	// Login is required once at least one user exists.
	users, err := be.Store.CountUsers(ctx)
	if err != nil {
		logger.Error("Failed to count users", "error", err)
		os.Exit(1)
	}
	if users > 0 {
		sessions, err := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
		if err != nil {
			logger.Error("Failed to initialize sessions", "error", err)
			os.Exit(1)
		}
		if cfg.SessionSecret == "" {
			logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
		}
		deps.Sessions = sessions
		deps.Auth = auth.NewAuthenticator(be.Store, sessions)
	} else {
		logger.Warn("No users configured, the dashboard is open to anyone who can reach it")
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		logger.Error("Failed to create HTTP server", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting installments server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"auth", deps.Auth != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", "error", err, "port", cfg.Port)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Server stopped gracefully")
}
