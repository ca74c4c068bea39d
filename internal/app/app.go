// Package app assembles the proxy from its components and manages
// their lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zonegate/zonegate/internal/api"
	"github.com/zonegate/zonegate/internal/audit"
	"github.com/zonegate/zonegate/internal/backend"
	"github.com/zonegate/zonegate/internal/config"
	"github.com/zonegate/zonegate/internal/metrics"
	"github.com/zonegate/zonegate/internal/ratelimit"
	"github.com/zonegate/zonegate/internal/store"
	"github.com/zonegate/zonegate/internal/token"
)

// App is the main application.
type App struct {
	config        *config.Config
	store         *store.Store
	auditLog      *audit.Log
	rateLimiter   *ratelimit.Limiter
	registry      *backend.Registry
	apiServer     *api.Server
	metricsServer *metrics.Server
	logger        *slog.Logger
	version       string
}

// New creates a new application.
func New(cfg *config.Config, version string) (*App, error) {
	logger := setupLogger(cfg.Logging)

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	auditLog, err := audit.Open(cfg.Storage.ActivityLogPath, logger.With("component", "audit"))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open activity log: %w", err)
	}

	// Rate limiter shares the store's bolt handle so its counters
	// survive restarts.
	var rateLimiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		rlConfig := &ratelimit.Config{
			FlushInterval: cfg.RateLimit.FlushInterval,
		}
		if cfg.RateLimit.Global != nil {
			rlConfig.Global = &ratelimit.LimitConfig{
				UpdatesPerHour: cfg.RateLimit.Global.UpdatesPerHour,
				UpdatesPerDay:  cfg.RateLimit.Global.UpdatesPerDay,
			}
		}
		if cfg.RateLimit.DefaultToken != nil {
			rlConfig.DefaultToken = &ratelimit.LimitConfig{
				UpdatesPerHour: cfg.RateLimit.DefaultToken.UpdatesPerHour,
				UpdatesPerDay:  cfg.RateLimit.DefaultToken.UpdatesPerDay,
			}
		}
		if cfg.RateLimit.DefaultIP != nil {
			rlConfig.DefaultIP = &ratelimit.LimitConfig{
				UpdatesPerHour: cfg.RateLimit.DefaultIP.UpdatesPerHour,
				UpdatesPerDay:  cfg.RateLimit.DefaultIP.UpdatesPerDay,
			}
		}

		rateLimiter, err = ratelimit.NewLimiter(st.DB(), rlConfig)
		if err != nil {
			auditLog.Close()
			st.Close()
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		logger.Info("rate limiting enabled")
	}

	var gateways []backend.Gateway
	if p := cfg.Backends.PowerDNS; p != nil {
		gateways = append(gateways, backend.NewPowerDNS(
			p.APIURL, p.APIKey, p.ServerID,
			logger.With("component", "powerdns"),
		))
	}
	if n := cfg.Backends.Netcup; n != nil {
		gateways = append(gateways, backend.NewNetcup(
			n.Endpoint, n.CustomerNumber, n.APIKey, n.APIPassword,
			logger.With("component", "netcup"),
		))
	}
	registry := backend.NewRegistry(gateways...)

	var m *metrics.Metrics
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsServer = metrics.NewServer(m,
			cfg.Metrics.ListenAddr, cfg.Metrics.Path, cfg.Metrics.AllowedIPs,
			logger.With("component", "metrics"))
	}

	auth := token.NewAuthenticator(st, logger.With("component", "auth"))

	apiServer := api.NewServer(cfg, st, auth, rateLimiter, registry,
		auditLog, m, version, logger.With("component", "api"))

	return &App{
		config:        cfg,
		store:         st,
		auditLog:      auditLog,
		rateLimiter:   rateLimiter,
		registry:      registry,
		apiServer:     apiServer,
		metricsServer: metricsServer,
		logger:        logger,
		version:       version,
	}, nil
}

// Run starts all components and waits for shutdown.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting zonegate",
		"version", a.version,
		"api_addr", a.config.Server.ListenAddr,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}

	// Stop rate limiter (persists counters)
	if a.rateLimiter != nil {
		if err := a.rateLimiter.Stop(); err != nil {
			a.logger.Error("rate limiter stop error", "error", err)
		}
	}

	if err := a.auditLog.Close(); err != nil {
		a.logger.Error("activity log close error", "error", err)
	}

	if err := a.store.Close(); err != nil {
		a.logger.Error("store close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// setupLogger creates a logger based on configuration.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
