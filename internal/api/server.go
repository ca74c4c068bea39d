// Package api is the HTTP surface of the proxy: the two legacy dynamic
// DNS endpoints, the JSON management API and the health check. Every
// update request runs through the same pipeline (authenticate, source
// whitelist, rate limit, authorize, apply, audit) regardless of which
// endpoint received it; only the response rendering differs.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zonegate/zonegate/internal/audit"
	"github.com/zonegate/zonegate/internal/backend"
	"github.com/zonegate/zonegate/internal/config"
	"github.com/zonegate/zonegate/internal/ipfilter"
	"github.com/zonegate/zonegate/internal/metrics"
	"github.com/zonegate/zonegate/internal/ratelimit"
	"github.com/zonegate/zonegate/internal/store"
	"github.com/zonegate/zonegate/internal/token"
)

// Server is the HTTP API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	store      *store.Store
	auth       *token.Authenticator
	limiter    *ratelimit.Limiter // nil when rate limiting is disabled
	registry   *backend.Registry
	audit      *audit.Log
	metrics    *metrics.Metrics
	config     *config.Config
	logger     *slog.Logger
	version    string
	startTime  time.Time
}

// NewServer creates the API server and wires its routes.
func NewServer(cfg *config.Config, st *store.Store, auth *token.Authenticator,
	limiter *ratelimit.Limiter, registry *backend.Registry, auditLog *audit.Log,
	m *metrics.Metrics, version string, logger *slog.Logger) *Server {

	s := &Server{
		router:    chi.NewRouter(),
		store:     st,
		auth:      auth,
		limiter:   limiter,
		registry:  registry,
		audit:     auditLog,
		metrics:   m,
		config:    cfg,
		logger:    logger,
		version:   version,
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	if s.config.Security.TrustProxyHeaders {
		s.router.Use(middleware.RealIP)
	}
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware)
	}

	filter := ipfilter.New(s.config.Server.AllowedIPs, s.logger)
	if filter.Enabled() {
		s.logger.Info("API IP filtering enabled", "allowed_networks", filter.Count())
		s.router.Use(filter.HTTPMiddleware)
	}

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	// Legacy dynamic DNS endpoints, credential carried per request
	s.router.Get("/nic/update", s.handleDynDNS2)
	s.router.Get("/noip/update", s.handleNoIP)

	// JSON API
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/records/update", s.handleUpdateRecords)
		r.Get("/realm", s.handleRealmInfo)
	})
}

// Router exposes the chi mux, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// clientIP derives the source address checked against whitelists and
// rate limits. Forwarding headers are honored only when the config
// declares a trusted proxy in front of the service.
func (s *Server) clientIP(r *http.Request) net.IP {
	if s.config.Security.TrustProxyHeaders {
		return ipfilter.GetClientIP(r)
	}
	return ipfilter.RemoteIP(r)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.Server.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.Server.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
