package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zonegate/zonegate/internal/ipfilter"
)

// Server serves Prometheus metrics over a dedicated HTTP listener.
type Server struct {
	httpServer *http.Server
	metrics    *Metrics
	addr       string
	path       string
	logger     *slog.Logger
	filter     *ipfilter.Filter
}

// NewServer creates a metrics HTTP server. allowedIPs restricts who may
// scrape; empty allows all.
func NewServer(m *Metrics, addr, path string, allowedIPs []string, logger *slog.Logger) *Server {
	if addr == "" {
		addr = ":9090"
	}
	if path == "" {
		path = "/metrics"
	}

	f := ipfilter.New(allowedIPs, logger)
	if f.Enabled() {
		logger.Info("metrics IP filtering enabled", "allowed_networks", f.Count())
	}

	return &Server{
		metrics: m,
		addr:    addr,
		path:    path,
		logger:  logger,
		filter:  f,
	}
}

// ListenAndServe starts the metrics HTTP server.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()

	handler := promhttp.HandlerFor(
		s.metrics.Registry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
	mux.Handle(s.path, s.filter.HTTPMiddleware(handler))

	// Health check stays unfiltered for load balancers.
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	s.logger.Info("starting metrics server", "addr", s.addr, "path", s.path)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down metrics server")
	return s.httpServer.Shutdown(ctx)
}
