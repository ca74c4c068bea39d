// Package metrics exposes Prometheus metrics for the proxy: request
// volume per protocol, decision outcomes, backend latency and audit
// write failures.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metrics for zonegate.
type Metrics struct {
	// Update pipeline
	UpdatesTotal     *prometheus.CounterVec // protocol, outcome
	DecisionsTotal   *prometheus.CounterVec // result (allow or deny reason)
	AuthFailedTotal  *prometheus.CounterVec // reason
	RateLimitedTotal *prometheus.CounterVec // level

	// Backends
	BackendRequestsTotal   *prometheus.CounterVec   // backend, outcome
	BackendDurationSeconds *prometheus.HistogramVec // backend

	// HTTP surface
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec

	// Audit
	AuditWriteFailuresTotal prometheus.Counter

	registry *prometheus.Registry
}

// New creates a Metrics instance with all metrics registered on a
// dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		UpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonegate_updates_total",
				Help: "Total number of update requests by protocol and outcome",
			},
			[]string{"protocol", "outcome"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonegate_authz_decisions_total",
				Help: "Total number of authorization decisions by result",
			},
			[]string{"result"},
		),
		AuthFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonegate_auth_failed_total",
				Help: "Total number of failed token authentications by internal reason",
			},
			[]string{"reason"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonegate_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"level"},
		),
		BackendRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonegate_backend_requests_total",
				Help: "Total number of DNS backend apply calls by outcome",
			},
			[]string{"backend", "outcome"},
		),
		BackendDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zonegate_backend_duration_seconds",
				Help:    "DNS backend apply call duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonegate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zonegate_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuditWriteFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "zonegate_audit_write_failures_total",
				Help: "Total number of activity log writes that failed",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.UpdatesTotal,
		m.DecisionsTotal,
		m.AuthFailedTotal,
		m.RateLimitedTotal,
		m.BackendRequestsTotal,
		m.BackendDurationSeconds,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		m.AuditWriteFailuresTotal,
	)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the dedicated Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
