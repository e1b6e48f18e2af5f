// Package metrics provides Prometheus metric definitions and a metrics HTTP
// server for the vault.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// VaultMetrics holds all Prometheus metrics for the vault's HTTP server.
type VaultMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPDurationSeconds *prometheus.HistogramVec

	AuthAttemptsTotal  *prometheus.CounterVec
	ActiveTokens       prometheus.Gauge
	ObjectStoreOpsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewVaultMetrics registers and returns a new VaultMetrics instance backed
// by its own Prometheus registry. All metrics use the "vault" namespace.
func NewVaultMetrics() *VaultMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &VaultMetrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vault",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests received by the vault server.",
		}, []string{"method", "path", "status_code"}),

		HTTPDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vault",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests served by the vault server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		AuthAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vault",
			Name:      "auth_attempts_total",
			Help:      "Total number of challenge/answer authentication attempts.",
		}, []string{"outcome"}), // outcome: "success" | "no_such_user" | "mismatch"

		ActiveTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vault",
			Name:      "active_tokens",
			Help:      "Current number of non-expired bearer tokens held in the token cache.",
		}),

		ObjectStoreOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vault",
			Name:      "object_store_operations_total",
			Help:      "Total number of object store operations performed by the vault.",
		}, []string{"operation", "status"}), // operation: "list" | "remove" | "presign" | "post_policy"
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPDurationSeconds,
		m.AuthAttemptsTotal,
		m.ActiveTokens,
		m.ObjectStoreOpsTotal,
	)

	return m
}

// Handler returns an http.Handler that serves this registry's Prometheus
// text exposition format, for mounting on the server's own mux or a
// dedicated side listener.
func (m *VaultMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing the /metrics endpoint on addr. It
// blocks until the server exits and logs any error.
func (m *VaultMetrics) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	log.Printf("vault metrics server listening on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics server error: %v", err)
	}
}
