// Package metrics exports guard decisions as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tkingovr/navguard/api"
)

// Metrics counts decisions. It satisfies guard.Recorder.
type Metrics struct {
	registry  *prometheus.Registry
	decisions *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navguard",
			Name:      "decisions_total",
			Help:      "Navigation decisions by action, outcome and reason.",
		}, []string{"action", "outcome", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "navguard",
			Name:      "decision_duration_seconds",
			Help:      "Time spent deciding a navigation, including user callbacks.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.decisions, m.latency)
	return m
}

// Write records one decision.
func (m *Metrics) Write(_ context.Context, r *api.AuditRecord) error {
	m.decisions.WithLabelValues(string(r.Action), string(r.Outcome), string(r.Reason)).Inc()
	m.latency.WithLabelValues(string(r.Outcome)).Observe(r.Duration.Seconds())
	return nil
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
