// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package telemetry owns the Prometheus collectors for the evidence engine.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "evidence"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	stageDegraded *prometheus.CounterVec
	exchanges     *prometheus.CounterVec
	tokens        *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	evictions     prometheus.Counter
}

// New registers all collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_degraded_total",
			Help:      "Retrieval stages that failed and were replaced by empty results.",
		}, []string{"stage"}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Chat and consultation calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_tokens_total",
			Help:      "Tokens reported by the generative backend.",
		}, []string{"model"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_duration_seconds",
			Help:      "End-to-end latency of chat and consultation calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"kind"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_evictions_total",
			Help:      "Conversations dropped by the capacity bound.",
		}),
	}
	m.registry.MustRegister(
		m.stageDegraded, m.exchanges, m.tokens, m.duration, m.evictions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// StageDegraded counts one degraded retrieval stage.
func (m *Metrics) StageDegraded(stage string) {
	if m == nil {
		return
	}
	m.stageDegraded.WithLabelValues(stage).Inc()
}

// Exchange records one completed call.
func (m *Metrics) Exchange(kind, model string, success bool, tokens int, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.exchanges.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if success && tokens > 0 {
		if model == "" {
			model = "unknown"
		}
		m.tokens.WithLabelValues(model).Add(float64(tokens))
	}
}

// Evicted counts one conversation eviction.
func (m *Metrics) Evicted(string) {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
