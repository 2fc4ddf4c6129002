package infra

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the gateway's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	signedActions   *prometheus.CounterVec
	submitFailures  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	refreshFailures *prometheus.CounterVec
	streamEvents    *prometheus.CounterVec
	streamConnected prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		signedActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hl_signed_actions_total",
				Help: "Actions signed, by action kind and signing scheme",
			},
			[]string{"kind", "scheme"},
		),
		submitFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hl_submit_failures_total",
				Help: "Signed actions the exchange rejected or that failed in transport",
			},
			[]string{"kind"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hl_cache_hits_total",
				Help: "Cache reads answered without a fetch",
			},
			[]string{"kind"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hl_cache_misses_total",
				Help: "Cache reads that triggered a refresh",
			},
			[]string{"kind"},
		),
		refreshFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hl_cache_refresh_failures_total",
				Help: "Failed cache refreshes",
			},
			[]string{"kind"},
		),
		streamEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hl_stream_events_total",
				Help: "Realtime events received, by channel",
			},
			[]string{"channel"},
		),
		streamConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hl_stream_connected",
				Help: "1 while the realtime stream is connected",
			},
		),
	}

	m.registry.MustRegister(
		m.signedActions, m.submitFailures,
		m.cacheHits, m.cacheMisses, m.refreshFailures,
		m.streamEvents, m.streamConnected,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) RecordSigned(kind, scheme string) {
	if m == nil {
		return
	}
	m.signedActions.WithLabelValues(kind, scheme).Inc()
}

func (m *Metrics) RecordSubmitFailure(kind string) {
	if m == nil {
		return
	}
	m.submitFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordCacheHit(kind string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordCacheMiss(kind string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordRefreshFailure(kind string) {
	if m == nil {
		return
	}
	m.refreshFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordStreamEvent(channel string) {
	if m == nil {
		return
	}
	m.streamEvents.WithLabelValues(channel).Inc()
}

// SetStreamConnected sets the connectivity gauge.
func (m *Metrics) SetStreamConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.streamConnected.Set(1)
	} else {
		m.streamConnected.Set(0)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
