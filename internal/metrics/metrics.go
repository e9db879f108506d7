// Package metrics defines the Prometheus metrics exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusNotFound = "not_found"
)

// Metrics holds the service's collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	StoreOps       *prometheus.CounterVec
	StoreDuration  *prometheus.HistogramVec
	Purchases      *prometheus.CounterVec
	AuthFailures   *prometheus.CounterVec
	PlayersTotal   prometheus.Gauge
	ProfileLookups *prometheus.CounterVec
}

// New creates a registry with Go and process collectors plus the service metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildsats_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wildsats_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		StoreOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildsats_store_operations_total",
			Help: "Total number of player store operations by backend, operation and status",
		}, []string{"backend", "operation", "status"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wildsats_store_operation_duration_seconds",
			Help:    "Player store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		Purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildsats_purchases_total",
			Help: "Character purchases by animal and outcome",
		}, []string{"animal", "outcome"}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildsats_auth_failures_total",
			Help: "Rejected request proofs by reason",
		}, []string{"reason"}),
		PlayersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wildsats_players",
			Help: "Number of player records, refreshed periodically",
		}),
		ProfileLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildsats_profile_lookups_total",
			Help: "Relay profile lookups by result",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.HTTPRequests, m.HTTPDuration,
		m.StoreOps, m.StoreDuration,
		m.Purchases, m.AuthFailures,
		m.PlayersTotal, m.ProfileLookups,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveStoreOperation records one store call.
func (m *Metrics) ObserveStoreOperation(backend, operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.StoreOps.WithLabelValues(backend, operation, status).Inc()
	m.StoreDuration.WithLabelValues(backend, operation).Observe(d.Seconds())
}

// ObserveHTTPRequest records one HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, code).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordPurchase counts a purchase outcome ("added" or "already_owned").
func (m *Metrics) RecordPurchase(animal, outcome string) {
	if m == nil {
		return
	}
	m.Purchases.WithLabelValues(animal, outcome).Inc()
}

// RecordAuthFailure counts a rejected request proof.
func (m *Metrics) RecordAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(reason).Inc()
}

// RecordProfileLookup counts a relay profile lookup ("found" or "unavailable").
func (m *Metrics) RecordProfileLookup(result string) {
	if m == nil {
		return
	}
	m.ProfileLookups.WithLabelValues(result).Inc()
}

// SetPlayers sets the player count gauge.
func (m *Metrics) SetPlayers(n int64) {
	if m == nil {
		return
	}
	m.PlayersTotal.Set(float64(n))
}
