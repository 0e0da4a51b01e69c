package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/boodschap/backend/internal/domain"
)

const namespace = "boodschap"

// Metrics holds the service collectors on a private registry so tests and
// multiple instances never collide on the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	connectorRequests *prometheus.CounterVec
	connectorDuration *prometheus.HistogramVec
	breakerState      *prometheus.GaugeVec
	cacheLookups      *prometheus.CounterVec
	normalizeDropped  *prometheus.CounterVec
	eventsDropped     prometheus.Counter
	httpRequests      *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connectorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connector_requests_total",
			Help:      "Retailer connector calls by outcome.",
		}, []string{"retailer", "outcome"}),
		connectorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connector_request_duration_seconds",
			Help:      "Retailer connector call latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}, []string{"retailer"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connector_breaker_state",
			Help:      "Circuit breaker state per retailer (0=closed, 1=half-open, 2=open).",
		}, []string{"retailer"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_lookups_total",
			Help:      "Search cache lookups by result.",
		}, []string{"result"}),
		normalizeDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalization_dropped_total",
			Help:      "Raw products dropped during normalization.",
		}, []string{"retailer"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Analytics events dropped because the sink buffer was full.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connectorRequests,
		m.connectorDuration,
		m.breakerState,
		m.cacheLookups,
		m.normalizeDropped,
		m.eventsDropped,
		m.httpRequests,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ConnectorRequest records one connector call
func (m *Metrics) ConnectorRequest(retailer, outcome string, elapsed time.Duration) {
	m.connectorRequests.WithLabelValues(retailer, outcome).Inc()
	m.connectorDuration.WithLabelValues(retailer).Observe(elapsed.Seconds())
}

// BreakerState records the breaker state for a retailer
func (m *Metrics) BreakerState(retailer string, state float64) {
	m.breakerState.WithLabelValues(retailer).Set(state)
}

// CacheLookup records a search cache hit or miss
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// NormalizationDropped records raw records rejected by the normalizer
func (m *Metrics) NormalizationDropped(retailer domain.RetailerID, n int) {
	if n <= 0 {
		return
	}
	m.normalizeDropped.WithLabelValues(string(retailer)).Add(float64(n))
}

// EventDropped records one event lost to a full buffer
func (m *Metrics) EventDropped() {
	m.eventsDropped.Inc()
}

// HTTPRequest records one served request
func (m *Metrics) HTTPRequest(method, route, status string) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
}
