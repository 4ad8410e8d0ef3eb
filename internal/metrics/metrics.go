package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the API.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	AIRequests        *prometheus.CounterVec
	AICacheHits       *prometheus.CounterVec
	AIUpstreamCalls   *prometheus.CounterVec
	IncidentsIngested *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "AI gateway operations by outcome",
		}, []string{"operation", "outcome"}),
		AICacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_cache_hits_total",
			Help: "AI gateway cache hits",
		}, []string{"operation"}),
		AIUpstreamCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_upstream_calls_total",
			Help: "Calls issued to the generative model, per attempt",
		}, []string{"outcome"}),
		IncidentsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "incidents_ingested_total",
			Help: "Incident inserts by result (created, duplicate, error)",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) AIRequest(operation, outcome string) {
	if m == nil {
		return
	}
	m.AIRequests.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) AICacheHit(operation string) {
	if m == nil {
		return
	}
	m.AICacheHits.WithLabelValues(operation).Inc()
}

func (m *Metrics) AIUpstreamCall(outcome string) {
	if m == nil {
		return
	}
	m.AIUpstreamCalls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncidentIngested(result string) {
	if m == nil {
		return
	}
	m.IncidentsIngested.WithLabelValues(result).Inc()
}
