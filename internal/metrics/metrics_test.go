package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.AIRequest("analyze_incident", "success")
	m.AIRequest("analyze_incident", "success")
	m.AICacheHit("analyze_incident")
	m.IncidentIngested("duplicate")
	m.ObserveHTTP("GET", "/api/stats", "200", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AIRequests.WithLabelValues("analyze_incident", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AICacheHits.WithLabelValues("analyze_incident")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IncidentsIngested.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/stats", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AIRequest("x", "y")
		m.AICacheHit("x")
		m.AIUpstreamCall("error")
		m.IncidentIngested("created")
		m.ObserveHTTP("GET", "/", "200", 1)
	})
}
