package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ConnectorRequest("ah", "ok", 120*time.Millisecond)
	m.ConnectorRequest("ah", "timeout", 8*time.Second)
	m.ConnectorRequest("ah", "ok", 80*time.Millisecond)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.NormalizationDropped("jumbo", 2)
	m.NormalizationDropped("jumbo", 0)
	m.EventDropped()
	m.BreakerState("dirk", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectorRequests.WithLabelValues("ah", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectorRequests.WithLabelValues("ah", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.normalizeDropped.WithLabelValues("jumbo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDropped))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.breakerState.WithLabelValues("dirk")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.connectorDuration))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.EventDropped()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.eventsDropped))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.eventsDropped))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.CacheLookup(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `boodschap_search_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
