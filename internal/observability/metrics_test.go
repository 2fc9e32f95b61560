package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCreateCountsOutcomes(t *testing.T) {
	m := NewMetrics()
	m.ObserveCreate("success", 10*time.Millisecond)
	m.ObserveCreate("stock", time.Millisecond)
	m.ObserveCreate("stock", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.createTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.createTotal.WithLabelValues("stock")))
}

func TestMiddlewareRecordsRoute(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/exec", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })
	r.Method(http.MethodGet, "/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/exec?action=getOrder", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/exec", "getOrder", "404")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "storefront_http_requests_total"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCreate("success", time.Second)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
