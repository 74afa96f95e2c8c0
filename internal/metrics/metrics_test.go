package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bodari/pkg/apperr"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObservePlan("cached_valid", false)
	m.ObservePlan("cached_valid", false)
	m.ObservePlan("uncached", true)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.planRequests.WithLabelValues("cached_valid", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.planRequests.WithLabelValues("uncached", "true")))

	m.ObserveCompletion("plan", nil, time.Second)
	m.ObserveCompletion("plan", apperr.RateLimited("openai", time.Second, nil), time.Second)
	m.ObserveCompletion("macros", errors.New("plain"), time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completions.WithLabelValues("plan", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completions.WithLabelValues("plan", "RATE_LIMITED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completions.WithLabelValues("macros", "INTERNAL_ERROR")))

	m.MacroFieldsMissing([]string{"fat", "calories"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.macroFieldsMissing.WithLabelValues("fat")))

	m.ObserveHTTP(http.MethodGet, "/health", 200, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/health", "200")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObservePlan("uncached", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bodari_weekly_plan_requests_total{generated="true",state="uncached"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePlan("uncached", true)
		m.ObserveCompletion("plan", nil, time.Second)
		m.MacroFieldsMissing([]string{"fat"})
		m.ObserveHTTP("GET", "/", 200, time.Second)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
