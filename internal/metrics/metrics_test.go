package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, collectorRunsTotal)
	require.NotNil(t, collectorRunDurationSeconds)
	require.NotNil(t, collectorRunsInFlight)
	require.NotNil(t, configSavesTotal)
	require.NotNil(t, httpRequestsTotal)
	require.NotNil(t, httpRequestDurationSeconds)
}

func TestObserveCollectorRun(t *testing.T) {
	Init()

	before := testutil.ToFloat64(collectorRunsTotal.WithLabelValues(StatusFailure))
	ObserveCollectorRun(StatusFailure, 2*time.Second)
	after := testutil.ToFloat64(collectorRunsTotal.WithLabelValues(StatusFailure))

	assert.Equal(t, before+1, after)
}

func TestCollectorRunsInFlight(t *testing.T) {
	Init()

	before := testutil.ToFloat64(collectorRunsInFlight)
	IncCollectorRunsInFlight()
	assert.Equal(t, before+1, testutil.ToFloat64(collectorRunsInFlight))
	DecCollectorRunsInFlight()
	assert.Equal(t, before, testutil.ToFloat64(collectorRunsInFlight))
}

func TestObserveConfigSave(t *testing.T) {
	Init()

	before := testutil.ToFloat64(configSavesTotal.WithLabelValues(StatusInvalid))
	ObserveConfigSave(StatusInvalid)
	assert.Equal(t, before+1, testutil.ToFloat64(configSavesTotal.WithLabelValues(StatusInvalid)))
}

func TestHandlerExposesCollectors(t *testing.T) {
	Init()
	ObserveHTTPRequest(http.MethodGet, "run_collector", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `http_requests_total{code="200",method="GET",route="run_collector"}`)
	assert.Contains(t, body, "collector_runs_in_flight")
}
