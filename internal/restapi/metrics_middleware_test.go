package restapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abfahrt.transitboard.org/internal/metrics"
)

func TestMetricsHandlerNilMetricsPassesThrough(t *testing.T) {
	wrapped := MetricsHandler(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsHandlerCountsByRoutePattern(t *testing.T) {
	m := metrics.New()

	// The middleware sits inside the mux dispatch, as SetRoutes wires it,
	// so the matched pattern is available on the request.
	mux := http.NewServeMux()
	mux.Handle("GET /api/departures/{id}", MetricsHandler(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("board"))
	})))

	for _, id := range []string{"rnv_1144", "motis_2521"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/departures/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// Both requests land on the one registered pattern, not per-ID labels.
	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /api/departures/{id}", "200"))
	assert.Equal(t, float64(2), count)
}

func TestMetricsHandlerRecordsStatusCode(t *testing.T) {
	m := metrics.New()

	wrapped := MetricsHandler(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/subscriptions", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "unmatched", "409"))
	assert.Equal(t, float64(1), count)
}

func TestMetricsHandlerImplicitOK(t *testing.T) {
	m := metrics.New()

	// Writing a body without WriteHeader still records a 200.
	wrapped := MetricsHandler(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("implicit"))
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "200"))
	assert.Equal(t, float64(1), count)
}
