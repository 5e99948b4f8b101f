package metrics

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAllMetrics(t *testing.T) {
	m := New()

	require.NotNil(t, m.Registry)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.HTTPRequestDuration)
	assert.NotNil(t, m.PollCyclesTotal)
	assert.NotNil(t, m.PollCycleDuration)
	assert.NotNil(t, m.PollCyclesSkippedTotal)
	assert.NotNil(t, m.BackendRequestsTotal)
	assert.NotNil(t, m.TokenRefreshesTotal)
	assert.NotNil(t, m.NormalizationAnomaliesTotal)
}

func TestPollMetrics_Record(t *testing.T) {
	m := New()

	m.PollCyclesTotal.WithLabelValues("1144", "success").Inc()
	m.PollCyclesTotal.WithLabelValues("1144", "failure").Inc()
	m.PollCyclesTotal.WithLabelValues("1144", "failure").Inc()
	m.PollCyclesSkippedTotal.WithLabelValues("1144").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollCyclesTotal.WithLabelValues("1144", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PollCyclesTotal.WithLabelValues("1144", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollCyclesSkippedTotal.WithLabelValues("1144")))
}

func TestTokenAndBackendMetrics_Record(t *testing.T) {
	m := New()

	m.TokenRefreshesTotal.WithLabelValues("success").Inc()
	m.BackendRequestsTotal.WithLabelValues("rnv", "timeout").Inc()
	m.NormalizationAnomaliesTotal.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenRefreshesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRequestsTotal.WithLabelValues("rnv", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NormalizationAnomaliesTotal))
}

func TestHTTPMetrics_RecordRequest(t *testing.T) {
	m := New()

	m.HTTPRequestsTotal.WithLabelValues("GET", "/api/departures/{id}", "200").Inc()
	m.HTTPRequestDuration.WithLabelValues("GET", "/api/departures/{id}").Observe(0.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/departures/{id}", "200")))
}

func TestStartDBStatsCollector_NilDB(t *testing.T) {
	m := New()

	// Should be a no-op, not a panic
	m.StartDBStatsCollector(nil, time.Millisecond)
	m.Shutdown()
}

func TestStartDBStatsCollector_CollectsStats(t *testing.T) {
	m := New()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, db.Ping())

	m.StartDBStatsCollector(db, 10*time.Millisecond)

	// Starting a second collector is a no-op
	m.StartDBStatsCollector(db, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	m.Shutdown()

	assert.GreaterOrEqual(t, testutil.ToFloat64(m.DBConnectionsOpen), 0.0)
}

func TestShutdown_SafeToCallMultipleTimes(t *testing.T) {
	m := New()

	m.Shutdown()
	m.Shutdown()
	m.Shutdown()
}
