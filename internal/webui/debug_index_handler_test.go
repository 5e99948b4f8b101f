package webui

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abfahrt.transitboard.org/internal/app"
	"abfahrt.transitboard.org/internal/appconf"
	"abfahrt.transitboard.org/internal/transit"
	"abfahrt.transitboard.org/stationdb"
)

func newTestWebUI(t *testing.T, env appconf.Environment) *WebUI {
	t.Helper()

	db, err := stationdb.NewClient(stationdb.NewConfig(":memory:", appconf.Test, false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	manager := transit.NewManager(transit.ManagerConfig{
		PollInterval: time.Hour,
	})
	t.Cleanup(manager.Shutdown)

	return NewWebUI(&app.Application{
		Config: appconf.Config{
			Env:     env,
			ApiKeys: []string{"secret-key"},
			RNV:     appconf.RNVConfig{ClientSecret: "hunter2"},
		},
		TransitManager: manager,
		StationDB:      db,
	})
}

func TestDebugIndexHandler_ProductionReturns404(t *testing.T) {
	webUI := &WebUI{
		Application: &app.Application{
			Config: appconf.Config{Env: appconf.Production},
		},
	}

	req, _ := http.NewRequest("GET", "/debug?dataType=subscriptions", nil)
	rr := httptest.NewRecorder()

	webUI.debugIndexHandler(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code, "Should return 404 in Production")
}

func TestDebugIndexHandler_DevelopmentReturns200(t *testing.T) {
	webUI := newTestWebUI(t, appconf.Development)

	for _, dataType := range []string{"subscriptions", "snapshots", "stations", "unknown"} {
		req, _ := http.NewRequest("GET", "/debug?dataType="+dataType, nil)
		rr := httptest.NewRecorder()

		webUI.debugIndexHandler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, "dataType %s should render", dataType)
		assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	}
}

func TestDebugIndexHandler_RedactsSecrets(t *testing.T) {
	webUI := newTestWebUI(t, appconf.Development)

	req, _ := http.NewRequest("GET", "/debug?dataType=config", nil)
	rr := httptest.NewRecorder()

	webUI.debugIndexHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.NotContains(t, body, "hunter2")
	assert.NotContains(t, body, "secret-key")
	assert.Contains(t, body, "[redacted]")
}
