// test_helper_test.go contains shared utilities for building a fully wired
// test API and exercising endpoints in integration tests.
package restapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"abfahrt.transitboard.org/internal/app"
	"abfahrt.transitboard.org/internal/appconf"
	"abfahrt.transitboard.org/internal/clock"
	"abfahrt.transitboard.org/internal/models"
	"abfahrt.transitboard.org/internal/transit"
	"abfahrt.transitboard.org/stationdb"
)

func createTestApi(t *testing.T) *RestAPI {
	t.Helper()
	return createTestApiWithClock(t, clock.RealClock{})
}

func createTestApiWithClock(t *testing.T, clk clock.Clock) *RestAPI {
	t.Helper()
	return createTestApiWithMotis(t, "http://127.0.0.1:0", clk)
}

func createTestApiWithMotis(t *testing.T, motisURL string, clk clock.Clock) *RestAPI {
	t.Helper()

	cfg := appconf.Config{
		Env:       appconf.Test,
		ApiKeys:   []string{"TEST"},
		RateLimit: 100,
	}

	db, err := stationdb.NewClient(stationdb.NewConfig(":memory:", appconf.Test, false))
	require.NoError(t, err)
	require.NoError(t, db.ImportFromFile(context.Background(), filepath.Join("testdata", "stations.json")))
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := transit.NewManager(transit.ManagerConfig{
		Motis:        appconf.MotisConfig{BaseURL: motisURL},
		PollInterval: time.Hour,
		Clock:        clk,
		Logger:       logger,
	})
	t.Cleanup(manager.Shutdown)

	api := NewRestAPI(&app.Application{
		Config:         cfg,
		Logger:         logger,
		TransitManager: manager,
		StationDB:      db,
		Clock:          clk,
	})
	t.Cleanup(api.Shutdown)
	return api
}

// serveApiAndRetrieveEndpoint spins the API up on a test server, GETs the
// endpoint, and decodes the response envelope.
func serveApiAndRetrieveEndpoint(t *testing.T, api *RestAPI, endpoint string) (*http.Response, models.ResponseModel) {
	t.Helper()

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + endpoint)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var model models.ResponseModel
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&model))
	return resp, model
}

func serveAndRetrieveEndpoint(t *testing.T, endpoint string) (*RestAPI, *http.Response, models.ResponseModel) {
	t.Helper()
	api := createTestApi(t)
	resp, model := serveApiAndRetrieveEndpoint(t, api, endpoint)
	return api, resp, model
}

// dataAsMap casts the envelope's data payload for field assertions.
func dataAsMap(t *testing.T, model models.ResponseModel) map[string]interface{} {
	t.Helper()
	data, ok := model.Data.(map[string]interface{})
	require.True(t, ok, "could not cast data to map[string]interface{}")
	return data
}
