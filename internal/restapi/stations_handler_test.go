package restapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stationsFromResponse(t *testing.T, data map[string]interface{}) []map[string]interface{} {
	t.Helper()
	raw, ok := data["stations"].([]interface{})
	require.True(t, ok, "expected stations array in response data")

	stations := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		station, ok := item.(map[string]interface{})
		require.True(t, ok)
		stations = append(stations, station)
	}
	return stations
}

func TestSearchStationsHandler(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/stations/search?q=Bismarckplatz&key=TEST")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stations := stationsFromResponse(t, dataAsMap(t, model))
	require.Len(t, stations, 1)
	assert.Equal(t, "1144", stations[0]["id"])
	assert.Equal(t, "Bismarckplatz", stations[0]["name"])
	assert.Equal(t, "de:08221:1144", stations[0]["globalId"])
	assert.NotNil(t, stations[0]["lat"])
}

func TestSearchStationsHandlerPrefix(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/stations/search?q=haupt*&key=TEST")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stations := stationsFromResponse(t, dataAsMap(t, model))
	assert.Len(t, stations, 2)
}

func TestSearchStationsHandlerMissingQuery(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/stations/search?key=TEST")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, model.Text, "q is required")
}

func TestNearbyStationsHandler(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/stations/nearby?lat=49.4095&lon=8.6936&key=TEST")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stations := stationsFromResponse(t, dataAsMap(t, model))
	require.Len(t, stations, 2)
	assert.Equal(t, "1144", stations[0]["id"])
	assert.Equal(t, "1146", stations[1]["id"])

	distance, ok := stations[0]["distanceMeters"].(float64)
	require.True(t, ok)
	assert.Less(t, distance, 50.0)
}

func TestNearbyStationsHandlerValidation(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
	}{
		{"missing coordinates", "/api/stations/nearby?key=TEST"},
		{"unparseable lat", "/api/stations/nearby?lat=abc&lon=8.69&key=TEST"},
		{"lat out of range", "/api/stations/nearby?lat=99&lon=8.69&key=TEST"},
		{"negative radius", "/api/stations/nearby?lat=49.4&lon=8.69&radius=-5&key=TEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, _ := serveAndRetrieveEndpoint(t, tt.endpoint)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestNearbyStationsHandlerLimit(t *testing.T) {
	_, resp, model := serveAndRetrieveEndpoint(t, "/api/stations/nearby?lat=49.4095&lon=8.6936&limit=1&key=TEST")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stations := stationsFromResponse(t, dataAsMap(t, model))
	assert.Len(t, stations, 1)
}
