package restapi

import (
	"net/http"
	"strconv"

	"abfahrt.transitboard.org/internal/models"
	"abfahrt.transitboard.org/stationdb"
)

const (
	defaultStationResultLimit = 10
	maxStationResultLimit     = 50
)

// searchStationsHandler runs a full-text search over station names. Used at
// subscription setup time to resolve a station ID.
func (api *RestAPI) searchStationsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		api.sendError(w, r, http.StatusBadRequest, "query parameter q is required")
		return
	}

	limit := parseResultLimit(r.URL.Query().Get("limit"))
	results, err := api.StationDB.SearchStationsByName(r.Context(), stationdb.SearchStationsByNameParams{
		Query: query,
		Limit: int64(limit),
	})
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	stations := make([]models.StationModel, 0, len(results))
	for _, station := range results {
		stations = append(stations, models.NewStationModel(station))
	}

	data := map[string]interface{}{"stations": stations}
	api.sendResponse(w, r, models.NewOKResponse(data, api.Clock))
}

// nearbyStationsHandler returns the stations closest to a coordinate,
// nearest first.
func (api *RestAPI) nearbyStationsHandler(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		api.sendError(w, r, http.StatusBadRequest, "lat and lon parameters are required")
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		api.sendError(w, r, http.StatusBadRequest, "lat or lon out of range")
		return
	}

	var radius float64
	if raw := r.URL.Query().Get("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			api.sendError(w, r, http.StatusBadRequest, "radius must be a positive number")
			return
		}
		radius = parsed
	}

	limit := parseResultLimit(r.URL.Query().Get("limit"))
	results := api.StationDB.NearbyStations(lat, lon, radius, limit)

	stations := make([]models.StationModel, 0, len(results))
	for _, station := range results {
		stations = append(stations, models.NewNearbyStationModel(station))
	}

	data := map[string]interface{}{"stations": stations}
	api.sendResponse(w, r, models.NewOKResponse(data, api.Clock))
}

func parseResultLimit(raw string) int {
	if raw == "" {
		return defaultStationResultLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultStationResultLimit
	}
	if limit > maxStationResultLimit {
		return maxStationResultLimit
	}
	return limit
}
