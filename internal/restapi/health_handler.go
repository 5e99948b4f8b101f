package restapi

import (
	"encoding/json"
	"net/http"

	"abfahrt.transitboard.org/internal/logging"
)

// HealthResponse represents the JSON response from the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// healthHandler verifies the station directory and transit manager are up.
// It returns 503 Service Unavailable until the application is fully wired.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Liveness: is the basic infrastructure initialized?
	if api.Application == nil || api.TransitManager == nil || api.StationDB == nil || api.StationDB.DB == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "unavailable",
			Detail: "manager or database not initialized",
		})
		return
	}

	// Connectivity: is the station database actually reachable?
	if err := api.StationDB.DB.PingContext(r.Context()); err != nil {
		logging.LogError(api.Logger, "station DB ping failed", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "unavailable",
			Detail: "database connection failed",
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status: "ok",
	})
}
