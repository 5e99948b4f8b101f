package restapi

import (
	"net/http"

	"abfahrt.transitboard.org/internal/models"
)

var staleDetector = NewStaleDetector()

// departuresHandler serves the current departure board for one subscription:
// the latest snapshot its coordinator published, plus coordinator health.
func (api *RestAPI) departuresHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	coordinator, ok := api.TransitManager.Coordinator(id)
	if !ok {
		api.sendNotFound(w, r)
		return
	}

	now := api.Clock.Now()
	snapshot := coordinator.Snapshot()

	board := models.NewDeparturesModel(id, snapshot, coordinator.Status(), now)
	if snapshot != nil {
		board.Stale = staleDetector.Check(snapshot, now)
	}
	api.sendResponse(w, r, models.NewOKResponse(board, api.Clock))
}
