package restapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"abfahrt.transitboard.org/internal/appconf"
	"abfahrt.transitboard.org/internal/models"
	"abfahrt.transitboard.org/internal/transit"
)

const maxSubscriptionBodySize = 64 * 1024

// listSubscriptionsHandler returns all configured subscriptions with their
// coordinator health.
func (api *RestAPI) listSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	coordinators := api.TransitManager.Coordinators()

	subscriptions := make([]models.SubscriptionModel, 0, len(coordinators))
	for _, coordinator := range coordinators {
		subscriptions = append(subscriptions,
			models.NewSubscriptionModel(coordinator.Subscription(), coordinator.Status()))
	}

	data := map[string]interface{}{"subscriptions": subscriptions}
	api.sendResponse(w, r, models.NewOKResponse(data, api.Clock))
}

type createSubscriptionRequest struct {
	StationID        string `json:"stationId"`
	Backend          string `json:"backend"`
	Platform         string `json:"platform"`
	Line             string `json:"line"`
	DestinationRegex string `json:"destinationRegex"`
	Radius           int    `json:"radius"`
}

// createSubscriptionHandler adds a subscription and starts polling it. An
// invalid destination pattern is a 400 with field errors; a subscription that
// already exists is a 409.
func (api *RestAPI) createSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	body := io.LimitReader(r.Body, maxSubscriptionBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		api.sendError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	fieldErrors := make(map[string]string)
	if req.StationID == "" {
		fieldErrors["stationId"] = "station ID is required"
	}
	if req.Backend != "rnv" && req.Backend != "motis" {
		fieldErrors["backend"] = "backend must be rnv or motis"
	}
	if len(fieldErrors) > 0 {
		api.sendFieldErrors(w, r, fieldErrors)
		return
	}

	coordinator, err := api.TransitManager.AddSubscription(appconf.Subscription{
		StationID:        req.StationID,
		Backend:          req.Backend,
		Platform:         req.Platform,
		Line:             req.Line,
		DestinationRegex: req.DestinationRegex,
		Radius:           req.Radius,
	})
	if err != nil {
		var cfgErr *transit.FilterConfigError
		switch {
		case errors.As(err, &cfgErr):
			api.sendFieldErrors(w, r, map[string]string{
				"destinationRegex": cfgErr.Error(),
			})
		case errors.Is(err, transit.ErrDuplicateSubscription):
			api.sendError(w, r, http.StatusConflict, "subscription already exists")
		default:
			api.sendError(w, r, http.StatusBadRequest, err.Error())
		}
		return
	}

	created := models.NewSubscriptionModel(coordinator.Subscription(), coordinator.Status())
	setJSONResponseType(&w)
	w.WriteHeader(http.StatusCreated)
	api.sendResponse(w, r, models.NewCreatedResponse(created, api.Clock))
}

// deleteSubscriptionHandler removes a subscription, stopping its
// coordinator. Nothing is published for it afterwards.
func (api *RestAPI) deleteSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if !api.TransitManager.RemoveSubscription(id) {
		api.sendNotFound(w, r)
		return
	}

	api.sendResponse(w, r, models.NewOKResponse(nil, api.Clock))
}
