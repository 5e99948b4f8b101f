package restapi

import (
	"net/http"
	"time"

	"abfahrt.transitboard.org/internal/app"
)

// RestAPI serves the departure board REST surface on top of the shared
// Application dependencies.
type RestAPI struct {
	*app.Application

	rateLimiter *RateLimitMiddleware
}

func NewRestAPI(application *app.Application) *RestAPI {
	return &RestAPI{
		Application: application,
		rateLimiter: NewRateLimitMiddleware(application.Config.RateLimit, time.Second, nil, application.Clock),
	}
}

// Shutdown stops the API's background goroutines. Safe to call more than
// once.
func (api *RestAPI) Shutdown() {
	api.rateLimiter.Stop()
}

// SetRoutes registers all /api routes on the mux, wrapped in the standard
// middleware chain. Departure boards are never cached; the station directory
// is static data and caches briefly.
func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	chain := func(seconds int, h http.HandlerFunc) http.Handler {
		var handler http.Handler = api.requireValidAPIKey(h)
		handler = CacheControlMiddleware(seconds, handler)
		handler = api.rateLimiter.Handler()(handler)
		handler = MetricsHandler(api.Metrics)(handler)
		handler = NewRequestLoggingMiddleware(api.Logger)(handler)
		return RequestIDMiddleware(handler)
	}

	mux.Handle("GET /api/departures/{id}", chain(0, api.departuresHandler))
	mux.Handle("GET /api/subscriptions", chain(0, api.listSubscriptionsHandler))
	mux.Handle("POST /api/subscriptions", chain(0, api.createSubscriptionHandler))
	mux.Handle("DELETE /api/subscriptions/{id}", chain(0, api.deleteSubscriptionHandler))
	mux.Handle("GET /api/stations/search", chain(60, api.searchStationsHandler))
	mux.Handle("GET /api/stations/nearby", chain(60, api.nearbyStationsHandler))

	// Liveness probes carry no API key and skip the middleware chain.
	mux.HandleFunc("GET /healthz", api.healthHandler)
}

// requireValidAPIKey rejects requests without a configured ?key=.
func (api *RestAPI) requireValidAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if api.Application.RequestHasInvalidAPIKey(r) {
			api.sendUnauthorized(w, r)
			return
		}
		next(w, r)
	}
}
