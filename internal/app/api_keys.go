package app

import (
	"crypto/subtle"
	"net/http"
)

// RequestHasInvalidAPIKey reports whether the request's ?key= parameter fails
// to match any configured API key. Departure boards pass the key as a query
// parameter so that a board URL is self-contained.
func (app *Application) RequestHasInvalidAPIKey(r *http.Request) bool {
	return app.IsInvalidAPIKey(r.URL.Query().Get("key"))
}

// IsInvalidAPIKey checks key against the configured key list with
// constant-time comparison.
func (app *Application) IsInvalidAPIKey(key string) bool {
	if key == "" {
		return true
	}
	for _, configured := range app.Config.ApiKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(configured)) == 1 {
			return false
		}
	}
	return true
}
