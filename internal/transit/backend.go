package transit

import (
	"context"
	"net/http"
	"time"
)

// Backend fetches raw departures for a single station. Implementations apply
// a request timeout but never retry; retry cadence belongs to the station
// coordinator's polling schedule.
type Backend interface {
	// Name identifies the backend variant, e.g. "rnv" or "motis".
	Name() string
	// FetchDepartures returns the backend's upcoming departures for the station.
	FetchDepartures(ctx context.Context, stationID string) ([]RawDeparture, error)
}

// backendHTTPClient is the shared HTTP client for departure fetches,
// configured with explicit timeouts and transport limits to avoid the
// pitfalls of http.DefaultClient (no timeout, shared global state).
// The transport is cloned from http.DefaultTransport to preserve important
// defaults (ProxyFromEnvironment, DialContext, HTTP/2, keepalives).
var backendHTTPClient = newBackendHTTPClient()

func newBackendHTTPClient() *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConns = 50
	transport.MaxIdleConnsPerHost = 10
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ExpectContinueTimeout = 1 * time.Second

	return &http.Client{
		// Timeout acts as an absolute safety net per request. Poll cycles
		// also set a context deadline; the stricter of the two wins. Keep
		// this <= the cycle deadline so the client enforces the bound even
		// if a caller forgets a context.
		Timeout:   10 * time.Second,
		Transport: transport,
	}
}

// maxResponseSize bounds departure response bodies. Both backends return a
// few kilobytes per station; anything near this limit is garbage.
const maxResponseSize = 5 * 1024 * 1024
