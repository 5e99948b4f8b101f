package restapi

import (
	"fmt"
	"net/http"
)

const noCacheValue = "no-cache, no-store, must-revalidate"

// CacheControlMiddleware sets Cache-Control on successful responses. Station
// directory lookups are static data and cache for durationSeconds; departure
// boards pass 0 so that clients always see the current snapshot. Error
// responses are never cached.
func CacheControlMiddleware(durationSeconds int, next http.Handler) http.Handler {
	successValue := noCacheValue
	if durationSeconds > 0 {
		successValue = fmt.Sprintf("public, max-age=%d", durationSeconds)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&cacheControlWriter{ResponseWriter: w, successValue: successValue}, r)
	})
}

// cacheControlWriter defers the header decision until the status code is
// known, since handlers report errors after middleware has run.
type cacheControlWriter struct {
	http.ResponseWriter
	successValue  string
	headerWritten bool
}

func (w *cacheControlWriter) WriteHeader(code int) {
	if !w.headerWritten {
		w.headerWritten = true
		value := noCacheValue
		if code >= 200 && code < 300 {
			value = w.successValue
		}
		w.ResponseWriter.Header().Set("Cache-Control", value)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
