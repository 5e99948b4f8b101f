package transit

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// BackendErrorKind classifies departure fetch failures.
type BackendErrorKind int

const (
	// BackendTimeout: the request exceeded its deadline.
	BackendTimeout BackendErrorKind = iota
	// BackendHTTPStatus: the backend answered with a non-2xx status.
	BackendHTTPStatus
	// BackendMalformedResponse: the response body could not be decoded.
	BackendMalformedResponse
)

func (k BackendErrorKind) String() string {
	switch k {
	case BackendTimeout:
		return "timeout"
	case BackendHTTPStatus:
		return "http_status"
	case BackendMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// BackendError is returned by a Backend when a departure fetch fails. Poll
// failures are ordinary: the station coordinator records them and keeps the
// previous snapshot.
type BackendError struct {
	Backend string
	Kind    BackendErrorKind
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// wrapRequestError maps a transport-level error to a BackendError,
// recognizing deadline and timeout conditions.
func wrapRequestError(backend string, err error) *BackendError {
	kind := BackendHTTPStatus
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = BackendTimeout
	}
	return &BackendError{Backend: backend, Kind: kind, Err: err}
}
