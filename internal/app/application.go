package app

import (
	"log/slog"

	"abfahrt.transitboard.org/internal/appconf"
	"abfahrt.transitboard.org/internal/clock"
	"abfahrt.transitboard.org/internal/metrics"
	"abfahrt.transitboard.org/internal/token"
	"abfahrt.transitboard.org/internal/transit"
	"abfahrt.transitboard.org/stationdb"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware: the configuration, the transit manager with its station
// coordinators, the token manager, and the station directory.
type Application struct {
	Config         appconf.Config
	Logger         *slog.Logger
	TransitManager *transit.Manager
	TokenManager   *token.Manager
	StationDB      *stationdb.Client
	Clock          clock.Clock
	Metrics        *metrics.Metrics
}
