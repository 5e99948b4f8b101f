package transit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"abfahrt.transitboard.org/internal/clock"
	"abfahrt.transitboard.org/internal/logging"
	"abfahrt.transitboard.org/internal/metrics"
)

const motisBackendName = "motis"

const (
	// defaultMotisRadius matches stops within this many meters of the
	// requested stop, grouping poles that share a station.
	defaultMotisRadius = 50
	// motisStopTimesCount is how many stop times to request per poll.
	motisStopTimesCount = 10
)

// MotisBackend queries a Motis instance (transitous.org by default) over its
// unauthenticated REST API.
type MotisBackend struct {
	baseURL    string
	radius     int
	clock      clock.Clock
	metrics    *metrics.Metrics
	logger     *slog.Logger
	httpClient *http.Client
}

// NewMotisBackend creates a Motis backend client. A radius of 0 uses the
// default. Metrics may be nil.
func NewMotisBackend(baseURL string, radius int, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *MotisBackend {
	if logger == nil {
		logger = slog.Default()
	}
	if radius <= 0 {
		radius = defaultMotisRadius
	}
	return &MotisBackend{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		radius:     radius,
		clock:      clk,
		metrics:    m,
		logger:     logger.With(slog.String("component", "motis_backend")),
		httpClient: backendHTTPClient,
	}
}

func (b *MotisBackend) Name() string {
	return motisBackendName
}

type motisStopTimesResponse struct {
	StopTimes []motisStopTime `json:"stopTimes"`
}

type motisStopTime struct {
	Place struct {
		Track              string `json:"track"`
		Departure          string `json:"departure"`
		Arrival            string `json:"arrival"`
		ScheduledDeparture string `json:"scheduledDeparture"`
	} `json:"place"`
	DisplayName    string `json:"displayName"`
	Headsign       string `json:"headsign"`
	Cancelled      bool   `json:"cancelled"`
	RealTime       bool   `json:"realTime"`
	RouteColor     string `json:"routeColor"`
	RouteTextColor string `json:"routeTextColor"`
}

// FetchDepartures queries the stop's upcoming stop times.
func (b *MotisBackend) FetchDepartures(ctx context.Context, stationID string) ([]RawDeparture, error) {
	params := url.Values{}
	params.Set("stopId", stationID)
	params.Set("radius", strconv.Itoa(b.radius))
	params.Set("time", b.clock.Now().UTC().Format(time.RFC3339))
	params.Set("n", strconv.Itoa(motisStopTimesCount))

	endpoint := b.baseURL + "/api/v5/stoptimes?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building stoptimes request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		berr := wrapRequestError(motisBackendName, err)
		b.countRequest(berr.Kind.String())
		return nil, berr
	}
	defer logging.SafeCloseWithLogging(resp.Body, b.logger, "motis_response_body")

	if resp.StatusCode != http.StatusOK {
		b.countRequest("http_status")
		return nil, &BackendError{
			Backend: motisBackendName,
			Kind:    BackendHTTPStatus,
			Err:     fmt.Errorf("stoptimes endpoint returned %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		berr := wrapRequestError(motisBackendName, err)
		b.countRequest(berr.Kind.String())
		return nil, berr
	}

	var decoded motisStopTimesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		b.countRequest("malformed_response")
		return nil, &BackendError{
			Backend: motisBackendName,
			Kind:    BackendMalformedResponse,
			Err:     fmt.Errorf("decoding stoptimes response: %w", err),
		}
	}

	b.countRequest("success")
	return motisRawDepartures(decoded.StopTimes), nil
}

func motisRawDepartures(stopTimes []motisStopTime) []RawDeparture {
	raws := make([]RawDeparture, 0, len(stopTimes))
	for _, st := range stopTimes {
		planned := st.Place.ScheduledDeparture
		if planned == "" {
			// Terminus records only carry an arrival; treat it as the
			// planned departure so the ride still shows up.
			planned = st.Place.Arrival
		}

		var realtime string
		if st.RealTime {
			realtime = st.Place.Departure
		}

		raws = append(raws, RawDeparture{
			Line:           st.DisplayName,
			Destination:    st.Headsign,
			Platform:       st.Place.Track,
			PlannedTime:    planned,
			RealtimeTime:   realtime,
			Cancelled:      st.Cancelled,
			RouteColor:     colorWithHash(st.RouteColor),
			RouteTextColor: colorWithHash(st.RouteTextColor),
		})
	}
	return raws
}

// colorWithHash normalizes Motis's bare hex color values to CSS form.
func colorWithHash(color string) string {
	if color == "" {
		return ""
	}
	if strings.HasPrefix(color, "#") {
		return color
	}
	return "#" + color
}

func (b *MotisBackend) countRequest(result string) {
	if b.metrics != nil {
		b.metrics.BackendRequestsTotal.WithLabelValues(motisBackendName, result).Inc()
	}
}
