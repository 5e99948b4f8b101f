package transit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"abfahrt.transitboard.org/internal/clock"
	"abfahrt.transitboard.org/internal/logging"
	"abfahrt.transitboard.org/internal/metrics"
	"abfahrt.transitboard.org/internal/token"
)

const rnvBackendName = "rnv"

// rnvLookahead is the journey window requested per poll. One hour covers the
// next three departures for every line frequency RNV operates.
const rnvLookahead = time.Hour

// RNVBackend queries the RNV Data Hub GraphQL API. Every request carries a
// bearer token obtained from the shared token manager.
type RNVBackend struct {
	apiURL     string
	credential token.Credential
	tokens     *token.Manager
	clock      clock.Clock
	metrics    *metrics.Metrics
	logger     *slog.Logger
	httpClient *http.Client
}

// NewRNVBackend creates an RNV backend client. Metrics may be nil.
func NewRNVBackend(apiURL string, credential token.Credential, tokens *token.Manager, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *RNVBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &RNVBackend{
		apiURL:     apiURL,
		credential: credential,
		tokens:     tokens,
		clock:      clk,
		metrics:    m,
		logger:     logger.With(slog.String("component", "rnv_backend")),
		httpClient: backendHTTPClient,
	}
}

func (b *RNVBackend) Name() string {
	return rnvBackendName
}

// rnvQueryTemplate asks for the station's journeys inside a time window,
// restricted to the monitored station via onlyHafasID so each journey
// carries exactly the stop of interest.
const rnvQueryTemplate = `query {
  station(id: "%s") {
    hafasID
    longName
    journeys(startTime: "%s", endTime: "%s", first: 50) {
      totalCount
      elements {
        ... on Journey {
          line {
            lineGroup {
              label
            }
          }
          loads(onlyHafasID: "%s") {
            ratio
            loadType
          }
          cancelled
          vehicles {
            id
            type
          }
          stops(onlyHafasID: "%s") {
            plannedDeparture {
              isoString
            }
            realtimeDeparture {
              isoString
            }
            destinationLabel
            pole {
              platform {
                label
              }
            }
          }
        }
      }
    }
  }
}`

type rnvResponse struct {
	Data struct {
		Station *struct {
			Journeys struct {
				Elements []rnvJourney `json:"elements"`
			} `json:"journeys"`
		} `json:"station"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type rnvJourney struct {
	Line struct {
		LineGroup struct {
			Label string `json:"label"`
		} `json:"lineGroup"`
	} `json:"line"`
	Loads []struct {
		Ratio    *float64 `json:"ratio"`
		LoadType string   `json:"loadType"`
	} `json:"loads"`
	Cancelled bool `json:"cancelled"`
	Vehicles  []struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"vehicles"`
	Stops []struct {
		PlannedDeparture struct {
			IsoString string `json:"isoString"`
		} `json:"plannedDeparture"`
		RealtimeDeparture struct {
			IsoString string `json:"isoString"`
		} `json:"realtimeDeparture"`
		DestinationLabel string `json:"destinationLabel"`
		Pole             struct {
			Platform struct {
				Label string `json:"label"`
			} `json:"platform"`
		} `json:"pole"`
	} `json:"stops"`
}

// FetchDepartures queries the station's departure board for the next hour.
func (b *RNVBackend) FetchDepartures(ctx context.Context, stationID string) ([]RawDeparture, error) {
	tok, err := b.tokens.Token(ctx, b.credential)
	if err != nil {
		b.countRequest("auth_error")
		return nil, err
	}

	// The API expects minute-aligned UTC timestamps.
	start := b.clock.Now().UTC().Truncate(time.Minute)
	end := start.Add(rnvLookahead)
	query := fmt.Sprintf(rnvQueryTemplate,
		stationID,
		start.Format("2006-01-02T15:04:05Z"),
		end.Format("2006-01-02T15:04:05Z"),
		stationID,
		stationID)

	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("encoding graphql query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building graphql request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		berr := wrapRequestError(rnvBackendName, err)
		b.countRequest(berr.Kind.String())
		return nil, berr
	}
	defer logging.SafeCloseWithLogging(resp.Body, b.logger, "rnv_response_body")

	if resp.StatusCode != http.StatusOK {
		b.countRequest("http_status")
		return nil, &BackendError{
			Backend: rnvBackendName,
			Kind:    BackendHTTPStatus,
			Err:     fmt.Errorf("graphql endpoint returned %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		berr := wrapRequestError(rnvBackendName, err)
		b.countRequest(berr.Kind.String())
		return nil, berr
	}

	var decoded rnvResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		b.countRequest("malformed_response")
		return nil, &BackendError{
			Backend: rnvBackendName,
			Kind:    BackendMalformedResponse,
			Err:     fmt.Errorf("decoding graphql response: %w", err),
		}
	}
	if len(decoded.Errors) > 0 {
		b.countRequest("malformed_response")
		return nil, &BackendError{
			Backend: rnvBackendName,
			Kind:    BackendMalformedResponse,
			Err:     fmt.Errorf("graphql errors: %s", decoded.Errors[0].Message),
		}
	}
	if decoded.Data.Station == nil {
		b.countRequest("malformed_response")
		return nil, &BackendError{
			Backend: rnvBackendName,
			Kind:    BackendMalformedResponse,
			Err:     fmt.Errorf("graphql response has no station %q", stationID),
		}
	}

	b.countRequest("success")
	return rnvRawDepartures(decoded.Data.Station.Journeys.Elements), nil
}

// rnvRawDepartures flattens journeys into raw departure records, one per
// stop. With onlyHafasID each journey normally carries a single stop.
func rnvRawDepartures(journeys []rnvJourney) []RawDeparture {
	raws := make([]RawDeparture, 0, len(journeys))
	for _, journey := range journeys {
		var loadRatio *float64
		var loadCategory string
		if len(journey.Loads) > 0 {
			loadRatio = journey.Loads[0].Ratio
			loadCategory = journey.Loads[0].LoadType
		}

		var vehicleID string
		var vehicleType VehicleType
		if len(journey.Vehicles) > 0 {
			vehicleID = journey.Vehicles[0].ID
			vehicleType = VehicleType(strings.ToLower(journey.Vehicles[0].Type))
		}

		for _, stop := range journey.Stops {
			raws = append(raws, RawDeparture{
				Line:         journey.Line.LineGroup.Label,
				Destination:  stop.DestinationLabel,
				Platform:     stop.Pole.Platform.Label,
				PlannedTime:  stop.PlannedDeparture.IsoString,
				RealtimeTime: stop.RealtimeDeparture.IsoString,
				Cancelled:    journey.Cancelled,
				LoadRatio:    loadRatio,
				LoadCategory: loadCategory,
				VehicleID:    vehicleID,
				VehicleType:  vehicleType,
			})
		}
	}
	return raws
}

func (b *RNVBackend) countRequest(result string) {
	if b.metrics != nil {
		b.metrics.BackendRequestsTotal.WithLabelValues(rnvBackendName, result).Inc()
	}
}
