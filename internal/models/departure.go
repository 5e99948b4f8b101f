package models

import (
	"fmt"
	"time"

	"abfahrt.transitboard.org/internal/transit"
)

// DepartureModel is one upcoming departure as served by the API.
type DepartureModel struct {
	Line          string  `json:"line"`
	Destination   string  `json:"destination"`
	Platform      string  `json:"platform,omitempty"`
	PlannedTime   string  `json:"plannedTime"`
	RealtimeTime  string  `json:"realtimeTime,omitempty"`
	EffectiveTime string  `json:"effectiveTime"`
	IsRealtime    bool    `json:"isRealtime"`
	Until         string  `json:"until"`
	LoadRatio     *float64 `json:"loadRatio,omitempty"`
	LoadCategory  string  `json:"loadCategory,omitempty"`
	RouteColor    string  `json:"routeColor,omitempty"`
	RouteTextColor string `json:"routeTextColor,omitempty"`

	Vehicle *transit.VehicleInfo `json:"vehicle,omitempty"`
}

// DeparturesModel is the departure board for one subscription.
type DeparturesModel struct {
	SubscriptionID      string           `json:"subscriptionId"`
	StationID           string           `json:"stationId"`
	GeneratedAt         string           `json:"generatedAt,omitempty"`
	Available           bool             `json:"available"`
	Stale               bool             `json:"stale,omitempty"`
	ConsecutiveFailures int              `json:"consecutiveFailures,omitempty"`
	LastError           string           `json:"lastError,omitempty"`
	Departures          []DepartureModel `json:"departures"`
}

// UntilDisplay renders the time until a departure: "now" once it is due,
// minutes up to an hour, the clock time beyond that.
func UntilDisplay(departure, now time.Time) string {
	minutes := int(departure.Sub(now).Seconds()) / 60
	if minutes < 0 {
		minutes = 0
	}
	switch {
	case minutes >= 60:
		return departure.Format("15:04")
	case minutes > 0:
		return fmt.Sprintf("%d min", minutes)
	default:
		return "now"
	}
}

// NewDepartureModel converts a normalized departure for API output.
func NewDepartureModel(d transit.Departure, now time.Time) DepartureModel {
	model := DepartureModel{
		Line:           d.Line,
		Destination:    d.Destination,
		Platform:       d.Platform,
		PlannedTime:    d.Planned.Format(time.RFC3339),
		EffectiveTime:  d.EffectiveTime().Format(time.RFC3339),
		IsRealtime:     d.IsRealtime,
		Until:          UntilDisplay(d.EffectiveTime(), now),
		LoadRatio:      d.LoadRatio,
		LoadCategory:   d.LoadCategory,
		RouteColor:     d.RouteColor,
		RouteTextColor: d.RouteTextColor,
		Vehicle:        d.Vehicle,
	}
	if d.IsRealtime {
		model.RealtimeTime = d.Realtime.Format(time.RFC3339)
	}
	return model
}

// NewDeparturesModel builds the board for a subscription's current snapshot.
// A subscription that has never completed a poll cycle has no snapshot; its
// board is empty but still reports health.
func NewDeparturesModel(id string, snapshot *transit.Snapshot, status transit.Status, now time.Time) DeparturesModel {
	model := DeparturesModel{
		SubscriptionID:      id,
		Available:           status.Available,
		ConsecutiveFailures: status.ConsecutiveFailures,
		LastError:           status.LastError,
		Departures:          []DepartureModel{},
	}
	if snapshot == nil {
		return model
	}

	model.StationID = snapshot.StationID
	model.GeneratedAt = snapshot.GeneratedAt.Format(time.RFC3339)
	for _, d := range snapshot.Departures {
		model.Departures = append(model.Departures, NewDepartureModel(d, now))
	}
	return model
}
