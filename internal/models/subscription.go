package models

import (
	"time"

	"abfahrt.transitboard.org/internal/transit"
)

// SubscriptionModel describes one configured station subscription and its
// coordinator's health.
type SubscriptionModel struct {
	ID                  string `json:"id"`
	StationID           string `json:"stationId"`
	Backend             string `json:"backend"`
	Platform            string `json:"platform,omitempty"`
	Line                string `json:"line,omitempty"`
	DestinationRegex    string `json:"destinationRegex,omitempty"`
	Radius              int    `json:"radius,omitempty"`
	Available           bool   `json:"available"`
	ConsecutiveFailures int    `json:"consecutiveFailures,omitempty"`
	LastError           string `json:"lastError,omitempty"`
	LastSuccess         string `json:"lastSuccess,omitempty"`
}

// NewSubscriptionModel converts a coordinator's subscription and status.
func NewSubscriptionModel(sub transit.Subscription, status transit.Status) SubscriptionModel {
	model := SubscriptionModel{
		ID:                  sub.ID(),
		StationID:           sub.StationID,
		Backend:             sub.Backend,
		Platform:            sub.Filters.Platform,
		Line:                sub.Filters.Line,
		DestinationRegex:    sub.Filters.DestinationPattern(),
		Radius:              sub.Radius,
		Available:           status.Available,
		ConsecutiveFailures: status.ConsecutiveFailures,
		LastError:           status.LastError,
	}
	if !status.LastSuccess.IsZero() {
		model.LastSuccess = status.LastSuccess.Format(time.RFC3339)
	}
	return model
}
