package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abfahrt.transitboard.org/internal/transit"
)

func TestUntilDisplay(t *testing.T) {
	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		departure time.Time
		want      string
	}{
		{"due now", now, "now"},
		{"under a minute", now.Add(45 * time.Second), "now"},
		{"minutes", now.Add(7 * time.Minute), "7 min"},
		{"just under an hour", now.Add(59 * time.Minute), "59 min"},
		{"an hour or more shows clock time", now.Add(90 * time.Minute), "09:30"},
		{"already departed", now.Add(-2 * time.Minute), "now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UntilDisplay(tt.departure, now))
		})
	}
}

func TestNewDepartureModel(t *testing.T) {
	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	ratio := 0.42

	d := transit.Departure{
		Line:         "21",
		Destination:  "Bismarckplatz",
		Platform:     "A",
		Planned:      now.Add(5 * time.Minute),
		Realtime:     now.Add(7 * time.Minute),
		IsRealtime:   true,
		LoadRatio:    &ratio,
		LoadCategory: "low",
		Vehicle:      &transit.VehicleInfo{ID: "5601", Type: "tram", Model: "Skoda 36T"},
	}

	model := NewDepartureModel(d, now)
	assert.Equal(t, "21", model.Line)
	assert.Equal(t, "2025-06-15T08:05:00Z", model.PlannedTime)
	assert.Equal(t, "2025-06-15T08:07:00Z", model.RealtimeTime)
	assert.Equal(t, "2025-06-15T08:07:00Z", model.EffectiveTime)
	assert.Equal(t, "7 min", model.Until)
	assert.Equal(t, &ratio, model.LoadRatio)
	require.NotNil(t, model.Vehicle)
	assert.Equal(t, "Skoda 36T", model.Vehicle.Model)

	// Planned-only departures carry no realtime field.
	plannedOnly := NewDepartureModel(transit.Departure{Planned: now.Add(time.Minute)}, now)
	assert.Empty(t, plannedOnly.RealtimeTime)
	assert.False(t, plannedOnly.IsRealtime)
}

func TestNewDeparturesModelWithoutSnapshot(t *testing.T) {
	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)

	model := NewDeparturesModel("rnv_1144", nil, transit.Status{LastError: "rnv backend: timeout: x"}, now)
	assert.Equal(t, "rnv_1144", model.SubscriptionID)
	assert.False(t, model.Available)
	assert.Equal(t, "rnv backend: timeout: x", model.LastError)
	require.NotNil(t, model.Departures)
	assert.Empty(t, model.Departures)
}
