// Package transit implements the departure aggregation core: backend
// clients for the RNV GraphQL Data Hub and the Motis REST API, normalization
// of their payloads into one departure model, filtering and ranking, and the
// per-station coordinators that poll them.
package transit

import "time"

// VehicleType classifies the vehicle serving a departure, as reported by the
// backend. Only trams receive fleet enrichment.
type VehicleType string

const (
	VehicleTypeUnknown VehicleType = ""
	VehicleTypeTram    VehicleType = "tram"
	VehicleTypeBus     VehicleType = "bus"
)

// RawDeparture is a backend-native departure record. Time fields are kept as
// the backend's ISO 8601 strings; parsing happens during normalization so a
// malformed record can be dropped instead of failing the whole poll.
type RawDeparture struct {
	Line         string
	Destination  string
	Platform     string
	PlannedTime  string
	RealtimeTime string
	Cancelled    bool

	// LoadRatio is nil when the backend reports no occupancy.
	LoadRatio    *float64
	LoadCategory string

	VehicleID   string
	VehicleType VehicleType

	// Route color metadata, Motis only.
	RouteColor     string
	RouteTextColor string
}

// VehicleInfo is static fleet metadata attached to tram departures.
type VehicleInfo struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Model  string `json:"model"`
	Livery string `json:"livery"`
}

// Departure is the normalized departure entity. Instances are never mutated
// after creation; each poll cycle produces a fresh set.
type Departure struct {
	Line        string
	Destination string
	Platform    string

	Planned time.Time
	// Realtime is zero unless the backend supplied a realtime value distinct
	// from the planned one.
	Realtime   time.Time
	IsRealtime bool

	LoadRatio    *float64
	LoadCategory string

	RouteColor     string
	RouteTextColor string

	Vehicle *VehicleInfo
}

// EffectiveTime is the authoritative display time: the realtime departure
// when one is known, the planned departure otherwise.
func (d Departure) EffectiveTime() time.Time {
	if d.IsRealtime {
		return d.Realtime
	}
	return d.Planned
}

// Snapshot is the immutable result of one poll cycle for one station: the
// next departures in display order, at most three. It replaces the previous
// snapshot for that station; no history is retained.
type Snapshot struct {
	StationID   string
	GeneratedAt time.Time
	Departures  []Departure
}
