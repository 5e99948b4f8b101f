package transit

import (
	"log/slog"
	"time"

	"abfahrt.transitboard.org/internal/metrics"
)

// FleetDirectory resolves a vehicle identifier to static fleet metadata.
// Lookups are consulted only for tram departures; a miss is not an error.
type FleetDirectory interface {
	Lookup(vehicleID string) (VehicleInfo, bool)
}

// Normalizer converts raw backend records into Departure entities, merging
// planned and realtime timing and attaching tram fleet enrichment.
type Normalizer struct {
	fleet   FleetDirectory
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewNormalizer creates a normalizer. Fleet and metrics may be nil.
func NewNormalizer(fleet FleetDirectory, logger *slog.Logger, m *metrics.Metrics) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		fleet:   fleet,
		logger:  logger.With(slog.String("component", "normalizer")),
		metrics: m,
	}
}

// Normalize converts a poll cycle's raw records into departures. Cancelled
// journeys and records without a parseable planned time are dropped; the
// drops are observability-only and never fail the cycle.
func (n *Normalizer) Normalize(raws []RawDeparture) []Departure {
	departures := make([]Departure, 0, len(raws))
	for _, raw := range raws {
		if raw.Cancelled {
			continue
		}
		d, ok := n.normalizeOne(raw)
		if !ok {
			continue
		}
		departures = append(departures, d)
	}
	return departures
}

func (n *Normalizer) normalizeOne(raw RawDeparture) (Departure, bool) {
	if raw.PlannedTime == "" {
		n.recordAnomaly(raw, "missing planned time")
		return Departure{}, false
	}
	planned, err := time.Parse(time.RFC3339, raw.PlannedTime)
	if err != nil {
		n.recordAnomaly(raw, "unparseable planned time")
		return Departure{}, false
	}

	d := Departure{
		Line:           raw.Line,
		Destination:    raw.Destination,
		Platform:       raw.Platform,
		Planned:        planned,
		LoadRatio:      raw.LoadRatio,
		LoadCategory:   raw.LoadCategory,
		RouteColor:     raw.RouteColor,
		RouteTextColor: raw.RouteTextColor,
	}

	if raw.RealtimeTime != "" {
		realtime, err := time.Parse(time.RFC3339, raw.RealtimeTime)
		if err != nil {
			// A broken realtime value degrades the record to planned-only
			// rather than dropping it.
			n.recordAnomaly(raw, "unparseable realtime time")
		} else if !realtime.Equal(planned) {
			d.Realtime = realtime
			d.IsRealtime = true
		}
	}

	// Fleet metadata exists only for trams; other vehicle types stay
	// unenriched.
	if raw.VehicleID != "" && raw.VehicleType == VehicleTypeTram && n.fleet != nil {
		if info, ok := n.fleet.Lookup(raw.VehicleID); ok {
			d.Vehicle = &info
		} else {
			n.logger.Debug("vehicle not in fleet table", slog.String("vehicle_id", raw.VehicleID))
		}
	}

	return d, true
}

func (n *Normalizer) recordAnomaly(raw RawDeparture, reason string) {
	if n.metrics != nil {
		n.metrics.NormalizationAnomaliesTotal.Inc()
	}
	n.logger.Warn("dropped raw departure record",
		slog.String("reason", reason),
		slog.String("line", raw.Line),
		slog.String("destination", raw.Destination))
}
