package restapi

import (
	"time"

	"abfahrt.transitboard.org/internal/transit"
)

// StaleDetector decides whether a departure snapshot is too old to trust.
// Snapshots go stale when a station's poll cycles keep failing while the
// coordinator serves the last good result.
type StaleDetector struct {
	threshold time.Duration
}

func NewStaleDetector() *StaleDetector {
	return &StaleDetector{
		threshold: 15 * time.Minute,
	}
}

func (d *StaleDetector) WithThreshold(threshold time.Duration) *StaleDetector {
	d.threshold = threshold
	return d
}

func (d *StaleDetector) Check(snapshot *transit.Snapshot, currentTime time.Time) bool {
	if snapshot == nil {
		return true
	}

	age := currentTime.Sub(snapshot.GeneratedAt)

	return age > d.threshold
}

func (d *StaleDetector) Age(snapshot *transit.Snapshot, currentTime time.Time) time.Duration {
	if snapshot == nil {
		return d.threshold + 1
	}

	return currentTime.Sub(snapshot.GeneratedAt)
}
