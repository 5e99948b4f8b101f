package transit

import (
	"context"
	"fmt"
	"hash/crc32"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"abfahrt.transitboard.org/internal/clock"
	"abfahrt.transitboard.org/internal/logging"
	"abfahrt.transitboard.org/internal/metrics"
)

// pollTimeout bounds one poll cycle, covering a possible token refresh plus
// the departure fetch.
const pollTimeout = 15 * time.Second

// Subscription is a user's configured intent to monitor one station.
type Subscription struct {
	StationID string
	Backend   string
	Filters   Filters
	Radius    int
}

// ID returns a stable identifier for the subscription, unique per station,
// backend, and filter set. It is URL-safe and used as the API route key.
func (s Subscription) ID() string {
	parts := []string{s.Backend, s.StationID}
	if s.Filters.Platform != "" {
		parts = append(parts, "p-"+s.Filters.Platform)
	}
	if s.Filters.Line != "" {
		parts = append(parts, "l-"+s.Filters.Line)
	}
	if pattern := s.Filters.DestinationPattern(); pattern != "" {
		// Patterns contain regex metacharacters; a checksum keeps the ID
		// URL-safe while still distinguishing different filters.
		parts = append(parts, fmt.Sprintf("d-%08x", crc32.ChecksumIEEE([]byte(pattern))))
	}
	return strings.Join(parts, "_")
}

// Status describes a coordinator's health for observability.
type Status struct {
	Available           bool
	ConsecutiveFailures int
	LastError           string
	LastSuccess         time.Time
}

// Coordinator polls one subscription's station on a fixed interval and
// publishes the resulting departure snapshot. Poll cycles for the same
// station never overlap; a cycle that would start while the previous one is
// still running is skipped. A failing cycle leaves the previous snapshot in
// place so consumers keep stale-but-available data.
type Coordinator struct {
	sub        Subscription
	backend    Backend
	normalizer *Normalizer
	interval   time.Duration
	grace      time.Duration
	clock      clock.Clock
	metrics    *metrics.Metrics
	logger     *slog.Logger

	busy    atomic.Bool
	stopped atomic.Bool

	mu          sync.RWMutex
	snapshot    *Snapshot
	lastErr     error
	failures    int
	lastSuccess time.Time

	stopOnce sync.Once
	stopChan chan struct{}
}

func newCoordinator(sub Subscription, backend Backend, normalizer *Normalizer, interval, grace time.Duration, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		sub:        sub,
		backend:    backend,
		normalizer: normalizer,
		interval:   interval,
		grace:      grace,
		clock:      clk,
		metrics:    m,
		logger: logger.With(
			slog.String("component", "station_coordinator"),
			slog.String("subscription", sub.ID())),
		stopChan: make(chan struct{}),
	}
}

// Subscription returns the subscription this coordinator serves.
func (c *Coordinator) Subscription() Subscription {
	return c.sub
}

// run is the coordinator's polling loop. It executes one cycle immediately
// so a freshly added subscription does not wait a full interval for data,
// then polls on the ticker until stopped.
func (c *Coordinator) run(wg *sync.WaitGroup) {
	defer wg.Done()

	c.Poll()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Poll()
		case <-c.stopChan:
			logging.LogOperation(c.logger, "shutting_down_station_coordinator")
			return
		}
	}
}

// Poll executes one fetch-normalize-select cycle. It returns immediately if
// the previous cycle is still running or the coordinator has been stopped.
func (c *Coordinator) Poll() {
	if c.stopped.Load() {
		return
	}
	if !c.busy.CompareAndSwap(false, true) {
		if c.metrics != nil {
			c.metrics.PollCyclesSkippedTotal.WithLabelValues(c.sub.StationID).Inc()
		}
		c.logger.Warn("skipping poll cycle, previous cycle still running")
		return
	}
	defer c.busy.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()
	ctx = logging.WithLogger(ctx, c.logger)

	start := time.Now()
	raws, err := c.backend.FetchDepartures(ctx, c.sub.StationID)
	if c.metrics != nil {
		c.metrics.PollCycleDuration.WithLabelValues(c.sub.StationID).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		c.recordFailure(err)
		return
	}

	now := c.clock.Now()
	departures := Select(c.normalizer.Normalize(raws), c.sub.Filters, now, c.grace)
	c.publish(&Snapshot{
		StationID:   c.sub.StationID,
		GeneratedAt: now,
		Departures:  departures,
	})
}

// recordFailure notes a failed cycle without touching the published
// snapshot. Failures never propagate to sibling coordinators.
func (c *Coordinator) recordFailure(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.failures++
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.PollCyclesTotal.WithLabelValues(c.sub.StationID, "failure").Inc()
	}
	logging.LogError(c.logger, "poll cycle failed", err,
		slog.String("station", c.sub.StationID))
}

// publish replaces the snapshot. A coordinator that has been stopped while
// the cycle was in flight discards the result instead of publishing it.
func (c *Coordinator) publish(snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped.Load() {
		return
	}
	c.snapshot = snap
	c.lastErr = nil
	c.failures = 0
	c.lastSuccess = snap.GeneratedAt

	if c.metrics != nil {
		c.metrics.PollCyclesTotal.WithLabelValues(c.sub.StationID, "success").Inc()
	}
}

// Snapshot returns the most recent successfully published snapshot, or nil
// if no cycle has succeeded yet. The returned snapshot is immutable.
func (c *Coordinator) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Status reports the coordinator's health. Available means the most recent
// cycle succeeded; a station with a stale snapshot remains unavailable until
// a cycle succeeds again.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{
		Available:           c.lastErr == nil && c.snapshot != nil,
		ConsecutiveFailures: c.failures,
		LastSuccess:         c.lastSuccess,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// Stop halts the polling loop. An in-flight cycle is allowed to finish but
// its result is discarded; nothing is published after Stop returns.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		// Taking the mutex serializes against an in-flight publish: it
		// either completes before the flag flips or observes the flag and
		// discards its snapshot.
		c.mu.Lock()
		c.stopped.Store(true)
		c.mu.Unlock()
		close(c.stopChan)
	})
}
