package transit

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"abfahrt.transitboard.org/internal/appconf"
	"abfahrt.transitboard.org/internal/clock"
	"abfahrt.transitboard.org/internal/metrics"
	"abfahrt.transitboard.org/internal/token"
)

// Grace windows for keeping just-departed vehicles visible. RNV's realtime
// feed is authoritative, so only future departures count; Motis restores
// recent departures for up to five minutes, matching its validity window.
const (
	rnvGrace   = 0
	motisGrace = 5 * time.Minute
)

// ErrDuplicateSubscription is returned when a subscription with the same
// station, backend, and filters already exists.
var ErrDuplicateSubscription = fmt.Errorf("subscription already exists")

// Manager owns one coordinator per subscription. Coordinators poll
// independently; the only state they share is the token manager.
type Manager struct {
	rnvConfig    appconf.RNVConfig
	motisConfig  appconf.MotisConfig
	pollInterval time.Duration

	tokens     *token.Manager
	normalizer *Normalizer
	clock      clock.Clock
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu           sync.RWMutex
	coordinators map[string]*Coordinator
	shuttingDown bool

	wg sync.WaitGroup
}

// ManagerConfig carries the manager's dependencies. Fleet and Metrics may be
// nil; Tokens is only required when RNV subscriptions are added.
type ManagerConfig struct {
	RNV          appconf.RNVConfig
	Motis        appconf.MotisConfig
	PollInterval time.Duration
	Tokens       *token.Manager
	Fleet        FleetDirectory
	Clock        clock.Clock
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// NewManager creates a manager with no subscriptions.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	return &Manager{
		rnvConfig:    cfg.RNV,
		motisConfig:  cfg.Motis,
		pollInterval: interval,
		tokens:       cfg.Tokens,
		normalizer:   NewNormalizer(cfg.Fleet, logger, cfg.Metrics),
		clock:        clk,
		metrics:      cfg.Metrics,
		logger:       logger,
		coordinators: make(map[string]*Coordinator),
	}
}

// AddSubscription validates the subscription, builds its backend client, and
// starts its coordinator. Filter validation happens here, synchronously, so
// an invalid destination pattern blocks creation and never reaches polling.
func (m *Manager) AddSubscription(sub appconf.Subscription) (*Coordinator, error) {
	filters, err := NewFilters(sub.Platform, sub.Line, sub.DestinationRegex)
	if err != nil {
		return nil, err
	}

	subscription := Subscription{
		StationID: sub.StationID,
		Backend:   sub.Backend,
		Filters:   filters,
		Radius:    sub.Radius,
	}

	backend, grace, err := m.buildBackend(subscription)
	if err != nil {
		return nil, err
	}

	coordinator := newCoordinator(subscription, backend, m.normalizer,
		m.pollInterval, grace, m.clock, m.metrics, m.logger)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shuttingDown {
		return nil, fmt.Errorf("manager is shutting down")
	}
	id := subscription.ID()
	if _, exists := m.coordinators[id]; exists {
		return nil, ErrDuplicateSubscription
	}
	m.coordinators[id] = coordinator

	m.wg.Add(1)
	go coordinator.run(&m.wg)

	return coordinator, nil
}

func (m *Manager) buildBackend(sub Subscription) (Backend, time.Duration, error) {
	switch sub.Backend {
	case rnvBackendName:
		if m.tokens == nil || !m.rnvConfig.Configured() {
			return nil, 0, fmt.Errorf("rnv backend is not configured")
		}
		cred := token.Credential{
			ClientID:     m.rnvConfig.ClientID,
			ClientSecret: m.rnvConfig.ClientSecret,
			Resource:     m.rnvConfig.Resource,
			OAuthURL:     m.rnvConfig.OAuthURL,
		}
		return NewRNVBackend(m.rnvConfig.APIURL, cred, m.tokens, m.clock, m.metrics, m.logger), rnvGrace, nil
	case motisBackendName:
		return NewMotisBackend(m.motisConfig.BaseURL, sub.Radius, m.clock, m.metrics, m.logger), motisGrace, nil
	default:
		return nil, 0, fmt.Errorf("unknown backend %q", sub.Backend)
	}
}

// RemoveSubscription stops the subscription's coordinator and forgets it.
// Returns false if no such subscription exists. An in-flight poll cycle may
// still be running when this returns, but it will not publish.
func (m *Manager) RemoveSubscription(id string) bool {
	m.mu.Lock()
	coordinator, ok := m.coordinators[id]
	if ok {
		delete(m.coordinators, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	coordinator.Stop()
	return true
}

// Coordinator returns the coordinator for a subscription ID.
func (m *Manager) Coordinator(id string) (*Coordinator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coordinator, ok := m.coordinators[id]
	return coordinator, ok
}

// Coordinators returns all coordinators ordered by subscription ID.
func (m *Manager) Coordinators() []*Coordinator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*Coordinator, 0, len(m.coordinators))
	for _, coordinator := range m.coordinators {
		all = append(all, coordinator)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Subscription().ID() < all[j].Subscription().ID()
	})
	return all
}

// Shutdown stops all coordinators and waits for their loops to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.shuttingDown = true
	coordinators := make([]*Coordinator, 0, len(m.coordinators))
	for _, coordinator := range m.coordinators {
		coordinators = append(coordinators, coordinator)
	}
	m.mu.Unlock()

	for _, coordinator := range coordinators {
		coordinator.Stop()
	}
	m.wg.Wait()
}
