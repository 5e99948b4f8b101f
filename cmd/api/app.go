package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"abfahrt.transitboard.org/internal/app"
	"abfahrt.transitboard.org/internal/appconf"
	"abfahrt.transitboard.org/internal/clock"
	"abfahrt.transitboard.org/internal/logging"
	"abfahrt.transitboard.org/internal/metrics"
	"abfahrt.transitboard.org/internal/restapi"
	"abfahrt.transitboard.org/internal/token"
	"abfahrt.transitboard.org/internal/transit"
	"abfahrt.transitboard.org/internal/webui"
	"abfahrt.transitboard.org/stationdb"
)

const dbStatsInterval = 15 * time.Second

// ParseAPIKeys splits a comma-separated API key list. An empty input yields
// an empty slice, not a slice with one empty key.
func ParseAPIKeys(apiKeys string) []string {
	if apiKeys == "" {
		return []string{}
	}
	keys := strings.Split(apiKeys, ",")
	for i, key := range keys {
		keys[i] = strings.TrimSpace(key)
	}
	return keys
}

func buildLogger(cfg appconf.Config) *slog.Logger {
	if cfg.Env == appconf.Test {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	if cfg.Env == appconf.Production {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// BuildApplication wires the application core: logger, metrics, station
// directory, token manager, and the transit manager with one coordinator per
// configured subscription.
func BuildApplication(cfg appconf.Config) (*app.Application, error) {
	logger := buildLogger(cfg)
	m := metrics.NewWithLogger(logger)
	clk := clock.RealClock{}

	dbPath := cfg.StationDBPath
	if dbPath == "" {
		dbPath = ":memory:"
	}
	stationDB, err := stationdb.NewClient(stationdb.NewConfig(dbPath, cfg.Env, cfg.Verbose))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize station database: %w", err)
	}

	if cfg.StationsDataPath != "" {
		if err := stationDB.ImportFromFile(context.Background(), cfg.StationsDataPath); err != nil {
			logging.SafeCloseWithLogging(stationDB, logger, "station database")
			return nil, fmt.Errorf("failed to import station data: %w", err)
		}
	}
	m.StartDBStatsCollector(stationDB.DB, dbStatsInterval)

	var tokens *token.Manager
	if cfg.RNV.Configured() {
		tokens = token.NewManager(clk, m, logger)
	}

	fleet, err := transit.DefaultFleet()
	if err != nil {
		logging.SafeCloseWithLogging(stationDB, logger, "station database")
		return nil, fmt.Errorf("failed to load fleet data: %w", err)
	}

	manager := transit.NewManager(transit.ManagerConfig{
		RNV:          cfg.RNV,
		Motis:        cfg.Motis,
		PollInterval: cfg.PollInterval,
		Tokens:       tokens,
		Fleet:        fleet,
		Clock:        clk,
		Metrics:      m,
		Logger:       logger,
	})

	for _, sub := range cfg.Subscriptions {
		if _, err := manager.AddSubscription(sub); err != nil {
			manager.Shutdown()
			logging.SafeCloseWithLogging(stationDB, logger, "station database")
			return nil, fmt.Errorf("failed to add subscription for station %q: %w", sub.StationID, err)
		}
	}

	logging.LogOperation(logger, "application_built",
		slog.String("env", cfg.Env.String()),
		slog.Int("subscriptions", len(cfg.Subscriptions)),
		slog.Int("spatial_index_size", stationDB.SpatialIndexSize()),
	)

	return &app.Application{
		Config:         cfg,
		Logger:         logger,
		TransitManager: manager,
		TokenManager:   tokens,
		StationDB:      stationDB,
		Clock:          clk,
		Metrics:        m,
	}, nil
}

// CreateServer builds the HTTP server with all routes registered: the REST
// API, the debug and board web UI, and the Prometheus metrics endpoint.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	api := restapi.NewRestAPI(coreApp)
	ui := webui.NewWebUI(coreApp)

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	ui.SetRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(coreApp.Metrics.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return srv, api
}

// RunServer serves until SIGINT or SIGTERM, then shuts down in dependency
// order: HTTP server first, then pollers, then metrics and the database.
func RunServer(coreApp *app.Application, srv *http.Server, api *restapi.RestAPI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logging.LogOperation(coreApp.Logger, "server_started", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logging.LogOperation(coreApp.Logger, "server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)

	api.Shutdown()
	coreApp.TransitManager.Shutdown()
	coreApp.Metrics.Shutdown()
	logging.SafeCloseWithLogging(coreApp.StationDB, coreApp.Logger, "station database")

	if shutdownErr != nil {
		return fmt.Errorf("server shutdown: %w", shutdownErr)
	}
	if err := <-serveErr; err != nil {
		return err
	}
	logging.LogOperation(coreApp.Logger, "server_stopped")
	return nil
}
