package stationdb

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver

	"abfahrt.transitboard.org/internal/appconf"
)

// Config controls where the station directory lives and how it behaves.
type Config struct {
	Env     appconf.Environment
	DBPath  string
	verbose bool
}

// NewConfig creates a station directory configuration.
func NewConfig(dbPath string, env appconf.Environment, verbose bool) Config {
	return Config{
		Env:     env,
		DBPath:  dbPath,
		verbose: verbose,
	}
}

// Client is the station directory: a SQLite database of RNV stations with
// FTS5 name search, plus an in-memory spatial index over pole coordinates
// for nearest-station lookups.
type Client struct {
	config        Config
	DB            *sql.DB
	spatial       *spatialIndex
	importRuntime time.Duration
}

// NewClient opens (creating if necessary) the station database.
func NewClient(config Config) (*Client, error) {
	db, err := createDB(config)
	if err != nil {
		return nil, fmt.Errorf("unable to create DB: %w", err)
	} else if config.verbose {
		log.Println("Successfully created tables")
	}

	client := &Client{
		config:  config,
		DB:      db,
		spatial: newSpatialIndex(),
	}

	// A database populated by an earlier run can serve spatial queries
	// without a fresh import.
	if err := client.rebuildSpatialIndex(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to build spatial index: %w", err)
	}

	return client, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) GetDBPath() string {
	return c.config.DBPath
}
