package stationdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"abfahrt.transitboard.org/internal/logging"
)

// stationsFile mirrors the stations.json dataset: the RNV station directory
// with one entry per station and its boarding poles.
type stationsFile struct {
	Stations []stationRecord `json:"stations"`
}

type stationRecord struct {
	ID       string       `json:"id"`
	GlobalID string       `json:"globalID"`
	Name     string       `json:"name"`
	Poles    []poleRecord `json:"poles"`
}

type poleRecord struct {
	Platform string `json:"platform"`
	Location struct {
		Lat  float64 `json:"lat"`
		Long float64 `json:"long"`
	} `json:"location"`
}

// ImportFromFile imports the stations.json dataset into the database. An
// unchanged file (same hash and source as the previous import) is skipped.
func (c *Client) ImportFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.processAndStoreStationData(ctx, data, path)
}

func (c *Client) processAndStoreStationData(ctx context.Context, b []byte, source string) error {
	logger := slog.Default().With(slog.String("component", "station_importer"))

	startTime := time.Now()
	defer func() {
		c.importRuntime = time.Since(startTime)

		logging.LogOperation(logger, "station_data_import_completed",
			slog.Duration("duration", c.importRuntime),
			slog.String("source", source))
	}()

	hash := sha256.Sum256(b)
	hashStr := hex.EncodeToString(hash[:])

	existingHash, existingSource, err := c.getImportMetadata(ctx)
	if err == nil {
		if existingHash == hashStr && existingSource == source {
			logging.LogOperation(logger, "station_data_unchanged_skipping_import",
				slog.String("hash", hashStr[:8]))
			return nil
		}
		logging.LogOperation(logger, "station_data_changed_reimporting",
			slog.String("old_hash", existingHash[:8]),
			slog.String("new_hash", hashStr[:8]))
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("error checking import metadata: %w", err)
	}

	var parsed stationsFile
	if err := json.Unmarshal(b, &parsed); err != nil {
		return fmt.Errorf("error parsing station data: %w", err)
	}

	if err := c.replaceStations(ctx, parsed.Stations, hashStr, source); err != nil {
		return err
	}

	logging.LogOperation(logger, "stations_inserted",
		slog.Int("count", len(parsed.Stations)))

	return c.rebuildSpatialIndex(ctx)
}

// replaceStations swaps the station tables' contents in one transaction.
// Station coordinates are the centroid of the station's poles; stations with
// no located pole get no coordinates and stay out of the spatial index.
func (c *Client) replaceStations(ctx context.Context, stations []stationRecord, hashStr, source string) error {
	logger := slog.Default().With(slog.String("component", "station_importer"))

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, logger, "import_stations")

	if _, err := tx.ExecContext(ctx, "DELETE FROM poles"); err != nil {
		return fmt.Errorf("error clearing poles: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM stations"); err != nil {
		return fmt.Errorf("error clearing stations: %w", err)
	}

	insertStation, err := tx.PrepareContext(ctx,
		"INSERT INTO stations (id, global_id, name, lat, lon) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(insertStation, logger, "insert_station_stmt")

	insertPole, err := tx.PrepareContext(ctx,
		"INSERT INTO poles (station_id, position, platform, lat, lon) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(insertPole, logger, "insert_pole_stmt")

	for _, station := range stations {
		if station.ID == "" || station.Name == "" {
			continue
		}

		var lat, lon sql.NullFloat64
		if len(station.Poles) > 0 {
			var sumLat, sumLon float64
			for _, pole := range station.Poles {
				sumLat += pole.Location.Lat
				sumLon += pole.Location.Long
			}
			lat = sql.NullFloat64{Float64: sumLat / float64(len(station.Poles)), Valid: true}
			lon = sql.NullFloat64{Float64: sumLon / float64(len(station.Poles)), Valid: true}
		}

		_, err := insertStation.ExecContext(ctx,
			station.ID, toNullString(station.GlobalID), station.Name, lat, lon)
		if err != nil {
			return fmt.Errorf("error inserting station %s: %w", station.ID, err)
		}

		for i, pole := range station.Poles {
			_, err := insertPole.ExecContext(ctx,
				station.ID, i, toNullString(pole.Platform), pole.Location.Lat, pole.Location.Long)
			if err != nil {
				return fmt.Errorf("error inserting pole for station %s: %w", station.ID, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO import_metadata (id, file_hash, file_source, imported_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		    file_hash = excluded.file_hash,
		    file_source = excluded.file_source,
		    imported_at = excluded.imported_at`,
		hashStr, source, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("error recording import metadata: %w", err)
	}

	return tx.Commit()
}

func (c *Client) getImportMetadata(ctx context.Context) (hash, source string, err error) {
	row := c.DB.QueryRowContext(ctx,
		"SELECT file_hash, file_source FROM import_metadata WHERE id = 1")
	err = row.Scan(&hash, &source)
	return hash, source, err
}
