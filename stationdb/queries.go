package stationdb

// Hand-written FTS5 query implementations.
// The MATCH operator and bm25() ranking are FTS5-specific syntax, so these
// queries are maintained manually alongside the schema.
//
// IMPORTANT: If the 'stations' or 'stations_fts' table schemas change, the
// SQL and Go types in this file must be updated to match.

import (
	"context"
	"database/sql"
)

// Station is one row of the station directory. Lat and Lon are the centroid
// of the station's poles and are invalid for stations without located poles.
type Station struct {
	ID       string
	GlobalID sql.NullString
	Name     string
	Lat      sql.NullFloat64
	Lon      sql.NullFloat64
}

const searchStationsByName = `
SELECT
    s.id,
    s.global_id,
    s.name,
    s.lat,
    s.lon
FROM stations_fts
JOIN stations s
  ON s.rowid = stations_fts.rowid
WHERE stations_fts.station_name MATCH ?
ORDER BY
    bm25(stations_fts),
    s.name
LIMIT ?
`

type SearchStationsByNameParams struct {
	Query string
	Limit int64
}

// SearchStationsByName runs a full-text search over station names, best
// matches first.
func (c *Client) SearchStationsByName(ctx context.Context, arg SearchStationsByNameParams) ([]Station, error) {
	rows, err := c.DB.QueryContext(ctx, searchStationsByName, arg.Query, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below

	var items []Station
	for rows.Next() {
		var i Station
		if err := rows.Scan(&i.ID, &i.GlobalID, &i.Name, &i.Lat, &i.Lon); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getStationByID = `
SELECT
    id,
    global_id,
    name,
    lat,
    lon
FROM stations
WHERE id = ?
`

// GetStation looks a station up by its ID. Returns sql.ErrNoRows when the
// station is unknown.
func (c *Client) GetStation(ctx context.Context, id string) (Station, error) {
	var i Station
	row := c.DB.QueryRowContext(ctx, getStationByID, id)
	err := row.Scan(&i.ID, &i.GlobalID, &i.Name, &i.Lat, &i.Lon)
	return i, err
}

const countStations = `SELECT COUNT(*) FROM stations`

// StationCount returns the number of imported stations.
func (c *Client) StationCount(ctx context.Context) (int64, error) {
	var count int64
	err := c.DB.QueryRowContext(ctx, countStations).Scan(&count)
	return count, err
}
