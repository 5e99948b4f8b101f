package stationdb

import (
	"context"
	"sort"
	"sync"

	"github.com/tidwall/rtree"

	"abfahrt.transitboard.org/internal/utils"
)

// NearbyStation is a station with its distance from a query point.
type NearbyStation struct {
	Station
	DistanceMeters float64
}

// spatialIndex holds station centroids in an R-tree for nearest-station
// queries. Rebuilt after every import; reads take a shared lock only.
type spatialIndex struct {
	mu   sync.RWMutex
	tree rtree.RTreeG[Station]
}

func newSpatialIndex() *spatialIndex {
	return &spatialIndex{}
}

func (si *spatialIndex) replace(stations []Station) {
	var tree rtree.RTreeG[Station]
	for _, station := range stations {
		if !station.Lat.Valid || !station.Lon.Valid {
			continue
		}
		point := [2]float64{station.Lon.Float64, station.Lat.Float64}
		tree.Insert(point, point, station)
	}

	si.mu.Lock()
	si.tree = tree
	si.mu.Unlock()
}

func (si *spatialIndex) search(bounds utils.CoordinateBounds) []Station {
	si.mu.RLock()
	defer si.mu.RUnlock()

	var stations []Station
	si.tree.Search(
		[2]float64{bounds.MinLon, bounds.MinLat},
		[2]float64{bounds.MaxLon, bounds.MaxLat},
		func(min, max [2]float64, station Station) bool {
			stations = append(stations, station)
			return true
		})
	return stations
}

func (si *spatialIndex) size() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return si.tree.Len()
}

// rebuildSpatialIndex reloads the R-tree from the stations table.
func (c *Client) rebuildSpatialIndex(ctx context.Context) error {
	rows, err := c.DB.QueryContext(ctx,
		"SELECT id, global_id, name, lat, lon FROM stations WHERE lat IS NOT NULL AND lon IS NOT NULL")
	if err != nil {
		return err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below

	var stations []Station
	for rows.Next() {
		var s Station
		if err := rows.Scan(&s.ID, &s.GlobalID, &s.Name, &s.Lat, &s.Lon); err != nil {
			return err
		}
		stations = append(stations, s)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	c.spatial.replace(stations)
	return nil
}

const (
	// defaultNearbyRadiusMeters bounds the candidate box around the query
	// point. Stations further out never show up in nearby results.
	defaultNearbyRadiusMeters = 2000
)

// NearbyStations returns up to limit stations around a coordinate, closest
// first. radiusMeters of 0 uses the default search radius.
func (c *Client) NearbyStations(lat, lon float64, radiusMeters float64, limit int) []NearbyStation {
	if radiusMeters <= 0 {
		radiusMeters = defaultNearbyRadiusMeters
	}

	bounds := utils.CalculateBounds(lat, lon, radiusMeters)
	candidates := c.spatial.search(bounds)

	nearby := make([]NearbyStation, 0, len(candidates))
	for _, station := range candidates {
		distance := utils.Distance(lat, lon, station.Lat.Float64, station.Lon.Float64)
		if distance > radiusMeters {
			continue
		}
		nearby = append(nearby, NearbyStation{Station: station, DistanceMeters: distance})
	}

	sort.Slice(nearby, func(i, j int) bool {
		if nearby[i].DistanceMeters != nearby[j].DistanceMeters {
			return nearby[i].DistanceMeters < nearby[j].DistanceMeters
		}
		return nearby[i].ID < nearby[j].ID
	})

	if limit > 0 && len(nearby) > limit {
		nearby = nearby[:limit]
	}
	return nearby
}

// SpatialIndexSize reports how many stations the spatial index holds.
func (c *Client) SpatialIndexSize() int {
	return c.spatial.size()
}
