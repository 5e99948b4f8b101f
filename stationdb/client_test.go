package stationdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abfahrt.transitboard.org/internal/appconf"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(NewConfig(":memory:", appconf.Test, false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func importTestData(t *testing.T, client *Client) {
	t.Helper()
	err := client.ImportFromFile(context.Background(), filepath.Join("testdata", "stations.json"))
	require.NoError(t, err)
}

func TestNewClientRejectsFileDBInTestEnv(t *testing.T) {
	_, err := NewClient(NewConfig("/tmp/stations.db", appconf.Test, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in-memory")
}

func TestImportFromFile(t *testing.T) {
	client := newTestClient(t)
	importTestData(t, client)

	count, err := client.StationCount(context.Background())
	require.NoError(t, err)
	// The record without an ID is skipped.
	assert.Equal(t, int64(4), count)

	counts, err := client.TableCounts()
	require.NoError(t, err)
	assert.Equal(t, 4, counts["stations"])
	assert.Equal(t, 4, counts["poles"])
	assert.Equal(t, 1, counts["import_metadata"])
}

func TestImportSkipsUnchangedData(t *testing.T) {
	client := newTestClient(t)
	importTestData(t, client)

	// A second import of the same file is a no-op.
	importTestData(t, client)

	count, err := client.StationCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestGetStation(t *testing.T) {
	client := newTestClient(t)
	importTestData(t, client)
	ctx := context.Background()

	station, err := client.GetStation(ctx, "1144")
	require.NoError(t, err)
	assert.Equal(t, "Bismarckplatz", station.Name)
	assert.Equal(t, "de:08221:1144", station.GlobalID.String)
	require.True(t, station.Lat.Valid)
	// Centroid of the two poles.
	assert.InDelta(t, 49.40957, station.Lat.Float64, 0.0001)
	assert.InDelta(t, 8.69367, station.Lon.Float64, 0.0001)

	// A station without poles carries no coordinates.
	depot, err := client.GetStation(ctx, "9999")
	require.NoError(t, err)
	assert.False(t, depot.Lat.Valid)

	_, err = client.GetStation(ctx, "0000")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSearchStationsByName(t *testing.T) {
	client := newTestClient(t)
	importTestData(t, client)
	ctx := context.Background()

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{"exact name", "Bismarckplatz", []string{"1144"}},
		{"prefix", "haupt*", []string{"1146", "2521"}},
		{"multi word narrows", "Mannheim Hauptbahnhof", []string{"2521"}},
		{"no match", "Paradeplatz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := client.SearchStationsByName(ctx, SearchStationsByNameParams{
				Query: tt.query,
				Limit: 10,
			})
			require.NoError(t, err)

			ids := make([]string, 0, len(results))
			for _, s := range results {
				ids = append(ids, s.ID)
			}
			assert.ElementsMatch(t, tt.wantIDs, ids)
		})
	}
}

func TestSearchStationsLimit(t *testing.T) {
	client := newTestClient(t)
	importTestData(t, client)

	results, err := client.SearchStationsByName(context.Background(), SearchStationsByNameParams{
		Query: "haupt*",
		Limit: 1,
	})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestNearbyStations(t *testing.T) {
	client := newTestClient(t)
	importTestData(t, client)

	// Stations without coordinates stay out of the index.
	assert.Equal(t, 3, client.SpatialIndexSize())

	// Query point next to Bismarckplatz: Hauptbahnhof Heidelberg is ~1.4km
	// away, Mannheim far outside the default radius.
	nearby := client.NearbyStations(49.4095, 8.6936, 0, 10)
	require.Len(t, nearby, 2)
	assert.Equal(t, "1144", nearby[0].ID)
	assert.Equal(t, "1146", nearby[1].ID)
	assert.Less(t, nearby[0].DistanceMeters, nearby[1].DistanceMeters)
	assert.Less(t, nearby[0].DistanceMeters, 50.0)

	// A tight radius keeps only the closest station.
	nearby = client.NearbyStations(49.4095, 8.6936, 200, 10)
	require.Len(t, nearby, 1)
	assert.Equal(t, "1144", nearby[0].ID)

	// Limit caps the result count.
	nearby = client.NearbyStations(49.4095, 8.6936, 0, 1)
	assert.Len(t, nearby, 1)
}
