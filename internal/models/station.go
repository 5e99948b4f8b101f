package models

import "abfahrt.transitboard.org/stationdb"

// StationModel is a station directory entry as served by the search and
// nearby endpoints.
type StationModel struct {
	ID       string   `json:"id"`
	GlobalID string   `json:"globalId,omitempty"`
	Name     string   `json:"name"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	// DistanceMeters is set only on nearby results.
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
}

// NewStationModel converts a directory row for API output.
func NewStationModel(s stationdb.Station) StationModel {
	model := StationModel{
		ID:       s.ID,
		GlobalID: s.GlobalID.String,
		Name:     s.Name,
	}
	if s.Lat.Valid && s.Lon.Valid {
		lat, lon := s.Lat.Float64, s.Lon.Float64
		model.Lat = &lat
		model.Lon = &lon
	}
	return model
}

// NewNearbyStationModel converts a nearby lookup result, including its
// distance from the query point.
func NewNearbyStationModel(s stationdb.NearbyStation) StationModel {
	model := NewStationModel(s.Station)
	distance := s.DistanceMeters
	model.DistanceMeters = &distance
	return model
}
