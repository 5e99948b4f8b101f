package transit

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed fleet.json
var embeddedFleetData []byte

// StaticFleet is a FleetDirectory backed by a static JSON table mapping tram
// vehicle identifiers to model and livery metadata. The table is read once;
// lookups are lock-free.
type StaticFleet struct {
	vehicles map[string]VehicleInfo
}

type fleetFile struct {
	Vehicles []VehicleInfo `json:"vehicles"`
}

// DefaultFleet returns the fleet table embedded in the binary.
func DefaultFleet() (*StaticFleet, error) {
	return parseFleet(embeddedFleetData)
}

// LoadFleetFromFile reads a fleet table from a JSON file, for deployments
// that maintain their own vehicle dataset.
func LoadFleetFromFile(path string) (*StaticFleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fleet data: %w", err)
	}
	return parseFleet(data)
}

func parseFleet(data []byte) (*StaticFleet, error) {
	var ff fleetFile
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parsing fleet data: %w", err)
	}

	vehicles := make(map[string]VehicleInfo, len(ff.Vehicles))
	for _, v := range ff.Vehicles {
		if v.ID == "" {
			continue
		}
		vehicles[v.ID] = v
	}
	return &StaticFleet{vehicles: vehicles}, nil
}

// Lookup returns the fleet record for the vehicle, if one is known.
func (f *StaticFleet) Lookup(vehicleID string) (VehicleInfo, bool) {
	info, ok := f.vehicles[vehicleID]
	return info, ok
}

// Len returns the number of vehicles in the table.
func (f *StaticFleet) Len() int {
	return len(f.vehicles)
}
