package convert

import (
	"encoding/json"
	"fmt"

	"github.com/phaseline/lightcycle/internal/geo"
	"github.com/phaseline/lightcycle/internal/model"
	"github.com/phaseline/lightcycle/pkg/core"
)

// VehicleSampleToCore decodes a stored sample back into core types.
func VehicleSampleToCore(s model.VehicleSample) (core.VehicleSample, error) {
	out := core.VehicleSample{
		VehicleID: core.VehicleID(s.VehicleID),
		Tick:      s.Tick,
		Time:      s.Time,
		IsAlive:   s.IsAlive,
	}
	if err := json.Unmarshal(s.State, &out.State); err != nil {
		return core.VehicleSample{}, fmt.Errorf("failed to unmarshal vehicle state: %w", err)
	}
	return out, nil
}

// TrailRunToCore decodes the WKB path of a stored run.
func TrailRunToCore(r model.TrailRun) (core.TrailRun, error) {
	points, err := geo.PolylineFromWKB(r.Path)
	if err != nil {
		return core.TrailRun{}, err
	}
	return core.TrailRun{
		VehicleID: core.VehicleID(r.VehicleID),
		Tick:      r.Tick,
		Points:    points,
	}, nil
}
