// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/phaseline/lightcycle/internal/geo"
	"github.com/phaseline/lightcycle/internal/match"
	"github.com/phaseline/lightcycle/internal/model"
	"github.com/phaseline/lightcycle/pkg/core"
)

// CoreToMatch converts a core.Match to a GORM model.Match.
func CoreToMatch(m core.Match) model.Match {
	gm := model.Match{
		Name:      m.Name,
		WorldName: m.WorldName,
		StartTime: m.StartTime,
		TickRate:  m.TickRate,
		Tag:       m.Tag,
	}
	gm.ID = m.ID
	return gm
}

// CoreToVehicle converts a core.Vehicle to a GORM model.Vehicle.
// core.Vehicle.ID maps to GORM Vehicle.VehicleID.
func CoreToVehicle(v core.Vehicle) model.Vehicle {
	return model.Vehicle{
		VehicleID: uint16(v.ID),
		Name:      v.Name,
		IsBot:     v.IsBot,
		JoinTime:  v.JoinTime,
		JoinTick:  v.JoinTick,
	}
}

// CoreToVehicleSample converts a recorded state sample.
func CoreToVehicleSample(s core.VehicleSample) (model.VehicleSample, error) {
	state, err := json.Marshal(s.State)
	if err != nil {
		return model.VehicleSample{}, fmt.Errorf("failed to marshal vehicle state: %w", err)
	}
	return model.VehicleSample{
		VehicleID: uint16(s.VehicleID),
		Tick:      s.Tick,
		Time:      s.Time,
		PosX:      s.State.Position[0],
		PosY:      s.State.Position[1],
		PosZ:      s.State.Position[2],
		Speed:     s.State.Speed(),
		Grounded:  s.State.Grounded,
		IsAlive:   s.IsAlive,
		State:     datatypes.JSON(state),
	}, nil
}

// CoreToDeathEvent converts a core.DeathEvent to a GORM model.DeathEvent.
func CoreToDeathEvent(e core.DeathEvent) model.DeathEvent {
	out := model.DeathEvent{
		VehicleID: uint16(e.VehicleID),
		Tick:      e.Tick,
		Time:      e.Time,
		Cause:     string(e.Cause),
		PosX:      e.Position[0],
		PosY:      e.Position[1],
		PosZ:      e.Position[2],
	}
	if e.KillerID != nil {
		k := uint16(*e.KillerID)
		out.KillerID = &k
	}
	if e.SegmentID != nil {
		s := uint32(*e.SegmentID)
		out.SegmentID = &s
	}
	return out
}

// CoreToTeleportEvent converts a core.TeleportEvent to a GORM model.TeleportEvent.
func CoreToTeleportEvent(e core.TeleportEvent) model.TeleportEvent {
	return model.TeleportEvent{
		VehicleID: uint16(e.VehicleID),
		Tick:      e.Tick,
		Time:      e.Time,
		Reason:    string(e.Reason),
		FromX:     e.From[0],
		FromY:     e.From[1],
		FromZ:     e.From[2],
		ToX:       e.To[0],
		ToY:       e.To[1],
		ToZ:       e.To[2],
	}
}

// CoreToPowerUpEvent converts a core.PowerUpEvent to a GORM model.PowerUpEvent.
func CoreToPowerUpEvent(e core.PowerUpEvent) model.PowerUpEvent {
	return model.PowerUpEvent{
		VehicleID: uint16(e.VehicleID),
		Tick:      e.Tick,
		Kind:      string(e.Kind),
		PickupID:  e.PickupID,
	}
}

// CoreToTrailRun encodes the run's points as WKB.
func CoreToTrailRun(r core.TrailRun) (model.TrailRun, error) {
	path, err := geo.PolylineWKB(r.Points)
	if err != nil {
		return model.TrailRun{}, fmt.Errorf("failed to encode trail run: %w", err)
	}
	return model.TrailRun{
		VehicleID:  uint16(r.VehicleID),
		Tick:       r.Tick,
		PointCount: len(r.Points),
		Length:     geo.PolylineLength(r.Points),
		Path:       path,
	}, nil
}

// StatsToTickPerformance converts session tick statistics.
func StatsToTickPerformance(s match.TickStats, matchID uint) model.TickPerformance {
	return model.TickPerformance{
		Time:       s.Time,
		MatchID:    matchID,
		Tick:       s.Tick,
		DurationMs: float64(s.Duration.Microseconds()) / 1000,
		Vehicles:   s.Vehicles,
		Alive:      s.Alive,
		Segments:   s.Segments,
		Kills:      s.Kills,
	}
}
