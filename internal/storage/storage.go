package storage

import "github.com/phaseline/lightcycle/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Match management
	StartMatch(m *core.Match) error
	EndMatch() error

	// Entity registration
	AddVehicle(v *core.Vehicle) error

	// State recording
	RecordVehicleSample(s *core.VehicleSample) error
	RecordTrailRun(r *core.TrailRun) error

	// Event recording
	RecordDeath(e *core.DeathEvent) error
	RecordTeleport(e *core.TeleportEvent) error
	RecordPowerUp(e *core.PowerUpEvent) error
}

// Exportable is an optional interface for backends that write the match
// to a file when it ends.
type Exportable interface {
	ExportedFilePath() string
}

// Nop discards everything. Used for storage type "none".
type Nop struct{}

func (Nop) Init() error { return nil }
func (Nop) Close() error { return nil }
func (Nop) StartMatch(*core.Match) error { return nil }
func (Nop) EndMatch() error { return nil }
func (Nop) AddVehicle(*core.Vehicle) error { return nil }
func (Nop) RecordVehicleSample(*core.VehicleSample) error { return nil }
func (Nop) RecordTrailRun(*core.TrailRun) error { return nil }
func (Nop) RecordDeath(*core.DeathEvent) error { return nil }
func (Nop) RecordTeleport(*core.TeleportEvent) error { return nil }
func (Nop) RecordPowerUp(*core.PowerUpEvent) error { return nil }
