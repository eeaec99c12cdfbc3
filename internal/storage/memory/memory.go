// Package memory implements the storage.Backend interface in memory and
// exports each match as a JSON document when it ends.
package memory

import (
	"errors"
	"sync"

	"github.com/phaseline/lightcycle/internal/config"
	"github.com/phaseline/lightcycle/pkg/core"
)

// ErrNoMatch is returned when recording outside StartMatch/EndMatch.
var ErrNoMatch = errors.New("no match started")

// VehicleRecord groups a vehicle with all its time-series data
type VehicleRecord struct {
	Vehicle core.Vehicle
	Samples []core.VehicleSample
	Runs    []core.TrailRun
}

// Backend stores match data in memory and exports to JSON
type Backend struct {
	cfg   config.MemoryConfig
	match *core.Match

	vehicles map[core.VehicleID]*VehicleRecord

	deaths    []core.DeathEvent
	teleports []core.TeleportEvent
	powerUps  []core.PowerUpEvent

	lastTick       uint64
	matchCounter   uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		vehicles: make(map[core.VehicleID]*VehicleRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartMatch begins recording a new match and assigns its ID.
func (b *Backend) StartMatch(m *core.Match) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.matchCounter++
	m.ID = b.matchCounter
	b.match = m

	// Reset all collections
	b.vehicles = make(map[core.VehicleID]*VehicleRecord)
	b.deaths = nil
	b.teleports = nil
	b.powerUps = nil
	b.lastTick = 0
	b.lastExportPath = ""

	return nil
}

// EndMatch finalizes and exports the match data
func (b *Backend) EndMatch() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.match == nil {
		return ErrNoMatch
	}
	err := b.exportJSON()
	b.match = nil
	return err
}

// AddVehicle registers a vehicle. Rejoining under the same ID keeps the
// recorded history.
func (b *Backend) AddVehicle(v *core.Vehicle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.match == nil {
		return ErrNoMatch
	}
	if rec, ok := b.vehicles[v.ID]; ok {
		rec.Vehicle = *v
		return nil
	}
	b.vehicles[v.ID] = &VehicleRecord{Vehicle: *v}
	return nil
}

// RecordVehicleSample appends a sample to its vehicle's record. Samples of
// unregistered vehicles are dropped.
func (b *Backend) RecordVehicleSample(s *core.VehicleSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.match == nil {
		return ErrNoMatch
	}
	b.seen(s.Tick)
	if rec, ok := b.vehicles[s.VehicleID]; ok {
		rec.Samples = append(rec.Samples, *s)
	}
	return nil
}

// RecordTrailRun appends a run to its vehicle's record.
func (b *Backend) RecordTrailRun(r *core.TrailRun) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.match == nil {
		return ErrNoMatch
	}
	b.seen(r.Tick)
	if rec, ok := b.vehicles[r.VehicleID]; ok {
		run := *r
		run.Points = append(run.Points[:0:0], r.Points...)
		rec.Runs = append(rec.Runs, run)
	}
	return nil
}

// RecordDeath records a death event
func (b *Backend) RecordDeath(e *core.DeathEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.match == nil {
		return ErrNoMatch
	}
	b.seen(e.Tick)
	b.deaths = append(b.deaths, *e)
	return nil
}

// RecordTeleport records a teleport event
func (b *Backend) RecordTeleport(e *core.TeleportEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.match == nil {
		return ErrNoMatch
	}
	b.seen(e.Tick)
	b.teleports = append(b.teleports, *e)
	return nil
}

// RecordPowerUp records a pickup event
func (b *Backend) RecordPowerUp(e *core.PowerUpEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.match == nil {
		return ErrNoMatch
	}
	b.seen(e.Tick)
	b.powerUps = append(b.powerUps, *e)
	return nil
}

// Vehicle returns a copy of a vehicle's record.
func (b *Backend) Vehicle(id core.VehicleID) (VehicleRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.vehicles[id]
	if !ok {
		return VehicleRecord{}, false
	}
	return *rec, true
}

// Deaths returns the recorded death events in order.
func (b *Backend) Deaths() []core.DeathEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.DeathEvent(nil), b.deaths...)
}

// ExportedFilePath returns the path of the last exported match file.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

func (b *Backend) seen(tick uint64) {
	if tick > b.lastTick {
		b.lastTick = tick
	}
}
