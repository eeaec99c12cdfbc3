package match

import (
	"time"

	"github.com/phaseline/lightcycle/pkg/core"
)

// Outbox delivers protocol messages to connected peers.
type Outbox interface {
	Broadcast(msgType string, payload any)
	Send(to core.VehicleID, msgType string, payload any)
}

// Recorder persists match history. storage.Backend satisfies it.
type Recorder interface {
	AddVehicle(v *core.Vehicle) error
	RecordVehicleSample(s *core.VehicleSample) error
	RecordDeath(e *core.DeathEvent) error
	RecordTeleport(e *core.TeleportEvent) error
	RecordPowerUp(e *core.PowerUpEvent) error
	RecordTrailRun(r *core.TrailRun) error
}

// TickStats summarizes one simulated tick.
type TickStats struct {
	Tick     uint64
	Time     time.Time
	Duration time.Duration
	Vehicles int
	Alive    int
	Segments int
	Kills    int
}

// TickObserver receives per-tick statistics. It is called on the tick
// goroutine and must not block.
type TickObserver interface {
	ObserveTick(s TickStats)
}

// Observers fans one tick out to several observers.
type Observers []TickObserver

// ObserveTick implements TickObserver.
func (o Observers) ObserveTick(s TickStats) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveTick(s)
		}
	}
}

type nopOutbox struct{}

func (nopOutbox) Broadcast(string, any) {}
func (nopOutbox) Send(core.VehicleID, string, any) {}

type nopRecorder struct{}

func (nopRecorder) AddVehicle(*core.Vehicle) error { return nil }
func (nopRecorder) RecordVehicleSample(*core.VehicleSample) error { return nil }
func (nopRecorder) RecordDeath(*core.DeathEvent) error { return nil }
func (nopRecorder) RecordTeleport(*core.TeleportEvent) error { return nil }
func (nopRecorder) RecordPowerUp(*core.PowerUpEvent) error { return nil }
func (nopRecorder) RecordTrailRun(*core.TrailRun) error { return nil }
