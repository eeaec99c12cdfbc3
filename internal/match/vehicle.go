package match

import (
	"sync"

	"github.com/phaseline/lightcycle/internal/damage"
	"github.com/phaseline/lightcycle/internal/input"
	"github.com/phaseline/lightcycle/internal/netcode"
	"github.com/phaseline/lightcycle/internal/teleport"
	"github.com/phaseline/lightcycle/internal/trail"
	"github.com/phaseline/lightcycle/internal/world"
	"github.com/phaseline/lightcycle/pkg/core"
)

// Vehicle is one participant on the authoritative side. Its authority,
// trail and damage state are touched only by its own tick, by teleports
// holding tickMu, and by the session goroutine between ticks.
type Vehicle struct {
	info core.Vehicle
	hull core.HullID

	tickMu   sync.Mutex
	auth     *netcode.Authority
	ledger   *trail.Ledger
	health   damage.Health
	source   input.Source
	cooldown uint64

	viewMu sync.RWMutex
	view   core.VehicleState
	alive  bool
}

func newVehicle(info core.Vehicle, auth *netcode.Authority, ledger *trail.Ledger, source input.Source) *Vehicle {
	return &Vehicle{
		info:   info,
		hull:   core.HullID(info.ID),
		auth:   auth,
		ledger: ledger,
		source: source,
		view:   auth.State(),
		alive:  true,
	}
}

func (v *Vehicle) ID() core.VehicleID { return v.info.ID }

func (v *Vehicle) Info() core.Vehicle { return v.info }

func (v *Vehicle) Hull() core.HullID { return v.hull }

func (v *Vehicle) Health() *damage.Health { return &v.health }

func (v *Vehicle) Trail() *trail.Ledger { return v.ledger }

// Snapshot returns the state published after the last tick. Safe to call
// from presentation goroutines at any time.
func (v *Vehicle) Snapshot() core.VehicleState {
	v.viewMu.RLock()
	defer v.viewMu.RUnlock()
	return v.view
}

// Alive reports the published alive flag.
func (v *Vehicle) Alive() bool {
	v.viewMu.RLock()
	defer v.viewMu.RUnlock()
	return v.alive
}

// Pose returns the authoritative emitter pose.
func (v *Vehicle) Pose() trail.Pose {
	v.tickMu.Lock()
	defer v.tickMu.Unlock()
	s := v.auth.State()
	return trail.Pose{Position: s.Position, Rotation: s.Rotation}
}

// SetSpeedMultiplier applies an external speed buff from the next tick on.
func (v *Vehicle) SetSpeedMultiplier(m float64) {
	v.tickMu.Lock()
	defer v.tickMu.Unlock()
	v.auth.SetSpeedMultiplier(m)
}

// TeleportTarget exposes the vehicle to the teleport coordinator.
func (v *Vehicle) TeleportTarget(resumeTrail bool) teleport.Target {
	return teleport.Target{
		ID:          v.info.ID,
		Lock:        &v.tickMu,
		Authority:   vehicleAuthority{v},
		Trail:       v.ledger,
		ResumeTrail: resumeTrail,
	}
}

// hullSphere is the collision volume at the published state.
func (v *Vehicle) hullSphere(radius, height float64) world.Sphere {
	s := v.Snapshot()
	return world.Sphere{Center: s.Position.Add(s.Up().Mul(height)), Radius: radius}
}

// step runs the vehicle's share of a tick and returns its snapshot.
func (v *Vehicle) step(tick uint64) core.ReconcileSnapshot {
	v.tickMu.Lock()
	defer v.tickMu.Unlock()

	if v.cooldown > 0 {
		v.cooldown--
	}
	v.health.Immunity.Tick()

	if v.health.State.IsDead() {
		snap := v.auth.Hold(tick)
		v.publish(v.auth.State(), false)
		return snap
	}

	var local *core.TickInput
	if v.source != nil {
		in := v.source.Next(tick, v.auth.State())
		local = &in
	}
	snap := v.auth.Tick(tick, local)
	s := v.auth.State()
	v.ledger.OnTick(tick, trail.Pose{Position: s.Position, Rotation: s.Rotation})
	v.publish(s, true)
	return snap
}

func (v *Vehicle) onCooldown() bool {
	v.tickMu.Lock()
	defer v.tickMu.Unlock()
	return v.cooldown > 0
}

func (v *Vehicle) setCooldown(ticks uint64) {
	v.tickMu.Lock()
	defer v.tickMu.Unlock()
	v.cooldown = ticks
}

// kill freezes the vehicle and drops its trail. Called between ticks.
func (v *Vehicle) kill() {
	v.tickMu.Lock()
	defer v.tickMu.Unlock()
	v.auth.Stop()
	v.ledger.Clear()
	v.publish(v.auth.State(), false)
}

func (v *Vehicle) publish(s core.VehicleState, alive bool) {
	v.viewMu.Lock()
	defer v.viewMu.Unlock()
	v.view = s
	v.alive = alive
}

// vehicleAuthority adapts the vehicle for teleport.Coordinator, which
// calls it with tickMu already held.
type vehicleAuthority struct {
	v *Vehicle
}

func (a vehicleAuthority) State() core.VehicleState { return a.v.auth.State() }

func (a vehicleAuthority) Overwrite(s core.VehicleState) core.ReconcileSnapshot {
	snap := a.v.auth.Overwrite(s)
	a.v.publish(s, !a.v.health.State.IsDead())
	return snap
}
