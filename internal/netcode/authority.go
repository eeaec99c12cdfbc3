package netcode

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phaseline/lightcycle/pkg/core"
)

// Authority owns the ground-truth state of one vehicle.
//
// Remote inputs arrive on network goroutines through SubmitInput; the
// simulation goroutine consumes them in Tick. An input for tick T is used
// at T if it arrived in time, otherwise the last consumed input is held.
type Authority struct {
	id      core.VehicleID
	stepper Stepper
	dt      float64

	mu       sync.Mutex
	received *InputBuffer

	state    core.VehicleState
	tick     uint64
	last     core.TickInput
	consumed *InputBuffer
}

// NewAuthority creates the authority for a vehicle whose state is valid at tick.
func NewAuthority(id core.VehicleID, stepper Stepper, dt float64, state core.VehicleState, tick uint64, capacity int) *Authority {
	return &Authority{
		id:       id,
		stepper:  stepper,
		dt:       dt,
		received: NewInputBuffer(capacity),
		consumed: NewInputBuffer(capacity),
		state:    state,
		tick:     tick,
	}
}

// ID returns the vehicle this authority simulates.
func (a *Authority) ID() core.VehicleID { return a.id }

// SubmitInput buffers a remote input. Inputs for ticks already simulated
// are stale and dropped; it reports whether in was kept. A repeated tick
// replaces the earlier copy.
func (a *Authority) SubmitInput(in core.TickInput) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if in.Tick <= a.tick {
		return false
	}
	a.received.Record(in.Clamp())
	return true
}

// Tick simulates tick and returns the snapshot to broadcast. local, when
// non-nil, is used instead of remote input (a peer that is both authority
// and predictor of its own vehicle).
func (a *Authority) Tick(tick uint64, local *core.TickInput) core.ReconcileSnapshot {
	in := a.nextInput(tick, local)
	a.consumed.Record(in)
	a.last = in
	a.state = a.stepper.Step(a.state, in, a.dt)
	return core.SnapshotOf(a.id, tick, a.state)
}

func (a *Authority) nextInput(tick uint64, local *core.TickInput) core.TickInput {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tick = tick

	var in core.TickInput
	switch {
	case local != nil:
		in = local.Clamp()
	default:
		if got, ok := a.received.Get(tick); ok {
			in = got
		} else {
			in = a.last
		}
	}
	a.received.DropThrough(tick)
	in.Tick = tick
	return in
}

// State returns the authoritative state after the last tick.
func (a *Authority) State() core.VehicleState { return a.state }

// CurrentTick returns the last simulated tick.
func (a *Authority) CurrentTick() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tick
}

// Consumed returns the input used at tick, if still held.
func (a *Authority) Consumed(tick uint64) (core.TickInput, bool) {
	return a.consumed.Get(tick)
}

// Overwrite replaces the state between ticks and returns the teleport
// snapshot predictors must reset to. Held input is cleared so momentum
// from pre-teleport steering does not leak into the next tick.
func (a *Authority) Overwrite(state core.VehicleState) core.ReconcileSnapshot {
	a.mu.Lock()
	tick := a.tick
	a.mu.Unlock()

	a.state = state
	a.last = core.TickInput{}
	s := core.SnapshotOf(a.id, tick, state)
	s.Teleport = true
	return s
}

// SetSpeedMultiplier changes the external speed buff from the next tick on.
func (a *Authority) SetSpeedMultiplier(m float64) {
	if m <= 0 {
		m = 1
	}
	a.state.SpeedMultiplier = m
}

// Hold advances to tick without simulating, for a vehicle out of play.
// Remote inputs up to tick are discarded.
func (a *Authority) Hold(tick uint64) core.ReconcileSnapshot {
	a.mu.Lock()
	a.tick = tick
	a.received.DropThrough(tick)
	a.mu.Unlock()

	a.last = core.TickInput{}
	return core.SnapshotOf(a.id, tick, a.state)
}

// Stop zeroes linear and angular velocity.
func (a *Authority) Stop() {
	a.state.Velocity = mgl64.Vec3{}
	a.state.AngularVelocity = mgl64.Vec3{}
}
