package netcode

import (
	"sync/atomic"

	"github.com/phaseline/lightcycle/internal/channel"
	"github.com/phaseline/lightcycle/pkg/core"
)

// Predictor speculatively simulates a locally controlled vehicle ahead of
// the authority. Its state and input buffer are owned by the goroutine
// calling Tick; Receive may be called from any goroutine.
type Predictor struct {
	id      core.VehicleID
	stepper Stepper
	dt      float64

	state      core.VehicleState
	tick       uint64
	applied    uint64
	hasApplied bool
	inputs     *InputBuffer

	inbox *channel.LatestWins[core.ReconcileSnapshot]

	reconciles atomic.Uint64
	replayed   atomic.Uint64
	discarded  atomic.Uint64
}

// Stats counts reconciliation activity.
type Stats struct {
	Reconciles uint64
	Replayed   uint64
	Discarded  uint64
}

// NewPredictor starts predicting from the authoritative start snapshot.
// lead is how many ticks ahead of the authority the predictor runs; the
// lead ticks are simulated with idle input, which is what the authority
// holds until the first client input reaches it.
func NewPredictor(id core.VehicleID, stepper Stepper, dt float64, start core.ReconcileSnapshot, lead uint64, capacity int) *Predictor {
	p := &Predictor{
		id:         id,
		stepper:    stepper,
		dt:         dt,
		state:      start.State(),
		tick:       start.Tick,
		applied:    start.Tick,
		hasApplied: true,
		inputs:     NewInputBuffer(capacity),
		inbox:      channel.NewLatestWins(supersedes),
	}
	for i := uint64(0); i < lead; i++ {
		p.tick++
		in := core.TickInput{Tick: p.tick}
		p.inputs.Record(in)
		p.state = p.stepper.Step(p.state, in, p.dt)
	}
	return p
}

// Receive buffers a snapshot for application at the start of the next tick.
func (p *Predictor) Receive(s core.ReconcileSnapshot) {
	if s.VehicleID != p.id {
		return
	}
	if !p.inbox.Offer(s) {
		p.discarded.Add(1)
	}
}

// Tick applies any buffered snapshot, then records and simulates in as the next tick.
func (p *Predictor) Tick(in core.TickInput) core.VehicleState {
	if s, ok := p.inbox.Take(); ok {
		if err := p.Apply(s); err != nil {
			p.discarded.Add(1)
		}
	}

	p.tick++
	in = in.Clamp()
	in.Tick = p.tick
	p.inputs.Record(in)
	p.state = p.stepper.Step(p.state, in, p.dt)
	return p.state
}

// Apply overwrites the local state with s and replays every buffered input
// after s.Tick up to the current tick. Teleport snapshots additionally drop
// the replay history at or before their tick.
func (p *Predictor) Apply(s core.ReconcileSnapshot) error {
	if p.hasApplied && (s.Tick < p.applied || (s.Tick == p.applied && !s.Teleport)) {
		return ErrStaleSnapshot
	}
	p.applied, p.hasApplied = s.Tick, true
	p.reconciles.Add(1)

	held, _ := p.inputs.Get(s.Tick)
	p.inputs.DropThrough(s.Tick)
	p.state = s.State()
	if s.Tick >= p.tick {
		p.tick = s.Tick
		return nil
	}

	for t := s.Tick + 1; t <= p.tick; t++ {
		in, ok := p.inputs.Get(t)
		if !ok {
			// evicted; hold the previous input as the authority would
			in = held
			in.Tick = t
		}
		held = in
		p.state = p.stepper.Step(p.state, in, p.dt)
		p.replayed.Add(1)
	}
	return nil
}

// ResetAt applies a teleport snapshot immediately.
func (p *Predictor) ResetAt(s core.ReconcileSnapshot) error {
	s.Teleport = true
	return p.Apply(s)
}

// State returns the current predicted state.
func (p *Predictor) State() core.VehicleState { return p.state }

// CurrentTick returns the last simulated tick.
func (p *Predictor) CurrentTick() uint64 { return p.tick }

// LastApplied returns the tick of the last applied snapshot.
func (p *Predictor) LastApplied() uint64 { return p.applied }

// BufferedInputs returns the number of inputs held for replay.
func (p *Predictor) BufferedInputs() int { return p.inputs.Len() }

// Input returns the input recorded for tick, if still held.
func (p *Predictor) Input(tick uint64) (core.TickInput, bool) { return p.inputs.Get(tick) }

// Stats returns reconciliation counters.
func (p *Predictor) Stats() Stats {
	return Stats{
		Reconciles: p.reconciles.Load(),
		Replayed:   p.replayed.Load(),
		Discarded:  p.discarded.Load(),
	}
}
