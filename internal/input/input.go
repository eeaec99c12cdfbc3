// Package input produces one TickInput per tick for a controlled vehicle.
package input

import (
	"math"
	"sync"

	"github.com/phaseline/lightcycle/pkg/core"
)

// Source yields the input for tick given the vehicle's current state.
type Source interface {
	Next(tick uint64, state core.VehicleState) core.TickInput
}

// Shaper applies the human-player input conventions: throttle never drops
// below MinThrottle and small steering is zeroed.
type Shaper struct {
	MinThrottle   float64 `mapstructure:"minThrottle"`
	SteerDeadzone float64 `mapstructure:"steerDeadzone"`
}

// DefaultShaper returns the stock player shaping.
func DefaultShaper() Shaper {
	return Shaper{MinThrottle: 0.6, SteerDeadzone: 0.05}
}

func (s Shaper) Shape(in core.TickInput) core.TickInput {
	in = in.Clamp()
	if in.Throttle < s.MinThrottle {
		in.Throttle = math.Min(s.MinThrottle, 1)
	}
	if math.Abs(in.Steer) < s.SteerDeadzone {
		in.Steer = 0
	}
	return in
}

// Shaped wraps a source with a Shaper.
type Shaped struct {
	Source Source
	Shaper Shaper
}

func (s Shaped) Next(tick uint64, state core.VehicleState) core.TickInput {
	in := s.Shaper.Shape(s.Source.Next(tick, state))
	in.Tick = tick
	return in
}

// Constant repeats the same input every tick.
type Constant core.TickInput

func (c Constant) Next(tick uint64, _ core.VehicleState) core.TickInput {
	in := core.TickInput(c)
	in.Tick = tick
	return in
}

// Latch holds the most recently set input and repeats it until changed.
// Jump is edge-triggered: it is reported for one tick only.
type Latch struct {
	mu   sync.Mutex
	held core.TickInput
	jump bool
}

// Set replaces the held input.
func (l *Latch) Set(in core.TickInput) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jump = l.jump || in.Jump
	in.Jump = false
	l.held = in
}

func (l *Latch) Next(tick uint64, _ core.VehicleState) core.TickInput {
	l.mu.Lock()
	defer l.mu.Unlock()
	in := l.held
	in.Tick = tick
	in.Jump, l.jump = l.jump, false
	return in
}

// Weave steers in a slow sine so an unattended vehicle keeps moving
// without driving straight into a wall.
type Weave struct {
	Throttle float64
	Period   uint64
	Steer    float64
}

func (w Weave) Next(tick uint64, _ core.VehicleState) core.TickInput {
	period := w.Period
	if period == 0 {
		period = 240
	}
	phase := 2 * math.Pi * float64(tick%period) / float64(period)
	return core.TickInput{Tick: tick, Throttle: w.Throttle, Steer: w.Steer * math.Sin(phase)}
}
