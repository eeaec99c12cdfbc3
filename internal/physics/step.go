// Package physics advances a light-cycle's rigid-body state by one tick.
//
// Step is a pure function of (state, input, dt): it reads no clocks, keeps
// no mutable state between calls and queries only immutable world
// geometry, so reconciliation can replay it and get bit-identical results.
package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phaseline/lightcycle/internal/geo"
	"github.com/phaseline/lightcycle/internal/sensor"
	"github.com/phaseline/lightcycle/pkg/core"
)

// Stepper runs the vehicle step against a fixed world.
type Stepper struct {
	tuning Tuning
	sensor sensor.Sensor
	curve  *Curve
}

// NewStepper validates tuning and binds it to the geometry the ground sensor casts against.
func NewStepper(t Tuning, caster sensor.RayCaster) (*Stepper, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	curve, err := NewCurve(t.TurnCurve)
	if err != nil {
		return nil, err
	}
	return &Stepper{
		tuning: t,
		curve:  curve,
		sensor: sensor.Sensor{
			Caster:        caster,
			StickDistance: t.StickDistance,
			GroundOffset:  t.GroundOffset,
		},
	}, nil
}

// Tuning returns the handling constants in use.
func (s *Stepper) Tuning() Tuning { return s.tuning }

// forces accumulates what one tick applies before integration.
type forces struct {
	accel        mgl64.Vec3 // continuous, scaled by dt
	velChange    mgl64.Vec3 // instantaneous
	angularAccel mgl64.Vec3
}

// Step advances state by dt. Inputs are clamped; a non-positive dt returns state unchanged.
func (s *Stepper) Step(state core.VehicleState, in core.TickInput, dt float64) core.VehicleState {
	if !(dt > 0) {
		return state
	}
	in = in.Clamp()
	if state.SpeedMultiplier <= 0 {
		state.SpeedMultiplier = 1
	}

	contact, ok := s.sensor.Sense(state.Position, state.SurfaceNormal)
	if !ok {
		return s.airborne(state, dt)
	}

	t := s.tuning
	n := contact.Normal
	state.SurfaceNormal = n
	state.Grounded = contact.Grounded

	var f forces
	if contact.Grounded && in.Jump {
		// jump replaces adhesion, alignment and drive for this tick
		f.velChange = n.Mul(t.JumpImpulse)
		return s.integrate(state, f, dt)
	}
	f.accel = n.Mul(-t.StickForce)

	if contact.Grounded {
		state.Rotation = s.alignToSurface(state, n, &f, dt)
		state.Rotation = s.drive(&state, in, n, &f, dt)
	}

	next := s.integrate(state, f, dt)
	return s.resolveContact(state, next, contact)
}

// airborne applies gravity and eases the up axis back toward world up.
// Only the yaw component of spin about world up survives, so the angle
// to world up can only shrink while airborne.
func (s *Stepper) airborne(state core.VehicleState, dt float64) core.VehicleState {
	state.SurfaceNormal = core.WorldUp
	state.Grounded = false
	state.AngularVelocity = geo.Project(state.AngularVelocity, core.WorldUp)

	next := s.integrate(state, forces{accel: s.tuning.Gravity}, dt)
	target := geo.AlignUp(next.Rotation, core.WorldUp, core.WorldUp)
	next.Rotation = geo.Slerp(next.Rotation, target, s.tuning.AirAlignSpeed*dt)
	return next
}

// alignToSurface applies the upright torque and blends the rotation toward the surface.
func (s *Stepper) alignToSurface(state core.VehicleState, n mgl64.Vec3, f *forces, dt float64) mgl64.Quat {
	up := state.Up()
	f.angularAccel = f.angularAccel.Add(up.Cross(n).Mul(s.tuning.UprightTorque))
	target := geo.AlignUp(state.Rotation, core.WorldUp, n)
	return geo.Slerp(state.Rotation, target, s.tuning.SlopeAlignSpeed*dt)
}

// drive applies forward acceleration, lateral friction and steering.
func (s *Stepper) drive(state *core.VehicleState, in core.TickInput, n mgl64.Vec3, f *forces, dt float64) mgl64.Quat {
	t := s.tuning
	maxSpeed := t.MaxSpeed * state.SpeedMultiplier

	fwd := geo.SurfaceForward(state.Forward(), state.Up(), n)
	right := n.Cross(fwd)

	// close the forward speed gap at Acceleration per second, never past the target
	desired := in.Throttle * maxSpeed
	current := state.Velocity.Dot(fwd)
	gain := math.Min(t.Acceleration*state.SpeedMultiplier*dt, 1)
	f.velChange = f.velChange.Add(fwd.Mul((desired - current) * gain))

	friction := t.LateralFriction
	if in.Drift {
		friction = t.DriftFactor
	}
	lateral := state.Velocity.Dot(right)
	f.velChange = f.velChange.Add(right.Mul(-lateral * friction))

	rot := state.Rotation
	if math.Abs(in.Steer) > t.SteerDeadzone {
		speed := geo.Clamp01(state.Velocity.Len() / maxSpeed)
		angle := in.Steer * t.TurnStrength * s.curve.Eval(speed) * dt
		rot = mgl64.QuatRotate(angle, n).Mul(rot).Normalize()
	}
	return rot
}
