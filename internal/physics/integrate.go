package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phaseline/lightcycle/internal/geo"
	"github.com/phaseline/lightcycle/internal/sensor"
	"github.com/phaseline/lightcycle/pkg/core"
)

// integrate is a semi-implicit Euler step: velocities first, then poses.
func (s *Stepper) integrate(state core.VehicleState, f forces, dt float64) core.VehicleState {
	state.Velocity = state.Velocity.Add(f.velChange).Add(f.accel.Mul(dt))

	damping := math.Max(0, 1-s.tuning.AngularDamping*dt)
	state.AngularVelocity = state.AngularVelocity.Add(f.angularAccel.Mul(dt)).Mul(damping)

	state.Position = state.Position.Add(state.Velocity.Mul(dt))
	state.Rotation = rotateBy(state.Rotation, state.AngularVelocity, dt)
	return state
}

// rotateBy applies angular velocity w (world frame, rad/s) to q over dt.
func rotateBy(q mgl64.Quat, w mgl64.Vec3, dt float64) mgl64.Quat {
	speed := w.Len()
	if speed < geo.Epsilon {
		return q
	}
	return mgl64.QuatRotate(speed*dt, w.Mul(1/speed)).Mul(q).Normalize()
}

// resolveContact keeps the hull at or above ride height over the sensed
// surface and removes any velocity into it.
func (s *Stepper) resolveContact(before, after core.VehicleState, c sensor.Contact) core.VehicleState {
	n := c.Normal
	height := c.Height + after.Position.Sub(before.Position).Dot(n)
	if height >= s.tuning.RideHeight {
		return after
	}
	after.Position = after.Position.Add(n.Mul(s.tuning.RideHeight - height))
	if into := after.Velocity.Dot(n); into < 0 {
		after.Velocity = after.Velocity.Sub(n.Mul(into))
	}
	return after
}
