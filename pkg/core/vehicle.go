// pkg/core/vehicle.go
package core

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// VehicleID identifies a vehicle for the lifetime of a match.
type VehicleID uint16

// Local frame axes. Forward is +Z, up is +Y, right is +X.
var (
	WorldUp      = mgl64.Vec3{0, 1, 0}
	LocalForward = mgl64.Vec3{0, 0, 1}
	LocalRight   = mgl64.Vec3{1, 0, 0}
)

// Vehicle is a participant registered with a match.
type Vehicle struct {
	ID       VehicleID
	Name     string
	IsBot    bool
	JoinTime time.Time
	JoinTick uint64
}

// VehicleState is the rigid-body state advanced by one simulation tick.
// SurfaceNormal is world-up whenever no surface is within stick range.
type VehicleState struct {
	Position        mgl64.Vec3 `msgpack:"p" json:"position"`
	Rotation        mgl64.Quat `msgpack:"r" json:"rotation"`
	Velocity        mgl64.Vec3 `msgpack:"v" json:"velocity"`
	AngularVelocity mgl64.Vec3 `msgpack:"w" json:"angularVelocity"`
	SurfaceNormal   mgl64.Vec3 `msgpack:"n" json:"surfaceNormal"`
	Grounded        bool       `msgpack:"g" json:"grounded"`
	SpeedMultiplier float64    `msgpack:"m" json:"speedMultiplier"`
}

// NewVehicleState returns an at-rest state with default surface and multiplier.
func NewVehicleState(position mgl64.Vec3, rotation mgl64.Quat) VehicleState {
	return VehicleState{
		Position:        position,
		Rotation:        rotation.Normalize(),
		SurfaceNormal:   WorldUp,
		SpeedMultiplier: 1,
	}
}

// Forward returns the vehicle's forward axis in world space.
func (s VehicleState) Forward() mgl64.Vec3 {
	return s.Rotation.Rotate(LocalForward)
}

// Up returns the vehicle's up axis in world space.
func (s VehicleState) Up() mgl64.Vec3 {
	return s.Rotation.Rotate(WorldUp)
}

// Right returns the vehicle's right axis in world space.
func (s VehicleState) Right() mgl64.Vec3 {
	return s.Rotation.Rotate(LocalRight)
}

// Speed is the magnitude of the linear velocity.
func (s VehicleState) Speed() float64 {
	return s.Velocity.Len()
}

// IsFinite reports whether every component of the state is a finite number.
func (s VehicleState) IsFinite() bool {
	return finiteVec(s.Position) && finiteVec(s.Velocity) && finiteVec(s.AngularVelocity) &&
		finiteVec(s.SurfaceNormal) && finiteVec(s.Rotation.V) && finite(s.Rotation.W) &&
		finite(s.SpeedMultiplier)
}

// TickInput is the control input consumed by one tick.
type TickInput struct {
	Tick     uint64  `msgpack:"t" json:"tick"`
	Steer    float64 `msgpack:"s" json:"steer"`
	Throttle float64 `msgpack:"th" json:"throttle"`
	Drift    bool    `msgpack:"d" json:"drift,omitempty"`
	Boost    bool    `msgpack:"b" json:"boost,omitempty"`
	Jump     bool    `msgpack:"j" json:"jump,omitempty"`
}

// Clamp returns a copy with steer in [-1,1], throttle in [0,1] and NaN replaced by zero.
func (in TickInput) Clamp() TickInput {
	in.Steer = clamp(in.Steer, -1, 1)
	in.Throttle = clamp(in.Throttle, 0, 1)
	return in
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteVec(v mgl64.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}

// IsFiniteVec reports whether all components of v are finite.
func IsFiniteVec(v mgl64.Vec3) bool {
	return finiteVec(v)
}
