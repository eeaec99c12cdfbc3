package core

import "github.com/go-gl/mathgl/mgl64"

// ReconcileSnapshot is the authoritative state of one vehicle after a tick.
// Teleport marks an out-of-band correction that invalidates replay history.
type ReconcileSnapshot struct {
	VehicleID       VehicleID  `msgpack:"id" json:"vehicleId"`
	Tick            uint64     `msgpack:"t" json:"tick"`
	Position        mgl64.Vec3 `msgpack:"p" json:"position"`
	Rotation        mgl64.Quat `msgpack:"r" json:"rotation"`
	Velocity        mgl64.Vec3 `msgpack:"v" json:"velocity"`
	AngularVelocity mgl64.Vec3 `msgpack:"w" json:"angularVelocity"`
	SurfaceNormal   mgl64.Vec3 `msgpack:"n" json:"surfaceNormal"`
	Grounded        bool       `msgpack:"g" json:"grounded"`
	SpeedMultiplier float64    `msgpack:"m" json:"speedMultiplier"`
	Teleport        bool       `msgpack:"tp,omitempty" json:"teleport,omitempty"`
}

// SnapshotOf captures state as the snapshot for tick.
func SnapshotOf(id VehicleID, tick uint64, s VehicleState) ReconcileSnapshot {
	return ReconcileSnapshot{
		VehicleID:       id,
		Tick:            tick,
		Position:        s.Position,
		Rotation:        s.Rotation,
		Velocity:        s.Velocity,
		AngularVelocity: s.AngularVelocity,
		SurfaceNormal:   s.SurfaceNormal,
		Grounded:        s.Grounded,
		SpeedMultiplier: s.SpeedMultiplier,
	}
}

// State rebuilds the vehicle state carried by the snapshot.
func (s ReconcileSnapshot) State() VehicleState {
	normal := s.SurfaceNormal
	if normal.Len() == 0 {
		normal = WorldUp
	}
	mult := s.SpeedMultiplier
	if mult == 0 {
		mult = 1
	}
	return VehicleState{
		Position:        s.Position,
		Rotation:        s.Rotation,
		Velocity:        s.Velocity,
		AngularVelocity: s.AngularVelocity,
		SurfaceNormal:   normal,
		Grounded:        s.Grounded,
		SpeedMultiplier: mult,
	}
}
