// pkg/core/events.go
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// DeathCause classifies what killed a vehicle.
type DeathCause string

const (
	CauseTrail   DeathCause = "trail"
	CauseWall    DeathCause = "wall"
	CauseVehicle DeathCause = "vehicle"
)

// DeathEvent is emitted by the authority when a vehicle transitions to dead.
// KillerID is nil for walls and for a vehicle's own trail.
type DeathEvent struct {
	VehicleID VehicleID  `msgpack:"id" json:"vehicleId"`
	Tick      uint64     `msgpack:"t" json:"tick"`
	Time      time.Time  `msgpack:"ts" json:"time"`
	Cause     DeathCause `msgpack:"c" json:"cause"`
	KillerID  *VehicleID `msgpack:"k,omitempty" json:"killerId,omitempty"`
	SegmentID *SegmentID `msgpack:"s,omitempty" json:"segmentId,omitempty"`
	Position  mgl64.Vec3 `msgpack:"p" json:"position"`
}

// ReviveEvent is emitted when a dead vehicle is returned to play.
type ReviveEvent struct {
	VehicleID VehicleID `msgpack:"id" json:"vehicleId"`
	Tick      uint64    `msgpack:"t" json:"tick"`
}

// TeleportReason names the collaborator that requested a teleport.
type TeleportReason string

const (
	ReasonRespawn TeleportReason = "respawn"
	ReasonPortal  TeleportReason = "portal"
	ReasonAdmin   TeleportReason = "admin"
)

// TeleportEvent records a completed teleport.
type TeleportEvent struct {
	VehicleID VehicleID      `msgpack:"id" json:"vehicleId"`
	Tick      uint64         `msgpack:"t" json:"tick"`
	Time      time.Time      `msgpack:"ts" json:"time"`
	From      mgl64.Vec3     `msgpack:"f" json:"from"`
	To        mgl64.Vec3     `msgpack:"to" json:"to"`
	Reason    TeleportReason `msgpack:"r" json:"reason"`
}

// SegmentSpawned replicates a new authoritative trail collider.
type SegmentSpawned struct {
	Segment TrailColliderSegment `msgpack:"s" json:"segment"`
}

// SegmentRetired replicates the removal of a trail collider.
type SegmentRetired struct {
	Owner VehicleID `msgpack:"o" json:"owner"`
	ID    SegmentID `msgpack:"id" json:"id"`
	Tick  uint64    `msgpack:"t" json:"tick"`
}

// PowerUpKind names a pickup effect.
type PowerUpKind string

const (
	PowerUpBoost  PowerUpKind = "boost"
	PowerUpShield PowerUpKind = "shield"
)

// PowerUpEvent records a pickup being collected.
type PowerUpEvent struct {
	VehicleID VehicleID   `msgpack:"id" json:"vehicleId"`
	Tick      uint64      `msgpack:"t" json:"tick"`
	Kind      PowerUpKind `msgpack:"k" json:"kind"`
	PickupID  int         `msgpack:"p" json:"pickupId"`
}

// VehicleSample is a recorded state sample used by match storage.
type VehicleSample struct {
	VehicleID VehicleID
	Tick      uint64
	Time      time.Time
	State     VehicleState
	IsAlive   bool
}

// TrailRun is a connected stretch of a trail between two gaps.
type TrailRun struct {
	VehicleID VehicleID
	Tick      uint64
	Points    []mgl64.Vec3
}
