package streaming

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/phaseline/lightcycle/pkg/core"
)

// Message type constants of the match protocol.
const (
	TypeJoin          = "join"
	TypeWelcome       = "welcome"
	TypeInput         = "input"
	TypeSnapshot      = "snapshot"
	TypeTeleport      = "teleport"
	TypeSegmentSpawn  = "segment_spawn"
	TypeSegmentRetire = "segment_retire"
	TypeTrailClear    = "trail_clear"
	TypeTrailResume   = "trail_resume"
	TypeDeath         = "death"
	TypeRevive        = "revive"
	TypePowerUp       = "powerup"
	TypeVehicleJoined = "vehicle_joined"
	TypeVehicleLeft   = "vehicle_left"
	TypeLeave         = "leave"
)

// Envelope wraps every message sent over the transport.
type Envelope struct {
	Type    string             `msgpack:"t" json:"type"`
	Payload msgpack.RawMessage `msgpack:"p" json:"payload"`
}

// JoinPayload is sent by a client when it connects.
type JoinPayload struct {
	Name  string `msgpack:"n" json:"name"`
	IsBot bool   `msgpack:"b,omitempty" json:"isBot,omitempty"`
}

// WelcomePayload assigns the client its vehicle.
type WelcomePayload struct {
	VehicleID core.VehicleID         `msgpack:"id" json:"vehicleId"`
	TickRate  int                    `msgpack:"hz" json:"tickRate"`
	Tick      uint64                 `msgpack:"t" json:"tick"`
	Spawn     core.ReconcileSnapshot `msgpack:"s" json:"spawn"`
}

// InputPayload carries one or more inputs, newest last, so a lost datagram
// can be covered by the next one.
type InputPayload struct {
	VehicleID core.VehicleID   `msgpack:"id" json:"vehicleId"`
	Inputs    []core.TickInput `msgpack:"i" json:"inputs"`
}

// SnapshotPayload carries every vehicle's authoritative state for one tick.
type SnapshotPayload struct {
	Tick      uint64                   `msgpack:"t" json:"tick"`
	Snapshots []core.ReconcileSnapshot `msgpack:"s" json:"snapshots"`
}

// TrailPayload tells mirrors to clear a trail or resume it at a pose.
type TrailPayload struct {
	VehicleID core.VehicleID `msgpack:"id" json:"vehicleId"`
	Tick      uint64         `msgpack:"t" json:"tick"`
	Position  mgl64.Vec3     `msgpack:"p" json:"position"`
	Rotation  mgl64.Quat     `msgpack:"r" json:"rotation"`
}

// TeleportPayload carries the out-of-band reset for a teleported vehicle.
// Mirrors cut the trail at From and, when ResumeTrail is set, resume it
// at the snapshot pose.
type TeleportPayload struct {
	Snapshot    core.ReconcileSnapshot `msgpack:"s" json:"snapshot"`
	From        mgl64.Vec3             `msgpack:"f" json:"from"`
	Reason      core.TeleportReason    `msgpack:"r" json:"reason"`
	ResumeTrail bool                   `msgpack:"rt,omitempty" json:"resumeTrail,omitempty"`
}

// VehiclePayload announces a vehicle entering or leaving the match.
type VehiclePayload struct {
	VehicleID core.VehicleID `msgpack:"id" json:"vehicleId"`
	Name      string         `msgpack:"n" json:"name"`
}
