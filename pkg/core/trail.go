package core

import "github.com/go-gl/mathgl/mgl64"

// TrailPoint is one cross-section of a trail strip.
// Gap means the point is never connected to its successor.
type TrailPoint struct {
	Emitter     mgl64.Vec3 `msgpack:"e" json:"emitter"`
	BottomLeft  mgl64.Vec3 `msgpack:"bl" json:"bottomLeft"`
	BottomRight mgl64.Vec3 `msgpack:"br" json:"bottomRight"`
	TopLeft     mgl64.Vec3 `msgpack:"tl" json:"topLeft"`
	TopRight    mgl64.Vec3 `msgpack:"tr" json:"topRight"`
	Gap         bool       `msgpack:"gap,omitempty" json:"gap,omitempty"`
}

// SegmentID identifies a live trail collider. IDs are allocated by the authority only.
type SegmentID uint32

// TrailColliderSegment is an oriented box spanning two consecutive trail points.
type TrailColliderSegment struct {
	ID          SegmentID  `msgpack:"id" json:"id"`
	Owner       VehicleID  `msgpack:"o" json:"owner"`
	Start       mgl64.Vec3 `msgpack:"a" json:"start"`
	End         mgl64.Vec3 `msgpack:"b" json:"end"`
	Center      mgl64.Vec3 `msgpack:"c" json:"center"`
	Rotation    mgl64.Quat `msgpack:"r" json:"rotation"`
	HalfExtents mgl64.Vec3 `msgpack:"h" json:"halfExtents"`
	SpawnTick   uint64     `msgpack:"t" json:"spawnTick"`
}

// HullID identifies a vehicle's collision hull. Every vehicle has exactly one hull.
type HullID uint32
