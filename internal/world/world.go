// Package world holds the static level geometry a match is played in and
// answers the ray and overlap queries the simulation needs.
package world

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Box is a solid piece of level geometry. Lethal boxes kill on contact.
type Box struct {
	ID     int   `json:"id"`
	Shape  OBB   `json:"shape"`
	Layer  Layer `json:"layer"`
	Lethal bool  `json:"lethal"`
}

// Portal teleports a vehicle that enters its trigger to the exit pose.
type Portal struct {
	ID           int        `json:"id"`
	Trigger      OBB        `json:"trigger"`
	ExitPosition mgl64.Vec3 `json:"exitPosition"`
	ExitRotation mgl64.Quat `json:"exitRotation"`
}

// SpawnPoint is a respawn location.
type SpawnPoint struct {
	Position mgl64.Vec3 `json:"position"`
	Rotation mgl64.Quat `json:"rotation"`
}

// PickupSite is a location where a power-up appears.
type PickupSite struct {
	ID       int        `json:"id"`
	Kind     string     `json:"kind"`
	Position mgl64.Vec3 `json:"position"`
	Radius   float64    `json:"radius"`
}

// World is immutable once built and safe for concurrent queries.
type World struct {
	name    string
	planes  []Plane
	boxes   []Box
	portals []Portal
	spawns  []SpawnPoint
	pickups []PickupSite
}

// Name returns the world's name.
func (w *World) Name() string { return w.name }

// Raycast returns the nearest hit among geometry whose layer is in mask.
func (w *World) Raycast(origin, dir mgl64.Vec3, maxDistance float64, mask Layer) (Hit, bool) {
	best := Hit{Distance: maxDistance}
	found := false

	for _, p := range w.planes {
		if p.Layer&mask == 0 {
			continue
		}
		if h, ok := p.Raycast(origin, dir, best.Distance); ok {
			h.BoxID = -1
			best, found = h, true
		}
	}
	for _, b := range w.boxes {
		if b.Layer&mask == 0 {
			continue
		}
		if h, ok := b.Shape.Raycast(origin, dir, best.Distance); ok {
			h.Layer, h.BoxID = b.Layer, b.ID
			best, found = h, true
		}
	}
	return best, found
}

// LethalOverlaps returns the IDs of lethal boxes touching the sphere.
func (w *World) LethalOverlaps(s Sphere) []int {
	var ids []int
	for _, b := range w.boxes {
		if b.Lethal && b.Shape.OverlapsSphere(s.Center, s.Radius) {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// PortalAt returns the portal whose trigger the sphere is touching.
func (w *World) PortalAt(s Sphere) (Portal, bool) {
	for _, p := range w.portals {
		if p.Trigger.OverlapsSphere(s.Center, s.Radius) {
			return p, true
		}
	}
	return Portal{}, false
}

// Portals returns the portals of the world.
func (w *World) Portals() []Portal { return w.portals }

// SpawnPoints returns the respawn locations in declaration order.
func (w *World) SpawnPoints() []SpawnPoint { return w.spawns }

// PickupSites returns the power-up locations.
func (w *World) PickupSites() []PickupSite { return w.pickups }
