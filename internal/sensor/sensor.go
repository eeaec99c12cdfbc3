// Package sensor reports surface proximity below a vehicle.
package sensor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phaseline/lightcycle/internal/geo"
	"github.com/phaseline/lightcycle/internal/world"
	"github.com/phaseline/lightcycle/pkg/core"
)

// RayCaster is the static-geometry query service the sensor casts against.
type RayCaster interface {
	Raycast(origin, dir mgl64.Vec3, maxDistance float64, mask world.Layer) (world.Hit, bool)
}

// Contact describes the surface found by a sense query. Height is the
// distance measured along the surface normal rather than along the ray.
type Contact struct {
	Normal   mgl64.Vec3
	Distance float64
	Height   float64
	Grounded bool
}

// Sensor casts opposite the last known surface normal.
// StickDistance bounds the ray; GroundOffset is the grounded threshold.
type Sensor struct {
	Caster        RayCaster
	StickDistance float64
	GroundOffset  float64
	Mask          world.Layer
}

// Sense looks for a surface beneath origin. A miss is a normal outcome.
// A zero or non-finite lastNormal is treated as world-up.
func (s Sensor) Sense(origin, lastNormal mgl64.Vec3) (Contact, bool) {
	if s.Caster == nil || s.StickDistance <= 0 {
		return Contact{}, false
	}
	n := geo.SafeNormalize(lastNormal, core.WorldUp)
	mask := s.Mask
	if mask == 0 {
		mask = world.LayerGround | world.LayerWall
	}

	hit, ok := s.Caster.Raycast(origin, n.Mul(-1), s.StickDistance, mask)
	if !ok {
		return Contact{}, false
	}
	normal := geo.SafeNormalize(hit.Normal, n)
	return Contact{
		Normal:   normal,
		Distance: hit.Distance,
		Height:   hit.Distance * math.Max(0, n.Dot(normal)),
		Grounded: hit.Distance <= s.GroundOffset,
	}, true
}
