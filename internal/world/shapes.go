package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const parallelEpsilon = 1e-12

// Layer is a bitmask used to filter queries.
type Layer uint32

const (
	LayerGround Layer = 1 << iota
	LayerWall
	LayerTrail
	LayerHull
	LayerPortal

	LayerAll Layer = math.MaxUint32
)

// Hit is the result of a successful raycast.
type Hit struct {
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
	Layer    Layer
	BoxID    int
}

// Plane is an infinite one-sided plane. Rays only hit its front face.
type Plane struct {
	Point  mgl64.Vec3 `json:"point"`
	Normal mgl64.Vec3 `json:"normal"`
	Layer  Layer      `json:"layer"`
}

// OBB is an oriented bounding box.
type OBB struct {
	Center      mgl64.Vec3 `json:"center"`
	Rotation    mgl64.Quat `json:"rotation"`
	HalfExtents mgl64.Vec3 `json:"halfExtents"`
}

// Raycast intersects a ray with the plane. dir must be normalized.
func (p Plane) Raycast(origin, dir mgl64.Vec3, maxDistance float64) (Hit, bool) {
	denom := dir.Dot(p.Normal)
	if denom > -parallelEpsilon {
		return Hit{}, false
	}
	t := p.Point.Sub(origin).Dot(p.Normal) / denom
	if t < 0 || t > maxDistance {
		return Hit{}, false
	}
	return Hit{
		Point:    origin.Add(dir.Mul(t)),
		Normal:   p.Normal,
		Distance: t,
		Layer:    p.Layer,
	}, true
}

// Raycast intersects a ray with the box using the slab method in box space.
// Rays starting inside the box miss.
func (b OBB) Raycast(origin, dir mgl64.Vec3, maxDistance float64) (Hit, bool) {
	inv := b.Rotation.Conjugate()
	o := inv.Rotate(origin.Sub(b.Center))
	d := inv.Rotate(dir)

	tmin, tmax := math.Inf(-1), math.Inf(1)
	axis, sign := -1, 0.0
	for i := 0; i < 3; i++ {
		h := b.HalfExtents[i]
		if math.Abs(d[i]) < parallelEpsilon {
			if o[i] < -h || o[i] > h {
				return Hit{}, false
			}
			continue
		}
		t1 := (-h - o[i]) / d[i]
		t2 := (h - o[i]) / d[i]
		s := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1
		}
		if t1 > tmin {
			tmin, axis, sign = t1, i, s
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return Hit{}, false
		}
	}
	if axis < 0 || tmin < 0 || tmin > maxDistance {
		return Hit{}, false
	}

	var n mgl64.Vec3
	n[axis] = sign
	return Hit{
		Point:    origin.Add(dir.Mul(tmin)),
		Normal:   b.Rotation.Rotate(n),
		Distance: tmin,
	}, true
}

// ClosestPoint returns the point of the box nearest to p.
func (b OBB) ClosestPoint(p mgl64.Vec3) mgl64.Vec3 {
	local := b.Rotation.Conjugate().Rotate(p.Sub(b.Center))
	for i := 0; i < 3; i++ {
		local[i] = math.Max(-b.HalfExtents[i], math.Min(b.HalfExtents[i], local[i]))
	}
	return b.Center.Add(b.Rotation.Rotate(local))
}

// OverlapsSphere reports whether a sphere touches the box.
func (b OBB) OverlapsSphere(center mgl64.Vec3, radius float64) bool {
	d := b.ClosestPoint(center).Sub(center)
	return d.Dot(d) <= radius*radius
}

// Sphere is a hull or trigger volume.
type Sphere struct {
	Center mgl64.Vec3
	Radius float64
}

// Overlaps reports whether two spheres touch.
func (s Sphere) Overlaps(o Sphere) bool {
	d := s.Center.Sub(o.Center)
	r := s.Radius + o.Radius
	return d.Dot(d) <= r*r
}
