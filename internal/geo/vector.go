// Package geo holds the pure vector and rotation helpers shared by the
// physics step, the ground sensor, the trail ledger and any collaborator
// that needs surface-relative projections (for example bot lead-point
// targeting). None of these functions keep state.
package geo

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon below which a vector is treated as zero length.
const Epsilon = 1e-9

// Clamp01 clamps v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SafeNormalize returns v normalized, or fallback when v is (near) zero or not finite.
func SafeNormalize(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < Epsilon || math.IsNaN(l) || math.IsInf(l, 0) {
		return fallback
	}
	return v.Mul(1 / l)
}

// Project returns the component of v along onto.
func Project(v, onto mgl64.Vec3) mgl64.Vec3 {
	d := onto.Dot(onto)
	if d < Epsilon {
		return mgl64.Vec3{}
	}
	return onto.Mul(v.Dot(onto) / d)
}

// ProjectOnPlane removes the component of v along the plane normal n.
func ProjectOnPlane(v, n mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(Project(v, n))
}

// SurfaceForward projects forward onto the surface and normalizes it. When
// forward is parallel to the normal, fallback is projected instead.
func SurfaceForward(forward, fallback, normal mgl64.Vec3) mgl64.Vec3 {
	f := ProjectOnPlane(forward, normal)
	if f.Len() < Epsilon {
		f = ProjectOnPlane(fallback, normal)
	}
	return SafeNormalize(f, forward)
}

// AngleBetween returns the unsigned angle between a and b in radians.
func AngleBetween(a, b mgl64.Vec3) float64 {
	la, lb := a.Len(), b.Len()
	if la < Epsilon || lb < Epsilon {
		return 0
	}
	c := a.Dot(b) / (la * lb)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// FromTo returns the shortest rotation taking direction from onto direction to.
func FromTo(from, to mgl64.Vec3) mgl64.Quat {
	if from.Len() < Epsilon || to.Len() < Epsilon {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatBetweenVectors(from.Normalize(), to.Normalize())
}

// Slerp interpolates from a to b along the shorter arc. t is clamped to [0,1].
func Slerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	t = Clamp01(t)
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	if t == 0 {
		return a
	}
	if t == 1 {
		return b.Normalize()
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}

// AlignUp returns rot rotated so that its up axis points along normal,
// keeping the heading as close as possible.
func AlignUp(rot mgl64.Quat, up, normal mgl64.Vec3) mgl64.Quat {
	return FromTo(rot.Rotate(up), normal).Mul(rot).Normalize()
}

// LookRotation builds the rotation whose local +Z points along forward and
// whose local +Y is as close to up as possible.
func LookRotation(forward, up mgl64.Vec3) mgl64.Quat {
	f := SafeNormalize(forward, mgl64.Vec3{0, 0, 1})
	r := up.Cross(f)
	if r.Len() < Epsilon {
		// forward is parallel to up; pick any perpendicular
		r = mgl64.Vec3{1, 0, 0}.Cross(f)
		if r.Len() < Epsilon {
			r = mgl64.Vec3{0, 0, 1}.Cross(f)
		}
	}
	r = r.Normalize()
	u := f.Cross(r)
	return mgl64.Mat4ToQuat(mgl64.Mat3FromCols(r, u, f).Mat4()).Normalize()
}
