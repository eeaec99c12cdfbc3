package geo

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-2))
	assert.Equal(t, 0.25, Clamp01(0.25))
	assert.Equal(t, 1.0, Clamp01(3))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
}

func TestSafeNormalize_ZeroUsesFallback(t *testing.T) {
	up := mgl64.Vec3{0, 1, 0}
	assert.Equal(t, up, SafeNormalize(mgl64.Vec3{}, up))
	assert.InDelta(t, 1.0, SafeNormalize(mgl64.Vec3{3, 4, 0}, up).Len(), 1e-12)
}

func TestProjectOnPlane(t *testing.T) {
	v := ProjectOnPlane(mgl64.Vec3{1, 2, 3}, mgl64.Vec3{0, 1, 0})
	assert.Equal(t, mgl64.Vec3{1, 0, 3}, v)
}

func TestSurfaceForward_ParallelFallsBack(t *testing.T) {
	up := mgl64.Vec3{0, 1, 0}
	f := SurfaceForward(up, mgl64.Vec3{0, 0, 1}, up)
	assert.True(t, f.ApproxEqual(mgl64.Vec3{0, 0, 1}))
}

func TestFromTo_RotatesDirection(t *testing.T) {
	q := FromTo(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{1, 0, 0})
	got := q.Rotate(mgl64.Vec3{0, 1, 0})
	assert.True(t, got.ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-9), "got %v", got)
}

func TestFromTo_Antiparallel(t *testing.T) {
	q := FromTo(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, -1, 0})
	got := q.Rotate(mgl64.Vec3{0, 1, 0})
	assert.True(t, got.ApproxEqualThreshold(mgl64.Vec3{0, -1, 0}, 1e-9), "got %v", got)
}

func TestSlerp_TakesShortArc(t *testing.T) {
	a := mgl64.QuatIdent()
	b := mgl64.QuatRotate(0.5, mgl64.Vec3{0, 1, 0}).Scale(-1)

	mid := Slerp(a, b, 0.5)
	angle := AngleBetween(mid.Rotate(mgl64.Vec3{0, 0, 1}), mgl64.Vec3{0, 0, 1})
	assert.InDelta(t, 0.25, angle, 1e-9)
}

func TestLookRotation(t *testing.T) {
	q := LookRotation(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0})
	assert.True(t, q.Rotate(mgl64.Vec3{0, 0, 1}).ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-9))
	assert.True(t, q.Rotate(mgl64.Vec3{0, 1, 0}).ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9))
}

func TestAlignUp_KeepsHeadingOnFlatGround(t *testing.T) {
	rot := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
	aligned := AlignUp(rot, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 1, 0})
	assert.True(t, aligned.ApproxEqualThreshold(rot, 1e-9))
}
