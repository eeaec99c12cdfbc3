package geo

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineStringZ_Valid(t *testing.T) {
	ls, err := LineStringZ([]mgl64.Vec3{{0, 0, 0}, {3, 4, 0}, {3, 8, 0}})
	require.NoError(t, err)
	assert.Equal(t, 3, ls.Coordinates().Length())
	assert.InDelta(t, 9.0, ls.Length(), 1e-9)
}

func TestLineStringZ_TooFewPoints(t *testing.T) {
	_, err := LineStringZ([]mgl64.Vec3{{1, 2, 3}})
	require.Error(t, err)
}

func TestPolylineWKB_Decode(t *testing.T) {
	in := []mgl64.Vec3{{1, 2, 3}, {4, 5, 6}}
	wkb, err := PolylineWKB(in)
	require.NoError(t, err)

	out, err := PolylineFromWKB(wkb)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestPolylineFromWKB_Garbage(t *testing.T) {
	_, err := PolylineFromWKB([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestPolylineLength(t *testing.T) {
	assert.Equal(t, 0.0, PolylineLength(nil))
	assert.InDelta(t, 10.0, PolylineLength([]mgl64.Vec3{{0, 0, 0}, {0, 0, 4}, {0, 6, 4}}), 1e-12)
}
