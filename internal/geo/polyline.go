package geo

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	geom "github.com/peterstace/simplefeatures/geom"
)

// LineStringZ builds a 3D line string from a connected run of trail points.
func LineStringZ(points []mgl64.Vec3) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("polyline must have at least 2 points, got %d", len(points))
	}

	flat := make([]float64, 0, len(points)*3)
	for i, p := range points {
		if !finiteVec(p) {
			return geom.LineString{}, fmt.Errorf("point %d is not finite", i)
		}
		flat = append(flat, p[0], p[1], p[2])
	}

	return geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ)), nil
}

// PolylineWKB encodes a run of points as well-known binary.
func PolylineWKB(points []mgl64.Vec3) ([]byte, error) {
	ls, err := LineStringZ(points)
	if err != nil {
		return nil, err
	}
	return ls.AsBinary(), nil
}

// PolylineFromWKB decodes well-known binary produced by PolylineWKB.
func PolylineFromWKB(wkb []byte) ([]mgl64.Vec3, error) {
	g, err := geom.UnmarshalWKB(wkb)
	if err != nil {
		return nil, fmt.Errorf("failed to parse polyline WKB: %w", err)
	}
	ls, ok := g.AsLineString()
	if !ok {
		return nil, fmt.Errorf("expected LineString, got %s", g.Type())
	}

	seq := ls.Coordinates()
	out := make([]mgl64.Vec3, seq.Length())
	for i := range out {
		c := seq.Get(i)
		out[i] = mgl64.Vec3{c.X, c.Y, c.Z}
	}
	return out, nil
}

// PolylineLength returns the summed length of the run's edges.
func PolylineLength(points []mgl64.Vec3) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += points[i].Sub(points[i-1]).Len()
	}
	return total
}

func finiteVec(v mgl64.Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}
