package trail

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/phaseline/lightcycle/pkg/core"
)

// Mesh is an indexed triangle list. Every quad contributes four vertices
// and the triangles (i, i+1, i+2) and (i+2, i+1, i+3).
type Mesh struct {
	Vertices []mgl64.Vec3
	Indices  []int
}

// Quads returns the number of quads in the mesh.
func (m Mesh) Quads() int { return len(m.Vertices) / 4 }

func (m *Mesh) quad(a, b, c, d mgl64.Vec3) {
	i := len(m.Vertices)
	m.Vertices = append(m.Vertices, a, b, c, d)
	m.Indices = append(m.Indices, i, i+1, i+2, i+2, i+1, i+3)
}

// BuildMesh builds the trail walls from consecutive cross-sections. Each
// strip opens with an end cap, then gets left, right and top faces
// between neighbours. A point flagged Gap is never joined to its successor.
func BuildMesh(points []core.TrailPoint) Mesh {
	var m Mesh
	for i := 0; i+1 < len(points); i++ {
		a, b := points[i], points[i+1]
		if a.Gap {
			continue
		}
		if i == 0 || points[i-1].Gap {
			m.quad(a.BottomLeft, a.TopLeft, a.BottomRight, a.TopRight)
		}
		m.quad(b.BottomLeft, b.TopLeft, a.BottomLeft, a.TopLeft)
		m.quad(a.BottomRight, a.TopRight, b.BottomRight, b.TopRight)
		m.quad(a.TopLeft, b.TopLeft, a.TopRight, b.TopRight)
	}
	return m
}
