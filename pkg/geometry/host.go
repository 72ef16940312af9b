package geometry

import (
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// Loop is one polygon corner of a host mesh: the vertex it uses plus the
// split normal and UV stored per corner.
type Loop struct {
	Vert   int         `yaml:"v"`
	Normal xpmath.Vec3 `yaml:"n"`
	UV     xpmath.Vec2 `yaml:"uv"`
}

// HostMesh is the host's polygon mesh: shared positions, per-corner loops
// and polygons listing loop indices in counter-clockwise order.
type HostMesh struct {
	Positions []xpmath.Vec3 `yaml:"positions"`
	Loops     []Loop        `yaml:"loops"`
	Polys     [][]int       `yaml:"polys"`
}

// FromHost triangulates h, applies world to positions and the world normal
// matrix to normals, splits vertices wherever a corner's normal or UV
// differs, and reverses winding to X-Plane's convention.
func FromHost(h *HostMesh, world xpmath.Mat4) (*Mesh, error) {
	nm := world.NormalMatrix()
	mirrored := world.Determinant3() < 0

	out := &Mesh{}
	seen := make(map[Vertex]int)
	vertexOf := func(loopIdx int) (int, error) {
		if loopIdx < 0 || loopIdx >= len(h.Loops) {
			return 0, xperr.Invariant("loop %d out of range", loopIdx)
		}
		l := h.Loops[loopIdx]
		if l.Vert < 0 || l.Vert >= len(h.Positions) {
			return 0, xperr.Invariant("loop %d references vertex %d out of range", loopIdx, l.Vert)
		}
		v := Vertex{
			Pos:    world.TransformPoint(h.Positions[l.Vert]),
			Normal: nm.TransformDirection(l.Normal).Normalize(),
			UV:     l.UV,
		}
		if idx, ok := seen[v]; ok {
			return idx, nil
		}
		idx := len(out.Vertices)
		seen[v] = idx
		out.Vertices = append(out.Vertices, v)
		return idx, nil
	}

	for pi, poly := range h.Polys {
		if len(poly) < 3 {
			return nil, xperr.Invariant("polygon %d has %d corners, need at least 3", pi, len(poly))
		}
		for i := 1; i+1 < len(poly); i++ {
			a, err := vertexOf(poly[0])
			if err != nil {
				return nil, err
			}
			b, err := vertexOf(poly[i])
			if err != nil {
				return nil, err
			}
			c, err := vertexOf(poly[i+1])
			if err != nil {
				return nil, err
			}
			if mirrored {
				out.Indices = append(out.Indices, a, b, c)
			} else {
				out.Indices = append(out.Indices, a, c, b)
			}
		}
	}
	return out, nil
}

// ToHost converts the triangle list back into a host mesh with one polygon
// per triangle, restoring counter-clockwise winding. Positions are shared
// between corners that sit at the same place.
func (m *Mesh) ToHost() *HostMesh {
	h := &HostMesh{}
	posIdx := make(map[xpmath.Vec3]int)
	for t := 0; t+2 < len(m.Indices); t += 3 {
		tri := [3]int{m.Indices[t], m.Indices[t+2], m.Indices[t+1]}
		poly := make([]int, 0, 3)
		for _, vi := range tri {
			v := m.Vertices[vi]
			p, ok := posIdx[v.Pos]
			if !ok {
				p = len(h.Positions)
				posIdx[v.Pos] = p
				h.Positions = append(h.Positions, v.Pos)
			}
			poly = append(poly, len(h.Loops))
			h.Loops = append(h.Loops, Loop{Vert: p, Normal: v.Normal, UV: v.UV})
		}
		h.Polys = append(h.Polys, poly)
	}
	return h
}

// Quad builds a single quad host mesh with the given corners (counter-clockwise
// seen from +Z) and UVs, facing +Z. It is the building block of the line,
// polygon and autogen importers.
func Quad(corners [4]xpmath.Vec3, uvs [4]xpmath.Vec2) *HostMesh {
	n := corners[1].Sub(corners[0]).Cross(corners[2].Sub(corners[0])).Normalize()
	h := &HostMesh{Positions: corners[:]}
	poly := make([]int, 4)
	for i := range corners {
		poly[i] = i
		h.Loops = append(h.Loops, Loop{Vert: i, Normal: n, UV: uvs[i]})
	}
	h.Polys = [][]int{poly}
	return h
}
