package geometry

import (
	"github.com/chewxy/math32"

	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// Mesh is an indexed triangle list in X-Plane winding.
type Mesh struct {
	Vertices []Vertex `yaml:"vertices"`
	Indices  []int    `yaml:"indices"`
}

// Validate checks that the index count is a multiple of three and that every
// index references a vertex.
func (m *Mesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return xperr.Invariant("index count %d is not a multiple of 3", len(m.Indices))
	}
	for i, idx := range m.Indices {
		if idx < 0 || idx >= len(m.Vertices) {
			return xperr.Invariant("index %d at position %d out of range [0,%d)", idx, i, len(m.Vertices))
		}
	}
	return nil
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Append adds other's geometry and returns the index offset at which
// other's indices start.
func (m *Mesh) Append(other *Mesh) int {
	start := len(m.Indices)
	base := len(m.Vertices)
	m.Vertices = append(m.Vertices, other.Vertices...)
	for _, idx := range other.Indices {
		m.Indices = append(m.Indices, idx+base)
	}
	return start
}

// SubMesh extracts the triangles of an index range, compacting vertices.
func (m *Mesh) SubMesh(start, length int) *Mesh {
	out := &Mesh{}
	remap := make(map[int]int)
	for _, idx := range m.Indices[start : start+length] {
		n, ok := remap[idx]
		if !ok {
			n = len(out.Vertices)
			remap[idx] = n
			out.Vertices = append(out.Vertices, m.Vertices[idx])
		}
		out.Indices = append(out.Indices, n)
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the vertex positions.
func (m *Mesh) Bounds() (min, max xpmath.Vec3) {
	if len(m.Vertices) == 0 {
		return
	}
	min, max = m.Vertices[0].Pos, m.Vertices[0].Pos
	for _, v := range m.Vertices[1:] {
		min = min.Min(v.Pos)
		max = max.Max(v.Pos)
	}
	return
}

// UVBounds returns the UV rectangle covered by the mesh.
func (m *Mesh) UVBounds() (min, max xpmath.Vec2) {
	if len(m.Vertices) == 0 {
		return
	}
	min, max = m.Vertices[0].UV, m.Vertices[0].UV
	for _, v := range m.Vertices[1:] {
		min = xpmath.Vec2{X: math32.Min(min.X, v.UV.X), Y: math32.Min(min.Y, v.UV.Y)}
		max = xpmath.Vec2{X: math32.Max(max.X, v.UV.X), Y: math32.Max(max.Y, v.UV.Y)}
	}
	return
}

// Transform applies m to positions and its normal matrix to normals.
func (m *Mesh) Transform(world xpmath.Mat4) {
	nm := world.NormalMatrix()
	for i := range m.Vertices {
		m.Vertices[i].Pos = world.TransformPoint(m.Vertices[i].Pos)
		m.Vertices[i].Normal = nm.TransformDirection(m.Vertices[i].Normal).Normalize()
	}
	if world.Determinant3() < 0 {
		m.FlipWinding()
	}
}

// FlipWinding reverses the orientation of every triangle.
func (m *Mesh) FlipWinding() {
	for i := 0; i+2 < len(m.Indices); i += 3 {
		m.Indices[i+1], m.Indices[i+2] = m.Indices[i+2], m.Indices[i+1]
	}
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Vertices: append([]Vertex(nil), m.Vertices...),
		Indices:  append([]int(nil), m.Indices...),
	}
}
