package geometry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

func unitQuad() *HostMesh {
	return Quad(
		[4]xpmath.Vec3{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		[4]xpmath.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
	)
}

func TestFromHostTriangulatesAndFlips(t *testing.T) {
	m, err := FromHost(unitQuad(), xpmath.Identity())
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Len(t, m.Vertices, 4)
	assert.Equal(t, 2, m.TriangleCount())
	// Fan (0,1,2),(0,2,3) emitted in X-Plane winding.
	assert.Equal(t, []int{0, 2, 1, 0, 3, 2}, m.Indices)
	for _, v := range m.Vertices {
		assert.Equal(t, xpmath.Vec3{Z: 1}, v.Normal)
	}
}

func TestFromHostWorldTransform(t *testing.T) {
	world := xpmath.Translate(10, 0, 0).Mul(xpmath.Scale(2, 1, 1))
	m, err := FromHost(unitQuad(), world)
	require.NoError(t, err)

	min, max := m.Bounds()
	assert.Equal(t, xpmath.Vec3{X: 10}, min)
	assert.Equal(t, xpmath.Vec3{X: 12, Y: 1}, max)
	for _, v := range m.Vertices {
		assert.InDelta(t, 1, v.Normal.Length(), 1e-6, "normals stay unit length")
	}
}

func TestFromHostSplitsNormals(t *testing.T) {
	// Two triangles sharing an edge but with different corner normals: the
	// shared positions must be split into separate vertices.
	h := &HostMesh{
		Positions: []xpmath.Vec3{{}, {X: 1}, {Y: 1}, {X: 1, Y: 1}},
		Loops: []Loop{
			{Vert: 0, Normal: xpmath.Vec3{Z: 1}}, {Vert: 1, Normal: xpmath.Vec3{Z: 1}}, {Vert: 2, Normal: xpmath.Vec3{Z: 1}},
			{Vert: 1, Normal: xpmath.Vec3{X: 1}}, {Vert: 3, Normal: xpmath.Vec3{X: 1}}, {Vert: 2, Normal: xpmath.Vec3{X: 1}},
		},
		Polys: [][]int{{0, 1, 2}, {3, 4, 5}},
	}
	m, err := FromHost(h, xpmath.Identity())
	require.NoError(t, err)
	assert.Len(t, m.Vertices, 6)
}

func TestFromHostMirroredKeepsOrientation(t *testing.T) {
	plain, err := FromHost(unitQuad(), xpmath.Identity())
	require.NoError(t, err)
	mirrored, err := FromHost(unitQuad(), xpmath.Scale(-1, 1, 1))
	require.NoError(t, err)
	assert.NotEqual(t, plain.Indices, mirrored.Indices)
}

func TestFromHostDegenerate(t *testing.T) {
	h := &HostMesh{
		Positions: []xpmath.Vec3{{}, {X: 1}},
		Loops:     []Loop{{Vert: 0}, {Vert: 1}},
		Polys:     [][]int{{0, 1}},
	}
	_, err := FromHost(h, xpmath.Identity())
	assert.True(t, errors.Is(err, xperr.ErrInvariant))
}

func TestToHostRoundTrip(t *testing.T) {
	m, err := FromHost(unitQuad(), xpmath.Identity())
	require.NoError(t, err)

	back, err := FromHost(m.ToHost(), xpmath.Identity())
	require.NoError(t, err)
	require.Equal(t, len(m.Indices), len(back.Indices))
	for i := range m.Indices {
		assert.True(t, m.Vertices[m.Indices[i]].Equal(back.Vertices[back.Indices[i]]), "corner %d", i)
	}
}

func TestValidate(t *testing.T) {
	m := &Mesh{Vertices: make([]Vertex, 3), Indices: []int{0, 1}}
	assert.Error(t, m.Validate())
	m.Indices = []int{0, 1, 3}
	assert.True(t, errors.Is(m.Validate(), xperr.ErrInvariant))
}

func TestAppendAndSubMesh(t *testing.T) {
	a, _ := FromHost(unitQuad(), xpmath.Identity())
	b, _ := FromHost(unitQuad(), xpmath.Translate(5, 0, 0))

	all := a.Clone()
	start := all.Append(b)
	assert.Equal(t, 6, start)
	require.NoError(t, all.Validate())

	sub := all.SubMesh(start, 6)
	assert.Len(t, sub.Vertices, 4)
	min, _ := sub.Bounds()
	assert.Equal(t, float32(5), min.X)
}

func TestVertexApproxEqual(t *testing.T) {
	a := Vertex{Pos: xpmath.Vec3{X: 1}, Normal: xpmath.Vec3{Z: 1}}
	b := Vertex{Pos: xpmath.Vec3{X: 1.05}, Normal: xpmath.Vec3{Z: 1.0005}}
	assert.True(t, a.ApproxEqualDefault(b))
	b.Normal.Z = 1.01
	assert.False(t, a.ApproxEqualDefault(b))
	assert.False(t, a.Equal(b))
}
