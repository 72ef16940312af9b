// Package geometry holds the canonical vertex/index representation shared by
// every codec and its conversion to and from host meshes.
package geometry

import (
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
)

// Default tolerances for ApproxEqual.
const (
	DefaultPosTolerance    = 0.1
	DefaultNormalTolerance = 0.001
	// RoundTripTolerance bounds position and UV drift across a write and
	// re-read at the default precision.
	RoundTripTolerance = 1e-6
)

// Vertex is one exported vertex: position, normal and UV.
type Vertex struct {
	Pos    xpmath.Vec3 `yaml:"pos"`
	Normal xpmath.Vec3 `yaml:"normal"`
	UV     xpmath.Vec2 `yaml:"uv"`
}

// Equal compares componentwise.
func (v Vertex) Equal(other Vertex) bool {
	return v == other
}

// ApproxEqual compares positions with posTol, normals and UVs with nrmTol.
func (v Vertex) ApproxEqual(other Vertex, posTol, nrmTol float32) bool {
	return v.Pos.ApproxEqual(other.Pos, posTol) &&
		v.Normal.ApproxEqual(other.Normal, nrmTol) &&
		v.UV.ApproxEqual(other.UV, nrmTol)
}

// ApproxEqualDefault uses DefaultPosTolerance and DefaultNormalTolerance.
func (v Vertex) ApproxEqualDefault(other Vertex) bool {
	return v.ApproxEqual(other, DefaultPosTolerance, DefaultNormalTolerance)
}
