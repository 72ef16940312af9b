package formats

import (
	"github.com/Faultbox/xplane-assets/pkg/geometry"
	"github.com/Faultbox/xplane-assets/pkg/material"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
)

// Object is a decoded .obj file. Positions, normals, axes and offsets are
// in internal (Z-up) coordinates.
type Object struct {
	Header Header

	// Material holds the object's textures and global attributes.
	Material material.Material
	// Draped holds the TEXTURE_DRAPED family, used by draped draw calls.
	Draped  material.Material
	Globals Globals

	Vertices []geometry.Vertex
	Indices  []int

	LODBuckets []LODRange
	LODMode    LODMode

	Root *AnimLevel
}

// Globals are object-wide attributes that have no material equivalent.
type Globals struct {
	CockpitLit  bool
	BlendGlass  bool
	Specular    *float32
	Tint        *[2]float32
	ShadowBlend *float32
}

// Kind implements Asset.
func (o *Object) Kind() Kind { return KindOBJ }

// NewObject returns an empty object with a root level.
func NewObject() *Object {
	return &Object{
		Header: Header{Platform: PlatformIBM, Version: 800, Keyword: "OBJ"},
		Root:   &AnimLevel{},
	}
}

// AnimLevel is one ANIM_begin/ANIM_end bracket, or the object root.
// Draw calls and lights bound here are transformed by every action of this
// level and its ancestors.
type AnimLevel struct {
	Actions   []Action
	DrawCalls []DrawCall
	Lights    []Light
	Children  []*AnimLevel
}

// Walk visits l and its descendants depth first.
func (l *AnimLevel) Walk(fn func(level *AnimLevel, depth int)) {
	l.walk(fn, 0)
}

func (l *AnimLevel) walk(fn func(*AnimLevel, int), depth int) {
	fn(l, depth)
	for _, c := range l.Children {
		c.walk(fn, depth+1)
	}
}

// DrawCalls returns every draw call in depth-first order.
func (o *Object) DrawCalls() []*DrawCall {
	var out []*DrawCall
	o.Root.Walk(func(l *AnimLevel, _ int) {
		for i := range l.DrawCalls {
			out = append(out, &l.DrawCalls[i])
		}
	})
	return out
}

// Lights returns every light in depth-first order.
func (o *Object) Lights() []*Light {
	var out []*Light
	o.Root.Walk(func(l *AnimLevel, _ int) {
		for i := range l.Lights {
			out = append(out, &l.Lights[i])
		}
	})
	return out
}

// Mesh returns the vertices and indices covered by dc as a standalone mesh.
func (o *Object) Mesh(dc *DrawCall) *geometry.Mesh {
	full := geometry.Mesh{Vertices: o.Vertices, Indices: o.Indices}
	return full.SubMesh(dc.Start, dc.Length)
}

// DrawCall is a TRIS command with the render state in effect.
type DrawCall struct {
	Start  int
	Length int
	// LOD is the ATTR_LOD range in effect when read, nil outside any.
	LOD *LODRange
	// Bucket indexes Object.LODBuckets, -1 when the object has none.
	Bucket int
	State  material.State
	Manip  *Manipulator
}

// Action is one animation step of a level.
type Action interface {
	isAction()
}

// LocKeyframe is a static translation.
type LocKeyframe struct {
	Offset xpmath.Vec3
}

// RotKeyframe is a static rotation in degrees.
type RotKeyframe struct {
	Axis  xpmath.Vec3
	Angle float32
}

// LocKey maps a dataref value to a translation.
type LocKey struct {
	Value float32
	Loc   xpmath.Vec3
}

// LocTable is a dataref-driven translation.
type LocTable struct {
	Dataref string
	Keys    []LocKey
	// Loop is the ANIM_keyframe_loop period, 0 when not looping.
	Loop float32
}

// RotTableVectorTransform aligns local +Z with Axis for the RotTable that
// follows it.
type RotTableVectorTransform struct {
	Axis xpmath.Vec3
}

// RotKey maps a dataref value to an angle in degrees.
type RotKey struct {
	Value float32
	Angle float32
}

// RotTable is a dataref-driven rotation about local Z.
type RotTable struct {
	Dataref string
	Keys    []RotKey
	Loop    float32
}

// ShowHide is one ANIM_show or ANIM_hide.
type ShowHide struct {
	Show    bool
	V1, V2  float32
	Dataref string
}

// ShowHideSeries groups consecutive show/hide commands.
type ShowHideSeries struct {
	Entries []ShowHide
}

func (LocKeyframe) isAction()             {}
func (RotKeyframe) isAction()             {}
func (*LocTable) isAction()               {}
func (RotTableVectorTransform) isAction() {}
func (*RotTable) isAction()               {}
func (*ShowHideSeries) isAction()         {}

// isNone reports whether a dataref means "no dataref".
func isNone(dref string) bool {
	return dref == "" || dref == "none"
}
