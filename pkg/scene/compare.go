package scene

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chewxy/math32"

	"github.com/Faultbox/xplane-assets/pkg/formats"
	"github.com/Faultbox/xplane-assets/pkg/geometry"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
)

// Tolerance bounds the differences Compare accepts.
type Tolerance struct {
	// Transform is the absolute tolerance on positions of lights and
	// placements and on animation translations.
	Transform float32
	// Key is the absolute tolerance on keyframe values and angles.
	Key float32
	// Position and Normal bound per-vertex differences.
	Position float32
	Normal   float32
	// IgnoreNames skips object names, which importers cannot recover.
	IgnoreNames bool
}

// DefaultTolerance is the tolerance of the round-trip oracle.
func DefaultTolerance() Tolerance {
	return Tolerance{
		Transform: 1e-4,
		Key:       1e-4,
		Position:  geometry.DefaultPosTolerance,
		Normal:    geometry.DefaultNormalTolerance,
	}
}

// item is an object with content, flattened out of the hierarchy.
type item struct {
	obj   *Object
	world xpmath.Mat4
	chain []*Animation
	mesh  *geometry.Mesh
	key   string
}

// Compare lists the differences between two collections. Objects that
// carry content (meshes, lights, placements) are compared in world space
// along with the animations of their ancestors; plain empties only matter
// through the transforms and animations they pass down. An empty result
// means the collections export to equivalent assets.
func Compare(a, b *Collection, tol Tolerance) []string {
	ia, ib := flatten(a), flatten(b)
	var diffs []string
	if len(ia) != len(ib) {
		diffs = append(diffs, fmt.Sprintf("%d objects with content, want %d", len(ib), len(ia)))
	}
	for i := 0; i < len(ia) && i < len(ib); i++ {
		diffs = append(diffs, compareItems(ia[i], ib[i], tol)...)
	}
	return diffs
}

func flatten(c *Collection) []item {
	var out []item
	var visit func(o *Object, parent xpmath.Mat4, chain []*Animation)
	visit = func(o *Object, parent xpmath.Mat4, chain []*Animation) {
		world := parent.Mul(o.Matrix)
		if o.Anim.Animated() {
			chain = append(append([]*Animation(nil), chain...), o.Anim.inFrame(world.WithoutTranslation()))
		}
		if o.Kind == KindMesh || o.Kind == KindLight || o.Placement != nil {
			it := item{obj: o, world: world, chain: chain}
			if o.Kind == KindMesh && o.Mesh != nil {
				if m, err := geometry.FromHost(o.Mesh, world); err == nil {
					it.mesh = m
				}
			}
			it.key = itemKey(&it)
			out = append(out, it)
		}
		for _, ch := range o.Children {
			visit(ch, world, chain)
		}
	}
	for _, p := range c.Objects {
		visit(p, xpmath.Identity(), nil)
	}
	for _, ch := range c.Children {
		if !ch.Export {
			out = append(out, flatten(ch)...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// itemKey orders items by animation chain, kind and rough location so
// that hierarchy changes made by an export/import cycle do not matter.
func itemKey(it *item) string {
	var b strings.Builder
	for _, a := range it.chain {
		for _, t := range a.Tracks {
			fmt.Fprintf(&b, "%s/%d;", t.Dataref, len(t.Keys))
		}
		fmt.Fprintf(&b, "sh%d|", len(a.ShowHide))
	}
	c := it.world.Translation()
	if it.mesh != nil && len(it.mesh.Vertices) > 0 {
		lo, hi := it.mesh.Bounds()
		c = lo.Add(hi).Scale(0.5)
	}
	fmt.Fprintf(&b, "#%s#%.2f,%.2f,%.2f", it.obj.Kind, c.X, c.Y, c.Z)
	return b.String()
}

func near(a, b, tol float32) bool {
	return math32.Abs(a-b) <= tol
}

func nearVec(a, b xpmath.Vec3, tol float32) bool {
	return near(a.X, b.X, tol) && near(a.Y, b.Y, tol) && near(a.Z, b.Z, tol)
}

func compareItems(a, b item, tol Tolerance) []string {
	label := a.obj.Name
	var diffs []string
	add := func(format string, args ...interface{}) {
		diffs = append(diffs, label+": "+fmt.Sprintf(format, args...))
	}
	if !tol.IgnoreNames && a.obj.Name != b.obj.Name {
		add("name %q, want %q", b.obj.Name, a.obj.Name)
	}
	if a.obj.Kind != b.obj.Kind {
		add("kind %s, want %s", b.obj.Kind, a.obj.Kind)
		return diffs
	}
	if (a.obj.LOD == nil) != (b.obj.LOD == nil) || (a.obj.LOD != nil && *a.obj.LOD != *b.obj.LOD) {
		add("LOD %v, want %v", b.obj.LOD, a.obj.LOD)
	}
	diffs = append(diffs, prefixed(label, compareChains(a.chain, b.chain, tol))...)

	switch {
	case a.mesh != nil || b.mesh != nil:
		diffs = append(diffs, prefixed(label, compareMeshes(a.mesh, b.mesh, tol))...)
	default:
		if !nearVec(a.world.Translation(), b.world.Translation(), tol.Transform) {
			add("position %v, want %v", b.world.Translation(), a.world.Translation())
		}
	}
	if a.obj.Light != nil || b.obj.Light != nil {
		diffs = append(diffs, prefixed(label, compareLights(a, b, tol))...)
	}
	if (a.obj.Manip == nil) != (b.obj.Manip == nil) {
		add("manipulator presence differs")
	} else if a.obj.Manip != nil && !sameManip(a.obj.Manip, b.obj.Manip, tol.Key) {
		add("manipulator %+v, want %+v", *b.obj.Manip, *a.obj.Manip)
	}
	if (a.obj.Placement == nil) != (b.obj.Placement == nil) {
		add("placement presence differs")
	} else if a.obj.Placement != nil && *a.obj.Placement != *b.obj.Placement {
		add("placement %+v, want %+v", *b.obj.Placement, *a.obj.Placement)
	}
	return diffs
}

func prefixed(label string, diffs []string) []string {
	for i := range diffs {
		diffs[i] = label + ": " + diffs[i]
	}
	return diffs
}

func compareChains(a, b []*Animation, tol Tolerance) []string {
	if len(a) != len(b) {
		return []string{fmt.Sprintf("%d animated ancestors, want %d", len(b), len(a))}
	}
	var diffs []string
	for i := range a {
		diffs = append(diffs, compareAnimations(a[i], b[i], tol)...)
	}
	return diffs
}

func compareAnimations(a, b *Animation, tol Tolerance) []string {
	var diffs []string
	if len(a.Tracks) != len(b.Tracks) {
		return []string{fmt.Sprintf("%d tracks, want %d", len(b.Tracks), len(a.Tracks))}
	}
	for i := range a.Tracks {
		ta, tb := &a.Tracks[i], &b.Tracks[i]
		if ta.Dataref != tb.Dataref || !near(ta.Loop, tb.Loop, tol.Key) || len(ta.Keys) != len(tb.Keys) ||
			(ta.RotAxis == nil) != (tb.RotAxis == nil) {
			diffs = append(diffs, fmt.Sprintf("track %d: %s/%d keys, want %s/%d keys",
				i, tb.Dataref, len(tb.Keys), ta.Dataref, len(ta.Keys)))
			continue
		}
		if ta.RotAxis != nil && !nearVec(*ta.RotAxis, *tb.RotAxis, tol.Transform) {
			diffs = append(diffs, fmt.Sprintf("track %d: axis %v, want %v", i, *tb.RotAxis, *ta.RotAxis))
		}
		for k := range ta.Keys {
			ka, kb := ta.Keys[k], tb.Keys[k]
			if !near(ka.Value, kb.Value, tol.Key) || !near(ka.Angle, kb.Angle, tol.Key) || !nearVec(ka.Loc, kb.Loc, tol.Transform) {
				diffs = append(diffs, fmt.Sprintf("track %d key %d: %+v, want %+v", i, k, kb, ka))
			}
		}
	}
	if len(a.ShowHide) != len(b.ShowHide) {
		return append(diffs, fmt.Sprintf("%d show/hide entries, want %d", len(b.ShowHide), len(a.ShowHide)))
	}
	for i := range a.ShowHide {
		sa, sb := a.ShowHide[i], b.ShowHide[i]
		if sa.Show != sb.Show || sa.Dataref != sb.Dataref || !near(sa.V1, sb.V1, tol.Key) || !near(sa.V2, sb.V2, tol.Key) {
			diffs = append(diffs, fmt.Sprintf("show/hide %d: %+v, want %+v", i, sb, sa))
		}
	}
	return diffs
}

func sortedVertices(m *geometry.Mesh) []geometry.Vertex {
	vs := append([]geometry.Vertex(nil), m.Vertices...)
	sort.Slice(vs, func(i, j int) bool {
		a, b := vs[i], vs[j]
		for _, d := range [...]float32{a.Pos.X - b.Pos.X, a.Pos.Y - b.Pos.Y, a.Pos.Z - b.Pos.Z, a.UV.X - b.UV.X, a.UV.Y - b.UV.Y} {
			if math32.Abs(d) > 1e-3 {
				return d < 0
			}
		}
		return false
	})
	return vs
}

func compareMeshes(a, b *geometry.Mesh, tol Tolerance) []string {
	if a == nil || b == nil {
		return []string{"mesh presence differs"}
	}
	if a.TriangleCount() != b.TriangleCount() {
		return []string{fmt.Sprintf("%d triangles, want %d", b.TriangleCount(), a.TriangleCount())}
	}
	if len(a.Vertices) != len(b.Vertices) {
		return []string{fmt.Sprintf("%d vertices, want %d", len(b.Vertices), len(a.Vertices))}
	}
	va, vb := sortedVertices(a), sortedVertices(b)
	for i := range va {
		if !va[i].ApproxEqual(vb[i], tol.Position, tol.Normal) {
			return []string{fmt.Sprintf("vertex %d: %+v, want %+v", i, vb[i], va[i])}
		}
	}
	return nil
}

func compareLights(a, b item, tol Tolerance) []string {
	la, lb := a.obj.Light, b.obj.Light
	if la == nil || lb == nil {
		return []string{"light presence differs"}
	}
	var diffs []string
	if la.Type != lb.Type || la.Name != lb.Name || la.Dataref != lb.Dataref || la.Params != lb.Params {
		diffs = append(diffs, fmt.Sprintf("light %s %q, want %s %q", lb.Type, lb.Name, la.Type, la.Name))
	}
	for i := range la.Color {
		if !near(la.Color[i], lb.Color[i], tol.Key) || !near(la.UV[i], lb.UV[i], tol.Key) {
			diffs = append(diffs, fmt.Sprintf("light color/uv %v %v, want %v %v", lb.Color, lb.UV, la.Color, la.UV))
			break
		}
	}
	for _, pair := range [][2]float32{{la.Size, lb.Size}, {la.Semi, lb.Semi}, {la.Cone, lb.Cone}, {la.Intensity, lb.Intensity}} {
		if !near(pair[0], pair[1], tol.Key) {
			diffs = append(diffs, fmt.Sprintf("light parameters %+v, want %+v", *lb, *la))
			break
		}
	}
	da := a.world.TransformDirection(la.Dir)
	db := b.world.TransformDirection(lb.Dir)
	if da.Length() > 0 {
		da = da.Normalize()
	}
	if db.Length() > 0 {
		db = db.Normalize()
	}
	if !nearVec(da, db, tol.Normal) {
		diffs = append(diffs, fmt.Sprintf("light direction %v, want %v", db, da))
	}
	return diffs
}

func sameManip(a, b *formats.Manipulator, tol float32) bool {
	if a.Kind != b.Kind || a.Cursor != b.Cursor || a.Tooltip != b.Tooltip || a.Raw != b.Raw ||
		len(a.Values) != len(b.Values) || len(a.Datarefs) != len(b.Datarefs) || len(a.Commands) != len(b.Commands) {
		return false
	}
	for i := range a.Values {
		if !near(a.Values[i], b.Values[i], tol) {
			return false
		}
	}
	for i := range a.Datarefs {
		if a.Datarefs[i] != b.Datarefs[i] {
			return false
		}
	}
	for i := range a.Commands {
		if a.Commands[i] != b.Commands[i] {
			return false
		}
	}
	return nearVec(a.Axis, b.Axis, tol) && near(a.Wheel, b.Wheel, tol)
}
