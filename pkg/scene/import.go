package scene

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/formats"
	"github.com/Faultbox/xplane-assets/pkg/geometry"
	"github.com/Faultbox/xplane-assets/pkg/material"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// LayerSpacing is the height between imported line layers and polygon
// subtextures, which keeps their order recoverable.
const LayerSpacing = 0.01

// Import decodes the asset at path and appends it to s as a new exported
// root collection named after the file.
func Import(s *Scene, path string, log *zap.Logger) (*Collection, error) {
	asset, err := formats.Decode(path, log)
	if err != nil {
		return nil, err
	}
	name := baseName(path)
	var c *Collection
	switch a := asset.(type) {
	case *formats.Object:
		s.fromAssetPaths(&a.Material, path)
		s.fromAssetPaths(&a.Draped, path)
		c = ImportObject(s, a, name)
	case *formats.LinePaint:
		s.fromAssetPaths(&a.Material, path)
		c = ImportLine(s, a, name)
	case *formats.Polygon:
		s.fromAssetPaths(&a.Material, path)
		c = ImportPolygon(s, a, name)
	case *formats.Facade:
		s.fromAssetPaths(&a.Wall, path)
		if a.Roof != nil {
			s.fromAssetPaths(a.Roof, path)
		}
		c = ImportFacade(s, a, name)
	case *formats.Autogen:
		s.fromAssetPaths(&a.Material, path)
		c = ImportAutogen(s, a, name)
	default:
		return nil, xperr.Format(0, "%s: unsupported asset %T", path, asset)
	}
	c.File = filepath.Base(path)
	s.Collections = append(s.Collections, c)
	return c, nil
}

// namer hands out numbered object names.
type namer map[string]int

func (n namer) next(prefix string) string {
	n[prefix]++
	if n[prefix] == 1 {
		return prefix
	}
	return fmt.Sprintf("%s.%03d", prefix, n[prefix]-1)
}

type objImporter struct {
	scene    *Scene
	obj      *formats.Object
	base     string
	draped   string
	variants map[variantKey]string
	names    namer
}

type variantKey struct {
	from  string
	state material.State
}

// ImportObject converts a decoded .obj into a collection. Each ANIM_begin
// level becomes an object carrying its animation; a level with a single
// draw call and no lights collapses into that mesh object. A leading static
// translation becomes the object transform.
func ImportObject(s *Scene, o *formats.Object, name string) *Collection {
	im := &objImporter{scene: s, obj: o, variants: make(map[variantKey]string), names: make(namer)}
	base := o.Material
	im.base = s.AddMaterial(name, &base)
	c := &Collection{Name: name, Export: true, Type: ExportOBJ, Object: &ObjectSettings{Globals: o.Globals}}
	if o.Draped.Albedo != "" {
		d := o.Draped
		d.Draped = true
		im.draped = s.AddMaterial(name+"_draped", &d)
		c.Object.Draped = im.draped
	}
	if o.Root == nil {
		return c
	}
	if len(o.Root.Actions) > 0 {
		c.Objects = []*Object{im.level(o.Root)}
	} else {
		c.Objects = im.content(o.Root)
	}
	return c
}

func (im *objImporter) content(l *formats.AnimLevel) []*Object {
	var out []*Object
	for i := range l.DrawCalls {
		out = append(out, im.drawCall(&l.DrawCalls[i]))
	}
	for i := range l.Lights {
		out = append(out, im.light(&l.Lights[i]))
	}
	for _, ch := range l.Children {
		out = append(out, im.level(ch))
	}
	return out
}

func (im *objImporter) level(l *formats.AnimLevel) *Object {
	actions := l.Actions
	matrix := xpmath.Identity()
	if len(actions) > 0 {
		if lk, ok := actions[0].(formats.LocKeyframe); ok {
			matrix = xpmath.Translate(lk.Offset.X, lk.Offset.Y, lk.Offset.Z)
			actions = actions[1:]
		}
	}
	anim := AnimationFrom(actions)
	if !anim.Animated() {
		anim = nil
	}
	if len(l.DrawCalls) == 1 && len(l.Lights) == 0 {
		obj := im.drawCall(&l.DrawCalls[0])
		obj.Matrix, obj.Anim = matrix, anim
		for _, ch := range l.Children {
			obj.Children = append(obj.Children, im.level(ch))
		}
		return obj
	}
	obj := NewObject(im.names.next("Empty"), KindEmpty)
	obj.Matrix, obj.Anim = matrix, anim
	obj.Children = im.content(l)
	return obj
}

func (im *objImporter) lod(r *formats.LODRange, bucket int) *formats.LODRange {
	if r != nil {
		cp := *r
		return &cp
	}
	if bucket >= 0 && bucket < len(im.obj.LODBuckets) {
		cp := im.obj.LODBuckets[bucket]
		return &cp
	}
	return nil
}

// materialFor returns the scene material of a draw call, registering a
// variant of the base material when the draw call's state differs.
func (im *objImporter) materialFor(dc *formats.DrawCall) string {
	from := im.base
	if dc.State.Draped && im.draped != "" {
		from = im.draped
	}
	src := im.scene.Materials[from]
	want := dc.State
	if want.Surface == "" {
		want.Surface = material.SurfaceNone
	}
	if src.State() == want {
		return from
	}
	key := variantKey{from: from, state: want}
	if name, ok := im.variants[key]; ok {
		return name
	}
	v := *src
	v.ApplyState(want)
	name := im.scene.AddMaterial(from, &v)
	im.variants[key] = name
	return name
}

func (im *objImporter) drawCall(dc *formats.DrawCall) *Object {
	obj := NewObject(im.names.next("Mesh"), KindMesh)
	obj.Mesh = im.obj.Mesh(dc).ToHost()
	obj.Material = im.materialFor(dc)
	obj.LOD = im.lod(dc.LOD, dc.Bucket)
	if dc.Manip != nil {
		m := *dc.Manip
		obj.Manip = &m
	}
	return obj
}

func (im *objImporter) light(l *formats.Light) *Object {
	obj := NewObject(im.names.next("Light"), KindLight)
	obj.Matrix = xpmath.Translate(l.Pos.X, l.Pos.Y, l.Pos.Z)
	obj.Light = &Light{
		Type: l.Kind, Name: l.Name, Color: l.Color, Size: l.Size, UV: l.UV, Dir: l.Dir,
		Semi: l.Semi, Cone: l.Cone, Intensity: l.Intensity, Dataref: l.Dataref, Params: l.Tail,
	}
	obj.LOD = im.lod(l.LOD, l.Bucket)
	return obj
}

func flatQuad(x0, y0, x1, y1, z float32, uv0, uv1 xpmath.Vec2) *geometry.HostMesh {
	return geometry.Quad(
		[4]xpmath.Vec3{{X: x0, Y: y0, Z: z}, {X: x1, Y: y0, Z: z}, {X: x1, Y: y1, Z: z}, {X: x0, Y: y1, Z: z}},
		[4]xpmath.Vec2{{X: uv0.X, Y: uv0.Y}, {X: uv1.X, Y: uv0.Y}, {X: uv1.X, Y: uv1.Y}, {X: uv0.X, Y: uv1.Y}},
	)
}

// polygonMesh builds a single n-gon facing +Z, reordering the points
// counter-clockwise when needed.
func polygonMesh(pts []xpmath.Vec3, uvs []xpmath.Vec2) *geometry.HostMesh {
	pts = append([]xpmath.Vec3(nil), pts...)
	uvs = append([]xpmath.Vec2(nil), uvs...)
	if signedArea(pts) < 0 {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
			uvs[i], uvs[j] = uvs[j], uvs[i]
		}
	}
	h := &geometry.HostMesh{Positions: pts}
	poly := make([]int, len(pts))
	for i := range pts {
		poly[i] = i
		h.Loops = append(h.Loops, geometry.Loop{Vert: i, Normal: xpmath.Vec3{Z: 1}, UV: uvs[i]})
	}
	h.Polys = [][]int{poly}
	return h
}

func meshObject(name, mat, role string, mesh *geometry.HostMesh) *Object {
	obj := NewObject(name, KindMesh)
	obj.Mesh, obj.Material = mesh, mat
	if role != "" {
		obj.SetProp(PropRole, role)
	}
	return obj
}

func setCenter(obj *Object, l, c, r float32) {
	if c != (l+r)/2 {
		obj.SetProp(PropCenter, strconv.FormatFloat(float64(c), 'g', -1, 32))
	}
}

// ImportLine converts a decoded .lin into a collection: one quad per
// segment layer, stacked LayerSpacing apart, with caps before the start and
// after the end of their layer.
func ImportLine(s *Scene, l *formats.LinePaint, name string) *Collection {
	m := l.Material
	mat := s.AddMaterial(name, &m)
	c := &Collection{Name: name, Export: true, Type: ExportLIN, Line: &LineSettings{Mirror: l.Mirror, TexWidth: l.TexWidth}}
	sx, sy := l.ScaleX, l.ScaleY
	for _, sg := range l.Segments {
		z := float32(sg.Layer) * LayerSpacing
		q := flatQuad((sg.Left-sg.Center)*sx, 0, (sg.Right-sg.Center)*sx, sy, z,
			xpmath.Vec2{X: sg.Left, Y: 0}, xpmath.Vec2{X: sg.Right, Y: 1})
		obj := meshObject(fmt.Sprintf("segment_%d", sg.Layer), mat, RoleSegment, q)
		setCenter(obj, sg.Left, sg.Center, sg.Right)
		c.Objects = append(c.Objects, obj)
	}
	for _, cp := range l.Caps {
		z := float32(cp.Layer) * LayerSpacing
		length := (cp.Top - cp.Bottom) * sy
		y0, role, label := -length, RoleStartCap, "start"
		if cp.Kind == formats.EndCap {
			y0, role, label = sy, RoleEndCap, "end"
		}
		q := flatQuad((cp.Left-cp.Center)*sx, y0, (cp.Right-cp.Center)*sx, y0+length, z,
			xpmath.Vec2{X: cp.Left, Y: cp.Bottom}, xpmath.Vec2{X: cp.Right, Y: cp.Top})
		obj := meshObject(fmt.Sprintf("%s_cap_%d", label, cp.Layer), mat, role, q)
		setCenter(obj, cp.Left, cp.Center, cp.Right)
		c.Objects = append(c.Objects, obj)
	}
	return c
}

// ImportPolygon converts a decoded .pol into a collection: a base quad one
// texture repeat in size and one quad per subtexture at its place on the
// texture.
func ImportPolygon(s *Scene, p *formats.Polygon, name string) *Collection {
	m := p.Material
	mat := s.AddMaterial(name, &m)
	c := &Collection{Name: name, Export: true, Type: ExportPOL, Polygon: &PolygonSettings{
		LoadCenter: p.LoadCenter, TextureTile: p.TextureTile, RunwayMarkings: p.RunwayMarkings,
	}}
	sx, sy := p.ScaleX, p.ScaleY
	c.Objects = append(c.Objects, meshObject("base", mat, RoleBase,
		flatQuad(0, 0, sx, sy, 0, xpmath.Vec2{}, xpmath.Vec2{X: 1, Y: 1})))
	for i, r := range p.Subtextures {
		q := flatQuad(r.Left*sx, r.Bottom*sy, r.Right*sx, r.Top*sy, float32(i+1)*LayerSpacing,
			xpmath.Vec2{X: r.Left, Y: r.Bottom}, xpmath.Vec2{X: r.Right, Y: r.Top})
		c.Objects = append(c.Objects, meshObject(fmt.Sprintf("subtexture_%d", i), mat, RoleSubtexture, q))
	}
	return c
}

func placementObject(name string, pl Placement, matrix xpmath.Mat4) *Object {
	obj := NewObject(name, KindEmpty)
	obj.Matrix = matrix
	obj.Placement = &pl
	return obj
}

func resource(table []string, i int) string {
	if i < 0 || i >= len(table) {
		return ""
	}
	return table[i]
}

func sameMeshes(a, b []*formats.FacadeMesh) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Group != b[i].Group || a[i].FarLOD != b[i].FarLOD ||
			len(a[i].Vertices) != len(b[i].Vertices) || len(a[i].Indices) != len(b[i].Indices) {
			return false
		}
		for k := range a[i].Vertices {
			if a[i].Vertices[k] != b[i].Vertices[k] {
				return false
			}
		}
		for k := range a[i].Indices {
			if a[i].Indices[k] != b[i].Indices[k] {
				return false
			}
		}
	}
	return true
}

// ImportFacade converts a decoded .fac into a facade collection with one
// child collection per floor and one per segment. A curved segment that
// differs from its straight counterpart gets its own X_Curved collection.
// Roof heights become flat roof quads.
func ImportFacade(s *Scene, f *formats.Facade, name string) *Collection {
	wall := f.Wall
	set := &FacadeSettings{
		Graded: f.Graded, Ring: f.Ring, RoofScaleX: f.RoofScaleX, RoofScaleY: f.RoofScaleY,
		Wall: s.AddMaterial(name+"_wall", &wall),
	}
	if f.Roof != nil {
		roof := *f.Roof
		set.Roof = s.AddMaterial(name+"_roof", &roof)
	}
	c := &Collection{Name: name, Export: true, Type: ExportFAC, Facade: set}
	for _, fl := range f.Floors {
		c.Children = append(c.Children, importFloor(fl, f.RoofHeights, f.Objects, set))
	}
	return c
}

func importFloor(fl *formats.Floor, defaultRoofs []float32, objects []string, set *FacadeSettings) *Collection {
	fc := &Collection{Name: fl.Name, Floor: &FloorSettings{RoofTwoSided: fl.RoofTwoSided}}
	roofs := fl.RoofHeights
	if len(roofs) == 0 {
		roofs = defaultRoofs
	}
	for i, h := range roofs {
		fc.Objects = append(fc.Objects, meshObject(fmt.Sprintf("roof_%d", i), set.Roof, RoleRoof,
			flatQuad(0, 0, 1, 1, h, xpmath.Vec2{}, xpmath.Vec2{X: 1, Y: 1})))
	}
	for i, ro := range fl.RoofObjs {
		fc.Objects = append(fc.Objects, placementObject(fmt.Sprintf("roof_obj_%d", i),
			Placement{Mode: PlaceGraded, Resource: resource(objects, ro.Index), ShowLo: ro.ShowLo, ShowHi: ro.ShowHi},
			PlacementMatrix(xpmath.Vec3{X: ro.X, Y: ro.Y}, ro.Heading)))
	}

	var indices []int
	seen := make(map[int]bool)
	for _, sg := range fl.Segments {
		if !seen[sg.Index] {
			seen[sg.Index] = true
			indices = append(indices, sg.Index)
		}
	}
	sort.Ints(indices)
	names := make(map[int]string)
	for _, i := range indices {
		straight, curved := fl.Segment(i, false), fl.Segment(i, true)
		if straight == nil {
			straight, curved = curved, nil
		}
		segName := fmt.Sprintf("segment_%d", i)
		names[i] = segName
		fc.Children = append(fc.Children, importSegment(segName, straight, objects, set.Wall))
		if curved != nil && (!sameMeshes(straight.Meshes, curved.Meshes) ||
			len(straight.Attachments) != len(curved.Attachments)) {
			fc.Children = append(fc.Children, importSegment(segName+CurvedSuffix, curved, objects, set.Wall))
		}
	}

	for _, w := range fl.Walls {
		ws := WallSettings{
			Name: w.Name, MinLength: w.MinLength, MaxLength: w.MaxLength,
			MinHeading: w.MinHeading, MaxHeading: w.MaxHeading,
		}
		for _, sp := range w.Spellings {
			var spelled []string
			for _, i := range sp {
				spelled = append(spelled, names[i])
			}
			ws.Spellings = append(ws.Spellings, spelled)
		}
		fc.Floor.Walls = append(fc.Floor.Walls, ws)
	}
	return fc
}

func importSegment(name string, sg *formats.FacadeSegment, objects []string, mat string) *Collection {
	sc := &Collection{Name: name}
	for i, fm := range sg.Meshes {
		obj := meshObject(fmt.Sprintf("%s_mesh_%d", name, i), mat, "", fm.Mesh.ToHost())
		obj.LOD = &formats.LODRange{Far: fm.FarLOD}
		if fm.Group != 0 {
			obj.SetProp(PropGroup, strconv.Itoa(fm.Group))
		}
		sc.Objects = append(sc.Objects, obj)
	}
	for i, a := range sg.Attachments {
		mode := PlaceGraded
		if a.Draped {
			mode = PlaceDraped
		}
		pl := Placement{Mode: mode, Resource: resource(objects, a.Index)}
		if a.HasShow {
			pl.ShowLo, pl.ShowHi = a.ShowLo, a.ShowHi
		}
		sc.Objects = append(sc.Objects, placementObject(fmt.Sprintf("%s_attach_%d", name, i), pl,
			PlacementMatrix(a.Pos, a.Heading)))
	}
	return sc
}

var agpModes = map[formats.AgpObjectKind]PlacementMode{
	formats.ObjDelta:   PlaceDelta,
	formats.ObjDraped:  PlaceDraped,
	formats.ObjGraded:  PlaceGraded,
	formats.ObjScraper: PlaceScraper,
}

// ImportAutogen converts a decoded .agp into a collection with one child
// collection per tile. Pixels map to meters through TEXTURE_WIDTH, the
// meters covered by the full page.
func ImportAutogen(s *Scene, a *formats.Autogen, name string) *Collection {
	m := a.Material
	mat := s.AddMaterial(name, &m)
	c := &Collection{Name: name, Export: true, Type: ExportAGP, Autogen: &AutogenSettings{
		TextureScaleX: a.TextureScaleX, TextureScaleY: a.TextureScaleY,
		TextureWidth: a.TextureWidth, TextureTile: a.TextureTile,
	}}
	ratio := float32(1)
	if a.TextureWidth > 0 {
		ratio = formats.AgpPage / a.TextureWidth
	}
	for i, t := range a.Tiles {
		c.Children = append(c.Children, importTile(fmt.Sprintf("tile_%d", i), t, a, mat, ratio))
	}
	return c
}

func importTile(name string, t *formats.AgpTile, a *formats.Autogen, mat string, ratio float32) *Collection {
	tc := &Collection{Name: name, Tile: &TileSettings{Rotation: t.Rotation}}
	tr := formats.AgpTransform{XRatio: ratio, YRatio: ratio, AnchorX: t.Anchor.X, AnchorY: t.Anchor.Y}
	at := func(px xpmath.Vec2, z float32) xpmath.Vec3 {
		p := tr.ToScene(px)
		return xpmath.Vec3{X: p.X, Y: p.Y, Z: z}
	}
	uv := func(px xpmath.Vec2) xpmath.Vec2 {
		return xpmath.Vec2{X: px.X / formats.AgpPage, Y: px.Y / formats.AgpPage}
	}
	ngon := func(pts []xpmath.Vec2) *geometry.HostMesh {
		pos := make([]xpmath.Vec3, len(pts))
		uvs := make([]xpmath.Vec2, len(pts))
		for i, p := range pts {
			pos[i], uvs[i] = at(p, 0), uv(p)
		}
		return polygonMesh(pos, uvs)
	}

	lo, hi := at(xpmath.Vec2{X: t.S1, Y: t.T1}, 0), at(xpmath.Vec2{X: t.S2, Y: t.T2}, 0)
	tc.Objects = append(tc.Objects, meshObject(name+"_base", mat, RoleBase,
		flatQuad(lo.X, lo.Y, hi.X, hi.Y, 0, uv(xpmath.Vec2{X: t.S1, Y: t.T1}), uv(xpmath.Vec2{X: t.S2, Y: t.T2}))))

	for i, crop := range t.Crops {
		if len(crop) < 3 {
			continue
		}
		tc.Objects = append(tc.Objects, meshObject(fmt.Sprintf("%s_crop_%d", name, i), mat, RoleCrop, ngon(crop)))
	}
	for i, f := range t.Facades {
		obj := meshObject(fmt.Sprintf("%s_facade_%d", name, i), mat, "", ngon(f.Points))
		obj.Placement = &Placement{Mode: PlaceFacade, Resource: resource(a.Facades, f.Index), Height: f.Height}
		tc.Objects = append(tc.Objects, obj)
	}
	for i, tree := range t.Trees {
		p := at(xpmath.Vec2{X: tree.X, Y: tree.Y}, 0)
		tc.Objects = append(tc.Objects, placementObject(fmt.Sprintf("%s_tree_%d", name, i),
			Placement{Mode: PlaceTree, Height: tree.Height, Width: tree.Width, Layer: tree.Layer},
			xpmath.Translate(p.X, p.Y, 0)))
	}
	for i, tl := range t.TreeLines {
		obj := placementObject(fmt.Sprintf("%s_tree_line_%d", name, i),
			Placement{Mode: PlaceTreeLine, Layer: tl.Layer}, xpmath.Identity())
		obj.Mesh = &geometry.HostMesh{Positions: []xpmath.Vec3{
			at(xpmath.Vec2{X: tl.X1, Y: tl.Y1}, 0), at(xpmath.Vec2{X: tl.X2, Y: tl.Y2}, 0),
		}}
		tc.Objects = append(tc.Objects, obj)
	}
	for i, o := range t.Objects {
		tc.Objects = append(tc.Objects, placementObject(fmt.Sprintf("%s_obj_%d", name, i),
			Placement{Mode: agpModes[o.Kind], Resource: resource(a.Objects, o.Index), ShowLo: o.ShowLo, ShowHi: o.ShowHi},
			PlacementMatrix(at(xpmath.Vec2{X: o.X, Y: o.Y}, o.Z), o.Heading)))
	}
	return tc
}
