package scene

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/formats"
	"github.com/Faultbox/xplane-assets/pkg/geometry"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

var agpKinds = map[PlacementMode]formats.AgpObjectKind{
	PlaceDelta:   formats.ObjDelta,
	PlaceDraped:  formats.ObjDraped,
	PlaceGraded:  formats.ObjGraded,
	PlaceScraper: formats.ObjScraper,
}

// SplitName is the file name of the part of an auto-split object that uses
// material mat.
func SplitName(agp, obj, mat string) string {
	return fmt.Sprintf("%s_PT_%s_%s.obj", agp, obj, mat)
}

type agpExporter struct {
	scene   *Scene
	name    string
	agp     *formats.Autogen
	facades resourceTable
	objects resourceTable
	splits  map[string]*formats.Object
	log     *zap.Logger
}

// ExportAutogen builds the .agp of collection c and the .obj files of its
// auto-split objects, keyed by file name. Child collections with tile
// settings are tiles; a collection without any is a single tile itself.
// Every tile needs a base mesh whose UVs place it on the page.
func ExportAutogen(s *Scene, c *Collection, log *zap.Logger) (*formats.Autogen, map[string]*formats.Object, error) {
	log = nopIfNil(log)
	base, err := Propagate(s, c, log)
	if err != nil {
		return nil, nil, err
	}
	e := &agpExporter{
		scene:  s,
		name:   baseName(c.FileName()),
		agp:    &formats.Autogen{Material: *base},
		splits: make(map[string]*formats.Object),
		log:    log,
	}
	e.agp.Material.Name = ""
	if st := c.Autogen; st != nil {
		e.agp.TextureScaleX, e.agp.TextureScaleY = st.TextureScaleX, st.TextureScaleY
		e.agp.TextureWidth = st.TextureWidth
		e.agp.TextureTile = st.TextureTile
	}

	var tiles []*Collection
	for _, ch := range c.Children {
		if ch.Tile != nil {
			tiles = append(tiles, ch)
		}
	}
	if len(tiles) == 0 {
		tiles = []*Collection{c}
	}
	for _, tc := range tiles {
		if err := e.tile(tc); err != nil {
			return nil, nil, err
		}
	}
	e.agp.Facades, e.agp.Objects = e.facades.paths, e.objects.paths
	if err := e.agp.Validate(); err != nil {
		return nil, nil, err
	}
	return e.agp, e.splits, nil
}

func findBase(placed []Placed) (Placed, bool) {
	for _, p := range placed {
		if p.Object.Kind == KindMesh && p.Object.Role() == RoleBase {
			return p, true
		}
	}
	return Placed{}, false
}

func (e *agpExporter) tile(tc *Collection) error {
	var placed []Placed
	for _, obj := range tc.Objects {
		obj.Walk(func(o *Object, world xpmath.Mat4) {
			placed = append(placed, Placed{Object: o, World: world})
		}, xpmath.Identity())
	}
	bp, ok := findBase(placed)
	if !ok {
		return xperr.Reference("tile %q: base mesh missing", tc.Name)
	}
	bm, err := worldMesh(bp)
	if err != nil {
		return err
	}
	lo, hi := bm.Bounds()
	uvLo, uvHi := bm.UVBounds()
	w, h := hi.X-lo.X, hi.Y-lo.Y
	if w == 0 || h == 0 {
		return xperr.Invariant("tile %q: base mesh has zero size", tc.Name)
	}
	rx := (uvHi.X - uvLo.X) * formats.AgpPage / w
	ry := (uvHi.Y - uvLo.Y) * formats.AgpPage / h
	anchor := xpmath.Vec2{X: uvLo.X*formats.AgpPage - rx*lo.X, Y: uvLo.Y*formats.AgpPage - ry*lo.Y}
	tr, err := formats.NewAgpTransform(w, h, uvLo, uvHi, anchor)
	if err != nil {
		return xperr.Invariant("tile %q: %v", tc.Name, err)
	}
	if e.agp.TextureWidth == 0 && tr.XRatio != 0 {
		e.agp.TextureWidth = formats.AgpPage / tr.XRatio
	}

	t := &formats.AgpTile{
		S1: uvLo.X * formats.AgpPage, T1: uvLo.Y * formats.AgpPage,
		S2: uvHi.X * formats.AgpPage, T2: uvHi.Y * formats.AgpPage,
		Anchor: anchor,
	}
	if tc.Tile != nil {
		t.Rotation = tc.Tile.Rotation
	}
	pixel := func(p xpmath.Vec3) xpmath.Vec2 { return tr.ToPixel(p.XY()) }

	for _, p := range placed {
		o := p.Object
		if o == bp.Object {
			continue
		}
		if _, split := o.Prop(PropAutoSplit); split && o.Kind == KindMesh {
			if err := e.split(t, p, pixel); err != nil {
				return err
			}
			continue
		}
		switch {
		case o.Placement != nil:
			if err := e.placement(t, p, pixel); err != nil {
				return err
			}
		case o.Kind == KindMesh && o.Role() == RoleCrop:
			pts, err := perimeterPixels(p, pixel)
			if err != nil {
				return err
			}
			if len(pts) < 3 {
				e.log.Warn("crop polygon with fewer than 3 points dropped", zap.String("object", o.Name))
				continue
			}
			t.Crops = append(t.Crops, pts)
		case o.Kind == KindMesh:
			e.log.Warn("mesh ignored in autogen tile", zap.String("tile", tc.Name), zap.String("object", o.Name))
		}
	}
	e.agp.Tiles = append(e.agp.Tiles, t)
	return nil
}

func perimeterPixels(p Placed, pixel func(xpmath.Vec3) xpmath.Vec2) ([]xpmath.Vec2, error) {
	m, err := worldMesh(p)
	if err != nil {
		return nil, err
	}
	loop, err := Perimeter(m)
	if err != nil {
		return nil, xperr.Invariant("object %q: %v", p.Object.Name, err)
	}
	out := make([]xpmath.Vec2, len(loop))
	for i, v := range loop {
		out[i] = pixel(v)
	}
	return out, nil
}

func (e *agpExporter) placement(t *formats.AgpTile, p Placed, pixel func(xpmath.Vec3) xpmath.Vec2) error {
	pl := p.Object.Placement
	pos := p.World.Translation()
	switch pl.Mode {
	case PlaceFacade:
		pts, err := perimeterPixels(p, pixel)
		if err != nil {
			return err
		}
		t.Facades = append(t.Facades, formats.AgpFacade{
			Index: e.facades.add(pl.Resource), Height: pl.Height, Points: pts,
		})
	case PlaceTree:
		px := pixel(pos)
		t.Trees = append(t.Trees, formats.AgpTree{X: px.X, Y: px.Y, Height: pl.Height, Width: pl.Width, Layer: pl.Layer})
	case PlaceTreeLine:
		m := p.Object.Mesh
		if m == nil || len(m.Positions) < 2 {
			return xperr.Invariant("object %q: tree line needs two points", p.Object.Name)
		}
		a := pixel(p.World.TransformPoint(m.Positions[0]))
		b := pixel(p.World.TransformPoint(m.Positions[1]))
		t.TreeLines = append(t.TreeLines, formats.AgpTreeLine{X1: a.X, Y1: a.Y, X2: b.X, Y2: b.Y, Layer: pl.Layer})
	default:
		kind, ok := agpKinds[pl.Mode]
		if !ok {
			return xperr.Invariant("object %q: placement mode %q not valid in autogen", p.Object.Name, pl.Mode)
		}
		px := pixel(pos)
		t.Objects = append(t.Objects, formats.AgpObject{
			Kind: kind, X: px.X, Y: px.Y, Heading: Heading(p.World), Z: pos.Z,
			Index: e.objects.add(pl.Resource), ShowLo: pl.ShowLo, ShowHi: pl.ShowHi,
		})
	}
	return nil
}

// split writes one .obj per material of an auto-split object and places
// each with OBJ_DELTA at the object's position and heading.
func (e *agpExporter) split(t *formats.AgpTile, p Placed, pixel func(xpmath.Vec3) xpmath.Vec2) error {
	o := p.Object
	if o.Mesh == nil {
		return xperr.Reference("object %q: mesh missing", o.Name)
	}
	heading := Heading(p.World)
	pos := p.World.Translation()
	local := xpmath.RotateZ(xpmath.Rad(heading)).Mul(p.World.WithoutTranslation())
	px := pixel(pos)
	for _, part := range splitByMaterial(o) {
		name := SplitName(e.name, o.Name, part.material)
		piece := &Object{Name: o.Name, Kind: KindMesh, Matrix: local, Mesh: part.mesh, Material: part.material}
		obj, err := ExportObject(e.scene, &Collection{Name: name, Type: ExportOBJ, Objects: []*Object{piece}}, e.log)
		if err != nil {
			return err
		}
		e.splits[name] = obj
		t.Objects = append(t.Objects, formats.AgpObject{
			Kind: formats.ObjDelta, X: px.X, Y: px.Y, Heading: heading, Z: pos.Z,
			Index: e.objects.add(name),
		})
	}
	return nil
}

type materialPart struct {
	material string
	mesh     *geometry.HostMesh
}

// splitByMaterial partitions the polygons of o by material in first-use
// order. Positions and loops are shared; only the polygon lists differ.
func splitByMaterial(o *Object) []materialPart {
	if len(o.Materials) == 0 {
		return []materialPart{{material: o.Material, mesh: o.Mesh}}
	}
	var parts []materialPart
	at := make(map[int]int)
	for i, poly := range o.Mesh.Polys {
		mi := 0
		if i < len(o.PolyMaterials) {
			mi = o.PolyMaterials[i]
		}
		if mi < 0 || mi >= len(o.Materials) {
			mi = 0
		}
		k, ok := at[mi]
		if !ok {
			k = len(parts)
			at[mi] = k
			parts = append(parts, materialPart{
				material: o.Materials[mi],
				mesh:     &geometry.HostMesh{Positions: o.Mesh.Positions, Loops: o.Mesh.Loops},
			})
		}
		parts[k].mesh.Polys = append(parts[k].mesh.Polys, poly)
	}
	return parts
}
