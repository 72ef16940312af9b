package scene

import (
	"sort"
	"strconv"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/formats"
	"github.com/Faultbox/xplane-assets/pkg/geometry"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// PropCenter overrides the S center of a line segment or cap, as a UV
// fraction. Without it the center is midway between left and right.
const PropCenter = "s_center"

// worldMesh triangulates the mesh of a placed object in world space.
func worldMesh(p Placed) (*geometry.Mesh, error) {
	if p.Object.Mesh == nil {
		return nil, xperr.Reference("object %q: mesh missing", p.Object.Name)
	}
	m, err := geometry.FromHost(p.Object.Mesh, p.World)
	if err != nil {
		return nil, xperr.Invariant("object %q: %v", p.Object.Name, err)
	}
	if len(m.Vertices) == 0 {
		return nil, xperr.Invariant("object %q: mesh is empty", p.Object.Name)
	}
	return m, nil
}

// uvScale returns the meters covered by one full texture repeat along X and
// Y, from the bounding box and UV range of m.
func uvScale(name string, m *geometry.Mesh) ([2]float32, error) {
	lo, hi := m.Bounds()
	uvLo, uvHi := m.UVBounds()
	du, dv := uvHi.X-uvLo.X, uvHi.Y-uvLo.Y
	if du == 0 || dv == 0 {
		return [2]float32{}, xperr.Invariant("object %q: UV range is degenerate", name)
	}
	return [2]float32{(hi.X - lo.X) / du, (hi.Y - lo.Y) / dv}, nil
}

type linePart struct {
	obj    *Object
	z      float32
	uvLo   xpmath.Vec2
	uvHi   xpmath.Vec2
	center float32
}

func newLinePart(p Placed, m *geometry.Mesh) linePart {
	lo, _ := m.Bounds()
	uvLo, uvHi := m.UVBounds()
	lp := linePart{obj: p.Object, z: lo.Z, uvLo: uvLo, uvHi: uvHi, center: (uvLo.X + uvHi.X) / 2}
	if v, ok := p.Object.Props[PropCenter]; ok {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			lp.center = float32(f)
		}
	}
	return lp
}

// ExportLine builds the .lin of collection c. Segment meshes are ordered
// into layers by height; each cap binds to the segment layer nearest to it
// in Z.
func ExportLine(s *Scene, c *Collection, log *zap.Logger) (*formats.LinePaint, error) {
	log = nopIfNil(log)
	base, err := Propagate(s, c, log)
	if err != nil {
		return nil, err
	}
	l := &formats.LinePaint{Material: *base, TexWidth: formats.DefaultTexWidth}
	l.Material.Name = ""
	if c.Line != nil {
		l.Mirror = c.Line.Mirror
		if c.Line.TexWidth > 0 {
			l.TexWidth = c.Line.TexWidth
		}
	}

	var segs, caps []linePart
	var scales [][2]float32
	for _, p := range c.AllObjects() {
		if p.Object.Kind != KindMesh {
			continue
		}
		m, err := worldMesh(p)
		if err != nil {
			return nil, err
		}
		part := newLinePart(p, m)
		switch p.Object.Role() {
		case RoleStartCap, RoleEndCap:
			caps = append(caps, part)
		case "", RoleSegment:
			sc, err := uvScale(p.Object.Name, m)
			if err != nil {
				return nil, err
			}
			scales = append(scales, sc)
			segs = append(segs, part)
		default:
			log.Warn("mesh role not used by lines", zap.String("object", p.Object.Name), zap.String("role", p.Object.Role()))
		}
	}
	if len(segs) == 0 {
		return nil, xperr.Invariant("collection %q: line has no segment", c.Name)
	}
	if l.ScaleX, l.ScaleY, err = formats.ReconcileScale(scales); err != nil {
		return nil, xperr.Invariant("collection %q: %v", c.Name, err)
	}

	sort.SliceStable(segs, func(i, j int) bool { return segs[i].z < segs[j].z })
	for i, sg := range segs {
		l.Segments = append(l.Segments, formats.LineSegment{
			Layer: i, Left: sg.uvLo.X, Center: sg.center, Right: sg.uvHi.X,
		})
	}

	type capKey struct {
		kind  formats.CapKind
		layer int
	}
	seen := make(map[capKey]bool)
	for _, cp := range caps {
		layer, best := 0, math32.Inf(1)
		for i, sg := range segs {
			if d := math32.Abs(sg.z - cp.z); d < best {
				layer, best = i, d
			}
		}
		kind := formats.StartCap
		if cp.obj.Role() == RoleEndCap {
			kind = formats.EndCap
		}
		if seen[capKey{kind, layer}] {
			log.Warn("duplicate cap dropped", zap.String("object", cp.obj.Name), zap.Int("layer", layer))
			continue
		}
		seen[capKey{kind, layer}] = true
		l.Caps = append(l.Caps, formats.LineCap{
			Kind: kind, Layer: layer,
			Left: cp.uvLo.X, Center: cp.center, Right: cp.uvHi.X,
			Bottom: cp.uvLo.Y, Top: cp.uvHi.Y,
		})
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// ExportPolygon builds the .pol of collection c. The base mesh sets the
// texture scale; subtexture meshes contribute their UV rectangles.
func ExportPolygon(s *Scene, c *Collection, log *zap.Logger) (*formats.Polygon, error) {
	log = nopIfNil(log)
	base, err := Propagate(s, c, log)
	if err != nil {
		return nil, err
	}
	p := &formats.Polygon{Material: *base, ScaleX: 1, ScaleY: 1}
	p.Material.Name = ""
	p.Material.Draped = true
	if c.Polygon != nil {
		p.LoadCenter = c.Polygon.LoadCenter
		p.TextureTile = c.Polygon.TextureTile
		p.RunwayMarkings = c.Polygon.RunwayMarkings
	}
	haveBase := false
	for _, pl := range c.AllObjects() {
		if pl.Object.Kind != KindMesh {
			continue
		}
		m, err := worldMesh(pl)
		if err != nil {
			return nil, err
		}
		switch pl.Object.Role() {
		case RoleSubtexture:
			lo, hi := m.UVBounds()
			p.Subtextures = append(p.Subtextures, formats.Rect{Left: lo.X, Bottom: lo.Y, Right: hi.X, Top: hi.Y})
		case "", RoleBase:
			if haveBase {
				log.Warn("extra polygon mesh ignored", zap.String("object", pl.Object.Name))
				continue
			}
			sc, err := uvScale(pl.Object.Name, m)
			if err != nil {
				return nil, err
			}
			p.ScaleX, p.ScaleY = sc[0], sc[1]
			haveBase = true
		}
	}
	return p, nil
}
