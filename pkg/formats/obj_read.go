package formats

import (
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/geometry"
	"github.com/Faultbox/xplane-assets/pkg/material"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// objReader is the parser state: the render state in effect, the open
// animation levels, the pending manipulator and the current LOD range.
type objReader struct {
	log    *zap.Logger
	lights LightTable
	obj    *Object

	stack   []*AnimLevel
	initial material.State
	state   material.State
	lod     *LODRange
	manip   *Manipulator

	pointCounts []int
}

// ParseOBJ parses an object using the built-in light table.
func ParseOBJ(data []byte, log *zap.Logger) (*Object, error) {
	return ParseOBJWithLights(data, DefaultLights(), log)
}

// ParseOBJFile reads and parses an object file.
func ParseOBJFile(path string, log *zap.Logger) (*Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xperr.IO(err, "reading %s", path)
	}
	return ParseOBJ(data, log)
}

// ParseOBJWithLights parses an object. Malformed and unknown commands are
// logged and skipped; only a bad header fails the parse.
func ParseOBJWithLights(data []byte, lights LightTable, log *zap.Logger) (*Object, error) {
	cmds := scanLines(data)
	h, body, err := readHeader(cmds, "OBJ")
	if err != nil {
		return nil, err
	}
	r := &objReader{log: nopIfNil(log), lights: lights, obj: NewObject()}
	r.obj.Header = h
	r.stack = []*AnimLevel{r.obj.Root}
	r.initial = material.DefaultState()
	r.state = r.initial

	for _, c := range body {
		if err := r.command(c); err != nil {
			warnSkip(r.log, c, err)
		}
	}
	r.finish()
	return r.obj, nil
}

func (r *objReader) top() *AnimLevel { return r.stack[len(r.stack)-1] }

func (r *objReader) command(c command) error {
	name := c.name()
	switch {
	case strings.HasPrefix(name, "ATTR_manip_"):
		return r.manipCommand(c)
	case strings.HasPrefix(name, "ANIM_"):
		return r.animCommand(c)
	case strings.HasPrefix(name, "LIGHT_"):
		return r.lightCommand(c)
	}

	m := &r.obj.Material
	switch name {
	case "VT":
		if err := c.need(8); err != nil {
			return err
		}
		f, err := c.floats(0, 8)
		if err != nil {
			return err
		}
		r.obj.Vertices = append(r.obj.Vertices, geometry.Vertex{
			Pos:    xpmath.FromXPlane(xpmath.Vec3{X: f[0], Y: f[1], Z: f[2]}),
			Normal: xpmath.FromXPlane(xpmath.Vec3{X: f[3], Y: f[4], Z: f[5]}),
			UV:     xpmath.Vec2{X: f[6], Y: f[7]},
		})
	case "IDX10", "IDX":
		n := 1
		if name == "IDX10" {
			n = 10
		}
		if err := c.need(n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			v, err := c.integer(i)
			if err != nil {
				return err
			}
			r.obj.Indices = append(r.obj.Indices, v)
		}
	case "TRIS":
		return r.tris(c)
	case "POINT_COUNTS":
		if err := c.need(4); err != nil {
			return err
		}
		r.pointCounts = make([]int, 4)
		for i := range r.pointCounts {
			v, err := c.integer(i)
			if err != nil {
				r.pointCounts = nil
				return err
			}
			r.pointCounts[i] = v
		}

	case "TEXTURE", "TEXTURE_LIT", "TEXTURE_NORMAL", "TEXTURE_DRAPED", "TEXTURE_DRAPED_NORMAL", "TEXTURE_DRAPED_LIT":
		if err := c.need(1); err != nil {
			return err
		}
		return r.texture(c)
	case "TEXTURE_MAP":
		if err := c.need(2); err != nil {
			return err
		}
		switch c.str(0) {
		case "normal":
			m.Normal = assetPath(c.rest(1))
		case "material_gloss":
			m.Mat = assetPath(c.rest(1))
			m.SeparateMaterialTexture = true
		default:
			return xperr.Format(c.line, "TEXTURE_MAP: unknown slot %q", c.str(0))
		}
	case "TEXTURE_MODULATOR", "DECAL", "DECAL_PARAMS", "DECAL_PARAMS_PROJ", "NORMAL_DECAL_PARAMS", "NORMAL_DECAL_PARAMS_PROJ":
		readPreamble(c, m, r.log)
	case "NORMAL_METALNESS":
	case "BLEND_GLASS":
		r.obj.Globals.BlendGlass = true
	case "GLOBAL_cockpit_lit":
		r.obj.Globals.CockpitLit = true
	case "GLOBAL_no_blend":
		cutoff := material.DefaultCutoff
		if c.args() > 0 {
			v, err := c.float(0)
			if err != nil {
				return err
			}
			cutoff = v
		}
		m.Blend, m.BlendCutoff = material.BlendClip, cutoff
		r.initial.Blend, r.initial.BlendCutoff = material.BlendClip, cutoff
		r.state.Blend, r.state.BlendCutoff = material.BlendClip, cutoff
	case "GLOBAL_no_shadow":
		m.NoShadow = true
		r.initial.CastShadow = false
		r.state.CastShadow = false
	case "GLOBAL_luminance":
		if err := c.need(1); err != nil {
			return err
		}
		v, err := c.float(0)
		if err != nil {
			return err
		}
		m.Luminance = v
	case "GLOBAL_specular":
		if err := c.need(1); err != nil {
			return err
		}
		v, err := c.float(0)
		if err != nil {
			return err
		}
		r.obj.Globals.Specular = &v
	case "GLOBAL_tint":
		if err := c.need(2); err != nil {
			return err
		}
		f, err := c.floats(0, 2)
		if err != nil {
			return err
		}
		r.obj.Globals.Tint = &[2]float32{f[0], f[1]}
	case "GLOBAL_shadow_blend", "ATTR_shadow_blend":
		if err := c.need(1); err != nil {
			return err
		}
		v, err := c.float(0)
		if err != nil {
			return err
		}
		r.obj.Globals.ShadowBlend = &v

	default:
		if strings.HasPrefix(name, "ATTR_") {
			return r.attr(c)
		}
		warnUnknown(r.log, c)
	}
	return nil
}

func (r *objReader) texture(c command) error {
	path := assetPath(c.rest(0))
	m, d := &r.obj.Material, &r.obj.Draped
	switch c.name() {
	case "TEXTURE":
		m.Albedo = path
	case "TEXTURE_LIT":
		m.Lit = path
	case "TEXTURE_NORMAL":
		m.Normal = path
	case "TEXTURE_DRAPED":
		d.Albedo = path
	case "TEXTURE_DRAPED_NORMAL":
		// TEXTURE_DRAPED_NORMAL ratio path
		if c.args() >= 2 {
			ratio, err := c.float(0)
			if err != nil {
				return err
			}
			d.NormalTileRatio = ratio
			path = assetPath(c.rest(1))
		}
		d.Normal = path
	case "TEXTURE_DRAPED_LIT":
		d.Lit = path
	}
	return nil
}

// attr mutates the render state or an object-wide attribute.
func (r *objReader) attr(c command) error {
	s := &r.state
	switch c.name() {
	case "ATTR_LOD":
		if err := c.need(2); err != nil {
			return err
		}
		f, err := c.floats(0, 2)
		if err != nil {
			return err
		}
		r.lod = &LODRange{Near: f[0], Far: f[1]}
		// Attributes reset at each LOD.
		r.state = r.initial
	case "ATTR_draped":
		s.Draped = true
	case "ATTR_no_draped":
		s.Draped = false
	case "ATTR_shadow":
		s.CastShadow = true
	case "ATTR_no_shadow":
		s.CastShadow = false
	case "ATTR_blend":
		s.Blend = material.BlendAlpha
		s.BlendCutoff = material.DefaultCutoff
	case "ATTR_no_blend":
		s.Blend = material.BlendClip
		s.BlendCutoff = material.DefaultCutoff
		if c.args() > 0 {
			v, err := c.float(0)
			if err != nil {
				return err
			}
			s.BlendCutoff = v
		}
	case "ATTR_hard", "ATTR_hard_deck":
		surf := material.SurfaceConcrete
		if c.args() > 0 {
			v, err := material.ParseSurface(c.str(0))
			if err != nil {
				return xperr.Format(c.line, "%v", err)
			}
			surf = v
		}
		s.Surface = surf
		s.Deck = c.name() == "ATTR_hard_deck"
	case "ATTR_no_hard":
		s.Surface = material.SurfaceNone
		s.Deck = false
	case "ATTR_layer_group", "ATTR_draped_layer_group":
		if err := c.need(1); err != nil {
			return err
		}
		target := &r.obj.Material
		if c.name() == "ATTR_draped_layer_group" {
			target = &r.obj.Draped
		}
		target.LayerGroup = c.str(0)
		target.LayerGroupOffset = 0
		if c.args() > 1 {
			off, err := c.integer(1)
			if err != nil {
				return err
			}
			target.LayerGroupOffset = off
		}
	case "ATTR_poly_os":
		if err := c.need(1); err != nil {
			return err
		}
		v, err := c.float(0)
		if err != nil {
			return err
		}
		r.obj.Material.PolyOffset = v
	case "ATTR_axis_detented":
		if r.manip == nil {
			return xperr.Format(c.line, "no manipulator to add a detent to")
		}
		if err := c.need(3); err != nil {
			return err
		}
		f, err := c.floats(0, 3)
		if err != nil {
			return err
		}
		r.manip.Detents = append(r.manip.Detents, Detent{Start: f[0], End: f[1], Length: f[2]})
	default:
		warnUnknown(r.log, c)
	}
	return nil
}

func (r *objReader) manipCommand(c command) error {
	switch c.name() {
	case "ATTR_manip_none":
		r.manip = nil
		return nil
	case "ATTR_manip_wheel":
		if r.manip == nil {
			return xperr.Format(c.line, "no manipulator to add a wheel to")
		}
		if err := c.need(1); err != nil {
			return err
		}
		v, err := c.float(0)
		if err != nil {
			return err
		}
		r.manip.Wheel = v
		return nil
	}
	m, err := parseManip(c)
	if err != nil {
		return err
	}
	if !m.Known() {
		r.log.Warn("unknown manipulator kept verbatim", zap.Int("line", c.line), zap.String("kind", m.Kind))
	}
	r.manip = m
	return nil
}

func (r *objReader) tris(c command) error {
	if err := c.need(2); err != nil {
		return err
	}
	start, err := c.integer(0)
	if err != nil {
		return err
	}
	length, err := c.integer(1)
	if err != nil {
		return err
	}
	dc := DrawCall{Start: start, Length: length, State: r.state, Manip: r.manip, Bucket: -1}
	if r.lod != nil {
		lod := *r.lod
		dc.LOD = &lod
	}
	r.manip = nil
	top := r.top()
	top.DrawCalls = append(top.DrawCalls, dc)
	return nil
}

func (r *objReader) lightCommand(c command) error {
	l := Light{Bucket: -1}
	if r.lod != nil {
		lod := *r.lod
		l.LOD = &lod
	}
	switch c.name() {
	case "LIGHT_NAMED":
		if err := c.need(4); err != nil {
			return err
		}
		pos, err := c.vec3(1)
		if err != nil {
			return err
		}
		l.Kind, l.Name, l.Pos = LightNamed, c.str(0), xpmath.FromXPlane(pos)
	case "LIGHT_PARAM":
		if err := c.need(4); err != nil {
			return err
		}
		def, ok := r.lights[c.str(0)]
		if !ok {
			r.log.Warn("unknown light dropped", zap.Int("line", c.line), zap.String("light", c.str(0)))
			return nil
		}
		pos, err := c.vec3(1)
		if err != nil {
			return err
		}
		l.Kind, l.Name, l.Pos = LightParam, def.Name, xpmath.FromXPlane(pos)
		if err := def.applyParams(&l, c.tok[5:], c.line); err != nil {
			return err
		}
	case "LIGHT_CUSTOM":
		if err := c.need(12); err != nil {
			return err
		}
		f, err := c.floats(0, 12)
		if err != nil {
			return err
		}
		l.Kind = LightCustom
		l.Pos = xpmath.FromXPlane(xpmath.Vec3{X: f[0], Y: f[1], Z: f[2]})
		copy(l.Color[:], f[3:7])
		l.Size = f[7]
		copy(l.UV[:], f[8:12])
		l.Dataref = c.str(12)
	case "LIGHT_SPILL_CUSTOM":
		if err := c.need(12); err != nil {
			return err
		}
		f, err := c.floats(0, 12)
		if err != nil {
			return err
		}
		l.Kind = LightSpillCustom
		l.Pos = xpmath.FromXPlane(xpmath.Vec3{X: f[0], Y: f[1], Z: f[2]})
		copy(l.Color[:], f[3:7])
		l.Size = f[7]
		l.Dir = xpmath.FromXPlane(xpmath.Vec3{X: f[8], Y: f[9], Z: f[10]})
		l.Semi = f[11]
		l.Dataref = c.str(12)
	default:
		warnUnknown(r.log, c)
		return nil
	}
	top := r.top()
	top.Lights = append(top.Lights, l)
	return nil
}

func (r *objReader) animCommand(c command) error {
	top := r.top()
	switch c.name() {
	case "ANIM_begin":
		child := &AnimLevel{}
		top.Children = append(top.Children, child)
		r.stack = append(r.stack, child)
	case "ANIM_end":
		if len(r.stack) == 1 {
			return xperr.Format(c.line, "ANIM_end without ANIM_begin")
		}
		r.stack = r.stack[:len(r.stack)-1]
	case "ANIM_trans":
		if err := c.need(8); err != nil {
			return err
		}
		f, err := c.floats(0, 8)
		if err != nil {
			return err
		}
		p1 := xpmath.FromXPlane(xpmath.Vec3{X: f[0], Y: f[1], Z: f[2]})
		p2 := xpmath.FromXPlane(xpmath.Vec3{X: f[3], Y: f[4], Z: f[5]})
		dref := c.str(8)
		if p1 == p2 && isNone(dref) {
			top.Actions = append(top.Actions, LocKeyframe{Offset: p1})
			return nil
		}
		if dref == "" {
			dref = "none"
		}
		top.Actions = append(top.Actions, &LocTable{
			Dataref: dref,
			Keys:    []LocKey{{Value: f[6], Loc: p1}, {Value: f[7], Loc: p2}},
		})
	case "ANIM_rotate":
		if err := c.need(7); err != nil {
			return err
		}
		f, err := c.floats(0, 7)
		if err != nil {
			return err
		}
		axis := xpmath.FromXPlane(xpmath.Vec3{X: f[0], Y: f[1], Z: f[2]})
		dref := c.str(7)
		if f[3] == f[4] && isNone(dref) {
			top.Actions = append(top.Actions, RotKeyframe{Axis: axis, Angle: f[3]})
			return nil
		}
		if dref == "" {
			dref = "none"
		}
		top.Actions = append(top.Actions,
			RotTableVectorTransform{Axis: axis},
			&RotTable{Dataref: dref, Keys: []RotKey{{Value: f[5], Angle: f[3]}, {Value: f[6], Angle: f[4]}}},
		)
	case "ANIM_trans_begin":
		if err := c.need(1); err != nil {
			return err
		}
		top.Actions = append(top.Actions, &LocTable{Dataref: c.str(0)})
	case "ANIM_trans_key":
		if err := c.need(4); err != nil {
			return err
		}
		t, ok := lastAction(top).(*LocTable)
		if !ok {
			return xperr.Format(c.line, "ANIM_trans_key outside ANIM_trans_begin")
		}
		f, err := c.floats(0, 4)
		if err != nil {
			return err
		}
		t.Keys = append(t.Keys, LocKey{Value: f[0], Loc: xpmath.FromXPlane(xpmath.Vec3{X: f[1], Y: f[2], Z: f[3]})})
	case "ANIM_rotate_begin":
		if err := c.need(4); err != nil {
			return err
		}
		axis, err := c.vec3(0)
		if err != nil {
			return err
		}
		top.Actions = append(top.Actions,
			RotTableVectorTransform{Axis: xpmath.FromXPlane(axis)},
			&RotTable{Dataref: c.str(3)},
		)
	case "ANIM_rotate_key":
		if err := c.need(2); err != nil {
			return err
		}
		t, ok := lastAction(top).(*RotTable)
		if !ok {
			return xperr.Format(c.line, "ANIM_rotate_key outside ANIM_rotate_begin")
		}
		f, err := c.floats(0, 2)
		if err != nil {
			return err
		}
		t.Keys = append(t.Keys, RotKey{Value: f[0], Angle: f[1]})
	case "ANIM_trans_end", "ANIM_rotate_end":
	case "ANIM_keyframe_loop":
		if err := c.need(1); err != nil {
			return err
		}
		v, err := c.float(0)
		if err != nil {
			return err
		}
		switch t := lastAction(top).(type) {
		case *LocTable:
			t.Loop = v
		case *RotTable:
			t.Loop = v
		}
	case "ANIM_show", "ANIM_hide":
		if err := c.need(3); err != nil {
			return err
		}
		f, err := c.floats(0, 2)
		if err != nil {
			return err
		}
		e := ShowHide{Show: c.name() == "ANIM_show", V1: f[0], V2: f[1], Dataref: c.str(2)}
		if s, ok := lastAction(top).(*ShowHideSeries); ok {
			s.Entries = append(s.Entries, e)
		} else {
			top.Actions = append(top.Actions, &ShowHideSeries{Entries: []ShowHide{e}})
		}
	default:
		warnUnknown(r.log, c)
	}
	return nil
}

func lastAction(l *AnimLevel) Action {
	if len(l.Actions) == 0 {
		return nil
	}
	return l.Actions[len(l.Actions)-1]
}

// finish checks counts and ranges, assigns LOD buckets and merges
// duplicate lights.
func (r *objReader) finish() {
	o := r.obj
	if len(r.stack) > 1 {
		r.log.Warn("unterminated ANIM_begin", zap.Int("open", len(r.stack)-1))
	}
	if r.pointCounts != nil {
		if r.pointCounts[0] != len(o.Vertices) || r.pointCounts[3] != len(o.Indices) {
			r.log.Warn("POINT_COUNTS disagree with data",
				zap.Int("vt", r.pointCounts[0]), zap.Int("vt_read", len(o.Vertices)),
				zap.Int("idx", r.pointCounts[3]), zap.Int("idx_read", len(o.Indices)))
		}
	}
	for i, idx := range o.Indices {
		if idx < 0 || idx >= len(o.Vertices) {
			r.log.Warn("index out of range", zap.Int("position", i), zap.Int("index", idx))
		}
	}

	var ranges []LODRange
	o.Root.Walk(func(l *AnimLevel, _ int) {
		kept := l.DrawCalls[:0]
		for _, dc := range l.DrawCalls {
			if dc.Start < 0 || dc.Length <= 0 || dc.Start+dc.Length > len(o.Indices) {
				r.log.Warn("draw call outside index array dropped",
					zap.Int("start", dc.Start), zap.Int("length", dc.Length), zap.Int("indices", len(o.Indices)))
				continue
			}
			if dc.LOD != nil {
				ranges = append(ranges, *dc.LOD)
			}
			kept = append(kept, dc)
		}
		l.DrawCalls = kept
	})

	set := NewLODSet(ranges)
	if set.Overflow > 0 {
		r.log.Warn("more than four LOD ranges; extra ranges assigned to the closest bucket",
			zap.Int("ranges", len(set.Buckets)+set.Overflow))
	}
	o.LODBuckets, o.LODMode = set.Buckets, set.Mode
	o.Root.Walk(func(l *AnimLevel, _ int) {
		for i := range l.DrawCalls {
			if dc := &l.DrawCalls[i]; dc.LOD != nil {
				dc.Bucket = set.Assign(*dc.LOD)
			} else if len(set.Buckets) > 0 {
				dc.Bucket = 0
			}
		}
		for i := range l.Lights {
			if lt := &l.Lights[i]; lt.LOD != nil {
				lt.Bucket = set.Assign(*lt.LOD)
			} else if len(set.Buckets) > 0 {
				lt.Bucket = 0
			}
		}
		l.Lights = dedupeLights(l.Lights)
	})
}
