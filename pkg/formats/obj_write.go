package formats

import (
	"github.com/Faultbox/xplane-assets/pkg/material"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// Encode implements Asset.
func (o *Object) Encode(opts WriteOptions) ([]byte, error) {
	return WriteOBJ(o, opts)
}

// Validate checks the structural invariants the writer relies on.
func (o *Object) Validate() error {
	for i, idx := range o.Indices {
		if idx < 0 || idx >= len(o.Vertices) {
			return xperr.Invariant("index %d at position %d out of range [0,%d)", idx, i, len(o.Vertices))
		}
	}
	if len(o.LODBuckets) > MaxLODBuckets {
		return xperr.Invariant("%d LOD buckets, at most %d allowed", len(o.LODBuckets), MaxLODBuckets)
	}
	if o.Root == nil {
		return nil
	}
	var err error
	o.Root.Walk(func(l *AnimLevel, _ int) {
		if err != nil {
			return
		}
		for _, dc := range l.DrawCalls {
			if dc.Start < 0 || dc.Length <= 0 || dc.Start+dc.Length > len(o.Indices) {
				err = xperr.Invariant("draw call [%d,+%d) outside %d indices", dc.Start, dc.Length, len(o.Indices))
				return
			}
			if dc.Bucket >= len(o.LODBuckets) {
				err = xperr.Invariant("draw call bucket %d of %d", dc.Bucket, len(o.LODBuckets))
				return
			}
		}
		err = validateActions(l.Actions)
	})
	return err
}

// validateActions checks that every RotTable is preceded by its vector
// transform and every vector transform is followed by a RotTable.
func validateActions(actions []Action) error {
	for i, a := range actions {
		switch a.(type) {
		case RotTableVectorTransform:
			if i+1 >= len(actions) {
				return xperr.Invariant("vector transform at action %d without rotation table", i)
			}
			if _, ok := actions[i+1].(*RotTable); !ok {
				return xperr.Invariant("vector transform at action %d not followed by rotation table", i)
			}
		case *RotTable:
			if i == 0 {
				return xperr.Invariant("rotation table at action 0 without vector transform")
			}
			if _, ok := actions[i-1].(RotTableVectorTransform); !ok {
				return xperr.Invariant("rotation table at action %d without vector transform", i)
			}
		}
	}
	return nil
}

type objWriter struct {
	*textWriter
	obj     *Object
	initial material.State
	state   material.State
	manip   bool
}

// WriteOBJ serializes o.
func WriteOBJ(o *Object, opts WriteOptions) ([]byte, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	w := &objWriter{textWriter: newTextWriter(KindOBJ, opts), obj: o}
	w.textures()
	w.globals()

	w.line("POINT_COUNTS", itoa(len(o.Vertices)), "0", "0", itoa(len(o.Indices)))
	w.blank()
	for _, v := range o.Vertices {
		w.line("VT", w.v3(xpmath.ToXPlane(v.Pos)), w.v3(xpmath.ToXPlane(v.Normal)), w.fs(v.UV.X, v.UV.Y))
	}
	if len(o.Vertices) > 0 {
		w.blank()
	}
	full := len(o.Indices) / 10 * 10
	for i := 0; i < full; i += 10 {
		parts := []string{"IDX10"}
		for _, idx := range o.Indices[i : i+10] {
			parts = append(parts, itoa(idx))
		}
		w.line(parts...)
	}
	for _, idx := range o.Indices[full:] {
		w.line("IDX", itoa(idx))
	}
	if len(o.Indices) > 0 {
		w.blank()
	}

	if o.Material.LayerGroup != "" {
		w.line("ATTR_layer_group", o.Material.LayerGroup, itoa(o.Material.LayerGroupOffset))
	}
	if o.Draped.LayerGroup != "" {
		w.line("ATTR_draped_layer_group", o.Draped.LayerGroup, itoa(o.Draped.LayerGroupOffset))
	}

	w.initial = material.DefaultState()
	if o.Material.BlendMode() == material.BlendClip {
		w.initial.Blend, w.initial.BlendCutoff = material.BlendClip, o.Material.Cutoff()
	}
	w.initial.CastShadow = o.Material.CastShadow()

	if o.Root == nil {
		return w.bytes(), nil
	}
	if len(o.LODBuckets) == 0 {
		w.resetState()
		if err := w.level(o.Root, -1, true); err != nil {
			return nil, err
		}
		return w.bytes(), nil
	}
	for b, r := range o.LODBuckets {
		if w.manip {
			w.line("ATTR_manip_none")
		}
		w.line("ATTR_LOD", w.fs(r.Near, r.Far))
		w.resetState()
		if err := w.level(o.Root, b, true); err != nil {
			return nil, err
		}
	}
	return w.bytes(), nil
}

func (w *objWriter) resetState() {
	w.state = w.initial
	w.manip = false
	if w.obj.Material.PolyOffset != 0 {
		w.line("ATTR_poly_os", w.f(w.obj.Material.PolyOffset))
	}
}

func (w *objWriter) textures() {
	m, d := &w.obj.Material, &w.obj.Draped
	if m.Albedo != "" {
		w.line("TEXTURE", m.Albedo)
	}
	if m.Lit != "" {
		w.line("TEXTURE_LIT", m.Lit)
	}
	if m.Normal != "" {
		w.line("TEXTURE_NORMAL", m.Normal)
		if !m.SeparateMaterialTexture {
			w.line("NORMAL_METALNESS")
		}
	}
	if m.SeparateMaterialTexture && m.Mat != "" {
		w.line("TEXTURE_MAP", "material_gloss", m.Mat)
	}
	if d.Albedo != "" {
		w.line("TEXTURE_DRAPED", d.Albedo)
	}
	if d.Normal != "" {
		w.line("TEXTURE_DRAPED_NORMAL", w.f(d.TileRatio()), d.Normal)
	}
	if d.Lit != "" {
		w.line("TEXTURE_DRAPED_LIT", d.Lit)
	}
	writeDecals(w.textWriter, m)
}

func (w *objWriter) globals() {
	m, g := &w.obj.Material, &w.obj.Globals
	// No luminance override without a lit texture.
	if m.Lit != "" && m.Luminance > 0 {
		w.line("GLOBAL_luminance", w.f(m.Luminance))
	}
	if m.BlendMode() == material.BlendClip {
		w.line("GLOBAL_no_blend", w.f(m.Cutoff()))
	}
	if !m.CastShadow() {
		w.line("GLOBAL_no_shadow")
	}
	if g.Specular != nil {
		w.line("GLOBAL_specular", w.f(*g.Specular))
	}
	if g.Tint != nil {
		w.line("GLOBAL_tint", w.fs(g.Tint[0], g.Tint[1]))
	}
	if g.ShadowBlend != nil {
		w.line("GLOBAL_shadow_blend", w.f(*g.ShadowBlend))
	}
	if g.CockpitLit {
		w.line("GLOBAL_cockpit_lit")
	}
	if g.BlendGlass {
		w.line("BLEND_GLASS")
	}
	w.blank()
}

// hasContent reports whether l or a descendant draws in bucket b.
func hasContent(l *AnimLevel, b int) bool {
	for _, dc := range l.DrawCalls {
		if inBucket(dc.Bucket, b) {
			return true
		}
	}
	for _, lt := range l.Lights {
		if inBucket(lt.Bucket, b) {
			return true
		}
	}
	for _, c := range l.Children {
		if hasContent(c, b) {
			return true
		}
	}
	return false
}

// inBucket treats unassigned content as belonging to the first bucket.
func inBucket(have, want int) bool {
	if want < 0 {
		return true
	}
	if have < 0 {
		have = 0
	}
	return have == want
}

func (w *objWriter) level(l *AnimLevel, bucket int, root bool) error {
	if !hasContent(l, bucket) {
		return nil
	}
	bracket := !root || len(l.Actions) > 0
	if bracket {
		w.line("ANIM_begin")
		w.depth++
		if err := w.actions(l.Actions); err != nil {
			return err
		}
	}
	for i := range l.DrawCalls {
		if dc := &l.DrawCalls[i]; inBucket(dc.Bucket, bucket) {
			if err := w.drawCall(dc); err != nil {
				return err
			}
		}
	}
	lights := make([]Light, 0, len(l.Lights))
	for _, lt := range l.Lights {
		if inBucket(lt.Bucket, bucket) {
			lights = append(lights, lt)
		}
	}
	sortLights(lights)
	for i := range lights {
		if err := w.light(&lights[i]); err != nil {
			return err
		}
	}
	for _, c := range l.Children {
		if err := w.level(c, bucket, false); err != nil {
			return err
		}
	}
	if bracket {
		w.depth--
		w.line("ANIM_end")
	}
	return nil
}

func (w *objWriter) actions(actions []Action) error {
	for i := 0; i < len(actions); i++ {
		switch a := actions[i].(type) {
		case LocKeyframe:
			p := w.v3(xpmath.ToXPlane(a.Offset))
			w.line("ANIM_trans", p, p, "0 0 none")
		case RotKeyframe:
			w.line("ANIM_rotate", w.v3(xpmath.ToXPlane(a.Axis)), w.fs(a.Angle, a.Angle), "0 0 none")
		case *LocTable:
			w.line("ANIM_trans_begin", a.Dataref)
			for _, k := range a.Keys {
				w.line("ANIM_trans_key", w.f(k.Value), w.v3(xpmath.ToXPlane(k.Loc)))
			}
			if a.Loop != 0 {
				w.line("ANIM_keyframe_loop", w.f(a.Loop))
			}
			w.line("ANIM_trans_end")
		case RotTableVectorTransform:
			t := actions[i+1].(*RotTable)
			i++
			w.line("ANIM_rotate_begin", w.v3(xpmath.ToXPlane(a.Axis)), t.Dataref)
			for _, k := range t.Keys {
				w.line("ANIM_rotate_key", w.f(k.Value), w.f(k.Angle))
			}
			if t.Loop != 0 {
				w.line("ANIM_keyframe_loop", w.f(t.Loop))
			}
			w.line("ANIM_rotate_end")
		case *ShowHideSeries:
			for _, e := range a.Entries {
				cmd := "ANIM_hide"
				if e.Show {
					cmd = "ANIM_show"
				}
				w.line(cmd, w.fs(e.V1, e.V2), e.Dataref)
			}
		default:
			return xperr.Invariant("unexpected animation action %T", a)
		}
	}
	return nil
}

// drawCall emits the state changes since the previous draw call, the
// manipulator and the TRIS command.
func (w *objWriter) drawCall(dc *DrawCall) error {
	s := dc.State
	if s.Surface == "" {
		s.Surface = material.SurfaceNone
	}
	if s.Blend == "" {
		s.Blend = material.BlendAlpha
	}
	if s.Blend != w.state.Blend || (s.Blend == material.BlendClip && s.BlendCutoff != w.state.BlendCutoff) {
		if s.Blend == material.BlendClip {
			w.line("ATTR_no_blend", w.f(s.BlendCutoff))
		} else {
			w.line("ATTR_blend")
		}
	}
	if s.Draped != w.state.Draped {
		if s.Draped {
			w.line("ATTR_draped")
		} else {
			w.line("ATTR_no_draped")
		}
	}
	if s.CastShadow != w.state.CastShadow {
		if s.CastShadow {
			w.line("ATTR_shadow")
		} else {
			w.line("ATTR_no_shadow")
		}
	}
	if s.Surface != w.state.Surface || s.Deck != w.state.Deck {
		switch {
		case s.Surface == material.SurfaceNone:
			w.line("ATTR_no_hard")
		case s.Deck:
			w.line("ATTR_hard_deck", string(s.Surface))
		default:
			w.line("ATTR_hard", string(s.Surface))
		}
	}
	w.state = s

	if dc.Manip != nil {
		if err := writeManip(w.textWriter, dc.Manip); err != nil {
			return err
		}
		w.manip = true
	} else if w.manip {
		w.line("ATTR_manip_none")
		w.manip = false
	}
	w.line("TRIS", itoa(dc.Start), itoa(dc.Length))
	return nil
}

func (w *objWriter) light(l *Light) error {
	pos := w.v3(xpmath.ToXPlane(l.Pos))
	switch l.Kind {
	case LightNamed:
		w.line("LIGHT_NAMED", l.Name, pos)
	case LightParam:
		def, ok := w.opts.Lights[l.Name]
		if !ok {
			return xperr.Reference("LIGHT_PARAM %s: not in the light table", l.Name)
		}
		params, err := def.params(w.textWriter, l)
		if err != nil {
			return err
		}
		w.line(append([]string{"LIGHT_PARAM", l.Name, pos}, params...)...)
	case LightCustom:
		w.line("LIGHT_CUSTOM", pos, w.fs(l.Color[:]...), w.f(l.Size), w.fs(l.UV[:]...), l.Dataref)
	case LightSpillCustom:
		w.line("LIGHT_SPILL_CUSTOM", pos, w.fs(l.Color[:]...), w.f(l.Size),
			w.v3(xpmath.ToXPlane(l.Dir)), w.f(l.Semi), l.Dataref)
	default:
		return xperr.Invariant("unknown light kind %d", l.Kind)
	}
	return nil
}
