package scene

import (
	"github.com/Faultbox/xplane-assets/pkg/formats"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// Animation is the animation contract between the scene and the .obj
// codec: an ordered list of transform tracks followed by show/hide rules.
type Animation struct {
	Tracks   []Track             `yaml:"tracks,omitempty"`
	ShowHide []formats.ShowHide `yaml:"show_hide,omitempty"`
}

// Track is one translation or rotation. A track without a dataref and with
// a single key is static.
type Track struct {
	Dataref string  `yaml:"dataref,omitempty"`
	Loop    float32 `yaml:"loop,omitempty"`
	// RotAxis is nil for translation tracks.
	RotAxis *xpmath.Vec3 `yaml:"rot_axis,omitempty"`
	Keys    []Key        `yaml:"keys"`
}

// Key is one keyframe. Loc applies to translation tracks, Angle (degrees)
// to rotation tracks.
type Key struct {
	Value float32     `yaml:"value"`
	Loc   xpmath.Vec3 `yaml:"loc,omitempty"`
	Angle float32     `yaml:"angle,omitempty"`
}

// Static reports whether t does not depend on a dataref.
func (t *Track) Static() bool {
	return (t.Dataref == "" || t.Dataref == "none") && len(t.Keys) == 1
}

// Animated reports whether a carries anything to write.
func (a *Animation) Animated() bool {
	return a != nil && (len(a.Tracks) > 0 || len(a.ShowHide) > 0)
}

// Actions converts a to .obj level actions.
func (a *Animation) Actions() ([]formats.Action, error) {
	if a == nil {
		return nil, nil
	}
	var out []formats.Action
	for i, t := range a.Tracks {
		if len(t.Keys) == 0 {
			return nil, xperr.Invariant("track %d has no keys", i)
		}
		switch {
		case t.RotAxis != nil && t.Static():
			out = append(out, formats.RotKeyframe{Axis: *t.RotAxis, Angle: t.Keys[0].Angle})
		case t.RotAxis != nil:
			rt := &formats.RotTable{Dataref: t.Dataref, Loop: t.Loop}
			for _, k := range t.Keys {
				rt.Keys = append(rt.Keys, formats.RotKey{Value: k.Value, Angle: k.Angle})
			}
			out = append(out, formats.RotTableVectorTransform{Axis: *t.RotAxis}, rt)
		case t.Static():
			out = append(out, formats.LocKeyframe{Offset: t.Keys[0].Loc})
		default:
			lt := &formats.LocTable{Dataref: t.Dataref, Loop: t.Loop}
			for _, k := range t.Keys {
				lt.Keys = append(lt.Keys, formats.LocKey{Value: k.Value, Loc: k.Loc})
			}
			out = append(out, lt)
		}
	}
	if len(a.ShowHide) > 0 {
		out = append(out, &formats.ShowHideSeries{Entries: append([]formats.ShowHide(nil), a.ShowHide...)})
	}
	return out, nil
}

// inFrame returns a copy of a with rotation axes and translation keys
// carried through m. The exporter bakes an object's rotation into its
// geometry, so its tracks must be restated in the parent level's frame.
func (a *Animation) inFrame(m xpmath.Mat4) *Animation {
	out := &Animation{ShowHide: a.ShowHide}
	for _, t := range a.Tracks {
		nt := t
		nt.Keys = make([]Key, len(t.Keys))
		for i, k := range t.Keys {
			k.Loc = m.TransformDirection(k.Loc)
			nt.Keys[i] = k
		}
		if t.RotAxis != nil {
			ax := m.TransformDirection(*t.RotAxis).Normalize()
			nt.RotAxis = &ax
		}
		out.Tracks = append(out.Tracks, nt)
	}
	return out
}

// AnimationFrom converts level actions back into an Animation. A
// RotTableVectorTransform sets the axis of the RotTable after it.
func AnimationFrom(actions []formats.Action) *Animation {
	a := &Animation{}
	axis := xpmath.Vec3{Z: 1}
	for _, act := range actions {
		switch v := act.(type) {
		case formats.LocKeyframe:
			a.Tracks = append(a.Tracks, Track{Keys: []Key{{Loc: v.Offset}}})
		case formats.RotKeyframe:
			ax := v.Axis
			a.Tracks = append(a.Tracks, Track{RotAxis: &ax, Keys: []Key{{Angle: v.Angle}}})
		case *formats.LocTable:
			t := Track{Dataref: v.Dataref, Loop: v.Loop}
			for _, k := range v.Keys {
				t.Keys = append(t.Keys, Key{Value: k.Value, Loc: k.Loc})
			}
			a.Tracks = append(a.Tracks, t)
		case formats.RotTableVectorTransform:
			axis = v.Axis
		case *formats.RotTable:
			ax := axis
			t := Track{Dataref: v.Dataref, Loop: v.Loop, RotAxis: &ax}
			for _, k := range v.Keys {
				t.Keys = append(t.Keys, Key{Value: k.Value, Angle: k.Angle})
			}
			a.Tracks = append(a.Tracks, t)
			axis = xpmath.Vec3{Z: 1}
		case *formats.ShowHideSeries:
			a.ShowHide = append(a.ShowHide, v.Entries...)
		}
	}
	return a
}

// At interpolates t at a dataref value. Values outside the keyed range
// hold the nearest key. Keys are assumed sorted by value, ascending or
// descending as the dataref runs.
func (t *Track) At(value float32) Key {
	if len(t.Keys) == 0 {
		return Key{Value: value}
	}
	if t.Loop > 0 {
		value = wrap(value, t.Keys[0].Value, t.Loop)
	}
	if len(t.Keys) == 1 {
		return t.Keys[0]
	}

	asc := t.Keys[len(t.Keys)-1].Value >= t.Keys[0].Value
	before := func(k Key) bool {
		if asc {
			return k.Value <= value
		}
		return k.Value >= value
	}

	// Find surrounding keyframes
	var prev, next int
	for i := range t.Keys {
		if !before(t.Keys[i]) {
			next = i
			break
		}
		prev = i
		next = i
	}
	if !before(t.Keys[0]) {
		return t.Keys[0]
	}
	if prev == next {
		return t.Keys[prev]
	}

	k0, k1 := t.Keys[prev], t.Keys[next]
	f := float32(0)
	if k1.Value != k0.Value {
		f = (value - k0.Value) / (k1.Value - k0.Value)
	}
	return Key{
		Value: value,
		Loc:   k0.Loc.Add(k1.Loc.Sub(k0.Loc).Scale(f)),
		Angle: k0.Angle + f*(k1.Angle-k0.Angle),
	}
}

func wrap(v, origin, loop float32) float32 {
	d := v - origin
	d -= loop * float32(int(d/loop))
	if d < 0 {
		d += loop
	}
	return origin + d
}

// Matrix composes every track at the given dataref values, in track order.
// Datarefs missing from values read as 0.
func (a *Animation) Matrix(values map[string]float32) xpmath.Mat4 {
	m := xpmath.Identity()
	if a == nil {
		return m
	}
	for i := range a.Tracks {
		t := &a.Tracks[i]
		k := t.At(values[t.Dataref])
		if t.RotAxis != nil {
			m = m.Mul(xpmath.RotateAxis(t.RotAxis.Normalize(), xpmath.Rad(k.Angle)))
		} else {
			m = m.Mul(xpmath.Translate(k.Loc.X, k.Loc.Y, k.Loc.Z))
		}
	}
	return m
}

// Visible applies the show/hide rules in order to the given dataref values.
// An object starts visible; a rule whose range contains the value sets it.
func (a *Animation) Visible(values map[string]float32) bool {
	visible := true
	if a == nil {
		return visible
	}
	for _, r := range a.ShowHide {
		lo, hi := r.V1, r.V2
		if lo > hi {
			lo, hi = hi, lo
		}
		if v := values[r.Dataref]; v >= lo && v <= hi {
			visible = r.Show
		}
	}
	return visible
}
