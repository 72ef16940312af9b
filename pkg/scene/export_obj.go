package scene

import (
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/formats"
	"github.com/Faultbox/xplane-assets/pkg/geometry"
	"github.com/Faultbox/xplane-assets/pkg/material"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

type objExporter struct {
	scene *Scene
	obj   *formats.Object
	pool  geometry.Mesh
	log   *zap.Logger
}

// ExportObject builds the .obj of collection c. Every animated object opens
// an ANIM_begin level whose first action is the object's translation; its
// rotation and scale are baked into the geometry below it.
func ExportObject(s *Scene, c *Collection, log *zap.Logger) (*formats.Object, error) {
	log = nopIfNil(log)
	base, err := Propagate(s, c, log)
	if err != nil {
		return nil, err
	}
	o := formats.NewObject()
	o.Material = *base
	o.Material.Name = ""
	if c.Object != nil {
		o.Globals = c.Object.Globals
		if c.Object.Draped != "" {
			d, err := s.Material(c.Object.Draped)
			if err != nil {
				return nil, err
			}
			o.Draped = *d
			o.Draped.Name = ""
		}
	}

	e := &objExporter{scene: s, obj: o, log: log}
	if err := e.collection(c); err != nil {
		return nil, err
	}
	o.Vertices, o.Indices = e.pool.Vertices, e.pool.Indices
	if err := assignBuckets(o, c.Name); err != nil {
		return nil, err
	}
	return o, nil
}

func (e *objExporter) collection(c *Collection) error {
	for _, obj := range c.Objects {
		if err := e.object(obj, e.obj.Root, xpmath.Identity()); err != nil {
			return err
		}
	}
	for _, ch := range c.Children {
		if ch.Export {
			continue
		}
		if err := e.collection(ch); err != nil {
			return err
		}
	}
	return nil
}

func (e *objExporter) object(obj *Object, level *formats.AnimLevel, base xpmath.Mat4) error {
	local := base.Mul(obj.Matrix)
	if obj.Anim.Animated() {
		actions, err := obj.Anim.inFrame(local.WithoutTranslation()).Actions()
		if err != nil {
			return xperr.Invariant("object %q: %v", obj.Name, err)
		}
		child := &formats.AnimLevel{}
		t := local.Translation()
		if t != (xpmath.Vec3{}) || leadsWithStaticLoc(obj.Anim) {
			child.Actions = append(child.Actions, formats.LocKeyframe{Offset: t})
		}
		child.Actions = append(child.Actions, actions...)
		level.Children = append(level.Children, child)
		level = child
		local = local.WithoutTranslation()
	}

	switch obj.Kind {
	case KindMesh:
		if err := e.mesh(obj, level, local); err != nil {
			return err
		}
	case KindLight:
		if err := e.light(obj, level, local); err != nil {
			return err
		}
	}
	for _, ch := range obj.Children {
		if err := e.object(ch, level, local); err != nil {
			return err
		}
	}
	return nil
}

// leadsWithStaticLoc reports whether a's first track would be read back as
// the object translation.
func leadsWithStaticLoc(a *Animation) bool {
	return len(a.Tracks) > 0 && a.Tracks[0].RotAxis == nil && a.Tracks[0].Static()
}

func (e *objExporter) mesh(obj *Object, level *formats.AnimLevel, local xpmath.Mat4) error {
	if obj.Mesh == nil {
		return xperr.Reference("object %q: mesh missing", obj.Name)
	}
	m, err := geometry.FromHost(obj.Mesh, local)
	if err != nil {
		return xperr.Invariant("object %q: %v", obj.Name, err)
	}
	if len(m.Indices) == 0 {
		e.log.Warn("object has no triangles", zap.String("object", obj.Name))
		return nil
	}
	state := material.DefaultState()
	if obj.Material != "" {
		mat, err := e.scene.Material(obj.Material)
		if err != nil {
			return err
		}
		state = mat.State()
	}
	dc := formats.DrawCall{
		Start:  e.pool.Append(m),
		Length: len(m.Indices),
		State:  state,
		Bucket: -1,
	}
	if obj.LOD != nil {
		lod := *obj.LOD
		dc.LOD = &lod
	}
	if obj.Manip != nil {
		mp := *obj.Manip
		dc.Manip = &mp
	}
	level.DrawCalls = append(level.DrawCalls, dc)
	return nil
}

func (e *objExporter) light(obj *Object, level *formats.AnimLevel, local xpmath.Mat4) error {
	if obj.Light == nil {
		return xperr.Reference("object %q: light settings missing", obj.Name)
	}
	l := obj.Light
	fl := formats.Light{
		Kind:      l.Type,
		Name:      l.Name,
		Pos:       local.TransformPoint(xpmath.Vec3{}),
		Color:     l.Color,
		Size:      l.Size,
		UV:        l.UV,
		Semi:      l.Semi,
		Cone:      l.Cone,
		Intensity: l.Intensity,
		Dataref:   l.Dataref,
		Tail:      l.Params,
		Bucket:    -1,
	}
	if l.Dir != (xpmath.Vec3{}) {
		fl.Dir = local.TransformDirection(l.Dir).Normalize()
	}
	if l.Type == formats.LightParam {
		fl.Photometric = strings.HasSuffix(l.Name, "_cd")
	}
	if obj.LOD != nil {
		lod := *obj.LOD
		fl.LOD = &lod
	}
	level.Lights = append(level.Lights, fl)
	return nil
}

// assignBuckets collects the LOD ranges of o into buckets. More distinct
// ranges than buckets is an error on export.
func assignBuckets(o *formats.Object, name string) error {
	var ranges []formats.LODRange
	o.Root.Walk(func(l *formats.AnimLevel, _ int) {
		for _, dc := range l.DrawCalls {
			if dc.LOD != nil {
				ranges = append(ranges, *dc.LOD)
			}
		}
		for _, lt := range l.Lights {
			if lt.LOD != nil {
				ranges = append(ranges, *lt.LOD)
			}
		}
	})
	set := formats.NewLODSet(ranges)
	if set.Overflow > 0 {
		return xperr.Invariant("collection %q: %d distinct LOD ranges, at most %d allowed",
			name, len(set.Buckets)+set.Overflow, formats.MaxLODBuckets)
	}
	o.LODBuckets, o.LODMode = set.Buckets, set.Mode
	o.Root.Walk(func(l *formats.AnimLevel, _ int) {
		for i := range l.DrawCalls {
			if r := l.DrawCalls[i].LOD; r != nil {
				l.DrawCalls[i].Bucket = set.Assign(*r)
			}
		}
		for i := range l.Lights {
			if r := l.Lights[i].LOD; r != nil {
				l.Lights[i].Bucket = set.Assign(*r)
			}
		}
	})
	return nil
}
