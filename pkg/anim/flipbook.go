// Package anim generates animation for scene objects: flipbooks that swap
// between baked copies of a deforming mesh, and keyframes sampled from a
// host's own animation.
package anim

import (
	"fmt"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/formats"
	"github.com/Faultbox/xplane-assets/pkg/geometry"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/scene"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// Overlap is the share of a frame's dataref interval that it also covers
// of the next frame, so two copies are briefly shown together.
const Overlap = 0.1

// MeshEvaluator returns an object's deformed mesh at a host frame.
type MeshEvaluator interface {
	EvaluateMesh(o *scene.Object, frame int) (*geometry.HostMesh, error)
}

// TransformEvaluator returns an object's local transform at a host frame.
type TransformEvaluator interface {
	EvaluateTransform(o *scene.Object, frame int) (xpmath.Mat4, error)
}

// Range maps host frames onto dataref values.
type Range struct {
	Dataref    string
	Start, End float32
	// Loop is the dataref period; 0 means the dataref does not wrap.
	Loop float32

	FrameStart, FrameEnd int
	Interval             int
}

func (r Range) validate() error {
	if r.Dataref == "" {
		return xperr.Invariant("animation needs a dataref")
	}
	if r.Interval <= 0 {
		return xperr.Invariant("frame interval must be positive, got %d", r.Interval)
	}
	if r.FrameEnd < r.FrameStart {
		return xperr.Invariant("frame range %d..%d is reversed", r.FrameStart, r.FrameEnd)
	}
	if r.Start == r.End {
		return xperr.Invariant("dataref range %v..%v is empty", r.Start, r.End)
	}
	if r.Loop < 0 {
		return xperr.Invariant("loop must not be negative, got %v", r.Loop)
	}
	if r.Loop > 0 && (r.Start < 0 || r.End < 0 || r.Start > r.Loop || r.End > r.Loop) {
		return xperr.Invariant("dataref range %v..%v leaves loop 0..%v", r.Start, r.End, r.Loop)
	}
	return nil
}

// Frames returns the sampled frames.
func (r Range) Frames() []int {
	var out []int
	for f := r.FrameStart; f <= r.FrameEnd; f += r.Interval {
		out = append(out, f)
	}
	return out
}

// FlipbookOptions configures Flipbook.
type FlipbookOptions struct {
	Range
	// ApplyParent bakes the parent chain into each copy and adds the
	// copies at the top of the collection.
	ApplyParent bool
}

// Flipbook adds one copy of src per sampled frame, each carrying src's
// deformed mesh at that frame and shown over its own slice of the dataref
// range. Slice k starts at Start + k·step and runs for step·(1+Overlap).
// src itself is left unchanged. The copies are returned in frame order.
func Flipbook(c *scene.Collection, src *scene.Object, opts FlipbookOptions, meshes MeshEvaluator, log *zap.Logger) ([]*scene.Object, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	parent, world, ok := locate(c, src)
	if !ok {
		return nil, xperr.Reference("object %q is not in collection %q", src.Name, c.Name)
	}

	frames := opts.Frames()
	step := (opts.End - opts.Start) / float32(len(frames))
	lo, hi := math32.Min(opts.Start, opts.End), math32.Max(opts.Start, opts.End)
	lo = math32.Min(lo, lo+step*Overlap)
	hi = math32.Max(hi, hi+step*Overlap)

	var copies []*scene.Object
	for k, f := range frames {
		mesh, err := meshes.EvaluateMesh(src, f)
		if err != nil {
			return nil, xperr.Host(err, "evaluate %q at frame %d", src.Name, f)
		}
		dup := duplicate(src, fmt.Sprintf("%s_%03d", src.Name, k), mesh)
		if opts.ApplyParent {
			dup.Matrix = world
		}

		a := opts.Start + float32(k)*step
		b := a + step*(1+Overlap)
		if a > b {
			a, b = b, a
		}
		dup.Anim = &scene.Animation{ShowHide: []formats.ShowHide{
			{Show: false, V1: lo, V2: a, Dataref: opts.Dataref},
			{Show: false, V1: b, V2: hi, Dataref: opts.Dataref},
			{Show: true, V1: a, V2: b, Dataref: opts.Dataref},
		}}
		copies = append(copies, dup)
		log.Debug("flipbook frame", zap.String("object", dup.Name), zap.Int("frame", f),
			zap.Float32("from", a), zap.Float32("to", b))
	}

	switch {
	case opts.ApplyParent || parent == nil:
		c.Objects = append(c.Objects, copies...)
	default:
		parent.Children = append(parent.Children, copies...)
	}
	log.Info("flipbook created", zap.String("object", src.Name), zap.Int("frames", len(copies)))
	return copies, nil
}

func duplicate(src *scene.Object, name string, mesh *geometry.HostMesh) *scene.Object {
	dup := scene.NewObject(name, scene.KindMesh)
	dup.Matrix = src.Matrix
	dup.Mesh = mesh
	dup.Material = src.Material
	dup.Materials = append([]string(nil), src.Materials...)
	dup.PolyMaterials = append([]int(nil), src.PolyMaterials...)
	if src.LOD != nil {
		lod := *src.LOD
		dup.LOD = &lod
	}
	for k, v := range src.Props {
		dup.SetProp(k, v)
	}
	return dup
}

// locate finds o under c's objects and returns its parent object (nil at
// the top level) and its world transform.
func locate(c *scene.Collection, o *scene.Object) (*scene.Object, xpmath.Mat4, bool) {
	var find func(parent *scene.Object, objs []*scene.Object, frame xpmath.Mat4) (*scene.Object, xpmath.Mat4, bool)
	find = func(parent *scene.Object, objs []*scene.Object, frame xpmath.Mat4) (*scene.Object, xpmath.Mat4, bool) {
		for _, cand := range objs {
			world := frame.Mul(cand.Matrix)
			if cand == o {
				return parent, world, true
			}
			if p, w, ok := find(cand, cand.Children, world); ok {
				return p, w, true
			}
		}
		return nil, xpmath.Mat4{}, false
	}
	return find(nil, c.Objects, xpmath.Identity())
}
