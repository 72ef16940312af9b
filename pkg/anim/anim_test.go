package anim

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/xplane-assets/pkg/geometry"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/scene"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// wave deforms a triangle by lifting its apex one unit per frame.
type wave struct {
	calls []int
	fail  int
}

func (w *wave) EvaluateMesh(o *scene.Object, frame int) (*geometry.HostMesh, error) {
	w.calls = append(w.calls, frame)
	if w.fail != 0 && frame == w.fail {
		return nil, fmt.Errorf("modifier stack failed")
	}
	h := &geometry.HostMesh{Positions: []xpmath.Vec3{{}, {X: 1}, {Y: 1, Z: float32(frame)}}}
	for i := range h.Positions {
		h.Loops = append(h.Loops, geometry.Loop{Vert: i, Normal: xpmath.Vec3{Z: 1}})
	}
	h.Polys = [][]int{{0, 1, 2}}
	return h, nil
}

// swing returns a transform that climbs 0.1 per frame along local Y and
// turns 10 degrees per frame about local X.
type swing struct {
	rest xpmath.Mat4
}

func (s swing) at(frame int) xpmath.Mat4 {
	f := float32(frame)
	return s.rest.Mul(xpmath.Translate(0, f*0.1, 0)).Mul(xpmath.RotateX(xpmath.Rad(f * 10)))
}

func (s swing) EvaluateTransform(o *scene.Object, frame int) (xpmath.Mat4, error) {
	return s.at(frame), nil
}

type twist struct{}

func (twist) EvaluateTransform(o *scene.Object, frame int) (xpmath.Mat4, error) {
	switch {
	case frame < 5:
		return xpmath.RotateX(xpmath.Rad(float32(frame) * 10)), nil
	default:
		return xpmath.RotateY(xpmath.Rad(float32(frame) * 10)), nil
	}
}

type still struct{}

func (still) EvaluateTransform(o *scene.Object, frame int) (xpmath.Mat4, error) {
	return xpmath.Translate(1, 1, 1), nil
}

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return zap.New(core), logs
}

func flag() (*scene.Collection, *scene.Object, *scene.Object) {
	cloth := scene.NewObject("cloth", scene.KindMesh)
	cloth.Material = "flag"
	cloth.Matrix = xpmath.Translate(0, 0, 2)
	pole := scene.NewObject("pole", scene.KindEmpty)
	pole.Matrix = xpmath.Translate(5, 0, 0)
	pole.Children = []*scene.Object{cloth}
	return &scene.Collection{Name: "flag", Objects: []*scene.Object{pole}}, pole, cloth
}

func flipRange() FlipbookOptions {
	return FlipbookOptions{Range: Range{Dataref: "sim/wind", Start: 0, End: 1, FrameStart: 1, FrameEnd: 4, Interval: 1}}
}

func visibleCopies(copies []*scene.Object, v float32) []string {
	var out []string
	for _, c := range copies {
		if c.Anim.Visible(map[string]float32{"sim/wind": v}) {
			out = append(out, c.Name)
		}
	}
	return out
}

func TestFlipbook(t *testing.T) {
	c, pole, cloth := flag()
	w := &wave{}
	log, logs := observed()

	copies, err := Flipbook(c, cloth, flipRange(), w, log)
	require.NoError(t, err)
	require.Len(t, copies, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, w.calls)
	assert.Equal(t, 1, logs.FilterMessage("flipbook created").Len())

	assert.Len(t, pole.Children, 5, "copies join the source's parent")
	assert.Nil(t, cloth.Anim, "source untouched")
	for k, cp := range copies {
		assert.Equal(t, fmt.Sprintf("cloth_%03d", k), cp.Name)
		assert.Equal(t, "flag", cp.Material)
		assert.Equal(t, cloth.Matrix, cp.Matrix)
		assert.Equal(t, float32(k+1), cp.Mesh.Positions[2].Z)
		require.Len(t, cp.Anim.ShowHide, 3)
	}

	assert.Equal(t, []string{"cloth_000"}, visibleCopies(copies, 0.1))
	assert.Equal(t, []string{"cloth_001"}, visibleCopies(copies, 0.4))
	assert.Equal(t, []string{"cloth_002", "cloth_003"}, visibleCopies(copies, 0.76), "slices overlap")
	assert.Equal(t, []string{"cloth_003"}, visibleCopies(copies, 1))
}

func TestFlipbookExportsShowHide(t *testing.T) {
	c, _, cloth := flag()
	copies, err := Flipbook(c, cloth, flipRange(), &wave{}, nil)
	require.NoError(t, err)
	actions, err := copies[1].Anim.Actions()
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, copies[1].Anim, scene.AnimationFrom(actions))
}

func TestFlipbookReversedRange(t *testing.T) {
	c, _, cloth := flag()
	opts := flipRange()
	opts.Start, opts.End = 1, 0
	copies, err := Flipbook(c, cloth, opts, &wave{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"cloth_000"}, visibleCopies(copies, 0.9))
	assert.Equal(t, []string{"cloth_003"}, visibleCopies(copies, 0))
}

func TestFlipbookApplyParent(t *testing.T) {
	c, pole, cloth := flag()
	opts := flipRange()
	opts.ApplyParent = true
	opts.Interval = 2
	copies, err := Flipbook(c, cloth, opts, &wave{}, nil)
	require.NoError(t, err)
	require.Len(t, copies, 2)
	assert.Len(t, pole.Children, 1)
	assert.Len(t, c.Objects, 3)
	assert.True(t, copies[0].Matrix.ApproxEqual(xpmath.Translate(5, 0, 2), 1e-6))
}

func TestFlipbookErrors(t *testing.T) {
	c, _, cloth := flag()

	_, err := Flipbook(c, scene.NewObject("stray", scene.KindMesh), flipRange(), &wave{}, nil)
	assert.True(t, errors.Is(err, xperr.ErrReference))

	bad := flipRange()
	bad.Interval = 0
	_, err = Flipbook(c, cloth, bad, &wave{}, nil)
	assert.True(t, errors.Is(err, xperr.ErrInvariant))

	before := len(c.Objects[0].Children)
	_, err = Flipbook(c, cloth, flipRange(), &wave{fail: 3}, nil)
	assert.True(t, errors.Is(err, xperr.ErrHost))
	assert.Len(t, c.Objects[0].Children, before, "nothing added on failure")
}

func TestRangeValidate(t *testing.T) {
	tests := []struct {
		name string
		r    Range
		ok   bool
	}{
		{"valid", Range{Dataref: "d", End: 1, FrameEnd: 10, Interval: 1}, true},
		{"no dataref", Range{End: 1, FrameEnd: 10, Interval: 1}, false},
		{"reversed frames", Range{Dataref: "d", End: 1, FrameStart: 10, Interval: 1}, false},
		{"empty values", Range{Dataref: "d", FrameEnd: 10, Interval: 1}, false},
		{"outside loop", Range{Dataref: "d", End: 2, Loop: 1, FrameEnd: 10, Interval: 1}, false},
		{"inside loop", Range{Dataref: "d", End: 360, Loop: 360, FrameEnd: 10, Interval: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.validate()
			if (err == nil) != tt.ok {
				t.Errorf("validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestAutoKeyframe(t *testing.T) {
	rest := xpmath.Translate(1, 2, 3).Mul(xpmath.RotateZ(xpmath.Rad(30)))
	s := swing{rest: rest}
	o := scene.NewObject("lever", scene.KindMesh)
	o.Anim = &scene.Animation{ShowHide: nil}
	r := Range{Dataref: "sim/lever", Start: 0, End: 1, FrameStart: 0, FrameEnd: 10, Interval: 2}

	a, err := AutoKeyframe(o, r, s, nil)
	require.NoError(t, err)
	require.Len(t, a.Tracks, 2)
	assert.Nil(t, a.Tracks[0].RotAxis)
	require.NotNil(t, a.Tracks[1].RotAxis)
	assert.InDelta(t, 1, a.Tracks[1].RotAxis.X, 1e-4)
	assert.Len(t, a.Tracks[1].Keys, 6)
	assert.InDelta(t, 100, a.Tracks[1].Keys[5].Angle, 1e-2)
	assert.True(t, o.Matrix.ApproxEqual(rest, 1e-5))

	for f := 0; f <= 10; f++ {
		got := o.Matrix.Mul(a.Matrix(map[string]float32{"sim/lever": r.Value(f)}))
		assert.True(t, got.ApproxEqual(s.at(f), 1e-3), "frame %d: %v != %v", f, got, s.at(f))
	}
}

func TestAutoKeyframeKeepsShowHide(t *testing.T) {
	o := scene.NewObject("lever", scene.KindMesh)
	o.Anim = &scene.Animation{Tracks: []scene.Track{{Keys: []scene.Key{{Loc: xpmath.Vec3{X: 9}}}}}}
	c, _, cloth := flag()
	copies, err := Flipbook(c, cloth, flipRange(), &wave{}, nil)
	require.NoError(t, err)
	o.Anim.ShowHide = copies[0].Anim.ShowHide

	a, err := AutoKeyframe(o, Range{Dataref: "d", End: 1, FrameEnd: 4, Interval: 1}, swing{rest: xpmath.Identity()}, nil)
	require.NoError(t, err)
	assert.Len(t, a.Tracks, 2, "old tracks replaced")
	assert.Equal(t, copies[0].Anim.ShowHide, a.ShowHide)
}

func TestAutoKeyframeAxisChange(t *testing.T) {
	o := scene.NewObject("gimbal", scene.KindMesh)
	_, err := AutoKeyframe(o, Range{Dataref: "d", End: 1, FrameEnd: 9, Interval: 1}, twist{}, nil)
	assert.True(t, errors.Is(err, xperr.ErrInvariant))
}

func TestAutoKeyframeStill(t *testing.T) {
	o := scene.NewObject("rock", scene.KindMesh)
	log, logs := observed()
	a, err := AutoKeyframe(o, Range{Dataref: "d", End: 1, FrameEnd: 4, Interval: 2}, still{}, log)
	require.NoError(t, err)
	assert.Empty(t, a.Tracks)
	assert.Equal(t, 1, logs.FilterMessage("object does not move over the frame range").Len())
	assert.Equal(t, xpmath.Translate(1, 1, 1), o.Matrix)
}

func TestAutoKeyframeSingleFrame(t *testing.T) {
	o := scene.NewObject("rock", scene.KindMesh)
	_, err := AutoKeyframe(o, Range{Dataref: "d", End: 1, FrameStart: 3, FrameEnd: 3, Interval: 1}, still{}, nil)
	assert.True(t, errors.Is(err, xperr.ErrInvariant))
}
