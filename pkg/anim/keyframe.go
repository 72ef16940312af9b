package anim

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/scene"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

const (
	// moveEpsilon is the smallest offset or angle (degrees) that counts as motion.
	moveEpsilon = 1e-5
	// axisTolerance bounds how far a frame's rotation axis may wander from
	// the track axis.
	axisTolerance = 1e-3
)

// Value returns the dataref value r assigns to a host frame.
func (r Range) Value(frame int) float32 {
	if r.FrameEnd == r.FrameStart {
		return r.Start
	}
	f := float32(frame-r.FrameStart) / float32(r.FrameEnd-r.FrameStart)
	return r.Start + f*(r.End-r.Start)
}

type sample struct {
	value float32
	loc   xpmath.Vec3
	axis  xpmath.Vec3
	angle float32
}

// AutoKeyframe samples o's host transform at every interval of r and
// replaces o's transform tracks with a translation track and a rotation
// track keyed by the dataref. Offsets and rotations are relative to the
// transform at the first frame, which becomes o's rest matrix; both are
// expressed in o's local frame. A track with no motion is left out.
// Show/hide rules on o are kept.
func AutoKeyframe(o *scene.Object, r Range, transforms TransformEvaluator, log *zap.Logger) (*scene.Animation, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	if r.FrameEnd == r.FrameStart {
		return nil, xperr.Invariant("auto keyframe needs more than one frame")
	}

	var samples []sample
	var rest xpmath.Mat4
	var restInv xpmath.Mat4
	var restRot xpmath.Quat
	for i, f := range r.Frames() {
		m, err := transforms.EvaluateTransform(o, f)
		if err != nil {
			return nil, xperr.Host(err, "evaluate %q at frame %d", o.Name, f)
		}
		if i == 0 {
			rest = m
			restInv = m.WithoutTranslation().Inverse()
			restRot = xpmath.QuatFromMat4(m)
		}
		rel := conjugate(restRot).Mul(xpmath.QuatFromMat4(m))
		axis, angle := rel.AxisAngle()
		samples = append(samples, sample{
			value: r.Value(f),
			loc:   restInv.TransformDirection(m.Translation().Sub(rest.Translation())),
			axis:  axis,
			angle: xpmath.Deg(angle),
		})
	}

	axis, err := trackAxis(samples)
	if err != nil {
		return nil, xperr.Invariant("object %q: %v", o.Name, err)
	}

	moved, turned := false, false
	loc := scene.Track{Dataref: r.Dataref, Loop: r.Loop}
	rot := scene.Track{Dataref: r.Dataref, Loop: r.Loop, RotAxis: &axis}
	for _, s := range samples {
		angle := s.angle
		if s.axis.Dot(axis) < 0 {
			angle = -angle
		}
		loc.Keys = append(loc.Keys, scene.Key{Value: s.value, Loc: s.loc})
		rot.Keys = append(rot.Keys, scene.Key{Value: s.value, Angle: angle})
		moved = moved || s.loc.Length() > moveEpsilon
		turned = turned || math32.Abs(angle) > moveEpsilon
	}

	a := &scene.Animation{}
	if o.Anim != nil {
		a.ShowHide = o.Anim.ShowHide
	}
	if moved {
		a.Tracks = append(a.Tracks, loc)
	}
	if turned {
		a.Tracks = append(a.Tracks, rot)
	}
	if !moved && !turned {
		log.Warn("object does not move over the frame range", zap.String("object", o.Name),
			zap.Int("from", r.FrameStart), zap.Int("to", r.FrameEnd))
	}
	o.Matrix = rest
	o.Anim = a
	log.Info("keyframes inserted", zap.String("object", o.Name), zap.String("dataref", r.Dataref),
		zap.Int("keys", len(samples)), zap.Int("tracks", len(a.Tracks)))
	return a, nil
}

// trackAxis picks the rotation axis of the largest sampled rotation and
// checks every other rotation turns about the same line.
func trackAxis(samples []sample) (xpmath.Vec3, error) {
	axis := xpmath.Vec3{Z: 1}
	var largest float32
	for _, s := range samples {
		if s.angle > largest {
			largest, axis = s.angle, s.axis
		}
	}
	for _, s := range samples {
		if s.angle <= moveEpsilon {
			continue
		}
		if math32.Abs(math32.Abs(s.axis.Dot(axis))-1) > axisTolerance {
			return axis, errors.Errorf("rotation axis changes from %v to %v", axis, s.axis)
		}
	}
	return axis, nil
}

func conjugate(q xpmath.Quat) xpmath.Quat {
	return xpmath.Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W}
}
