package math

import (
	"testing"

	"github.com/chewxy/math32"
)

func TestAlignZ(t *testing.T) {
	axes := []Vec3{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{0, 0, -1},
		{1, 1, 1},
	}
	for _, axis := range axes {
		q := AlignZ(axis)
		got := q.Rotate(Vec3{0, 0, 1})
		if !got.ApproxEqual(axis.Normalize(), 1e-4) {
			t.Errorf("AlignZ(%v) maps +Z to %v", axis, got)
		}
	}
}

func TestAxisAngleRoundTrip(t *testing.T) {
	axis := Vec3{0, 1, 0}
	q := QuatFromAxisAngle(axis, math32.Pi/3)
	gotAxis, gotAngle := q.AxisAngle()
	if !gotAxis.ApproxEqual(axis, 1e-5) {
		t.Errorf("axis = %v, want %v", gotAxis, axis)
	}
	if abs(gotAngle-math32.Pi/3) > 1e-5 {
		t.Errorf("angle = %v, want %v", gotAngle, math32.Pi/3)
	}

	_, zero := QuatIdentity().AxisAngle()
	if zero != 0 {
		t.Errorf("identity angle = %v, want 0", zero)
	}
}

func TestQuatToMat4MatchesRotateAxis(t *testing.T) {
	axis := Vec3{0, 0, 1}
	a := QuatFromAxisAngle(axis, 0.5).ToMat4()
	b := RotateAxis(axis, 0.5)
	if !a.ApproxEqual(b, 1e-5) {
		t.Errorf("quaternion matrix %v != axis matrix %v", a, b)
	}
}

func TestDegRad(t *testing.T) {
	if abs(Deg(math32.Pi)-180) > 1e-4 {
		t.Errorf("Deg(pi) = %v", Deg(math32.Pi))
	}
	if abs(Rad(90)-math32.Pi/2) > 1e-6 {
		t.Errorf("Rad(90) = %v", Rad(90))
	}
}

func TestQuatFromMat4(t *testing.T) {
	axis := Vec3{1, 2, 2}.Normalize()
	m := Translate(4, 5, 6).Mul(RotateAxis(axis, Rad(40)))
	q := QuatFromMat4(m)
	if !q.ApproxEqual(QuatFromAxisAngle(axis, Rad(40)), 1e-5) {
		t.Errorf("QuatFromMat4 = %v", q)
	}
	gotAxis, gotAngle := q.AxisAngle()
	if !gotAxis.ApproxEqual(axis, 1e-4) || math32.Abs(Deg(gotAngle)-40) > 1e-3 {
		t.Errorf("AxisAngle = %v, %v", gotAxis, Deg(gotAngle))
	}
}
