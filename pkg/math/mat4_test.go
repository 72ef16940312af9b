package math

import (
	"testing"

	"github.com/chewxy/math32"
)

func abs(x float32) float32 {
	return math32.Abs(x)
}

func TestIdentity(t *testing.T) {
	m := Identity()
	// Diagonal should be 1
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	// Off-diagonal should be 0
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate(10, 20, 30)
	got := m.TransformPoint(Vec3{1, 2, 3})
	want := Vec3{11, 22, 33}
	if got != want {
		t.Errorf("TransformPoint: got %v, want %v", got, want)
	}
}

func TestRotateY90(t *testing.T) {
	m := RotateY(math32.Pi / 2)
	result := m.TransformPoint(Vec3{1, 0, 0})

	// After 90 degree Y rotation, (1,0,0) should become approximately (0,0,-1)
	if abs(result.X) > 0.001 || abs(result.Y) > 0.001 || abs(result.Z+1) > 0.001 {
		t.Errorf("RotateY 90: got %v, want (0, 0, -1)", result)
	}
}

func TestInverse(t *testing.T) {
	m := Translate(1, 2, 3).Mul(RotateZ(0.7)).Mul(Scale(2, 2, 2))
	got := m.Mul(m.Inverse())
	if !got.ApproxEqual(Identity(), 1e-5) {
		t.Errorf("M * M^-1 = %v, want identity", got)
	}
	if Scale(0, 1, 1).Inverse() != Identity() {
		t.Error("singular matrix should invert to identity")
	}
}

func TestNormalMatrixNonUniformScale(t *testing.T) {
	// A 45 degree slope squashed along X: the normal must tilt towards X.
	m := Scale(0.5, 1, 1)
	n := Vec3{1, 0, 1}.Normalize()
	got := m.TransformNormal(n)
	want := Vec3{2, 0, 1}.Normalize()
	if !got.ApproxEqual(want, 1e-5) {
		t.Errorf("TransformNormal = %v, want %v", got, want)
	}
}

func TestTranslationHelpers(t *testing.T) {
	m := Translate(4, 5, 6).Mul(RotateX(1))
	if m.Translation() != (Vec3{4, 5, 6}) {
		t.Errorf("Translation() = %v", m.Translation())
	}
	if m.WithoutTranslation().Translation() != (Vec3{}) {
		t.Error("WithoutTranslation should clear translation")
	}
}
