package math

import (
	"testing"
)

func TestVec2Add(t *testing.T) {
	a := Vec2{1, 2}
	b := Vec2{3, 4}
	got := a.Add(b)
	want := Vec2{4, 6}
	if got != want {
		t.Errorf("Vec2.Add() = %v, want %v", got, want)
	}
}

func TestVec2Length(t *testing.T) {
	v := Vec2{3, 4}
	got := v.Length()
	want := float32(5)
	if got != want {
		t.Errorf("Vec2.Length() = %v, want %v", got, want)
	}
}

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	n := Vec3{3, 0, 4}.Normalize()
	if l := n.Length(); l < 0.999 || l > 1.001 {
		t.Errorf("Vec3.Normalize().Length() = %v, want ~1", l)
	}
	if (Vec3{}).Normalize() != (Vec3{}) {
		t.Error("zero vector should normalize to zero")
	}
}

func TestCoordinateSwap(t *testing.T) {
	tests := []struct {
		name string
		file Vec3
		want Vec3
	}{
		{"x axis", Vec3{1, 0, 0}, Vec3{1, 0, 0}},
		{"y up becomes z up", Vec3{0, 1, 0}, Vec3{0, 0, 1}},
		{"z south becomes -y", Vec3{0, 0, 1}, Vec3{0, -1, 0}},
		{"mixed", Vec3{1, 2, 3}, Vec3{1, -3, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromXPlane(tt.file)
			if !got.ApproxEqual(tt.want, 0) {
				t.Errorf("FromXPlane(%v) = %v, want %v", tt.file, got, tt.want)
			}
			if back := ToXPlane(got); !back.ApproxEqual(tt.file, 0) {
				t.Errorf("ToXPlane(FromXPlane(%v)) = %v", tt.file, back)
			}
		})
	}
}
