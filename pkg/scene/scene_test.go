package scene

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"

	"github.com/Faultbox/xplane-assets/pkg/formats"
	"github.com/Faultbox/xplane-assets/pkg/material"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return zap.New(core), logs
}

func uv(x, y float32) xpmath.Vec2 { return xpmath.Vec2{X: x, Y: y} }

// square is a quad of side 2 centered on the origin at height z.
func square(z float32) *Object {
	o := NewObject("square", KindMesh)
	o.Mesh = flatQuad(-1, -1, 1, 1, z, uv(0, 0), uv(1, 1))
	o.Material = "mat"
	return o
}

func sceneWith(mats map[string]string) *Scene {
	s := New("")
	for name, alb := range mats {
		s.Materials[name] = &material.Material{Name: name, Albedo: alb}
	}
	return s
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")

	s := sceneWith(map[string]string{"mat": "//textures/a.png"})
	body := square(0)
	body.Matrix = xpmath.Translate(1, 2, 3)
	body.SetProp(PropRole, RoleBase)
	lamp := NewObject("lamp", KindLight)
	lamp.Light = &Light{Type: formats.LightNamed, Name: "airplane_beacon"}
	body.Children = []*Object{lamp}
	s.Collections = []*Collection{{
		Name: "box", Export: true, Type: ExportOBJ,
		Objects: []*Object{body},
		Object:  &ObjectSettings{Globals: formats.Globals{CockpitLit: true}},
	}}
	require.NoError(t, s.Save(path, false))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, again.ProjectFile)
	require.Contains(t, again.Materials, "mat")
	assert.Equal(t, "//textures/a.png", again.Materials["mat"].Albedo)

	c := again.Collection("box")
	require.NotNil(t, c)
	assert.Equal(t, ExportOBJ, c.Type)
	assert.True(t, c.Object.Globals.CockpitLit)
	require.Len(t, c.Objects, 1)
	got := c.Objects[0]
	assert.Equal(t, body.Matrix, got.Matrix)
	assert.Equal(t, RoleBase, got.Role())
	assert.Equal(t, body.Mesh, got.Mesh)
	require.Len(t, got.Children, 1)
	assert.Equal(t, xpmath.Identity(), got.Children[0].Matrix)
	assert.Equal(t, "airplane_beacon", got.Children[0].Light.Name)
}

func TestLoadDefaultsMissingMatrix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")
	s := New(path)
	s.Collections = []*Collection{{Name: "c", Objects: []*Object{{Name: "e", Kind: KindEmpty}}}}
	require.NoError(t, s.Save(path, false))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, xpmath.Identity(), again.Collections[0].Objects[0].Matrix)
}

func TestSaveBacksUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")
	s := New(path)
	require.NoError(t, s.Save(path, true))
	require.NoError(t, s.Save(path, true))

	backups, err := filepath.Glob(filepath.Join(dir, "project_backup_*.yaml"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestAddMaterialNames(t *testing.T) {
	s := New("")
	a, b, c := &material.Material{}, &material.Material{}, &material.Material{}
	assert.Equal(t, "wall", s.AddMaterial("wall", a))
	assert.Equal(t, "wall.001", s.AddMaterial("wall", b))
	assert.Equal(t, "wall.002", s.AddMaterial("wall", c))
	assert.Equal(t, "wall.001", b.Name)
	assert.Equal(t, "Material", s.AddMaterial("", &material.Material{}))

	_, err := s.Material("missing")
	assert.Error(t, err)
}

func TestProps(t *testing.T) {
	o := NewObject("o", KindMesh)
	_, ok := o.Prop(PropAutoSplit)
	assert.False(t, ok)
	for _, v := range []string{"", "0", "false", "False"} {
		o.SetProp(PropAutoSplit, v)
		_, ok = o.Prop(PropAutoSplit)
		assert.False(t, ok, v)
	}
	o.SetProp(PropAutoSplit, "1")
	_, ok = o.Prop(PropAutoSplit)
	assert.True(t, ok)
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "road.lin", (&Collection{Name: "road", Type: ExportLIN}).FileName())
	assert.Equal(t, "other.lin", (&Collection{Name: "road", Type: ExportLIN, File: "other.lin"}).FileName())

	typ, ok := ExportTypeOf("a/b/house.fac")
	assert.True(t, ok)
	assert.Equal(t, ExportFAC, typ)
	_, ok = ExportTypeOf("notes.txt")
	assert.False(t, ok)
}

func TestAllObjectsSkipsExportedChildren(t *testing.T) {
	inner := &Collection{Name: "inner", Objects: []*Object{square(0)}}
	own := &Collection{Name: "own", Export: true, Objects: []*Object{square(1)}}
	parent := square(0)
	parent.Matrix = xpmath.Translate(0, 0, 5)
	child := square(0)
	child.Matrix = xpmath.Translate(1, 0, 0)
	parent.Children = []*Object{child}
	c := &Collection{Name: "c", Objects: []*Object{parent}, Children: []*Collection{inner, own}}

	placed := c.AllObjects()
	require.Len(t, placed, 3)
	assert.Equal(t, xpmath.Vec3{X: 1, Z: 5}, placed[1].World.Translation())
}

func TestAnimationActions(t *testing.T) {
	z := xpmath.Vec3{Z: 1}
	a := &Animation{
		Tracks: []Track{
			{Keys: []Key{{Loc: xpmath.Vec3{X: 1}}}},
			{RotAxis: &z, Keys: []Key{{Angle: 45}}},
			{Dataref: "sim/door", Loop: 2, RotAxis: &z, Keys: []Key{{Value: 0, Angle: 0}, {Value: 1, Angle: 90}}},
			{Dataref: "sim/gear", Keys: []Key{{Value: 0}, {Value: 1, Loc: xpmath.Vec3{Z: -1}}}},
		},
		ShowHide: []formats.ShowHide{{Show: false, V1: 0, V2: 0.5, Dataref: "sim/flash"}},
	}
	actions, err := a.Actions()
	require.NoError(t, err)
	require.Len(t, actions, 6)
	assert.Equal(t, formats.LocKeyframe{Offset: xpmath.Vec3{X: 1}}, actions[0])
	assert.Equal(t, formats.RotKeyframe{Axis: z, Angle: 45}, actions[1])
	assert.Equal(t, formats.RotTableVectorTransform{Axis: z}, actions[2])
	assert.IsType(t, &formats.RotTable{}, actions[3])
	assert.IsType(t, &formats.LocTable{}, actions[4])
	assert.IsType(t, &formats.ShowHideSeries{}, actions[5])

	back := AnimationFrom(actions)
	assert.Equal(t, a, back)
}

func TestAnimationWithoutKeysFails(t *testing.T) {
	_, err := (&Animation{Tracks: []Track{{Dataref: "sim/x"}}}).Actions()
	assert.Error(t, err)
	assert.False(t, (*Animation)(nil).Animated())
}

func TestAnimationInFrame(t *testing.T) {
	x := xpmath.Vec3{X: 1}
	a := &Animation{Tracks: []Track{
		{Dataref: "sim/a", RotAxis: &x, Keys: []Key{{Value: 0}, {Value: 1, Angle: 30}}},
		{Dataref: "sim/b", Keys: []Key{{Value: 0}, {Value: 1, Loc: xpmath.Vec3{X: 2}}}},
	}}
	got := a.inFrame(xpmath.RotateZ(xpmath.Rad(90)))
	assert.InDelta(t, 0, got.Tracks[0].RotAxis.X, 1e-6)
	assert.InDelta(t, 1, got.Tracks[0].RotAxis.Y, 1e-6)
	assert.InDelta(t, 2, got.Tracks[1].Keys[1].Loc.Y, 1e-5)
	assert.Equal(t, float32(1), a.Tracks[0].RotAxis.X, "source untouched")
}

func TestTrackAt(t *testing.T) {
	tr := Track{Dataref: "d", Keys: []Key{
		{Value: 0, Loc: xpmath.Vec3{}, Angle: 0},
		{Value: 1, Loc: xpmath.Vec3{X: 2}, Angle: 90},
		{Value: 3, Loc: xpmath.Vec3{X: 2, Y: 4}, Angle: 0},
	}}
	tests := []struct {
		value float32
		loc   xpmath.Vec3
		angle float32
	}{
		{-1, xpmath.Vec3{}, 0},
		{0.5, xpmath.Vec3{X: 1}, 45},
		{2, xpmath.Vec3{X: 2, Y: 2}, 45},
		{5, xpmath.Vec3{X: 2, Y: 4}, 0},
	}
	for _, tt := range tests {
		k := tr.At(tt.value)
		assert.True(t, k.Loc.ApproxEqual(tt.loc, 1e-6), "At(%v).Loc = %v", tt.value, k.Loc)
		assert.InDelta(t, tt.angle, k.Angle, 1e-4, "At(%v).Angle", tt.value)
	}

	down := Track{Keys: []Key{{Value: 1, Angle: 0}, {Value: 0, Angle: 90}}}
	assert.InDelta(t, 45, down.At(0.5).Angle, 1e-4)
	assert.InDelta(t, 90, down.At(-2).Angle, 1e-4)

	loop := Track{Loop: 1, Keys: []Key{{Value: 0, Angle: 0}, {Value: 1, Angle: 360}}}
	assert.InDelta(t, 90, loop.At(2.25).Angle, 1e-3)
}

func TestAnimationMatrixAndVisible(t *testing.T) {
	z := xpmath.Vec3{Z: 1}
	a := &Animation{
		Tracks: []Track{
			{Dataref: "slide", Keys: []Key{{Value: 0}, {Value: 1, Loc: xpmath.Vec3{X: 4}}}},
			{Dataref: "turn", RotAxis: &z, Keys: []Key{{Value: 0}, {Value: 1, Angle: 90}}},
		},
		ShowHide: []formats.ShowHide{
			{Show: false, V1: 0, V2: 1, Dataref: "gear"},
			{Show: true, V1: 0.5, V2: 0.6, Dataref: "gear"},
		},
	}
	m := a.Matrix(map[string]float32{"slide": 0.5, "turn": 1})
	assert.True(t, m.TransformPoint(xpmath.Vec3{X: 1}).ApproxEqual(xpmath.Vec3{X: 2, Y: 1}, 1e-5))
	assert.Equal(t, xpmath.Identity(), (*Animation)(nil).Matrix(nil))

	assert.False(t, a.Visible(map[string]float32{"gear": 0.2}))
	assert.True(t, a.Visible(map[string]float32{"gear": 0.55}))
	assert.True(t, a.Visible(map[string]float32{"gear": 2}))
}
