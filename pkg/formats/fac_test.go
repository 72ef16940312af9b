package formats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/xplane-assets/pkg/geometry"
	"github.com/Faultbox/xplane-assets/pkg/material"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

func sampleFacade() *Facade {
	quad := geometry.Mesh{
		Vertices: []geometry.Vertex{
			{Pos: xpmath.Vec3{}, Normal: xpmath.Vec3{Y: -1}, UV: xpmath.Vec2{}},
			{Pos: xpmath.Vec3{X: 4}, Normal: xpmath.Vec3{Y: -1}, UV: xpmath.Vec2{X: 1}},
			{Pos: xpmath.Vec3{X: 4, Z: 3}, Normal: xpmath.Vec3{Y: -1}, UV: xpmath.Vec2{X: 1, Y: 1}},
			{Pos: xpmath.Vec3{Z: 3}, Normal: xpmath.Vec3{Y: -1}, UV: xpmath.Vec2{Y: 1}},
		},
		Indices: []int{0, 2, 1, 0, 3, 2},
	}
	return &Facade{
		Header:     Header{Platform: PlatformIBM, Version: 1000, Keyword: "FACADE"},
		Wall:       material.Material{Albedo: "wall.png", Normal: "wall_nml.png", NormalTileRatio: 1},
		Roof:       &material.Material{Albedo: "roof.png"},
		Graded:     true,
		Ring:       true,
		RoofScaleX: 10,
		RoofScaleY: 10,
		Objects:    []string{"objects/ac.obj"},
		Floors: []*Floor{{
			Name:         "ground",
			RoofHeights:  []float32{3, 6},
			RoofTwoSided: true,
			RoofObjs:     []RoofObj{{Index: 0, Heading: 90, X: 1.5, Y: 2, ShowLo: 0, ShowHi: 1}},
			Segments: []*FacadeSegment{
				{
					Index:  0,
					Meshes: []*FacadeMesh{{Group: 0, FarLOD: 2000, Mesh: quad}},
					Attachments: []Attachment{
						{Index: 0, Pos: xpmath.Vec3{X: 2, Y: 0.5, Z: 3}, Heading: 180, HasShow: true, ShowLo: 1, ShowHi: 2},
						{Draped: true, Index: 0, Pos: xpmath.Vec3{X: 1}},
					},
				},
				{Index: 0, Curved: true, Meshes: []*FacadeMesh{{Group: 1, FarLOD: 500, Mesh: quad}}},
			},
			Walls: []*Wall{{MinLength: 2, MaxLength: 40, MinHeading: 0, MaxHeading: 360, Name: "main", Spellings: [][]int{{0}, {0, 0}}}},
		}},
	}
}

func TestFacadeRoundTrip(t *testing.T) {
	f := sampleFacade()
	data, err := f.Encode(DefaultWriteOptions())
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "SHADER_ROOF\n")
	assert.Contains(t, text, "ROOF_OBJ_HEADING 0 90 1.5 2 0 1\n")
	assert.Contains(t, text, "\tSEGMENT_CURVED 0\n")
	assert.Contains(t, text, "MESH 0 2000 4 6\n")

	again, err := ParseFAC(data, nil)
	require.NoError(t, err)
	assert.Equal(t, f.Wall.Albedo, again.Wall.Albedo)
	assert.Equal(t, f.Wall.Normal, again.Wall.Normal)
	require.NotNil(t, again.Roof)
	assert.Equal(t, "roof.png", again.Roof.Albedo)
	assert.True(t, again.Graded)
	assert.Equal(t, f.Objects, again.Objects)
	assert.Equal(t, f.Floors, again.Floors)
}

func TestFacadeDefaults(t *testing.T) {
	f, err := ParseFAC([]byte("I\n1000\nFACADE\nTEXTURE wall.png\nFLOOR only\n"), nil)
	require.NoError(t, err)
	assert.True(t, f.Ring)
	assert.False(t, f.Graded)
	assert.Nil(t, f.Roof)
	require.Len(t, f.Floors, 1)
	assert.Equal(t, "only", f.Floors[0].Name)
	assert.Equal(t, "wall.png", f.Wall.Albedo)
}

func TestFacadeHeaderRoofHeight(t *testing.T) {
	log, logs := observed()
	f, err := ParseFAC([]byte("I\n1000\nFACADE\nTEXTURE wall.png\nROOF_HEIGHT 4 8\nFLOOR only\nROOF_HEIGHT 5\n"), log)
	require.NoError(t, err)
	assert.Equal(t, 0, logs.Len())
	assert.Equal(t, []float32{4, 8}, f.RoofHeights)
	assert.Equal(t, []float32{5}, f.Floors[0].RoofHeights)

	data, err := f.Encode(DefaultWriteOptions())
	require.NoError(t, err)
	assert.Contains(t, string(data), "\nROOF_HEIGHT 4 8\n")

	again, err := ParseFAC(data, nil)
	require.NoError(t, err)
	assert.Equal(t, f.RoofHeights, again.RoofHeights)
	assert.Equal(t, f.Floors[0].RoofHeights, again.Floors[0].RoofHeights)
}

func TestFacadeCommandsOutsideScope(t *testing.T) {
	log, logs := observed()
	f, err := ParseFAC([]byte(`I
1000
FACADE
SEGMENT 0
VERTEX 0 0 0 0 1 0 0 0
SPELLING 0
FLOOR f
MESH 0 100 1 0
SEGMENT 0
MESH 0 100 2 0
VERTEX 0 0 0 0 1 0 0 0
`), log)
	require.NoError(t, err)
	assert.Equal(t, 4, logs.FilterMessage("skipping command").Len())
	assert.Equal(t, 1, logs.FilterMessage("MESH counts disagree with data").Len())
	require.Len(t, f.Floors[0].Segments, 1)
	assert.Len(t, f.Floors[0].Segments[0].Meshes[0].Vertices, 1)
}

func TestFacadeValidate(t *testing.T) {
	f := sampleFacade()
	f.Floors[0].Walls[0].Spellings = [][]int{{3}}
	_, err := WriteFAC(f, DefaultWriteOptions())
	assert.True(t, errors.Is(err, xperr.ErrInvariant))

	f = sampleFacade()
	f.Floors[0].Walls[0].Spellings = nil
	assert.True(t, errors.Is(f.Validate(), xperr.ErrInvariant))

	f = sampleFacade()
	f.Objects = nil
	assert.True(t, errors.Is(f.Validate(), xperr.ErrInvariant))

	f = sampleFacade()
	f.Floors[0].Segments[0].Meshes[0].Indices = []int{0, 1}
	assert.True(t, errors.Is(f.Validate(), xperr.ErrInvariant))
}

func TestFloorSegment(t *testing.T) {
	fl := sampleFacade().Floors[0]
	assert.False(t, fl.Segment(0, false).Curved)
	assert.True(t, fl.Segment(0, true).Curved)
	assert.Nil(t, fl.Segment(1, false))
}
