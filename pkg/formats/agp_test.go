package formats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

const agpSample = `I
1000
AG_POINT
TEXTURE ag.png
LAYER_GROUP objects 2
TEXTURE_SCALE 2048 2048
TEXTURE_WIDTH 20
FACADE fac/shed.fac
OBJECT obj/tank.obj
OBJECT obj/light.obj
TILE 0 0 1024 512
	ROTATION 1
	ANCHOR_PT 512 256
	CROP_POLY 0 0 1024 0 1024 512 0 512
	CROP_POLY 0 0 1 1
	FAC 0 6 10 10 100 10 100 80
	TREE 200 200 12 6 0
	TREE_LINE 0 500 1000 500 1
	OBJ_DELTA 300 300 45 1.5 0 0 0
	OBJ_DRAPED 400 300 90 1 2 3
	OBJ_GRADED 500 300 0 0 0 0
	OBJ_SCRAPER 600 300 270 1 0 0
`

func TestParseAutogen(t *testing.T) {
	log, logs := observed()
	a, err := ParseAGP([]byte(agpSample), log)
	require.NoError(t, err)

	assert.Equal(t, "ag.png", a.Material.Albedo)
	assert.Equal(t, "objects", a.Material.LayerGroup)
	assert.Equal(t, float32(2048), a.TextureScaleX)
	assert.Equal(t, float32(20), a.TextureWidth)
	assert.Equal(t, []string{"fac/shed.fac"}, a.Facades)
	assert.Equal(t, []string{"obj/tank.obj", "obj/light.obj"}, a.Objects)

	require.Len(t, a.Tiles, 1)
	tile := a.Tiles[0]
	assert.Equal(t, float32(1024), tile.S2)
	assert.Equal(t, 1, tile.Rotation)
	assert.Equal(t, xpmath.Vec2{X: 512, Y: 256}, tile.Anchor)
	require.Len(t, tile.Crops, 1, "two-point crop dropped")
	assert.Len(t, tile.Crops[0], 4)
	assert.Equal(t, 1, logs.FilterMessage("crop polygon with fewer than 3 points dropped").Len())

	require.Len(t, tile.Facades, 1)
	assert.Equal(t, AgpFacade{Index: 0, Height: 6, Points: []xpmath.Vec2{{X: 10, Y: 10}, {X: 100, Y: 10}, {X: 100, Y: 80}}}, tile.Facades[0])
	assert.Equal(t, []AgpTree{{X: 200, Y: 200, Height: 12, Width: 6, Layer: 0}}, tile.Trees)
	assert.Equal(t, []AgpTreeLine{{X1: 0, Y1: 500, X2: 1000, Y2: 500, Layer: 1}}, tile.TreeLines)

	require.Len(t, tile.Objects, 4)
	assert.Equal(t, AgpObject{Kind: ObjDelta, X: 300, Y: 300, Heading: 45, Z: 1.5}, tile.Objects[0])
	assert.Equal(t, AgpObject{Kind: ObjDraped, X: 400, Y: 300, Heading: 90, Index: 1, ShowLo: 2, ShowHi: 3}, tile.Objects[1])
	assert.Equal(t, ObjGraded, tile.Objects[2].Kind)
	assert.Equal(t, ObjScraper, tile.Objects[3].Kind)
}

func TestAutogenRoundTrip(t *testing.T) {
	a, err := ParseAGP([]byte(agpSample), nil)
	require.NoError(t, err)
	a.Tiles[0].Crops = append(a.Tiles[0].Crops, []xpmath.Vec2{{X: 1, Y: 1}})

	log, logs := observed()
	opts := DefaultWriteOptions()
	opts.Log = log
	data, err := WriteAGP(a, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len())
	assert.Contains(t, string(data), "\tOBJ_DELTA 300 300 45 1.5 0 0 0\n")

	again, err := ParseAGP(data, nil)
	require.NoError(t, err)
	a.Tiles[0].Crops = a.Tiles[0].Crops[:1]
	a.Header = again.Header
	assert.Equal(t, a, again)
}

func TestAutogenAnnotationsBeforeTile(t *testing.T) {
	log, logs := observed()
	a, err := ParseAGP([]byte("I\n1000\nAG_POINT\nTREE 1 1 1 1 0\nTILE 0 0 10 10\n"), log)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("skipping command").Len())
	require.Len(t, a.Tiles, 1)
	assert.Empty(t, a.Tiles[0].Trees)
}

func TestAutogenValidate(t *testing.T) {
	a := &Autogen{}
	_, err := WriteAGP(a, DefaultWriteOptions())
	assert.True(t, errors.Is(err, xperr.ErrInvariant))

	a.Tiles = []*AgpTile{{Objects: []AgpObject{{Kind: ObjDraped, Index: 2}}}}
	a.Objects = []string{"a.obj"}
	assert.True(t, errors.Is(a.Validate(), xperr.ErrInvariant))

	a.Tiles[0].Objects = nil
	a.Tiles[0].Facades = []AgpFacade{{Index: 0}}
	assert.True(t, errors.Is(a.Validate(), xperr.ErrInvariant))
}

func TestAgpTransform(t *testing.T) {
	tr, err := NewAgpTransform(20, 10, xpmath.Vec2{}, xpmath.Vec2{X: 0.5, Y: 0.25}, xpmath.Vec2{X: 100, Y: 50})
	require.NoError(t, err)
	assert.InDelta(t, 102.4, tr.XRatio, 1e-4)
	assert.InDelta(t, 102.4, tr.YRatio, 1e-4)

	px := tr.ToPixel(xpmath.Vec2{X: 1, Y: 1})
	assert.InDelta(t, 202.4, px.X, 1e-3)
	assert.InDelta(t, 152.4, px.Y, 1e-3)
	back := tr.ToScene(px)
	assert.InDelta(t, 1, back.X, 1e-5)
	assert.InDelta(t, 1, back.Y, 1e-5)
	assert.InDelta(t, 204.8, tr.ScaleToPixel(2), 1e-3)

	_, err = NewAgpTransform(0, 10, xpmath.Vec2{}, xpmath.Vec2{X: 1, Y: 1}, xpmath.Vec2{})
	assert.True(t, errors.Is(err, xperr.ErrInvariant))
}
