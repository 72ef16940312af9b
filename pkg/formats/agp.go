package formats

import (
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/material"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// AgpPage is the pixel size of the page tile coordinates refer to.
const AgpPage = 4096

// Autogen is a decoded .agp file. Tile annotations are in pixels.
type Autogen struct {
	Header   Header
	Material material.Material

	TextureScaleX float32
	TextureScaleY float32
	TextureWidth  float32
	TextureTile   *TextureTile

	Facades []string
	Objects []string
	Tiles   []*AgpTile
}

// AgpTile is one TILE record and its annotations.
type AgpTile struct {
	// S1, T1, S2, T2 bound the tile on the page in pixels.
	S1, T1, S2, T2 float32
	Rotation       int
	Anchor         xpmath.Vec2

	Crops     [][]xpmath.Vec2
	Facades   []AgpFacade
	Trees     []AgpTree
	TreeLines []AgpTreeLine
	Objects   []AgpObject
}

// AgpFacade is a FAC annotation.
type AgpFacade struct {
	Index  int
	Height float32
	Points []xpmath.Vec2
}

// AgpTree is a TREE annotation.
type AgpTree struct {
	X, Y   float32
	Height float32
	Width  float32
	Layer  int
}

// AgpTreeLine is a TREE_LINE annotation.
type AgpTreeLine struct {
	X1, Y1 float32
	X2, Y2 float32
	Layer  int
}

// AgpObjectKind is the command placing an object.
type AgpObjectKind int

// Object placement kinds.
const (
	ObjDelta AgpObjectKind = iota
	ObjDraped
	ObjGraded
	ObjScraper
)

var agpObjectCommands = map[AgpObjectKind]string{
	ObjDelta:   "OBJ_DELTA",
	ObjDraped:  "OBJ_DRAPED",
	ObjGraded:  "OBJ_GRADED",
	ObjScraper: "OBJ_SCRAPER",
}

// AgpObject is an OBJ_* annotation. Z is only used by OBJ_DELTA.
type AgpObject struct {
	Kind    AgpObjectKind
	X, Y    float32
	Heading float32
	Z       float32
	Index   int
	ShowLo  int
	ShowHi  int
}

// Kind implements Asset.
func (a *Autogen) Kind() Kind { return KindAGP }

// Encode implements Asset.
func (a *Autogen) Encode(opts WriteOptions) ([]byte, error) { return WriteAGP(a, opts) }

// AgpTransform maps scene meters to page pixels: pixel = ratio*scene + anchor.
type AgpTransform struct {
	XRatio  float32
	YRatio  float32
	AnchorX float32
	AnchorY float32
}

// NewAgpTransform derives the pixel-per-meter ratios from the base tile's
// size in meters and its UV extent on the page.
func NewAgpTransform(widthM, heightM float32, uvMin, uvMax, anchor xpmath.Vec2) (AgpTransform, error) {
	if widthM == 0 || heightM == 0 {
		return AgpTransform{}, xperr.Invariant("base tile has zero size %gx%g", widthM, heightM)
	}
	return AgpTransform{
		XRatio:  (uvMax.X - uvMin.X) * AgpPage / widthM,
		YRatio:  (uvMax.Y - uvMin.Y) * AgpPage / heightM,
		AnchorX: anchor.X,
		AnchorY: anchor.Y,
	}, nil
}

// ToPixel converts scene coordinates to pixels.
func (t AgpTransform) ToPixel(p xpmath.Vec2) xpmath.Vec2 {
	return xpmath.Vec2{X: t.XRatio*p.X + t.AnchorX, Y: t.YRatio*p.Y + t.AnchorY}
}

// ToScene converts pixels to scene coordinates.
func (t AgpTransform) ToScene(p xpmath.Vec2) xpmath.Vec2 {
	return xpmath.Vec2{X: (p.X - t.AnchorX) / t.XRatio, Y: (p.Y - t.AnchorY) / t.YRatio}
}

// ScaleToPixel converts a length in meters to pixels along X.
func (t AgpTransform) ScaleToPixel(m float32) float32 { return m * t.XRatio }

// ParseAGPFile reads and parses an .agp file.
func ParseAGPFile(path string, log *zap.Logger) (*Autogen, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xperr.IO(err, "reading %s", path)
	}
	return ParseAGP(data, log)
}

// ParseAGP parses an .agp file.
func ParseAGP(data []byte, log *zap.Logger) (*Autogen, error) {
	log = nopIfNil(log)
	h, body, err := readHeader(scanLines(data), "AG_POINT")
	if err != nil {
		return nil, err
	}
	a := &Autogen{Header: h}
	a.Material.Draped = true
	var tile *AgpTile
	for _, c := range body {
		if tile == nil && readPreamble(c, &a.Material, log) {
			continue
		}
		next, err := a.command(c, tile, log)
		if err != nil {
			warnSkip(log, c, err)
			continue
		}
		tile = next
	}
	return a, nil
}

func points(c command, from int) ([]xpmath.Vec2, error) {
	n := c.args() - from
	if n%2 != 0 {
		return nil, xperr.Format(c.line, "%s: odd number of coordinates", c.name())
	}
	v, err := c.floats(from, n)
	if err != nil {
		return nil, err
	}
	pts := make([]xpmath.Vec2, 0, n/2)
	for i := 0; i < n; i += 2 {
		pts = append(pts, xpmath.Vec2{X: v[i], Y: v[i+1]})
	}
	return pts, nil
}

func (a *Autogen) command(c command, tile *AgpTile, log *zap.Logger) (*AgpTile, error) {
	inTile := func() error {
		if tile == nil {
			return xperr.Format(c.line, "%s before TILE", c.name())
		}
		return nil
	}
	switch c.name() {
	case "TEXTURE_SCALE":
		if err := c.need(2); err != nil {
			return tile, err
		}
		v, err := c.floats(0, 2)
		if err != nil {
			return tile, err
		}
		a.TextureScaleX, a.TextureScaleY = v[0], v[1]
	case "TEXTURE_WIDTH":
		if err := c.need(1); err != nil {
			return tile, err
		}
		v, err := c.float(0)
		if err != nil {
			return tile, err
		}
		a.TextureWidth = v
	case "TEXTURE_TILE":
		t, err := parseTextureTile(c)
		if err != nil {
			return tile, err
		}
		a.TextureTile = t
	case "FACADE":
		if err := c.need(1); err != nil {
			return tile, err
		}
		a.Facades = append(a.Facades, assetPath(c.rest(0)))
	case "OBJECT":
		if err := c.need(1); err != nil {
			return tile, err
		}
		a.Objects = append(a.Objects, assetPath(c.rest(0)))
	case "TILE":
		if err := c.need(4); err != nil {
			return tile, err
		}
		v, err := c.floats(0, 4)
		if err != nil {
			return tile, err
		}
		t := &AgpTile{S1: v[0], T1: v[1], S2: v[2], T2: v[3]}
		a.Tiles = append(a.Tiles, t)
		return t, nil
	case "ROTATION":
		if err := inTile(); err != nil {
			return tile, err
		}
		if err := c.need(1); err != nil {
			return tile, err
		}
		v, err := c.integer(0)
		if err != nil {
			return tile, err
		}
		tile.Rotation = v
	case "ANCHOR_PT":
		if err := inTile(); err != nil {
			return tile, err
		}
		if err := c.need(2); err != nil {
			return tile, err
		}
		v, err := c.floats(0, 2)
		if err != nil {
			return tile, err
		}
		tile.Anchor = xpmath.Vec2{X: v[0], Y: v[1]}
	case "CROP_POLY":
		if err := inTile(); err != nil {
			return tile, err
		}
		pts, err := points(c, 0)
		if err != nil {
			return tile, err
		}
		if len(pts) < 3 {
			log.Warn("crop polygon with fewer than 3 points dropped", zap.Int("line", c.line), zap.Int("points", len(pts)))
			return tile, nil
		}
		tile.Crops = append(tile.Crops, pts)
	case "FAC":
		if err := inTile(); err != nil {
			return tile, err
		}
		if err := c.need(2); err != nil {
			return tile, err
		}
		idx, err := c.integer(0)
		if err != nil {
			return tile, err
		}
		height, err := c.float(1)
		if err != nil {
			return tile, err
		}
		pts, err := points(c, 2)
		if err != nil {
			return tile, err
		}
		tile.Facades = append(tile.Facades, AgpFacade{Index: idx, Height: height, Points: pts})
	case "TREE":
		if err := inTile(); err != nil {
			return tile, err
		}
		if err := c.need(5); err != nil {
			return tile, err
		}
		v, err := c.floats(0, 4)
		if err != nil {
			return tile, err
		}
		layer, err := c.integer(4)
		if err != nil {
			return tile, err
		}
		tile.Trees = append(tile.Trees, AgpTree{X: v[0], Y: v[1], Height: v[2], Width: v[3], Layer: layer})
	case "TREE_LINE":
		if err := inTile(); err != nil {
			return tile, err
		}
		if err := c.need(5); err != nil {
			return tile, err
		}
		v, err := c.floats(0, 4)
		if err != nil {
			return tile, err
		}
		layer, err := c.integer(4)
		if err != nil {
			return tile, err
		}
		tile.TreeLines = append(tile.TreeLines, AgpTreeLine{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3], Layer: layer})
	case "OBJ_DELTA", "OBJ_DRAPED", "OBJ_GRADED", "OBJ_SCRAPER":
		if err := inTile(); err != nil {
			return tile, err
		}
		o, err := parseAgpObject(c)
		if err != nil {
			return tile, err
		}
		tile.Objects = append(tile.Objects, o)
	default:
		warnUnknown(log, c)
	}
	return tile, nil
}

// parseAgpObject reads x y heading [z] idx lo hi; z is present for OBJ_DELTA.
func parseAgpObject(c command) (AgpObject, error) {
	o := AgpObject{}
	for k, name := range agpObjectCommands {
		if name == c.name() {
			o.Kind = k
		}
	}
	n := 6
	if o.Kind == ObjDelta {
		n = 7
	}
	if err := c.need(n); err != nil {
		return o, err
	}
	v, err := c.floats(0, 3)
	if err != nil {
		return o, err
	}
	o.X, o.Y, o.Heading = v[0], v[1], v[2]
	i := 3
	if o.Kind == ObjDelta {
		z, err := c.float(3)
		if err != nil {
			return o, err
		}
		o.Z = z
		i = 4
	}
	ints := make([]int, 3)
	for k := range ints {
		v, err := c.integer(i + k)
		if err != nil {
			return o, err
		}
		ints[k] = v
	}
	o.Index, o.ShowLo, o.ShowHi = ints[0], ints[1], ints[2]
	return o, nil
}

// Validate checks that there is a tile and that annotations reference
// existing resources.
func (a *Autogen) Validate() error {
	if len(a.Tiles) == 0 {
		return xperr.Invariant("autogen point has no tile")
	}
	for i, t := range a.Tiles {
		for _, f := range t.Facades {
			if f.Index < 0 || f.Index >= len(a.Facades) {
				return xperr.Invariant("tile %d: FAC references facade %d of %d", i, f.Index, len(a.Facades))
			}
		}
		for _, o := range t.Objects {
			if o.Index < 0 || o.Index >= len(a.Objects) {
				return xperr.Invariant("tile %d: %s references object %d of %d", i, agpObjectCommands[o.Kind], o.Index, len(a.Objects))
			}
		}
	}
	return nil
}

// WriteAGP serializes a. Crop polygons with fewer than three points are
// dropped with a warning.
func WriteAGP(a *Autogen, opts WriteOptions) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	w := newTextWriter(KindAGP, opts)
	writePreamble(w, &a.Material)
	if a.TextureScaleX != 0 || a.TextureScaleY != 0 {
		w.line("TEXTURE_SCALE", w.fs(a.TextureScaleX, a.TextureScaleY))
	}
	if a.TextureWidth != 0 {
		w.line("TEXTURE_WIDTH", w.f(a.TextureWidth))
	}
	if a.TextureTile != nil {
		writeTextureTile(w, a.TextureTile)
	}
	w.blank()
	for _, f := range a.Facades {
		w.line("FACADE", f)
	}
	for _, o := range a.Objects {
		w.line("OBJECT", o)
	}

	for _, t := range a.Tiles {
		w.blank()
		w.line("TILE", w.fs(t.S1, t.T1, t.S2, t.T2))
		w.depth++
		w.line("ROTATION", itoa(t.Rotation))
		w.line("ANCHOR_PT", w.fs(t.Anchor.X, t.Anchor.Y))
		for _, crop := range t.Crops {
			if len(crop) < 3 {
				w.opts.Log.Warn("crop polygon with fewer than 3 points dropped", zap.Int("points", len(crop)))
				continue
			}
			w.line("CROP_POLY", pointList(w, crop))
		}
		for _, f := range t.Facades {
			w.line("FAC", itoa(f.Index), w.f(f.Height), pointList(w, f.Points))
		}
		for _, tr := range t.Trees {
			w.line("TREE", w.fs(tr.X, tr.Y, tr.Height, tr.Width), itoa(tr.Layer))
		}
		for _, tl := range t.TreeLines {
			w.line("TREE_LINE", w.fs(tl.X1, tl.Y1, tl.X2, tl.Y2), itoa(tl.Layer))
		}
		for _, o := range t.Objects {
			parts := []string{agpObjectCommands[o.Kind], w.fs(o.X, o.Y), w.h(o.Heading)}
			if o.Kind == ObjDelta {
				parts = append(parts, w.f(o.Z))
			}
			parts = append(parts, itoa(o.Index), itoa(o.ShowLo), itoa(o.ShowHi))
			w.line(parts...)
		}
		w.depth--
	}
	return w.bytes(), nil
}

func pointList(w *textWriter, pts []xpmath.Vec2) string {
	vs := make([]float32, 0, 2*len(pts))
	for _, p := range pts {
		vs = append(vs, p.X, p.Y)
	}
	return w.fs(vs...)
}
