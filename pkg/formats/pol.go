package formats

import (
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/material"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// Polygon is a decoded .pol file.
type Polygon struct {
	Header   Header
	Material material.Material

	ScaleX float32
	ScaleY float32

	LoadCenter     *LoadCenter
	TextureTile    *TextureTile
	RunwayMarkings *RunwayMarkings
	// Subtextures are UV rectangles.
	Subtextures []Rect
}

// LoadCenter is the LOAD_CENTER paging hint.
type LoadCenter struct {
	Lat  float32
	Lon  float32
	Size float32
	Res  int
}

// TextureTile splits the texture into pages picked at random per tile.
type TextureTile struct {
	XPages     int
	YPages     int
	MapX       int
	MapY       int
	MapTexture string
}

// RunwayMarkings tints and textures runway marking decals.
type RunwayMarkings struct {
	Color   [4]float32
	Texture string
}

// Rect is a UV rectangle.
type Rect struct {
	Left   float32
	Bottom float32
	Right  float32
	Top    float32
}

// Kind implements Asset.
func (p *Polygon) Kind() Kind { return KindPOL }

// Encode implements Asset.
func (p *Polygon) Encode(opts WriteOptions) ([]byte, error) { return WritePOL(p, opts) }

// ParsePOLFile reads and parses a .pol file.
func ParsePOLFile(path string, log *zap.Logger) (*Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xperr.IO(err, "reading %s", path)
	}
	return ParsePOL(data, log)
}

// ParsePOL parses a .pol file.
func ParsePOL(data []byte, log *zap.Logger) (*Polygon, error) {
	log = nopIfNil(log)
	h, body, err := readHeader(scanLines(data), "DRAPED_POLYGON")
	if err != nil {
		return nil, err
	}
	p := &Polygon{Header: h, ScaleX: 1, ScaleY: 1}
	p.Material.Draped = true
	for _, c := range body {
		if readPreamble(c, &p.Material, log) {
			continue
		}
		if err := p.command(c, log); err != nil {
			warnSkip(log, c, err)
		}
	}
	return p, nil
}

func (p *Polygon) command(c command, log *zap.Logger) error {
	switch c.name() {
	case "SCALE":
		if err := c.need(2); err != nil {
			return err
		}
		f, err := c.floats(0, 2)
		if err != nil {
			return err
		}
		p.ScaleX, p.ScaleY = f[0], f[1]
	case "LOAD_CENTER":
		if err := c.need(4); err != nil {
			return err
		}
		f, err := c.floats(0, 3)
		if err != nil {
			return err
		}
		res, err := c.integer(3)
		if err != nil {
			return err
		}
		p.LoadCenter = &LoadCenter{Lat: f[0], Lon: f[1], Size: f[2], Res: res}
	case "TEXTURE_TILE":
		t, err := parseTextureTile(c)
		if err != nil {
			return err
		}
		p.TextureTile = t
	case "RUNWAY_MARKINGS":
		if err := c.need(5); err != nil {
			return err
		}
		f, err := c.floats(0, 4)
		if err != nil {
			return err
		}
		rm := &RunwayMarkings{Texture: assetPath(c.rest(4))}
		copy(rm.Color[:], f)
		p.RunwayMarkings = rm
	case "SUBTEXTURE":
		if err := c.need(4); err != nil {
			return err
		}
		f, err := c.floats(0, 4)
		if err != nil {
			return err
		}
		p.Subtextures = append(p.Subtextures, Rect{Left: f[0], Bottom: f[1], Right: f[2], Top: f[3]})
	default:
		warnUnknown(log, c)
	}
	return nil
}

// parseTextureTile reads TEXTURE_TILE x_pages y_pages map_x map_y [texture].
func parseTextureTile(c command) (*TextureTile, error) {
	if err := c.need(4); err != nil {
		return nil, err
	}
	var v [4]int
	for i := range v {
		n, err := c.integer(i)
		if err != nil {
			return nil, err
		}
		v[i] = n
	}
	return &TextureTile{XPages: v[0], YPages: v[1], MapX: v[2], MapY: v[3], MapTexture: assetPath(c.rest(4))}, nil
}

func writeTextureTile(w *textWriter, t *TextureTile) {
	w.line("TEXTURE_TILE", itoa(t.XPages), itoa(t.YPages), itoa(t.MapX), itoa(t.MapY), t.MapTexture)
}

// WritePOL serializes p.
func WritePOL(p *Polygon, opts WriteOptions) ([]byte, error) {
	w := newTextWriter(KindPOL, opts)
	writePreamble(w, &p.Material)
	w.line("SCALE", w.fs(p.ScaleX, p.ScaleY))
	if lc := p.LoadCenter; lc != nil {
		w.line("LOAD_CENTER", w.fs(lc.Lat, lc.Lon, lc.Size), itoa(lc.Res))
	}
	if p.TextureTile != nil {
		writeTextureTile(w, p.TextureTile)
	}
	if rm := p.RunwayMarkings; rm != nil {
		w.line("RUNWAY_MARKINGS", w.fs(rm.Color[:]...), rm.Texture)
	}
	if len(p.Subtextures) > 0 {
		w.blank()
	}
	for _, r := range p.Subtextures {
		w.line("SUBTEXTURE", w.fs(r.Left, r.Bottom, r.Right, r.Top))
	}
	return w.bytes(), nil
}
