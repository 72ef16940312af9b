package formats

import (
	"os"
	"sort"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/material"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// DefaultTexWidth is the page width S offsets are expressed in.
const DefaultTexWidth = 4096

// ScaleTolerance is the relative disagreement allowed between the scales
// of the segments of one line.
const ScaleTolerance = 0.1

// LinePaint is a decoded .lin file. S and T coordinates are stored as UV
// fractions; the file stores S in texture-width units.
type LinePaint struct {
	Header   Header
	Material material.Material

	ScaleX   float32
	ScaleY   float32
	TexWidth int
	Mirror   bool

	Segments []LineSegment
	Caps     []LineCap
}

// LineSegment is one S_OFFSET layer.
type LineSegment struct {
	Layer  int
	Left   float32
	Center float32
	Right  float32
}

// CapKind distinguishes start and end caps.
type CapKind int

// Cap kinds.
const (
	StartCap CapKind = iota
	EndCap
)

func (k CapKind) command() string {
	if k == EndCap {
		return "END_CAP"
	}
	return "START_CAP"
}

// LineCap is a START_CAP or END_CAP.
type LineCap struct {
	Kind   CapKind
	Layer  int
	Left   float32
	Center float32
	Right  float32
	Bottom float32
	Top    float32
}

// Kind implements Asset.
func (l *LinePaint) Kind() Kind { return KindLIN }

// Encode implements Asset.
func (l *LinePaint) Encode(opts WriteOptions) ([]byte, error) { return WriteLIN(l, opts) }

func (l *LinePaint) texWidth() float32 {
	if l.TexWidth <= 0 {
		return DefaultTexWidth
	}
	return float32(l.TexWidth)
}

// ParseLINFile reads and parses a .lin file.
func ParseLINFile(path string, log *zap.Logger) (*LinePaint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xperr.IO(err, "reading %s", path)
	}
	return ParseLIN(data, log)
}

// ParseLIN parses a .lin file.
func ParseLIN(data []byte, log *zap.Logger) (*LinePaint, error) {
	log = nopIfNil(log)
	h, body, err := readHeader(scanLines(data), "LINE_PAINT")
	if err != nil {
		return nil, err
	}
	l := &LinePaint{Header: h, TexWidth: DefaultTexWidth, ScaleX: 1, ScaleY: 1}
	for _, c := range body {
		if readPreamble(c, &l.Material, log) {
			continue
		}
		if err := l.command(c, log); err != nil {
			warnSkip(log, c, err)
		}
	}
	// S values were read in pixels; TEX_WIDTH may follow them.
	tw := l.texWidth()
	for i := range l.Segments {
		s := &l.Segments[i]
		s.Left, s.Center, s.Right = s.Left/tw, s.Center/tw, s.Right/tw
	}
	for i := range l.Caps {
		c := &l.Caps[i]
		c.Left, c.Center, c.Right = c.Left/tw, c.Center/tw, c.Right/tw
	}
	l.Caps = dedupeCaps(l.Caps, log)
	return l, nil
}

func (l *LinePaint) command(c command, log *zap.Logger) error {
	switch c.name() {
	case "SCALE":
		if err := c.need(2); err != nil {
			return err
		}
		f, err := c.floats(0, 2)
		if err != nil {
			return err
		}
		l.ScaleX, l.ScaleY = f[0], f[1]
	case "TEX_WIDTH":
		if err := c.need(1); err != nil {
			return err
		}
		v, err := c.integer(0)
		if err != nil {
			return err
		}
		if v <= 0 {
			return xperr.Format(c.line, "TEX_WIDTH must be positive")
		}
		l.TexWidth = v
	case "MIRROR":
		l.Mirror = true
	case "S_OFFSET":
		if err := c.need(4); err != nil {
			return err
		}
		layer, err := c.integer(0)
		if err != nil {
			return err
		}
		f, err := c.floats(1, 3)
		if err != nil {
			return err
		}
		l.Segments = append(l.Segments, LineSegment{Layer: layer, Left: f[0], Center: f[1], Right: f[2]})
	case "START_CAP", "END_CAP":
		if err := c.need(6); err != nil {
			return err
		}
		layer, err := c.integer(0)
		if err != nil {
			return err
		}
		f, err := c.floats(1, 5)
		if err != nil {
			return err
		}
		kind := StartCap
		if c.name() == "END_CAP" {
			kind = EndCap
		}
		l.Caps = append(l.Caps, LineCap{Kind: kind, Layer: layer, Left: f[0], Center: f[1], Right: f[2], Bottom: f[3], Top: f[4]})
	default:
		warnUnknown(log, c)
	}
	return nil
}

// dedupeCaps keeps the first start and end cap of each layer.
func dedupeCaps(caps []LineCap, log *zap.Logger) []LineCap {
	type key struct {
		kind  CapKind
		layer int
	}
	seen := make(map[key]bool)
	out := caps[:0]
	for _, c := range caps {
		k := key{c.Kind, c.Layer}
		if seen[k] {
			log.Warn("duplicate cap dropped", zap.String("cap", c.Kind.command()), zap.Int("layer", c.Layer))
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

// Validate checks that there is at least one segment and that layers run
// 0, 1, 2... in order.
func (l *LinePaint) Validate() error {
	if len(l.Segments) == 0 {
		return xperr.Invariant("line has no segments")
	}
	layers := make([]int, len(l.Segments))
	for i, s := range l.Segments {
		layers[i] = s.Layer
	}
	sort.Ints(layers)
	for i, layer := range layers {
		if layer != i {
			return xperr.Invariant("segment layers must be consecutive from 0, got %v", layers)
		}
	}
	return nil
}

// WriteLIN serializes l. Duplicate caps and caps on missing layers are
// dropped with a warning.
func WriteLIN(l *LinePaint, opts WriteOptions) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	w := newTextWriter(KindLIN, opts)
	log := w.opts.Log
	writePreamble(w, &l.Material)
	tw := l.texWidth()
	w.line("TEX_WIDTH", itoa(int(tw)))
	w.line("SCALE", w.fs(l.ScaleX, l.ScaleY))
	if l.Mirror {
		w.line("MIRROR")
	}
	w.blank()

	segs := append([]LineSegment(nil), l.Segments...)
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Layer < segs[j].Layer })
	for _, s := range segs {
		w.line("S_OFFSET", itoa(s.Layer), w.fs(s.Left*tw, s.Center*tw, s.Right*tw))
	}

	caps := dedupeCaps(append([]LineCap(nil), l.Caps...), log)
	for _, c := range caps {
		if c.Layer < 0 || c.Layer >= len(segs) {
			log.Warn("cap on missing layer dropped", zap.String("cap", c.Kind.command()), zap.Int("layer", c.Layer))
			continue
		}
		w.line(c.Kind.command(), itoa(c.Layer), w.fs(c.Left*tw, c.Center*tw, c.Right*tw, c.Bottom, c.Top))
	}
	return w.bytes(), nil
}

// ReconcileScale checks that every per-segment scale is within
// ScaleTolerance of the first and returns their mean.
func ReconcileScale(scales [][2]float32) (sx, sy float32, err error) {
	if len(scales) == 0 {
		return 0, 0, xperr.Invariant("no segment scales")
	}
	ref := scales[0]
	for i, s := range scales {
		for axis := 0; axis < 2; axis++ {
			if ref[axis] == 0 {
				if s[axis] != 0 {
					return 0, 0, xperr.Invariant("segment %d scale %v disagrees with %v", i, s, ref)
				}
				continue
			}
			if math32.Abs(s[axis]-ref[axis])/math32.Abs(ref[axis]) > ScaleTolerance {
				return 0, 0, xperr.Invariant("segment %d scale %v differs from %v by more than 10%%", i, s, ref)
			}
		}
		sx += s[0]
		sy += s[1]
	}
	n := float32(len(scales))
	return sx / n, sy / n, nil
}
