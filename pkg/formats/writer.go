package formats

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
)

// Default fractional digits.
const (
	DefaultPrecision        = 8
	DefaultHeadingPrecision = 4
)

// WriteOptions controls serialization.
type WriteOptions struct {
	Platform         string
	Precision        int
	HeadingPrecision int
	// Lights resolves LIGHT_PARAM schemas; nil means DefaultLights.
	Lights LightTable
	// Log receives warnings about data dropped while writing.
	Log *zap.Logger
}

// DefaultWriteOptions returns IBM line endings with the default precisions.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{Platform: PlatformIBM, Precision: DefaultPrecision, HeadingPrecision: DefaultHeadingPrecision}
}

func (o WriteOptions) normalized() WriteOptions {
	if o.Platform != PlatformApple {
		o.Platform = PlatformIBM
	}
	if o.Precision <= 0 {
		o.Precision = DefaultPrecision
	}
	if o.HeadingPrecision <= 0 {
		o.HeadingPrecision = DefaultHeadingPrecision
	}
	if o.Lights == nil {
		o.Lights = DefaultLights()
	}
	o.Log = nopIfNil(o.Log)
	return o
}

// FormatFloat rounds v half away from zero to digits fractional digits and
// trims trailing zeros. Negative zero prints as "0".
func FormatFloat(v float64, digits int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	p := math.Pow(10, float64(digits))
	r := math.Round(v*p) / p
	s := strconv.FormatFloat(r, 'f', digits, 64)
	if strings.IndexByte(s, '.') >= 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

// widen converts a float32 through its shortest decimal form so that 0.1f
// prints as 0.1 rather than 0.100000001.
func widen(v float32) float64 {
	f, err := strconv.ParseFloat(strconv.FormatFloat(float64(v), 'g', -1, 32), 64)
	if err != nil {
		return float64(v)
	}
	return f
}

// textWriter accumulates command lines.
type textWriter struct {
	buf   bytes.Buffer
	opts  WriteOptions
	depth int
}

func newTextWriter(kind Kind, opts WriteOptions) *textWriter {
	w := &textWriter{opts: opts.normalized()}
	version, keyword := kind.Header()
	fmt.Fprintf(&w.buf, "%s\n%d\n%s\n\n", w.opts.Platform, version, keyword)
	return w
}

func (w *textWriter) f(v float32) string {
	return FormatFloat(widen(v), w.opts.Precision)
}

// h formats a heading.
func (w *textWriter) h(v float32) string {
	return FormatFloat(widen(v), w.opts.HeadingPrecision)
}

func (w *textWriter) v3(v xpmath.Vec3) string {
	return w.f(v.X) + " " + w.f(v.Y) + " " + w.f(v.Z)
}

func (w *textWriter) fs(vs ...float32) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = w.f(v)
	}
	return strings.Join(parts, " ")
}

// line writes the parts joined by single spaces. Empty parts are skipped.
func (w *textWriter) line(parts ...string) {
	for i := 0; i < w.depth; i++ {
		w.buf.WriteByte('\t')
	}
	first := true
	for _, p := range parts {
		if p == "" {
			continue
		}
		if !first {
			w.buf.WriteByte(' ')
		}
		w.buf.WriteString(p)
		first = false
	}
	w.buf.WriteByte('\n')
}

func (w *textWriter) blank() {
	w.buf.WriteByte('\n')
}

func (w *textWriter) bytes() []byte {
	return w.buf.Bytes()
}

func itoa(i int) string { return strconv.Itoa(i) }
