package formats

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/chewxy/math32"

	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

//go:embed lights.txt
var lightManifest string

// LightKind is the LIGHT_* command a light came from.
type LightKind int

// Light kinds.
const (
	LightNamed LightKind = iota
	LightParam
	LightCustom
	LightSpillCustom
)

func (k LightKind) String() string {
	switch k {
	case LightNamed:
		return "named"
	case LightParam:
		return "param"
	case LightCustom:
		return "custom"
	case LightSpillCustom:
		return "spill_custom"
	}
	return fmt.Sprintf("LightKind(%d)", int(k))
}

// Light is a LIGHT_* command. Fields that do not apply to Kind stay zero.
type Light struct {
	Kind LightKind
	Name string
	Pos  xpmath.Vec3

	Color     [4]float32
	Size      float32
	UV        [4]float32
	Dir       xpmath.Vec3
	Semi      float32
	Cone      float32 // full cone angle in degrees
	Intensity float32
	// Photometric lights carry intensity in candela.
	Photometric bool
	Dataref     string
	// Tail holds the parameters of a LIGHT_PARAM without a typed field, in
	// schema order.
	Tail string

	LOD    *LODRange
	Bucket int
}

// ContentKey identifies a light regardless of LOD. Lights with equal
// content keys are duplicates.
func (l *Light) ContentKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%g|%g|%g", l.Kind, l.Name, l.Pos.X, l.Pos.Y, l.Pos.Z)
	for _, c := range l.Color {
		fmt.Fprintf(&b, "|%g", c)
	}
	fmt.Fprintf(&b, "|%g", l.Size)
	for _, c := range l.UV {
		fmt.Fprintf(&b, "|%g", c)
	}
	fmt.Fprintf(&b, "|%g|%g|%g|%g|%g|%g|%t|%s|%s",
		l.Dir.X, l.Dir.Y, l.Dir.Z, l.Semi, l.Cone, l.Intensity, l.Photometric, l.Dataref, l.Tail)
	return b.String()
}

// FullKey orders lights for emission.
func (l *Light) FullKey() string {
	if l.LOD == nil {
		return l.ContentKey()
	}
	return fmt.Sprintf("%s|%g|%g", l.ContentKey(), l.LOD.Near, l.LOD.Far)
}

// dedupeLights drops lights whose content key was already seen.
func dedupeLights(lights []Light) []Light {
	seen := make(map[string]bool, len(lights))
	out := lights[:0]
	for _, l := range lights {
		k := l.ContentKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, l)
	}
	return out
}

func sortLights(lights []Light) {
	sort.SliceStable(lights, func(i, j int) bool { return lights[i].FullKey() < lights[j].FullKey() })
}

// LightDef is one LIGHT_PARAM_DEF entry.
type LightDef struct {
	Name   string
	Params []string
}

// Photometric reports whether the light is specified in candela.
func (d LightDef) Photometric() bool {
	return strings.HasSuffix(d.Name, "_cd")
}

// LightTable maps light names to their parameter schema.
type LightTable map[string]LightDef

// ParseLightManifest reads LIGHT_PARAM_DEF lines. Other lines are ignored.
func ParseLightManifest(r io.Reader) (LightTable, error) {
	table := make(LightTable)
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		f := strings.Fields(line)
		if len(f) == 0 || f[0] != "LIGHT_PARAM_DEF" {
			continue
		}
		if len(f) < 3 {
			return nil, xperr.Format(n, "LIGHT_PARAM_DEF: missing name or count")
		}
		count, err := strconv.Atoi(f[2])
		if err != nil {
			return nil, xperr.Format(n, "LIGHT_PARAM_DEF %s: bad count %q", f[1], f[2])
		}
		if len(f)-3 != count {
			return nil, xperr.Format(n, "LIGHT_PARAM_DEF %s: declares %d parameters, lists %d", f[1], count, len(f)-3)
		}
		table[f[1]] = LightDef{Name: f[1], Params: append([]string(nil), f[3:]...)}
	}
	if err := sc.Err(); err != nil {
		return nil, xperr.IO(err, "reading light manifest")
	}
	return table, nil
}

var (
	defaultLightsOnce sync.Once
	defaultLights     LightTable
)

// DefaultLights returns the built-in light table.
func DefaultLights() LightTable {
	defaultLightsOnce.Do(func() {
		t, err := ParseLightManifest(strings.NewReader(lightManifest))
		if err != nil {
			panic(fmt.Sprintf("formats: built-in light manifest: %v", err))
		}
		defaultLights = t
	})
	return defaultLights
}

// Names returns the light names sorted.
func (t LightTable) Names() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// applyParams fills the typed fields of l from LIGHT_PARAM values.
func (d LightDef) applyParams(l *Light, values []string, line int) error {
	if len(values) != len(d.Params) {
		return xperr.Format(line, "LIGHT_PARAM %s: want %d parameters, got %d", d.Name, len(d.Params), len(values))
	}
	l.Photometric = d.Photometric()
	var dir xpmath.Vec3
	var tail []string
	for i, p := range d.Params {
		s := values[i]
		num := func() (float32, error) {
			v, err := strconv.ParseFloat(s, 32)
			if err != nil {
				return 0, xperr.Format(line, "LIGHT_PARAM %s: %s: %q is not a number", d.Name, p, s)
			}
			return float32(v), nil
		}
		var err error
		var v float32
		switch p {
		case "R", "G", "B", "A":
			v, err = num()
			l.Color[strings.Index("RGBA", p)] = v
		case "DX":
			dir.X, err = num()
		case "DY":
			dir.Y, err = num()
		case "DZ":
			dir.Z, err = num()
		case "WIDTH":
			v, err = num()
			l.Cone = xpmath.Deg(2 * math32.Acos(clampUnit(v)))
		case "INTENSITY":
			l.Intensity, err = num()
		case "SIZE":
			l.Size, err = num()
		default:
			tail = append(tail, s)
		}
		if err != nil {
			return err
		}
	}
	l.Dir = xpmath.FromXPlane(dir)
	l.Tail = strings.Join(tail, " ")
	return nil
}

// params rebuilds the LIGHT_PARAM values of l in schema order.
func (d LightDef) params(w *textWriter, l *Light) ([]string, error) {
	tail := strings.Fields(l.Tail)
	dir := xpmath.ToXPlane(l.Dir)
	out := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		switch p {
		case "R", "G", "B", "A":
			out = append(out, w.f(l.Color[strings.Index("RGBA", p)]))
		case "DX":
			out = append(out, w.f(dir.X))
		case "DY":
			out = append(out, w.f(dir.Y))
		case "DZ":
			out = append(out, w.f(dir.Z))
		case "WIDTH":
			out = append(out, w.f(math32.Cos(xpmath.Rad(l.Cone)/2)))
		case "INTENSITY":
			out = append(out, w.f(l.Intensity))
		case "SIZE":
			out = append(out, w.f(l.Size))
		default:
			if len(tail) == 0 {
				return nil, xperr.Invariant("LIGHT_PARAM %s: no value for %s", d.Name, p)
			}
			out = append(out, tail[0])
			tail = tail[1:]
		}
	}
	return out, nil
}

func clampUnit(v float32) float32 {
	return math32.Max(-1, math32.Min(1, v))
}
