package formats

import (
	"strings"

	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// Manipulator schema letters, one per argument after the cursor:
// v axis vector, p point, f number, d dataref, c command.
var manipSchemas = map[string]string{
	"noop":                       "",
	"drag_xy":                    "ffffffdd",
	"drag_axis":                  "vffd",
	"command":                    "c",
	"command_axis":               "vcc",
	"push":                       "ffd",
	"radio":                      "fd",
	"toggle":                     "ffd",
	"delta":                      "ffffd",
	"wrap":                       "ffffd",
	"drag_axis_pix":              "fffffd",
	"command_knob":               "cc",
	"command_switch_up_down":     "cc",
	"command_switch_left_right":  "cc",
	"axis_knob":                  "ffffd",
	"axis_switch_up_down":        "ffffd",
	"axis_switch_left_right":     "ffffd",
	"command_knob2":              "c",
	"command_switch_up_down2":    "c",
	"command_switch_left_right2": "c",
	"drag_rotate":                "pvfffffffdd",
}

// ManipKinds returns the manipulator kinds with a known schema.
func ManipKinds() []string {
	out := make([]string, 0, len(manipSchemas))
	for k := range manipSchemas {
		out = append(out, k)
	}
	return out
}

// Detent is an ATTR_axis_detented stop.
type Detent struct {
	Start  float32
	End    float32
	Length float32
}

// Manipulator is a cockpit interaction bound to the next draw call.
// Schema arguments are split by type and kept in file order within each.
type Manipulator struct {
	Kind     string
	Cursor   string
	Axis     xpmath.Vec3
	Point    xpmath.Vec3
	Values   []float32
	Datarefs []string
	Commands []string
	Tooltip  string

	Wheel   float32
	Detents []Detent

	// Raw is the verbatim line of a manipulator with no known schema.
	Raw string
}

// Known reports whether the kind has a schema.
func (m *Manipulator) Known() bool {
	_, ok := manipSchemas[m.Kind]
	return ok
}

// parseManip decodes an ATTR_manip_<kind> command.
func parseManip(c command) (*Manipulator, error) {
	kind := strings.TrimPrefix(c.name(), "ATTR_manip_")
	m := &Manipulator{Kind: kind}
	schema, ok := manipSchemas[kind]
	if !ok {
		m.Raw = c.raw
		return m, nil
	}
	if kind == "noop" {
		m.Tooltip = c.rest(0)
		return m, nil
	}
	want := 1
	for _, s := range schema {
		if s == 'v' || s == 'p' {
			want += 3
		} else {
			want++
		}
	}
	if err := c.need(want); err != nil {
		return nil, err
	}
	m.Cursor = c.str(0)
	i := 1
	for _, s := range schema {
		switch s {
		case 'v', 'p':
			v, err := c.vec3(i)
			if err != nil {
				return nil, err
			}
			if s == 'v' {
				m.Axis = xpmath.FromXPlane(v)
			} else {
				m.Point = xpmath.FromXPlane(v)
			}
			i += 3
		case 'f':
			v, err := c.float(i)
			if err != nil {
				return nil, err
			}
			m.Values = append(m.Values, v)
			i++
		case 'd':
			m.Datarefs = append(m.Datarefs, c.str(i))
			i++
		case 'c':
			m.Commands = append(m.Commands, c.str(i))
			i++
		}
	}
	m.Tooltip = c.rest(i)
	return m, nil
}

// writeManip emits the manipulator line plus its wheel and detents.
func writeManip(w *textWriter, m *Manipulator) error {
	if !m.Known() {
		if m.Raw == "" {
			return xperr.Invariant("manipulator %q has no schema and no raw line", m.Kind)
		}
		w.line(m.Raw)
		return nil
	}
	parts := []string{"ATTR_manip_" + m.Kind}
	if m.Kind != "noop" {
		cursor := m.Cursor
		if cursor == "" {
			cursor = "hand"
		}
		parts = append(parts, cursor)
		var nf, nd, nc int
		for _, s := range manipSchemas[m.Kind] {
			switch s {
			case 'v':
				parts = append(parts, w.v3(xpmath.ToXPlane(m.Axis)))
			case 'p':
				parts = append(parts, w.v3(xpmath.ToXPlane(m.Point)))
			case 'f':
				if nf >= len(m.Values) {
					return xperr.Invariant("manipulator %s: missing value %d", m.Kind, nf+1)
				}
				parts = append(parts, w.f(m.Values[nf]))
				nf++
			case 'd':
				if nd >= len(m.Datarefs) {
					return xperr.Invariant("manipulator %s: missing dataref %d", m.Kind, nd+1)
				}
				parts = append(parts, m.Datarefs[nd])
				nd++
			case 'c':
				if nc >= len(m.Commands) {
					return xperr.Invariant("manipulator %s: missing command %d", m.Kind, nc+1)
				}
				parts = append(parts, m.Commands[nc])
				nc++
			}
		}
	}
	parts = append(parts, m.Tooltip)
	w.line(parts...)
	if m.Wheel != 0 {
		w.line("ATTR_manip_wheel", w.f(m.Wheel))
	}
	for _, d := range m.Detents {
		w.line("ATTR_axis_detented", w.fs(d.Start, d.End, d.Length))
	}
	return nil
}
