package formats

import (
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/geometry"
	"github.com/Faultbox/xplane-assets/pkg/material"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// Facade is a decoded .fac file.
type Facade struct {
	Header Header

	Wall material.Material
	// Roof is nil when the facade has no SHADER_ROOF.
	Roof *material.Material

	Graded     bool
	Ring       bool
	RoofScaleX float32
	RoofScaleY float32
	// RoofHeights are header-level roof heights, used by floors that state
	// none of their own.
	RoofHeights []float32

	// Objects is the OBJ table referenced by attachments and roof objects.
	Objects []string
	Floors  []*Floor
}

// Floor is one FLOOR block.
type Floor struct {
	Name         string
	RoofHeights  []float32
	RoofTwoSided bool
	RoofObjs     []RoofObj
	Segments     []*FacadeSegment
	Walls        []*Wall
}

// RoofObj is a ROOF_OBJ_HEADING placement in roof texture space.
type RoofObj struct {
	Index   int
	Heading float32
	X       float32
	Y       float32
	ShowLo  int
	ShowHi  int
}

// FacadeSegment is a SEGMENT or SEGMENT_CURVED block.
type FacadeSegment struct {
	Index       int
	Curved      bool
	Meshes      []*FacadeMesh
	Attachments []Attachment
}

// FacadeMesh is a MESH block in internal coordinates.
type FacadeMesh struct {
	Group  int
	FarLOD float32
	geometry.Mesh
}

// Attachment is an ATTACH_DRAPED or ATTACH_GRADED object.
type Attachment struct {
	Draped  bool
	Index   int
	Pos     xpmath.Vec3
	Heading float32
	// ShowLo and ShowHi are present when HasShow is set.
	HasShow bool
	ShowLo  int
	ShowHi  int
}

// Wall is a WALL rule with its spellings.
type Wall struct {
	MinLength  float32
	MaxLength  float32
	MinHeading float32
	MaxHeading float32
	Name       string
	Spellings  [][]int
}

// Kind implements Asset.
func (f *Facade) Kind() Kind { return KindFAC }

// Encode implements Asset.
func (f *Facade) Encode(opts WriteOptions) ([]byte, error) { return WriteFAC(f, opts) }

// Segment returns the straight or curved segment with index i.
func (fl *Floor) Segment(i int, curved bool) *FacadeSegment {
	for _, s := range fl.Segments {
		if s.Index == i && s.Curved == curved {
			return s
		}
	}
	return nil
}

// ParseFACFile reads and parses a .fac file.
func ParseFACFile(path string, log *zap.Logger) (*Facade, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xperr.IO(err, "reading %s", path)
	}
	return ParseFAC(data, log)
}

type facReader struct {
	log    *zap.Logger
	fac    *Facade
	shader *material.Material
	floor  *Floor
	seg    *FacadeSegment
	mesh   *FacadeMesh
	want   [2]int
	wall   *Wall
}

// ParseFAC parses a .fac file.
func ParseFAC(data []byte, log *zap.Logger) (*Facade, error) {
	h, body, err := readHeader(scanLines(data), "FACADE")
	if err != nil {
		return nil, err
	}
	r := &facReader{log: nopIfNil(log), fac: &Facade{Header: h, Ring: true}}
	r.shader = &r.fac.Wall
	for _, c := range body {
		if r.floor == nil && readPreamble(c, r.shader, r.log) {
			continue
		}
		if err := r.command(c); err != nil {
			warnSkip(r.log, c, err)
		}
	}
	r.closeMesh()
	return r.fac, nil
}

func (r *facReader) closeMesh() {
	if r.mesh == nil {
		return
	}
	if len(r.mesh.Vertices) != r.want[0] || len(r.mesh.Indices) != r.want[1] {
		r.log.Warn("MESH counts disagree with data",
			zap.Int("verts", r.want[0]), zap.Int("verts_read", len(r.mesh.Vertices)),
			zap.Int("idx", r.want[1]), zap.Int("idx_read", len(r.mesh.Indices)))
	}
	r.mesh = nil
}

func (r *facReader) needFloor(c command) error {
	if r.floor == nil {
		return xperr.Format(c.line, "%s outside FLOOR", c.name())
	}
	return nil
}

func (r *facReader) needSegment(c command) error {
	if r.seg == nil {
		return xperr.Format(c.line, "%s outside SEGMENT", c.name())
	}
	return nil
}

func (r *facReader) command(c command) error {
	f := r.fac
	switch c.name() {
	case "SHADER_WALL":
		r.shader = &f.Wall
	case "SHADER_ROOF":
		if f.Roof == nil {
			f.Roof = &material.Material{}
		}
		r.shader = f.Roof
	case "GRADED":
		f.Graded = true
	case "DRAPED":
		f.Graded = false
	case "RING":
		if err := c.need(1); err != nil {
			return err
		}
		v, err := c.integer(0)
		if err != nil {
			return err
		}
		f.Ring = v != 0
	case "ROOF_SCALE":
		if err := c.need(2); err != nil {
			return err
		}
		v, err := c.floats(0, 2)
		if err != nil {
			return err
		}
		f.RoofScaleX, f.RoofScaleY = v[0], v[1]
	case "OBJ":
		if err := c.need(1); err != nil {
			return err
		}
		f.Objects = append(f.Objects, assetPath(c.rest(0)))
	case "FLOOR":
		r.closeMesh()
		r.floor = &Floor{Name: c.rest(0)}
		r.seg, r.wall = nil, nil
		f.Floors = append(f.Floors, r.floor)
	case "ROOF_HEIGHT":
		if err := c.need(1); err != nil {
			return err
		}
		v, err := c.floats(0, c.args())
		if err != nil {
			return err
		}
		if r.floor == nil {
			f.RoofHeights = append(f.RoofHeights, v...)
		} else {
			r.floor.RoofHeights = append(r.floor.RoofHeights, v...)
		}
	case "ROOF_TWO_SIDED":
		if err := r.needFloor(c); err != nil {
			return err
		}
		r.floor.RoofTwoSided = true
	case "ROOF_OBJ_HEADING":
		if err := r.needFloor(c); err != nil {
			return err
		}
		if err := c.need(6); err != nil {
			return err
		}
		ints := [3]int{}
		for k, i := range []int{0, 4, 5} {
			v, err := c.integer(i)
			if err != nil {
				return err
			}
			ints[k] = v
		}
		v, err := c.floats(1, 3)
		if err != nil {
			return err
		}
		r.floor.RoofObjs = append(r.floor.RoofObjs, RoofObj{
			Index: ints[0], Heading: v[0], X: v[1], Y: v[2], ShowLo: ints[1], ShowHi: ints[2],
		})
	case "SEGMENT", "SEGMENT_CURVED":
		if err := r.needFloor(c); err != nil {
			return err
		}
		if err := c.need(1); err != nil {
			return err
		}
		idx, err := c.integer(0)
		if err != nil {
			return err
		}
		r.closeMesh()
		r.seg = &FacadeSegment{Index: idx, Curved: c.name() == "SEGMENT_CURVED"}
		r.wall = nil
		r.floor.Segments = append(r.floor.Segments, r.seg)
	case "MESH":
		if err := r.needSegment(c); err != nil {
			return err
		}
		if err := c.need(4); err != nil {
			return err
		}
		group, err := c.integer(0)
		if err != nil {
			return err
		}
		far, err := c.float(1)
		if err != nil {
			return err
		}
		nv, err := c.integer(2)
		if err != nil {
			return err
		}
		ni, err := c.integer(3)
		if err != nil {
			return err
		}
		r.closeMesh()
		r.mesh = &FacadeMesh{Group: group, FarLOD: far}
		r.want = [2]int{nv, ni}
		r.seg.Meshes = append(r.seg.Meshes, r.mesh)
	case "VERTEX":
		if r.mesh == nil {
			return xperr.Format(c.line, "VERTEX outside MESH")
		}
		if err := c.need(8); err != nil {
			return err
		}
		v, err := c.floats(0, 8)
		if err != nil {
			return err
		}
		r.mesh.Vertices = append(r.mesh.Vertices, geometry.Vertex{
			Pos:    xpmath.FromXPlane(xpmath.Vec3{X: v[0], Y: v[1], Z: v[2]}),
			Normal: xpmath.FromXPlane(xpmath.Vec3{X: v[3], Y: v[4], Z: v[5]}),
			UV:     xpmath.Vec2{X: v[6], Y: v[7]},
		})
	case "IDX":
		if r.mesh == nil {
			return xperr.Format(c.line, "IDX outside MESH")
		}
		for i := 0; i < c.args(); i++ {
			v, err := c.integer(i)
			if err != nil {
				return err
			}
			r.mesh.Indices = append(r.mesh.Indices, v)
		}
	case "ATTACH_DRAPED", "ATTACH_GRADED":
		if err := r.needSegment(c); err != nil {
			return err
		}
		if err := c.need(5); err != nil {
			return err
		}
		idx, err := c.integer(0)
		if err != nil {
			return err
		}
		v, err := c.floats(1, 4)
		if err != nil {
			return err
		}
		a := Attachment{
			Draped:  c.name() == "ATTACH_DRAPED",
			Index:   idx,
			Pos:     xpmath.FromXPlane(xpmath.Vec3{X: v[0], Y: v[1], Z: v[2]}),
			Heading: v[3],
		}
		if c.args() >= 7 {
			lo, err := c.integer(5)
			if err != nil {
				return err
			}
			hi, err := c.integer(6)
			if err != nil {
				return err
			}
			a.HasShow, a.ShowLo, a.ShowHi = true, lo, hi
		}
		r.seg.Attachments = append(r.seg.Attachments, a)
	case "WALL":
		if err := r.needFloor(c); err != nil {
			return err
		}
		if err := c.need(5); err != nil {
			return err
		}
		v, err := c.floats(0, 4)
		if err != nil {
			return err
		}
		r.closeMesh()
		r.seg = nil
		r.wall = &Wall{MinLength: v[0], MaxLength: v[1], MinHeading: v[2], MaxHeading: v[3], Name: c.rest(4)}
		r.floor.Walls = append(r.floor.Walls, r.wall)
	case "SPELLING":
		if r.wall == nil {
			return xperr.Format(c.line, "SPELLING outside WALL")
		}
		if err := c.need(1); err != nil {
			return err
		}
		sp := make([]int, c.args())
		for i := range sp {
			v, err := c.integer(i)
			if err != nil {
				return err
			}
			sp[i] = v
		}
		r.wall.Spellings = append(r.wall.Spellings, sp)
	default:
		warnUnknown(r.log, c)
	}
	return nil
}

// Validate checks mesh indices, object references and spellings.
func (f *Facade) Validate() error {
	for _, fl := range f.Floors {
		for _, s := range fl.Segments {
			for _, m := range s.Meshes {
				if err := m.Validate(); err != nil {
					return xperr.Invariant("floor %q segment %d: %v", fl.Name, s.Index, err)
				}
			}
			for _, a := range s.Attachments {
				if a.Index < 0 || a.Index >= len(f.Objects) {
					return xperr.Invariant("floor %q segment %d: attachment references object %d of %d",
						fl.Name, s.Index, a.Index, len(f.Objects))
				}
			}
		}
		for _, ro := range fl.RoofObjs {
			if ro.Index < 0 || ro.Index >= len(f.Objects) {
				return xperr.Invariant("floor %q: roof object %d of %d", fl.Name, ro.Index, len(f.Objects))
			}
		}
		for _, w := range fl.Walls {
			if len(w.Spellings) == 0 {
				return xperr.Invariant("floor %q wall %q has no spelling", fl.Name, w.Name)
			}
			for _, sp := range w.Spellings {
				for _, idx := range sp {
					if fl.Segment(idx, false) == nil {
						return xperr.Invariant("floor %q wall %q spells missing segment %d", fl.Name, w.Name, idx)
					}
				}
			}
		}
	}
	return nil
}

// WriteFAC serializes f.
func WriteFAC(f *Facade, opts WriteOptions) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	w := newTextWriter(KindFAC, opts)
	w.line("SHADER_WALL")
	writePreamble(w, &f.Wall)
	if f.Roof != nil {
		w.blank()
		w.line("SHADER_ROOF")
		writePreamble(w, f.Roof)
	}
	w.blank()
	if f.Graded {
		w.line("GRADED")
	} else {
		w.line("DRAPED")
	}
	ring := "0"
	if f.Ring {
		ring = "1"
	}
	w.line("RING", ring)
	if f.Roof != nil && (f.RoofScaleX != 0 || f.RoofScaleY != 0) {
		w.line("ROOF_SCALE", w.fs(f.RoofScaleX, f.RoofScaleY))
	}
	if len(f.RoofHeights) > 0 {
		w.line("ROOF_HEIGHT", w.fs(f.RoofHeights...))
	}
	for _, o := range f.Objects {
		w.line("OBJ", o)
	}

	for _, fl := range f.Floors {
		w.blank()
		w.line("FLOOR", fl.Name)
		w.depth++
		if len(fl.RoofHeights) > 0 {
			w.line("ROOF_HEIGHT", w.fs(fl.RoofHeights...))
		}
		if fl.RoofTwoSided {
			w.line("ROOF_TWO_SIDED")
		}
		for _, ro := range fl.RoofObjs {
			w.line("ROOF_OBJ_HEADING", itoa(ro.Index), w.h(ro.Heading), w.fs(ro.X, ro.Y), itoa(ro.ShowLo), itoa(ro.ShowHi))
		}
		for _, s := range fl.Segments {
			writeFacadeSegment(w, s)
		}
		for _, wl := range fl.Walls {
			w.line("WALL", w.fs(wl.MinLength, wl.MaxLength), w.h(wl.MinHeading), w.h(wl.MaxHeading), wl.Name)
			w.depth++
			for _, sp := range wl.Spellings {
				parts := []string{"SPELLING"}
				for _, idx := range sp {
					parts = append(parts, strconv.Itoa(idx))
				}
				w.line(parts...)
			}
			w.depth--
		}
		w.depth--
	}
	return w.bytes(), nil
}

func writeFacadeSegment(w *textWriter, s *FacadeSegment) {
	if s.Curved {
		w.line("SEGMENT_CURVED", itoa(s.Index))
	} else {
		w.line("SEGMENT", itoa(s.Index))
	}
	w.depth++
	defer func() { w.depth-- }()
	for _, m := range s.Meshes {
		w.line("MESH", itoa(m.Group), w.f(m.FarLOD), itoa(len(m.Vertices)), itoa(len(m.Indices)))
		for _, v := range m.Vertices {
			w.line("VERTEX", w.v3(xpmath.ToXPlane(v.Pos)), w.v3(xpmath.ToXPlane(v.Normal)), w.fs(v.UV.X, v.UV.Y))
		}
		for i := 0; i < len(m.Indices); i += 10 {
			end := i + 10
			if end > len(m.Indices) {
				end = len(m.Indices)
			}
			parts := []string{"IDX"}
			for _, idx := range m.Indices[i:end] {
				parts = append(parts, itoa(idx))
			}
			w.line(parts...)
		}
	}
	for _, a := range s.Attachments {
		cmd := "ATTACH_GRADED"
		if a.Draped {
			cmd = "ATTACH_DRAPED"
		}
		parts := []string{cmd, itoa(a.Index), w.v3(xpmath.ToXPlane(a.Pos)), w.h(a.Heading)}
		if a.HasShow {
			parts = append(parts, itoa(a.ShowLo), itoa(a.ShowHi))
		}
		w.line(parts...)
	}
}
