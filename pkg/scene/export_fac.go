package scene

import (
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/formats"
	"github.com/Faultbox/xplane-assets/pkg/geometry"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// CurvedSuffix names the curved variant of a facade segment collection.
const CurvedSuffix = "_Curved"

// DefaultFarLOD is the MESH far distance used when neither the object nor
// its segment sets one.
const DefaultFarLOD = 2000

// Heading returns the compass heading in degrees [0, 360) of the +Y axis of
// world, clockwise from north.
func Heading(world xpmath.Mat4) float32 {
	f := world.TransformDirection(xpmath.Vec3{Y: 1})
	h := xpmath.Deg(math32.Atan2(f.X, f.Y))
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h -= 360
	}
	return h
}

// PlacementMatrix is the transform of an object at pos turned to heading.
func PlacementMatrix(pos xpmath.Vec3, heading float32) xpmath.Mat4 {
	return xpmath.Translate(pos.X, pos.Y, pos.Z).Mul(xpmath.RotateZ(xpmath.Rad(-heading)))
}

// resourceTable assigns indices to resource paths in first-use order.
type resourceTable struct {
	paths []string
	index map[string]int
}

func (t *resourceTable) add(path string) int {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if i, ok := t.index[path]; ok {
		return i
	}
	t.index[path] = len(t.paths)
	t.paths = append(t.paths, path)
	return len(t.paths) - 1
}

// ExportFacade builds the .fac of collection c. Child collections with
// floor settings are floors; their child collections are segments indexed
// in order. A segment collection X with a sibling X_Curved exports that
// sibling as its curved variant; otherwise the curved variant reuses X.
func ExportFacade(s *Scene, c *Collection, log *zap.Logger) (*formats.Facade, error) {
	log = nopIfNil(log)
	set := FacadeSettings{Ring: true}
	if c.Facade != nil {
		set = *c.Facade
	}
	f := &formats.Facade{
		Graded: set.Graded, Ring: set.Ring,
		RoofScaleX: set.RoofScaleX, RoofScaleY: set.RoofScaleY,
	}
	if set.Wall != "" {
		m, err := s.Material(set.Wall)
		if err != nil {
			return nil, err
		}
		f.Wall = *m
	} else {
		m, err := Propagate(s, c, log)
		if err != nil {
			return nil, err
		}
		f.Wall = *m
	}
	f.Wall.Name = ""
	if set.Roof != "" {
		m, err := s.Material(set.Roof)
		if err != nil {
			return nil, err
		}
		roof := *m
		roof.Name = ""
		f.Roof = &roof
	}

	var objs resourceTable
	for _, fc := range c.Children {
		if fc.Floor == nil {
			continue
		}
		fl, err := exportFloor(fc, &objs, log)
		if err != nil {
			return nil, err
		}
		f.Floors = append(f.Floors, fl)
	}
	if len(f.Floors) == 0 {
		return nil, xperr.Invariant("collection %q: facade has no floor", c.Name)
	}
	f.Objects = objs.paths
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func exportFloor(fc *Collection, objs *resourceTable, log *zap.Logger) (*formats.Floor, error) {
	fl := &formats.Floor{Name: fc.Name, RoofTwoSided: fc.Floor.RoofTwoSided}

	var roofs []*geometry.Mesh
	for _, obj := range fc.Objects {
		var err error
		obj.Walk(func(o *Object, world xpmath.Mat4) {
			if err != nil {
				return
			}
			switch {
			case o.Placement != nil:
				pos := world.Translation()
				fl.RoofObjs = append(fl.RoofObjs, formats.RoofObj{
					Index:   objs.add(o.Placement.Resource),
					Heading: Heading(world),
					X:       pos.X, Y: pos.Y,
					ShowLo: o.Placement.ShowLo, ShowHi: o.Placement.ShowHi,
				})
			case o.Kind == KindMesh && o.Role() == RoleRoof:
				var m *geometry.Mesh
				if m, err = worldMesh(Placed{Object: o, World: world}); err == nil {
					roofs = append(roofs, m)
				}
			}
		}, xpmath.Identity())
		if err != nil {
			return nil, err
		}
	}
	fl.RoofHeights = RoofHeights(roofs)

	byName := make(map[string]*Collection)
	for _, sc := range fc.Children {
		byName[sc.Name] = sc
	}
	index := make(map[string]int)
	for _, sc := range fc.Children {
		if strings.HasSuffix(sc.Name, CurvedSuffix) {
			if _, ok := byName[strings.TrimSuffix(sc.Name, CurvedSuffix)]; ok {
				continue
			}
		}
		i := len(index)
		index[sc.Name] = i
		straight, err := exportSegment(sc, i, false, objs)
		if err != nil {
			return nil, err
		}
		curvedSrc := sc
		if cv, ok := byName[sc.Name+CurvedSuffix]; ok {
			curvedSrc = cv
		}
		curved, err := exportSegment(curvedSrc, i, true, objs)
		if err != nil {
			return nil, err
		}
		fl.Segments = append(fl.Segments, straight, curved)
	}

	for _, ws := range fc.Floor.Walls {
		w := &formats.Wall{
			Name: ws.Name, MinLength: ws.MinLength, MaxLength: ws.MaxLength,
			MinHeading: ws.MinHeading, MaxHeading: ws.MaxHeading,
		}
		for _, sp := range ws.Spellings {
			var idx []int
			for _, name := range sp {
				i, ok := index[name]
				if !ok {
					return nil, xperr.Reference("floor %q wall %q: segment %q not found", fc.Name, ws.Name, name)
				}
				idx = append(idx, i)
			}
			w.Spellings = append(w.Spellings, idx)
		}
		fl.Walls = append(fl.Walls, w)
	}
	if len(fl.Walls) == 0 {
		log.Warn("floor has no wall rule", zap.String("floor", fc.Name))
	}
	return fl, nil
}

func exportSegment(sc *Collection, index int, curved bool, objs *resourceTable) (*formats.FacadeSegment, error) {
	seg := &formats.FacadeSegment{Index: index, Curved: curved}
	far := float32(DefaultFarLOD)
	if sc.Segment != nil && sc.Segment.FarLOD > 0 {
		far = sc.Segment.FarLOD
	}
	for _, p := range sc.AllObjects() {
		o := p.Object
		switch {
		case o.Placement != nil:
			a := formats.Attachment{
				Draped:  o.Placement.Mode == PlaceDraped,
				Index:   objs.add(o.Placement.Resource),
				Pos:     p.World.Translation(),
				Heading: Heading(p.World),
			}
			if o.Placement.ShowLo != 0 || o.Placement.ShowHi != 0 {
				a.HasShow, a.ShowLo, a.ShowHi = true, o.Placement.ShowLo, o.Placement.ShowHi
			}
			seg.Attachments = append(seg.Attachments, a)
		case o.Kind == KindMesh:
			m, err := worldMesh(p)
			if err != nil {
				return nil, err
			}
			fm := &formats.FacadeMesh{FarLOD: far, Mesh: *m}
			if o.LOD != nil {
				fm.FarLOD = o.LOD.Far
			}
			if g, ok := o.Props[PropGroup]; ok {
				n, err := strconv.Atoi(g)
				if err != nil {
					return nil, xperr.Invariant("object %q: group %q is not a number", o.Name, g)
				}
				fm.Group = n
			}
			seg.Meshes = append(seg.Meshes, fm)
		}
	}
	return seg, nil
}
