// Package scene is the host-side model the exporters read from and the
// importers build: collections of objects with transforms, polygon meshes,
// materials, animation and per-object property bags. Scenes persist as YAML.
package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/xplane-assets/pkg/formats"
	"github.com/Faultbox/xplane-assets/pkg/geometry"
	"github.com/Faultbox/xplane-assets/pkg/material"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/paths"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// Property names understood by the exporters.
const (
	// PropAutoSplit marks an autogen object to be split per material into
	// standalone .obj files.
	PropAutoSplit = "AUTO_SPLIT_OBJ"
	// PropRole tags a mesh with its role inside a line, polygon, facade or
	// autogen collection.
	PropRole = "role"
	// PropGroup is the facade MESH group of a mesh object.
	PropGroup = "group"
)

// Mesh roles.
const (
	RoleSegment    = "segment"
	RoleStartCap   = "start_cap"
	RoleEndCap     = "end_cap"
	RoleBase       = "base"
	RoleSubtexture = "subtexture"
	RoleRoof       = "roof"
	RoleCrop       = "crop"
)

// ExportType is the file format a collection exports to.
type ExportType string

// Export types.
const (
	ExportOBJ ExportType = "obj"
	ExportLIN ExportType = "lin"
	ExportPOL ExportType = "pol"
	ExportFAC ExportType = "fac"
	ExportAGP ExportType = "agp"
)

// ObjectKind says what an object carries.
type ObjectKind string

// Object kinds.
const (
	KindEmpty ObjectKind = "empty"
	KindMesh  ObjectKind = "mesh"
	KindLight ObjectKind = "light"
)

// Scene is a project: the material library and the root collections.
type Scene struct {
	// ProjectFile anchors project-relative ("//") paths.
	ProjectFile string                        `yaml:"-"`
	Materials   map[string]*material.Material `yaml:"materials,omitempty"`
	Collections []*Collection                 `yaml:"collections"`
}

// Collection groups objects. A collection with Export set is written as one
// asset of its Type; its child collections contribute to the same asset.
type Collection struct {
	Name     string            `yaml:"name"`
	Export   bool              `yaml:"export,omitempty"`
	Type     ExportType        `yaml:"type,omitempty"`
	File     string            `yaml:"file,omitempty"`
	Props    map[string]string `yaml:"props,omitempty"`
	Objects  []*Object         `yaml:"objects,omitempty"`
	Children []*Collection     `yaml:"children,omitempty"`

	Object  *ObjectSettings  `yaml:"object,omitempty"`
	Line    *LineSettings    `yaml:"line,omitempty"`
	Polygon *PolygonSettings `yaml:"polygon,omitempty"`
	Facade  *FacadeSettings  `yaml:"facade,omitempty"`
	Floor   *FloorSettings   `yaml:"floor,omitempty"`
	Segment *SegmentSettings `yaml:"segment,omitempty"`
	Autogen *AutogenSettings `yaml:"autogen,omitempty"`
	Tile    *TileSettings    `yaml:"tile,omitempty"`
}

// ObjectSettings are .obj attributes that no material carries.
type ObjectSettings struct {
	Globals formats.Globals `yaml:"globals,omitempty"`
	// Draped names the material used for draped draw calls.
	Draped string `yaml:"draped,omitempty"`
}

// LineSettings configure a .lin export.
type LineSettings struct {
	Mirror   bool `yaml:"mirror,omitempty"`
	TexWidth int  `yaml:"tex_width,omitempty"`
}

// PolygonSettings configure a .pol export.
type PolygonSettings struct {
	LoadCenter     *formats.LoadCenter     `yaml:"load_center,omitempty"`
	TextureTile    *formats.TextureTile    `yaml:"texture_tile,omitempty"`
	RunwayMarkings *formats.RunwayMarkings `yaml:"runway_markings,omitempty"`
}

// FacadeSettings configure a .fac export. Floors are child collections
// with Floor settings.
type FacadeSettings struct {
	Graded bool `yaml:"graded,omitempty"`
	// Ring is true for closed footprints.
	Ring       bool    `yaml:"ring"`
	Wall       string  `yaml:"wall,omitempty"`
	Roof       string  `yaml:"roof,omitempty"`
	RoofScaleX float32 `yaml:"roof_scale_x,omitempty"`
	RoofScaleY float32 `yaml:"roof_scale_y,omitempty"`
}

// FloorSettings configure one FLOOR. Segments are child collections.
type FloorSettings struct {
	RoofTwoSided bool           `yaml:"roof_two_sided,omitempty"`
	Walls        []WallSettings `yaml:"walls,omitempty"`
}

// WallSettings is a WALL rule whose spellings list segment collection names.
type WallSettings struct {
	Name       string     `yaml:"name"`
	MinLength  float32    `yaml:"min_length"`
	MaxLength  float32    `yaml:"max_length"`
	MinHeading float32    `yaml:"min_heading"`
	MaxHeading float32    `yaml:"max_heading"`
	Spellings  [][]string `yaml:"spellings"`
}

// SegmentSettings configure a facade segment collection.
type SegmentSettings struct {
	// FarLOD applies to meshes without their own LOD.
	FarLOD float32 `yaml:"far_lod,omitempty"`
}

// AutogenSettings configure an .agp export. Tiles are child collections with
// Tile settings.
type AutogenSettings struct {
	TextureScaleX float32              `yaml:"texture_scale_x,omitempty"`
	TextureScaleY float32              `yaml:"texture_scale_y,omitempty"`
	TextureWidth  float32              `yaml:"texture_width,omitempty"`
	TextureTile   *formats.TextureTile `yaml:"texture_tile,omitempty"`
}

// TileSettings configure one autogen TILE.
type TileSettings struct {
	Rotation int `yaml:"rotation,omitempty"`
}

// Object is a node of the scene graph. Matrix is relative to the parent.
type Object struct {
	Name   string      `yaml:"name"`
	Kind   ObjectKind  `yaml:"kind"`
	Matrix xpmath.Mat4 `yaml:"matrix"`

	Mesh *geometry.HostMesh `yaml:"mesh,omitempty"`
	// Material names an entry of Scene.Materials.
	Material string `yaml:"material,omitempty"`
	// Materials and PolyMaterials describe multi-material meshes: polygon i
	// uses Materials[PolyMaterials[i]].
	Materials     []string `yaml:"materials,omitempty"`
	PolyMaterials []int    `yaml:"poly_materials,omitempty"`

	LOD       *formats.LODRange    `yaml:"lod,omitempty"`
	Anim      *Animation           `yaml:"anim,omitempty"`
	Light     *Light               `yaml:"light,omitempty"`
	Manip     *formats.Manipulator `yaml:"manip,omitempty"`
	Placement *Placement           `yaml:"placement,omitempty"`

	Props    map[string]string `yaml:"props,omitempty"`
	Children []*Object         `yaml:"children,omitempty"`
}

// Light is the light attached to a light object. Position comes from the
// object transform; Dir is in object space.
type Light struct {
	Type      formats.LightKind `yaml:"type"`
	Name      string            `yaml:"name,omitempty"`
	Color     [4]float32        `yaml:"color,omitempty,flow"`
	Size      float32           `yaml:"size,omitempty"`
	UV        [4]float32        `yaml:"uv,omitempty,flow"`
	Dir       xpmath.Vec3       `yaml:"dir,omitempty"`
	Semi      float32           `yaml:"semi,omitempty"`
	Cone      float32           `yaml:"cone,omitempty"`
	Intensity float32           `yaml:"intensity,omitempty"`
	Dataref   string            `yaml:"dataref,omitempty"`
	Params    string            `yaml:"params,omitempty"`
}

// PlacementMode says how a placement object is written.
type PlacementMode string

// Placement modes.
const (
	PlaceGraded   PlacementMode = "graded"
	PlaceDraped   PlacementMode = "draped"
	PlaceDelta    PlacementMode = "delta"
	PlaceScraper  PlacementMode = "scraper"
	PlaceFacade   PlacementMode = "facade"
	PlaceTree     PlacementMode = "tree"
	PlaceTreeLine PlacementMode = "tree_line"
)

// Placement places an external resource, a tree or a facade: facade
// attachments and roof objects, autogen objects, trees and facades.
type Placement struct {
	Mode     PlacementMode `yaml:"mode"`
	Resource string        `yaml:"resource,omitempty"`
	ShowLo   int           `yaml:"show_lo,omitempty"`
	ShowHi   int           `yaml:"show_hi,omitempty"`
	Height   float32       `yaml:"height,omitempty"`
	Width    float32       `yaml:"width,omitempty"`
	Layer    int           `yaml:"layer,omitempty"`
}

// New returns an empty scene anchored at projectFile.
func New(projectFile string) *Scene {
	return &Scene{ProjectFile: projectFile, Materials: make(map[string]*material.Material)}
}

// NewObject returns an object with an identity transform.
func NewObject(name string, kind ObjectKind) *Object {
	return &Object{Name: name, Kind: kind, Matrix: xpmath.Identity()}
}

// Load reads a YAML scene.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xperr.IO(err, "reading scene %s", path)
	}
	s := New(path)
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, xperr.Format(0, "scene %s: %v", path, err)
	}
	if s.Materials == nil {
		s.Materials = make(map[string]*material.Material)
	}
	s.walkObjects(func(o *Object) {
		if o.Matrix == (xpmath.Mat4{}) {
			o.Matrix = xpmath.Identity()
		}
	})
	return s, nil
}

// Save writes s as YAML to path, backing up an existing file when backup is
// set.
func (s *Scene) Save(path string, backup bool) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return xperr.Invariant("encoding scene: %v", err)
	}
	return paths.WriteFile(path, data, backup)
}

// Resolver returns the path resolver anchored at the project file.
func (s *Scene) Resolver() paths.Resolver {
	return paths.Resolver{ProjectFile: s.ProjectFile}
}

// Collection returns the collection with the given name anywhere in s.
func (s *Scene) Collection(name string) *Collection {
	var found *Collection
	walkCollections(s.Collections, func(c *Collection) {
		if found == nil && c.Name == name {
			found = c
		}
	})
	return found
}

// Material looks up a material by name.
func (s *Scene) Material(name string) (*material.Material, error) {
	m, ok := s.Materials[name]
	if !ok || m == nil {
		return nil, xperr.Reference("material %q not found", name)
	}
	return m, nil
}

// AddMaterial registers m under a unique name derived from base and returns
// that name.
func (s *Scene) AddMaterial(base string, m *material.Material) string {
	if s.Materials == nil {
		s.Materials = make(map[string]*material.Material)
	}
	if base == "" {
		base = "Material"
	}
	name := base
	for n := 1; s.Materials[name] != nil; n++ {
		name = fmt.Sprintf("%s.%03d", base, n)
	}
	m.Name = name
	s.Materials[name] = m
	return name
}

func (s *Scene) walkObjects(fn func(*Object)) {
	walkCollections(s.Collections, func(c *Collection) {
		for _, o := range c.Objects {
			o.Walk(func(o *Object, _ xpmath.Mat4) { fn(o) }, xpmath.Identity())
		}
	})
}

func walkCollections(cs []*Collection, fn func(*Collection)) {
	for _, c := range cs {
		fn(c)
		walkCollections(c.Children, fn)
	}
}

// Walk visits o and its descendants depth first with their transform
// relative to the frame parent describes.
func (o *Object) Walk(fn func(o *Object, world xpmath.Mat4), parent xpmath.Mat4) {
	world := parent.Mul(o.Matrix)
	fn(o, world)
	for _, c := range o.Children {
		c.Walk(fn, world)
	}
}

// Role returns the role property of o.
func (o *Object) Role() string {
	return o.Props[PropRole]
}

// Prop returns a property value and whether it is set to something other
// than "", "0" or "false".
func (o *Object) Prop(name string) (string, bool) {
	v, ok := o.Props[name]
	if !ok {
		return "", false
	}
	switch strings.ToLower(v) {
	case "", "0", "false":
		return v, false
	}
	return v, true
}

// SetProp sets a property, allocating the bag.
func (o *Object) SetProp(name, value string) {
	if o.Props == nil {
		o.Props = make(map[string]string)
	}
	o.Props[name] = value
}

// AllObjects returns the objects of c and of its child collections that are
// not exported on their own, each with its world transform.
func (c *Collection) AllObjects() []Placed {
	var out []Placed
	var visit func(*Collection)
	visit = func(c *Collection) {
		for _, o := range c.Objects {
			o.Walk(func(o *Object, world xpmath.Mat4) {
				out = append(out, Placed{Object: o, World: world})
			}, xpmath.Identity())
		}
		for _, ch := range c.Children {
			if !ch.Export {
				visit(ch)
			}
		}
	}
	visit(c)
	return out
}

// Placed is an object with its world transform.
type Placed struct {
	Object *Object
	World  xpmath.Mat4
}

// FileName returns the output file name of an exported collection.
func (c *Collection) FileName() string {
	if c.File != "" {
		return c.File
	}
	return c.Name + "." + string(c.Type)
}

// ExportTypeOf maps a path's extension to an export type.
func ExportTypeOf(path string) (ExportType, bool) {
	switch formats.Detect(path) {
	case formats.KindOBJ:
		return ExportOBJ, true
	case formats.KindLIN:
		return ExportLIN, true
	case formats.KindPOL:
		return ExportPOL, true
	case formats.KindFAC:
		return ExportFAC, true
	case formats.KindAGP:
		return ExportAGP, true
	}
	return "", false
}

func baseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
