// Package material models the X-Plane material parameter block: textures,
// blending, shadows, surface, layer group and up to four decals.
package material

import (
	"fmt"

	"github.com/chewxy/math32"
	"gopkg.in/yaml.v3"
)

// BlendMode selects alpha blending or alpha testing.
type BlendMode string

// Blend modes.
const (
	BlendAlpha BlendMode = "blend"
	BlendClip  BlendMode = "clip"
)

// DefaultCutoff is the alpha-test threshold used when none is given.
const DefaultCutoff float32 = 0.5

// MaxDecals is the number of decal slots.
const MaxDecals = 4

// Material is one material's parameter block. Texture paths are stored as
// the scene stores them (project relative with a leading "//", or absolute).
type Material struct {
	Name string `yaml:"name,omitempty"`

	Albedo    string `yaml:"alb,omitempty"`
	Normal    string `yaml:"nrm,omitempty"`
	Lit       string `yaml:"lit,omitempty"`
	Mat       string `yaml:"mat,omitempty"`
	Weather   string `yaml:"weather,omitempty"`
	Modulator string `yaml:"modulator,omitempty"`
	NoWrap    bool   `yaml:"no_wrap,omitempty"`

	Blend       BlendMode `yaml:"blend,omitempty"`
	BlendCutoff float32   `yaml:"blend_cutoff,omitempty"`
	NoShadow    bool      `yaml:"no_shadow,omitempty"`

	Surface          Surface `yaml:"surface,omitempty"`
	Deck             bool    `yaml:"deck,omitempty"`
	LayerGroup       string  `yaml:"layer_group,omitempty"`
	LayerGroupOffset int     `yaml:"layer_group_offset,omitempty"`
	Draped           bool    `yaml:"draped,omitempty"`
	PolyOffset       float32 `yaml:"poly_offset,omitempty"`

	Decals                  Decals  `yaml:"decals,omitempty"`
	SeparateDecals          bool    `yaml:"separate_decals,omitempty"`
	SeparateMaterialTexture bool    `yaml:"separate_material_texture,omitempty"`
	NormalTileRatio         float32 `yaml:"normal_tile_ratio,omitempty"`

	Luminance float32 `yaml:"luminance,omitempty"`
}

// CastShadow reports whether the material casts shadows.
func (m *Material) CastShadow() bool {
	return !m.NoShadow
}

// Cutoff returns the effective alpha-test threshold.
func (m *Material) Cutoff() float32 {
	if m.BlendCutoff <= 0 {
		return DefaultCutoff
	}
	return m.BlendCutoff
}

// BlendMode returns the blend mode, defaulting to alpha blending.
func (m *Material) BlendMode() BlendMode {
	if m.Blend == "" {
		return BlendAlpha
	}
	return m.Blend
}

// TileRatio returns the normal-map tiling ratio, 1 when unset.
func (m *Material) TileRatio() float32 {
	if m.NormalTileRatio == 0 {
		return 1
	}
	return m.NormalTileRatio
}

// State is the per-draw-call render state a material implies.
type State struct {
	Blend       BlendMode `yaml:"blend"`
	BlendCutoff float32   `yaml:"blend_cutoff"`
	Draped      bool      `yaml:"draped"`
	CastShadow  bool      `yaml:"cast_shadow"`
	Surface     Surface   `yaml:"surface"`
	Deck        bool      `yaml:"deck,omitempty"`
}

// DefaultState is the state before any ATTR_ command.
func DefaultState() State {
	return State{Blend: BlendAlpha, BlendCutoff: DefaultCutoff, CastShadow: true, Surface: SurfaceNone}
}

// State returns the render state of m.
func (m *Material) State() State {
	s := State{
		Blend:       m.BlendMode(),
		BlendCutoff: m.Cutoff(),
		Draped:      m.Draped,
		CastShadow:  m.CastShadow(),
		Surface:     m.Surface,
		Deck:        m.Deck,
	}
	if s.Surface == "" {
		s.Surface = SurfaceNone
	}
	return s
}

// ApplyState copies a render state into m.
func (m *Material) ApplyState(s State) {
	m.Blend = s.Blend
	m.BlendCutoff = s.BlendCutoff
	m.Draped = s.Draped
	m.NoShadow = !s.CastShadow
	m.Surface = s.Surface
	m.Deck = s.Deck
}

// IsAlbedoSlot reports whether decal slot i holds an albedo decal. Slots 0/1
// are always albedo; 2/3 hold normal decals when SeparateDecals is set.
func (m *Material) IsAlbedoSlot(i int) bool {
	return i < 2 || !m.SeparateDecals
}

// EnabledDecals returns the indices of enabled decal slots in order.
func (m *Material) EnabledDecals() []int {
	var out []int
	for i := range m.Decals {
		if m.Decals[i].Enabled {
			out = append(out, i)
		}
	}
	return out
}

// Key is a per-channel keying weight set.
type Key struct {
	R float32 `yaml:"r"`
	G float32 `yaml:"g"`
	B float32 `yaml:"b"`
	A float32 `yaml:"a"`
}

// Strength holds the modulator and constant keying weights.
type Strength struct {
	Const float32 `yaml:"const"`
	Mod   float32 `yaml:"mod"`
}

// Decal is one decal slot.
type Decal struct {
	Enabled             bool    `yaml:"enabled"`
	Albedo              string  `yaml:"alb,omitempty"`
	Normal              string  `yaml:"nrm,omitempty"`
	NormalFollowsAlbedo bool    `yaml:"normal_follows_albedo,omitempty"`
	Projected           bool    `yaml:"projected,omitempty"`
	TileRatio           float32 `yaml:"tile_ratio,omitempty"`
	ScaleX              float32 `yaml:"scale_x,omitempty"`
	ScaleY              float32 `yaml:"scale_y,omitempty"`
	DitherRatio         float32 `yaml:"dither_ratio,omitempty"`

	RGBKey        Key      `yaml:"rgb_key"`
	RGBStrength   Strength `yaml:"rgb_strength"`
	AlphaKey      Key      `yaml:"alpha_key"`
	AlphaStrength Strength `yaml:"alpha_strength"`
	NrmKey        Key      `yaml:"nrm_key"`
	NrmStrength   Strength `yaml:"nrm_strength"`

	ModulatorChannel int `yaml:"modulator_channel"`
}

// Ratio returns the UV tiling ratio, 1 when unset.
func (d *Decal) Ratio() float32 {
	if d.TileRatio == 0 {
		return 1
	}
	return d.TileRatio
}

// NormalKey returns the keys that drive the normal decal. When the normal
// follows the albedo the alpha keys are mirrored.
func (d *Decal) NormalKey() (Key, Strength) {
	if d.NormalFollowsAlbedo {
		return d.AlphaKey, d.AlphaStrength
	}
	return d.NrmKey, d.NrmStrength
}

// KeyWeight evaluates the decal mix weight for an albedo sample and
// modulator value:
//
//	clamp((kR·r + kG·g + kB·b + kA·a + kM·mod + kC) / max(k...), 0, 1)
//
// A key set whose weights are all zero yields zero.
func KeyWeight(k Key, s Strength, albedo [4]float32, mod float32) float32 {
	maxK := math32.Max(math32.Max(math32.Max(k.R, k.G), math32.Max(k.B, k.A)), math32.Max(s.Mod, s.Const))
	if maxK == 0 {
		return 0
	}
	sum := k.R*albedo[0] + k.G*albedo[1] + k.B*albedo[2] + k.A*albedo[3] + s.Mod*mod + s.Const
	v := sum / maxK
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RGBWeight is KeyWeight for the colour contribution of d.
func (d *Decal) RGBWeight(albedo [4]float32, mod float32) float32 {
	return KeyWeight(d.RGBKey, d.RGBStrength, albedo, mod)
}

// AlphaWeight is KeyWeight for the alpha contribution of d.
func (d *Decal) AlphaWeight(albedo [4]float32, mod float32) float32 {
	return KeyWeight(d.AlphaKey, d.AlphaStrength, albedo, mod)
}

// Decals holds the four decal slots. In YAML it is a list of up to four
// entries; missing trailing slots are disabled.
type Decals [MaxDecals]Decal

// UnmarshalYAML decodes a short list into the fixed slots.
func (d *Decals) UnmarshalYAML(n *yaml.Node) error {
	var list []Decal
	if err := n.Decode(&list); err != nil {
		return err
	}
	if len(list) > MaxDecals {
		return fmt.Errorf("at most %d decals, got %d", MaxDecals, len(list))
	}
	*d = Decals{}
	copy(d[:], list)
	return nil
}

// MarshalYAML drops trailing zero slots.
func (d Decals) MarshalYAML() (interface{}, error) {
	n := len(d)
	for n > 0 && d[n-1] == (Decal{}) {
		n--
	}
	return d[:n], nil
}

// IsZero reports whether every slot is empty.
func (d Decals) IsZero() bool {
	return d == Decals{}
}
