package material

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestKeyWeight(t *testing.T) {
	albedo := [4]float32{0.3, 0.7, 0.5, 1.0}
	tests := []struct {
		name string
		key  Key
		str  Strength
		mod  float32
		want float32
	}{
		{"red only", Key{R: 1}, Strength{}, 0, 0.3},
		{"green halved", Key{G: 2}, Strength{}, 0, 0.7},
		{"constant saturates", Key{R: 1}, Strength{Const: 1}, 0, 1},
		{"modulator", Key{}, Strength{Mod: 1}, 0.25, 0.25},
		{"all zero", Key{}, Strength{}, 0.5, 0},
		{"negative clamps", Key{R: 1}, Strength{Const: -1}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, KeyWeight(tt.key, tt.str, albedo, tt.mod), 1e-6)
		})
	}
}

func TestStateDefaults(t *testing.T) {
	m := &Material{}
	s := m.State()
	assert.Equal(t, DefaultState(), s)

	m.ApplyState(State{Blend: BlendClip, BlendCutoff: 0.3, Draped: true, Surface: SurfaceAsphalt})
	assert.True(t, m.NoShadow)
	assert.Equal(t, BlendClip, m.BlendMode())
	assert.Equal(t, float32(0.3), m.Cutoff())
}

func TestDecalSlots(t *testing.T) {
	m := &Material{}
	m.Decals[0].Enabled = true
	m.Decals[3].Enabled = true
	assert.Equal(t, []int{0, 3}, m.EnabledDecals())
	assert.True(t, m.IsAlbedoSlot(3))
	m.SeparateDecals = true
	assert.True(t, m.IsAlbedoSlot(1))
	assert.False(t, m.IsAlbedoSlot(2))
}

func TestNormalKeyMirrorsAlpha(t *testing.T) {
	d := Decal{AlphaKey: Key{A: 1}, NrmKey: Key{R: 1}}
	k, _ := d.NormalKey()
	assert.Equal(t, Key{R: 1}, k)
	d.NormalFollowsAlbedo = true
	k, _ = d.NormalKey()
	assert.Equal(t, Key{A: 1}, k)
}

func TestParseSurface(t *testing.T) {
	s, err := ParseSurface("ASPHALT")
	require.NoError(t, err)
	assert.Equal(t, SurfaceAsphalt, s)
	assert.True(t, s.IsHard())

	_, err = ParseSurface("lava")
	assert.Error(t, err)
}

func TestYAMLKeys(t *testing.T) {
	src := `
alb: //tex/house.png
nrm: //tex/house_NML.png
blend: clip
blend_cutoff: 0.4
surface: concrete
layer_group: objects
layer_group_offset: 2
decals:
  - enabled: true
    alb: //tex/dirt.png
    tile_ratio: 8
    rgb_key: {r: 1, g: 0, b: 0, a: 0}
`
	var m Material
	require.NoError(t, yaml.Unmarshal([]byte(src), &m))
	assert.Equal(t, "//tex/house.png", m.Albedo)
	assert.Equal(t, BlendClip, m.Blend)
	assert.Equal(t, SurfaceConcrete, m.Surface)
	assert.Equal(t, 2, m.LayerGroupOffset)
	assert.True(t, m.Decals[0].Enabled)
	assert.Equal(t, float32(8), m.Decals[0].Ratio())
	assert.Equal(t, float32(1), m.Decals[1].Ratio())
}
