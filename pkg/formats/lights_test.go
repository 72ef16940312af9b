package formats

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

func TestParamLight(t *testing.T) {
	o := parseObj(t, "LIGHT_PARAM spot_params_cd 0 1 0 1 0.5 0.25 1000 0 0 -1 0.5 sim/light\n")
	lights := o.Lights()
	require.Len(t, lights, 1)
	l := lights[0]

	assert.Equal(t, LightParam, l.Kind)
	assert.Equal(t, xpmath.Vec3{Z: 1}, l.Pos)
	assert.Equal(t, [4]float32{1, 0.5, 0.25, 0}, l.Color)
	assert.Equal(t, float32(1000), l.Intensity)
	assert.Equal(t, xpmath.Vec3{Y: 1}, l.Dir)
	assert.InDelta(t, 120, l.Cone, 1e-3)
	assert.True(t, l.Photometric)
	assert.Equal(t, "sim/light", l.Tail)
}

func TestParamLightRoundTrip(t *testing.T) {
	o := parseObj(t, "LIGHT_PARAM spot_params_cd 0 1 0 1 0.5 0.25 1000 0 0 -1 0.5 sim/light\n"+
		"LIGHT_PARAM airplane_beacon_rotate 1 2 3 0 1.5 0 0.5\n")
	data, err := o.Encode(DefaultWriteOptions())
	require.NoError(t, err)
	assert.Contains(t, string(data), "LIGHT_PARAM airplane_beacon_rotate 1 2 3 0 1.5 0 0.5\n")

	again, err := ParseOBJ(data, nil)
	require.NoError(t, err)
	byName := map[string]*Light{}
	for _, l := range again.Lights() {
		byName[l.Name] = l
	}
	spot := byName["spot_params_cd"]
	require.NotNil(t, spot)
	assert.InDelta(t, 120, spot.Cone, 1e-2)
	assert.Equal(t, "sim/light", spot.Tail)
	beacon := byName["airplane_beacon_rotate"]
	require.NotNil(t, beacon)
	assert.Equal(t, float32(0.5), beacon.Size)
	assert.Equal(t, "0 1.5 0", beacon.Tail)
}

func TestParamLightWrongCount(t *testing.T) {
	log, logs := observed()
	o, err := ParseOBJ([]byte(objHeader+"LIGHT_PARAM omni_params_cd 0 0 0 1 1 1\n"), log)
	require.NoError(t, err)
	assert.Empty(t, o.Lights())
	assert.Equal(t, 1, logs.FilterMessage("skipping command").Len())
}

func TestUnknownParamLightDropped(t *testing.T) {
	log, logs := observed()
	o, err := ParseOBJ([]byte(objHeader+"LIGHT_PARAM nope 0 0 0 1\n"), log)
	require.NoError(t, err)
	assert.Empty(t, o.Lights())
	assert.Equal(t, 1, logs.FilterMessage("unknown light dropped").Len())
}

func TestCustomLightTable(t *testing.T) {
	table, err := ParseLightManifest(strings.NewReader("LIGHT_PARAM_DEF my_lamp 2 SIZE DREF\n"))
	require.NoError(t, err)
	o, err := ParseOBJWithLights([]byte(objHeader+"LIGHT_PARAM my_lamp 0 0 0 2 sim/lamp\n"), table, nil)
	require.NoError(t, err)
	require.Len(t, o.Lights(), 1)
	assert.Equal(t, float32(2), o.Lights()[0].Size)
	assert.False(t, o.Lights()[0].Photometric)

	_, err = WriteOBJ(o, DefaultWriteOptions())
	assert.True(t, errors.Is(err, xperr.ErrReference), "default table does not know my_lamp")

	opts := DefaultWriteOptions()
	opts.Lights = table
	data, err := WriteOBJ(o, opts)
	require.NoError(t, err)
	assert.Contains(t, string(data), "LIGHT_PARAM my_lamp 0 0 0 2 sim/lamp\n")
}

func TestDuplicateLightsMerged(t *testing.T) {
	o := parseObj(t, `ATTR_LOD 0 100
LIGHT_NAMED taxi_g 0 1 0
TRIS 0 3
ATTR_LOD 100 200
LIGHT_NAMED taxi_g 0 1 0
LIGHT_NAMED airplane_nav 0 1 0
TRIS 0 3
`)
	lights := o.Lights()
	require.Len(t, lights, 2)
	assert.Equal(t, "taxi_g", lights[0].Name)
	assert.Equal(t, 0, lights[0].Bucket)
}

func TestLightsSortedOnWrite(t *testing.T) {
	o := parseObj(t, "LIGHT_NAMED zulu 0 0 0\nLIGHT_NAMED alpha 0 0 0\n")
	data, err := WriteOBJ(o, DefaultWriteOptions())
	require.NoError(t, err)
	text := string(data)
	assert.Less(t, strings.Index(text, "LIGHT_NAMED alpha"), strings.Index(text, "LIGHT_NAMED zulu"))
}

func TestCustomLights(t *testing.T) {
	o := parseObj(t, "LIGHT_CUSTOM 1 2 3 1 1 1 0.5 2 0 0 1 1 sim/beacon\n"+
		"LIGHT_SPILL_CUSTOM 0 0 0 1 0 0 1 10 0 -1 0 0.8 none\n")
	lights := o.Lights()
	require.Len(t, lights, 2)
	var custom, spill *Light
	for _, l := range lights {
		switch l.Kind {
		case LightCustom:
			custom = l
		case LightSpillCustom:
			spill = l
		}
	}
	require.NotNil(t, custom)
	require.NotNil(t, spill)
	assert.Equal(t, [4]float32{0, 0, 1, 1}, custom.UV)
	assert.Equal(t, "sim/beacon", custom.Dataref)
	assert.Equal(t, xpmath.Vec3{Z: -1}, spill.Dir)
	assert.Equal(t, float32(0.8), spill.Semi)

	data, err := WriteOBJ(o, DefaultWriteOptions())
	require.NoError(t, err)
	assert.Contains(t, string(data), "LIGHT_CUSTOM 1 2 3 1 1 1 0.5 2 0 0 1 1 sim/beacon\n")
	assert.Contains(t, string(data), "LIGHT_SPILL_CUSTOM 0 0 0 1 0 0 1 10 0 -1 0 0.8 none\n")
}

func TestParseLightManifest(t *testing.T) {
	table, err := ParseLightManifest(strings.NewReader("# header\nLIGHT_PARAM_DEF foo_cd 2 R DREF # trailing\nOTHER line\n"))
	require.NoError(t, err)
	require.Contains(t, table, "foo_cd")
	assert.Equal(t, []string{"R", "DREF"}, table["foo_cd"].Params)
	assert.True(t, table["foo_cd"].Photometric())

	_, err = ParseLightManifest(strings.NewReader("LIGHT_PARAM_DEF bar 3 R G\n"))
	assert.True(t, errors.Is(err, xperr.ErrFormat))
	_, err = ParseLightManifest(strings.NewReader("LIGHT_PARAM_DEF bar x R\n"))
	assert.True(t, errors.Is(err, xperr.ErrFormat))
}

func TestDefaultLights(t *testing.T) {
	table := DefaultLights()
	assert.Contains(t, table, "spot_params_cd")
	assert.Contains(t, table, "airplane_generic_core")
	names := table.Names()
	assert.True(t, sort.StringsAreSorted(names))
	assert.Len(t, names, len(table))
}
