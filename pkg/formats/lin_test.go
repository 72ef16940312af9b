package formats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

func TestLineRoundTrip(t *testing.T) {
	l := &LinePaint{
		Header:   Header{Platform: PlatformIBM, Version: 850, Keyword: "LINE_PAINT"},
		ScaleX:   2,
		ScaleY:   2,
		Segments: []LineSegment{{Layer: 0, Left: 0, Center: 0.25, Right: 0.5}},
	}
	l.Material.Albedo = "paint.png"

	data, err := l.Encode(DefaultWriteOptions())
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "S_OFFSET 0 0 1024 2048\n")
	assert.Contains(t, text, "SCALE 2 2\n")
	assert.Contains(t, text, "TEX_WIDTH 4096\n")
	assert.NotContains(t, text, "_CAP")

	again, err := ParseLIN(data, nil)
	require.NoError(t, err)
	assert.Equal(t, l.Segments, again.Segments)
	assert.Equal(t, float32(2), again.ScaleX)
	assert.Equal(t, "paint.png", again.Material.Albedo)
	assert.Empty(t, again.Caps)
}

func TestLineTexWidthAfterOffsets(t *testing.T) {
	l, err := ParseLIN([]byte("A\n850\nLINE_PAINT\nS_OFFSET 0 0 256 512\nTEX_WIDTH 1024\nMIRROR\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, []LineSegment{{Layer: 0, Left: 0, Center: 0.25, Right: 0.5}}, l.Segments)
	assert.True(t, l.Mirror)
	assert.Equal(t, float32(1), l.ScaleX)
}

func TestLineCaps(t *testing.T) {
	log, logs := observed()
	l, err := ParseLIN([]byte(`I
850
LINE_PAINT
S_OFFSET 0 0 1024 2048
START_CAP 0 0 1024 2048 0 0.1
START_CAP 0 0 512 1024 0 0.1
END_CAP 0 0 1024 2048 0.9 1
`), log)
	require.NoError(t, err)
	require.Len(t, l.Caps, 2)
	assert.Equal(t, LineCap{Kind: StartCap, Layer: 0, Left: 0, Center: 0.25, Right: 0.5, Bottom: 0, Top: 0.1}, l.Caps[0])
	assert.Equal(t, EndCap, l.Caps[1].Kind)
	assert.Equal(t, 1, logs.FilterMessage("duplicate cap dropped").Len())

	l.Caps = append(l.Caps, LineCap{Kind: EndCap, Layer: 3})
	opts := DefaultWriteOptions()
	opts.Log, logs = observed()
	data, err := WriteLIN(l, opts)
	require.NoError(t, err)
	assert.Contains(t, string(data), "START_CAP 0 0 1024 2048 0 0.1\n")
	assert.Contains(t, string(data), "END_CAP 0 0 1024 2048 0.9 1\n")
	assert.Equal(t, 1, logs.FilterMessage("cap on missing layer dropped").Len())
}

func TestLineValidate(t *testing.T) {
	_, err := WriteLIN(&LinePaint{}, DefaultWriteOptions())
	assert.True(t, errors.Is(err, xperr.ErrInvariant))

	l := &LinePaint{Segments: []LineSegment{{Layer: 0}, {Layer: 2}}}
	assert.True(t, errors.Is(l.Validate(), xperr.ErrInvariant))

	l.Segments[1].Layer = 1
	assert.NoError(t, l.Validate())
}

func TestReconcileScale(t *testing.T) {
	sx, sy, err := ReconcileScale([][2]float32{{2, 2}, {2.1, 2}})
	require.NoError(t, err)
	assert.InDelta(t, 2.05, sx, 1e-6)
	assert.InDelta(t, 2, sy, 1e-6)

	_, _, err = ReconcileScale([][2]float32{{2, 2}, {3, 2}})
	assert.True(t, errors.Is(err, xperr.ErrInvariant))

	_, _, err = ReconcileScale(nil)
	assert.Error(t, err)
}
