package bake

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/xplane-assets/pkg/material"
	"github.com/Faultbox/xplane-assets/pkg/paths"
	"github.com/Faultbox/xplane-assets/pkg/shader"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

var version = shader.HostVersion{Major: 4, Minor: 1}

// fakeHost fills each bake buffer with the constant colour the first
// proxied source routes to its output.
type fakeHost struct {
	sources []*shader.HostMaterial
	target  *shader.HostMaterial
	samples map[*shader.HostMaterial]shader.Samples
	fail    string

	images   map[string]*image.RGBA
	deleted  []string
	settings []Settings
	attached []string
}

func newFakeHost(target *shader.HostMaterial, sources ...*shader.HostMaterial) *fakeHost {
	return &fakeHost{
		sources: sources,
		target:  target,
		samples: make(map[*shader.HostMaterial]shader.Samples),
		images:  make(map[string]*image.RGBA),
	}
}

func (f *fakeHost) Sources() ([]*shader.HostMaterial, error) { return f.sources, nil }

func (f *fakeHost) Target() (*shader.HostMaterial, error) { return f.target, nil }

func (f *fakeHost) Image(name string, w, h int) error {
	f.images[name] = image.NewRGBA(image.Rect(0, 0, w, h))
	return nil
}

func (f *fakeHost) Pixels(name string) (image.Image, error) {
	img, ok := f.images[name]
	if !ok {
		return nil, errors.New("no image " + name)
	}
	return img, nil
}

func (f *fakeHost) DeleteImage(name string) error {
	delete(f.images, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeHost) Bake(ctx context.Context, s Settings) error {
	f.settings = append(f.settings, s)
	if n := f.target.Tree.Node(NodeBakeTarget); n != nil && n.Active {
		f.attached = append(f.attached, n.Image)
	}
	if s.Image == f.fail {
		return errors.New("bake engine crashed")
	}
	img, ok := f.images[s.Image]
	if !ok {
		return errors.New("bake into missing image " + s.Image)
	}
	for _, src := range f.sources {
		from, socket := shader.NodeNormalCombine, shader.SockImage
		if s.Type == TypeEmit {
			l := src.Tree.LinkInto(shader.NodeBakeEmission, shader.SockColor)
			if l == nil {
				continue
			}
			from, socket = l.From, l.FromSocket
		} else if src.Tree.Node(shader.NodeNormalCombine) == nil {
			continue
		}
		v, err := shader.Evaluate(src.Tree, from, socket, f.samples[src])
		if err != nil {
			return err
		}
		px := color.RGBA{R: u8(v[0]), G: u8(v[1]), B: u8(v[2]), A: 255}
		b := img.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				img.SetRGBA(x, y, px)
			}
		}
		return nil
	}
	return nil
}

func u8(v float32) uint8 {
	return uint8(math.Round(float64(v) * 255))
}

func source(name string, m *material.Material) *shader.HostMaterial {
	h := &shader.HostMaterial{Name: name, Params: m}
	shader.Apply(h, version)
	return h
}

func fullSource() *shader.HostMaterial {
	return source("hull", &material.Material{Albedo: "//tex/hull.png", Normal: "//tex/hull_NML.png", Lit: "//tex/hull_LIT.png"})
}

func fullSamples() shader.Samples {
	return shader.Samples{
		shader.NodeAlbedo: {0.2, 0.4, 0.6, 0.5},
		shader.NodeNormal: {128.0 / 255, 1, 64.0 / 255, 32.0 / 255},
		shader.NodeLit:    {1, 1, 0, 1},
	}
}

func testConfig(t *testing.T) (Config, string) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Resolution = 4
	cfg.Name = "Plane"
	cfg.OutputDir = filepath.Join(dir, "bake")
	cfg.Resolver = paths.Resolver{ProjectFile: filepath.Join(dir, "project.yaml")}
	return cfg, dir
}

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func pixel(t *testing.T, path string) color.NRGBA {
	t.Helper()
	img, err := imgio.Open(path)
	require.NoError(t, err)
	return straight(img, 1, 1)
}

func TestRun(t *testing.T) {
	cfg, _ := testConfig(t)
	src := fullSource()
	target := source("Baked", &material.Material{Albedo: "//old.png"})
	host := newFakeHost(target, src, src)
	host.samples[src] = fullSamples()
	log, logs := observed()

	res, err := New(host, cfg, log).Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, Stages, res.Stages)

	base := filepath.Join(cfg.OutputDir, "Plane.png")
	nml := filepath.Join(cfg.OutputDir, "Plane_NML.png")
	lit := filepath.Join(cfg.OutputDir, "Plane_LIT.png")
	assert.Equal(t, []string{base, nml, lit}, res.Files)

	assert.Equal(t, color.NRGBA{R: 51, G: 102, B: 153, A: 128}, pixel(t, base))
	assert.Equal(t, color.NRGBA{R: 128, G: 255, B: 64, A: 32}, pixel(t, nml), "gloss survives a re-bake")
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 0, A: 255}, pixel(t, lit))

	assert.Equal(t, "//bake/Plane.png", target.Params.Albedo)
	assert.Equal(t, "//bake/Plane_NML.png", target.Params.Normal)
	assert.Equal(t, "//bake/Plane_LIT.png", target.Params.Lit)
	assert.Nil(t, target.Tree.Node(NodeBakeTarget), "target tree rebuilt")
	require.NotNil(t, target.Tree.Node(shader.NodeAlbedo))
	assert.Equal(t, "//bake/Plane.png", target.Tree.Node(shader.NodeAlbedo).Image)
	assert.NoError(t, shader.Equivalent(src.Tree, shader.Synthesize(src.Params, version)), "source restored")

	var buffers []string
	for _, ch := range Stages {
		buffers = append(buffers, BufferName(ch))
	}
	assert.Equal(t, buffers, host.attached)
	assert.Equal(t, buffers, host.deleted)
	assert.Empty(t, host.images)

	require.Len(t, host.settings, len(Stages))
	for i, s := range host.settings {
		assert.True(t, s.SelectedToActive)
		assert.Equal(t, 1, s.Samples)
		assert.Equal(t, cfg.Margin, s.Margin)
		if Stages[i] == shader.ChannelNormal {
			assert.Equal(t, TypeNormal, s.Type)
			assert.Equal(t, "TANGENT", s.NormalSpace)
			assert.Equal(t, [3]string{"POS_X", "POS_Y", "POS_Z"}, s.NormalSwizzle)
		} else {
			assert.Equal(t, TypeEmit, s.Type)
		}
	}

	finished := logs.FilterMessage("bake finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, res.RunID, finished[0].ContextMap()["run"])
}

func TestRunSkipsMissingChannels(t *testing.T) {
	cfg, _ := testConfig(t)
	src := source("plain", &material.Material{Albedo: "//tex/plain.png"})
	target := source("Baked", &material.Material{})
	host := newFakeHost(target, src)
	host.samples[src] = shader.Samples{shader.NodeAlbedo: {1, 0, 0, 1}}
	log, logs := observed()

	res, err := New(host, cfg, log).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []shader.Channel{shader.ChannelBase, shader.ChannelOpacity}, res.Stages)
	assert.Equal(t, []string{filepath.Join(cfg.OutputDir, "Plane.png")}, res.Files)
	assert.Equal(t, 4, logs.FilterMessage("stage skipped, no source").Len())
	assert.Empty(t, target.Params.Normal)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, pixel(t, res.Files[0]))
}

func TestRunSupersamples(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.SSFactor = 2
	src := fullSource()
	host := newFakeHost(source("Baked", &material.Material{}), src)
	host.samples[src] = fullSamples()

	res, err := New(host, cfg, nil).Run(context.Background())
	require.NoError(t, err)
	img, err := imgio.Open(res.Files[0])
	require.NoError(t, err)
	assert.Equal(t, image.Pt(4, 4), img.Bounds().Size())
	assert.InDelta(t, 51, straight(img, 2, 2).R, 1)
}

func TestRunRestoresOnFailure(t *testing.T) {
	cfg, _ := testConfig(t)
	src := fullSource()
	oldParams := &material.Material{Albedo: "//old.png"}
	target := source("Baked", oldParams)
	host := newFakeHost(target, src)
	host.samples[src] = fullSamples()
	host.fail = BufferName(shader.ChannelNormal)

	_, err := New(host, cfg, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, xperr.ErrHost))

	assert.Same(t, oldParams, target.Params)
	assert.Nil(t, target.Tree.Node(NodeBakeTarget))
	assert.Equal(t, "//old.png", target.Tree.Node(shader.NodeAlbedo).Image)
	assert.NoError(t, shader.Equivalent(src.Tree, shader.Synthesize(src.Params, version)))
	assert.Equal(t, []string{
		BufferName(shader.ChannelBase), BufferName(shader.ChannelOpacity), BufferName(shader.ChannelNormal),
	}, host.deleted)
	_, statErr := os.Stat(cfg.OutputDir)
	assert.True(t, os.IsNotExist(statErr), "nothing written")
}

func TestRunCancelled(t *testing.T) {
	cfg, _ := testConfig(t)
	src := fullSource()
	host := newFakeHost(source("Baked", &material.Material{}), src)
	host.samples[src] = fullSamples()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(host, cfg, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, host.settings)
	assert.NoError(t, shader.Equivalent(src.Tree, shader.Synthesize(src.Params, version)))
}

func TestRunNeedsSources(t *testing.T) {
	cfg, _ := testConfig(t)
	host := newFakeHost(source("Baked", &material.Material{}))
	_, err := New(host, cfg, nil).Run(context.Background())
	assert.True(t, errors.Is(err, xperr.ErrReference))
}

func TestConfigValidate(t *testing.T) {
	base, _ := testConfig(t)
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero resolution", func(c *Config) { c.Resolution = 0 }},
		{"zero supersample", func(c *Config) { c.SSFactor = 0 }},
		{"negative margin", func(c *Config) { c.Margin = -1 }},
		{"no name", func(c *Config) { c.Name = "" }},
		{"no output", func(c *Config) { c.OutputDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.modify(&c)
			if err := c.Validate(); !errors.Is(err, xperr.ErrInvariant) {
				t.Errorf("Validate() = %v, want invariant error", err)
			}
		})
	}
	if err := base.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
