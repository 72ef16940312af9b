// Package bake drives a host's bake primitive to flatten the materials of a
// selection onto a single target material, then composes the results into
// X-Plane's albedo, packed normal and lit textures.
package bake

import (
	"bytes"
	"context"
	"image"
	"path/filepath"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/xplane-assets/pkg/material"
	"github.com/Faultbox/xplane-assets/pkg/paths"
	"github.com/Faultbox/xplane-assets/pkg/shader"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// Type selects what the host bake primitive renders.
type Type string

// Bake types.
const (
	TypeEmit   Type = "EMIT"
	TypeNormal Type = "NORMAL"
)

// BufferPrefix prefixes the name of every temporary bake image.
const BufferPrefix = "BAKE_BUFFER_"

// NodeBakeTarget is the image node on the target material that receives a bake.
const NodeBakeTarget = "Bake Target"

// Stages lists the bake channels in the order they run.
var Stages = []shader.Channel{
	shader.ChannelBase,
	shader.ChannelOpacity,
	shader.ChannelNormal,
	shader.ChannelRoughness,
	shader.ChannelMetalness,
	shader.ChannelLit,
}

// Settings are the host bake settings for one stage.
type Settings struct {
	Type             Type
	Image            string
	NormalSpace      string
	NormalSwizzle    [3]string
	SelectedToActive bool
	Samples          int
	Margin           int
	RayDistance      float32
	CageExtrusion    float32
}

// Host is the part of the host application the baker drives.
type Host interface {
	// Sources returns the materials on the selected objects. The same
	// material may be returned more than once.
	Sources() ([]*shader.HostMaterial, error)
	// Target returns the active material of the active object.
	Target() (*shader.HostMaterial, error)
	// Image creates the named image, or resizes it if it exists.
	Image(name string, width, height int) error
	// Pixels returns the current contents of the named image.
	Pixels(name string) (image.Image, error)
	// DeleteImage removes the named image. Deleting a missing image is
	// not an error.
	DeleteImage(name string) error
	// Bake renders the selection into the image named in s.
	Bake(ctx context.Context, s Settings) error
}

// Config holds the baker settings.
type Config struct {
	Resolution    int
	SSFactor      int
	Margin        int
	RayDistance   float32
	CageExtrusion float32
	HostVersion   shader.HostVersion

	// OutputDir receives the written textures, Name is their base name.
	OutputDir string
	Name      string
	Backup    bool

	// Resolver turns written paths into scene paths for the target material.
	Resolver paths.Resolver
}

// DefaultConfig returns the default bake settings.
func DefaultConfig() Config {
	return Config{
		Resolution:    2048,
		SSFactor:      1,
		Margin:        16,
		RayDistance:   0.1,
		CageExtrusion: 0.05,
		HostVersion:   shader.HostVersion{Major: 4, Minor: 1},
		Backup:        true,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.Resolution <= 0 {
		return xperr.Invariant("bake resolution must be positive, got %d", c.Resolution)
	}
	if c.SSFactor < 1 {
		return xperr.Invariant("supersample factor must be at least 1, got %d", c.SSFactor)
	}
	if c.Margin < 0 {
		return xperr.Invariant("bake margin must not be negative, got %d", c.Margin)
	}
	if c.Name == "" {
		return xperr.Invariant("bake needs an output name")
	}
	if c.OutputDir == "" {
		return xperr.Invariant("bake needs an output directory")
	}
	return nil
}

// Result describes a finished bake.
type Result struct {
	RunID  string
	Stages []shader.Channel
	Files  []string
}

// Baker runs the bake pipeline against a host.
type Baker struct {
	host Host
	cfg  Config
	log  *zap.Logger
}

// New creates a baker. A nil logger discards output.
func New(host Host, cfg Config, log *zap.Logger) *Baker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Baker{host: host, cfg: cfg, log: log}
}

// BufferName returns the name of the temporary image for a stage.
func BufferName(ch shader.Channel) string {
	return BufferPrefix + string(ch)
}

// StageSettings returns the host bake settings for a stage.
func (b *Baker) StageSettings(ch shader.Channel) Settings {
	s := Settings{
		Type:             TypeEmit,
		Image:            BufferName(ch),
		SelectedToActive: true,
		Samples:          1,
		Margin:           b.cfg.Margin,
		RayDistance:      b.cfg.RayDistance,
		CageExtrusion:    b.cfg.CageExtrusion,
	}
	if ch == shader.ChannelNormal {
		s.Type = TypeNormal
		s.NormalSpace = "TANGENT"
		s.NormalSwizzle = [3]string{"POS_X", "POS_Y", "POS_Z"}
	}
	return s
}

// Run bakes every stage that has a source, writes the textures and points
// the target material at them. Source materials, the target material and
// the bake buffers are restored on every exit path.
func (b *Baker) Run(ctx context.Context) (res *Result, err error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	res = &Result{RunID: uuid.NewString()}
	log := b.log.With(zap.String("run", res.RunID))

	sources, err := b.host.Sources()
	if err != nil {
		return nil, xperr.Host(err, "list bake sources")
	}
	sources = dedupe(sources)
	if len(sources) == 0 {
		return nil, xperr.Reference("nothing selected to bake from")
	}
	target, err := b.host.Target()
	if err != nil {
		return nil, xperr.Host(err, "get bake target")
	}
	if target == nil {
		return nil, xperr.Reference("no active material to bake onto")
	}

	var buffers []string
	defer func() {
		for _, name := range buffers {
			if derr := b.host.DeleteImage(name); derr != nil {
				multierr.AppendInto(&err, xperr.Host(derr, "delete %s", name))
			}
		}
		for _, src := range sources {
			shader.Apply(src, b.cfg.HostVersion)
		}
		shader.Apply(target, b.cfg.HostVersion)
		log.Debug("materials restored", zap.Int("sources", len(sources)))
	}()

	baked := make(map[shader.Channel]*image.RGBA)
	for _, ch := range Stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !b.proxy(sources, ch) {
			log.Info("stage skipped, no source", zap.String("stage", string(ch)))
			continue
		}
		buffers = append(buffers, BufferName(ch))
		img, err := b.stage(ctx, target, ch)
		if err != nil {
			return nil, err
		}
		baked[ch] = img
		res.Stages = append(res.Stages, ch)
		log.Info("stage baked", zap.String("stage", string(ch)))
	}
	if len(res.Stages) == 0 {
		return nil, xperr.Reference("no source material has a texture to bake")
	}

	params, files, err := b.save(baked)
	if err != nil {
		return nil, err
	}
	res.Files = files
	target.Params = params
	log.Info("bake finished", zap.Strings("files", files))
	return res, nil
}

func dedupe(in []*shader.HostMaterial) []*shader.HostMaterial {
	seen := make(map[*shader.HostMaterial]bool)
	var out []*shader.HostMaterial
	for _, m := range in {
		if m == nil || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// proxy rebuilds every source tree for ch and reports whether any source
// has something to bake for it.
func (b *Baker) proxy(sources []*shader.HostMaterial, ch shader.Channel) bool {
	found := false
	for _, src := range sources {
		if src.Tree == nil {
			src.Tree = &shader.Graph{}
		}
		params := src.Params
		if params == nil {
			params = &material.Material{}
		}
		if shader.Proxy(src.Tree, params, ch, b.cfg.HostVersion) {
			found = true
		}
	}
	return found
}

func (b *Baker) stage(ctx context.Context, target *shader.HostMaterial, ch shader.Channel) (*image.RGBA, error) {
	name := BufferName(ch)
	size := b.cfg.Resolution * b.cfg.SSFactor
	if err := b.host.Image(name, size, size); err != nil {
		return nil, xperr.Host(err, "create %s", name)
	}
	attach(target, name)

	if err := b.host.Bake(ctx, b.StageSettings(ch)); err != nil {
		return nil, xperr.Host(err, "bake %s", ch)
	}
	px, err := b.host.Pixels(name)
	if err != nil {
		return nil, xperr.Host(err, "read %s", name)
	}
	if b.cfg.SSFactor > 1 {
		return transform.Resize(px, b.cfg.Resolution, b.cfg.Resolution, transform.Linear), nil
	}
	return clone.AsRGBA(px), nil
}

// attach points the target's bake node at image and makes it the only
// active image node.
func attach(target *shader.HostMaterial, img string) {
	if target.Tree == nil {
		target.Tree = &shader.Graph{}
	}
	n := target.Tree.Node(NodeBakeTarget)
	if n == nil {
		n = target.Tree.Add(&shader.Node{Name: NodeBakeTarget, Kind: shader.KindImage, NonColor: true})
	}
	for _, other := range target.Tree.Nodes {
		if other.Kind == shader.KindImage {
			other.Active = false
		}
	}
	n.Image = img
	n.Active = true
}

// save composes and writes the textures and returns the target's new
// parameter block.
func (b *Baker) save(baked map[shader.Channel]*image.RGBA) (*material.Material, []string, error) {
	params := &material.Material{Name: b.cfg.Name}
	var files []string

	write := func(suffix string, img image.Image) (string, error) {
		path := filepath.Join(b.cfg.OutputDir, b.cfg.Name+suffix+".png")
		var buf bytes.Buffer
		if err := imgio.PNGEncoder()(&buf, img); err != nil {
			return "", xperr.IO(err, "encode %s", path)
		}
		if err := paths.WriteFile(path, buf.Bytes(), b.cfg.Backup); err != nil {
			return "", err
		}
		files = append(files, path)
		return b.cfg.Resolver.ToRelative(path), nil
	}

	if base, ok := baked[shader.ChannelBase]; ok {
		var albedo image.Image = base
		if opacity, ok := baked[shader.ChannelOpacity]; ok {
			withAlpha, err := WithAlpha(base, opacity)
			if err != nil {
				return nil, nil, err
			}
			albedo = withAlpha
		}
		p, err := write("", albedo)
		if err != nil {
			return nil, nil, err
		}
		params.Albedo = p
	}
	if normal, ok := baked[shader.ChannelNormal]; ok {
		packed, err := ComposePackedNormal(normal, baked[shader.ChannelMetalness], baked[shader.ChannelRoughness])
		if err != nil {
			return nil, nil, err
		}
		p, err := write("_NML", packed)
		if err != nil {
			return nil, nil, err
		}
		params.Normal = p
	}
	if lit, ok := baked[shader.ChannelLit]; ok {
		p, err := write("_LIT", lit)
		if err != nil {
			return nil, nil, err
		}
		params.Lit = p
	}
	if len(files) == 0 {
		return nil, nil, xperr.Reference("bake %s produced no texture", b.cfg.Name)
	}
	return params, files, nil
}
