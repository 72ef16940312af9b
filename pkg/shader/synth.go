package shader

import (
	"fmt"

	"github.com/Faultbox/xplane-assets/pkg/material"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
)

// Fixed node names.
const (
	NodeOutput        = "Material Output"
	NodePrincipled    = "Principled BSDF"
	NodeUV            = "UV Map"
	NodeAlbedo        = "Albedo Texture"
	NodeNormal        = "Normal Texture"
	NodeNormalUV      = "Normal UV Scale"
	NodeNormalSep     = "Normal Separate"
	NodeNormalCombine = "Normal Combine"
	NodeNormalMap     = "Normal Map"
	NodeRoughness     = "Roughness Invert"
	NodeMaterialTex   = "Material Texture"
	NodeMaterialSep   = "Material Separate"
	NodeGlossInvert   = "Gloss Invert"
	NodeLit           = "Lit Texture"
	NodeModulator     = "Modulator Texture"
	NodeModulatorSep  = "Modulator Separate"
	NodeAlphaLit      = "Alpha Lit Add"
)

// Math and mix socket identifiers as the host names them.
const (
	SockValue  = "Value"
	SockValue1 = "Value_001"
	SockColor  = "Color"
	SockColor1 = "Color1"
	SockColor2 = "Color2"
	SockFac    = "Fac"
	SockAlpha  = "Alpha"
	SockImage  = "Image"
	SockVector = "Vector"
	SockUV     = "UV"
	SockScale  = "Scale"
	SockSurf   = "Surface"
	SockBSDF   = "BSDF"
	SockStr    = "Strength"
)

var channelSocket = [3]string{"R", "G", "B"}

// column x positions; rows are laid out downward from 0.
const (
	colUV      = -1800
	colUVScale = -1500
	colImage   = -1200
	colSep     = -950
	colKey     = -700
	colNorm    = -500
	colAdd     = -300
	colMix     = -100
	colBSDF    = 300
	colOutput  = 600
	rowStep    = 60
	decalRows  = 20
)

func at(x, row int) xpmath.Vec2 {
	return xpmath.Vec2{X: float32(x), Y: float32(-row * rowStep)}
}

// output is a node socket pair used while wiring.
type output struct {
	node   *Node
	socket string
}

func (o output) ok() bool { return o.node != nil }

type builder struct {
	g *Graph
	m *material.Material
	s Sockets

	uv         *Node
	principled *Node

	albedo output
	alpha  output
	normal output

	albedoImage *Node
	modSep      *Node
}

// Synthesize builds the node graph reproducing X-Plane shading for m.
// Node names, kinds, constants and positions depend only on m and v.
func Synthesize(m *material.Material, v HostVersion) *Graph {
	g := &Graph{}
	build(g, m, v)
	return g
}

// HostMaterial is a host material: its parameter block and its node tree.
type HostMaterial struct {
	Name   string
	Params *material.Material
	Tree   *Graph
}

// Apply clears the material's node tree and rebuilds it from its parameter
// block. Applying twice yields a graph equivalent to applying once.
func Apply(h *HostMaterial, v HostVersion) {
	if h.Tree == nil {
		h.Tree = &Graph{}
	}
	h.Tree.Reset()
	params := h.Params
	if params == nil {
		params = &material.Material{}
	}
	build(h.Tree, params, v)
}

func build(g *Graph, m *material.Material, v HostVersion) {
	b := &builder{g: g, m: m, s: PrincipledSockets(v)}

	out := g.Add(&Node{Name: NodeOutput, Kind: KindOutput, Location: at(colOutput, 0), Active: true})
	b.principled = g.Add(&Node{Name: NodePrincipled, Kind: KindPrincipled, Location: at(colBSDF, 0)})
	g.Connect(b.principled, SockBSDF, out, SockSurf, 0)
	b.uv = g.Add(&Node{Name: NodeUV, Kind: KindUVMap, Location: at(colUV, 0)})

	b.settings()
	b.albedoLayer()
	b.modulatorLayer()
	b.normalLayer()
	b.litLayer()
	for _, i := range m.EnabledDecals() {
		b.decal(i)
	}
	b.finish()
}

func (b *builder) settings() {
	st := &b.g.Settings
	if b.m.BlendMode() == material.BlendClip {
		st.BlendMethod = "CLIP"
		st.AlphaThreshold = b.m.Cutoff()
		st.ShadowMode = "CLIP"
	} else {
		st.BlendMethod = "BLEND"
		st.ShadowMode = "HASHED"
	}
	if !b.m.CastShadow() {
		st.ShadowMode = "NONE"
	}
}

func (b *builder) image(name, path string, nonColor bool, x, row int) *Node {
	return b.g.Add(&Node{Name: name, Kind: KindImage, Image: path, NonColor: nonColor, Location: at(x, row)})
}

func (b *builder) math(name, op string, x, row int, inputs map[string]float32) *Node {
	return b.g.Add(&Node{Name: name, Kind: KindMath, Operation: op, Location: at(x, row), Inputs: inputs})
}

func (b *builder) albedoLayer() {
	if b.m.Albedo == "" {
		return
	}
	img := b.image(NodeAlbedo, b.m.Albedo, false, colImage, 0)
	b.g.Connect(b.uv, SockUV, img, SockVector, -1)
	b.albedoImage = img
	b.albedo = output{img, SockColor}
	b.alpha = output{img, SockAlpha}
}

func (b *builder) modulatorLayer() {
	if b.m.Modulator == "" {
		return
	}
	img := b.image(NodeModulator, b.m.Modulator, true, colImage, 4)
	b.g.Connect(b.uv, SockUV, img, SockVector, -1)
	b.modSep = b.g.Add(&Node{Name: NodeModulatorSep, Kind: KindSeparateRGB, Location: at(colSep, 4)})
	b.g.Connect(img, SockColor, b.modSep, SockImage, -1)
}

func (b *builder) normalLayer() {
	if b.m.Normal == "" {
		return
	}
	img := b.image(NodeNormal, b.m.Normal, true, colImage, 8)
	if ratio := b.m.TileRatio(); ratio != 1 {
		scale := b.g.Add(&Node{
			Name: NodeNormalUV, Kind: KindVectorMath, Operation: "SCALE",
			Location: at(colUVScale, 8), Inputs: map[string]float32{SockScale: ratio},
		})
		b.g.Connect(b.uv, SockUV, scale, SockVector, -1)
		b.g.Connect(scale, SockVector, img, SockVector, -1)
	} else {
		b.g.Connect(b.uv, SockUV, img, SockVector, -1)
	}
	b.normal = output{img, SockColor}

	// Roughness is stored inverted in the packed normal alpha.
	inv := b.g.Add(&Node{Name: NodeRoughness, Kind: KindInvert, Location: at(colSep, 10), Inputs: map[string]float32{SockFac: 1}})
	b.g.Connect(img, SockAlpha, inv, SockColor, -1)
	b.g.Connect(inv, SockColor, b.principled, b.s.Roughness.Name, b.s.Roughness.Index)

	if b.m.SeparateMaterialTexture && b.m.Mat != "" {
		mt := b.image(NodeMaterialTex, b.m.Mat, true, colImage, 12)
		b.g.Connect(b.uv, SockUV, mt, SockVector, -1)
		sep := b.g.Add(&Node{Name: NodeMaterialSep, Kind: KindSeparateRGB, Location: at(colSep, 12)})
		b.g.Connect(mt, SockColor, sep, SockImage, -1)
		b.g.Connect(sep, "R", b.principled, b.s.Metallic.Name, b.s.Metallic.Index)
		gloss := b.g.Add(&Node{Name: NodeGlossInvert, Kind: KindInvert, Location: at(colKey, 12), Inputs: map[string]float32{SockFac: 1}})
		b.g.Connect(sep, "G", gloss, SockColor, -1)
		// The material texture overrides the packed alpha roughness.
		b.g.Links = removeLink(b.g.Links, NodePrincipled, b.s.Roughness.Name)
		b.g.Connect(gloss, SockColor, b.principled, b.s.Roughness.Name, b.s.Roughness.Index)
	}
}

func removeLink(links []*Link, node, socket string) []*Link {
	out := links[:0]
	for _, l := range links {
		if l.To == node && l.ToSocket == socket {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (b *builder) litLayer() {
	if b.m.Lit == "" {
		return
	}
	img := b.image(NodeLit, b.m.Lit, false, colImage, 16)
	b.g.Connect(b.uv, SockUV, img, SockVector, -1)
	b.g.Connect(img, SockColor, b.principled, b.s.Emission.Name, b.s.Emission.Index)
	strength := float32(1)
	if b.m.Luminance > 0 {
		strength = b.m.Luminance
	}
	b.principled.Inputs = map[string]float32{b.s.EmissionStrength.Name: strength}

	if b.alpha.ok() {
		add := b.math(NodeAlphaLit, "ADD", colAdd, 16, nil)
		add.Clamp = true
		b.g.Connect(b.alpha.node, b.alpha.socket, add, SockValue, -1)
		b.g.Connect(img, SockAlpha, add, SockValue1, -1)
		b.alpha = output{add, SockValue}
	} else {
		b.alpha = output{img, SockAlpha}
	}
}

// decal wires slot i. Albedo slots add into the base colour and alpha
// chains; normal slots add into the normal colour ahead of reconstruction.
func (b *builder) decal(i int) {
	d := &b.m.Decals[i]
	prefix := fmt.Sprintf("Decal %d", i)
	row0 := 20 + i*decalRows*2
	albedoSlot := b.m.IsAlbedoSlot(i)

	uv := output{b.uv, SockUV}
	if !d.Projected {
		scale := b.g.Add(&Node{
			Name: prefix + " UV", Kind: KindVectorMath, Operation: "SCALE",
			Location: at(colUVScale, row0), Inputs: map[string]float32{SockScale: d.Ratio()},
		})
		b.g.Connect(b.uv, SockUV, scale, SockVector, -1)
		uv = output{scale, SockVector}
	}

	path := d.Albedo
	if !albedoSlot {
		path = d.Normal
	}
	img := b.image(prefix+" Texture", path, !albedoSlot, colImage, row0)
	b.g.Connect(uv.node, uv.socket, img, SockVector, -1)

	if albedoSlot {
		w := b.keyChain(prefix+" RGB Key", d.RGBKey, d.RGBStrength, d.ModulatorChannel, row0+1)
		b.albedo = b.signedAdd(prefix, output{img, SockColor}, w, b.albedo, row0)

		aw := b.keyChain(prefix+" Alpha Key", d.AlphaKey, d.AlphaStrength, d.ModulatorChannel, row0+decalRows)
		off := b.math(prefix+" Alpha Offset", "SUBTRACT", colNorm, row0+decalRows-1, map[string]float32{SockValue1: 0.5})
		b.g.Connect(img, SockAlpha, off, SockValue, -1)
		mul := b.math(prefix+" Alpha Weight", "MULTIPLY", colAdd, row0+decalRows-1, nil)
		b.g.Connect(off, SockValue, mul, SockValue, -1)
		b.g.Connect(aw.node, aw.socket, mul, SockValue1, -1)
		add := b.math(prefix+" Alpha Add", "ADD", colMix, row0+decalRows-1, nil)
		add.Clamp = true
		if b.alpha.ok() {
			b.g.Connect(b.alpha.node, b.alpha.socket, add, SockValue, -1)
		} else {
			add.Inputs = map[string]float32{SockValue: 1}
		}
		b.g.Connect(mul, SockValue, add, SockValue1, -1)
		b.alpha = output{add, SockValue}
		return
	}

	k, s := d.NormalKey()
	w := b.keyChain(prefix+" Nrm Key", k, s, d.ModulatorChannel, row0+1)
	b.normal = b.signedAdd(prefix, output{img, SockColor}, w, b.normal, row0)
}

// signedAdd offsets src by -0.5 and adds it onto base weighted by fac.
func (b *builder) signedAdd(prefix string, src, fac, base output, row int) output {
	off := b.g.Add(&Node{
		Name: prefix + " Offset", Kind: KindMixRGB, Operation: "SUBTRACT",
		Location: at(colAdd, row), Inputs: map[string]float32{SockFac: 1, SockColor2: 0.5},
	})
	b.g.Connect(src.node, src.socket, off, SockColor1, -1)
	mix := b.g.Add(&Node{Name: prefix + " Mix", Kind: KindMixRGB, Operation: "ADD", Location: at(colMix, row)})
	mix.Clamp = true
	b.g.Connect(fac.node, fac.socket, mix, SockFac, -1)
	if base.ok() {
		b.g.Connect(base.node, base.socket, mix, SockColor1, -1)
	} else {
		mix.Inputs = map[string]float32{SockColor1: 0.5}
	}
	b.g.Connect(off, SockColor, mix, SockColor2, -1)
	return output{mix, SockColor}
}

// keyChain emits the per-term keying nodes for one weight:
// multiply each albedo channel, the modulator and the constant by their
// key, divide each term by the largest key, sum pairwise and clamp.
func (b *builder) keyChain(prefix string, k material.Key, s material.Strength, modChannel, row int) output {
	maxK := k.R
	for _, x := range []float32{k.G, k.B, k.A, s.Mod, s.Const} {
		if x > maxK {
			maxK = x
		}
	}

	sep := b.g.Add(&Node{Name: prefix + " Separate", Kind: KindSeparateRGB, Location: at(colSep, row)})
	if b.albedoImage != nil {
		b.g.Connect(b.albedoImage, SockColor, sep, SockImage, -1)
	}

	term := func(name string, key float32, r int, src output) *Node {
		mul := b.math(prefix+" "+name, "MULTIPLY", colKey, row+r, map[string]float32{SockValue1: key})
		if src.ok() {
			b.g.Connect(src.node, src.socket, mul, SockValue, -1)
		} else {
			mul.Inputs[SockValue] = 0
		}
		div := b.math(prefix+" "+name+" Norm", "DIVIDE", colNorm, row+r, map[string]float32{SockValue1: maxK})
		b.g.Connect(mul, SockValue, div, SockValue, -1)
		return div
	}

	var alpha, mod output
	if b.albedoImage != nil {
		alpha = output{b.albedoImage, SockAlpha}
	}
	if b.modSep != nil && modChannel >= 0 && modChannel < len(channelSocket) {
		mod = output{b.modSep, channelSocket[modChannel]}
	}

	r := term("R", k.R, 0, output{sep, "R"})
	gr := term("G", k.G, 1, output{sep, "G"})
	bl := term("B", k.B, 2, output{sep, "B"})
	a := term("A", k.A, 3, alpha)
	mo := term("Mod", s.Mod, 4, mod)

	cv := b.g.Add(&Node{Name: prefix + " Const", Kind: KindValue, Location: at(colKey, row+5), Inputs: map[string]float32{SockValue: 1}})
	cmul := b.math(prefix+" Const Mul", "MULTIPLY", colKey, row+6, map[string]float32{SockValue1: s.Const})
	b.g.Connect(cv, SockValue, cmul, SockValue, -1)
	cdiv := b.math(prefix+" Const Norm", "DIVIDE", colNorm, row+5, map[string]float32{SockValue1: maxK})
	b.g.Connect(cmul, SockValue, cdiv, SockValue, -1)

	pair := func(name string, x, y *Node, r int) *Node {
		n := b.math(prefix+" "+name, "ADD", colAdd, row+r, nil)
		b.g.Connect(x, SockValue, n, SockValue, -1)
		b.g.Connect(y, SockValue, n, SockValue1, -1)
		return n
	}
	rg := pair("rg", r, gr, 0)
	ba := pair("ba", bl, a, 2)
	mc := pair("mod_const", mo, cdiv, 4)
	rgba := pair("rg_ba", rg, ba, 1)
	final := pair("final", rgba, mc, 3)
	final.Clamp = true
	return output{final, SockValue}
}

func (b *builder) finish() {
	if b.albedo.ok() {
		b.g.Connect(b.albedo.node, b.albedo.socket, b.principled, b.s.BaseColor.Name, b.s.BaseColor.Index)
	}
	if b.alpha.ok() {
		b.g.Connect(b.alpha.node, b.alpha.socket, b.principled, b.s.Alpha.Name, b.s.Alpha.Index)
	}
	if !b.normal.ok() {
		return
	}
	sep := b.g.Add(&Node{Name: NodeNormalSep, Kind: KindSeparateRGB, Location: at(colSep, 8)})
	b.g.Connect(b.normal.node, b.normal.socket, sep, SockImage, -1)
	comb := b.g.Add(&Node{Name: NodeNormalCombine, Kind: KindCombineRGB, Location: at(colKey, 8), Inputs: map[string]float32{"B": 1}})
	b.g.Connect(sep, "R", comb, "R", -1)
	b.g.Connect(sep, "G", comb, "G", -1)
	nm := b.g.Add(&Node{Name: NodeNormalMap, Kind: KindNormalMap, Location: at(colMix, 8), Inputs: map[string]float32{SockStr: 1}})
	b.g.Connect(comb, SockImage, nm, SockColor, -1)
	b.g.Connect(nm, "Normal", b.principled, b.s.Normal.Name, b.s.Normal.Index)
	if !(b.m.SeparateMaterialTexture && b.m.Mat != "") {
		b.g.Connect(sep, "B", b.principled, b.s.Metallic.Name, b.s.Metallic.Index)
	}
}
