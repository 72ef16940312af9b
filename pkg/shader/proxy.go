package shader

import (
	"github.com/Faultbox/xplane-assets/pkg/material"
)

// Channel is a bakeable material channel.
type Channel string

// Bake channels.
const (
	ChannelBase      Channel = "BASE"
	ChannelOpacity   Channel = "OPACITY"
	ChannelNormal    Channel = "NORMAL"
	ChannelRoughness Channel = "ROUGHNESS"
	ChannelMetalness Channel = "METALNESS"
	ChannelLit       Channel = "LIT"
)

// NodeBakeEmission is the emission node proxies route their channel into.
const NodeBakeEmission = "Bake Emission"

// Proxy replaces g with a graph that routes one channel of m to the material
// output: colour channels through an emission shader, the normal through a
// principled shader. It returns false when m has no source for ch, in which
// case g is left empty apart from the output node.
func Proxy(g *Graph, m *material.Material, ch Channel, v HostVersion) bool {
	g.Reset()
	s := PrincipledSockets(v)
	out := g.Add(&Node{Name: NodeOutput, Kind: KindOutput, Location: at(colOutput, 0), Active: true})
	uv := g.Add(&Node{Name: NodeUV, Kind: KindUVMap, Location: at(colUV, 0)})

	emit := func(from *Node, socket string) {
		em := g.Add(&Node{Name: NodeBakeEmission, Kind: KindEmission, Location: at(colBSDF, 0), Inputs: map[string]float32{SockStr: 1}})
		g.Connect(from, socket, em, SockColor, -1)
		g.Connect(em, "Emission", out, SockSurf, 0)
	}
	image := func(name, path string, nonColor bool) *Node {
		n := g.Add(&Node{Name: name, Kind: KindImage, Image: path, NonColor: nonColor, Location: at(colImage, 0)})
		g.Connect(uv, SockUV, n, SockVector, -1)
		return n
	}

	switch ch {
	case ChannelBase, ChannelOpacity:
		if m.Albedo == "" {
			return false
		}
		img := image(NodeAlbedo, m.Albedo, false)
		if ch == ChannelBase {
			emit(img, SockColor)
		} else {
			emit(img, SockAlpha)
		}
	case ChannelLit:
		if m.Lit == "" {
			return false
		}
		emit(image(NodeLit, m.Lit, false), SockColor)
	case ChannelRoughness:
		if m.Normal == "" {
			return false
		}
		// The packed alpha is gloss; the bake carries roughness like the
		// synthesized graph does.
		inv := g.Add(&Node{Name: NodeRoughness, Kind: KindInvert, Location: at(colSep, 0), Inputs: map[string]float32{SockFac: 1}})
		g.Connect(image(NodeNormal, m.Normal, true), SockAlpha, inv, SockColor, -1)
		emit(inv, SockColor)
	case ChannelMetalness:
		if m.Normal == "" {
			return false
		}
		img := image(NodeNormal, m.Normal, true)
		sep := g.Add(&Node{Name: NodeNormalSep, Kind: KindSeparateRGB, Location: at(colSep, 0)})
		g.Connect(img, SockColor, sep, SockImage, -1)
		emit(sep, "B")
	case ChannelNormal:
		if m.Normal == "" {
			return false
		}
		img := image(NodeNormal, m.Normal, true)
		bsdf := g.Add(&Node{Name: NodePrincipled, Kind: KindPrincipled, Location: at(colBSDF, 0)})
		g.Connect(bsdf, SockBSDF, out, SockSurf, 0)
		sep := g.Add(&Node{Name: NodeNormalSep, Kind: KindSeparateRGB, Location: at(colSep, 0)})
		g.Connect(img, SockColor, sep, SockImage, -1)
		comb := g.Add(&Node{Name: NodeNormalCombine, Kind: KindCombineRGB, Location: at(colKey, 0), Inputs: map[string]float32{"B": 1}})
		g.Connect(sep, "R", comb, "R", -1)
		g.Connect(sep, "G", comb, "G", -1)
		nm := g.Add(&Node{Name: NodeNormalMap, Kind: KindNormalMap, Location: at(colMix, 0), Inputs: map[string]float32{SockStr: 1}})
		g.Connect(comb, SockImage, nm, SockColor, -1)
		g.Connect(nm, "Normal", bsdf, s.Normal.Name, s.Normal.Index)
	default:
		return false
	}
	return true
}
