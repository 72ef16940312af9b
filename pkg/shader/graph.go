// Package shader builds the host material node graph that reproduces
// X-Plane's shading for a material parameter block.
package shader

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"

	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// NodeKind identifies a node type.
type NodeKind string

// Node kinds used by the synthesizer.
const (
	KindOutput      NodeKind = "OUTPUT_MATERIAL"
	KindPrincipled  NodeKind = "BSDF_PRINCIPLED"
	KindEmission    NodeKind = "EMISSION"
	KindImage       NodeKind = "TEX_IMAGE"
	KindUVMap       NodeKind = "UVMAP"
	KindVectorMath  NodeKind = "VECT_MATH"
	KindMath        NodeKind = "MATH"
	KindMixRGB      NodeKind = "MIX_RGB"
	KindSeparateRGB NodeKind = "SEPRGB"
	KindCombineRGB  NodeKind = "COMBRGB"
	KindNormalMap   NodeKind = "NORMAL_MAP"
	KindValue       NodeKind = "VALUE"
	KindInvert      NodeKind = "INVERT"
)

// Node is one shader node. Inputs holds unlinked constant inputs by socket name.
type Node struct {
	ID        int                `yaml:"-"`
	Name      string             `yaml:"name"`
	Kind      NodeKind           `yaml:"kind"`
	Label     string             `yaml:"label,omitempty"`
	Location  xpmath.Vec2        `yaml:"location"`
	Operation string             `yaml:"operation,omitempty"`
	Image     string             `yaml:"image,omitempty"`
	NonColor  bool               `yaml:"non_color,omitempty"`
	Clamp     bool               `yaml:"clamp,omitempty"`
	Active    bool               `yaml:"active,omitempty"`
	Inputs    map[string]float32 `yaml:"inputs,omitempty"`
}

// Link connects an output socket to an input socket. ToIndex carries the
// host socket index for principled inputs, which moves between host versions.
type Link struct {
	From       string `yaml:"from"`
	FromSocket string `yaml:"from_socket"`
	To         string `yaml:"to"`
	ToSocket   string `yaml:"to_socket"`
	ToIndex    int    `yaml:"to_index"`
}

// Settings are material-level render settings.
type Settings struct {
	BlendMethod    string  `yaml:"blend_method"`
	AlphaThreshold float32 `yaml:"alpha_threshold"`
	ShadowMode     string  `yaml:"shadow_mode"`
}

// Graph is a material node tree.
type Graph struct {
	Nodes    []*Node  `yaml:"nodes"`
	Links    []*Link  `yaml:"links"`
	Settings Settings `yaml:"settings"`

	nextID int
}

// Reset removes every node and link.
func (g *Graph) Reset() {
	g.Nodes = nil
	g.Links = nil
	g.Settings = Settings{}
}

// Add appends a node and assigns it a fresh ID.
func (g *Graph) Add(n *Node) *Node {
	g.nextID++
	n.ID = g.nextID
	g.Nodes = append(g.Nodes, n)
	return n
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) *Node {
	for _, n := range g.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Connect links from.fromSocket to to.toSocket. toIndex is -1 for sockets
// addressed by name only.
func (g *Graph) Connect(from *Node, fromSocket string, to *Node, toSocket string, toIndex int) {
	g.Links = append(g.Links, &Link{
		From: from.Name, FromSocket: fromSocket,
		To: to.Name, ToSocket: toSocket, ToIndex: toIndex,
	})
}

// LinkInto returns the link feeding node.socket, or nil.
func (g *Graph) LinkInto(node, socket string) *Link {
	for _, l := range g.Links {
		if l.To == node && l.ToSocket == socket {
			return l
		}
	}
	return nil
}

// Normalize returns a copy with IDs renumbered by sorted node name and links
// sorted, so that graphs built separately can be compared.
func Normalize(g *Graph) *Graph {
	out := &Graph{Settings: g.Settings}
	for _, n := range g.Nodes {
		c := *n
		if n.Inputs != nil {
			c.Inputs = make(map[string]float32, len(n.Inputs))
			for k, v := range n.Inputs {
				c.Inputs[k] = v
			}
		}
		out.Nodes = append(out.Nodes, &c)
	}
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].Name < out.Nodes[j].Name })
	for i, n := range out.Nodes {
		n.ID = i + 1
	}
	out.nextID = len(out.Nodes)
	for _, l := range g.Links {
		c := *l
		out.Links = append(out.Links, &c)
	}
	sort.Slice(out.Links, func(i, j int) bool {
		return linkKey(out.Links[i]) < linkKey(out.Links[j])
	})
	return out
}

func linkKey(l *Link) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", l.To, l.ToSocket, l.From, l.FromSocket, l.ToIndex)
}

// Equivalent compares two graphs under node-identity normalization: node
// names, kinds, labels, operations, images, constant inputs, links and
// settings must match. Positions are compared too since they derive from
// the material block alone.
func Equivalent(a, b *Graph) error {
	na, nb := Normalize(a), Normalize(b)
	if na.Settings != nb.Settings {
		return xperr.Invariant("settings differ: %+v vs %+v", na.Settings, nb.Settings)
	}
	if len(na.Nodes) != len(nb.Nodes) {
		return xperr.Invariant("node count %d vs %d", len(na.Nodes), len(nb.Nodes))
	}
	for i := range na.Nodes {
		x, y := na.Nodes[i], nb.Nodes[i]
		if x.Name != y.Name || x.Kind != y.Kind || x.Label != y.Label ||
			x.Operation != y.Operation || x.Image != y.Image || x.NonColor != y.NonColor ||
			x.Clamp != y.Clamp || x.Active != y.Active || x.Location != y.Location {
			return xperr.Invariant("node %q differs", x.Name)
		}
		if len(x.Inputs) != len(y.Inputs) {
			return xperr.Invariant("node %q input count differs", x.Name)
		}
		for k, v := range x.Inputs {
			if w, ok := y.Inputs[k]; !ok || math32.Abs(v-w) > 1e-6 {
				return xperr.Invariant("node %q input %q differs", x.Name, k)
			}
		}
	}
	if len(na.Links) != len(nb.Links) {
		return xperr.Invariant("link count %d vs %d", len(na.Links), len(nb.Links))
	}
	for i := range na.Links {
		if *na.Links[i] != *nb.Links[i] {
			return xperr.Invariant("link %s differs from %s", linkKey(na.Links[i]), linkKey(nb.Links[i]))
		}
	}
	return nil
}
