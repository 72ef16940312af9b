package shader

import (
	"github.com/pkg/errors"
)

// Samples maps image node names to the RGBA value sampled at the point of
// interest. A "UV Map" entry supplies the UV vector in R and G.
type Samples map[string][4]float32

func scalar(v float32) [4]float32 { return [4]float32{v, v, v, 1} }

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type evaluator struct {
	g       *Graph
	samples Samples
	active  map[string]bool
}

// Evaluate computes the value of node.socket for the given image samples.
// Scalars are returned replicated across RGB with alpha 1.
func Evaluate(g *Graph, node, socket string, samples Samples) ([4]float32, error) {
	e := &evaluator{g: g, samples: samples, active: make(map[string]bool)}
	return e.output(node, socket)
}

// EvaluateScalar is Evaluate reduced to the first component.
func EvaluateScalar(g *Graph, node, socket string, samples Samples) (float32, error) {
	v, err := Evaluate(g, node, socket, samples)
	return v[0], err
}

func (e *evaluator) input(n *Node, socket string, def [4]float32) ([4]float32, error) {
	if l := e.g.LinkInto(n.Name, socket); l != nil {
		return e.output(l.From, l.FromSocket)
	}
	if v, ok := n.Inputs[socket]; ok {
		return scalar(v), nil
	}
	return def, nil
}

func (e *evaluator) output(name, socket string) ([4]float32, error) {
	n := e.g.Node(name)
	if n == nil {
		return [4]float32{}, errors.Errorf("no node %q", name)
	}
	if e.active[name] {
		return [4]float32{}, errors.Errorf("cycle at node %q", name)
	}
	e.active[name] = true
	defer delete(e.active, name)

	switch n.Kind {
	case KindImage:
		s, ok := e.samples[n.Name]
		if !ok {
			return [4]float32{}, errors.Errorf("no sample for image node %q", n.Name)
		}
		if socket == SockAlpha {
			return scalar(s[3]), nil
		}
		return [4]float32{s[0], s[1], s[2], 1}, nil

	case KindUVMap:
		return e.samples[n.Name], nil

	case KindValue:
		return scalar(n.Inputs[SockValue]), nil

	case KindSeparateRGB:
		c, err := e.input(n, SockImage, [4]float32{})
		if err != nil {
			return c, err
		}
		switch socket {
		case "R":
			return scalar(c[0]), nil
		case "G":
			return scalar(c[1]), nil
		case "B":
			return scalar(c[2]), nil
		}
		return [4]float32{}, errors.Errorf("node %q has no output %q", n.Name, socket)

	case KindCombineRGB:
		var out [4]float32
		out[3] = 1
		for i, ch := range channelSocket {
			c, err := e.input(n, ch, [4]float32{})
			if err != nil {
				return out, err
			}
			out[i] = c[0]
		}
		return out, nil

	case KindMath:
		a, err := e.input(n, SockValue, scalar(0.5))
		if err != nil {
			return a, err
		}
		b, err := e.input(n, SockValue1, scalar(0.5))
		if err != nil {
			return b, err
		}
		v, err := mathOp(n.Operation, a[0], b[0])
		if err != nil {
			return [4]float32{}, errors.Wrapf(err, "node %q", n.Name)
		}
		if n.Clamp {
			v = clamp01(v)
		}
		return scalar(v), nil

	case KindMixRGB:
		fac, err := e.input(n, SockFac, scalar(0.5))
		if err != nil {
			return fac, err
		}
		c1, err := e.input(n, SockColor1, scalar(0.5))
		if err != nil {
			return c1, err
		}
		c2, err := e.input(n, SockColor2, scalar(0.5))
		if err != nil {
			return c2, err
		}
		out := c1
		f := fac[0]
		for i := 0; i < 3; i++ {
			switch n.Operation {
			case "ADD":
				out[i] = c1[i] + f*c2[i]
			case "SUBTRACT":
				out[i] = c1[i] - f*c2[i]
			case "MULTIPLY":
				out[i] = c1[i] * (1 - f + f*c2[i])
			case "MIX", "":
				out[i] = c1[i] + f*(c2[i]-c1[i])
			default:
				return out, errors.Errorf("node %q: unsupported mix %q", n.Name, n.Operation)
			}
			if n.Clamp {
				out[i] = clamp01(out[i])
			}
		}
		return out, nil

	case KindInvert:
		fac, err := e.input(n, SockFac, scalar(1))
		if err != nil {
			return fac, err
		}
		c, err := e.input(n, SockColor, [4]float32{})
		if err != nil {
			return c, err
		}
		out := c
		for i := 0; i < 3; i++ {
			out[i] = c[i] + fac[0]*((1-c[i])-c[i])
		}
		return out, nil

	case KindVectorMath:
		vec, err := e.input(n, SockVector, [4]float32{})
		if err != nil {
			return vec, err
		}
		if n.Operation != "SCALE" {
			return vec, errors.Errorf("node %q: unsupported vector op %q", n.Name, n.Operation)
		}
		s := n.Inputs[SockScale]
		return [4]float32{vec[0] * s, vec[1] * s, vec[2] * s, vec[3]}, nil
	}
	return [4]float32{}, errors.Errorf("node %q: kind %s cannot be evaluated", n.Name, n.Kind)
}

func mathOp(op string, a, b float32) (float32, error) {
	switch op {
	case "ADD":
		return a + b, nil
	case "SUBTRACT":
		return a - b, nil
	case "MULTIPLY":
		return a * b, nil
	case "DIVIDE":
		// The host yields zero for a zero divisor.
		if b == 0 {
			return 0, nil
		}
		return a / b, nil
	case "MAXIMUM":
		if a > b {
			return a, nil
		}
		return b, nil
	case "MINIMUM":
		if a < b {
			return a, nil
		}
		return b, nil
	}
	return 0, errors.Errorf("unsupported math %q", op)
}
