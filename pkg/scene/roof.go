package scene

import (
	"sort"

	"github.com/chewxy/math32"

	"github.com/Faultbox/xplane-assets/pkg/geometry"
	xpmath "github.com/Faultbox/xplane-assets/pkg/math"
	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

// heightTolerance merges roof levels closer than this many meters.
const heightTolerance = 1e-3

// Perimeter returns the boundary loop of a mesh counter-clockwise seen from
// +Z. Edges used by exactly one triangle form the boundary; it must be a
// single closed loop.
func Perimeter(m *geometry.Mesh) ([]xpmath.Vec3, error) {
	type edge struct{ a, b xpmath.Vec3 }
	count := make(map[edge]int)
	var order []edge
	for t := 0; t+2 < len(m.Indices); t += 3 {
		for k := 0; k < 3; k++ {
			a := m.Vertices[m.Indices[t+k]].Pos
			b := m.Vertices[m.Indices[t+(k+1)%3]].Pos
			if a == b {
				continue
			}
			key := edge{a, b}
			if _, ok := count[edge{b, a}]; ok {
				count[edge{b, a}]++
				continue
			}
			if count[key] == 0 {
				order = append(order, key)
			}
			count[key]++
		}
	}
	next := make(map[xpmath.Vec3]xpmath.Vec3)
	var start *xpmath.Vec3
	for _, e := range order {
		if count[e] != 1 {
			continue
		}
		if _, dup := next[e.a]; dup {
			return nil, xperr.Invariant("mesh boundary branches at %v", e.a)
		}
		next[e.a] = e.b
		if start == nil {
			a := e.a
			start = &a
		}
	}
	if start == nil {
		return nil, xperr.Invariant("mesh has no boundary")
	}
	loop := []xpmath.Vec3{*start}
	for p := next[*start]; p != *start; p = next[p] {
		if len(loop) > len(next) {
			return nil, xperr.Invariant("mesh boundary does not close")
		}
		if _, ok := next[p]; !ok {
			return nil, xperr.Invariant("mesh boundary is open at %v", p)
		}
		loop = append(loop, p)
	}
	if len(loop) != len(next) {
		return nil, xperr.Invariant("mesh boundary has more than one loop")
	}
	if signedArea(loop) < 0 {
		for i, j := 0, len(loop)-1; i < j; i, j = i+1, j-1 {
			loop[i], loop[j] = loop[j], loop[i]
		}
	}
	return loop, nil
}

func signedArea(loop []xpmath.Vec3) float32 {
	var a float32
	for i, p := range loop {
		q := loop[(i+1)%len(loop)]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

// RoofHeights returns the distinct heights of the flat, upward-facing
// triangles of meshes in ascending order.
func RoofHeights(meshes []*geometry.Mesh) []float32 {
	var hs []float32
	for _, m := range meshes {
		for t := 0; t+2 < len(m.Indices); t += 3 {
			a := m.Vertices[m.Indices[t]].Pos
			b := m.Vertices[m.Indices[t+1]].Pos
			c := m.Vertices[m.Indices[t+2]].Pos
			if math32.Abs(a.Z-b.Z) > heightTolerance || math32.Abs(a.Z-c.Z) > heightTolerance {
				continue
			}
			n := b.Sub(a).Cross(c.Sub(a))
			if n.Length() == 0 {
				continue
			}
			// X-Plane winding is clockwise, so an upward face has a
			// downward geometric normal.
			if n.Normalize().Z > -0.99 {
				continue
			}
			hs = append(hs, a.Z)
		}
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	var out []float32
	for _, h := range hs {
		if len(out) == 0 || h-out[len(out)-1] > heightTolerance {
			out = append(out, h)
		}
	}
	return out
}
