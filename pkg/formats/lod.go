package formats

import (
	"sort"

	"github.com/chewxy/math32"
)

// MaxLODBuckets is the number of LOD ranges an object may carry.
const MaxLODBuckets = 4

// LODRange is an ATTR_LOD near/far pair in meters.
type LODRange struct {
	Near float32
	Far  float32
}

func (r LODRange) mid() float32 { return (r.Near + r.Far) / 2 }

func (r LODRange) less(o LODRange) bool {
	if r.Near != o.Near {
		return r.Near < o.Near
	}
	return r.Far < o.Far
}

// LODMode says how X-Plane combines buckets.
type LODMode int

const (
	// LODNone means the object has no ATTR_LOD.
	LODNone LODMode = iota
	// LODAdditive buckets all draw from the camera out to their far
	// distance, each extending the previous.
	LODAdditive
	// LODSelective buckets draw only within their own range.
	LODSelective
)

func (m LODMode) String() string {
	switch m {
	case LODAdditive:
		return "additive"
	case LODSelective:
		return "selective"
	default:
		return "none"
	}
}

// LODSet is the bucket set of an object and the rule assigning ranges to it.
type LODSet struct {
	Buckets []LODRange
	Mode    LODMode
	// Overflow counts distinct ranges beyond MaxLODBuckets.
	Overflow int
}

// NewLODSet collects the distinct ranges, sorts them by near then far and
// keeps the first MaxLODBuckets as buckets.
//
// The set is additive when the first bucket starts at 0 and every later
// bucket starts at 0 or at the previous bucket's far; otherwise selective.
func NewLODSet(ranges []LODRange) *LODSet {
	seen := make(map[LODRange]bool)
	var distinct []LODRange
	for _, r := range ranges {
		if !seen[r] {
			seen[r] = true
			distinct = append(distinct, r)
		}
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i].less(distinct[j]) })

	s := &LODSet{}
	if len(distinct) == 0 {
		return s
	}
	if len(distinct) > MaxLODBuckets {
		s.Overflow = len(distinct) - MaxLODBuckets
		distinct = distinct[:MaxLODBuckets]
	}
	s.Buckets = distinct
	s.Mode = LODAdditive
	if distinct[0].Near != 0 {
		s.Mode = LODSelective
	}
	for i := 1; i < len(distinct) && s.Mode == LODAdditive; i++ {
		if distinct[i].Near != 0 && distinct[i].Near != distinct[i-1].Far {
			s.Mode = LODSelective
		}
	}
	return s
}

// Assign returns the bucket index for r, or -1 when the set is empty.
// An exact match wins. Otherwise additive sets pick the first bucket whose
// far reaches r.Far (the last bucket if none does), and selective sets pick
// the bucket with the nearest midpoint.
func (s *LODSet) Assign(r LODRange) int {
	if len(s.Buckets) == 0 {
		return -1
	}
	for i, b := range s.Buckets {
		if b == r {
			return i
		}
	}
	if s.Mode == LODAdditive {
		for i, b := range s.Buckets {
			if b.Far >= r.Far {
				return i
			}
		}
		return len(s.Buckets) - 1
	}
	best, bestDist := 0, math32.Inf(1)
	for i, b := range s.Buckets {
		if d := math32.Abs(b.mid() - r.mid()); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
