package model

import "math"

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Xmin [3]float64
	Xmax [3]float64
}

// EmptyBounds returns a Bounds primed so the first Extend call always wins.
func EmptyBounds() Bounds {
	return Bounds{
		Xmin: [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)},
		Xmax: [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
}

// Extend grows the bounds to include x.
func (b *Bounds) Extend(x [3]float64) {
	for k := 0; k < 3; k++ {
		if x[k] < b.Xmin[k] {
			b.Xmin[k] = x[k]
		}
		if x[k] > b.Xmax[k] {
			b.Xmax[k] = x[k]
		}
	}
}

// Union returns the elementwise min/max of a and b, the local step of a
// min/max-allreduce over per-rank bounds.
func Union(a, b Bounds) Bounds {
	var out Bounds
	for k := 0; k < 3; k++ {
		out.Xmin[k] = math.Min(a.Xmin[k], b.Xmin[k])
		out.Xmax[k] = math.Max(a.Xmax[k], b.Xmax[k])
	}
	return out
}

// BoundsOf computes the bounding box over bodies. Returns EmptyBounds if
// bodies is empty (spec §7: an empty local domain still participates in
// collectives, just with a bounds value collective callers must union
// away rather than trust standalone).
func BoundsOf(bodies []Body) Bounds {
	b := EmptyBounds()
	for _, body := range bodies {
		b.Extend(body.X)
	}
	return b
}

// Center returns the midpoint of the bounds.
func (b Bounds) Center() [3]float64 {
	var c [3]float64
	for k := 0; k < 3; k++ {
		c[k] = 0.5 * (b.Xmin[k] + b.Xmax[k])
	}
	return c
}

// HalfWidth returns half the longest side of the bounds, the radius of
// the smallest enclosing cube centered at Center().
func (b Bounds) HalfWidth() float64 {
	r := 0.0
	for k := 0; k < 3; k++ {
		if d := 0.5 * (b.Xmax[k] - b.Xmin[k]); d > r {
			r = d
		}
	}
	return r
}

// LongestAxis returns the index (0,1,2) of the axis with the largest extent.
func (b Bounds) LongestAxis() int {
	axis, best := 0, -1.0
	for k := 0; k < 3; k++ {
		if d := b.Xmax[k] - b.Xmin[k]; d > best {
			best, axis = d, k
		}
	}
	return axis
}

// DistanceSquared returns the squared distance from x to the nearest
// point of the bounds (0 if x is inside). Used by the LET selector's
// too-close test against a remote rank's subdomain.
func (b Bounds) DistanceSquared(x [3]float64) float64 {
	d2 := 0.0
	for k := 0; k < 3; k++ {
		var d float64
		if x[k] < b.Xmin[k] {
			d = b.Xmin[k] - x[k]
		} else if x[k] > b.Xmax[k] {
			d = x[k] - b.Xmax[k]
		}
		d2 += d * d
	}
	return d2
}

// LevelIndex gives the half-open cell-index range [Offset[l], Offset[l+1])
// for every level l, satisfying spec §3's levelOffset invariant.
type LevelIndex struct {
	Offset []int32
}

// Range returns the half-open index range of level.
func (li LevelIndex) Range(level int) (int32, int32) {
	return li.Offset[level], li.Offset[level+1]
}

// MaxLevel returns the deepest level present in the index.
func (li LevelIndex) MaxLevel() int {
	return len(li.Offset) - 2
}
