package partition

import (
	"sort"

	"github.com/fmm-go/fmmcore/pkg/model"
)

// AssignRanks recursively bisects bodies along the longest axis of the
// current bounds, splitting the rank range in half at each step and
// sending the proportional share of bodies (by count) to each half,
// until every rank range has width 1. It writes Body.IRank in place and
// returns the subdomain bounds assigned to each rank.
//
// Grounded on spec §4.2's "recursive coordinate bisection... contiguous
// axis-aligned subdomain" and the original's orthogonal recursive
// bisection partitioner; simplified here to operate on the fully
// gathered global body set rather than true per-rank sub-communicators
// (see DESIGN.md).
func AssignRanks(bodies []model.Body, bounds model.Bounds, mpisize int) []model.Bounds {
	rankBounds := make([]model.Bounds, mpisize)
	if mpisize <= 0 {
		return rankBounds
	}
	idx := make([]int, len(bodies))
	for i := range idx {
		idx[i] = i
	}
	assignRange(bodies, idx, bounds, 0, mpisize, rankBounds)
	return rankBounds
}

func assignRange(bodies []model.Body, idx []int, bounds model.Bounds, rankLo, rankHi int, out []model.Bounds) {
	if rankHi-rankLo <= 1 {
		for _, i := range idx {
			bodies[i].IRank = int32(rankLo)
		}
		out[rankLo] = bounds
		return
	}

	mid := rankLo + (rankHi-rankLo)/2
	axis := bounds.LongestAxis()
	sort.Slice(idx, func(a, b int) bool { return bodies[idx[a]].X[axis] < bodies[idx[b]].X[axis] })

	nLow := 0
	if len(idx) > 0 {
		nLow = len(idx) * (mid - rankLo) / (rankHi - rankLo)
	}
	lowIdx := idx[:nLow]
	highIdx := idx[nLow:]

	splitCoord := bounds.Xmin[axis]
	switch {
	case nLow == 0:
		splitCoord = bounds.Xmin[axis]
	case nLow == len(idx):
		splitCoord = bounds.Xmax[axis]
	default:
		splitCoord = (bodies[idx[nLow-1]].X[axis] + bodies[idx[nLow]].X[axis]) / 2
	}

	lowBounds := bounds
	lowBounds.Xmax[axis] = splitCoord
	highBounds := bounds
	highBounds.Xmin[axis] = splitCoord

	assignRange(bodies, lowIdx, lowBounds, rankLo, mid, out)
	assignRange(bodies, highIdx, highBounds, mid, rankHi, out)
}
