package traversal

import (
	"context"

	"github.com/fmm-go/fmmcore/internal/kernel"
	"github.com/fmm-go/fmmcore/pkg/collections"
	"github.com/fmm-go/fmmcore/pkg/model"
	"github.com/fmm-go/fmmcore/pkg/parallel"
	"github.com/fmm-go/fmmcore/pkg/utils"
)

// rangeOf builds the []int32 of indices [lo,hi) ForEach can iterate in
// parallel; cheap for the cell counts this engine deals with.
func rangeOf(lo, hi int32) []int32 {
	out := make([]int32, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}

// UpwardPass runs P2M on the leaves of levels 2..maxLevel, then M2M
// into the cells of levels maxLevel-1 up to 2, zeroing every cell's M
// and L first. Cells at levels 0 and 1 get no multipole. Cells
// within one level are independent, so each level's loop is a
// data-parallel region with a barrier between levels — matching spec
// §4.1's "no inter-level pipelining" rule.
func UpwardPass(ctx context.Context, cells []model.Cell, bodies []model.Body, li model.LevelIndex, k kernel.Kernel, timer *utils.Timer, cfg parallel.PoolConfig) {
	for i := range cells {
		cells[i].Reset()
	}

	p2m := timer.Start("P2M")
	maxLevel := li.MaxLevel()
	for level := 2; level <= maxLevel; level++ {
		lo, hi := li.Range(level)
		parallel.ForEach(ctx, rangeOf(lo, hi), cfg, func(ctx context.Context, icell int32) error {
			if cells[icell].IsLeaf() {
				k.P2M(cells, bodies, icell)
			}
			return nil
		})
	}
	p2m.Stop()

	m2m := timer.Start("M2M")
	for level := maxLevel; level > 2; level-- {
		k.RefreshQuadrature("M2M")
		lo, hi := li.Range(level - 1)
		parallel.ForEach(ctx, rangeOf(lo, hi), cfg, func(ctx context.Context, icell int32) error {
			k.M2M(cells, icell)
			return nil
		})
	}
	m2m.Stop()
}

// sameCells reports whether a and b are the same backing array, the
// only case in which an index valid against a's LevelIndex is also
// valid against b.
func sameCells(a, b []model.Cell) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}

// DualTreeTraversal runs M2L (against cellsJ, typically a peer's local
// essential tree segment or the attached global tree) followed by L2L
// and L2P on cellsI, then P2P near-field summation. mutual is accepted
// and always ignored — see DESIGN.md's Open Question resolution.
//
// cellsJ is not in general laid out as one contiguous range per level
// the way cellsI (always fresh octree.BuildTree output) is, so its
// per-level candidates are looked up through a LevelGroups built once
// here rather than through li, except in the self-traversal case
// (cellsJ is literally cellsI) where li's ranges already apply and
// reusing them avoids the grouping pass.
func DualTreeTraversal(ctx context.Context, cellsI, cellsJ []model.Cell, bodiesI, bodiesJ []model.Body, li model.LevelIndex, k kernel.Kernel, cycle [3]float64, mutual bool, timer *utils.Timer, cfg parallel.PoolConfig) {
	maxLevel := li.MaxLevel()
	selfTraversal := sameCells(cellsI, cellsJ)
	var groupsJ LevelGroups
	if !selfTraversal {
		groupsJ = BuildLevelGroups(cellsJ)
	}

	m2l := timer.Start("M2L")
	for level := 2; level <= maxLevel; level++ {
		k.RefreshQuadrature("M2L")
		lo, hi := li.Range(level)
		parallel.ForEach(ctx, rangeOf(lo, hi), cfg, func(ctx context.Context, icell int32) error {
			ci := &cellsI[icell]
			buf := collections.GetInt32Slice()
			defer collections.PutInt32Slice(buf)
			if selfTraversal {
				GetListInto(KindM2L, cellsJ, li, icell, cycle, buf)
			} else {
				GetListAgainstInto(KindM2L, ci, cellsJ, groupsJ, cycle, buf)
			}
			for _, jcell := range *buf {
				cj := &cellsJ[jcell]
				offset := PeriodicOffset(ci.X, cj.X, cycle)
				k.M2L(ci, cj, offset)
			}
			return nil
		})
	}
	m2l.Stop()

	l2l := timer.Start("L2L")
	for level := 3; level <= maxLevel; level++ {
		k.RefreshQuadrature("L2L")
		lo, hi := li.Range(level - 1)
		parallel.ForEach(ctx, rangeOf(lo, hi), cfg, func(ctx context.Context, icell int32) error {
			k.L2L(cellsI, icell)
			return nil
		})
	}
	l2l.Stop()

	l2p := timer.Start("L2P")
	for level := 2; level <= maxLevel; level++ {
		lo, hi := li.Range(level)
		parallel.ForEach(ctx, rangeOf(lo, hi), cfg, func(ctx context.Context, icell int32) error {
			if cellsI[icell].IsLeaf() {
				k.L2P(cellsI, bodiesI, icell)
			}
			return nil
		})
	}
	l2p.Stop()

	p2p := timer.Start("P2P")
	all := rangeOf(0, int32(len(cellsI)))
	parallel.ForEach(ctx, all, cfg, func(ctx context.Context, icell int32) error {
		ci := &cellsI[icell]
		if !ci.IsLeaf() {
			return nil
		}
		k.P2P(bodiesI, bodiesI, ci, ci, [3]float64{})
		buf := collections.GetInt32Slice()
		defer collections.PutInt32Slice(buf)
		if selfTraversal {
			GetListInto(KindP2P, cellsJ, li, icell, cycle, buf)
		} else {
			GetListAgainstInto(KindP2P, ci, cellsJ, groupsJ, cycle, buf)
		}
		for _, jcell := range *buf {
			cj := &cellsJ[jcell]
			if !cj.IsLeaf() {
				continue
			}
			offset := PeriodicOffset(ci.X, cj.X, cycle)
			k.P2P(bodiesI, bodiesJ, ci, cj, offset)
		}
		return nil
	})
	p2p.Stop()
}
