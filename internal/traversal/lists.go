// Package traversal drives the level-synchronous P2M/M2M/M2L/L2L/L2P/P2P
// pass sequence over a built octree and builds the per-cell M2L/P2P
// interaction lists the passes consume.
package traversal

import (
	"math"

	"github.com/fmm-go/fmmcore/pkg/model"
)

// Kind selects which interaction list GetList builds.
type Kind int

const (
	// KindP2P is colleagues at the same level, near enough that their
	// bodies must be summed directly.
	KindP2P Kind = 0
	// KindM2L is cousins at the same level, well separated under the
	// multipole acceptance criterion.
	KindM2L Kind = 1
)

// PeriodicOffset returns the translation that brings b to its nearest
// periodic image of a, using the minimum-image convention on any axis
// whose cycle length is positive. A zero cycle vector means no periodic
// replication, and the offset is the zero vector.
func PeriodicOffset(a, b [3]float64, cycle [3]float64) [3]float64 {
	var offset [3]float64
	for axis := 0; axis < 3; axis++ {
		if cycle[axis] <= 0 {
			continue
		}
		diff := b[axis] - a[axis]
		shift := math.Round(diff/cycle[axis]) * cycle[axis]
		offset[axis] = -shift
	}
	return offset
}

func periodicDistance(a, b [3]float64, cycle [3]float64) float64 {
	offset := PeriodicOffset(a, b, cycle)
	var sum float64
	for axis := 0; axis < 3; axis++ {
		d := a[axis] - (b[axis] + offset[axis])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// GetList scans every other cell at icell's level within cells itself
// and classifies it by the well-separation predicate 2*Ri+2*Rj <= d:
// kind KindM2L wants the separated cells, KindP2P wants the near ones.
// This is a direct O(cells per level) scan rather than a colleague-table
// walk up the parent chain; correct, not asymptotically optimal,
// acceptable at the scale this engine is exercised at. li.Range relies
// on cells being laid out as one contiguous range per level, true of
// octree.BuildTree's own output (the only thing GetList is ever called
// against icell-and-cells from the same array), but not of a peer's LET
// segment or the attached global tree — see GetListAgainstInto for
// scanning one of those as the candidate array.
func GetList(kind Kind, cells []model.Cell, li model.LevelIndex, icell int32, cycle [3]float64) []int32 {
	list := make([]int32, 0)
	ci := &cells[icell]
	lo, hi := li.Range(int(ci.Level))
	appendRange(kind, ci, cells, lo, hi, cycle, &list)
	return list
}

// GetListInto is GetList's allocation-free variant: buf is reused
// instead of allocated fresh each call, via pkg/collections.Int32SlicePool
// in the per-cell traversal loop (internal/traversal/driver.go), where a
// scratch interaction list is built and discarded once per worker
// iteration across every cell at every level. Only valid when icell
// indexes cells itself (the self-traversal case where cellsI and cellsJ
// are the same array); see GetListAgainstInto otherwise.
func GetListInto(kind Kind, cells []model.Cell, li model.LevelIndex, icell int32, cycle [3]float64, buf *[]int32) {
	*buf = (*buf)[:0]
	ci := &cells[icell]
	lo, hi := li.Range(int(ci.Level))
	appendRange(kind, ci, cells, lo, hi, cycle, buf)
}

// LevelGroups maps each level present in a cell array to the indices of
// every cell at that level. A peer's LET segment (internal/let's DFS
// emission order) and the tree AttachGlobalTree grafts LET segments onto
// are not laid out as one contiguous range per level the way a freshly
// built octree is, so their per-level candidates have to be looked up by
// group instead of by an index range.
type LevelGroups map[int32][]int32

// BuildLevelGroups groups cells by Level for use with GetListAgainstInto.
// Safe to call with a nil/empty cells (returns an empty LevelGroups).
func BuildLevelGroups(cells []model.Cell) LevelGroups {
	groups := make(LevelGroups)
	for i := range cells {
		lvl := cells[i].Level
		groups[lvl] = append(groups[lvl], int32(i))
	}
	return groups
}

// GetListAgainstInto is GetListInto's cross-array variant: ci is the
// caller's own cell, taken directly from cellsI rather than re-derived
// by indexing cellsJ with an index only valid against cellsI's layout.
// cellsJ is scanned through groupsJ (built once per traversal via
// BuildLevelGroups, not per cell) instead of a per-level index range,
// since cellsJ — a peer's LET segment or the attached global tree — has
// no such contiguous layout. Safe to call with a nil cellsJ/groupsJ (an
// empty candidate list, used by Driver.DownwardPass's local-only pass).
func GetListAgainstInto(kind Kind, ci *model.Cell, cellsJ []model.Cell, groupsJ LevelGroups, cycle [3]float64, buf *[]int32) {
	*buf = (*buf)[:0]
	for _, j := range groupsJ[ci.Level] {
		classify(kind, ci, &cellsJ[j], j, cycle, buf)
	}
}

func appendRange(kind Kind, ci *model.Cell, cells []model.Cell, lo, hi int32, cycle [3]float64, out *[]int32) {
	for j := lo; j < hi; j++ {
		classify(kind, ci, &cells[j], j, cycle, out)
	}
}

// classify is the well-separation test both GetList's same-array scan
// and GetListAgainstInto's cross-array scan share. Self-exclusion is by
// cell identity rather than index equality, so it works whether ci and
// cj come from the same array (same index means the same cell) or from
// two different arrays (no index ever aliases a cell in the other one).
func classify(kind Kind, ci, cj *model.Cell, j int32, cycle [3]float64, out *[]int32) {
	if cj == ci {
		return
	}
	d := periodicDistance(ci.X, cj.X, cycle)
	separated := 2*ci.R+2*cj.R <= d
	if kind == KindM2L && separated {
		*out = append(*out, j)
	}
	if kind == KindP2P && !separated {
		*out = append(*out, j)
	}
}
