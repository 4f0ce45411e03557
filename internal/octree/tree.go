package octree

import (
	"sort"

	fmmerrors "github.com/fmm-go/fmmcore/pkg/errors"
	"github.com/fmm-go/fmmcore/pkg/model"
)

// buildCell is one level's worth of grouped children, carrying enough
// to backfill IParent/IChild once every level has been grouped and the
// final flat array's per-level offsets are known.
type buildCell struct {
	key             int64
	x               [3]float64
	r               float64
	ibody, nbody    int32
	childLocalStart int32 // index into the next-finer level's []buildCell, or -1 for leaves
	nchild          int32
}

// BuildTree bucket-sorts bodies into Morton order at numLevels resolution,
// then groups cells bottom-up (each cell's children share its key with
// the finest 3 bits stripped) until it reaches a single root at level 0.
// It returns the flattened cell array (root first, leaves last),
// bodies reordered to match the IBody ranges the cells reference, and
// the level index marking each level's half-open range.
//
// Grounded on spec §3's level-index invariant and the indexed, offset-
// based construction style of the teacher's object store.
func BuildTree(bodies []model.Body, bounds model.Bounds, numLevels int) ([]model.Cell, []model.Body, model.LevelIndex, error) {
	if len(bodies) == 0 {
		return nil, nil, model.LevelIndex{}, fmmerrors.ErrEmptyDomain
	}
	if numLevels < 1 {
		return nil, nil, model.LevelIndex{}, fmmerrors.Wrap(fmmerrors.CodeInvariant, "octree: BuildTree: numLevels must be >= 1", nil)
	}

	center := bounds.Center()
	halfWidth := bounds.HalfWidth()
	if halfWidth <= 0 {
		halfWidth = 1e-12
	}
	origin := [3]float64{center[0] - halfWidth, center[1] - halfWidth, center[2] - halfWidth}
	cellSize := 2 * halfWidth / float64(uint32(1)<<uint(numLevels))

	ordered := make([]model.Body, len(bodies))
	copy(ordered, bodies)
	keys := make([]int64, len(ordered))
	for i, b := range ordered {
		ix := GridCoord(b.X[0], origin[0], cellSize)
		iy := GridCoord(b.X[1], origin[1], cellSize)
		iz := GridCoord(b.X[2], origin[2], cellSize)
		keys[i] = MortonKey(ix, iy, iz)
	}
	idx := make([]int, len(ordered))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })

	sortedBodies := make([]model.Body, len(ordered))
	sortedKeys := make([]int64, len(ordered))
	for i, j := range idx {
		sortedBodies[i] = ordered[j]
		sortedKeys[i] = keys[j]
	}

	// levelCells[numLevels] is the leaf level; levelCells[0] is the root.
	levelCells := make([][]buildCell, numLevels+1)

	leaves := make([]buildCell, 0)
	i := 0
	for i < len(sortedKeys) {
		j := i + 1
		for j < len(sortedKeys) && sortedKeys[j] == sortedKeys[i] {
			j++
		}
		leaves = append(leaves, buildCell{
			key:             sortedKeys[i],
			ibody:           int32(i),
			nbody:           int32(j - i),
			childLocalStart: -1,
		})
		i = j
	}
	levelCells[numLevels] = leaves

	for level := numLevels - 1; level >= 0; level-- {
		children := levelCells[level+1]
		parents := make([]buildCell, 0)
		ci := 0
		for ci < len(children) {
			parentKey := children[ci].key >> 3
			cj := ci + 1
			for cj < len(children) && children[cj].key>>3 == parentKey {
				cj++
			}
			var nbody int32
			for k := ci; k < cj; k++ {
				nbody += children[k].nbody
			}
			parents = append(parents, buildCell{
				key:             parentKey,
				ibody:           children[ci].ibody,
				nbody:           nbody,
				childLocalStart: int32(ci),
				nchild:          int32(cj - ci),
			})
			ci = cj
		}
		levelCells[level] = parents
	}

	levelOffset := make([]int32, numLevels+2)
	total := int32(0)
	for level := 0; level <= numLevels; level++ {
		levelOffset[level] = total
		total += int32(len(levelCells[level]))
	}
	levelOffset[numLevels+1] = total

	cells := make([]model.Cell, total)
	for level := 0; level <= numLevels; level++ {
		cellsAtLevel := float64(uint32(1) << uint(level))
		sizeAtLevel := 2 * halfWidth / cellsAtLevel
		for li, bc := range levelCells[level] {
			global := levelOffset[level] + int32(li)
			ix, iy, iz := MortonDecode(bc.key)
			c := model.NewCell(0)
			c.X = [3]float64{
				origin[0] + (float64(ix)+0.5)*sizeAtLevel,
				origin[1] + (float64(iy)+0.5)*sizeAtLevel,
				origin[2] + (float64(iz)+0.5)*sizeAtLevel,
			}
			c.R = sizeAtLevel / 2
			c.Level = int32(level)
			c.ICell = bc.key
			c.IBody = bc.ibody
			c.NBody = bc.nbody
			c.NChild = bc.nchild
			if level == 0 {
				c.IParent = -1
			}
			if bc.childLocalStart >= 0 {
				c.IChild = levelOffset[level+1] + bc.childLocalStart
			}
			cells[global] = c
		}
	}
	// Second pass: backfill IParent now that every level's cells exist.
	// Doing this in the same pass as cell creation would get clobbered
	// by the parent-side assignment to cells[global] for a level that
	// hasn't been written yet.
	for level := 0; level < numLevels; level++ {
		lo, hi := levelOffset[level], levelOffset[level+1]
		for global := lo; global < hi; global++ {
			c := &cells[global]
			for k := int32(0); k < c.NChild; k++ {
				cells[c.IChild+k].IParent = global
			}
		}
	}

	li := model.LevelIndex{Offset: levelOffset}
	return cells, sortedBodies, li, nil
}
