// Package let builds, exchanges, and grafts Local Essential Trees: the
// minimal per-peer subtree each rank needs to evaluate its own
// subdomain against every remote rank's multipoles.
package let

import (
	"math"

	"github.com/fmm-go/fmmcore/pkg/model"
)

// localRootLevel returns the octree level at which a rank's subdomain
// is comparable in size to one cell, log base 8 of mpisize-1 plus one;
// cells coarser than this are always refined further regardless of the
// distance test, since a single multipole at that scale would span
// more than one remote rank's subdomain.
func localRootLevel(mpisize int) int {
	if mpisize <= 1 {
		return 0
	}
	return int(math.Log(float64(mpisize-1))/math.Log(2)/3) + 1
}

func getDistanceSquared(x [3]float64, bounds model.Bounds, offset [3]float64) float64 {
	var d [3]float64
	for axis := 0; axis < 3; axis++ {
		p := x[axis] + offset[axis]
		switch {
		case p > bounds.Xmax[axis]:
			d[axis] = p - bounds.Xmax[axis]
		case p < bounds.Xmin[axis]:
			d[axis] = p - bounds.Xmin[axis]
		}
	}
	return d[0]*d[0] + d[1]*d[1] + d[2]*d[2]
}

// minDistanceSquared is the squared distance from x to the nearest
// point of bounds, minimized over the 3x3x3 lattice of periodic images
// when any axis has a positive cycle length.
func minDistanceSquared(x [3]float64, bounds model.Bounds, cycle [3]float64) float64 {
	periodic := cycle[0] > 0 || cycle[1] > 0 || cycle[2] > 0
	if !periodic {
		return getDistanceSquared(x, bounds, [3]float64{})
	}
	best := math.Inf(1)
	for ix := -1; ix <= 1; ix++ {
		for iy := -1; iy <= 1; iy++ {
			for iz := -1; iz <= 1; iz++ {
				offset := [3]float64{float64(ix) * cycle[0], float64(iy) * cycle[1], float64(iz) * cycle[2]}
				if r2 := getDistanceSquared(x, bounds, offset); r2 < best {
					best = r2
				}
			}
		}
	}
	return best
}

// builder accumulates either counts (copyData=false) or payload
// (copyData=true) for one rank's send segment.
type builder struct {
	cells     []model.Cell
	bodies    []model.Body
	srcCells  []model.Cell
	srcBodies []model.Body
	icell     int32
	ibody     int32
	copyData  bool
}

func (b *builder) addSendCell(cc *model.Cell, iparent int32) int32 {
	myIcell := b.icell
	if b.copyData {
		cell := *cc
		cell.NChild, cell.NBody = 0, 0
		cell.IParent = iparent
		b.cells[myIcell] = cell
		parent := &b.cells[iparent]
		if parent.NChild == 0 {
			parent.IChild = myIcell
		}
		parent.NChild++
	}
	b.icell++
	return myIcell
}

func (b *builder) addSendBody(cc *model.Cell, icellIdx int32) {
	if b.copyData {
		b.cells[icellIdx].NBody = cc.NBody
		b.cells[icellIdx].IBody = b.ibody
		for i := int32(0); i < cc.NBody; i++ {
			b.bodies[b.ibody+i] = b.srcBodies[cc.IBody+i]
		}
	}
	b.ibody += cc.NBody
}

// traverseLET descends from parentGlobal's children, deciding per spec
// §4.3 whether each child must be further refined: a leaf always stops
// (and contributes its bodies); a non-leaf refines when it is too close
// to summarize with a single multipole (4*R^2 > distance^2) or coarser
// than the local-root scale. The local-root-scale test applies
// unconditionally (tree_mpi.h's CC->R > (X_PERIODIC)/pow(2,level+1) is
// not gated on periodicity either): domainExtent is the true span of
// the global simulation box, not the periodic cycle length, which is
// legitimately zero for a free-space run and would otherwise disable
// the test exactly when it is most needed.
func (b *builder) traverseLET(parentGlobal, iparent int32, bounds model.Bounds, cycle [3]float64, rootLevel int, domainExtent float64) {
	parent := &b.srcCells[parentGlobal]
	n := parent.NChild
	if n == 0 {
		return
	}
	icells := make([]int32, n)
	divide := make([]bool, n)
	for k := int32(0); k < n; k++ {
		childGlobal := parent.IChild + k
		cc := &b.srcCells[childGlobal]
		icells[k] = b.addSendCell(cc, iparent)
		if cc.IsLeaf() {
			b.addSendBody(cc, icells[k])
			continue
		}
		r2 := minDistanceSquared(cc.X, bounds, cycle)
		divide[k] = 4*cc.R*cc.R > r2
		divide[k] = divide[k] || cc.R > domainExtent/math.Pow(2, float64(rootLevel+1))
	}
	for k := int32(0); k < n; k++ {
		if divide[k] {
			childGlobal := parent.IChild + k
			b.traverseLET(childGlobal, icells[k], bounds, cycle, rootLevel, domainExtent)
		}
	}
}

func selectPass(cells []model.Cell, bodies []model.Body, bounds model.Bounds, cycle [3]float64, mpisize int, domainExtent float64, copyData bool, outCells []model.Cell, outBodies []model.Body) (int32, int32) {
	b := &builder{
		cells:     outCells,
		bodies:    outBodies,
		srcCells:  cells,
		srcBodies: bodies,
		icell:     1,
		ibody:     0,
		copyData:  copyData,
	}
	root := &cells[0]
	if copyData {
		rootCopy := *root
		rootCopy.NChild, rootCopy.NBody = 0, 0
		rootCopy.IParent = -1
		outCells[0] = rootCopy
	}
	if root.IsLeaf() {
		b.addSendBody(root, 0)
	}
	b.traverseLET(0, 0, bounds, cycle, localRootLevel(mpisize), domainExtent)
	return b.icell, b.ibody
}

// Select runs the two-pass LET emission for one destination rank's
// subdomain: a counting pass sizes the send buffers, a copying pass
// fills them with IPARENT/ICHILD rewritten to offsets local to this
// segment and IBODY rewritten to this segment's body offset.
// domainExtent is the full span of the global simulation box (e.g. the
// caller's Driver.globalBounds, not the periodic cycle length) and
// feeds the local-root-scale refinement test regardless of whether the
// run is periodic.
func Select(cells []model.Cell, bodies []model.Body, bounds model.Bounds, cycle [3]float64, mpisize int, domainExtent float64) ([]model.Cell, []model.Body) {
	if len(cells) == 0 {
		return nil, nil
	}
	cellCount, bodyCount := selectPass(cells, bodies, bounds, cycle, mpisize, domainExtent, false, nil, nil)
	outCells := make([]model.Cell, cellCount)
	outBodies := make([]model.Body, bodyCount)
	selectPass(cells, bodies, bounds, cycle, mpisize, domainExtent, true, outCells, outBodies)
	return outCells, outBodies
}

// BuildAll runs Select once per remote rank in rankBounds, skipping
// myRank; the local rank never sends itself a LET segment.
func BuildAll(cells []model.Cell, bodies []model.Body, rankBounds []model.Bounds, myRank int, cycle [3]float64, domainExtent float64) ([][]model.Cell, [][]model.Body) {
	mpisize := len(rankBounds)
	outCells := make([][]model.Cell, mpisize)
	outBodies := make([][]model.Body, mpisize)
	for r := 0; r < mpisize; r++ {
		if r == myRank {
			continue
		}
		outCells[r], outBodies[r] = Select(cells, bodies, rankBounds[r], cycle, mpisize, domainExtent)
	}
	return outCells, outBodies
}
