package let

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmm-go/fmmcore/internal/kernel"
	"github.com/fmm-go/fmmcore/internal/octree"
	"github.com/fmm-go/fmmcore/pkg/model"
)

// remoteSegment builds a one-cell LET segment representing a peer's
// entire (trivial) local tree: a single leaf cell with one body.
func remoteSegment(order int, x [3]float64, charge float64) Segment {
	cell := model.NewCell(order)
	cell.X = x
	cell.R = 0.1
	cell.IParent = -1
	cell.IBody = 0
	cell.NBody = 1
	cell.M[0] = complex(charge, 0)
	return Segment{
		Cells:  []model.Cell{cell},
		Bodies: []model.Body{{X: x, Src: complex(charge, 0)}},
	}
}

func TestAttachRootGraftsLeavesAndRecomputesAncestors(t *testing.T) {
	order := 4
	k, err := kernel.New("coulomb", order, 0)
	require.NoError(t, err)

	segments := []Segment{
		{}, // rank 0 is self, never populated
		remoteSegment(order, [3]float64{10, 0, 0}, 2),
		remoteSegment(order, [3]float64{-10, 0, 0}, 3),
	}

	// Build the coarse global tree over the two remote roots.
	globalBodies := RootBodies(segments, 0)
	require.Len(t, globalBodies, 2)
	bounds := model.Bounds{Xmin: [3]float64{-11, -1, -1}, Xmax: [3]float64{11, 1, 1}}
	globalCells, sortedGlobalBodies, _, err := octree.BuildTree(globalBodies, bounds, 2)
	require.NoError(t, err)
	for i := range globalCells {
		globalCells[i].M = make([]complex128, order)
		globalCells[i].L = make([]complex128, order)
	}

	merged := AttachRoot(globalCells, sortedGlobalBodies, segments, k)

	require.True(t, len(merged) > len(globalCells))
	root := merged[0]
	// the root's recomputed monopole must be the sum of both remote charges.
	assert.InDelta(t, 5.0, real(root.M[0]), 1e-9)
}

func TestAttachRootSkipsPeerWithEmptySegment(t *testing.T) {
	order := 4
	k, err := kernel.New("coulomb", order, 0)
	require.NoError(t, err)

	segments := []Segment{{}, remoteSegment(order, [3]float64{10, 0, 0}, 2)}
	globalBodies := RootBodies(segments, 0)
	require.Len(t, globalBodies, 1)
	bounds := model.Bounds{Xmin: [3]float64{9, -1, -1}, Xmax: [3]float64{11, 1, 1}}
	globalCells, sortedGlobalBodies, _, err := octree.BuildTree(globalBodies, bounds, 1)
	require.NoError(t, err)
	for i := range globalCells {
		globalCells[i].M = make([]complex128, order)
		globalCells[i].L = make([]complex128, order)
	}

	merged := AttachRoot(globalCells, sortedGlobalBodies, segments, k)
	assert.Equal(t, len(globalCells)+1, len(merged))
}
