package let

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmm-go/fmmcore/internal/octree"
	"github.com/fmm-go/fmmcore/pkg/model"
)

func cubeBodies() []model.Body {
	bodies := make([]model.Body, 0, 8)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				bodies = append(bodies, model.Body{X: [3]float64{
					-0.5 + float64(i),
					-0.5 + float64(j),
					-0.5 + float64(k),
				}})
			}
		}
	}
	return bodies
}

func buildCubeTree(t *testing.T) ([]model.Cell, []model.Body) {
	t.Helper()
	cube := model.Bounds{Xmin: [3]float64{-1, -1, -1}, Xmax: [3]float64{1, 1, 1}}
	cells, sorted, _, err := octree.BuildTree(cubeBodies(), cube, 2)
	require.NoError(t, err)
	return cells, sorted
}

func TestSelectEmptyLocalDomainReturnsNil(t *testing.T) {
	cells, bodies := Select(nil, nil, model.Bounds{}, [3]float64{}, 2, 2)
	assert.Nil(t, cells)
	assert.Nil(t, bodies)
}

func TestSelectStopsAtWellSeparatedSubtree(t *testing.T) {
	cells, bodies := buildCubeTree(t)
	farBounds := model.Bounds{
		Xmin: [3]float64{100, 100, 100},
		Xmax: [3]float64{101, 101, 101},
	}
	outCells, outBodies := Select(cells, bodies, farBounds, [3]float64{}, 2, 2)

	require.NotEmpty(t, outCells)
	root := outCells[0]
	assert.Equal(t, root.NChild, int32(len(outCells)-1), "only the root's immediate children should be packed")
	assert.Empty(t, outBodies, "a well-separated subtree should stop before reaching any leaf")
}

func TestSelectDescendsIntoNearbySubtree(t *testing.T) {
	cells, bodies := buildCubeTree(t)
	// A remote subdomain that overlaps the local domain forces every
	// subtree to be judged "too close", so the walk must descend all
	// the way to the leaves and pack their bodies.
	nearBounds := model.Bounds{Xmin: [3]float64{-1, -1, -1}, Xmax: [3]float64{1, 1, 1}}
	_, outBodies := Select(cells, bodies, nearBounds, [3]float64{}, 2, 2)
	assert.Len(t, outBodies, len(bodies))
}

func TestSelectInvariantsHoldOnPackedSegment(t *testing.T) {
	cells, bodies := buildCubeTree(t)
	nearBounds := model.Bounds{Xmin: [3]float64{-1, -1, -1}, Xmax: [3]float64{1, 1, 1}}
	outCells, _ := Select(cells, bodies, nearBounds, [3]float64{}, 2, 2)

	for i, c := range outCells {
		if i == 0 {
			assert.Equal(t, int32(-1), c.IParent)
			continue
		}
		assert.GreaterOrEqual(t, c.IParent, int32(0))
		assert.Less(t, int(c.IParent), len(outCells))
	}
}

func TestBuildAllSkipsOwnRank(t *testing.T) {
	cells, bodies := buildCubeTree(t)
	rankBounds := []model.Bounds{
		{Xmin: [3]float64{-1, -1, -1}, Xmax: [3]float64{1, 1, 1}},
		{Xmin: [3]float64{100, 100, 100}, Xmax: [3]float64{101, 101, 101}},
	}
	outCells, outBodies := BuildAll(cells, bodies, rankBounds, 0, [3]float64{}, 2)
	assert.Nil(t, outCells[0])
	assert.Nil(t, outBodies[0])
	assert.NotNil(t, outCells[1])
}
