package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmm-go/fmmcore/pkg/model"
)

// fixtureTree builds:
//
//	cell 0 (root):   NChild=2, IChild=1
//	cell 1 (childA): NChild=2, IChild=3
//	cell 2 (childB): NChild=0
//	cell 3 (grandA1): NChild=0
//	cell 4 (grandA2): NChild=0
func fixtureTree(order int) []model.Cell {
	mk := func(nchild, ichild int32, tag float64) model.Cell {
		c := model.NewCell(order)
		c.NChild = nchild
		c.IChild = ichild
		c.M[0] = complex(tag, 0)
		return c
	}
	return []model.Cell{
		mk(2, 1, 0),
		mk(2, 3, 1),
		mk(0, 0, 2),
		mk(0, 0, 3),
		mk(0, 0, 4),
	}
}

func TestPackSubtreeDirectChildrenOnly(t *testing.T) {
	cells := fixtureTree(4)
	out := packSubtree(cells, 0, 1)
	require.Len(t, out, 2)
	assert.Equal(t, complex(1.0, 0), out[0].M[0])
	assert.Equal(t, complex(2.0, 0), out[1].M[0])
}

func TestPackSubtreeTwoLevelsEmitsBlockPerParent(t *testing.T) {
	cells := fixtureTree(4)
	out := packSubtree(cells, 0, 2)
	require.Len(t, out, 4)
	// root's own block (childA, childB) comes first, then childA's block
	// (grandA1, grandA2) immediately follows.
	assert.Equal(t, complex(1.0, 0), out[0].M[0])
	assert.Equal(t, complex(2.0, 0), out[1].M[0])
	assert.Equal(t, complex(3.0, 0), out[2].M[0])
	assert.Equal(t, complex(4.0, 0), out[3].M[0])
}

func TestPackSubtreeLeafRootYieldsNothing(t *testing.T) {
	cells := fixtureTree(4)
	out := packSubtree(cells, 2, 1)
	assert.Len(t, out, 0)
}

func TestAppendDFSReconstructsNestedBlocks(t *testing.T) {
	cells := fixtureTree(4)
	out := packSubtree(cells, 0, 2)
	m := AppendDFS(out, 0, 2)

	require.Len(t, m[0], 2)
	assert.Equal(t, complex(1.0, 0), m[0][0].M[0])
	assert.Equal(t, complex(2.0, 0), m[0][1].M[0])

	require.Len(t, m[3], 2)
	assert.Equal(t, complex(3.0, 0), m[3][0].M[0])
	assert.Equal(t, complex(4.0, 0), m[3][1].M[0])
}

func TestAppendDFSSingleLevelMatchesDirectChildren(t *testing.T) {
	cells := fixtureTree(4)
	out := packSubtree(cells, 0, 1)
	m := AppendDFS(out, 0, 2)
	require.Len(t, m, 1)
	require.Len(t, m[0], 2)
	assert.Equal(t, out, m[0])
}

func TestAppendBFSAgreesWithAppendDFSOnIParentGrouping(t *testing.T) {
	order := 4
	mk := func(nchild, ichild, iparent int32, tag float64) model.Cell {
		c := model.NewCell(order)
		c.NChild = nchild
		c.IChild = ichild
		c.IParent = iparent
		c.M[0] = complex(tag, 0)
		return c
	}
	// Same shape as fixtureTree but every record also carries its real
	// IParent, the field AppendBFS groups on instead of trusting order.
	cells := []model.Cell{
		mk(2, 1, -1, 0),
		mk(2, 3, 0, 1),
		mk(0, 0, 0, 2),
		mk(0, 0, 1, 3),
		mk(0, 0, 1, 4),
	}
	out := packSubtree(cells, 0, 2)
	dfs := AppendDFS(out, 0, 2)
	bfs := AppendBFS(out)

	assert.ElementsMatch(t, dfs[0], bfs[0])
	assert.ElementsMatch(t, dfs[3], bfs[1])
}
