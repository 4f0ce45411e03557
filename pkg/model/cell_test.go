package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellWordRoundTrip(t *testing.T) {
	const order = 4
	c := NewCell(order)
	c.X = [3]float64{0.5, 0.5, 0.5}
	c.R = 0.5
	c.Level = 2
	c.ICell = 42
	c.IParent = 1
	c.IChild = 3
	c.NChild = 8
	c.IBody = 0
	c.NBody = 10
	for i := 0; i < order; i++ {
		c.M[i] = complex(float64(i), float64(-i))
		c.L[i] = complex(float64(i)*2, 0)
	}

	w := c.ToWords()
	require.Len(t, w, CellWord(order))

	var got Cell
	got.FromWords(w, order)
	assert.Equal(t, c, got)
}

func TestCellIsLeaf(t *testing.T) {
	c := NewCell(2)
	assert.True(t, c.IsLeaf())
	c.NChild = 8
	assert.False(t, c.IsLeaf())
}

func TestCellReset(t *testing.T) {
	c := NewCell(2)
	c.M[0] = 5
	c.L[1] = 7
	c.Reset()
	assert.Equal(t, complex128(0), c.M[0])
	assert.Equal(t, complex128(0), c.L[1])
}

func TestCellWordFormula(t *testing.T) {
	assert.Equal(t, CellFixedWord, CellWord(0))
	assert.Equal(t, CellFixedWord+8, CellWord(1))
	assert.Equal(t, CellFixedWord+80, CellWord(10))
}
