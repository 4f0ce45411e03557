package traversal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fmm-go/fmmcore/pkg/model"
)

func TestPeriodicOffsetNoCycleIsZero(t *testing.T) {
	a := [3]float64{0, 0, 0}
	b := [3]float64{9, 0, 0}
	offset := PeriodicOffset(a, b, [3]float64{})
	assert.Equal(t, [3]float64{0, 0, 0}, offset)
}

func TestPeriodicOffsetWrapsNearestImage(t *testing.T) {
	a := [3]float64{0.5, 0, 0}
	b := [3]float64{9.5, 0, 0}
	// cycle 10: b's nearest image to a is at -0.5, one cycle below b.
	offset := PeriodicOffset(a, b, [3]float64{10, 0, 0})
	assert.InDelta(t, -10.0, offset[0], 1e-9)
}

func TestPeriodicOffsetIgnoresNonPeriodicAxis(t *testing.T) {
	a := [3]float64{0, 0, 0}
	b := [3]float64{0, 9, 0}
	offset := PeriodicOffset(a, b, [3]float64{10, 0, 0})
	assert.Equal(t, 0.0, offset[1])
}

func twoCellLevel(separation float64, r float64) []model.Cell {
	return []model.Cell{
		{X: [3]float64{0, 0, 0}, R: r, Level: 2},
		{X: [3]float64{separation, 0, 0}, R: r, Level: 2},
	}
}

func levelIndexFor(cells []model.Cell) model.LevelIndex {
	// two leaves at level 2; offsets must bracket [0,2) at that level.
	return model.LevelIndex{Offset: []int32{0, 0, 0, int32(len(cells))}}
}

func TestGetListClassifiesWellSeparatedAsM2L(t *testing.T) {
	cells := twoCellLevel(100, 1)
	li := levelIndexFor(cells)
	m2l := GetList(KindM2L, cells, li, 0, [3]float64{})
	p2p := GetList(KindP2P, cells, li, 0, [3]float64{})
	assert.Equal(t, []int32{1}, m2l)
	assert.Empty(t, p2p)
}

func TestGetListClassifiesCloseCellsAsP2P(t *testing.T) {
	cells := twoCellLevel(1.5, 1)
	li := levelIndexFor(cells)
	m2l := GetList(KindM2L, cells, li, 0, [3]float64{})
	p2p := GetList(KindP2P, cells, li, 0, [3]float64{})
	assert.Empty(t, m2l)
	assert.Equal(t, []int32{1}, p2p)
}

func TestGetListExcludesSelf(t *testing.T) {
	cells := twoCellLevel(100, 1)
	li := levelIndexFor(cells)
	for _, list := range [][]int32{
		GetList(KindM2L, cells, li, 0, [3]float64{}),
		GetList(KindP2P, cells, li, 0, [3]float64{}),
	} {
		assert.NotContains(t, list, int32(0))
	}
}
