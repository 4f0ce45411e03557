package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmm-go/fmmcore/pkg/model"
)

func TestNewUnknownKernelName(t *testing.T) {
	_, err := New("bogus", 4, 0)
	assert.Error(t, err)
}

func TestP2PCoulombMatchesDirectSum(t *testing.T) {
	k, err := New("coulomb", 4, 0)
	require.NoError(t, err)

	bodies := []model.Body{
		{X: [3]float64{0, 0, 0}, Src: complex(1, 0)},
		{X: [3]float64{1, 0, 0}, Src: complex(2, 0)},
	}
	ci := &model.Cell{IBody: 0, NBody: 1}
	cj := &model.Cell{IBody: 0, NBody: 2}
	k.P2P(bodies, bodies, ci, cj, [3]float64{})

	// body 0 feels only body 1's field (self-pair skipped): q/r = 2/1 = 2
	assert.InDelta(t, 2.0, real(bodies[0].Trg[0]), 1e-9)
}

func TestP2MM2MConservesTotalCharge(t *testing.T) {
	k, err := New("coulomb", 4, 0)
	require.NoError(t, err)

	bodies := []model.Body{
		{X: [3]float64{0.1, 0, 0}, Src: complex(1, 0)},
		{X: [3]float64{-0.1, 0, 0}, Src: complex(3, 0)},
	}
	leaf := model.NewCell(4)
	leaf.X = [3]float64{0, 0, 0}
	leaf.IBody, leaf.NBody = 0, 2
	cells := []model.Cell{leaf}
	k.P2M(cells, bodies, 0)
	assert.InDelta(t, 4.0, real(cells[0].M[0]), 1e-9)

	parent := model.NewCell(4)
	parent.X = [3]float64{0, 0, 0}
	parent.IChild, parent.NChild = 0, 1
	full := []model.Cell{parent, cells[0]}
	// parent at index 0, child at index 1 — rebuild IChild to point at 1
	full[0].IChild = 1
	k.M2M(full, 0)
	assert.InDelta(t, 4.0, real(full[0].M[0]), 1e-9)
}

func TestM2LAgreesWithP2PForWellSeparatedMonopoles(t *testing.T) {
	k, err := New("coulomb", 4, 0)
	require.NoError(t, err)

	srcBodies := []model.Body{{X: [3]float64{10, 0, 0}, Src: complex(5, 0)}}
	cj := model.NewCell(4)
	cj.X = [3]float64{10, 0, 0}
	cj.IBody, cj.NBody = 0, 1
	k.P2M([]model.Cell{cj}, srcBodies, 0)

	trgBodies := []model.Body{{X: [3]float64{0, 0, 0}, Src: complex(1, 0)}}
	ci := model.NewCell(4)
	ci.X = [3]float64{0, 0, 0}
	ci.IBody, ci.NBody = 0, 1

	k.M2L(&ci, &cj, [3]float64{})
	k.L2P([]model.Cell{ci}, trgBodies, 0)

	expected := 5.0 / 10.0
	assert.InDelta(t, expected, real(trgBodies[0].Trg[0]), 1e-9)
}

func TestVanDerWaalsP2PMatchesR6Law(t *testing.T) {
	k, err := New("vanderwaals", 1, 0)
	require.NoError(t, err)

	bodies := []model.Body{
		{X: [3]float64{0, 0, 0}, Src: complex(2, 0)},
		{X: [3]float64{2, 0, 0}, Src: complex(3, 0)},
	}
	ci := &model.Cell{IBody: 0, NBody: 1}
	cj := &model.Cell{IBody: 1, NBody: 1}
	k.P2P(bodies, bodies, ci, cj, [3]float64{})

	expected := 3.0 / math.Pow(2, 6)
	assert.InDelta(t, expected, real(bodies[0].Trg[0]), 1e-9)
}

func TestHelmholtzP2PIsOscillatory(t *testing.T) {
	k, err := New("helmholtz", 1, 2.0)
	require.NoError(t, err)

	bodies := []model.Body{
		{X: [3]float64{0, 0, 0}, Src: complex(1, 0)},
		{X: [3]float64{1, 0, 0}, Src: complex(1, 0)},
	}
	ci := &model.Cell{IBody: 0, NBody: 1}
	cj := &model.Cell{IBody: 1, NBody: 1}
	k.P2P(bodies, bodies, ci, cj, [3]float64{})

	// phi = e^{i*2*1}/1, so it must have a nonzero imaginary part.
	assert.NotEqual(t, 0.0, imag(bodies[0].Trg[0]))
}

func TestRefreshQuadratureFormula(t *testing.T) {
	k, err := New("coulomb", 6, 0)
	require.NoError(t, err)
	assert.Equal(t, 12, k.RefreshQuadrature("M2M"))
	assert.Equal(t, 6, k.RefreshQuadrature("M2L"))
	assert.Equal(t, 6, k.RefreshQuadrature("L2L"))
}
