package let

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmm-go/fmmcore/pkg/comm"
	"github.com/fmm-go/fmmcore/pkg/model"
)

func oneCellOneBodySegment(order int, tag int64) ([]model.Cell, []model.Body) {
	cell := model.NewCell(order)
	cell.X = [3]float64{1, 2, 3}
	cell.IParent = -1
	cell.IBody = 0
	cell.NBody = 1
	body := model.Body{X: [3]float64{1, 2, 3}, Src: complex(float64(tag), 0)}
	return []model.Cell{cell}, []model.Body{body}
}

func TestCommLETRoundTripsSegments(t *testing.T) {
	const size = 2
	comms := comm.NewLocalGroup(size)
	order := 4

	sendCells := make([][][]model.Cell, size)
	sendBodies := make([][][]model.Body, size)
	for r := 0; r < size; r++ {
		sendCells[r] = make([][]model.Cell, size)
		sendBodies[r] = make([][]model.Body, size)
		for peer := 0; peer < size; peer++ {
			if peer == r {
				continue
			}
			sendCells[r][peer], sendBodies[r][peer] = oneCellOneBodySegment(order, int64(r*10+peer))
		}
	}

	results := make([][]Segment, size)
	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			segs, err := CommLET(context.Background(), comms[r], sendCells[r], sendBodies[r], order)
			require.NoError(t, err)
			results[r] = segs
		}(r)
	}
	wg.Wait()

	// rank 0 received what rank 1 sent it, and vice versa.
	require.Len(t, results[0][1].Cells, 1)
	require.Len(t, results[0][1].Bodies, 1)
	assert.Equal(t, complex(float64(10), 0), results[0][1].Bodies[0].Src)

	require.Len(t, results[1][0].Cells, 1)
	assert.Equal(t, complex(float64(1), 0), results[1][0].Bodies[0].Src)
}

func TestEncodeDecodeCellsRoundTrip(t *testing.T) {
	order := 4
	cell := model.NewCell(order)
	cell.X = [3]float64{1, 2, 3}
	cell.R = 0.5
	cell.M[0] = complex(7, 1)
	payload := encodeCells([]model.Cell{cell})
	out := decodeCells(payload, order)
	require.Len(t, out, 1)
	assert.Equal(t, cell.X, out[0].X)
	assert.Equal(t, cell.M[0], out[0].M[0])
}
