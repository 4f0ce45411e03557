package partition

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmm-go/fmmcore/pkg/comm"
	"github.com/fmm-go/fmmcore/pkg/model"
)

func TestPartitionAndCommBodiesRoundTrip(t *testing.T) {
	const size = 2
	comms := comm.NewLocalGroup(size)

	local := [][]model.Body{
		{{X: [3]float64{0, 0, 0}, IBody: 0}, {X: [3]float64{1, 0, 0}, IBody: 1}},
		{{X: [3]float64{4, 0, 0}, IBody: 2}, {X: [3]float64{5, 0, 0}, IBody: 3}},
	}
	global := model.Bounds{Xmin: [3]float64{0, 0, 0}, Xmax: [3]float64{5, 1, 1}}

	owned := make([][]model.Body, size)
	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			lb, err := Partition(context.Background(), comms[r], local[r], global)
			require.NoError(t, err)
			_ = lb
			ob, err := CommBodies(context.Background(), comms[r], local[r])
			require.NoError(t, err)
			owned[r] = ob
		}(r)
	}
	wg.Wait()

	total := 0
	for _, ob := range owned {
		total += len(ob)
	}
	assert.Equal(t, 4, total)

	// the two leftmost bodies (x=0,1) should end up on the lower-x rank
	lowIDs := map[int64]bool{}
	for _, b := range owned[0] {
		lowIDs[b.IBody] = true
	}
	assert.True(t, lowIDs[0] && lowIDs[1])
}

func TestShiftBodiesRing(t *testing.T) {
	const size = 4
	comms := comm.NewLocalGroup(size)
	counts := []int{10, 20, 30, 40}
	local := make([][]model.Body, size)
	for r := 0; r < size; r++ {
		local[r] = make([]model.Body, counts[r])
	}

	after := make([][]model.Body, size)
	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			out, err := ShiftBodies(context.Background(), comms[r], local[r])
			require.NoError(t, err)
			after[r] = out
		}(r)
	}
	wg.Wait()

	assert.Equal(t, 40, len(after[0]))
	assert.Equal(t, 10, len(after[1]))
	assert.Equal(t, 20, len(after[2]))
	assert.Equal(t, 30, len(after[3]))
}
