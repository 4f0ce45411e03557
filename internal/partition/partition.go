package partition

import (
	"context"

	"github.com/fmm-go/fmmcore/pkg/comm"
	"github.com/fmm-go/fmmcore/pkg/model"
)

func encodeBodies(bodies []model.Body) []byte {
	out := make([]byte, 0, len(bodies)*model.BodyWord*4)
	for _, b := range bodies {
		words := b.ToWords()
		for _, w := range words {
			out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
		}
	}
	return out
}

func decodeBodies(payload []byte) []model.Body {
	n := len(payload) / (model.BodyWord * 4)
	out := make([]model.Body, n)
	for i := 0; i < n; i++ {
		words := make([]uint32, model.BodyWord)
		base := i * model.BodyWord * 4
		for w := 0; w < model.BodyWord; w++ {
			o := base + w*4
			words[w] = uint32(payload[o]) | uint32(payload[o+1])<<8 | uint32(payload[o+2])<<16 | uint32(payload[o+3])<<24
		}
		out[i].FromWords(words)
	}
	return out
}

// Partition assigns every body (local and remote) to the rank that will
// own it, writing Body.IRank on the caller's local slice in place, and
// returns the axis-aligned subdomain this rank was assigned.
//
// The assignment is computed identically on every rank from the full
// gathered body set so that Body.IRank agrees everywhere without a
// second round trip; CommBodies then moves bodies to their assigned
// rank via Alltoallv.
func Partition(ctx context.Context, c comm.Comm, bodies []model.Body, global model.Bounds) (model.Bounds, error) {
	gathered, err := c.Allgather(ctx, encodeBodies(bodies))
	if err != nil {
		return model.Bounds{}, err
	}
	all := make([]model.Body, 0)
	offsets := make([]int, len(gathered))
	for r, payload := range gathered {
		offsets[r] = len(all)
		all = append(all, decodeBodies(payload)...)
	}

	rankBounds := AssignRanks(all, global, c.Size())

	myOffset := offsets[c.Rank()]
	for i := range bodies {
		bodies[i].IRank = all[myOffset+i].IRank
	}
	return rankBounds[c.Rank()], nil
}
