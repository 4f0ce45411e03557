package let

import (
	"context"

	"github.com/fmm-go/fmmcore/pkg/comm"
	"github.com/fmm-go/fmmcore/pkg/metrics"
	"github.com/fmm-go/fmmcore/pkg/model"
)

func encodeCells(cells []model.Cell) []byte {
	if len(cells) == 0 {
		return nil
	}
	order := len(cells[0].M)
	word := model.CellWord(order)
	out := make([]byte, 0, len(cells)*word*4)
	for _, c := range cells {
		for _, w := range c.ToWords() {
			out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
		}
	}
	return out
}

func decodeCells(payload []byte, order int) []model.Cell {
	word := model.CellWord(order)
	if word == 0 {
		return nil
	}
	n := len(payload) / (word * 4)
	out := make([]model.Cell, n)
	for i := 0; i < n; i++ {
		words := make([]uint32, word)
		base := i * word * 4
		for w := 0; w < word; w++ {
			o := base + w*4
			words[w] = uint32(payload[o]) | uint32(payload[o+1])<<8 | uint32(payload[o+2])<<16 | uint32(payload[o+3])<<24
		}
		out[i].FromWords(words, order)
	}
	return out
}

func encodeBodies(bodies []model.Body) []byte {
	out := make([]byte, 0, len(bodies)*model.BodyWord*4)
	for _, b := range bodies {
		for _, w := range b.ToWords() {
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

// Segment is one peer's received LET: its cells (indices already local
// to this segment) and the bodies its leaves reference.
type Segment struct {
	Cells  []model.Cell
	Bodies []model.Body
}

// CommLET exchanges each rank's per-peer send segments (as built by
// BuildAll) via one Alltoallv round for cells and one for bodies, and
// returns the segment this rank received from every other rank, indexed
// by source rank (the caller's own slot holds an empty segment, since
// ranks never send themselves a LET).
func CommLET(ctx context.Context, c comm.Comm, sendCells [][]model.Cell, sendBodies [][]model.Body, order int) ([]Segment, error) {
	size := c.Size()
	cellPayloads := make([][]byte, size)
	bodyPayloads := make([][]byte, size)
	for r := 0; r < size; r++ {
		cellPayloads[r] = encodeCells(sendCells[r])
		bodyPayloads[r] = encodeBodies(sendBodies[r])
		metrics.RecordLETBytes("sent", "cells", len(cellPayloads[r]))
		metrics.RecordLETBytes("sent", "bodies", len(bodyPayloads[r]))
	}

	recvCellPayloads, err := c.Alltoallv(ctx, cellPayloads)
	if err != nil {
		return nil, err
	}
	recvBodyPayloads, err := c.Alltoallv(ctx, bodyPayloads)
	if err != nil {
		return nil, err
	}

	segments := make([]Segment, size)
	for r := 0; r < size; r++ {
		metrics.RecordLETBytes("received", "cells", len(recvCellPayloads[r]))
		metrics.RecordLETBytes("received", "bodies", len(recvBodyPayloads[r]))
		segments[r] = Segment{
			Cells:  decodeCells(recvCellPayloads[r], order),
			Bodies: decodeBodies(recvBodyPayloads[r]),
		}
	}
	return segments, nil
}
