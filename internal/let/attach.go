package let

import (
	"github.com/fmm-go/fmmcore/internal/kernel"
	"github.com/fmm-go/fmmcore/pkg/model"
)

// RootBodies turns each peer's received root cell into a placeholder
// body at that cell's center, tagged with the source rank via IBody, so
// the caller can run the ordinary tree builder over the set of remote
// roots to get the coarse "global tree" AttachRoot grafts LET segments
// onto.
func RootBodies(segments []Segment, myRank int) []model.Body {
	bodies := make([]model.Body, 0, len(segments))
	for r, seg := range segments {
		if r == myRank || len(seg.Cells) == 0 {
			continue
		}
		bodies = append(bodies, model.Body{X: seg.Cells[0].X, IBody: int64(r)})
	}
	return bodies
}

// leafSentinel marks a global-tree cell as non-leaf so the bottom-up
// pass below knows to recompute it instead of treating IBody as a
// placeholder-body index. -1 can never collide with a real index.
const leafSentinel int32 = -1

// AttachRoot grafts each peer's LET segment onto the coarse global tree
// built over RootBodies, then recomputes the bounding sphere and
// multipole of every grafted-over ancestor bottom-up. globalBodies is
// the body slice the global tree builder returned (so IBody on a global
// leaf can be traced back to the source rank via its placeholder's
// IBody field). Every cell in globalCells must already have M/L slices
// sized to k.Order() before this call, since M2M writes through them.
func AttachRoot(globalCells []model.Cell, globalBodies []model.Body, segments []Segment, k kernel.Kernel) []model.Cell {
	globalCount := int32(len(globalCells))
	merged := make([]model.Cell, globalCount, int(globalCount)+totalSegmentCells(segments))
	copy(merged, globalCells)

	offsets := make([]int32, len(segments))
	for r, seg := range segments {
		if len(seg.Cells) == 0 {
			offsets[r] = -1
			continue
		}
		offsets[r] = int32(len(merged))
		merged = append(merged, seg.Cells...)
	}

	for i := int32(0); i < globalCount; i++ {
		c := &merged[i]
		if !c.IsLeaf() {
			c.IBody = leafSentinel
			continue
		}
		body := globalBodies[c.IBody]
		rank := int32(body.IBody)
		offset := offsets[rank]
		if offset < 0 {
			continue // that peer had nothing to send; leave the placeholder leaf as is.
		}
		savedParent := c.IParent
		*c = merged[offset]
		c.IParent = savedParent
		if !c.IsLeaf() {
			c.IChild += offset
		}
	}

	for r, seg := range segments {
		off := offsets[r]
		if off < 0 {
			continue
		}
		for j := 1; j < len(seg.Cells); j++ {
			cc := &merged[off+int32(j)]
			cc.IParent += off
			if !cc.IsLeaf() {
				cc.IChild += off
			}
		}
	}

	for i := globalCount - 1; i >= 0; i-- {
		c := &merged[i]
		if c.IBody != leafSentinel {
			continue
		}
		xmin, xmax := c.X, c.X
		for j := int32(0); j < c.NChild; j++ {
			cc := &merged[c.IChild+j]
			for axis := 0; axis < 3; axis++ {
				if lo := cc.X[axis] - cc.R; lo < xmin[axis] {
					xmin[axis] = lo
				}
				if hi := cc.X[axis] + cc.R; hi > xmax[axis] {
					xmax[axis] = hi
				}
			}
		}
		for axis := 0; axis < 3; axis++ {
			c.X[axis] = (xmax[axis] + xmin[axis]) / 2
		}
		for axis := 0; axis < 3; axis++ {
			if r := c.X[axis] - xmin[axis]; r > c.R {
				c.R = r
			}
			if r := xmax[axis] - c.X[axis]; r > c.R {
				c.R = r
			}
		}
		for j := range c.M {
			c.M[j] = 0
		}
		k.M2M(merged, i)
	}

	return merged
}

func totalSegmentCells(segments []Segment) int {
	total := 0
	for _, seg := range segments {
		total += len(seg.Cells)
	}
	return total
}
