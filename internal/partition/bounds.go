// Package partition computes each rank's subdomain: the global bounding
// box, the recursive-coordinate-bisection body-to-rank assignment, and
// the ring shiftBodies redistribution used to balance uneven splits.
package partition

import (
	"context"

	"github.com/fmm-go/fmmcore/pkg/comm"
	"github.com/fmm-go/fmmcore/pkg/model"
)

// LocalBounds computes the axis-aligned bounding box of this rank's own
// bodies. For an empty body set it returns model.EmptyBounds(); the
// caller decides whether an empty local set is fatal (it is not, during
// Allreduce: other ranks still contribute real extents).
func LocalBounds(bodies []model.Body) model.Bounds {
	return model.BoundsOf(bodies)
}

// GlobalBounds allreduces this rank's local bounds (elementwise min on
// Xmin, max on Xmax) to obtain the bounds every rank agrees on.
// Grounded on tree_mpi.h's allgatherBounds: three Allreduce(MIN) plus
// three Allreduce(MAX) calls, one per axis.
func GlobalBounds(ctx context.Context, c comm.Comm, local model.Bounds) (model.Bounds, error) {
	var global model.Bounds
	for axis := 0; axis < 3; axis++ {
		v, err := c.Allreduce(ctx, local.Xmin[axis], comm.Min)
		if err != nil {
			return model.Bounds{}, err
		}
		global.Xmin[axis] = v
	}
	for axis := 0; axis < 3; axis++ {
		v, err := c.Allreduce(ctx, local.Xmax[axis], comm.Max)
		if err != nil {
			return model.Bounds{}, err
		}
		global.Xmax[axis] = v
	}
	return global, nil
}
