package kernel

import "github.com/fmm-go/fmmcore/pkg/model"

// P2M accumulates a leaf cell's member bodies into its multipole:
// M[0] is total source charge, M[1..3] is the dipole moment about the
// cell's own center.
func (k *ReferenceKernel) P2M(cells []model.Cell, bodies []model.Body, icell int32) {
	c := &cells[icell]
	n := k.terms()
	for b := c.IBody; b < c.IBody+c.NBody; b++ {
		body := &bodies[b]
		c.M[0] += body.Src
		if n > 1 {
			for axis := 0; axis < 3 && axis+1 < n; axis++ {
				c.M[axis+1] += body.Src * complex(body.X[axis]-c.X[axis], 0)
			}
		}
	}
}

// M2M translates every child's multipole into the parent cell's,
// shifting the dipole term for the change of expansion center:
// D_parent += D_child + q_child*(X_child - X_parent).
func (k *ReferenceKernel) M2M(cells []model.Cell, icell int32) {
	parent := &cells[icell]
	n := k.terms()
	for ci := parent.IChild; ci < parent.IChild+parent.NChild; ci++ {
		child := &cells[ci]
		parent.M[0] += child.M[0]
		if n > 1 {
			for axis := 0; axis < 3 && axis+1 < n; axis++ {
				shift := complex(child.X[axis]-parent.X[axis], 0) * child.M[0]
				parent.M[axis+1] += child.M[axis+1] + shift
			}
		}
	}
}

// L2L shifts a parent's local expansion to each child's center. Since
// this reference kernel only carries a linear (value + gradient) local
// expansion, the shift adds the gradient's contribution to the value
// term and leaves the gradient itself unchanged.
func (k *ReferenceKernel) L2L(cells []model.Cell, icell int32) {
	parent := &cells[icell]
	n := k.terms()
	for ci := parent.IChild; ci < parent.IChild+parent.NChild; ci++ {
		child := &cells[ci]
		child.L[0] += parent.L[0]
		if n > 1 {
			for axis := 0; axis < 3 && axis+1 < n; axis++ {
				delta := complex(child.X[axis]-parent.X[axis], 0)
				child.L[0] += parent.L[axis+1] * delta
				child.L[axis+1] += parent.L[axis+1]
			}
		}
	}
}

// L2P expands a leaf's local coefficients onto its member bodies:
// Trg[0] is the potential, Trg[1..3] is the field (negative gradient).
func (k *ReferenceKernel) L2P(cells []model.Cell, bodies []model.Body, icell int32) {
	c := &cells[icell]
	n := k.terms()
	for b := c.IBody; b < c.IBody+c.NBody; b++ {
		body := &bodies[b]
		body.Trg[0] += c.L[0]
		if n > 1 {
			for axis := 0; axis < 3 && axis+1 < n; axis++ {
				delta := complex(body.X[axis]-c.X[axis], 0)
				body.Trg[0] += c.L[axis+1] * delta
				body.Trg[axis+1] -= c.L[axis+1]
			}
		}
	}
}
