// Package kernel implements the multipole/local expansion math the
// traversal driver calls at each pass: P2M, M2M, M2L, L2L, L2P, P2P.
//
// Spec scope treats kernel math as an external collaborator, specified
// only by signature, with one reference implementation supplied per
// family strictly so the accuracy property is checkable. Accordingly
// this package implements a deliberately minimal monopole+dipole
// expansion (value + gradient, order capped at 4 terms) rather than a
// general-order spherical-harmonics or Cartesian-Taylor recursion —
// see DESIGN.md's kernel entry for the reasoning.
package kernel

import (
	"math"

	fmmerrors "github.com/fmm-go/fmmcore/pkg/errors"
	"github.com/fmm-go/fmmcore/pkg/model"
)

// Family selects which physical potential P2P and M2L evaluate.
type Family int

const (
	// FamilyElectrostatic is the shared 1/r potential used by both the
	// coulomb and laplace kernels — mathematically identical expansion.
	FamilyElectrostatic Family = iota
	// FamilyHelmholtz is the complex oscillatory e^{ikr}/r potential.
	FamilyHelmholtz
	// FamilyVanDerWaals is the monopole-only r^-6 dispersion potential.
	FamilyVanDerWaals
)

// Kernel is the per-pass contract the traversal driver calls. Every
// method operates on cells/bodies already resident in the caller's
// arrays and indexed, never on separately allocated objects, matching
// the engine's no-pointers-between-records design.
type Kernel interface {
	// Order is the expansion order this kernel was built with, the
	// length of every cell's M and L. The reference kernel fills at most
	// the first 4 of them: a value term plus up to 3 gradient terms.
	Order() int
	// RefreshQuadrature recomputes this pass's quadrature grain ahead
	// of its parallel region, returning nquad for logging. The minimal
	// reference kernel has no real Legendre table to refresh; it still
	// honors the call so the driver's per-pass sequential step is
	// exercised faithfully.
	RefreshQuadrature(pass string) int
	P2M(cells []model.Cell, bodies []model.Body, icell int32)
	M2M(cells []model.Cell, icell int32)
	M2L(ci, cj *model.Cell, periodic [3]float64)
	L2L(cells []model.Cell, icell int32)
	L2P(cells []model.Cell, bodies []model.Body, icell int32)
	P2P(bodiesI, bodiesJ []model.Body, ci, cj *model.Cell, periodic [3]float64)
}

// ReferenceKernel is the shared monopole+dipole implementation behind
// every family. Order is fixed at construction (see DESIGN.md's
// "Expansion order P" Open Question) and capped to useOrder terms.
type ReferenceKernel struct {
	order      int
	family     Family
	waveNumber float64
	lastNquad  int
}

// useOrder is how many of the configured order's coefficients this
// reference kernel actually fills: M[0]/L[0] (value) plus M[1..3]/
// L[1..3] (gradient along x,y,z).
const useOrder = 4

// New builds the reference kernel for name ("coulomb", "laplace",
// "helmholtz", "vanderwaals"), sized to order coefficients. waveNumber
// only affects the helmholtz family; it is ignored otherwise.
func New(name string, order int, waveNumber float64) (*ReferenceKernel, error) {
	if order < 1 {
		return nil, fmmerrors.Wrap(fmmerrors.CodeInvariant, "kernel: order must be >= 1", nil)
	}
	var family Family
	switch name {
	case "coulomb", "laplace":
		family = FamilyElectrostatic
	case "helmholtz":
		family = FamilyHelmholtz
		if waveNumber == 0 {
			waveNumber = 1.0
		}
	case "vanderwaals":
		family = FamilyVanDerWaals
	default:
		return nil, fmmerrors.Wrap(fmmerrors.CodeConfigError, "kernel: unknown kernel name "+name, nil)
	}
	return &ReferenceKernel{order: order, family: family, waveNumber: waveNumber}, nil
}

func (k *ReferenceKernel) Order() int { return k.order }

func (k *ReferenceKernel) terms() int {
	if k.order < useOrder {
		return k.order
	}
	return useOrder
}

// RefreshQuadrature implements spec §4.1's "nquad = max(6,2P)" (M2M) /
// "max(6,P)" (M2L, L2L) rule. The reference kernel does not consult
// this value, but it is computed and returned so the driver's timer
// around the refresh step has something real to measure.
func (k *ReferenceKernel) RefreshQuadrature(pass string) int {
	var nquad int
	switch pass {
	case "M2M":
		nquad = int(math.Max(6, float64(2*k.order)))
	case "M2L", "L2L":
		nquad = int(math.Max(6, float64(k.order)))
	default:
		nquad = 6
	}
	k.lastNquad = nquad
	return nquad
}

func dist3(a, b [3]float64) (d [3]float64, r float64) {
	for i := 0; i < 3; i++ {
		d[i] = a[i] - b[i]
	}
	r = math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
	return
}
