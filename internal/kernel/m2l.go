package kernel

import (
	"math"
	"math/cmplx"

	"github.com/fmm-go/fmmcore/pkg/model"
)

// M2L accumulates cj's multipole into ci's local expansion, evaluating
// the family's potential and its gradient at ci.X with cj.X (shifted by
// periodic, the periodic-image offset the traversal driver supplies)
// as the source point.
func (k *ReferenceKernel) M2L(ci, cj *model.Cell, periodic [3]float64) {
	source := [3]float64{cj.X[0] + periodic[0], cj.X[1] + periodic[1], cj.X[2] + periodic[2]}
	R, r := dist3(ci.X, source)
	if r == 0 {
		return
	}
	n := k.terms()
	q := cj.M[0]

	switch k.family {
	case FamilyHelmholtz:
		kk := k.waveNumber
		phase := cmplx.Exp(complex(0, kk*r))
		ci.L[0] += q * phase / complex(r, 0)
		if n > 1 {
			// dphi/dr = q*(ik*r-1)*e^{ikr}/r^2
			dphidr := q * (complex(0, kk*r) - 1) * phase / complex(r*r, 0)
			for axis := 0; axis < 3 && axis+1 < n; axis++ {
				ci.L[axis+1] += dphidr * complex(R[axis]/r, 0)
			}
		}
		return
	case FamilyVanDerWaals:
		r6 := math.Pow(r, 6)
		ci.L[0] += q / complex(r6, 0)
		if n > 1 {
			r8 := r6 * r * r
			for axis := 0; axis < 3 && axis+1 < n; axis++ {
				ci.L[axis+1] += complex(-6*R[axis]/r8, 0) * q
			}
		}
		return
	default: // FamilyElectrostatic
		r3 := r * r * r
		ci.L[0] += q / complex(r, 0)
		if n > 1 {
			var p [3]complex128
			for axis := 0; axis < 3 && axis+1 < n; axis++ {
				p[axis] = cj.M[axis+1]
			}
			pr := p[0]*complex(R[0], 0) + p[1]*complex(R[1], 0) + p[2]*complex(R[2], 0)
			ci.L[0] += pr / complex(r3, 0)
			r5 := r3 * r * r
			for axis := 0; axis < 3 && axis+1 < n; axis++ {
				monoGrad := complex(-R[axis]/r3, 0) * q
				dipGrad := p[axis]/complex(r3, 0) - complex(3*R[axis]/r5, 0)*pr
				ci.L[axis+1] += monoGrad + dipGrad
			}
		}
	}
}
