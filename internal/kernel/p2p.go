package kernel

import (
	"math"
	"math/cmplx"

	"github.com/fmm-go/fmmcore/pkg/model"
)

// P2P directly sums pairwise body-body interactions between ci's
// members and cj's members (or within ci alone, when ci == cj, skipping
// self-pairs). periodic is the image offset applied to cj's bodies.
func (k *ReferenceKernel) P2P(bodiesI, bodiesJ []model.Body, ci, cj *model.Cell, periodic [3]float64) {
	self := ci == cj
	for bi := ci.IBody; bi < ci.IBody+ci.NBody; bi++ {
		a := &bodiesI[bi]
		for bj := cj.IBody; bj < cj.IBody+cj.NBody; bj++ {
			if self && bj == bi {
				continue
			}
			b := &bodiesJ[bj]
			src := [3]float64{b.X[0] + periodic[0], b.X[1] + periodic[1], b.X[2] + periodic[2]}
			R, r := dist3(a.X, src)
			if r == 0 {
				continue
			}
			q := b.Src

			switch k.family {
			case FamilyHelmholtz:
				kk := k.waveNumber
				phase := cmplx.Exp(complex(0, kk*r))
				a.Trg[0] += q * phase / complex(r, 0)
				dphidr := q * (complex(0, kk*r) - 1) * phase / complex(r*r, 0)
				for axis := 0; axis < 3; axis++ {
					a.Trg[axis+1] -= dphidr * complex(R[axis]/r, 0)
				}
			case FamilyVanDerWaals:
				r6 := math.Pow(r, 6)
				a.Trg[0] += q / complex(r6, 0)
				r8 := r6 * r * r
				for axis := 0; axis < 3; axis++ {
					a.Trg[axis+1] -= complex(-6*R[axis]/r8, 0) * q
				}
			default: // FamilyElectrostatic
				r3 := r * r * r
				a.Trg[0] += q / complex(r, 0)
				for axis := 0; axis < 3; axis++ {
					a.Trg[axis+1] -= complex(-R[axis]/r3, 0) * q
				}
			}
		}
	}
}
