// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"math"

	"github.com/vladimir-ch/krylov/comm"
	"github.com/vladimir-ch/krylov/internal/dense"
)

// PCG solves the constrained system of a FETI-type method with the projected
// preconditioned conjugate gradient method. Every new direction is
// F-orthogonalized against all previous ones, so the method keeps two vectors
// per iteration and is not restarted.
//
// For the Contiguous layout PCG updates x past op.Eliminated() directly, for
// the Shared layout it iterates on the Lagrange multipliers. In both cases x
// is recovered by op.ComputeSolution on return. PCG returns the number of
// iterations performed.
func PCG[K dense.Scalar](op ProjectedOperator[K], f, x []K, c comm.Communicator, s Settings) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	k := dense.For[K]()
	excl := s.Excluded
	layout := op.Layout()

	var d []float64
	xs := x
	if !excl {
		d = op.Scaling()
		if layout == Contiguous {
			off := op.Eliminated()
			if len(x) < off+op.Dof() {
				return 0, ErrDimension
			}
			xs = x[off:]
		}
	}

	r := op.NewVector()
	var lambda Vector[K]
	if layout == Shared {
		lambda = op.NewVector()
	}
	free := op.Start(f, xs, lambda, r, excl)
	defer op.End(free)

	maxIt := s.MaxIterations
	zs := make([]Vector[K], 0, maxIt+1)
	ps := make([]Vector[K], 0, maxIt)
	alpha := make([]K, maxIt+1)
	coef := make([]K, maxIt)
	pair := make([]K, 2)

	zCurr := op.NewVector()
	zs = append(zs, zCurr)
	if !excl {
		op.Precond(r, zCurr) // z_0 = M r_0
	}
	res0 := []float64{math.Sqrt(op.ComputeDot(zCurr, zCurr, c, excl))}
	res := []float64{0}
	pCurr := op.NewVector()
	ps = append(ps, pCurr)

	mon := newMonitor(MethodPCG, s, 1, c.Rank())
	mon.start(res0)
	it := 0
	for i := 1; i <= maxIt && !mon.done(); i++ {
		it = i
		op.Project(ProjectN, zCurr, pCurr, excl) // p_i = P z_i
		for j := 0; j < i-1; j++ {
			if excl {
				coef[j] = 0
				continue
			}
			coef[j] = zs[j].dot(k, pCurr)
		}
		comm.Sum(c, coef[:i-1]) // coef_j = <z_j, p_i>
		if !excl {
			for j := 0; j < i-1; j++ {
				pCurr.axpy(k, -coef[j]/alpha[j], ps[j]) // p_i = p_i - Σ <z_j, p_i> / <z_j, p_j> p_j
			}
			op.Apply(pCurr, zCurr) // z_i = F p_i
			zCurr = op.NewVector()
			pCurr.diagTo(d, zCurr)
			pair[0] = zs[len(zs)-1].dot(k, zCurr)
			pair[1] = r.dot(k, zCurr)
		} else {
			pair[0], pair[1] = 0, 0
		}
		comm.Sum(c, pair)
		if !excl {
			alpha[i-1], alpha[i] = pair[0], pair[1]
			step := alpha[i] / alpha[i-1]
			if layout == Contiguous {
				k.Axpy(step, pCurr.Data, xs[:pCurr.Len()])
			} else {
				lambda.axpy(k, step, pCurr) // λ_{i+1} = λ_i + <r_i, p_i> / <z_i, p_i> p_i
			}
			r.axpy(k, -step, zs[len(zs)-1]) // r_{i+1} = r_i - <r_i, p_i> / <z_i, p_i> z_i
		}
		op.Project(ProjectT, r, r, excl) // r_{i+1} = Pᵀ r_{i+1}
		if !excl {
			zs = append(zs, zCurr)
			op.Precond(r, zCurr) // z_{i+1} = M r_{i+1}
		}
		res[0] = math.Sqrt(op.ComputeDot(zCurr, zCurr, c, excl))
		mon.check(i, res0, res)
		if mon.done() {
			break
		}
		if !excl {
			pCurr = op.NewVector()
			ps = append(ps, pCurr)
			zs[i-1].diag(d)
		}
	}
	mon.summary(it)

	if layout == Contiguous {
		op.ComputeSolution(f, x, excl)
	} else {
		op.ComputeSolution(lambda.Data, x, excl)
	}
	return it, nil
}
