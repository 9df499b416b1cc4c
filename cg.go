// Copyright ©2016 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"math"

	"github.com/vladimir-ch/krylov/comm"
	"github.com/vladimir-ch/krylov/internal/dense"
)

// CG solves A X = B for the mu columns of B independently with the
// preconditioned conjugate gradient method. A and the preconditioner must be
// Hermitian positive definite. On entry x holds the initial guess, on return
// the approximate solution. CG returns the number of iterations performed.
//
// With Settings.Variant == Flexible every new direction is A-orthogonalized
// against all previous ones, which keeps the method robust when the
// preconditioner varies between iterations at the cost of storing two vectors
// per iteration.
func CG[K dense.Scalar](op Operator[K], b, x []K, mu int, c comm.Communicator, s Settings) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	n, err := checkArgs(op, b, x, mu, s.Excluded)
	if err != nil {
		return 0, err
	}
	return cg(dense.For[K](), op, b, x, mu, n, c, s), nil
}

func cg[K dense.Scalar](k dense.Kernel[K], op Operator[K], b, x []K, mu, n int, c comm.Communicator, s Settings) int {
	dim := n * mu
	maxIt := s.MaxIterations
	flexible := s.Variant == Flexible

	scalars, reals := 4*dim, 5*mu
	if flexible {
		scalars += 2*maxIt*dim + maxIt*mu
		reals += maxIt * mu
	}
	a := newArena(k, scalars, reals)
	r, p, z, trash := a.take(dim), a.take(dim), a.take(dim), a.take(dim)
	res0, res := a.takeReal(mu), a.takeReal(mu)
	rho := a.takeReal(mu)
	red := a.takeReal(2 * mu)
	var (
		ps, aps [][]K
		coef    []K
		pAp     []float64
	)
	if flexible {
		ps = a.takeN(maxIt, dim)
		aps = a.takeN(maxIt, dim)
		coef = a.take(maxIt * mu)
		pAp = a.takeReal(maxIt * mu)
	}
	var d []float64
	if !s.Excluded {
		d = op.Scaling()
	}
	col := func(v []K, nu int) []K { return v[nu*n : (nu+1)*n] }
	// dots stores Re⟨u, D v⟩ of every column in dst.
	dots := func(u, v []K, dst []float64) {
		dense.Diag(d, v, trash, mu)
		for nu := range dst {
			dst[nu] = k.Real(k.Dot(col(u, nu), col(trash, nu)))
		}
	}

	mon := newMonitor(MethodCG, s, mu, c.Rank())
	free := op.Start(b, x, mu, s.Excluded)
	defer op.End(free)

	// r = b - A x, p = M r
	if !s.Excluded {
		op.GMV(x[:dim], z, mu)
	}
	for i, v := range b[:dim] {
		r[i] = v - z[i]
	}
	op.Apply(r, p, mu, trash, s.Excluded)
	dots(p, p, res0)
	c.AllReduceSum(res0)
	for nu, v := range res0 {
		res0[nu] = math.Sqrt(v)
	}
	mon.start(res0)
	if mon.done() {
		mon.summary(0)
		return 0
	}
	copy(z, p)

	it := maxIt
	for i := 1; i <= maxIt; i++ {
		dots(r, z, rho) // ρ_i = r_{i-1} · z
		if flexible && i > 1 {
			// p_i = z - Σ_k (Ap_k · z / p_k · Ap_k) p_k
			copy(p, z)
			dense.Diag(d, z, trash, mu)
			for j := 0; j < i-1; j++ {
				for nu := 0; nu < mu; nu++ {
					coef[j*mu+nu] = k.Dot(col(aps[j], nu), col(trash, nu))
				}
			}
			comm.Sum(c, coef[:(i-1)*mu])
			for j := 0; j < i-1; j++ {
				for nu := 0; nu < mu; nu++ {
					if w := pAp[j*mu+nu]; w != 0 {
						k.Axpy(-coef[j*mu+nu]/k.FromReal(w), col(ps[j], nu), col(p, nu))
					}
				}
			}
		}

		if !s.Excluded {
			op.GMV(p, z, mu)
		}
		copy(red[:mu], rho)
		dots(z, p, red[mu:])
		c.AllReduceSum(red)
		copy(rho, red[:mu])
		if flexible {
			copy(ps[i-1], p)
			copy(aps[i-1], z)
			copy(pAp[(i-1)*mu:i*mu], red[mu:])
		}
		for nu := 0; nu < mu; nu++ {
			if mon.converged[nu] >= 0 {
				continue
			}
			alpha := k.FromReal(rho[nu] / red[mu+nu]) // α = ρ_i / (p_i · Ap_i)
			k.Axpy(alpha, col(p, nu), col(x, nu))     // x_i = x_{i-1} + α p_i
			k.Axpy(-alpha, col(z, nu), col(r, nu))    // r_i = r_{i-1} - α Ap_i
		}

		op.Apply(r, z, mu, trash, s.Excluded)
		dots(r, z, red[:mu])
		dots(z, z, red[mu:])
		c.AllReduceSum(red)
		for nu := 0; nu < mu; nu++ {
			res[nu] = math.Sqrt(red[mu+nu])
			if !flexible && mon.converged[nu] < 0 {
				beta := k.FromReal(red[nu] / rho[nu]) // β = ρ_{i+1} / ρ_i
				k.Axpby(1, col(z, nu), beta, col(p, nu))
			}
		}
		mon.check(i, res0, res)
		if mon.done() {
			it = i
			break
		}
	}
	mon.summary(it)
	return it
}
