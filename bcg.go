// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"math"

	"gonum.org/v1/gonum/blas"

	"github.com/vladimir-ch/krylov/comm"
	"github.com/vladimir-ch/krylov/internal/dense"
)

// BCG solves A X = B with the block conjugate gradient method: the mu columns
// of B share one block Krylov space and the direction block is kept
// orthonormal by a distributed Cholesky QR factorization.
//
// With Settings.Enlarge = e > 1 the columns form mu/e groups of e consecutive
// columns whose sum is the solution of the group, and convergence is measured
// on the residual of each group sum. mu must be a multiple of e.
//
// If a reduced system is not positive definite or the direction block loses
// rank, the solve continues with CG on every column from the current iterate
// and BCG returns the iteration count of CG.
func BCG[K dense.Scalar](op Operator[K], b, x []K, mu int, c comm.Communicator, s Settings) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	if mu%s.Enlarge != 0 {
		return 0, ErrInvalidBlock
	}
	n, err := checkArgs(op, b, x, mu, s.Excluded)
	if err != nil {
		return 0, err
	}
	k := dense.For[K]()
	it, ok := bcg(k, op, b, x, mu, n, c, s)
	if ok {
		return it, nil
	}
	if c.Rank() == 0 {
		s.logger().Debug("krylov: block breakdown, falling back", "from", MethodBCG, "to", MethodCG, "iteration", it)
		if s.Recorder != nil {
			s.Recorder.FellBack(MethodBCG, MethodCG)
		}
	}
	return cg(k, op, b, x, mu, n, c, s), nil
}

// bcg reports false when the block iteration broke down after it
// iterations. x holds the iterate of the last complete step.
func bcg[K dense.Scalar](k dense.Kernel[K], op Operator[K], b, x []K, mu, n int, c comm.Communicator, s Settings) (int, bool) {
	dim := n * mu
	groups := mu / s.Enlarge
	mm := mu * mu
	np := mu * (mu + 1) / 2

	var d, sqrtD []float64
	if !s.Excluded {
		d = op.Scaling()
	}
	reals := 2 * groups
	if d != nil {
		reals += n
	}
	a := newArena(k, 4*dim+2*n+6*mm+2*np+groups, reals)
	r, p, z, trash := a.take(dim), a.take(dim), a.take(dim), a.take(dim)
	gsum, gd := a.take(n), a.take(n)
	rho, rho2, gram, gamma, beta := a.take(mm), a.take(mm), a.take(mm), a.take(mm), a.take(mm)
	scratch := a.take(mm + np)
	red := a.take(np + groups)
	res0, res := a.takeReal(groups), a.takeReal(groups)
	if d != nil {
		sqrtD = a.takeReal(n)
		for i, di := range d {
			sqrtD[i] = math.Sqrt(di)
		}
	}

	// packedGram stores uᴴ D v in g and its upper triangle packed in red.
	packedGram := func(u, v, g []K) {
		dense.Diag(d, v, trash, mu)
		k.Gemm(blas.ConjTrans, blas.NoTrans, mu, mu, n, 1, u, n, trash, n, 0, g, mu)
		dense.PackUpper(mu, g, mu, red[:np])
	}
	// groupNorms stores the squared weighted norms of the group sums of v
	// after the packed Gram matrix.
	groupNorms := func(v []K) {
		for g := 0; g < groups; g++ {
			copy(gsum, v[g*s.Enlarge*n:(g*s.Enlarge+1)*n])
			for j := 1; j < s.Enlarge; j++ {
				nu := g*s.Enlarge + j
				k.Axpy(1, v[nu*n:(nu+1)*n], gsum)
			}
			dense.Diag(d, gsum, gd, 1)
			red[np+g] = k.FromReal(k.Real(k.Dot(gsum, gd)))
		}
	}
	// qr orthonormalizes p = Q γ.
	qr := func() bool {
		if !cholQRFactor(k, c, p, n, mu, sqrtD, trash, scratch, gamma, mu, s.RankTolerance) {
			return false
		}
		k.Trsm(blas.Right, blas.Upper, blas.NoTrans, blas.NonUnit, n, mu, 1, gamma, mu, p, n)
		return true
	}

	mon := newMonitor(MethodBCG, s, groups, c.Rank())
	free := op.Start(b, x, mu, s.Excluded)
	defer op.End(free)

	// R = B - A X, P = M R, ρ = Rᴴ D P
	if !s.Excluded {
		op.GMV(x[:dim], z, mu)
	}
	for i, v := range b[:dim] {
		r[i] = v - z[i]
	}
	op.Apply(r, p, mu, trash, s.Excluded)
	packedGram(r, p, rho)
	groupNorms(p)
	comm.Sum(c, red)
	for g := range res0 {
		res0[g] = math.Sqrt(k.Real(red[np+g]))
	}
	mon.start(res0)
	if mon.done() {
		mon.summary(0)
		return 0, true
	}
	dense.UnpackHermitian(k, mu, red[:np], rho, mu)
	copy(rho2, rho)
	if !qr() {
		return 0, false
	}

	it := s.MaxIterations
	for i := 1; i <= s.MaxIterations; i++ {
		if !s.Excluded {
			op.GMV(p, z, mu)
		}
		// Qᴴ D R = γ⁻ᴴ ρ
		k.Trsm(blas.Left, blas.Upper, blas.ConjTrans, blas.NonUnit, mu, mu, 1, gamma, mu, rho2, mu)
		packedGram(p, z, gram)
		comm.Sum(c, red[:np])
		dense.UnpackHermitian(k, mu, red[:np], gram, mu)
		// α = (Qᴴ D A Q)⁻¹ Qᴴ D R
		if !dense.Posv(k, mu, mu, gram, mu, rho2, mu) {
			return i - 1, false
		}
		k.Gemm(blas.NoTrans, blas.NoTrans, n, mu, mu, 1, p, n, rho2, mu, 1, x, n)
		k.Gemm(blas.NoTrans, blas.NoTrans, n, mu, mu, -1, z, n, rho2, mu, 1, r, n)

		op.Apply(r, z, mu, trash, s.Excluded)
		packedGram(r, z, rho2)
		groupNorms(z)
		comm.Sum(c, red)
		for g := range res {
			res[g] = math.Sqrt(k.Real(red[np+g]))
		}
		mon.check(i, res0, res)
		if mon.done() {
			it = i
			break
		}

		// β = ρ_old⁻¹ ρ_new, P = Z + Q γ β
		dense.UnpackHermitian(k, mu, red[:np], rho2, mu)
		copy(beta, rho2)
		if !dense.Posv(k, mu, mu, rho, mu, beta, mu) {
			return i, false
		}
		k.Trmm(blas.Left, blas.Upper, blas.NoTrans, blas.NonUnit, mu, mu, 1, gamma, mu, beta, mu)
		k.Gemm(blas.NoTrans, blas.NoTrans, n, mu, mu, 1, p, n, beta, mu, 1, z, n)
		p, z = z, p
		copy(rho, rho2)
		if !qr() {
			return i, false
		}
	}
	mon.summary(it)
	return it, true
}
