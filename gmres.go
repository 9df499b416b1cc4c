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

// GMRES solves A X = B for the mu columns of B independently with the GMRES
// method restarted every Settings.Restart iterations. On entry x holds the
// initial guess, on return the approximate solution. GMRES returns the total
// number of iterations.
func GMRES[K dense.Scalar](op Operator[K], b, x []K, mu int, c comm.Communicator, s Settings) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	n, err := checkArgs(op, b, x, mu, s.Excluded)
	if err != nil {
		return 0, err
	}
	return gmres(dense.For[K](), op, b, x, mu, n, c, s), nil
}

func gmres[K dense.Scalar](k dense.Kernel[K], op Operator[K], b, x []K, mu, n int, c comm.Communicator, s Settings) int {
	m := s.restart()
	bs, a := newBasis(k, op, c, s, m, n, mu, false)
	res0 := a.takeReal(mu)
	res := a.takeReal(mu)
	steps := make([]int, mu)
	mon := newMonitor(MethodGMRES, s, mu, c.Rank())

	free := op.Start(b, x, mu, s.Excluded)
	defer op.End(free)

	var it int
	for cycle := 0; ; cycle++ {
		bs.residual(b, x)
		bs.norms(bs.v[0], res)
		if cycle == 0 {
			copy(res0, res)
			mon.start(res0)
			if mon.done() {
				break
			}
		}
		dense.Zero(bs.s)
		for nu, r := range res {
			bs.s[nu] = k.FromReal(r)
			if r > 0 {
				k.Scal(k.FromReal(1/r), bs.col(bs.v[0], nu))
			}
			steps[nu] = 0
		}

		var i int
		for {
			bs.arnoldi(i, nil)
			it++
			for nu := range res {
				res[nu] = k.Abs(bs.s[(i+1)*mu+nu])
				if mon.converged[nu] < 0 {
					steps[nu] = i + 1
				}
			}
			mon.check(it, res0, res)
			if mon.done() || it == s.MaxIterations || i == m-1 {
				break
			}
			i++
		}
		bs.update(x, steps)
		if mon.done() || it == s.MaxIterations {
			break
		}
	}
	mon.summary(it)
	return it
}

// BGMRES solves A X = B with the block GMRES method, all mu columns sharing
// one block Krylov space. Convergence is joint: the iteration continues until
// every column has converged. If the initial residual block or a new basis
// block is numerically rank deficient, the solve continues with GMRES from
// the current iterate and the iteration count of GMRES is returned.
func BGMRES[K dense.Scalar](op Operator[K], b, x []K, mu int, c comm.Communicator, s Settings) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	n, err := checkArgs(op, b, x, mu, s.Excluded)
	if err != nil {
		return 0, err
	}
	k := dense.For[K]()
	it, ok := bgmres(k, op, b, x, mu, n, c, s)
	if ok {
		return it, nil
	}
	if c.Rank() == 0 {
		s.logger().Debug("krylov: block breakdown, falling back", "from", MethodBGMRES, "to", MethodGMRES, "iteration", it)
		if s.Recorder != nil {
			s.Recorder.FellBack(MethodBGMRES, MethodGMRES)
		}
	}
	return gmres(k, op, b, x, mu, n, c, s), nil
}

// bgmres reports false, after adding the correction of the steps taken so
// far to x, when the block process breaks down.
func bgmres[K dense.Scalar](k dense.Kernel[K], op Operator[K], b, x []K, mu, n int, c comm.Communicator, s Settings) (int, bool) {
	m := s.restart()
	bs, a := newBasis(k, op, c, s, m, n, mu, true)
	ldh := bs.ldh
	res0 := a.takeReal(mu)
	res := a.takeReal(mu)
	mon := newMonitor(MethodBGMRES, s, mu, c.Rank())

	free := op.Start(b, x, mu, s.Excluded)
	defer op.End(free)

	var it int
	for cycle := 0; ; cycle++ {
		bs.residual(b, x)
		if cycle == 0 {
			// A zero block has no QR factor but needs no iteration either.
			bs.norms(bs.v[0], res0)
			mon.start(res0)
			if mon.done() {
				mon.summary(0)
				return 0, true
			}
		}
		dense.Zero(bs.s)
		if !cholQRFactor(k, c, bs.v[0], n, mu, bs.sqrtD, bs.dv, bs.y, bs.s, ldh, s.RankTolerance) {
			return it, false
		}
		k.Trsm(blas.Right, blas.Upper, blas.NoTrans, blas.NonUnit, n, mu, 1, bs.s, ldh, bs.v[0], n)

		var i int
		for {
			if !bs.blockArnoldi(i, nil) {
				bs.blockUpdate(x, i)
				return it, false
			}
			it++
			for nu := range res {
				res[nu] = k.Nrm2(bs.s[nu*ldh+(i+1)*mu : nu*ldh+(i+2)*mu])
			}
			mon.check(it, res0, res)
			if mon.done() || it == s.MaxIterations || i == m-1 {
				break
			}
			i++
		}
		bs.blockUpdate(x, i+1)
		if mon.done() || it == s.MaxIterations {
			break
		}
	}
	mon.summary(it)
	return it, true
}

// residual stores in v[0] the residual b - A x, preconditioned on the left
// for the left variant.
func (b *basis[K]) residual(rhs, x []K) {
	dim := b.n * b.mu
	if !b.excluded {
		b.op.GMV(x[:dim], b.ax, b.mu)
	}
	for i, v := range rhs[:dim] {
		b.ax[i] = v - b.ax[i]
	}
	if b.variant == Left {
		b.op.Apply(b.ax, b.v[0], b.mu, b.dv, b.excluded)
		return
	}
	copy(b.v[0], b.ax)
}

// norms computes the weighted norms of the mu columns of x with one
// reduction.
func (b *basis[K]) norms(x []K, res []float64) {
	dense.Diag(b.d, x, b.dv, b.mu)
	for nu := range res {
		res[nu] = b.k.Real(b.k.Dot(b.col(x, nu), b.col(b.dv, nu)))
	}
	b.c.AllReduceSum(res)
	for nu, r := range res {
		res[nu] = math.Sqrt(r)
	}
}
