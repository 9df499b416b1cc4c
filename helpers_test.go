// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"math/cmplx"
	"math/rand"
	"sync"

	"github.com/vladimir-ch/krylov/internal/dense"
)

// denseOp is a single-rank operator with a column-major dense matrix and an
// optional Jacobi preconditioner.
type denseOp[K dense.Scalar] struct {
	n      int
	a      []K
	jacobi bool
	d      []float64

	starts, ends int
}

func (o *denseOp[K]) Dof() int { return o.n }
func (o *denseOp[K]) Scaling() []float64 { return o.d }
func (o *denseOp[K]) Prefix() string { return "hpddm_" }

func (o *denseOp[K]) Start(b, x []K, mu int, excluded bool) bool {
	o.starts++
	return true
}

func (o *denseOp[K]) End(free bool) {
	if free {
		o.ends++
	}
}

func (o *denseOp[K]) GMV(in, out []K, mu int) {
	n := o.n
	for nu := 0; nu < mu; nu++ {
		x, y := in[nu*n:(nu+1)*n], out[nu*n:(nu+1)*n]
		for i := range y {
			y[i] = 0
		}
		for j, xj := range x {
			for i := range y {
				y[i] += o.a[i+j*n] * xj
			}
		}
	}
}

func (o *denseOp[K]) Apply(in, out []K, mu int, work []K, excluded bool) {
	if !o.jacobi {
		copy(out, in)
		return
	}
	n := o.n
	for nu := 0; nu < mu; nu++ {
		for i := 0; i < n; i++ {
			out[nu*n+i] = in[nu*n+i] / o.a[i+i*n]
		}
	}
}

// mul returns A x for mu columns.
func (o *denseOp[K]) mul(x []K, mu int) []K {
	y := make([]K, len(x))
	o.GMV(x, y, mu)
	return y
}

// randomSPD returns a random Hermitian positive definite matrix of order n,
// diagonally dominant like the matrices of the CG tests.
func randomSPD[K dense.Scalar](n int, rnd *rand.Rand) []K {
	k := dense.For[K]()
	a := make([]K, n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < j; i++ {
			v := k.Complex(rnd.Float64(), rnd.Float64())
			a[i+j*n] = v
			a[j+i*n] = k.Conj(v)
		}
		a[j+j*n] = k.FromReal(rnd.Float64() + float64(n))
	}
	return a
}

// randomGeneral returns a random non-symmetric matrix of order n with a
// dominant diagonal.
func randomGeneral[K dense.Scalar](n int, rnd *rand.Rand) []K {
	k := dense.For[K]()
	a := make([]K, n*n)
	for i := range a {
		a[i] = k.Complex(rnd.Float64()-0.5, rnd.Float64()-0.5)
	}
	for i := 0; i < n; i++ {
		a[i+i*n] += k.FromReal(float64(n))
	}
	return a
}

func randomVec[K dense.Scalar](n int, rnd *rand.Rand) []K {
	k := dense.For[K]()
	v := make([]K, n)
	for i := range v {
		v[i] = k.Complex(rnd.NormFloat64(), rnd.NormFloat64())
	}
	return v
}

// dist returns the maximum absolute difference between x and y.
func dist[K dense.Scalar](x, y []K) float64 {
	var d float64
	for i := range x {
		var v float64
		switch a := any(x[i] - y[i]).(type) {
		case float64:
			v = a
			if v < 0 {
				v = -v
			}
		case complex128:
			v = cmplx.Abs(a)
		}
		if v > d {
			d = v
		}
	}
	return d
}

type recorder struct {
	mu         sync.Mutex
	solved     []Method
	iterations []int
	fellBack   [][2]Method
	redirected [][2]Method
}

func (r *recorder) Solved(m Method, iterations, unconverged int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solved = append(r.solved, m)
	r.iterations = append(r.iterations, iterations)
}

func (r *recorder) FellBack(from, to Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fellBack = append(r.fellBack, [2]Method{from, to})
}

func (r *recorder) Redirected(from, to Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirected = append(r.redirected, [2]Method{from, to})
}
