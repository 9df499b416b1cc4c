// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"

	"github.com/vladimir-ch/krylov/comm"
	"github.com/vladimir-ch/krylov/internal/dense"
)

// fetiOp is a single-rank projected operator: F is a dense Hermitian
// positive definite matrix and P the orthogonal projector onto the
// complement of one constraint vector g, so PCG solves
//
//	P (f - F λ) = 0, gᴴ λ = 0.
type fetiOp[K dense.Scalar] struct {
	k      dense.Kernel[K]
	layout Layout
	n      int
	f      []K
	g      []K
	off    int
	sizes  []int
	jacobi bool

	starts, ends int
	// applied holds a copy of every direction passed to Apply.
	applied [][]K
}

func newFETIOp[K dense.Scalar](layout Layout, n int, rnd *rand.Rand) *fetiOp[K] {
	return &fetiOp[K]{
		k:      dense.For[K](),
		layout: layout,
		n:      n,
		f:      randomSPD[K](n, rnd),
		g:      randomVec[K](n, rnd),
		jacobi: true,
	}
}

func (o *fetiOp[K]) Layout() Layout { return o.layout }
func (o *fetiOp[K]) Dof() int { return o.n }
func (o *fetiOp[K]) Mult() int { return o.n }
func (o *fetiOp[K]) Eliminated() int { return o.off }
func (o *fetiOp[K]) Scaling() []float64 { return nil }
func (o *fetiOp[K]) Prefix() string { return "hpddm_" }

func (o *fetiOp[K]) NewVector() Vector[K] {
	if o.layout == Shared {
		return NewShared[K](o.sizes)
	}
	return NewContiguous[K](o.n)
}

// mul stores F x in y.
func (o *fetiOp[K]) mul(x, y []K) {
	o.k.Gemv(blas.NoTrans, o.n, o.n, 1, o.f, o.n, x, 0, y)
}

// project stores P x in y.
func (o *fetiOp[K]) project(x, y []K) {
	k := o.k
	gx := k.Dot(o.g, x)
	gg := k.Dot(o.g, o.g)
	copy(y, x)
	k.Axpy(-gx/gg, o.g, y)
}

func (o *fetiOp[K]) Start(f, x []K, lambda, r Vector[K], excluded bool) bool {
	o.starts++
	if o.layout == Shared {
		o.project(f[:o.n], r.Data)
		return true
	}
	res := make([]K, o.n)
	o.mul(x[:o.n], res)
	for i := range res {
		res[i] = f[o.off+i] - res[i]
	}
	o.project(res, r.Data)
	return true
}

func (o *fetiOp[K]) End(free bool) {
	if free {
		o.ends++
	}
}

func (o *fetiOp[K]) Precond(r, z Vector[K]) {
	if !o.jacobi {
		copy(z.Data, r.Data)
		return
	}
	for i, v := range r.Data {
		z.Data[i] = v / o.f[i+i*o.n]
	}
}

func (o *fetiOp[K]) Project(dir Projection, in, out Vector[K], excluded bool) {
	o.project(in.Data, out.Data)
}

func (o *fetiOp[K]) Apply(p, z Vector[K]) {
	o.applied = append(o.applied, append([]K(nil), p.Data...))
	o.mul(p.Data, z.Data)
}

func (o *fetiOp[K]) ComputeDot(a, b Vector[K], c comm.Communicator, excluded bool) float64 {
	v := []float64{o.k.Real(o.k.Dot(a.Data, b.Data))}
	if o.layout == Shared {
		v[0] /= 2
	}
	c.AllReduceSum(v)
	return v[0]
}

func (o *fetiOp[K]) ComputeSolution(src, x []K, excluded bool) {
	if o.layout == Shared {
		copy(x, src)
		return
	}
	copy(x[:o.off], src[:o.off])
}

// residual returns |P (f - F λ)| and |gᴴ λ|.
func (o *fetiOp[K]) residual(f, lambda []K) (float64, float64) {
	k := o.k
	res := make([]K, o.n)
	o.mul(lambda, res)
	for i := range res {
		res[i] = f[i] - res[i]
	}
	o.project(res, res)
	return k.Nrm2(res), k.Abs(k.Dot(o.g, lambda))
}

// excludedFETI is the projected operator of a rank without multipliers.
type excludedFETI[K dense.Scalar] struct {
	layout Layout
}

func (o excludedFETI[K]) Layout() Layout { return o.layout }
func (o excludedFETI[K]) Dof() int { return 0 }
func (o excludedFETI[K]) Mult() int { return 0 }
func (o excludedFETI[K]) Eliminated() int { return 0 }
func (o excludedFETI[K]) Scaling() []float64 { return nil }
func (o excludedFETI[K]) Prefix() string { return "hpddm_" }
func (o excludedFETI[K]) NewVector() Vector[K] { return Vector[K]{Layout: o.layout} }
func (o excludedFETI[K]) Start(f, x []K, lambda, r Vector[K], excluded bool) bool { return false }
func (o excludedFETI[K]) End(bool) {}
func (o excludedFETI[K]) Precond(r, z Vector[K]) {}
func (o excludedFETI[K]) Project(dir Projection, in, out Vector[K], excluded bool) {}
func (o excludedFETI[K]) Apply(p, z Vector[K]) {}
func (o excludedFETI[K]) ComputeSolution(src, x []K, excluded bool) {}

func (o excludedFETI[K]) ComputeDot(a, b Vector[K], c comm.Communicator, excluded bool) float64 {
	v := []float64{0}
	c.AllReduceSum(v)
	return v[0]
}

func testPCG[K dense.Scalar](t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	const n, off = 20, 3
	for _, layout := range []Layout{Contiguous, Shared} {
		op := newFETIOp[K](layout, n, rnd)
		var f, x, lambda []K
		switch layout {
		case Contiguous:
			op.off = off
			f = randomVec[K](off+n, rnd)
			x = make([]K, off+n)
		case Shared:
			op.sizes = []int{3, 5, n - 8}
			f = randomVec[K](n, rnd)
			x = make([]K, n)
		}

		s := DefaultSettings()
		s.Method = MethodPCG
		s.Tolerance = 1e-12
		it, err := PCG[K](op, f, x, comm.Self(), s)
		require.NoError(t, err, "layout %v", layout)
		assert.Less(t, it, s.MaxIterations, "layout %v", layout)
		assert.Equal(t, 1, op.starts)
		assert.Equal(t, 1, op.ends)

		rhs := f
		lambda = x
		if layout == Contiguous {
			assert.Equal(t, f[:off], x[:off], "eliminated unknowns not recovered")
			rhs, lambda = f[off:], x[off:]
		}
		res, constraint := op.residual(rhs, lambda)
		res0, _ := op.residual(rhs, make([]K, n))
		assert.LessOrEqual(t, res, 1e-9*res0, "layout %v: projected residual", layout)
		assert.LessOrEqual(t, constraint, 1e-10, "layout %v: constraint violated", layout)
	}
}

func TestPCG(t *testing.T) {
	testPCG[float64](t)
	testPCG[complex128](t)
}

func testProjectionIdempotent[K dense.Scalar](t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	const n = 15
	for _, layout := range []Layout{Contiguous, Shared} {
		op := newFETIOp[K](layout, n, rnd)
		op.sizes = []int{4, 4, n - 8}
		k := op.k

		v := op.NewVector()
		copy(v.Data, randomVec[K](n, rnd))
		pv, ppv := op.NewVector(), op.NewVector()
		op.Project(ProjectN, v, pv, false)
		op.Project(ProjectN, pv, ppv, false)
		assert.Greater(t, dist(v.Data, pv.Data), 1e-3, "layout %v: projection is the identity", layout)
		assert.LessOrEqual(t, dist(pv.Data, ppv.Data), 1e-12*k.Nrm2(v.Data), "layout %v: P(Pv) != Pv", layout)

		// Every search direction lies in the range of P.
		s := DefaultSettings()
		s.Tolerance = 1e-10
		_, err := PCG[K](op, randomVec[K](n, rnd), make([]K, n), comm.Self(), s)
		require.NoError(t, err, "layout %v", layout)
		require.NotEmpty(t, op.applied, "layout %v", layout)
		pp := make([]K, n)
		for j, p := range op.applied {
			op.project(p, pp)
			assert.LessOrEqual(t, dist(p, pp), 1e-10*k.Nrm2(p), "layout %v: direction %d", layout, j)
		}
	}
}

func TestPCGProjectionIdempotent(t *testing.T) {
	testProjectionIdempotent[float64](t)
	testProjectionIdempotent[complex128](t)
}

func TestPCGExcludedRank(t *testing.T) {
	const n = 12
	rnd := rand.New(rand.NewSource(1))
	op := newFETIOp[float64](Contiguous, n, rnd)
	f := randomVec[float64](n, rnd)
	s := DefaultSettings()
	s.Tolerance = 1e-10

	want := make([]float64, n)
	wantIt, err := PCG[float64](op, f, want, comm.Self(), s)
	require.NoError(t, err)

	got := make([]float64, n)
	var gotIt int
	err = comm.Run(2, func(c comm.Communicator) error {
		if c.Rank() == 0 {
			var err error
			gotIt, err = PCG[float64](op, f, got, c, s)
			return err
		}
		excl := s
		excl.Excluded = true
		_, err := PCG[float64](excludedFETI[float64]{layout: Contiguous}, nil, nil, c, excl)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, wantIt, gotIt)
	assert.Equal(t, want, got)
}

func TestPCGErrors(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	op := newFETIOp[float64](Contiguous, 5, rnd)
	op.off = 2
	_, err := PCG[float64](op, make([]float64, 7), make([]float64, 6), comm.Self(), DefaultSettings())
	assert.ErrorIs(t, err, ErrDimension)
	assert.Zero(t, op.starts)

	s := DefaultSettings()
	s.Tolerance = 0
	s.RankTolerance = 2
	_, err = PCG[float64](op, make([]float64, 7), make([]float64, 7), comm.Self(), s)
	assert.Error(t, err)
}
