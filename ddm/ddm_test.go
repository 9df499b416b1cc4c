// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ddm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/vladimir-ch/krylov"
	"github.com/vladimir-ch/krylov/comm"
	"github.com/vladimir-ch/krylov/direct"
)

func TestLaplacian(t *testing.T) {
	a := Laplacian1D[float64](4)
	assert.Equal(t, 10, a.NNZ())
	assert.Equal(t, 2.0, a.At(1, 1))
	assert.Equal(t, -1.0, a.At(1, 2))
	assert.Equal(t, -1.0, a.At(2, 1))
	assert.Equal(t, 0.0, a.At(0, 3))

	c := ConvectionDiffusion1D[complex128](3, 0.5)
	assert.Equal(t, complex(-1.5, 0), c.At(1, 0))
	assert.Equal(t, complex(-0.5, 0), c.At(1, 2))

	l := Laplacian2D[float64](3, 4)
	r, cols := l.Dims()
	require.Equal(t, 12, r)
	require.Equal(t, 12, cols)
	// Interior node 4 = (1, 1) has four neighbours.
	x := make([]float64, 12)
	for i := range x {
		x[i] = 1
	}
	y := make([]float64, 12)
	l.MulVec(y, x)
	assert.Equal(t, 0.0, y[4])
	assert.Equal(t, 2.0, y[0])
}

func TestSubdomain(t *testing.T) {
	a := Laplacian1D[float64](10)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, Subdomain(a, 0, 2, 0))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, Subdomain(a, 0, 2, 2))
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9}, Subdomain(a, 1, 2, 2))

	l := Laplacian2D[float64](4, 4)
	// Rows 0..7 plus the next grid line.
	assert.Len(t, Subdomain(l, 0, 2, 1), 12)
}

func TestSchwarzGMV(t *testing.T) {
	const n, mu = 23, 2
	rnd := rand.New(rand.NewSource(1))
	a := Laplacian2D[float64](n, 1)
	x := make([]float64, n*mu)
	for i := range x {
		x[i] = rnd.NormFloat64()
	}
	want := make([]float64, n*mu)
	for nu := 0; nu < mu; nu++ {
		a.MulVec(want[nu*n:(nu+1)*n], x[nu*n:(nu+1)*n])
	}

	for _, size := range []int{1, 2, 3} {
		for _, overlap := range []int{0, 1, 3} {
			err := comm.Run(size, func(c comm.Communicator) error {
				s, err := NewSchwarz(a, c, Config{Overlap: overlap, Method: krylov.ASM})
				if err != nil {
					return err
				}
				loc := make([]float64, s.Dof()*mu)
				s.Restrict(x, loc, mu)
				out := make([]float64, s.Dof()*mu)
				s.GMV(loc, out, mu)
				got := make([]float64, n*mu)
				s.Gather(out, got, mu)
				if d := floats.Distance(got, want, math.Inf(1)); d > 1e-12 {
					t.Errorf("size=%d overlap=%d rank %d: |A x - GMV|=%v", size, overlap, c.Rank(), d)
				}
				var sum float64
				for _, v := range s.Scaling() {
					sum += v
				}
				sum2 := []float64{sum}
				c.AllReduceSum(sum2)
				if math.Abs(sum2[0]-n) > 1e-12 {
					t.Errorf("size=%d overlap=%d: partition of unity sums to %v", size, overlap, sum2[0])
				}
				return nil
			})
			require.NoError(t, err)
		}
	}
}

func TestSchwarzApplySingleRank(t *testing.T) {
	// With one subdomain the Schwarz preconditioner is the exact inverse.
	const n = 12
	a := ConvectionDiffusion1D[complex128](n, 0.3)
	s, err := NewSchwarz(a, comm.Self(), Config{Method: krylov.RAS, Factorization: direct.LU})
	require.NoError(t, err)
	assert.Equal(t, Subdomain(a, 0, 1, 0), s.Indices())
	want := make([]complex128, n)
	for i := range want {
		want[i] = complex(float64(i), 1)
	}
	b := make([]complex128, n)
	a.MulVec(b, want)
	got := make([]complex128, n)
	s.Apply(b, got, 1, make([]complex128, n), false)
	for i := range got {
		assert.InDelta(t, real(want[i]), real(got[i]), 1e-10)
		assert.InDelta(t, imag(want[i]), imag(got[i]), 1e-10)
	}
}

func TestSchwarzErrors(t *testing.T) {
	a := Laplacian1D[float64](4)
	_, err := NewSchwarz(a, comm.Self(), Config{Method: krylov.ORAS})
	require.ErrorIs(t, err, ErrMethod)

	neg := ConvectionDiffusion1D[float64](4, 3)
	_, err = NewSchwarz(neg, comm.Self(), Config{Method: krylov.ASM, Factorization: direct.Cholesky})
	require.Error(t, err)

	var e Excluded[float64]
	assert.Zero(t, e.Dof())
	assert.Nil(t, e.Scaling())
	assert.False(t, e.Start(nil, nil, 1, true))
}
