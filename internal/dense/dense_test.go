// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"
)

func randMat[K Scalar](rnd *rand.Rand, m, n int) []K {
	k := For[K]()
	a := make([]K, m*n)
	for i := range a {
		a[i] = k.Complex(rnd.NormFloat64(), rnd.NormFloat64())
	}
	return a
}

// at returns op(A)(i, j) for the column-major A with leading dimension lda.
func at[K Scalar](k Kernel[K], t blas.Transpose, a []K, lda, i, j int) K {
	switch t {
	case blas.NoTrans:
		return a[i+j*lda]
	case blas.Trans:
		return a[j+i*lda]
	}
	return k.Conj(a[j+i*lda])
}

func naiveGemm[K Scalar](k Kernel[K], tA, tB blas.Transpose, m, n, kk int, a []K, lda int, b []K, ldb int) []K {
	c := make([]K, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var s K
			for p := 0; p < kk; p++ {
				s += at(k, tA, a, lda, i, p) * at(k, tB, b, ldb, p, j)
			}
			c[i+j*m] = s
		}
	}
	return c
}

func maxDiff[K Scalar](k Kernel[K], x, y []K) float64 {
	var d float64
	for i := range x {
		d = math.Max(d, k.Abs(x[i]-y[i]))
	}
	return d
}

func testGemm[K Scalar](t *testing.T) {
	k := For[K]()
	rnd := rand.New(rand.NewSource(1))
	trans := []blas.Transpose{blas.NoTrans, blas.Trans, blas.ConjTrans}
	for _, test := range []struct{ m, n, k int }{
		{1, 1, 1}, {3, 2, 4}, {5, 5, 1}, {2, 7, 3},
	} {
		for _, tA := range trans {
			for _, tB := range trans {
				ar, ac := test.m, test.k
				if tA != blas.NoTrans {
					ar, ac = ac, ar
				}
				br, bc := test.k, test.n
				if tB != blas.NoTrans {
					br, bc = bc, br
				}
				a := randMat[K](rnd, ar, ac)
				b := randMat[K](rnd, br, bc)
				c := make([]K, test.m*test.n)
				k.Gemm(tA, tB, test.m, test.n, test.k, 1, a, ar, b, br, 0, c, test.m)
				want := naiveGemm(k, tA, tB, test.m, test.n, test.k, a, ar, b, br)
				assert.Less(t, maxDiff(k, c, want), 1e-12, "gemm %v %v %+v", tA, tB, test)
			}
		}
	}
}

func TestGemm(t *testing.T) {
	t.Run("float64", testGemm[float64])
	t.Run("complex128", testGemm[complex128])
}

func testGemv[K Scalar](t *testing.T) {
	k := For[K]()
	rnd := rand.New(rand.NewSource(1))
	m, n := 5, 3
	a := randMat[K](rnd, m, n)
	for _, tr := range []blas.Transpose{blas.NoTrans, blas.Trans, blas.ConjTrans} {
		xlen, ylen := n, m
		if tr != blas.NoTrans {
			xlen, ylen = m, n
		}
		x := randMat[K](rnd, xlen, 1)
		y := randMat[K](rnd, ylen, 1)
		want := naiveGemm(k, tr, blas.NoTrans, ylen, 1, xlen, a, m, x, xlen)
		for i := range want {
			want[i] += 2 * y[i]
		}
		k.Gemv(tr, m, n, 1, a, m, x, 2, y)
		assert.Less(t, maxDiff(k, y, want), 1e-12, "gemv %v", tr)
	}

	// Empty matrices still scale y.
	y := []K{1, 2}
	k.Gemv(blas.ConjTrans, 0, 2, 1, nil, 1, nil, 0, y)
	assert.Equal(t, []K{0, 0}, y)
}

func TestGemv(t *testing.T) {
	t.Run("float64", testGemv[float64])
	t.Run("complex128", testGemv[complex128])
}

func testHerk[K Scalar](t *testing.T) {
	k := For[K]()
	rnd := rand.New(rand.NewSource(1))
	n, kk := 4, 6
	for _, uplo := range []blas.Uplo{blas.Upper, blas.Lower} {
		a := randMat[K](rnd, kk, n)
		c := make([]K, n*n)
		k.Herk(uplo, blas.ConjTrans, n, kk, 1, a, kk, 0, c, n)
		want := naiveGemm(k, blas.ConjTrans, blas.NoTrans, n, n, kk, a, kk, a, kk)
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				if (uplo == blas.Upper && i > j) || (uplo == blas.Lower && i < j) {
					continue
				}
				assert.Less(t, k.Abs(c[i+j*n]-want[i+j*n]), 1e-12)
			}
		}

		b := randMat[K](rnd, n, kk)
		k.Herk(uplo, blas.NoTrans, n, kk, 1, b, n, 0, c, n)
		want = naiveGemm(k, blas.NoTrans, blas.ConjTrans, n, n, kk, b, n, b, n)
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				if (uplo == blas.Upper && i > j) || (uplo == blas.Lower && i < j) {
					continue
				}
				assert.Less(t, k.Abs(c[i+j*n]-want[i+j*n]), 1e-12)
			}
		}
	}
}

func TestHerk(t *testing.T) {
	t.Run("float64", testHerk[float64])
	t.Run("complex128", testHerk[complex128])
}

// spd returns a well conditioned Hermitian positive definite matrix.
func spd[K Scalar](rnd *rand.Rand, n int) []K {
	k := For[K]()
	b := randMat[K](rnd, n, n)
	a := naiveGemm(k, blas.ConjTrans, blas.NoTrans, n, n, n, b, n, b, n)
	for i := 0; i < n; i++ {
		a[i+i*n] += k.FromReal(float64(n))
	}
	return a
}

func testPosv[K Scalar](t *testing.T) {
	k := For[K]()
	rnd := rand.New(rand.NewSource(1))
	for _, n := range []int{1, 2, 5, 8} {
		a := spd[K](rnd, n)
		x := randMat[K](rnd, n, 2)
		b := naiveGemm(k, blas.NoTrans, blas.NoTrans, n, 2, n, a, n, x, n)
		f := append([]K(nil), a...)
		require.True(t, Posv(k, n, 2, f, n, b, n))
		assert.Less(t, maxDiff(k, b, x), 1e-10, "n=%d", n)
	}

	a := []K{1, 2, 2, 1}
	b := []K{1, 1}
	assert.False(t, Posv(k, 2, 1, a, 2, b, 2))
	assert.Equal(t, []K{1, 1}, b)
}

func TestPosv(t *testing.T) {
	t.Run("float64", testPosv[float64])
	t.Run("complex128", testPosv[complex128])
}

func TestCholeskyMatchesLapack(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	n := 6
	k := For[float64]()
	for _, uplo := range []blas.Uplo{blas.Upper, blas.Lower} {
		a := spd[float64](rnd, n)
		got := append([]float64(nil), a...)
		want := append([]float64(nil), a...)
		require.True(t, cholesky(k, uplo, n, got, n))
		require.True(t, k.Potrf(uplo, n, want, n))
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				if (uplo == blas.Upper && i > j) || (uplo == blas.Lower && i < j) {
					continue
				}
				assert.InDelta(t, want[i+j*n], got[i+j*n], 1e-12)
			}
		}
	}
}

func testTriangular[K Scalar](t *testing.T) {
	k := For[K]()
	rnd := rand.New(rand.NewSource(1))
	m, n := 4, 3
	for _, side := range []blas.Side{blas.Left, blas.Right} {
		for _, uplo := range []blas.Uplo{blas.Upper, blas.Lower} {
			for _, tr := range []blas.Transpose{blas.NoTrans, blas.Trans, blas.ConjTrans} {
				na := m
				if side == blas.Right {
					na = n
				}
				a := randMat[K](rnd, na, na)
				for i := 0; i < na; i++ {
					a[i+i*na] += k.FromReal(4)
				}
				b := randMat[K](rnd, m, n)
				x := append([]K(nil), b...)
				k.Trmm(side, uplo, tr, blas.NonUnit, m, n, 1, a, na, x, m)
				k.Trsm(side, uplo, tr, blas.NonUnit, m, n, 1, a, na, x, m)
				assert.Less(t, maxDiff(k, x, b), 1e-12, "%v %v %v", side, uplo, tr)
			}
		}
	}

	// Left upper no-transpose product against the explicit triangle.
	a := []K{2, 0, 1, 3}
	x := []K{1, 1}
	k.Trmm(blas.Left, blas.Upper, blas.NoTrans, blas.NonUnit, 2, 1, 1, a, 2, x, 2)
	assert.Equal(t, []K{3, 3}, x)
}

func TestTriangular(t *testing.T) {
	t.Run("float64", testTriangular[float64])
	t.Run("complex128", testTriangular[complex128])
}

func testQR[K Scalar](t *testing.T) {
	k := For[K]()
	rnd := rand.New(rand.NewSource(1))
	for _, test := range []struct{ m, n int }{{1, 1}, {4, 2}, {6, 3}, {5, 5}} {
		m, n := test.m, test.n
		a := randMat[K](rnd, m, n)
		qr := append([]K(nil), a...)
		tau := make([]K, n)
		k.Geqrf(m, n, qr, m, tau)

		// Q·R reproduces A.
		r := make([]K, m*n)
		for j := 0; j < n; j++ {
			copy(r[j*m:j*m+j+1], qr[j*m:j*m+j+1])
		}
		k.Unmqr(blas.NoTrans, m, n, n, qr, m, tau, r, m)
		assert.Less(t, maxDiff(k, r, a), 1e-12, "%+v", test)

		// Qᴴ·A is upper triangular with the diagonal of R.
		c := append([]K(nil), a...)
		k.Unmqr(blas.ConjTrans, m, n, n, qr, m, tau, c, m)
		for j := 0; j < n; j++ {
			for i := 0; i < m; i++ {
				want := K(0)
				if i <= j {
					want = qr[i+j*m]
				}
				assert.Less(t, k.Abs(c[i+j*m]-want), 1e-12, "%+v (%d,%d)", test, i, j)
			}
		}
		for j := 0; j < n; j++ {
			assert.Equal(t, 0.0, k.Imag(qr[j+j*m]), "diagonal of R is real")
		}
	}
}

func TestQR(t *testing.T) {
	t.Run("float64", testQR[float64])
	t.Run("complex128", testQR[complex128])
}

func TestQRLapackMatchesUnblocked(t *testing.T) {
	k := For[float64]()
	rnd := rand.New(rand.NewSource(2))
	// The slab shape of Block-Arnoldi: 2mu×mu inside a taller leading dimension.
	for _, mu := range []int{1, 2, 3, 5} {
		m, n, lda := 2*mu, mu, 4*mu
		a := randMat[float64](rnd, lda, n)
		got := append([]float64(nil), a...)
		want := append([]float64(nil), a...)
		gotTau := make([]float64, n)
		wantTau := make([]float64, n)
		k.Geqrf(m, n, got, lda, gotTau)
		geqr2(k, m, n, want, lda, wantTau)
		assert.Less(t, maxDiff(k, got, want), 1e-13, "mu=%d: factors", mu)
		assert.Less(t, maxDiff(k, gotTau, wantTau), 1e-13, "mu=%d: tau", mu)

		for _, trans := range []blas.Transpose{blas.NoTrans, blas.Trans, blas.ConjTrans} {
			c := randMat[float64](rnd, lda, n)
			cw := append([]float64(nil), c...)
			k.Unmqr(trans, m, n, n, got, lda, gotTau, c, lda)
			unm2r(k, trans, m, n, n, want, lda, wantTau, cw, lda)
			assert.Less(t, maxDiff(k, c, cw), 1e-13, "mu=%d trans=%v", mu, trans)
		}
	}
}

func TestRotg(t *testing.T) {
	k := For[complex128]()
	a := complex(3, 4)
	c, s, r := Rotg(k, a, 12)
	assert.InDelta(t, 13.0, r, 1e-14)
	x, y := Rot(k, c, s, a, 12)
	assert.InDelta(t, 0, cmplx.Abs(y), 1e-14)
	assert.InDelta(t, 0, cmplx.Abs(x-13), 1e-14)

	c, s, r = Rotg(k, 0, 0)
	assert.Equal(t, complex(1, 0), c)
	assert.Zero(t, s)
	assert.Zero(t, r)
}

func TestDiag(t *testing.T) {
	d := []float64{1, 0.5, 0}
	in := []complex128{2, 2, 2, 4, 4, 4}
	out := make([]complex128, 6)
	Diag(d, in, out, 2)
	assert.Equal(t, []complex128{2, 1, 0, 4, 2, 0}, out)

	Diag(nil, in, out, 2)
	assert.Equal(t, in, out)

	x := []float64{2, 2, 2}
	Diag(d, x, nil, 1)
	assert.Equal(t, []float64{2, 1, 0}, x)
}

func TestPacked(t *testing.T) {
	k := For[complex128]()
	a := []complex128{
		1, 0, 0,
		complex(2, 1), 4, 0,
		complex(3, -1), 5, 6,
	}
	p := make([]complex128, 6)
	PackUpper(3, a, 3, p)
	assert.Equal(t, []complex128{1, complex(2, 1), 4, complex(3, -1), 5, 6}, p)

	full := make([]complex128, 9)
	UnpackHermitian(k, 3, p, full, 3)
	assert.Equal(t, complex(2, -1), full[1])
	assert.Equal(t, complex(3, 1), full[2])
	assert.Equal(t, complex128(5), full[5])
}
