// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
)

// real64 maps the column-major convention onto the row-major gonum
// implementation: a column-major m×n matrix is the row-major n×m transpose
// sharing the same memory.
type real64 struct{}

func (real64) IsComplex() bool { return false }
func (real64) Buffers() int { return 1 }
func (real64) Real(x float64) float64 { return x }
func (real64) Imag(float64) float64 { return 0 }
func (real64) FromReal(x float64) float64 { return x }
func (real64) Complex(re, _ float64) float64 { return re }
func (real64) Conj(x float64) float64 { return x }
func (real64) Abs(x float64) float64 { return math.Abs(x) }
func (real64) Nrm2(x []float64) float64 { return blas64.Implementation().Dnrm2(len(x), x, 1) }
func (real64) Scal(alpha float64, x []float64) { blas64.Implementation().Dscal(len(x), alpha, x, 1) }

func (real64) Dot(x, y []float64) float64 {
	if len(x) != len(y) {
		panic("dense: length mismatch")
	}
	return blas64.Implementation().Ddot(len(x), x, 1, y, 1)
}

func (real64) Axpy(alpha float64, x, y []float64) {
	if len(x) != len(y) {
		panic("dense: length mismatch")
	}
	blas64.Implementation().Daxpy(len(x), alpha, x, 1, y, 1)
}

func (real64) Axpby(alpha float64, x []float64, beta float64, y []float64) {
	if len(x) != len(y) {
		panic("dense: length mismatch")
	}
	for i, v := range x {
		y[i] = alpha*v + beta*y[i]
	}
}

func realTrans(t blas.Transpose) blas.Transpose {
	if t == blas.ConjTrans {
		return blas.Trans
	}
	return t
}

func (real64) Gemv(t blas.Transpose, m, n int, alpha float64, a []float64, lda int, x []float64, beta float64, y []float64) {
	ylen := m
	if t != blas.NoTrans {
		ylen = n
	}
	if m == 0 || n == 0 {
		scaleMat(blas.All, ylen, 1, beta, y, max(1, ylen))
		return
	}
	bi := blas64.Implementation()
	if t == blas.NoTrans {
		bi.Dgemv(blas.Trans, n, m, alpha, a, lda, x, 1, beta, y, 1)
		return
	}
	bi.Dgemv(blas.NoTrans, n, m, alpha, a, lda, x, 1, beta, y, 1)
}

func (real64) Gemm(tA, tB blas.Transpose, m, n, k int, alpha float64, a []float64, lda int, b []float64, ldb int, beta float64, c []float64, ldc int) {
	if m == 0 || n == 0 {
		return
	}
	if k == 0 {
		scaleMat(blas.All, m, n, beta, c, ldc)
		return
	}
	blas64.Implementation().Dgemm(realTrans(tB), realTrans(tA), n, m, k, alpha, b, ldb, a, lda, beta, c, ldc)
}

func (real64) Herk(uplo blas.Uplo, t blas.Transpose, n, k int, alpha float64, a []float64, lda int, beta float64, c []float64, ldc int) {
	if n == 0 {
		return
	}
	if k == 0 {
		scaleMat(uplo, n, n, beta, c, ldc)
		return
	}
	rt := blas.NoTrans
	if t == blas.NoTrans {
		rt = blas.Trans
	}
	blas64.Implementation().Dsyrk(flipUplo(uplo), rt, n, k, alpha, a, lda, beta, c, ldc)
}

func (real64) Trsm(s blas.Side, uplo blas.Uplo, t blas.Transpose, d blas.Diag, m, n int, alpha float64, a []float64, lda int, b []float64, ldb int) {
	if m == 0 || n == 0 {
		return
	}
	blas64.Implementation().Dtrsm(flipSide(s), flipUplo(uplo), realTrans(t), d, n, m, alpha, a, lda, b, ldb)
}

func (real64) Trmm(s blas.Side, uplo blas.Uplo, t blas.Transpose, d blas.Diag, m, n int, alpha float64, a []float64, lda int, b []float64, ldb int) {
	if m == 0 || n == 0 {
		return
	}
	blas64.Implementation().Dtrmm(flipSide(s), flipUplo(uplo), realTrans(t), d, n, m, alpha, a, lda, b, ldb)
}

func (real64) Potrf(uplo blas.Uplo, n int, a []float64, lda int) bool {
	if n == 0 {
		return true
	}
	_, ok := lapack64.Potrf(blas64.Symmetric{
		Uplo:   flipUplo(uplo),
		N:      n,
		Data:   a,
		Stride: lda,
	})
	return ok
}

// Geqrf factorizes the column-major a as the LQ factorization of its row-major
// transpose: Aᵀ = L·Qₗ gives A = Qₗᵀ·Lᵀ, and the reflectors land where the
// column-major QR stores them.
func (real64) Geqrf(m, n int, a []float64, lda int, tau []float64) {
	if m < n {
		panic("dense: Geqrf requires m >= n")
	}
	if n == 0 {
		return
	}
	work := make([]float64, n)
	lapack64.Gelqf(blas64.General{Rows: n, Cols: m, Data: a, Stride: lda}, tau[:n], work, len(work))
}

func (real64) Unmqr(trans blas.Transpose, m, n, nr int, a []float64, lda int, tau []float64, c []float64, ldc int) {
	if m == 0 || n == 0 || nr == 0 {
		return
	}
	// Q·C is (Cᵀ·Qₗ)ᵀ and Qᵀ·C is (Cᵀ·Qₗᵀ)ᵀ.
	work := make([]float64, n)
	lapack64.Ormlq(blas.Right, realTrans(trans),
		blas64.General{Rows: nr, Cols: m, Data: a, Stride: lda}, tau[:nr],
		blas64.General{Rows: n, Cols: m, Data: c, Stride: ldc},
		work, len(work))
}
