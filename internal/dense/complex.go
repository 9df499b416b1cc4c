// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
)

// cmplx128 uses the same row-major mapping as real64. gonum has no complex
// LAPACK, the Cholesky factorization is done by cholesky.
type cmplx128 struct{}

func (cmplx128) IsComplex() bool { return true }
func (cmplx128) Buffers() int { return 2 }
func (cmplx128) Real(x complex128) float64 { return real(x) }
func (cmplx128) Imag(x complex128) float64 { return imag(x) }
func (cmplx128) FromReal(x float64) complex128 { return complex(x, 0) }
func (cmplx128) Complex(re, im float64) complex128 { return complex(re, im) }
func (cmplx128) Conj(x complex128) complex128 { return cmplx.Conj(x) }
func (cmplx128) Abs(x complex128) float64 { return cmplx.Abs(x) }

func (cmplx128) Nrm2(x []complex128) float64 {
	return cblas128.Implementation().Dznrm2(len(x), x, 1)
}

func (cmplx128) Scal(alpha complex128, x []complex128) {
	cblas128.Implementation().Zscal(len(x), alpha, x, 1)
}

func (cmplx128) Dot(x, y []complex128) complex128 {
	if len(x) != len(y) {
		panic("dense: length mismatch")
	}
	return cblas128.Implementation().Zdotc(len(x), x, 1, y, 1)
}

func (cmplx128) Axpy(alpha complex128, x, y []complex128) {
	if len(x) != len(y) {
		panic("dense: length mismatch")
	}
	cblas128.Implementation().Zaxpy(len(x), alpha, x, 1, y, 1)
}

func (cmplx128) Axpby(alpha complex128, x []complex128, beta complex128, y []complex128) {
	if len(x) != len(y) {
		panic("dense: length mismatch")
	}
	for i, v := range x {
		y[i] = alpha*v + beta*y[i]
	}
}

func (cmplx128) Gemv(t blas.Transpose, m, n int, alpha complex128, a []complex128, lda int, x []complex128, beta complex128, y []complex128) {
	ylen := m
	if t != blas.NoTrans {
		ylen = n
	}
	if m == 0 || n == 0 {
		scaleMat(blas.All, ylen, 1, beta, y, max(1, ylen))
		return
	}
	bi := cblas128.Implementation()
	switch t {
	case blas.NoTrans:
		bi.Zgemv(blas.Trans, n, m, alpha, a, lda, x, 1, beta, y, 1)
	case blas.Trans:
		bi.Zgemv(blas.NoTrans, n, m, alpha, a, lda, x, 1, beta, y, 1)
	default:
		// Row-major storage cannot express Aᴴ·x of the column-major A,
		// each column is one conjugated dot product.
		for j := 0; j < n; j++ {
			d := alpha * bi.Zdotc(m, a[j*lda:], 1, x, 1)
			if beta == 0 {
				y[j] = d
			} else {
				y[j] = d + beta*y[j]
			}
		}
	}
}

func (cmplx128) Gemm(tA, tB blas.Transpose, m, n, k int, alpha complex128, a []complex128, lda int, b []complex128, ldb int, beta complex128, c []complex128, ldc int) {
	if m == 0 || n == 0 {
		return
	}
	if k == 0 {
		scaleMat(blas.All, m, n, beta, c, ldc)
		return
	}
	cblas128.Implementation().Zgemm(tB, tA, n, m, k, alpha, b, ldb, a, lda, beta, c, ldc)
}

func (cmplx128) Herk(uplo blas.Uplo, t blas.Transpose, n, k int, alpha float64, a []complex128, lda int, beta float64, c []complex128, ldc int) {
	if n == 0 {
		return
	}
	if k == 0 {
		scaleMat(uplo, n, n, complex(beta, 0), c, ldc)
		return
	}
	rt := blas.NoTrans
	if t == blas.NoTrans {
		rt = blas.ConjTrans
	}
	cblas128.Implementation().Zherk(flipUplo(uplo), rt, n, k, alpha, a, lda, beta, c, ldc)
}

func (cmplx128) Trsm(s blas.Side, uplo blas.Uplo, t blas.Transpose, d blas.Diag, m, n int, alpha complex128, a []complex128, lda int, b []complex128, ldb int) {
	if m == 0 || n == 0 {
		return
	}
	cblas128.Implementation().Ztrsm(flipSide(s), flipUplo(uplo), t, d, n, m, alpha, a, lda, b, ldb)
}

func (cmplx128) Trmm(s blas.Side, uplo blas.Uplo, t blas.Transpose, d blas.Diag, m, n int, alpha complex128, a []complex128, lda int, b []complex128, ldb int) {
	if m == 0 || n == 0 {
		return
	}
	cblas128.Implementation().Ztrmm(flipSide(s), flipUplo(uplo), t, d, n, m, alpha, a, lda, b, ldb)
}

func (c cmplx128) Potrf(uplo blas.Uplo, n int, a []complex128, lda int) bool {
	return cholesky[complex128](c, uplo, n, a, lda)
}

func (c cmplx128) Geqrf(m, n int, a []complex128, lda int, tau []complex128) {
	geqr2[complex128](c, m, n, a, lda, tau)
}

func (c cmplx128) Unmqr(trans blas.Transpose, m, n, nr int, a []complex128, lda int, tau []complex128, cm []complex128, ldc int) {
	unm2r[complex128](c, trans, m, n, nr, a, lda, tau, cm, ldc)
}
