// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dense provides a uniform calling convention over the dense BLAS and
// LAPACK kernels used by the Krylov solvers, for real and complex scalars.
//
// All matrix routines follow the column-major convention of the reference
// BLAS: an m×n matrix a with leading dimension lda stores element (i, j) at
// a[i+j*lda]. A block of mu vectors of length n is therefore an n×mu matrix
// with leading dimension n, each vector being contiguous.
package dense

import (
	"gonum.org/v1/gonum/blas"
)

// Scalar is the set of scalar types supported by the solvers. The underlying
// real type of both is float64.
type Scalar interface {
	float64 | complex128
}

// Kernel is the numeric-trait strategy for a scalar type K. It is obtained
// once with For and shared by all routines working on K.
type Kernel[K Scalar] interface {
	// IsComplex reports whether K is a complex type.
	IsComplex() bool
	// Buffers returns the number of separate allocations a solver workspace
	// needs: real scalars share one buffer between real-valued scratch and
	// vectors, complex scalars need a second one for the real-valued part.
	Buffers() int

	Real(x K) float64
	Imag(x K) float64
	FromReal(x float64) K
	// Complex returns re+i·im. The imaginary part is dropped for real K.
	Complex(re, im float64) K
	Conj(x K) K
	Abs(x K) float64

	// Dot returns xᴴ·y.
	Dot(x, y []K) K
	// Axpy computes y += alpha·x.
	Axpy(alpha K, x, y []K)
	// Axpby computes y = alpha·x + beta·y.
	Axpby(alpha K, x []K, beta K, y []K)
	Scal(alpha K, x []K)
	Nrm2(x []K) float64

	// Gemv computes y = alpha·op(A)·x + beta·y for the m×n matrix A.
	Gemv(t blas.Transpose, m, n int, alpha K, a []K, lda int, x []K, beta K, y []K)
	// Gemm computes C = alpha·op(A)·op(B) + beta·C, C is m×n.
	Gemm(tA, tB blas.Transpose, m, n, k int, alpha K, a []K, lda int, b []K, ldb int, beta K, c []K, ldc int)
	// Herk computes the uplo triangle of C = alpha·Aᴴ·A + beta·C
	// (t == blas.ConjTrans, A is k×n) or C = alpha·A·Aᴴ + beta·C
	// (t == blas.NoTrans, A is n×k).
	Herk(uplo blas.Uplo, t blas.Transpose, n, k int, alpha float64, a []K, lda int, beta float64, c []K, ldc int)
	// Trsm solves op(A)·X = alpha·B or X·op(A) = alpha·B for the m×n
	// matrix X, overwriting B.
	Trsm(s blas.Side, uplo blas.Uplo, t blas.Transpose, d blas.Diag, m, n int, alpha K, a []K, lda int, b []K, ldb int)
	// Trmm computes B = alpha·op(A)·B or B = alpha·B·op(A).
	Trmm(s blas.Side, uplo blas.Uplo, t blas.Transpose, d blas.Diag, m, n int, alpha K, a []K, lda int, b []K, ldb int)
	// Potrf computes the Cholesky factorization A = Uᴴ·U of the Hermitian
	// positive definite n×n matrix stored in the upper triangle of a. It
	// reports whether the factorization succeeded.
	Potrf(uplo blas.Uplo, n int, a []K, lda int) bool

	// Geqrf computes the QR factorization of the m×n matrix a with m >= n.
	// On return the upper triangle holds R and the elements below the
	// diagonal together with tau hold the Householder reflectors
	//
	//	H_j = I - tau[j]·v_j·v_jᴴ,  v_j = [0 … 0 1 a[j+1:m, j]].
	//
	// Q = H_0·H_1·…·H_{n-1}. tau must have length at least n.
	Geqrf(m, n int, a []K, lda int, tau []K)
	// Unmqr overwrites the m×n matrix c with Q·C (trans == blas.NoTrans) or
	// Qᴴ·C (trans == blas.ConjTrans), Q being the product of the first nr
	// reflectors stored by Geqrf in a and tau.
	Unmqr(trans blas.Transpose, m, n, nr int, a []K, lda int, tau []K, c []K, ldc int)
}

// For returns the Kernel for the scalar type K.
func For[K Scalar]() Kernel[K] {
	var z K
	switch any(z).(type) {
	case float64:
		return any(real64{}).(Kernel[K])
	case complex128:
		return any(cmplx128{}).(Kernel[K])
	}
	panic("dense: unsupported scalar type")
}

// Potrs solves A·X = B using the Cholesky factor U computed by Potrf. B is
// n×nrhs.
func Potrs[K Scalar](k Kernel[K], n, nrhs int, a []K, lda int, b []K, ldb int) {
	one := k.FromReal(1)
	k.Trsm(blas.Left, blas.Upper, blas.ConjTrans, blas.NonUnit, n, nrhs, one, a, lda, b, ldb)
	k.Trsm(blas.Left, blas.Upper, blas.NoTrans, blas.NonUnit, n, nrhs, one, a, lda, b, ldb)
}

// Posv factorizes the Hermitian positive definite matrix in the upper
// triangle of a and solves A·X = B. It reports false, leaving B unchanged,
// when A is not positive definite.
func Posv[K Scalar](k Kernel[K], n, nrhs int, a []K, lda int, b []K, ldb int) bool {
	if !k.Potrf(blas.Upper, n, a, lda) {
		return false
	}
	Potrs(k, n, nrhs, a, lda, b, ldb)
	return true
}

// Diag computes out = D·in column by column for a block of mu vectors, where D
// is the diagonal matrix d. A nil d is the identity. When out is nil the
// scaling is done in place.
func Diag[K Scalar](d []float64, in, out []K, mu int) {
	if out == nil {
		out = in
	} else if d == nil {
		copy(out, in)
		return
	}
	if d == nil || len(in) == 0 {
		return
	}
	n := len(d)
	if len(in) < n*mu || len(out) < n*mu {
		panic("dense: short vector")
	}
	switch x := any(in).(type) {
	case []float64:
		y := any(out).([]float64)
		for nu := 0; nu < mu; nu++ {
			xi, yi := x[nu*n:(nu+1)*n], y[nu*n:(nu+1)*n]
			for i, di := range d {
				yi[i] = di * xi[i]
			}
		}
	case []complex128:
		y := any(out).([]complex128)
		for nu := 0; nu < mu; nu++ {
			xi, yi := x[nu*n:(nu+1)*n], y[nu*n:(nu+1)*n]
			for i, di := range d {
				yi[i] = complex(di, 0) * xi[i]
			}
		}
	}
}

// PackUpper copies the upper triangle of the n×n matrix a into the packed
// array p of length n(n+1)/2, column by column.
func PackUpper[K Scalar](n int, a []K, lda int, p []K) {
	for j := 0; j < n; j++ {
		copy(p[j*(j+1)/2:j*(j+1)/2+j+1], a[j*lda:j*lda+j+1])
	}
}

// UnpackHermitian expands the packed upper triangle p into the full Hermitian
// n×n matrix a.
func UnpackHermitian[K Scalar](k Kernel[K], n int, p []K, a []K, lda int) {
	for j := 0; j < n; j++ {
		copy(a[j*lda:j*lda+j+1], p[j*(j+1)/2:j*(j+1)/2+j+1])
	}
	for j := 0; j < n; j++ {
		for i := 0; i < j; i++ {
			a[j+i*lda] = k.Conj(a[i+j*lda])
		}
	}
}

// Zero sets all elements of x to zero.
func Zero[K Scalar](x []K) {
	for i := range x {
		x[i] = 0
	}
}

func flipSide(s blas.Side) blas.Side {
	if s == blas.Left {
		return blas.Right
	}
	return blas.Left
}

func flipUplo(ul blas.Uplo) blas.Uplo {
	if ul == blas.Upper {
		return blas.Lower
	}
	return blas.Upper
}

// scaleMat computes C = beta·C for the uplo part of the m×n matrix C, uplo
// being blas.All for a general matrix.
func scaleMat[K Scalar](uplo blas.Uplo, m, n int, beta K, c []K, ldc int) {
	for j := 0; j < n; j++ {
		lo, hi := 0, m
		switch uplo {
		case blas.Upper:
			hi = min(j+1, m)
		case blas.Lower:
			lo = j
		}
		col := c[j*ldc:]
		for i := lo; i < hi; i++ {
			if beta == 0 {
				col[i] = 0
			} else {
				col[i] *= beta
			}
		}
	}
}
