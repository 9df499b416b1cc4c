// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dense

import (
	"math"

	"gonum.org/v1/gonum/blas"
)

// cholesky is an unblocked column-major Cholesky factorization. The block
// sizes handed to it by the solvers are the number of right-hand sides, so a
// blocked algorithm buys nothing.
func cholesky[K Scalar](k Kernel[K], uplo blas.Uplo, n int, a []K, lda int) bool {
	if uplo == blas.Upper {
		for j := 0; j < n; j++ {
			colj := a[j*lda : j*lda+j+1]
			for i := 0; i < j; i++ {
				coli := a[i*lda : i*lda+i]
				v := colj[i] - k.Dot(coli, colj[:i])
				colj[i] = v / a[i+i*lda]
			}
			d := k.Real(a[j+j*lda]) - sqNorm(k, colj[:j])
			if d <= 0 || math.IsNaN(d) {
				return false
			}
			a[j+j*lda] = k.FromReal(math.Sqrt(d))
		}
		return true
	}
	for j := 0; j < n; j++ {
		d := k.Real(a[j+j*lda])
		for p := 0; p < j; p++ {
			v := k.Abs(a[j+p*lda])
			d -= v * v
		}
		if d <= 0 || math.IsNaN(d) {
			return false
		}
		d = math.Sqrt(d)
		a[j+j*lda] = k.FromReal(d)
		for i := j + 1; i < n; i++ {
			v := a[i+j*lda]
			for p := 0; p < j; p++ {
				v -= a[i+p*lda] * k.Conj(a[j+p*lda])
			}
			a[i+j*lda] = v / k.FromReal(d)
		}
	}
	return true
}

func sqNorm[K Scalar](k Kernel[K], x []K) float64 {
	var s float64
	for _, v := range x {
		a := k.Abs(v)
		s += a * a
	}
	return s
}

// geqr2 is the unblocked Householder QR factorization behind Kernel.Geqrf for
// scalar types without a LAPACK implementation.
func geqr2[K Scalar](k Kernel[K], m, n int, a []K, lda int, tau []K) {
	if m < n {
		panic("dense: geqr2 requires m >= n")
	}
	for j := 0; j < n; j++ {
		col := a[j*lda+j : j*lda+m]
		tau[j] = larfg(k, col)
		if j+1 == n || tau[j] == 0 {
			continue
		}
		beta := col[0]
		col[0] = 1
		applyReflector(k, k.Conj(tau[j]), col, m-j, n-j-1, a[(j+1)*lda+j:], lda)
		col[0] = beta
	}
}

// unm2r applies the reflectors of geqr2 from the left.
func unm2r[K Scalar](k Kernel[K], trans blas.Transpose, m, n, nr int, a []K, lda int, tau []K, c []K, ldc int) {
	if m == 0 || n == 0 || nr == 0 {
		return
	}
	apply := func(j int) {
		if tau[j] == 0 {
			return
		}
		t := tau[j]
		if trans != blas.NoTrans {
			t = k.Conj(t)
		}
		v := a[j*lda+j : j*lda+m]
		diag := v[0]
		v[0] = 1
		applyReflector(k, t, v, m-j, n, c[j:], ldc)
		v[0] = diag
	}
	if trans == blas.NoTrans {
		for j := nr - 1; j >= 0; j-- {
			apply(j)
		}
		return
	}
	for j := 0; j < nr; j++ {
		apply(j)
	}
}

// larfg generates the elementary reflector H with Hᴴ·x = [beta 0 … 0]ᵀ, beta
// real. x[1:] is overwritten with the reflector tail and x[0] with beta.
func larfg[K Scalar](k Kernel[K], x []K) K {
	if len(x) == 0 {
		return 0
	}
	alpha := x[0]
	xnorm := k.Nrm2(x[1:])
	alphr, alphi := k.Real(alpha), k.Imag(alpha)
	if xnorm == 0 && alphi == 0 {
		return 0
	}
	beta := -math.Copysign(math.Hypot(math.Hypot(alphr, alphi), xnorm), alphr)
	tau := k.Complex((beta-alphr)/beta, -alphi/beta)
	k.Scal(1/(alpha-k.FromReal(beta)), x[1:])
	x[0] = k.FromReal(beta)
	return tau
}

// applyReflector computes C = (I - tau·v·vᴴ)·C for the m×n matrix c.
func applyReflector[K Scalar](k Kernel[K], tau K, v []K, m, n int, c []K, ldc int) {
	v = v[:m]
	for j := 0; j < n; j++ {
		col := c[j*ldc : j*ldc+m]
		w := k.Dot(v, col)
		k.Axpy(-tau*w, v, col)
	}
}

// Rotg computes the rotation that zeroes b in the pair (a, b), b being real
// and non-negative as is the subdiagonal of a Hessenberg column produced by
// the Arnoldi process. The rotation
//
//	[ conj(c)  s ]
//	[   -s     c ]
//
// maps (a, b) to (r, 0) with r = |(a, b)|.
func Rotg[K Scalar](k Kernel[K], a K, b float64) (c K, s, r float64) {
	r = math.Hypot(k.Abs(a), b)
	if r == 0 {
		return 1, 0, 0
	}
	return a / k.FromReal(r), b / r, r
}

// Rot applies the rotation (c, s) generated by Rotg to the pair (x, y).
func Rot[K Scalar](k Kernel[K], c K, s float64, x, y K) (K, K) {
	ks := k.FromReal(s)
	return k.Conj(c)*x + ks*y, -ks*x + c*y
}
