// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"gonum.org/v1/gonum/blas"
)

// update solves the reduced triangular systems for the Krylov coefficients of
// each column, steps[nu] being the number of Arnoldi steps taken by column
// nu in this cycle, and adds the correction to x. Columns with no step are
// left untouched.
func (b *basis[K]) update(x []K, steps []int) {
	k, n, mu := b.k, b.n, b.mu
	ld := b.ldh
	if mu == 1 {
		if steps[0] > 0 {
			k.Trsm(blas.Left, blas.Upper, blas.NoTrans, blas.NonUnit, steps[0], 1, 1, b.hbuf, ld, b.s, ld)
		}
	} else {
		for nu := 0; nu < mu; nu++ {
			for i := steps[nu] - 1; i >= 0; i-- {
				b.s[i*mu+nu] /= b.h[i][i*mu+nu]
				alpha := -b.s[i*mu+nu]
				for r := 0; r < i; r++ {
					b.s[r*mu+nu] += alpha * b.h[i][r*mu+nu]
				}
			}
		}
	}

	dim := n * mu
	y := b.y
	coef := func(nu int) []K {
		for i := 0; i < steps[nu]; i++ {
			y[i] = b.s[i*mu+nu]
		}
		return y[:steps[nu]]
	}
	if b.variant == Left {
		for nu := 0; nu < mu; nu++ {
			if steps[nu] == 0 {
				continue
			}
			k.Gemv(blas.NoTrans, n, steps[nu], 1, b.vbuf[nu*n:], dim, coef(nu), 1, b.col(x, nu))
		}
		return
	}
	src := b.vbuf
	if b.variant == Flexible {
		src = b.zbuf
	}
	for nu := 0; nu < mu; nu++ {
		k.Gemv(blas.NoTrans, n, steps[nu], 1, src[nu*n:], dim, coef(nu), 0, b.col(b.ax, nu))
	}
	corr := b.ax
	if b.variant == Right {
		corr = b.v[b.m]
		b.op.Apply(b.ax, corr, mu, b.dv, b.excluded)
	}
	for nu := 0; nu < mu; nu++ {
		if steps[nu] != 0 {
			k.Axpy(1, b.col(corr, nu), b.col(x, nu))
		}
	}
}

// blockUpdate solves the reduced block triangular system of a cycle of steps
// block Arnoldi steps and adds the correction to the block x.
func (b *basis[K]) blockUpdate(x []K, steps int) {
	if steps == 0 {
		return
	}
	k, n, mu, ldh := b.k, b.n, b.mu, b.ldh
	kk := steps * mu
	k.Trsm(blas.Left, blas.Upper, blas.NoTrans, blas.NonUnit, kk, mu, 1, b.hbuf, ldh, b.s, ldh)
	if b.variant == Left {
		k.Gemm(blas.NoTrans, blas.NoTrans, n, mu, kk, 1, b.vbuf, n, b.s, ldh, 1, x, n)
		return
	}
	src := b.vbuf
	if b.variant == Flexible {
		src = b.zbuf
	}
	k.Gemm(blas.NoTrans, blas.NoTrans, n, mu, kk, 1, src, n, b.s, ldh, 0, b.ax, n)
	corr := b.ax
	if b.variant == Right {
		corr = b.v[b.m]
		b.op.Apply(b.ax, corr, mu, b.dv, b.excluded)
	}
	k.Axpy(1, corr, x[:n*mu])
}
