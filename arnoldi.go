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

// basis is the Krylov basis and projected system of one restart cycle of the
// GMRES-type methods.
//
// For the scalar Arnoldi process the mu columns are independent: column i of
// the Hessenberg matrix h[i] has (m+1)*mu entries, entry (k, i) of column nu
// being h[i][k*mu+nu]. Once a column is reduced, its subdiagonal slot holds
// the cosine of the rotation and sn the sine.
//
// For the block process h is the column-major block Hessenberg matrix of
// size (m+1)mu × m mu with leading dimension ldh, block column i being h[i],
// and tau holds the Householder scalars of the QR factorization of each
// 2mu × mu subdiagonal slab.
type basis[K dense.Scalar] struct {
	k        dense.Kernel[K]
	op       Operator[K]
	c        comm.Communicator
	variant  Variant
	gs       GramSchmidt
	excluded bool

	m, n, mu, ldh int
	d, sqrtD      []float64

	// vbuf holds the m+1 blocks of v contiguously, zbuf the m
	// preconditioned blocks of the flexible variant.
	vbuf, zbuf []K
	v, z       [][]K
	hbuf       []K
	h          [][]K
	s          []K
	sn         []float64
	tau        []K

	ax, dv, y []K
}

func newBasis[K dense.Scalar](k dense.Kernel[K], op Operator[K], c comm.Communicator, s Settings, m, n, mu int, block bool) (*basis[K], *arena[K]) {
	dim := n * mu
	ld := (m + 1) * mu
	scalars := (m+1)*dim + 2*dim + ld*m*mu + ld*mu
	reals := m * mu
	if s.Variant == Flexible {
		scalars += m * dim
	}
	if block {
		scalars += m*mu + ld*mu
	} else {
		scalars += m + 1
	}
	var d []float64
	if !s.Excluded {
		d = op.Scaling()
	}
	if block && d != nil {
		reals += n
	}
	// The caller takes its own scratch from the same arena.
	a := newArena(k, scalars+3*dim, reals+4*mu)

	b := &basis[K]{
		k:        k,
		op:       op,
		c:        c,
		variant:  s.Variant,
		gs:       s.Orthogonalization,
		excluded: s.Excluded,
		m:        m,
		n:        n,
		mu:       mu,
		ldh:      ld,
		d:        d,
	}
	b.vbuf = a.take((m + 1) * dim)
	b.v = blocks(b.vbuf, m+1, dim)
	if s.Variant == Flexible {
		b.zbuf = a.take(m * dim)
		b.z = blocks(b.zbuf, m, dim)
	}
	if block {
		b.hbuf = a.take(ld * m * mu)
		b.h = blocks(b.hbuf, m, ld*mu)
		b.s = a.take(ld * mu)
		b.tau = a.take(m * mu)
		b.y = a.take(ld * mu)
		if d != nil {
			b.sqrtD = a.takeReal(n)
			for i, di := range d {
				b.sqrtD[i] = math.Sqrt(di)
			}
		}
	} else {
		b.hbuf = a.take(ld * m)
		b.h = blocks(b.hbuf, m, ld)
		b.s = a.take(ld)
		b.y = a.take(m + 1)
	}
	b.sn = a.takeReal(m * mu)
	b.ax = a.take(dim)
	b.dv = a.take(dim)
	return b, a
}

// blocks splits buf into count views of length n.
func blocks[K dense.Scalar](buf []K, count, n int) [][]K {
	vs := make([][]K, count)
	for i := range vs {
		vs[i] = buf[i*n : (i+1)*n : (i+1)*n]
	}
	return vs
}

// col returns column nu of the block x.
func (b *basis[K]) col(x []K, nu int) []K {
	return x[nu*b.n : (nu+1)*b.n]
}

// operate computes v[i+1] from v[i] with the preconditioner placed as the
// variant requires. In the flexible variant the preconditioned vector is
// kept in z[i].
func (b *basis[K]) operate(i int) {
	vi, vn := b.v[i], b.v[i+1]
	switch b.variant {
	case Left:
		if !b.excluded {
			b.op.GMV(vi, b.ax, b.mu)
		}
		b.op.Apply(b.ax, vn, b.mu, b.dv, b.excluded)
	case Right:
		b.op.Apply(vi, b.ax, b.mu, vn, b.excluded)
		if !b.excluded {
			b.op.GMV(b.ax, vn, b.mu)
		}
	case Flexible:
		b.op.Apply(vi, b.z[i], b.mu, vn, b.excluded)
		if !b.excluded {
			b.op.GMV(b.z[i], vn, b.mu)
		}
	}
}

// arnoldi performs step i of the Arnoldi process on the mu independent
// columns: v[i+1] is orthonormalized against v[0..i], column i of the
// Hessenberg matrix is reduced by the previous rotations and a new rotation,
// and the rotation is applied to s. If save is not nil, the column is copied
// to save[i] before it is rotated.
func (b *basis[K]) arnoldi(i int, save [][]K) {
	k, n, mu := b.k, b.n, b.mu
	dim := n * mu
	b.operate(i)
	vn := b.v[i+1]
	h := b.h[i]

	switch b.gs {
	case Classical:
		dense.Diag(b.d, vn, b.ax, mu)
		y := b.y[:i+1]
		for nu := 0; nu < mu; nu++ {
			k.Gemv(blas.ConjTrans, n, i+1, 1, b.vbuf[nu*n:], dim, b.col(b.ax, nu), 0, y)
			for j, v := range y {
				h[j*mu+nu] = v
			}
		}
		comm.Sum(b.c, h[:(i+1)*mu])
		for nu := 0; nu < mu; nu++ {
			for j := range y {
				y[j] = h[j*mu+nu]
			}
			k.Gemv(blas.NoTrans, n, i+1, -1, b.vbuf[nu*n:], dim, y, 1, b.col(vn, nu))
		}
	case Modified:
		for j := 0; j <= i; j++ {
			dense.Diag(b.d, vn, b.ax, mu)
			hj := h[j*mu : (j+1)*mu]
			for nu := range hj {
				hj[nu] = k.Dot(b.col(b.v[j], nu), b.col(b.ax, nu))
			}
			comm.Sum(b.c, hj)
			for nu, v := range hj {
				k.Axpy(-v, b.col(b.v[j], nu), b.col(vn, nu))
			}
		}
	}

	dense.Diag(b.d, vn, b.ax, mu)
	sn := b.sn[i*mu : (i+1)*mu]
	for nu := range sn {
		sn[nu] = k.Real(k.Dot(b.col(vn, nu), b.col(b.ax, nu)))
	}
	b.c.AllReduceSum(sn)
	for nu, sq := range sn {
		nrm := math.Sqrt(sq)
		h[(i+1)*mu+nu] = k.FromReal(nrm)
		if nrm > 0 {
			k.Scal(k.FromReal(1/nrm), b.col(vn, nu))
		}
	}
	if save != nil {
		copy(save[i], h[:(i+2)*mu])
	}

	for j := 0; j < i; j++ {
		for nu := 0; nu < mu; nu++ {
			c := b.h[j][(j+1)*mu+nu]
			h[j*mu+nu], h[(j+1)*mu+nu] = dense.Rot(k, c, b.sn[j*mu+nu], h[j*mu+nu], h[(j+1)*mu+nu])
		}
	}
	for nu := 0; nu < mu; nu++ {
		c, s, r := dense.Rotg(k, h[i*mu+nu], k.Real(h[(i+1)*mu+nu]))
		b.sn[i*mu+nu] = s
		h[(i+1)*mu+nu] = c
		h[i*mu+nu] = k.FromReal(r)
		b.s[(i+1)*mu+nu] = -k.FromReal(s) * b.s[i*mu+nu]
		b.s[i*mu+nu] *= k.Conj(c)
	}
}

// blockArnoldi performs step i of the block Arnoldi process. The new block is
// orthogonalized against v[0..i] and orthonormalized by a Cholesky
// factorization of its Gram matrix, and the new block column of h is reduced
// by the previous Householder reflections and a QR factorization of its
// subdiagonal slab, which is also applied to s. It reports false if the Gram
// matrix is not positive definite. If save is not nil, the unreduced block
// column is copied to save[i].
func (b *basis[K]) blockArnoldi(i int, save [][]K) bool {
	k, n, mu, ldh := b.k, b.n, b.mu, b.ldh
	b.operate(i)
	vn := b.v[i+1]
	h := b.h[i]
	g := b.y

	switch b.gs {
	case Classical:
		rows := (i + 1) * mu
		dense.Diag(b.d, vn, b.dv, mu)
		k.Gemm(blas.ConjTrans, blas.NoTrans, rows, mu, n, 1, b.vbuf, n, b.dv, n, 0, g, rows)
		comm.Sum(b.c, g[:rows*mu])
		k.Gemm(blas.NoTrans, blas.NoTrans, n, mu, rows, -1, b.vbuf, n, g, rows, 1, vn, n)
		copyBlock(rows, mu, g, rows, h, ldh)
	case Modified:
		for j := 0; j <= i; j++ {
			dense.Diag(b.d, vn, b.dv, mu)
			k.Gemm(blas.ConjTrans, blas.NoTrans, mu, mu, n, 1, b.v[j], n, b.dv, n, 0, g, mu)
			comm.Sum(b.c, g[:mu*mu])
			k.Gemm(blas.NoTrans, blas.NoTrans, n, mu, mu, -1, b.v[j], n, g, mu, 1, vn, n)
			copyBlock(mu, mu, g, mu, h[j*mu:], ldh)
		}
	}

	r := h[(i+1)*mu:]
	if !b.gram(vn, r, ldh) {
		return false
	}
	if save != nil {
		for j := 0; j < mu; j++ {
			copy(save[i][j*ldh:j*ldh+(i+2)*mu], h[j*ldh:j*ldh+(i+2)*mu])
		}
	}
	k.Trsm(blas.Right, blas.Upper, blas.NoTrans, blas.NonUnit, n, mu, 1, r, ldh, vn, n)

	for l := 0; l < i; l++ {
		k.Unmqr(blas.ConjTrans, 2*mu, mu, mu, b.h[l][l*mu:], ldh, b.tau[l*mu:(l+1)*mu], h[l*mu:], ldh)
	}
	tau := b.tau[i*mu : (i+1)*mu]
	k.Geqrf(2*mu, mu, h[i*mu:], ldh, tau)
	k.Unmqr(blas.ConjTrans, 2*mu, mu, mu, h[i*mu:], ldh, tau, b.s[i*mu:], ldh)
	return true
}

// gram computes the Cholesky factor R of the weighted Gram matrix xᴴDx of
// the block x, with one reduction, and stores it in the upper triangle of r
// with zeros below. It reports false if the Gram matrix is not positive
// definite.
func (b *basis[K]) gram(x, r []K, ldr int) bool {
	return cholQRFactor(b.k, b.c, x, b.n, b.mu, b.sqrtD, b.dv, b.y, r, ldr, 0)
}

// cholQRFactor computes the Cholesky factor of the Gram matrix of the n×mu
// block x weighted by sqrtD², using w (n*mu) and g (at least mu*mu +
// mu(mu+1)/2) as scratch. When tol > 0 a diagonal entry of the factor below
// tol times the norm of its column is a failure.
func cholQRFactor[K dense.Scalar](k dense.Kernel[K], c comm.Communicator, x []K, n, mu int, sqrtD []float64, w, g []K, r []K, ldr int, tol float64) bool {
	if sqrtD != nil {
		dense.Diag(sqrtD, x, w, mu)
	} else {
		copy(w, x)
	}
	k.Herk(blas.Upper, blas.ConjTrans, mu, n, 1, w, n, 0, g, mu)
	packed := g[mu*mu : mu*mu+mu*(mu+1)/2]
	dense.PackUpper(mu, g, mu, packed)
	comm.Sum(c, packed)
	for j := 0; j < mu; j++ {
		copy(r[j*ldr:j*ldr+j+1], packed[j*(j+1)/2:j*(j+1)/2+j+1])
		for i := j + 1; i < mu; i++ {
			r[i+j*ldr] = 0
		}
	}
	// The packed Gram matrix is past g[mu*mu], the start of g is free for
	// the unfactored diagonal.
	for j := 0; j < mu; j++ {
		g[j] = r[j+j*ldr]
	}
	if !k.Potrf(blas.Upper, mu, r, ldr) {
		return false
	}
	if tol > 0 {
		for j := 0; j < mu; j++ {
			if k.Real(r[j+j*ldr]) <= tol*math.Sqrt(k.Real(g[j])) {
				return false
			}
		}
	}
	return true
}

// copyBlock copies the m×n block a into b.
func copyBlock[K dense.Scalar](m, n int, a []K, lda int, b []K, ldb int) {
	for j := 0; j < n; j++ {
		copy(b[j*ldb:j*ldb+m], a[j*lda:j*lda+m])
	}
}
