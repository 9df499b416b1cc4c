// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"github.com/vladimir-ch/krylov/internal/dense"
)

// arena hands out the scratch vectors of one solver call as views into a
// single allocation sized at entry. Real scalars share the allocation with
// the real-valued scratch, complex ones need a second buffer.
type arena[K dense.Scalar] struct {
	buf  []K
	off  int
	real []float64
	roff int
}

// newArena allocates room for scalars values of type K and reals values of
// type float64.
func newArena[K dense.Scalar](k dense.Kernel[K], scalars, reals int) *arena[K] {
	a := &arena[K]{}
	if k.Buffers() == 1 {
		buf := make([]K, scalars+reals)
		a.buf = buf[:scalars]
		a.real = any(buf[scalars:]).([]float64)
		return a
	}
	a.buf = make([]K, scalars)
	a.real = make([]float64, reals)
	return a
}

// take returns the next n scalars. The view cannot grow into its neighbour.
func (a *arena[K]) take(n int) []K {
	if a.off+n > len(a.buf) {
		panic("krylov: arena exhausted")
	}
	v := a.buf[a.off : a.off+n : a.off+n]
	a.off += n
	return v
}

// takeN returns count consecutive views of n scalars each.
func (a *arena[K]) takeN(count, n int) [][]K {
	vs := make([][]K, count)
	for i := range vs {
		vs[i] = a.take(n)
	}
	return vs
}

// takeReal returns the next n reals.
func (a *arena[K]) takeReal(n int) []float64 {
	if a.roff+n > len(a.real) {
		panic("krylov: arena exhausted")
	}
	v := a.real[a.roff : a.roff+n : a.roff+n]
	a.roff += n
	return v
}

// left returns the number of scalars and reals not handed out yet.
func (a *arena[K]) left() (scalars, reals int) {
	return len(a.buf) - a.off, len(a.real) - a.roff
}
