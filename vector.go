// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"github.com/vladimir-ch/krylov/internal/dense"
)

// Vector is a vector of a ProjectedOperator. Data always covers the whole
// allocation. For the Shared layout Parts holds the per-neighbour views into
// Data.
type Vector[K dense.Scalar] struct {
	Layout Layout
	Data   []K
	Parts  [][]K
}

// NewContiguous returns a zero Contiguous vector of length n.
func NewContiguous[K dense.Scalar](n int) Vector[K] {
	return Vector[K]{Layout: Contiguous, Data: make([]K, n)}
}

// NewShared returns a zero Shared vector with one part per entry of sizes,
// all parts viewing one allocation.
func NewShared[K dense.Scalar](sizes []int) Vector[K] {
	var n int
	for _, s := range sizes {
		n += s
	}
	v := Vector[K]{Layout: Shared, Data: make([]K, n), Parts: make([][]K, len(sizes))}
	var off int
	for i, s := range sizes {
		v.Parts[i] = v.Data[off : off+s : off+s]
		off += s
	}
	return v
}

// Len returns the number of local entries of v.
func (v Vector[K]) Len() int { return len(v.Data) }

// dot returns the local contribution of v to the global inner product vᴴw.
func (v Vector[K]) dot(k dense.Kernel[K], w Vector[K]) K {
	d := k.Dot(v.Data, w.Data)
	if v.Layout == Shared {
		return d / 2
	}
	return d
}

// axpy computes v += alpha x.
func (v Vector[K]) axpy(k dense.Kernel[K], alpha K, x Vector[K]) {
	k.Axpy(alpha, x.Data, v.Data)
}

// diag scales v in place by the partition of unity d. It is a no-op for the
// Shared layout.
func (v Vector[K]) diag(d []float64) {
	if v.Layout == Shared {
		return
	}
	dense.Diag(d, v.Data, nil, 1)
}

// diagTo stores the scaled v into out, or copies it for the Shared layout.
func (v Vector[K]) diagTo(d []float64, out Vector[K]) {
	if v.Layout == Shared {
		copy(out.Data, v.Data)
		return
	}
	dense.Diag(d, v.Data, out.Data, 1)
}
