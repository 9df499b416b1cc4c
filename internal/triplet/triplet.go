// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package triplet provides sparse matrices in coordinate form and their
// compressed sparse row form.
package triplet

import (
	"sort"

	"github.com/vladimir-ch/krylov/internal/dense"
)

type triplet[K dense.Scalar] struct {
	i, j int
	v    K
}

// Matrix is a sparse matrix in coordinate form. Duplicate entries are summed.
type Matrix[K dense.Scalar] struct {
	r, c int
	data []triplet[K]
}

func New[K dense.Scalar](r, c int) *Matrix[K] {
	return &Matrix[K]{
		r: r,
		c: c,
	}
}

func (m *Matrix[K]) Dims() (r, c int) {
	return m.r, m.c
}

// Len returns the number of stored entries, duplicates included.
func (m *Matrix[K]) Len() int {
	return len(m.data)
}

func (m *Matrix[K]) Append(i, j int, v K) {
	if i < 0 || m.r <= i {
		panic("row index out of range")
	}
	if j < 0 || m.c <= j {
		panic("column index out of range")
	}
	m.data = append(m.data, triplet[K]{i, j, v})
}

func (m *Matrix[K]) MulVec(dst, x []K) {
	if m.c != len(x) {
		panic("dimension mismatch")
	}
	if m.r != len(dst) {
		panic("dimension mismatch")
	}
	for i := range dst {
		dst[i] = 0
	}
	for _, aij := range m.data {
		dst[aij.i] += aij.v * x[aij.j]
	}
}

// CSR returns m in compressed sparse row form with sorted column indices and
// duplicates summed.
func (m *Matrix[K]) CSR() *CSR[K] {
	data := make([]triplet[K], len(m.data))
	copy(data, m.data)
	sort.SliceStable(data, func(a, b int) bool {
		if data[a].i != data[b].i {
			return data[a].i < data[b].i
		}
		return data[a].j < data[b].j
	})
	a := &CSR[K]{
		Rows:   m.r,
		Cols:   m.c,
		RowPtr: make([]int, m.r+1),
	}
	for k, t := range data {
		if k > 0 && t.i == data[k-1].i && t.j == data[k-1].j {
			a.Val[len(a.Val)-1] += t.v
			continue
		}
		a.ColIdx = append(a.ColIdx, t.j)
		a.Val = append(a.Val, t.v)
		a.RowPtr[t.i+1]++
	}
	for i := 0; i < m.r; i++ {
		a.RowPtr[i+1] += a.RowPtr[i]
	}
	return a
}

// CSR is a sparse matrix in compressed sparse row form. The column indices of
// row i are ColIdx[RowPtr[i]:RowPtr[i+1]], in increasing order.
type CSR[K dense.Scalar] struct {
	Rows, Cols int
	RowPtr     []int
	ColIdx     []int
	Val        []K
}

func (a *CSR[K]) Dims() (r, c int) {
	return a.Rows, a.Cols
}

// NNZ returns the number of stored entries.
func (a *CSR[K]) NNZ() int {
	return len(a.Val)
}

// At returns the element at row i and column j.
func (a *CSR[K]) At(i, j int) K {
	if i < 0 || a.Rows <= i {
		panic("row index out of range")
	}
	if j < 0 || a.Cols <= j {
		panic("column index out of range")
	}
	cols := a.ColIdx[a.RowPtr[i]:a.RowPtr[i+1]]
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return a.Val[a.RowPtr[i]+k]
	}
	return 0
}

func (a *CSR[K]) MulVec(dst, x []K) {
	if a.Cols != len(x) {
		panic("dimension mismatch")
	}
	if a.Rows != len(dst) {
		panic("dimension mismatch")
	}
	for i := range dst {
		var s K
		for k := a.RowPtr[i]; k < a.RowPtr[i+1]; k++ {
			s += a.Val[k] * x[a.ColIdx[k]]
		}
		dst[i] = s
	}
}

// Row calls fn for every stored entry of row i.
func (a *CSR[K]) Row(i int, fn func(j int, v K)) {
	for k := a.RowPtr[i]; k < a.RowPtr[i+1]; k++ {
		fn(a.ColIdx[k], a.Val[k])
	}
}

// Sub returns the principal submatrix of a on the sorted index set idx.
func (a *CSR[K]) Sub(idx []int) *CSR[K] {
	local := make(map[int]int, len(idx))
	for l, g := range idx {
		local[g] = l
	}
	s := &CSR[K]{
		Rows:   len(idx),
		Cols:   len(idx),
		RowPtr: make([]int, len(idx)+1),
	}
	for l, g := range idx {
		for k := a.RowPtr[g]; k < a.RowPtr[g+1]; k++ {
			if j, ok := local[a.ColIdx[k]]; ok {
				s.ColIdx = append(s.ColIdx, j)
				s.Val = append(s.Val, a.Val[k])
			}
		}
		s.RowPtr[l+1] = len(s.Val)
	}
	return s
}

// Dense returns a as a column-major dense matrix with leading dimension
// Rows.
func (a *CSR[K]) Dense() []K {
	d := make([]K, a.Rows*a.Cols)
	for i := 0; i < a.Rows; i++ {
		for k := a.RowPtr[i]; k < a.RowPtr[i+1]; k++ {
			d[i+a.ColIdx[k]*a.Rows] = a.Val[k]
		}
	}
	return d
}
