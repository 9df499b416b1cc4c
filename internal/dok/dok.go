// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dok provides a dictionary-of-keys sparse matrix used to assemble
// matrices entry by entry.
package dok

import (
	"sort"

	"github.com/vladimir-ch/krylov/internal/dense"
	"github.com/vladimir-ch/krylov/internal/triplet"
)

type DOK[K dense.Scalar] struct {
	Rows, Cols int

	data map[index]K
}

type index struct {
	row, col int
}

func New[K dense.Scalar](r, c int) *DOK[K] {
	return &DOK[K]{
		Rows: r,
		Cols: c,
		data: make(map[index]K),
	}
}

func (m *DOK[K]) check(i, j int) {
	if i < 0 || m.Rows <= i {
		panic("row index out of range")
	}
	if j < 0 || m.Cols <= j {
		panic("column index out of range")
	}
}

func (m *DOK[K]) At(i, j int) K {
	m.check(i, j)
	return m.data[index{i, j}]
}

func (m *DOK[K]) SetAt(i, j int, v K) {
	m.check(i, j)
	m.data[index{i, j}] = v
}

// AddAt adds v to the element at row i and column j.
func (m *DOK[K]) AddAt(i, j int, v K) {
	m.check(i, j)
	m.data[index{i, j}] += v
}

// NNZ returns the number of stored elements.
func (m *DOK[K]) NNZ() int {
	return len(m.data)
}

// Triplet returns the stored elements in coordinate form, ordered by row and
// then by column.
func (m *DOK[K]) Triplet() *triplet.Matrix[K] {
	keys := make([]index, 0, len(m.data))
	for ij := range m.data {
		keys = append(keys, ij)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].row != keys[b].row {
			return keys[a].row < keys[b].row
		}
		return keys[a].col < keys[b].col
	})
	t := triplet.New[K](m.Rows, m.Cols)
	for _, ij := range keys {
		t.Append(ij.row, ij.col, m.data[ij])
	}
	return t
}
