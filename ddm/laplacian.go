// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ddm

import (
	"github.com/vladimir-ch/krylov/internal/dense"
	"github.com/vladimir-ch/krylov/internal/dok"
	"github.com/vladimir-ch/krylov/internal/triplet"
)

// Laplacian1D returns the n×n finite difference Laplacian
//
//	tridiag(-1, 2, -1)
func Laplacian1D[K dense.Scalar](n int) *triplet.CSR[K] {
	return ConvectionDiffusion1D[K](n, 0)
}

// ConvectionDiffusion1D returns the n×n matrix
//
//	tridiag(-1-c, 2, -1+c)
//
// of a centred convection-diffusion operator. It is non-symmetric for c ≠ 0
// and an M-matrix for |c| < 1.
func ConvectionDiffusion1D[K dense.Scalar](n int, c float64) *triplet.CSR[K] {
	k := dense.For[K]()
	m := dok.New[K](n, n)
	for i := 0; i < n; i++ {
		m.SetAt(i, i, 2)
		if i > 0 {
			m.AddAt(i, i-1, k.FromReal(-1-c))
		}
		if i < n-1 {
			m.AddAt(i, i+1, k.FromReal(-1+c))
		}
	}
	return m.Triplet().CSR()
}

// Laplacian2D returns the five-point Laplacian on an nx×ny grid with
// Dirichlet boundary conditions, the unknown of node (i, j) being i+j*nx.
func Laplacian2D[K dense.Scalar](nx, ny int) *triplet.CSR[K] {
	n := nx * ny
	m := dok.New[K](n, n)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			row := i + j*nx
			m.SetAt(row, row, 4)
			if i > 0 {
				m.AddAt(row, row-1, -1)
			}
			if i < nx-1 {
				m.AddAt(row, row+1, -1)
			}
			if j > 0 {
				m.AddAt(row, row-nx, -1)
			}
			if j < ny-1 {
				m.AddAt(row, row+nx, -1)
			}
		}
	}
	return m.Triplet().CSR()
}
