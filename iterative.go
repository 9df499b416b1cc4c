// Copyright ©2016 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package krylov provides distributed Krylov subspace methods for solving
// linear systems
//
//	A X = B
//
// arising from domain decomposition, where B holds mu right-hand sides.
//
// Every rank of a process group calls the same solver with its local part of
// B and X. The solvers never see a matrix: the operator supplies the
// distributed product with A and the preconditioner, and global inner products
// are formed by summing local contributions with a single collective
// reduction per batch. Vectors are stored in the overlapping form of the
// decomposition, so local inner products are weighted by the partition of
// unity returned by the operator.
//
// Blocks of mu vectors of local length n are stored column after column in one
// slice of length n*mu.
package krylov

import (
	"errors"

	"github.com/vladimir-ch/krylov/comm"
	"github.com/vladimir-ch/krylov/internal/dense"
)

// Operator is the distributed operator of the linear system together with
// its preconditioner, as seen from one rank.
type Operator[K dense.Scalar] interface {
	// Dof returns the number of local unknowns.
	Dof() int
	// Scaling returns the partition of unity used to weight local inner
	// products. A nil slice means no weighting.
	Scaling() []float64
	// Prefix returns the option prefix of the operator.
	Prefix() string

	// Start is called before the first iteration with the right-hand sides
	// and the initial guess. It returns whether End must release resources.
	Start(b, x []K, mu int, excluded bool) bool
	// End is called once the solver is done, with the value returned by
	// Start.
	End(free bool)

	// GMV computes out = A in for mu vectors. It is not called on excluded
	// ranks.
	GMV(in, out []K, mu int)
	// Apply computes out = M⁻¹ in for mu vectors. work has the length of in
	// and may be used as scratch. Apply is called on every rank and must take
	// part in the collective operations of the preconditioner even when
	// excluded is true.
	Apply(in, out []K, mu int, work []K, excluded bool)
}

// Layout is the storage layout of the vectors of a ProjectedOperator.
type Layout int

const (
	// Contiguous vectors are one slice over the local unknowns, weighted by
	// the operator scaling in inner products.
	Contiguous Layout = iota
	// Shared vectors are one slice per neighbour, viewed over one
	// allocation. Each entry is held by exactly two ranks, so local inner
	// products are halved and no scaling is applied.
	Shared
)

// Projection selects the direction of ProjectedOperator.Project.
type Projection byte

const (
	ProjectN Projection = 'N' // P
	ProjectT Projection = 'T' // Pᵀ
)

// ProjectedOperator is the operator of a constrained (FETI-type) system
// solved by PCG.
type ProjectedOperator[K dense.Scalar] interface {
	Layout() Layout
	// Dof returns the length of Contiguous vectors.
	Dof() int
	// Mult returns the length of Shared vectors.
	Mult() int
	// Eliminated returns the offset in x of the unknowns updated by PCG
	// for the Contiguous layout.
	Eliminated() int
	Scaling() []float64
	Prefix() string

	// NewVector returns a zero vector in the operator layout.
	NewVector() Vector[K]

	// Start initializes the Lagrange multipliers lambda (Shared layout
	// only) and the initial projected residual r. For the Contiguous layout
	// x is the part of the solution past Eliminated.
	Start(f, x []K, lambda, r Vector[K], excluded bool) bool
	End(free bool)

	// Precond computes z = M r.
	Precond(r, z Vector[K])
	// Project computes out = P in or out = Pᵀ in. For ProjectT out is in.
	Project(dir Projection, in, out Vector[K], excluded bool)
	// Apply computes z = F p.
	Apply(p, z Vector[K])
	// ComputeDot returns the global inner product of a and b over c.
	ComputeDot(a, b Vector[K], c comm.Communicator, excluded bool) float64
	// ComputeSolution recovers the solution x from f (Contiguous) or from
	// the multipliers (Shared).
	ComputeSolution(src, x []K, excluded bool)
}

var (
	// ErrInvalidBlock is returned for a non-positive number of right-hand
	// sides or one not divisible by the enlargement factor.
	ErrInvalidBlock = errors.New("krylov: invalid number of right-hand sides")
	// ErrDimension is returned when b or x is shorter than Dof()*mu.
	ErrDimension = errors.New("krylov: mismatched vector length")
)

// checkArgs validates the arguments shared by the block solvers. It must be
// called before any collective operation.
func checkArgs[K dense.Scalar](op Operator[K], b, x []K, mu int, excluded bool) (n int, err error) {
	if mu < 1 {
		return 0, ErrInvalidBlock
	}
	if excluded {
		return 0, nil
	}
	n = op.Dof()
	if len(b) < n*mu || len(x) < n*mu {
		return 0, ErrDimension
	}
	return n, nil
}
