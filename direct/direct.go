// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package direct provides direct solvers for the small sparse systems of the
// subdomains of a domain decomposition.
//
// A matrix is factorized once by Factorize and the returned Solver is then
// used for any number of solves. Real matrices are factorized by gonum/mat,
// complex ones by dense routines of this package.
package direct

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/mat"

	"github.com/vladimir-ch/krylov/internal/dense"
	"github.com/vladimir-ch/krylov/internal/triplet"
)

// Kind is a factorization.
type Kind int

const (
	// Cholesky is the factorization of a Hermitian positive definite matrix.
	Cholesky Kind = iota
	// LU is the factorization with partial pivoting of a general matrix.
	LU
)

func (k Kind) String() string {
	switch k {
	case Cholesky:
		return "cholesky"
	case LU:
		return "lu"
	}
	return "unknown"
}

var (
	ErrNotPositiveDefinite = errors.New("direct: matrix not positive definite")
	ErrSingular            = errors.New("direct: matrix singular")
	ErrShape               = errors.New("direct: matrix not square")
	ErrKind                = errors.New("direct: unknown factorization")
)

// Solver solves linear systems with a factorized matrix. Blocks of right-hand
// sides are stored column after column.
type Solver[K dense.Scalar] interface {
	// Dim returns the order of the matrix.
	Dim() int
	// Solve overwrites b with the solution of A x = b.
	Solve(b []K)
	// SolveMulti overwrites the nrhs columns of b with the solutions.
	SolveMulti(b []K, nrhs int)
	// SolveTo stores in x the solutions for the nrhs columns of b.
	SolveTo(x, b []K, nrhs int)
}

// Factorize factorizes the square matrix a.
func Factorize[K dense.Scalar](a *triplet.CSR[K], kind Kind) (Solver[K], error) {
	if a.Rows != a.Cols {
		return nil, ErrShape
	}
	if kind != Cholesky && kind != LU {
		return nil, ErrKind
	}
	switch a := any(a).(type) {
	case *triplet.CSR[float64]:
		s, err := factorizeReal(a, kind)
		if err != nil {
			return nil, err
		}
		return any(s).(Solver[K]), nil
	case *triplet.CSR[complex128]:
		s, err := factorizeComplex(a, kind)
		if err != nil {
			return nil, err
		}
		return any(s).(Solver[K]), nil
	}
	panic("direct: unsupported scalar type")
}

// columns calls solve for each of the nrhs columns of x and b.
func columns[K dense.Scalar](n, nrhs int, x, b []K, solve func(x, b []K)) {
	if len(b) < n*nrhs || len(x) < n*nrhs {
		panic("direct: short vector")
	}
	for j := 0; j < nrhs; j++ {
		solve(x[j*n:(j+1)*n], b[j*n:(j+1)*n])
	}
}

type realSolver struct {
	n     int
	chol  *mat.Cholesky
	lu    *mat.LU
	work  []float64
	workV *mat.VecDense
}

func factorizeReal(a *triplet.CSR[float64], kind Kind) (*realSolver, error) {
	n := a.Rows
	s := &realSolver{n: n, work: make([]float64, n)}
	if n > 0 {
		s.workV = mat.NewVecDense(n, s.work)
	}
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		a.Row(i, func(j int, v float64) { data[i*n+j] = v })
	}
	if n == 0 {
		return s, nil
	}
	switch kind {
	case Cholesky:
		s.chol = &mat.Cholesky{}
		if !s.chol.Factorize(mat.NewSymDense(n, data)) {
			return nil, ErrNotPositiveDefinite
		}
	case LU:
		s.lu = &mat.LU{}
		s.lu.Factorize(mat.NewDense(n, n, data))
		if s.lu.Det() == 0 || math.IsInf(s.lu.Cond(), 1) {
			return nil, ErrSingular
		}
	}
	return s, nil
}

func (s *realSolver) Dim() int { return s.n }

func (s *realSolver) Solve(b []float64) { s.SolveTo(b, b, 1) }

func (s *realSolver) SolveMulti(b []float64, nrhs int) { s.SolveTo(b, b, nrhs) }

func (s *realSolver) SolveTo(x, b []float64, nrhs int) {
	if s.n == 0 {
		return
	}
	columns(s.n, nrhs, x, b, func(x, b []float64) {
		copy(s.work, b)
		dst := mat.NewVecDense(s.n, x)
		var err error
		if s.chol != nil {
			err = s.chol.SolveVecTo(dst, s.workV)
		} else {
			err = s.lu.SolveVecTo(dst, false, s.workV)
		}
		// An ill-conditioned matrix still yields a solution.
		var cond mat.Condition
		if err != nil && !errors.As(err, &cond) {
			panic(err)
		}
	})
}

type complexSolver struct {
	n    int
	kind Kind
	a    []complex128
	piv  []int
}

func factorizeComplex(m *triplet.CSR[complex128], kind Kind) (*complexSolver, error) {
	n := m.Rows
	s := &complexSolver{n: n, kind: kind, a: m.Dense()}
	switch kind {
	case Cholesky:
		if !dense.For[complex128]().Potrf(blas.Upper, n, s.a, max(1, n)) {
			return nil, ErrNotPositiveDefinite
		}
	case LU:
		s.piv = make([]int, n)
		if !getrf(n, s.a, s.piv) {
			return nil, ErrSingular
		}
	}
	return s, nil
}

func (s *complexSolver) Dim() int { return s.n }

func (s *complexSolver) Solve(b []complex128) { s.SolveTo(b, b, 1) }

func (s *complexSolver) SolveMulti(b []complex128, nrhs int) { s.SolveTo(b, b, nrhs) }

func (s *complexSolver) SolveTo(x, b []complex128, nrhs int) {
	if s.n == 0 {
		return
	}
	columns(s.n, nrhs, x, b, func(x, b []complex128) {
		copy(x, b)
		if s.kind == Cholesky {
			dense.Potrs(dense.For[complex128](), s.n, 1, s.a, s.n, x, s.n)
			return
		}
		getrs(s.n, s.a, s.piv, x)
	})
}

// getrf computes the LU factorization with partial pivoting of the
// column-major n×n matrix a in place. It reports false if a is singular.
func getrf(n int, a []complex128, piv []int) bool {
	for j := 0; j < n; j++ {
		p, big := j, cmplx.Abs(a[j+j*n])
		for i := j + 1; i < n; i++ {
			if v := cmplx.Abs(a[i+j*n]); v > big {
				p, big = i, v
			}
		}
		if big == 0 {
			return false
		}
		piv[j] = p
		if p != j {
			for c := 0; c < n; c++ {
				a[j+c*n], a[p+c*n] = a[p+c*n], a[j+c*n]
			}
		}
		inv := 1 / a[j+j*n]
		for i := j + 1; i < n; i++ {
			a[i+j*n] *= inv
		}
		for c := j + 1; c < n; c++ {
			f := a[j+c*n]
			if f == 0 {
				continue
			}
			for i := j + 1; i < n; i++ {
				a[i+c*n] -= a[i+j*n] * f
			}
		}
	}
	return true
}

// getrs solves A x = b in place with the factorization of getrf.
func getrs(n int, a []complex128, piv []int, b []complex128) {
	for j, p := range piv {
		b[j], b[p] = b[p], b[j]
	}
	for j := 0; j < n; j++ {
		for i := j + 1; i < n; i++ {
			b[i] -= a[i+j*n] * b[j]
		}
	}
	for j := n - 1; j >= 0; j-- {
		b[j] /= a[j+j*n]
		for i := 0; i < j; i++ {
			b[i] -= a[i+j*n] * b[j]
		}
	}
}
