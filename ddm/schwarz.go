// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ddm provides a reference overlapping Schwarz operator for the
// krylov solvers.
//
// Every rank holds the global sparse matrix and owns a contiguous block of its
// rows, extended by a number of layers of neighbouring unknowns. Local vectors
// are restrictions of global vectors; they are combined through the
// subdomain communicator with the partition of unity 1/multiplicity.
package ddm

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vladimir-ch/krylov"
	"github.com/vladimir-ch/krylov/comm"
	"github.com/vladimir-ch/krylov/direct"
	"github.com/vladimir-ch/krylov/internal/dense"
	"github.com/vladimir-ch/krylov/internal/triplet"
	"github.com/vladimir-ch/krylov/options"
)

// ErrMethod is returned by NewSchwarz for a Schwarz method it does not
// implement.
var ErrMethod = errors.New("ddm: unsupported schwarz method")

// Config is the configuration of a Schwarz operator.
type Config struct {
	// Overlap is the number of layers added to the owned rows.
	Overlap int
	// Method is krylov.SchwarzNone, krylov.ASM or krylov.RAS.
	Method krylov.SchwarzMethod
	// Factorization of the subdomain matrices.
	Factorization direct.Kind
	// Prefix is the option prefix. Empty means options.DefaultPrefix.
	Prefix string
}

// Schwarz is the operator of one subdomain.
type Schwarz[K dense.Scalar] struct {
	k      dense.Kernel[K]
	a      *triplet.CSR[K]
	c      comm.Communicator
	idx    []int
	d      []float64
	method krylov.SchwarzMethod
	local  direct.Solver[K]
	prefix string

	global []K
}

var _ krylov.Operator[float64] = (*Schwarz[float64])(nil)

// Subdomain returns the sorted unknowns of rank out of size: the rows
// [rank*n/size, (rank+1)*n/size) extended by overlap layers of neighbours in
// the graph of a.
func Subdomain[K dense.Scalar](a *triplet.CSR[K], rank, size, overlap int) []int {
	n := a.Rows
	in := make(map[int]bool)
	front := make([]int, 0, n/size+1)
	for i := rank * n / size; i < (rank+1)*n/size; i++ {
		in[i] = true
		front = append(front, i)
	}
	for l := 0; l < overlap; l++ {
		var next []int
		for _, i := range front {
			a.Row(i, func(j int, _ K) {
				if !in[j] {
					in[j] = true
					next = append(next, j)
				}
			})
		}
		front = next
	}
	idx := make([]int, 0, len(in))
	for i := range in {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// NewSchwarz builds the operator of the subdomain of c.Rank(). It is a
// collective operation over c.
func NewSchwarz[K dense.Scalar](a *triplet.CSR[K], c comm.Communicator, cfg Config) (*Schwarz[K], error) {
	switch cfg.Method {
	case krylov.SchwarzNone, krylov.ASM, krylov.RAS:
	default:
		return nil, fmt.Errorf("%w: %v", ErrMethod, cfg.Method)
	}
	if a.Rows != a.Cols {
		return nil, direct.ErrShape
	}
	s := &Schwarz[K]{
		k:      dense.For[K](),
		a:      a,
		c:      c,
		idx:    Subdomain(a, c.Rank(), c.Size(), cfg.Overlap),
		method: cfg.Method,
		prefix: cfg.Prefix,
	}
	if s.prefix == "" {
		s.prefix = options.DefaultPrefix
	}

	mult := make([]float64, a.Rows)
	for _, g := range s.idx {
		mult[g] = 1
	}
	c.AllReduceSum(mult)
	s.d = make([]float64, len(s.idx))
	for l, g := range s.idx {
		s.d[l] = 1 / mult[g]
	}

	if cfg.Method != krylov.SchwarzNone {
		local, err := direct.Factorize(a.Sub(s.idx), cfg.Factorization)
		if err != nil {
			return nil, fmt.Errorf("ddm: subdomain %d: %w", c.Rank(), err)
		}
		s.local = local
	}
	return s, nil
}

// Indices returns the global unknowns of the subdomain.
func (s *Schwarz[K]) Indices() []int { return s.idx }

func (s *Schwarz[K]) Dof() int { return len(s.idx) }

func (s *Schwarz[K]) Scaling() []float64 { return s.d }

func (s *Schwarz[K]) Prefix() string { return s.prefix }

func (s *Schwarz[K]) Start(b, x []K, mu int, excluded bool) bool { return false }

func (s *Schwarz[K]) End(bool) {}

// Restrict stores in local the restriction of the mu global vectors.
func (s *Schwarz[K]) Restrict(global, local []K, mu int) {
	n, ng := len(s.idx), s.a.Rows
	for nu := 0; nu < mu; nu++ {
		for l, g := range s.idx {
			local[nu*n+l] = global[nu*ng+g]
		}
	}
}

// Gather assembles in global the mu global vectors whose restrictions are
// local, weighting the contributions with the partition of unity. It is a
// collective operation.
func (s *Schwarz[K]) Gather(local, global []K, mu int) {
	s.assemble(local, global, mu, true)
}

func (s *Schwarz[K]) assemble(local, global []K, mu int, weighted bool) {
	n, ng := len(s.idx), s.a.Rows
	dense.Zero(global[:ng*mu])
	for nu := 0; nu < mu; nu++ {
		for l, g := range s.idx {
			v := local[nu*n+l]
			if weighted {
				v *= s.k.FromReal(s.d[l])
			}
			global[nu*ng+g] += v
		}
	}
	comm.Sum(s.c, global[:ng*mu])
}

func (s *Schwarz[K]) scratch(mu int) []K {
	if need := s.a.Rows * mu; len(s.global) < need {
		s.global = make([]K, need)
	}
	return s.global
}

// GMV computes out = A in for the mu local vectors.
func (s *Schwarz[K]) GMV(in, out []K, mu int) {
	n, ng := len(s.idx), s.a.Rows
	g := s.scratch(mu)
	s.assemble(in, g, mu, true)
	for nu := 0; nu < mu; nu++ {
		gnu := g[nu*ng : (nu+1)*ng]
		for l, row := range s.idx {
			var v K
			s.a.Row(row, func(j int, aij K) { v += aij * gnu[j] })
			out[nu*n+l] = v
		}
	}
}

// Apply computes out = M⁻¹ in with the one-level Schwarz preconditioner.
func (s *Schwarz[K]) Apply(in, out []K, mu int, work []K, excluded bool) {
	if s.method == krylov.SchwarzNone {
		copy(out, in)
		return
	}
	dim := len(s.idx) * mu
	copy(work[:dim], in[:dim])
	s.local.SolveMulti(work, mu)
	g := s.scratch(mu)
	s.assemble(work, g, mu, s.method == krylov.RAS)
	s.Restrict(g, out, mu)
}

// Excluded is the operator of a rank that holds no unknowns. It takes part in
// the reductions of the solvers only.
type Excluded[K dense.Scalar] struct {
	// OptionPrefix is returned by Prefix.
	OptionPrefix string
}

var _ krylov.Operator[complex128] = Excluded[complex128]{}

func (Excluded[K]) Dof() int { return 0 }
func (Excluded[K]) Scaling() []float64 { return nil }
func (e Excluded[K]) Prefix() string { return e.OptionPrefix }
func (Excluded[K]) Start(_, _ []K, _ int, _ bool) bool { return false }
func (Excluded[K]) End(bool) {}
func (Excluded[K]) GMV(_, _ []K, _ int) {}
func (Excluded[K]) Apply(_, _ []K, _ int, _ []K, _ bool) {}
