// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package comm provides the collective communication used by the distributed
// Krylov solvers. The solvers only ever need a global in-place sum.
package comm

import (
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Communicator is the handle of one rank in a group of cooperating ranks.
//
// AllReduceSum and AllReduceSumComplex are collective: they block until every
// rank of the group has called the same method with a slice of the same
// length, then overwrite x on every rank with the element-wise sum over all
// ranks. A call with a mismatched length panics on every rank of the group.
type Communicator interface {
	Rank() int
	Size() int
	AllReduceSum(x []float64)
	AllReduceSumComplex(x []complex128)
}

// ErrGroupSize is returned by NewGroup for a non-positive size.
var ErrGroupSize = errors.New("comm: group size must be positive")

// NewGroup returns size communicators connected to each other in process. Each
// of them must be used by its own goroutine.
//
// Contributions are summed in rank order, so the result of a reduction does
// not depend on the order in which the ranks arrive and a zero contribution
// leaves the sum bitwise unchanged.
func NewGroup(size int) ([]Communicator, error) {
	if size <= 0 {
		return nil, ErrGroupSize
	}
	g := &group{
		size:  size,
		real:  make([][]float64, size),
		cplx:  make([][]complex128, size),
		ranks: make([]Communicator, size),
	}
	g.cond = sync.NewCond(&g.mu)
	for i := range g.ranks {
		g.ranks[i] = &member{g: g, rank: i}
	}
	return g.ranks, nil
}

type group struct {
	size  int
	ranks []Communicator

	mu      sync.Mutex
	cond    *sync.Cond
	arrived int
	// gen counts completed reductions. A rank waits for gen to move past the
	// value it saw on arrival.
	gen    uint64
	broken bool
	real   [][]float64
	cplx   [][]complex128
}

type member struct {
	g    *group
	rank int
}

func (m *member) Rank() int { return m.rank }
func (m *member) Size() int { return m.g.size }

func (m *member) AllReduceSum(x []float64) { reduce(m, m.g.real, x) }
func (m *member) AllReduceSumComplex(x []complex128) { reduce(m, m.g.cplx, x) }

const mismatch = "comm: mismatched reduction length"

// reduce sums x over the group using slots as the per-rank staging area.
//
// A length mismatch breaks the group: every rank taking part in the reduction
// panics, and so does every later reduction on the group.
func reduce[K float64 | complex128](m *member, slots [][]K, x []K) {
	g := m.g
	if g.size == 1 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.broken {
		panic(mismatch)
	}
	gen := g.gen
	slots[m.rank] = x
	g.arrived++
	if g.arrived < g.size {
		for gen == g.gen {
			g.cond.Wait()
		}
		if g.broken {
			panic(mismatch)
		}
		return
	}
	n := len(x)
	for _, c := range slots {
		if len(c) != n {
			g.broken = true
			clear(slots)
			g.release()
			panic(mismatch)
		}
	}
	sum := make([]K, n)
	for _, c := range slots {
		for i, v := range c {
			sum[i] += v
		}
	}
	for r, c := range slots {
		copy(c, sum)
		slots[r] = nil
	}
	g.release()
}

// release completes a reduction and wakes the waiting ranks. g.mu is held.
func (g *group) release() {
	g.arrived = 0
	g.gen++
	g.cond.Broadcast()
}

// Self returns a communicator for a group of one rank. Reductions are no-ops.
func Self() Communicator {
	c, _ := NewGroup(1)
	return c[0]
}

// Sum reduces x in place over c, dispatching on the element type.
func Sum[K float64 | complex128](c Communicator, x []K) {
	switch v := any(x).(type) {
	case []float64:
		c.AllReduceSum(v)
	case []complex128:
		c.AllReduceSumComplex(v)
	}
}

// Run calls fn concurrently for every communicator of a new group of size
// ranks and returns the first error. fn must not return early on some ranks
// while others still reduce.
func Run(size int, fn func(c Communicator) error) error {
	ranks, err := NewGroup(size)
	if err != nil {
		return err
	}
	var g errgroup.Group
	for _, c := range ranks {
		c := c
		g.Go(func() error { return fn(c) })
	}
	return g.Wait()
}
