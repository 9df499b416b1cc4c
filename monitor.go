// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"context"
	"log/slog"
	"math"
)

// monitor tracks the convergence of the columns of one solve. Every rank
// runs the same checks on the same reduced values; only rank 0 logs.
type monitor struct {
	method    Method
	tol       float64
	cap       int
	verbosity int
	log       *slog.Logger
	rec       Recorder
	quiet     bool

	// converged holds -1 for a column still iterating, or the iteration at
	// which it converged.
	converged []int
	// history holds the largest residual of the unconverged columns, one
	// entry per check.
	history []float64
}

func newMonitor(m Method, s Settings, columns, rank int) *monitor {
	mon := &monitor{
		method:    m,
		tol:       s.Tolerance,
		cap:       s.MaxIterations,
		verbosity: s.Verbosity,
		log:       s.logger(),
		rec:       s.Recorder,
		quiet:     rank != 0,
		converged: make([]int, columns),
	}
	for i := range mon.converged {
		mon.converged[i] = -1
	}
	return mon
}

// start marks the columns with a zero initial residual as converged at
// iteration 0.
func (m *monitor) start(res0 []float64) {
	for nu, r := range res0 {
		if r == 0 && m.converged[nu] < 0 {
			m.converged[nu] = 0
		}
	}
}

// check compares the residuals of the unconverged columns against the
// tolerance, relative to res0 unless the tolerance is negative, and records
// iteration i for the columns that passed. It returns the number of
// converged columns.
func (m *monitor) check(i int, res0, res []float64) int {
	lo, hi := math.Inf(1), 0.0
	var n int
	for nu, r := range res {
		if m.converged[nu] >= 0 {
			n++
			continue
		}
		rel := r
		if m.tol >= 0 {
			rel = r / res0[nu]
		}
		lo, hi = math.Min(lo, rel), math.Max(hi, rel)
		if m.verbosity > 2 && !m.quiet {
			m.log.Info("krylov: residual", "method", m.method, "iteration", i, "column", nu, "residual", r, "relative", r/res0[nu])
		}
		if (m.tol < 0 && r <= -m.tol) || (m.tol >= 0 && r <= m.tol*res0[nu]) {
			m.converged[nu] = i
			n++
		}
	}
	if n < len(res) {
		m.history = append(m.history, hi)
	} else {
		m.history = append(m.history, 0)
	}
	if m.verbosity > 1 && !m.quiet && !math.IsInf(lo, 1) {
		m.log.Info("krylov: iteration", "method", m.method, "iteration", i, "min", lo, "max", hi, "unconverged", len(res)-n)
	}
	return n
}

// done reports whether every column has converged.
func (m *monitor) done() bool {
	return m.unconverged() == 0
}

func (m *monitor) unconverged() int {
	var n int
	for _, c := range m.converged {
		if c < 0 {
			n++
		}
	}
	return n
}

// summary reports the end of the solve after iterations iterations.
func (m *monitor) summary(iterations int) {
	u := m.unconverged()
	if !m.quiet {
		level := slog.LevelDebug
		if m.verbosity > 0 {
			level = slog.LevelInfo
		}
		msg := "krylov: converged"
		if u > 0 {
			msg = "krylov: no convergence"
		}
		m.log.Log(context.Background(), level, msg, "method", m.method, "iterations", iterations, "cap", m.cap, "unconverged", u)
		if m.rec != nil {
			m.rec.Solved(m.method, iterations, u)
		}
	}
}
