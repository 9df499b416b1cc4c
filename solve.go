// Copyright ©2016 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"errors"

	"github.com/vladimir-ch/krylov/comm"
	"github.com/vladimir-ch/krylov/internal/dense"
)

// ErrProjected is returned by SolverFor and Solve for MethodPCG, which needs a
// ProjectedOperator. Use PCG directly.
var ErrProjected = errors.New("krylov: method needs a projected operator")

// Solver is a Krylov method for an Operator.
type Solver[K dense.Scalar] func(op Operator[K], b, x []K, mu int, c comm.Communicator, s Settings) (int, error)

// Select returns the method that actually runs for s. The CG methods assume a
// symmetric preconditioner: a non-symmetric Schwarz method or a deflated
// coarse correction selects GMRES instead. BCG with the flexible variant
// selects CG.
func Select(s Settings) Method {
	switch s.Method {
	case MethodCG, MethodBCG:
		if !s.SchwarzMethod.Symmetric() || s.CoarseCorrection == Deflated {
			return MethodGMRES
		}
		if s.Method == MethodBCG && s.Variant == Flexible {
			return MethodCG
		}
	}
	return s.Method
}

// SolverFor returns the solver of method m.
func SolverFor[K dense.Scalar](m Method) (Solver[K], error) {
	switch m {
	case MethodGMRES:
		return GMRES[K], nil
	case MethodBGMRES:
		return BGMRES[K], nil
	case MethodCG:
		return CG[K], nil
	case MethodBCG:
		return BCG[K], nil
	case MethodPCG:
		return nil, ErrProjected
	}
	return nil, ErrUnknownValue
}

// Solve solves A X = B with the method selected for s by Select. It returns
// the number of iterations of the method that ran last.
func Solve[K dense.Scalar](op Operator[K], b, x []K, mu int, c comm.Communicator, s Settings) (int, error) {
	m := Select(s)
	solve, err := SolverFor[K](m)
	if err != nil {
		return 0, err
	}
	if m != s.Method && c.Rank() == 0 {
		s.logger().Debug("krylov: method redirected", "from", s.Method, "to", m, "schwarz", s.SchwarzMethod, "coarse", s.CoarseCorrection, "variant", s.Variant)
		if s.Recorder != nil {
			s.Recorder.Redirected(s.Method, m)
		}
	}
	s.Method = m
	return solve(op, b, x, mu, c, s)
}
