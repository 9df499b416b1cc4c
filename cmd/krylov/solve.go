// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vladimir-ch/krylov"
	"github.com/vladimir-ch/krylov/comm"
	"github.com/vladimir-ch/krylov/ddm"
	"github.com/vladimir-ch/krylov/direct"
	"github.com/vladimir-ch/krylov/internal/dense"
	"github.com/vladimir-ch/krylov/metrics"
	"github.com/vladimir-ch/krylov/options"
)

// problem is the model problem of one solve command.
type problem struct {
	nx, ny   int
	rhs      int
	ranks    int
	overlap  int
	excluded bool
	complex  bool
	factor   string
	prefix   string
}

// result is what rank 0 reports after a solve.
type result struct {
	method     krylov.Method
	iterations int
	// residual holds the relative residual |b - A x| / |b| of every column.
	residual []float64
}

func newSolveCmd() *cobra.Command {
	var (
		p         problem
		optsFile  string
		logLevel  string
		noMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "solve [key=value ...]",
		Short: "Solve the 2D Laplacian with a one-level Schwarz preconditioner",
		Long: `Solve assembles the 5-point Laplacian on an nx×ny grid, splits its rows
over the given number of ranks with the requested overlap and solves for
the requested number of right-hand sides with the configured Krylov method.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &options.Options{}
			if optsFile != "" {
				f, err := os.Open(optsFile)
				if err != nil {
					return err
				}
				err = opts.LoadYAML(f)
				f.Close()
				if err != nil {
					return err
				}
			}
			if err := opts.Parse(args); err != nil {
				return err
			}

			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			reg := prometheus.NewRegistry()
			collector, err := metrics.NewCollector(reg)
			if err != nil {
				return err
			}
			s, err := settings(opts, p.prefix)
			if err != nil {
				return err
			}
			s.Logger = logger
			s.Recorder = collector
			show, err := opts.Bool(p.prefix+"print_options", false)
			if err != nil {
				return err
			}
			if show {
				for _, key := range opts.Keys() {
					fmt.Fprintf(cmd.OutOrStdout(), "option %s=%s\n", key, opts.String(key, ""))
				}
			}

			var res result
			if p.complex {
				res, err = solve[complex128](p, s, logger)
			} else {
				res, err = solve[float64](p, s, logger)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "method: %v\niterations: %d\n", res.method, res.iterations)
			for nu, r := range res.residual {
				fmt.Fprintf(out, "column %d: relative residual %.3e\n", nu, r)
			}
			if noMetrics {
				return nil
			}
			return writeMetrics(out, reg)
		},
	}
	f := cmd.Flags()
	f.IntVar(&p.nx, "nx", 32, "grid points in x")
	f.IntVar(&p.ny, "ny", 32, "grid points in y")
	f.IntVar(&p.rhs, "rhs", 1, "number of right-hand sides")
	f.IntVar(&p.ranks, "ranks", 4, "number of subdomains")
	f.IntVar(&p.overlap, "overlap", 1, "overlap of the subdomains in grid layers")
	f.BoolVar(&p.excluded, "excluded", false, "add a rank without unknowns to the solver reductions")
	f.BoolVar(&p.complex, "complex", false, "solve in complex arithmetic")
	f.StringVar(&p.factor, "factorization", "auto", "subdomain factorization: auto, cholesky or lu")
	f.StringVar(&p.prefix, "prefix", options.DefaultPrefix, "option prefix")
	f.StringVar(&optsFile, "options", "", "YAML file with solver options")
	f.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	f.BoolVar(&noMetrics, "no-metrics", false, "do not print the collected metrics")
	return cmd
}

// settings reads the solver settings. The Schwarz method defaults to RAS when
// the options do not set it.
func settings(opts *options.Options, prefix string) (krylov.Settings, error) {
	if !opts.Has(prefix + "schwarz_method") {
		opts.Set(prefix+"schwarz_method", krylov.RAS.String())
	}
	return krylov.NewSettings(opts, prefix)
}

func factorization(name string, m krylov.SchwarzMethod) (direct.Kind, error) {
	switch strings.ToLower(name) {
	case "auto":
		if m == krylov.ASM {
			return direct.Cholesky, nil
		}
		return direct.LU, nil
	case "cholesky":
		return direct.Cholesky, nil
	case "lu":
		return direct.LU, nil
	}
	return 0, fmt.Errorf("unknown factorization %q", name)
}

func solve[K dense.Scalar](p problem, s krylov.Settings, logger *slog.Logger) (result, error) {
	if p.nx < 1 || p.ny < 1 || p.rhs < 1 || p.ranks < 1 {
		return result{}, errors.New("grid size, right-hand sides and ranks must be positive")
	}
	kind, err := factorization(p.factor, s.SchwarzMethod)
	if err != nil {
		return result{}, err
	}
	k := dense.For[K]()
	a := ddm.Laplacian2D[K](p.nx, p.ny)
	n, mu := a.Rows, p.rhs
	b := make([]K, n*mu)
	for nu := 0; nu < mu; nu++ {
		for i := 0; i < n; i++ {
			b[nu*n+i] = k.Complex(float64(1+(i+nu)%(nu+2)), float64(nu))
		}
	}
	x := make([]K, n*mu)
	res := result{method: krylov.Select(s)}

	sub, err := comm.NewGroup(p.ranks)
	if err != nil {
		return result{}, err
	}
	ranks := p.ranks
	if p.excluded {
		ranks++
	}
	cfg := ddm.Config{Overlap: p.overlap, Method: s.SchwarzMethod, Factorization: kind, Prefix: p.prefix}
	logger.Info("solving", "unknowns", n, "rhs", mu, "ranks", p.ranks, "excluded", p.excluded, "schwarz", cfg.Method, "factorization", kind)
	err = comm.Run(ranks, func(c comm.Communicator) error {
		if c.Rank() >= p.ranks {
			excl := s
			excl.Excluded = true
			_, err := krylov.Solve[K](ddm.Excluded[K]{OptionPrefix: p.prefix}, nil, nil, mu, c, excl)
			return err
		}
		op, err := ddm.NewSchwarz(a, sub[c.Rank()], cfg)
		if err != nil {
			return err
		}
		lb := make([]K, op.Dof()*mu)
		op.Restrict(b, lb, mu)
		lx := make([]K, op.Dof()*mu)
		it, err := krylov.Solve[K](op, lb, lx, mu, c, s)
		if err != nil {
			return fmt.Errorf("rank %d: %w", c.Rank(), err)
		}
		gx := make([]K, n*mu)
		op.Gather(lx, gx, mu)
		if c.Rank() == 0 {
			res.iterations = it
			copy(x, gx)
		}
		return nil
	})
	if err != nil {
		return result{}, err
	}

	ax := make([]K, n)
	res.residual = make([]float64, mu)
	for nu := 0; nu < mu; nu++ {
		bnu := b[nu*n : (nu+1)*n]
		a.MulVec(ax, x[nu*n:(nu+1)*n])
		k.Axpby(1, bnu, -1, ax)
		res.residual[nu] = k.Nrm2(ax) / k.Nrm2(bnu)
	}
	return res, nil
}

// writeMetrics prints the non-zero samples gathered from reg, one per line.
func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				v = h.GetSampleSum() / math.Max(1, float64(h.GetSampleCount()))
			}
			if v == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), v))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
