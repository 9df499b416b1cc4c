// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exports the outcome of krylov solves as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladimir-ch/krylov"
)

const namespace = "krylov"

// Collector is a krylov.Recorder backed by Prometheus metrics.
type Collector struct {
	solves      *prometheus.CounterVec
	iterations  *prometheus.HistogramVec
	unconverged *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	redirects   *prometheus.CounterVec
}

var _ krylov.Recorder = (*Collector)(nil)

// NewCollector creates the metrics and registers them with reg. A nil reg
// means prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solves_total",
			Help:      "Number of completed solves by method and outcome.",
		}, []string{"method", "converged"}),
		iterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iterations",
			Help:      "Iterations per solve.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"method"}),
		unconverged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unconverged_columns_total",
			Help:      "Right-hand sides that did not reach the tolerance.",
		}, []string{"method"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Block methods restarted with their scalar counterpart after a breakdown.",
		}, []string{"from", "to"}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Methods replaced at selection time.",
		}, []string{"from", "to"}),
	}
	for _, m := range []prometheus.Collector{c.solves, c.iterations, c.unconverged, c.fallbacks, c.redirects} {
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return c, nil
}

func (c *Collector) Solved(m krylov.Method, iterations, unconverged int) {
	converged := "true"
	if unconverged > 0 {
		converged = "false"
	}
	c.solves.WithLabelValues(m.String(), converged).Inc()
	c.iterations.WithLabelValues(m.String()).Observe(float64(iterations))
	c.unconverged.WithLabelValues(m.String()).Add(float64(unconverged))
}

func (c *Collector) FellBack(from, to krylov.Method) {
	c.fallbacks.WithLabelValues(from.String(), to.String()).Inc()
}

func (c *Collector) Redirected(from, to krylov.Method) {
	c.redirects.WithLabelValues(from.String(), to.String()).Inc()
}
