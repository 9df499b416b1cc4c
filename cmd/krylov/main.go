// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command krylov solves model problems with the distributed Krylov solvers,
// running every rank of the decomposition in its own goroutine.
//
// Usage:
//
//	krylov solve [flags] [key=value ...]
//
// Trailing key=value arguments are solver options such as
// hpddm_krylov_method=bgmres or hpddm_tol=1e-10. They override the options
// read from the YAML file given by --options. The boolean option
// hpddm_print_options lists the effective options before solving.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "krylov",
	Short:         "Distributed Krylov solvers for domain decomposition",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(newSolveCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "krylov:", err)
		os.Exit(1)
	}
}
