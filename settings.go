// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/vladimir-ch/krylov/options"
)

// Method is a Krylov method.
type Method int

const (
	MethodGMRES Method = iota
	MethodBGMRES
	MethodCG
	MethodBCG
	MethodPCG
)

var methodNames = []string{"gmres", "bgmres", "cg", "bcg", "pcg"}

func (m Method) String() string { return enumString(methodNames, int(m)) }

// Variant is the placement of the preconditioner.
type Variant int

const (
	Left Variant = iota
	Right
	// Flexible allows a preconditioner that changes between iterations.
	// For CG it selects the variant that conjugates every new direction
	// against all previous ones.
	Flexible
)

var variantNames = []string{"left", "right", "flexible"}

func (v Variant) String() string { return enumString(variantNames, int(v)) }

// GramSchmidt is the orthogonalization scheme of the Arnoldi process.
type GramSchmidt int

const (
	// Classical Gram-Schmidt needs a single reduction per iteration.
	Classical GramSchmidt = iota
	// Modified Gram-Schmidt needs one reduction per basis vector.
	Modified
)

var gsNames = []string{"cgs", "mgs"}

func (g GramSchmidt) String() string { return enumString(gsNames, int(g)) }

// SchwarzMethod is the one-level method of the domain decomposition
// preconditioner. Only a few of them yield a symmetric preconditioner.
type SchwarzMethod int

const (
	SchwarzNone SchwarzMethod = iota
	RAS
	ORAS
	SORAS
	ASM
	DSM
)

var schwarzNames = []string{"none", "ras", "oras", "soras", "asm", "dsm"}

func (s SchwarzMethod) String() string { return enumString(schwarzNames, int(s)) }

// Symmetric reports whether the Schwarz method yields a symmetric
// preconditioner.
func (s SchwarzMethod) Symmetric() bool {
	switch s {
	case RAS, ORAS, DSM:
		return false
	}
	return true
}

// CoarseCorrection is the coarse correction of the domain decomposition
// preconditioner.
type CoarseCorrection int

const (
	CoarseNone CoarseCorrection = iota
	Deflated
	Additive
	Balanced
)

var coarseNames = []string{"none", "deflated", "additive", "balanced"}

func (c CoarseCorrection) String() string { return enumString(coarseNames, int(c)) }

func enumString(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("unknown(%d)", i)
	}
	return names[i]
}

func parseEnum(names []string, key, s string) (int, error) {
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s=%q", ErrUnknownValue, key, s)
}

// ErrUnknownValue is returned by NewSettings for an enumerated option with an
// unknown value.
var ErrUnknownValue = errors.New("krylov: unknown option value")

// Recorder receives the outcome of solves. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// Solved is called once per solve with the method that ran to the end.
	Solved(m Method, iterations, unconverged int)
	// FellBack is called when a block method restarts with its scalar
	// counterpart after a breakdown.
	FellBack(from, to Method)
	// Redirected is called when the configured method is replaced at
	// selection time.
	Redirected(from, to Method)
}

// Settings holds the configuration of a solve. It is read-only for the
// solvers.
type Settings struct {
	Method Method `validate:"gte=0,lte=4"`
	// Tolerance is the relative tolerance on the residual norm. A negative
	// value is an absolute tolerance.
	Tolerance float64 `validate:"finite"`
	// MaxIterations is the iteration cap.
	MaxIterations int `validate:"gte=1"`
	// Restart is the GMRES restart length. Zero means DefaultRestart. It is
	// capped by MaxIterations.
	Restart           int         `validate:"gte=0"`
	Variant           Variant     `validate:"gte=0,lte=2"`
	Orthogonalization GramSchmidt `validate:"gte=0,lte=1"`
	// Enlarge is the enlargement factor of BCG: the mu right-hand sides are
	// mu/Enlarge groups whose sum is the actual solution.
	Enlarge int `validate:"gte=1"`
	// RankTolerance is the threshold, relative to the column norm, below
	// which a diagonal entry of a block QR factor is considered zero.
	RankTolerance float64 `validate:"gt=0,lt=1"`
	// Verbosity controls logging: 1 logs a summary, 2 the residual range
	// of every iteration, 3 the residual of every column.
	Verbosity        int              `validate:"gte=0"`
	SchwarzMethod    SchwarzMethod    `validate:"gte=0,lte=5"`
	CoarseCorrection CoarseCorrection `validate:"gte=0,lte=3"`

	// Excluded marks a rank that holds no unknowns but takes part in the
	// collective operations.
	Excluded bool
	// Logger receives the solver output. Nil means slog.Default().
	Logger *slog.Logger `validate:"-"`
	// Recorder, if not nil, is notified of every solve.
	Recorder Recorder `validate:"-"`
}

// DefaultRestart is the GMRES restart length used when Settings.Restart is
// zero.
const DefaultRestart = 40

// DefaultSettings returns the default settings.
func DefaultSettings() Settings {
	return Settings{
		Method:        MethodGMRES,
		Tolerance:     1e-6,
		MaxIterations: 100,
		Enlarge:       1,
		RankTolerance: 1e-6,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks s. The returned error wraps validator.ValidationErrors.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("krylov: invalid settings: %w", err)
	}
	return nil
}

// NewSettings reads the settings stored in o under prefix, starting from
// DefaultSettings. The recognized names are krylov_method, tol, max_it,
// gmres_restart, variant, orthogonalization, enlarge_krylov_subspace,
// rank_tolerance, verbosity, schwarz_method and schwarz_coarse_correction.
func NewSettings(o *options.Options, prefix string) (Settings, error) {
	s := DefaultSettings()
	var err error
	if s.Tolerance, err = o.Float(prefix+"tol", s.Tolerance); err != nil {
		return s, err
	}
	if s.RankTolerance, err = o.Float(prefix+"rank_tolerance", s.RankTolerance); err != nil {
		return s, err
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"max_it", &s.MaxIterations},
		{"gmres_restart", &s.Restart},
		{"enlarge_krylov_subspace", &s.Enlarge},
		{"verbosity", &s.Verbosity},
	}
	for _, f := range ints {
		if *f.dst, err = o.Int(prefix+f.name, *f.dst); err != nil {
			return s, err
		}
	}
	enums := []struct {
		name  string
		names []string
		dst   *int
	}{
		{"krylov_method", methodNames, (*int)(&s.Method)},
		{"variant", variantNames, (*int)(&s.Variant)},
		{"orthogonalization", gsNames, (*int)(&s.Orthogonalization)},
		{"schwarz_method", schwarzNames, (*int)(&s.SchwarzMethod)},
		{"schwarz_coarse_correction", coarseNames, (*int)(&s.CoarseCorrection)},
	}
	for _, f := range enums {
		v, ok := o.Lookup(prefix + f.name)
		if !ok {
			continue
		}
		if *f.dst, err = parseEnum(f.names, prefix+f.name, v); err != nil {
			return s, err
		}
	}
	return s, s.Validate()
}

// restart returns the effective GMRES restart length.
func (s Settings) restart() int {
	m := s.Restart
	if m == 0 {
		m = DefaultRestart
	}
	return min(m, s.MaxIterations)
}

func (s Settings) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
