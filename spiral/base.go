// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spiral

import "errors"

const (
	zero = 0.0
	one  = 1.0
	two  = 2.0
)

var (
	// ErrInvalidConfig reports a malformed configuration value.
	ErrInvalidConfig = errors.New("spiral: invalid configuration")
	// ErrUnsupported reports a valid but unimplemented configuration.
	ErrUnsupported = errors.New("spiral: unsupported configuration")
	// ErrIncompatibleOperator reports a forward/adjoint shape mismatch.
	ErrIncompatibleOperator = errors.New("spiral: incompatible operator")
)

// Noise selects the statistical model of the observations.
type Noise int

const (
	// Poisson models y as Poisson counts with intensity A(x).
	Poisson Noise = iota
	// Gaussian models y as A(x) plus white Gaussian noise.
	Gaussian
)

// Penalty selects the regularization functional.
type Penalty int

const (
	// Canonical promotes sparsity of x in the direct domain (weighted ℓ₁).
	Canonical Penalty = iota
	// ONB promotes sparsity of the coefficients in an orthonormal basis.
	ONB
	// RDP is the recursive dyadic partition estimator.
	RDP
	// RDPTI is the translation-invariant recursive dyadic partition estimator.
	RDPTI
	// TV is the discrete total-variation functional over a 2-D grid.
	TV
)

// StepMethod selects the step-size schedule.
type StepMethod int

const (
	// BarzilaiBorwein estimates the local curvature from consecutive
	// iterate differences and adapts the step accordingly.
	BarzilaiBorwein StepMethod = iota
	// ConstantStep keeps the initial step for the whole run.
	ConstantStep
)

// StopCriterion selects the termination rule consulted once the minimum
// iteration count is reached.
type StopCriterion int

const (
	// StopMaxIter exhausts the iteration budget; the rule itself never fires.
	StopMaxIter StopCriterion = 1 + iota
	// StopTime terminates once the elapsed time (seconds) reaches the tolerance.
	StopTime
	// StopIterChange terminates on a small relative change of the iterate.
	StopIterChange
	// StopObjChange terminates on a small relative change of the objective.
	StopObjChange
	// StopComplementarity is reserved and not implemented.
	StopComplementarity
	// StopLagrangeNorm is reserved and not implemented.
	StopLagrangeNorm
)

// ErrorMetric selects the norm of the reconstruction-error trace.
type ErrorMetric int

const (
	// RMSError is the relative Euclidean-norm error against the truth.
	RMSError ErrorMetric = iota
	// AbsError is the relative absolute-value-norm error against the truth.
	AbsError
)

// iterSpec holds the validated, immutable description of one reconstruction.
// Every Run shares the spec but owns its whole iteration state.
type iterSpec struct {
	// the observation and signal dimensions
	m, n int
	// the (possibly recentered) observations
	y []float64
	// the (possibly recentered) forward/adjoint pair
	op Operator
	// the regularization weight, one element or n elements
	tau []float64
	// the recentering offset
	mu float64
	// element-wise square root of y, precomputed for the Poisson BB metric
	sqrty []float64
	// the starting estimate
	xinit []float64
	// the ground truth for error tracking, nil when absent
	truth []float64
	// whether the objective trace must be maintained internally
	trackObj bool

	noise      Noise
	penalty    Penalty
	logEps     float64
	rows, cols int
	metric     ErrorMetric

	step StepControl
	stop Termination
	sub  Subproblem
	save TraceFlags

	logger Logger
}

// tauAt broadcasts a scalar weight over all coordinates.
func (s *iterSpec) tauAt(i int) float64 {
	if len(s.tau) == 1 {
		return s.tau[0]
	}
	return s.tau[i]
}
