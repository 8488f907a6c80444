// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spiral

import (
	"fmt"
	"math"
	"os"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Termination specifies the stopping rule for the main loop.
type Termination struct {
	// Criterion selects one of the six stopping rules (default StopMaxIter).
	Criterion StopCriterion
	// Tolerance is the criterion threshold; seconds for StopTime.
	Tolerance float64
	// MinIterations must complete before the criterion is consulted.
	MinIterations int
	// MaxIterations bounds the loop regardless of the criterion.
	MaxIterations int
}

// StepControl specifies the step-size schedule and the acceptance rule.
type StepControl struct {
	// Method selects between the Barzilai-Borwein schedule and a constant step.
	Method StepMethod
	// Monotone enables the nonmonotone acceptance backtracking.
	// It is honored only under the Barzilai-Borwein schedule.
	Monotone bool
	// AlphaInit is the initial step size.
	AlphaInit float64
	// AlphaMin and AlphaMax clamp every Barzilai-Borwein update.
	AlphaMin, AlphaMax float64
	// AcceptDecrease is the sufficient-decrease coefficient of the
	// acceptance rule.
	AcceptDecrease float64
	// AcceptPast is the length of the sliding window of past objective
	// values the acceptance rule compares against.
	AcceptPast int
	// AcceptMult is the factor (>1) applied to alpha on every rejection.
	AcceptMult float64
	// AcceptAlphaMax forces acceptance once alpha reaches it, bounding the
	// backtracking loop. Defaults to AlphaMax.
	AcceptAlphaMax float64
}

// TraceFlags selects which diagnostic traces Run records.
type TraceFlags struct {
	// Objective records the objective value at every iteration.
	Objective bool
	// ReconError records the error against Truth at every iteration.
	ReconError bool
	// CPUTime records the elapsed wall time at every iteration.
	CPUTime bool
	// SolutionPath records the (step, iterate) pair of every iteration.
	SolutionPath bool
}

// Problem specifies a SPIRAL reconstruction: recover a nonnegative signal x
// from noisy linear observations y ≈ A(x) by minimizing a penalized negative
// log-likelihood with proximal-gradient iterations.
type Problem struct {
	// Y holds the degraded observations (length m). Poisson observations
	// must be nonnegative integer counts.
	Y []float64
	// Op is the forward/adjoint pair of the sensing operator.
	Op Operator
	// Tau is the regularization weight: a single element applies uniformly,
	// otherwise one nonnegative weight per signal coordinate. The TV penalty
	// only accepts a single element.
	Tau []float64

	// Noise selects the observation model.
	Noise Noise
	// Penalty selects the regularization functional.
	Penalty Penalty
	// LogEpsilon stabilizes the Poisson likelihood near zero intensity.
	LogEpsilon float64

	// Rows and Cols give the 2-D grid shape of the signal (TV penalty only).
	Rows, Cols int

	// Recenter removes the observation mean before solving and restores it
	// on exit. Gaussian noise only.
	Recenter bool

	// Init is the starting estimate; Aᵀ(y) when nil.
	Init []float64
	// Truth is the ground-truth signal enabling reconstruction-error tracking.
	Truth []float64
	// Metric selects the reconstruction-error norm.
	Metric ErrorMetric

	Step StepControl  // Step-size schedule and acceptance rule
	Stop Termination  // Stop condition
	Sub  Subproblem   // Denoising subproblem configuration
	Save TraceFlags   // Diagnostic trace selection
}

// Defaults returns the standard SPIRALTAP parameter set: Poisson noise, canonical
// penalty, monotone Barzilai-Borwein steps and a pure iteration-budget stop.
func Defaults() Problem {
	return Problem{
		Noise:      Poisson,
		Penalty:    Canonical,
		LogEpsilon: 1e-10,
		Step: StepControl{
			Method:         BarzilaiBorwein,
			Monotone:       true,
			AlphaInit:      1,
			AlphaMin:       1e-30,
			AlphaMax:       1e30,
			AcceptDecrease: 0.1,
			AcceptPast:     10,
			AcceptMult:     2,
		},
		Stop: Termination{
			Criterion:     StopMaxIter,
			Tolerance:     1e-6,
			MinIterations: 5,
			MaxIterations: 100,
		},
		Sub: Subproblem{
			MinIterations: 1,
			MaxIterations: 50,
			Tolerance:     1e-5,
		},
	}
}

// New validates the problem and creates a solver for it. All configuration
// and compatibility errors surface here, before any iteration runs; Run
// itself cannot fail. The supplied logger may be nil for a silent solver.
func (p *Problem) New(logger *Logger) (solver *Solver, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}

	y, op, tau := p.Y, p.Op, p.Tau
	step, stop, sub, save := p.Step, p.Stop, p.Sub, p.Save

	// Zero-valued knobs take the Defaults values.
	logEps := p.LogEpsilon
	if logEps == zero {
		logEps = 1e-10
	}
	if step.AlphaInit == zero {
		step.AlphaInit = one
	}
	if step.AlphaMin == zero {
		step.AlphaMin = 1e-30
	}
	if step.AlphaMax == zero {
		step.AlphaMax = 1e30
	}
	if step.AcceptDecrease == zero {
		step.AcceptDecrease = 0.1
	}
	if step.AcceptPast == 0 {
		step.AcceptPast = 10
	}
	if step.AcceptMult == zero {
		step.AcceptMult = two
	}
	if step.AcceptAlphaMax == zero {
		step.AcceptAlphaMax = step.AlphaMax
	}
	if stop.Criterion == 0 {
		stop.Criterion = StopMaxIter
	}
	if stop.Tolerance == zero {
		stop.Tolerance = 1e-6
	}
	if stop.MinIterations == 0 {
		stop.MinIterations = 5
	}
	if stop.MaxIterations == 0 {
		stop.MaxIterations = 100
	}
	if sub.MinIterations == 0 {
		sub.MinIterations = 1
	}
	if sub.MaxIterations == 0 {
		sub.MaxIterations = 50
	}
	if sub.Tolerance == zero {
		sub.Tolerance = 1e-5
	}

	monotone := step.Monotone && step.Method == BarzilaiBorwein
	trackObj := save.Objective || monotone || stop.Criterion == StopObjChange

	switch {
	case len(y) == 0:
		err = fmt.Errorf("%w: observations must not be empty", ErrInvalidConfig)
	case op.Forward == nil || op.Adjoint == nil:
		err = fmt.Errorf("%w: both forward and adjoint operators are required", ErrInvalidConfig)
	case len(tau) == 0:
		err = fmt.Errorf("%w: regularization weight is required", ErrInvalidConfig)
	case p.Noise != Poisson && p.Noise != Gaussian:
		err = fmt.Errorf("%w: noise model %d must be Poisson or Gaussian", ErrInvalidConfig, p.Noise)
	case p.Penalty < Canonical || p.Penalty > TV:
		err = fmt.Errorf("%w: penalty %d is not one of Canonical, ONB, RDP, RDP-TI, TV", ErrInvalidConfig, p.Penalty)
	case p.Metric != RMSError && p.Metric != AbsError:
		err = fmt.Errorf("%w: error metric %d must be RMSError or AbsError", ErrInvalidConfig, p.Metric)
	case logEps < zero:
		err = fmt.Errorf("%w: log epsilon must not be negative", ErrInvalidConfig)
	case stop.Tolerance < zero:
		err = fmt.Errorf("%w: tolerance must not be negative", ErrInvalidConfig)
	case sub.Tolerance < zero:
		err = fmt.Errorf("%w: subproblem tolerance must not be negative", ErrInvalidConfig)
	case stop.MinIterations <= 0 || stop.MaxIterations <= 0:
		err = fmt.Errorf("%w: iteration bounds must be positive", ErrInvalidConfig)
	case stop.MinIterations > stop.MaxIterations:
		err = fmt.Errorf("%w: miniter %d exceeds maxiter %d", ErrInvalidConfig, stop.MinIterations, stop.MaxIterations)
	case sub.MinIterations > sub.MaxIterations:
		err = fmt.Errorf("%w: subproblem miniter %d exceeds maxiter %d", ErrInvalidConfig, sub.MinIterations, sub.MaxIterations)
	case step.AlphaMin <= zero || step.AlphaMin > step.AlphaMax:
		err = fmt.Errorf("%w: alpha bounds must satisfy 0 < alphamin <= alphamax", ErrInvalidConfig)
	case step.AlphaInit < step.AlphaMin || step.AlphaInit > step.AlphaMax:
		err = fmt.Errorf("%w: initial alpha must lie within [alphamin, alphamax]", ErrInvalidConfig)
	case step.AcceptDecrease < zero:
		err = fmt.Errorf("%w: acceptance decrease must not be negative", ErrInvalidConfig)
	case step.AcceptPast < 0:
		err = fmt.Errorf("%w: acceptance window must not be negative", ErrInvalidConfig)
	case step.AcceptMult <= one:
		err = fmt.Errorf("%w: acceptance multiplier must be greater than 1", ErrInvalidConfig)
	case stop.Criterion < StopMaxIter || stop.Criterion > StopLagrangeNorm:
		err = fmt.Errorf("%w: stop criterion %d is out of range", ErrInvalidConfig, stop.Criterion)
	case stop.Criterion == StopComplementarity || stop.Criterion == StopLagrangeNorm:
		err = fmt.Errorf("%w: stop criterion %d is reserved and not implemented", ErrUnsupported, stop.Criterion)
	case save.ReconError && p.Truth == nil:
		err = fmt.Errorf("%w: reconstruction-error tracking requires the ground truth", ErrInvalidConfig)
	}
	if err != nil {
		return
	}

	for i, t := range tau {
		if t < zero {
			err = fmt.Errorf("%w: regularization weight at %d is negative", ErrInvalidConfig, i)
			return
		}
	}

	// Penalty-specific constraints.
	switch p.Penalty {
	case Canonical:
	case ONB:
		if sub.Denoiser == nil {
			err = fmt.Errorf("%w: the ONB penalty requires an external denoiser", ErrUnsupported)
		} else if trackObj && sub.Transform == nil {
			err = fmt.Errorf("%w: the ONB objective requires the analysis transform", ErrUnsupported)
		}
	case RDP, RDPTI:
		// No closed-form objective exists, so neither monotone acceptance
		// nor objective tracking can be honored.
		if trackObj {
			err = fmt.Errorf("%w: the objective has no closed form under RDP penalties", ErrUnsupported)
		} else if sub.Denoiser == nil {
			err = fmt.Errorf("%w: RDP penalties require an external denoiser", ErrUnsupported)
		}
	case TV:
		if sub.Denoiser == nil {
			err = fmt.Errorf("%w: the TV penalty requires an external denoiser", ErrUnsupported)
		} else if len(tau) != 1 {
			err = fmt.Errorf("%w: the TV penalty only accepts a scalar regularization weight", ErrInvalidConfig)
		}
	}
	if err != nil {
		return
	}

	// Noise-specific constraints.
	var sqrty []float64
	if p.Noise == Poisson {
		if p.Recenter {
			err = fmt.Errorf("%w: recentering is not available under Poisson noise", ErrUnsupported)
			return
		}
		sqrty = make([]float64, len(y))
		for i, v := range y {
			if v < zero || v != math.Trunc(v) {
				err = fmt.Errorf("%w: Poisson observations must be nonnegative integer counts", ErrInvalidConfig)
				return
			}
			sqrty[i] = math.Sqrt(v)
		}
	}

	// Probe the operator pair once against the data.
	n, err := op.probe(y)
	if err != nil {
		return nil, err
	}

	switch {
	case p.Init != nil && len(p.Init) != n:
		err = fmt.Errorf("%w: starting estimate has %d elements, want %d", ErrInvalidConfig, len(p.Init), n)
	case p.Truth != nil && len(p.Truth) != n:
		err = fmt.Errorf("%w: ground truth has %d elements, want %d", ErrInvalidConfig, len(p.Truth), n)
	case len(tau) != 1 && len(tau) != n:
		err = fmt.Errorf("%w: regularization weight has %d elements, want 1 or %d", ErrInvalidConfig, len(tau), n)
	case p.Penalty == TV && p.Rows*p.Cols != n:
		err = fmt.Errorf("%w: TV grid %d×%d does not cover the %d-element signal", ErrInvalidConfig, p.Rows, p.Cols, n)
	}
	if err != nil {
		return nil, err
	}
	if p.Truth != nil {
		if slices.Min(p.Truth) < zero {
			return nil, fmt.Errorf("%w: ground truth must be nonnegative", ErrInvalidConfig)
		}
	}

	y = slices.Clone(y)
	xinit := p.Init
	if xinit == nil {
		xinit = op.Adjoint(y)
	}
	xinit = slices.Clone(xinit)

	// Recentering shifts the observation mean into an additive offset and
	// folds the matching rank-one correction into the operator pair.
	mu := zero
	if p.Recenter {
		ones := make([]float64, n)
		for i := range ones {
			ones[i] = one
		}
		meanAones := floats.Sum(op.Forward(ones)) / float64(len(y))
		meanY := floats.Sum(y) / float64(len(y))
		if meanAones == zero {
			return nil, fmt.Errorf("%w: recentering requires A(1) with nonzero mean", ErrInvalidConfig)
		}
		mu = meanY / meanAones
		floats.AddConst(-meanY, y)
		fwd, adj := op.Forward, op.Adjoint
		op = Operator{
			Forward: func(x []float64) []float64 {
				out := fwd(x)
				floats.AddConst(-meanAones*floats.Sum(x)/float64(n), out)
				return out
			},
			Adjoint: func(v []float64) []float64 {
				out := adj(v)
				floats.AddConst(-meanAones*floats.Sum(v)/float64(n), out)
				return out
			},
		}
		floats.AddConst(-mu, xinit)
	}

	step.Monotone = monotone
	solver = &Solver{
		iterSpec{
			m: len(y), n: n,
			y:        y,
			op:       op,
			tau:      slices.Clone(tau),
			mu:       mu,
			sqrty:    sqrty,
			xinit:    xinit,
			truth:    p.Truth,
			trackObj: trackObj,
			noise:    p.Noise,
			penalty:  p.Penalty,
			logEps:   logEps,
			rows:     p.Rows,
			cols:     p.Cols,
			metric:   p.Metric,
			step:     step,
			stop:     stop,
			sub:      sub,
			save:     save,
			logger:   *logger,
		},
	}
	return
}

// Solver reconstructs a signal with sparse Poisson intensity reconstruction
// (proximal-gradient iterations with Barzilai-Borwein step sizes).
type Solver struct {
	iterSpec
}

// PathEntry records one iteration of the solution path: the gradient step
// before denoising and the iterate after it.
type PathEntry struct {
	Step    []float64
	Iterate []float64
}

// Result contains the final reconstruction and the enabled traces.
type Result struct {
	// X is the reconstructed signal, the same length as Aᵀ(y).
	X []float64
	// Iterations is the number of iterations performed, within
	// [miniter, maxiter]. Reaching maxiter without satisfying the stopping
	// rule is a normal return; inspect Iterations and the traces to detect it.
	Iterations int
	// Objective, ReconError, CPUTime and Path hold the enabled traces.
	// Each has exactly Iterations elements; index 0 describes the
	// initializer, not the first update.
	Objective  []float64
	ReconError []float64
	CPUTime    []float64
	Path       []PathEntry
}

// Run executes the reconstruction. All iteration state is local to the call,
// so independent runs of one Solver may proceed concurrently as long as the
// supplied operator closures are safe to share.
func (s *Solver) Run() *Result {
	driver := iterDriver{
		spec: &s.iterSpec,
		ctx:  new(iterCtx),
	}
	return driver.mainLoop()
}
