// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spiral

import (
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
)

// iterDriver is the main driver for the proximal-gradient iterations,
// responsible for managing the flow of the reconstruction.
type iterDriver struct {
	spec *iterSpec
	ctx  *iterCtx
}

// iterCtx carries the mutable state of one reconstruction. It is created by
// Run and never shared across invocations.
type iterCtx struct {
	// iteration counter.
	itern int
	// current step size.
	alpha float64
	// step size of the last accepted candidate, before the rejection multiplier.
	acceptAlpha float64
	// current and previous iterates.
	x, xprev []float64
	// cached predictions A(x) and A(xprev).
	ax, axprev []float64
	// gradient at the previous iterate.
	grad []float64
	// gradient step before denoising.
	step []float64
	// iterate and prediction differences of the last step.
	dx, adx []float64
	// squared Euclidean norm of dx.
	normsqdx float64
	// whether the stopping rule fired.
	converged bool
	// wall-clock origin of the elapsed-time trace.
	start time.Time
	// elapsed seconds at the current iteration.
	elapsed float64
	// diagnostic traces, preallocated to maxiter+1 entries.
	objective, reconerror, cputime []float64
	path                           []PathEntry
}

// mainLoop is the main execution loop of the reconstruction: compute the
// candidate step, denoise, record diagnostics, refresh the gradient, check
// convergence and advance until a stopping rule or the budget ends the run.
func (d *iterDriver) mainLoop() *Result {
	s, c := d.spec, d.ctx

	d.initState()
	d.printBanner("Beginning")

	for c.itern <= s.stop.MinIterations || (c.itern <= s.stop.MaxIterations && !c.converged) {

		switch s.step.Method {
		case ConstantStep:
			d.takeStep()
			if s.trackObj {
				c.objective[c.itern] = computeObjective(c.x, c.ax, s)
			}
		case BarzilaiBorwein:
			if s.step.Monotone {
				d.acceptStep()
			} else {
				d.takeStep()
				if s.trackObj {
					c.objective[c.itern] = computeObjective(c.x, c.ax, s)
				}
			}
		}

		d.recordTraces()

		// Needed for the next iteration and for the termination criteria.
		c.grad = computeGradient(s.y, c.ax, s.op.Adjoint, s.noise, s.logEps)
		c.converged = checkConvergence(c.itern, s.stop.MinIterations, s.stop.Criterion,
			s.stop.Tolerance, c.dx, c.x, c.elapsed, c.objective)

		d.printIter()

		if s.step.Method == BarzilaiBorwein {
			d.updateAlpha()
		}

		c.xprev, c.axprev = c.x, c.ax
		c.itern++
	}

	d.printBanner("Completed")
	return d.finish()
}

// initState creates the iteration state from the starting estimate and
// preallocates the enabled traces. Index 0 of every trace describes the
// initializer, not the first update.
func (d *iterDriver) initState() {
	s, c := d.spec, d.ctx

	c.x = slices.Clone(s.xinit)
	c.ax = s.op.Forward(c.x)
	c.xprev, c.axprev = c.x, c.ax
	c.alpha = s.step.AlphaInit
	c.grad = computeGradient(s.y, c.ax, s.op.Adjoint, s.noise, s.logEps)

	// The objective trace backs both the acceptance window and the
	// objective-change criterion, so it exists whenever any of them does.
	c.objective = make([]float64, s.stop.MaxIterations+1)
	if s.trackObj {
		c.objective[0] = computeObjective(c.x, c.ax, s)
	}
	if s.save.CPUTime {
		c.cputime = make([]float64, s.stop.MaxIterations+1)
	}
	if s.save.ReconError {
		c.reconerror = make([]float64, s.stop.MaxIterations+1)
		c.reconerror[0] = s.reconError(c.x)
	}
	if s.save.SolutionPath {
		// There is no step leading to the initializer, so entry 0 holds zeros.
		c.path = make([]PathEntry, s.stop.MaxIterations+1)
		c.path[0] = PathEntry{
			Step:    make([]float64, s.n),
			Iterate: slices.Clone(s.xinit),
		}
	}

	c.itern = 1
	c.start = time.Now()
}

// takeStep performs one gradient step at the current alpha and solves the
// denoising subproblem, refreshing dx, A(dx) and ‖dx‖².
func (d *iterDriver) takeStep() {
	s, c := d.spec, d.ctx

	step := make([]float64, s.n)
	for i, xp := range c.xprev {
		step[i] = xp - c.grad[i]/c.alpha
	}
	c.step = step
	c.x = proxSolution(step, s, c.alpha)
	if len(c.x) != s.n {
		panic("bound check error")
	}

	c.dx = make([]float64, s.n)
	floats.SubTo(c.dx, c.x, c.xprev)
	c.normsqdx = floats.Dot(c.dx, c.dx)

	c.ax = s.op.Forward(c.x)
	c.adx = make([]float64, s.m)
	floats.SubTo(c.adx, c.ax, c.axprev)
}

// acceptStep runs the nonmonotone acceptance loop: backtrack in alpha until
// the candidate objective drops below the sliding-window bound minus the
// sufficient decrease, or alpha reaches the forced-acceptance ceiling.
func (d *iterDriver) acceptStep() {
	s, c := d.spec, d.ctx

	past := max(c.itern-1-s.step.AcceptPast, 0)
	maxPastObj := slices.Max(c.objective[past:c.itern])

	for {
		d.takeStep()
		obj := computeObjective(c.x, c.ax, s)
		c.objective[c.itern] = obj

		accept := obj <= maxPastObj-s.step.AcceptDecrease*c.alpha/two*c.normsqdx ||
			c.alpha >= s.step.AcceptAlphaMax
		c.acceptAlpha = c.alpha
		c.alpha = s.step.AcceptMult * c.alpha
		if accept {
			return
		}
	}
}

// updateAlpha recomputes the Barzilai-Borwein step from the curvature of the
// accepted step. Under Poisson noise A(dx) is scaled by √y/(Ax+ε), a
// curvature estimate consistent with the Fisher-information metric. A zero
// curvature estimate falls back to alphamin instead of failing.
func (d *iterDriver) updateAlpha() {
	s, c := d.spec, d.ctx

	gamma := zero
	switch s.noise {
	case Poisson:
		for i, adx := range c.adx {
			v := adx * s.sqrty[i] / (c.ax[i] + s.logEps)
			gamma += v * v
		}
	case Gaussian:
		gamma = floats.Dot(c.adx, c.adx)
	}

	if gamma == zero {
		c.alpha = s.step.AlphaMin
	} else {
		c.alpha = math.Min(s.step.AlphaMax, math.Max(gamma/c.normsqdx, s.step.AlphaMin))
	}
}

// recordTraces appends the enabled diagnostics for the current iteration.
func (d *iterDriver) recordTraces() {
	s, c := d.spec, d.ctx

	c.elapsed = time.Since(c.start).Seconds()
	if s.save.CPUTime {
		c.cputime[c.itern] = c.elapsed
	}
	if s.save.ReconError {
		c.reconerror[c.itern] = s.reconError(c.x)
	}
	if s.save.SolutionPath {
		c.path[c.itern] = PathEntry{
			Step:    slices.Clone(c.step),
			Iterate: slices.Clone(c.x),
		}
	}
}

// finish restores the recentering offset and truncates every enabled trace
// to the executed iteration count.
func (d *iterDriver) finish() *Result {
	s, c := d.spec, d.ctx

	itern := c.itern - 1
	x := slices.Clone(c.x)
	floats.AddConst(s.mu, x)

	res := &Result{X: x, Iterations: itern}
	if s.save.Objective {
		res.Objective = c.objective[:itern]
	}
	if s.save.ReconError {
		res.ReconError = c.reconerror[:itern]
	}
	if s.save.CPUTime {
		res.CPUTime = c.cputime[:itern]
	}
	if s.save.SolutionPath {
		res.Path = c.path[:itern]
	}
	return res
}

func (d *iterDriver) printBanner(stage string) {
	s := d.spec
	log := s.logger
	if !log.enable(LogBanner) {
		return
	}
	log.log("===================================================================\n")
	log.log("= %s SPIRAL Reconstruction    @ %s\n", stage, time.Now().Format(time.DateTime))
	log.log("=   Noise: %d    Penalty: %d    Tau: %v    Maxiter: %d\n",
		s.noise, s.penalty, s.tau, s.stop.MaxIterations)
	log.log("===================================================================\n")
}

func (d *iterDriver) printIter() {
	s, c := d.spec, d.ctx
	log := s.logger
	if !log.enable(LogIter) || c.itern%int(log.Level) != 0 {
		return
	}
	log.log("Iter: %d, ||dx||%%: %g, Alph: %g",
		c.itern, 100*floats.Norm(c.dx, 2)/floats.Norm(c.x, 2), c.alpha)
	if s.step.Method == BarzilaiBorwein && s.step.Monotone {
		log.log(", Alph Acc: %g", c.acceptAlpha)
	}
	if s.save.CPUTime {
		log.log(", Time: %g", c.cputime[c.itern])
	}
	if s.trackObj {
		obj, prev := c.objective[c.itern], c.objective[c.itern-1]
		log.log(", Obj: %g, dObj%%: %g", obj, 100*math.Abs(obj-prev)/math.Abs(prev))
	}
	if s.save.ReconError {
		log.log(", Err: %g", c.reconerror[c.itern])
	}
	log.log("\n")
}
