// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tv

import (
	"math"

	"github.com/curioloop/spiral/spiral"
)

// Denoiser solves the total-variation denoising subproblem
//
//	min ½‖x - step‖² + λ·TV(x)  subject to  x + offset ≥ 0
//
// by fast gradient projection on the dual problem. It implements
// spiral.Denoiser for the TV penalty.
type Denoiser struct {
	rows, cols int
	kind       Kind
}

// NewDenoiser creates a denoiser for row-major rows×cols signals.
func NewDenoiser(rows, cols int, kind Kind) *Denoiser {
	if rows <= 0 || cols <= 0 {
		panic("bound check error")
	}
	return &Denoiser{rows: rows, cols: cols, kind: kind}
}

// Denoise runs the dual fast gradient projection. λ is scaledTau[0]; a
// nonpositive λ degenerates to clipping the step at zero. The result is
// best-effort: once the sub-iteration budget is spent the current iterate is
// returned as-is.
func (d *Denoiser) Denoise(step, scaledTau []float64, offset float64, sub spiral.Subproblem) []float64 {
	rows, cols := d.rows, d.cols
	if len(step) != rows*cols || len(scaledTau) != 1 {
		panic("bound check error")
	}

	lambda := scaledTau[0]
	x := make([]float64, len(step))
	if lambda <= 0 {
		for i, v := range step {
			x[i] = math.Max(v, 0)
		}
		return x
	}
	lower := -offset

	np, nq := (rows-1)*cols, rows*(cols-1)
	p, q := make([]float64, np), make([]float64, nq)
	rp, rq := make([]float64, np), make([]float64, nq)
	gp, gq := make([]float64, np), make([]float64, nq)
	prev := make([]float64, len(step))

	// The dual gradient has Lipschitz constant 8λ² relative to the primal
	// objective, hence the 1/(8λ) dual step.
	invStep := 1 / (8 * lambda)
	t := 1.0

	for it := 1; it <= sub.MaxIterations; it++ {
		prev, x = x, prev

		// x = clip(step - λ·L(r), lower)
		div(rp, rq, x, rows, cols)
		for i, v := range step {
			x[i] = math.Max(v-lambda*x[i], lower)
		}

		// Dual ascent step on the momentum fields, then projection.
		grad(x, gp, gq, rows, cols)
		for i := range p {
			gp[i] = rp[i] + invStep*gp[i]
		}
		for i := range q {
			gq[i] = rq[i] + invStep*gq[i]
		}
		project(gp, gq, rows, cols, d.kind)

		// FISTA momentum update.
		tNext := (1 + math.Sqrt(1+4*t*t)) / 2
		for i, pn := range gp {
			rp[i] = pn + (t-1)/tNext*(pn-p[i])
		}
		for i, qn := range gq {
			rq[i] = qn + (t-1)/tNext*(qn-q[i])
		}
		p, gp = gp, p
		q, gq = gq, q
		t = tNext

		if it >= sub.MinIterations && relChange(x, prev) <= sub.Tolerance {
			break
		}
	}
	return x
}

// relChange reports ‖x - prev‖ / ‖x‖, with a zero iterate counted as no change.
func relChange(x, prev []float64) float64 {
	num, den := 0.0, 0.0
	for i, v := range x {
		d := v - prev[i]
		num += d * d
		den += v * v
	}
	if den == 0 {
		if num == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Sqrt(num / den)
}
