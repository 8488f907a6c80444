// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spiral

// Subproblem configures the denoising subproblem solved at every proximal
// step for non-canonical penalties. The canonical penalty has a closed-form
// proximal point and ignores these settings.
type Subproblem struct {
	// Transform computes W(x), the analysis transform of the ONB penalty.
	Transform func(x []float64) []float64
	// Adjoint computes Wᵀ(x), the synthesis side used by ONB denoisers.
	Adjoint func(x []float64) []float64
	// Denoiser solves the proximal subproblem for non-canonical penalties.
	Denoiser Denoiser
	// MinIterations the denoiser must complete before it may stop.
	MinIterations int
	// MaxIterations bounds the denoiser sub-iteration budget.
	MaxIterations int
	// Criterion is the stopping rule forwarded verbatim to the denoiser.
	Criterion int
	// Tolerance is the stopping threshold forwarded to the denoiser.
	Tolerance float64
}

// Denoiser solves the regularized denoising subproblem
//
//	min ½‖x - step‖² + Φ(x; scaledTau)  subject to  x + offset ≥ 0
//
// for a penalty functional Φ weighted by scaledTau (the regularization weight
// already divided by the current step size α). Implementations are
// best-effort: exhausting the sub-iteration budget returns the current
// iterate rather than failing.
type Denoiser interface {
	Denoise(step, scaledTau []float64, offset float64, sub Subproblem) []float64
}

// proxSolution maps a gradient-step result to the denoised iterate.
// The canonical penalty is soft-thresholding combined with a nonnegativity
// projection; every other penalty dispatches to the configured denoiser.
func proxSolution(step []float64, spec *iterSpec, alpha float64) []float64 {
	if spec.penalty == Canonical {
		out := make([]float64, len(step))
		for i, s := range step {
			v := s - spec.tauAt(i)/alpha + spec.mu
			if v < zero {
				v = zero
			}
			out[i] = v
		}
		return out
	}
	scaled := make([]float64, len(spec.tau))
	for i, t := range spec.tau {
		scaled[i] = t / alpha
	}
	return spec.sub.Denoiser.Denoise(step, scaled, spec.mu, spec.sub)
}
