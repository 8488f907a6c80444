// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spiral

import "math"

// computeObjective evaluates the penalized negative log-likelihood at the
// iterate x with cached prediction Ax. Callers must not select penalties
// without a closed-form objective (RDP, RDP-TI); New rejects those
// combinations up front.
func computeObjective(x, Ax []float64, spec *iterSpec) float64 {
	obj := dataFit(spec.y, Ax, spec.noise, spec.logEps)
	switch spec.penalty {
	case Canonical:
		for i, xi := range x {
			obj += math.Abs(spec.tauAt(i) * xi)
		}
	case ONB:
		for i, wi := range spec.sub.Transform(x) {
			obj += math.Abs(spec.tauAt(i) * wi)
		}
	case TV:
		obj += spec.tau[0] * totalVariation(x, spec.rows, spec.cols)
	default:
		panic("objective has no closed form for this penalty")
	}
	return obj
}

// totalVariation computes the anisotropic (ℓ₁) discrete total variation of a
// rows×cols image stored row-major: the summed absolute forward differences
// along both axes.
func totalVariation(x []float64, rows, cols int) float64 {
	if len(x) != rows*cols {
		panic("bound check error")
	}
	tv := zero
	for i := 0; i < rows-1; i++ {
		for j := 0; j < cols; j++ {
			tv += math.Abs(x[i*cols+j] - x[(i+1)*cols+j])
		}
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols-1; j++ {
			tv += math.Abs(x[i*cols+j] - x[i*cols+j+1])
		}
	}
	return tv
}

// reconError computes the selected relative error of the iterate (with the
// recentering offset restored) against the ground truth.
func (s *iterSpec) reconError(x []float64) float64 {
	num, den := zero, zero
	switch s.metric {
	case RMSError:
		for i, t := range s.truth {
			d := x[i] + s.mu - t
			num += d * d
			den += t * t
		}
		return math.Sqrt(num) / math.Sqrt(den)
	case AbsError:
		for i, t := range s.truth {
			num += math.Abs(x[i] + s.mu - t)
			den += math.Abs(t)
		}
		return num / den
	}
	panic("unknown error metric")
}
