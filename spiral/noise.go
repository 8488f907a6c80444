// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spiral

import "math"

// computeGradient evaluates the gradient of the negative log-likelihood at
// the current linear prediction Ax:
//   - Poisson:  Aᵀ(1 - y/(Ax + ε))
//   - Gaussian: Aᵀ(Ax - y)
//
// ε keeps the Poisson term finite where Ax vanishes.
func computeGradient(y, Ax []float64, adjoint func([]float64) []float64, noise Noise, logEps float64) []float64 {
	if len(y) != len(Ax) {
		panic("bound check error")
	}
	v := make([]float64, len(y))
	switch noise {
	case Poisson:
		for i, y := range y {
			v[i] = one - y/(Ax[i]+logEps)
		}
	case Gaussian:
		for i, y := range y {
			v[i] = Ax[i] - y
		}
	default:
		panic("unknown noise model")
	}
	return adjoint(v)
}

// dataFit evaluates the negative log-likelihood term of the objective:
//   - Poisson:  ∑Ax - ∑ y·log(Ax + ε)
//   - Gaussian: ½∑(y - Ax)²
func dataFit(y, Ax []float64, noise Noise, logEps float64) float64 {
	if len(y) != len(Ax) {
		panic("bound check error")
	}
	fit := zero
	switch noise {
	case Poisson:
		for i, y := range y {
			fit += Ax[i] - y*math.Log(Ax[i]+logEps)
		}
	case Gaussian:
		for i, y := range y {
			d := y - Ax[i]
			fit += d * d
		}
		fit /= two
	default:
		panic("unknown noise model")
	}
	return fit
}
