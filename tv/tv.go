// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tv provides the discrete total-variation functional over a 2-D
// grid and a bound-constrained proximal denoiser for it, pluggable into the
// spiral solver as a denoising subproblem.
package tv

import (
	"math"
)

// Kind selects the discrete total-variation flavor.
type Kind int

const (
	// Anisotropic sums the absolute forward differences along both axes.
	Anisotropic Kind = iota
	// Isotropic sums the Euclidean norms of the per-pixel gradient pairs.
	Isotropic
)

// Norm computes the total variation of a rows×cols image stored row-major.
func Norm(x []float64, rows, cols int, kind Kind) float64 {
	if len(x) != rows*cols {
		panic("bound check error")
	}
	tv := 0.0
	switch kind {
	case Anisotropic:
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
	case Isotropic:
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				var p, q float64
				if i < rows-1 {
					p = x[i*cols+j] - x[(i+1)*cols+j]
				}
				if j < cols-1 {
					q = x[i*cols+j] - x[i*cols+j+1]
				}
				tv += math.Hypot(p, q)
			}
		}
	default:
		panic("unknown tv kind")
	}
	return tv
}

// grad computes the forward differences of x into the dual fields:
// p[i,j] = x[i,j] - x[i+1,j] and q[i,j] = x[i,j] - x[i,j+1].
func grad(x, p, q []float64, rows, cols int) {
	for i := 0; i < rows-1; i++ {
		for j := 0; j < cols; j++ {
			p[i*cols+j] = x[i*cols+j] - x[(i+1)*cols+j]
		}
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols-1; j++ {
			q[i*(cols-1)+j] = x[i*cols+j] - x[i*cols+j+1]
		}
	}
}

// div accumulates the negative divergence of the dual fields into x:
// x[i,j] = p[i,j] - p[i-1,j] + q[i,j] - q[i,j-1], with out-of-range terms zero.
func div(p, q, x []float64, rows, cols int) {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := 0.0
			if i < rows-1 {
				v += p[i*cols+j]
			}
			if i > 0 {
				v -= p[(i-1)*cols+j]
			}
			if j < cols-1 {
				v += q[i*(cols-1)+j]
			}
			if j > 0 {
				v -= q[i*(cols-1)+j-1]
			}
			x[i*cols+j] = v
		}
	}
}

// project maps the dual fields back onto the feasible set: per-entry clamping
// to [-1,1] for the anisotropic flavor, per-pixel Euclidean normalization for
// the isotropic one.
func project(p, q []float64, rows, cols int, kind Kind) {
	switch kind {
	case Anisotropic:
		for i, v := range p {
			p[i] = math.Max(-1, math.Min(1, v))
		}
		for i, v := range q {
			q[i] = math.Max(-1, math.Min(1, v))
		}
	case Isotropic:
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				hasP, hasQ := i < rows-1, j < cols-1
				switch {
				case hasP && hasQ:
					pv, qv := p[i*cols+j], q[i*(cols-1)+j]
					d := math.Max(1, math.Hypot(pv, qv))
					p[i*cols+j] = pv / d
					q[i*(cols-1)+j] = qv / d
				case hasP:
					pv := p[i*cols+j]
					p[i*cols+j] = pv / math.Max(1, math.Abs(pv))
				case hasQ:
					qv := q[i*(cols-1)+j]
					q[i*(cols-1)+j] = qv / math.Max(1, math.Abs(qv))
				}
			}
		}
	default:
		panic("unknown tv kind")
	}
}
