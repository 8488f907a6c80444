// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spiral

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Operator is a linear map between signal space and observation space,
// supplied as matrix-free forward and adjoint closures.
type Operator struct {
	// Forward computes A(x), mapping a length-n signal to m observations.
	Forward func(x []float64) []float64
	// Adjoint computes Aᵀ(y), mapping m observations back to signal space.
	Adjoint func(y []float64) []float64
}

// MatrixOperator wraps a dense m×n sensing matrix as an Operator.
func MatrixOperator(a mat.Matrix) Operator {
	m, n := a.Dims()
	return Operator{
		Forward: func(x []float64) []float64 {
			if len(x) != n {
				panic("bound check error")
			}
			out := mat.NewVecDense(m, nil)
			out.MulVec(a, mat.NewVecDense(n, x))
			return out.RawVector().Data
		},
		Adjoint: func(y []float64) []float64 {
			if len(y) != m {
				panic("bound check error")
			}
			out := mat.NewVecDense(n, nil)
			out.MulVec(a.T(), mat.NewVecDense(m, y))
			return out.RawVector().Data
		},
	}
}

// probe verifies the forward/adjoint pair against the data by evaluating
// A(Aᵀ(y)), which exercises both the inner and the outer dimension of the
// pair. It reports the signal dimension n on success.
func (op Operator) probe(y []float64) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: forward/adjoint probe failed: %v", ErrIncompatibleOperator, r)
		}
	}()
	xh := op.Adjoint(y)
	yh := op.Forward(xh)
	if len(yh) != len(y) {
		return 0, fmt.Errorf("%w: A(Aᵀ(y)) has %d elements, want %d", ErrIncompatibleOperator, len(yh), len(y))
	}
	return len(xh), nil
}
