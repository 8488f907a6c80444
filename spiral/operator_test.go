// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spiral

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestMatrixOperator(t *testing.T) {

	a := mat.NewDense(2, 3, []float64{
		1, 0, 2,
		0, 3, 1,
	})
	op := MatrixOperator(a)

	x := []float64{1, 2, 3}
	y := []float64{1, 1}

	switch {
	case !almostEqual(op.Forward(x), []float64{7, 9}, 1e-15):
		t.Fatal("TestMatrixOperator: Bad Forward Product")
	case !almostEqual(op.Adjoint(y), []float64{1, 3, 3}, 1e-15):
		t.Fatal("TestMatrixOperator: Bad Adjoint Product")
	}
}

func TestOperatorProbe(t *testing.T) {

	// A mismatched pair must be rejected before the loop starts.
	bad := Operator{
		Forward: func(x []float64) []float64 { return make([]float64, 5) },
		Adjoint: func(y []float64) []float64 { return make([]float64, 4) },
	}

	p := Defaults()
	p.Y = []float64{1, 0, 2}
	p.Op = bad
	p.Tau = []float64{0.1}

	if s, e := p.New(nil); s != nil || !errors.Is(e, ErrIncompatibleOperator) {
		t.Fatalf("TestOperatorProbe: Shape Mismatch Not Detected: %v", e)
	}

	// Panicking closures are recovered and classified the same way.
	panics := Operator{
		Forward: func(x []float64) []float64 { panic("dimension mismatch") },
		Adjoint: func(y []float64) []float64 { return make([]float64, 4) },
	}
	p.Op = panics
	if s, e := p.New(nil); s != nil || !errors.Is(e, ErrIncompatibleOperator) {
		t.Fatalf("TestOperatorProbe: Panic Not Recovered: %v", e)
	}
}

// Reconstruction through a dense sensing matrix exercises the full pipeline
// with a non-trivial adjoint.
func TestMatrixReconstruction(t *testing.T) {

	// Overdetermined system with a nonnegative solution [2, 1].
	a := mat.NewDense(3, 2, []float64{
		1, 0,
		0, 2,
		0, 0,
	})
	truth := []float64{2, 1}
	y := []float64{2, 2, 0}

	p := Defaults()
	p.Y = y
	p.Op = MatrixOperator(a)
	p.Tau = []float64{0}
	p.Noise = Gaussian
	p.Truth = truth
	p.Save = TraceFlags{ReconError: true}
	p.Stop = Termination{
		Criterion:     StopIterChange,
		Tolerance:     1e-10,
		MinIterations: 5,
		MaxIterations: 500,
	}

	s, e := p.New(nil)
	if e != nil {
		panic(e)
	}
	r := s.Run()

	switch {
	case !almostEqual(r.X, truth, 1e-6):
		t.Fatal("TestMatrixReconstruction: Bad Solution")
	case len(r.ReconError) != r.Iterations:
		t.Fatal("TestMatrixReconstruction: Bad Trace Length")
	case r.ReconError[r.Iterations-1] > 1e-6:
		t.Fatal("TestMatrixReconstruction: Error Not Reduced")
	}
}
