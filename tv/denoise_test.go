// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tv

import (
	"math"
	"testing"

	"github.com/curioloop/spiral/spiral"
)

func testSub() spiral.Subproblem {
	return spiral.Subproblem{MinIterations: 1, MaxIterations: 200, Tolerance: 1e-12}
}

// A nonpositive weight degenerates to clipping the step at zero.
func TestDenoiseDegenerate(t *testing.T) {

	d := NewDenoiser(1, 4, Anisotropic)
	got := d.Denoise([]float64{1, -2, 0.5, -0.1}, []float64{0}, 0, testSub())

	want := []float64{1, 0, 0.5, 0}
	for i, v := range got {
		if v != want[i] {
			t.Fatalf("TestDenoiseDegenerate: got %v", got)
		}
	}
}

// A constant image is a fixed point of the denoiser for any weight.
func TestDenoiseConstantImage(t *testing.T) {

	d := NewDenoiser(2, 3, Isotropic)
	step := []float64{4, 4, 4, 4, 4, 4}
	got := d.Denoise(step, []float64{0.7}, 0, testSub())

	for i, v := range got {
		if v != step[i] {
			t.Fatalf("TestDenoiseConstantImage: got %v", got)
		}
	}
}

// On a two-pixel signal the proximal map has a closed form: the difference
// shrinks toward the mean by λ on each side.
func TestDenoiseTwoPixel(t *testing.T) {

	d := NewDenoiser(1, 2, Anisotropic)
	got := d.Denoise([]float64{3, 1}, []float64{0.5}, 0, testSub())

	switch {
	case math.Abs(got[0]-2.5) > 1e-6:
		t.Fatalf("TestDenoiseTwoPixel: got %v", got)
	case math.Abs(got[1]-1.5) > 1e-6:
		t.Fatalf("TestDenoiseTwoPixel: got %v", got)
	}
}

// The denoised image never beats the input on the subproblem objective
// ½‖x-b‖² + λ·TV(x), and never violates the shifted lower bound.
func TestDenoiseObjectiveAndBound(t *testing.T) {

	rows, cols := 2, 2
	b := []float64{0, 4, -1, 0}
	lambda := 0.5
	offset := 0.5

	for _, kind := range []Kind{Anisotropic, Isotropic} {
		d := NewDenoiser(rows, cols, kind)
		x := d.Denoise(b, []float64{lambda}, offset, testSub())

		fit := 0.0
		for i, v := range x {
			if v < -offset-1e-12 {
				t.Fatalf("TestDenoiseObjectiveAndBound: Bound Violated At %d", i)
			}
			fit += (v - b[i]) * (v - b[i]) / 2
		}
		got := fit + lambda*Norm(x, rows, cols, kind)

		base := make([]float64, len(b))
		for i, v := range b {
			base[i] = math.Max(v, -offset)
		}
		baseFit := 0.0
		for i, v := range base {
			baseFit += (v - b[i]) * (v - b[i]) / 2
		}
		want := baseFit + lambda*Norm(base, rows, cols, kind)

		if got > want+1e-9 {
			t.Fatalf("TestDenoiseObjectiveAndBound: %v > %v", got, want)
		}
	}
}

// End-to-end reconstruction with the TV penalty plugged into the solver.
func TestSolverWithTVPenalty(t *testing.T) {

	n := 4
	clone := func(v []float64) []float64 {
		if len(v) != n {
			panic("bound check error")
		}
		out := make([]float64, n)
		copy(out, v)
		return out
	}

	p := spiral.Defaults()
	p.Y = []float64{5, 5, 1, 1}
	p.Op = spiral.Operator{Forward: clone, Adjoint: clone}
	p.Tau = []float64{0.08}
	p.Noise = spiral.Gaussian
	p.Penalty = spiral.TV
	p.Rows, p.Cols = 2, 2
	p.Sub.Denoiser = NewDenoiser(2, 2, Anisotropic)
	p.Save = spiral.TraceFlags{Objective: true}
	p.Stop = spiral.Termination{
		Criterion:     spiral.StopIterChange,
		Tolerance:     1e-8,
		MinIterations: 3,
		MaxIterations: 60,
	}

	s, e := p.New(nil)
	if e != nil {
		panic(e)
	}
	r := s.Run()

	switch {
	case r.Iterations < 3 || r.Iterations > 60:
		t.Fatal("TestSolverWithTVPenalty: Iterations Out Of Bounds")
	case len(r.Objective) != r.Iterations:
		t.Fatal("TestSolverWithTVPenalty: Bad Trace Length")
	case r.Objective[r.Iterations-1] > r.Objective[0]+1e-12:
		t.Fatal("TestSolverWithTVPenalty: Objective Not Reduced")
	}
	for i, v := range r.X {
		if v < 0 || v > 5+1e-9 {
			t.Fatalf("TestSolverWithTVPenalty: Component %d Out Of Range", i)
		}
	}
	// The penalty pulls the two plateaus toward each other.
	if !(r.X[0] < 5 && r.X[2] > 1) {
		t.Fatalf("TestSolverWithTVPenalty: No Smoothing Observed: %v", r.X)
	}
}
