// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tv

import (
	"math"
	"testing"
)

func TestNorm(t *testing.T) {

	tests := []struct {
		name       string
		x          []float64
		rows, cols int
		kind       Kind
		want       float64
	}{
		{"Anisotropic", []float64{1, 2, 3, 4}, 2, 2, Anisotropic, 6},
		{"Isotropic", []float64{1, 2, 3, 4}, 2, 2, Isotropic, math.Sqrt(5) + 3},
		{"ConstantImage", []float64{7, 7, 7, 7, 7, 7}, 2, 3, Anisotropic, 0},
		{"SingleRow", []float64{1, 4, 2}, 1, 3, Anisotropic, 5},
	}

	for _, tt := range tests {
		got := Norm(tt.x, tt.rows, tt.cols, tt.kind)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Fatalf("TestNorm: %s: got %v", tt.name, got)
		}
	}
}

// div must be the negative adjoint of grad: <grad(x), (p,q)> == <x, div(p,q)>.
func TestGradDivAdjoint(t *testing.T) {

	rows, cols := 3, 4
	x := []float64{
		2, 1, 0, 3,
		5, 2, 2, 1,
		0, 4, 1, 2,
	}
	p := []float64{1, -1, 0.5, 0, 2, -0.5, 1, 1}
	q := []float64{-1, 0.5, 2, 1, 0, -2, 0.5, 1, -1}

	gp := make([]float64, (rows-1)*cols)
	gq := make([]float64, rows*(cols-1))
	grad(x, gp, gq, rows, cols)

	lhs := 0.0
	for i, v := range gp {
		lhs += v * p[i]
	}
	for i, v := range gq {
		lhs += v * q[i]
	}

	d := make([]float64, rows*cols)
	div(p, q, d, rows, cols)
	rhs := 0.0
	for i, v := range d {
		rhs += v * x[i]
	}

	if math.Abs(lhs-rhs) > 1e-12 {
		t.Fatalf("TestGradDivAdjoint: %v != %v", lhs, rhs)
	}
}

func TestProject(t *testing.T) {

	rows, cols := 2, 2
	p := []float64{3, -0.5}
	q := []float64{-4, 0.2}

	aniso := func(v []float64) []float64 {
		out := make([]float64, len(v))
		copy(out, v)
		return out
	}
	pa, qa := aniso(p), aniso(q)
	project(pa, qa, rows, cols, Anisotropic)
	switch {
	case pa[0] != 1 || pa[1] != -0.5:
		t.Fatal("TestProject: Bad Anisotropic P")
	case qa[0] != -1 || qa[1] != 0.2:
		t.Fatal("TestProject: Bad Anisotropic Q")
	}

	pi, qi := aniso(p), aniso(q)
	project(pi, qi, rows, cols, Isotropic)
	// Pixel (0,0) pairs p=3 with q=-4, norm 5.
	switch {
	case math.Abs(pi[0]-3.0/5) > 1e-15 || math.Abs(qi[0]+4.0/5) > 1e-15:
		t.Fatal("TestProject: Bad Isotropic Pair")
	case pi[1] != -0.5 || qi[1] != 0.2:
		t.Fatal("TestProject: Feasible Entries Modified")
	}
}
