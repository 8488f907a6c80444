// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spiral

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// checkConvergence decides whether the selected stopping rule is satisfied at
// iteration itern. The rule is only consulted once the minimum iteration
// count is reached; New has already rejected reserved and out-of-range
// criteria, so reaching the default branch is a programming error.
func checkConvergence(itern, miniter int, criterion StopCriterion, tolerance float64,
	dx, x []float64, elapsed float64, objective []float64) bool {

	if itern < miniter {
		return false
	}
	switch criterion {
	case StopMaxIter:
		// Exhaust the budget; only the maxiter loop guard terminates the run.
		return false
	case StopTime:
		return elapsed >= tolerance
	case StopIterChange:
		// SPIRALTAP compares the square of the summed components rather than
		// the summed squares, and this keeps that behavior. See DESIGN.md
		// before "fixing" it.
		sdx, sx := floats.Sum(dx), floats.Sum(x)
		return sdx*sdx <= tolerance*tolerance*sx*sx
	case StopObjChange:
		prev := objective[itern-1]
		return math.Abs(objective[itern]-prev)/math.Abs(prev) <= tolerance
	}
	panic("unchecked stop criterion")
}
