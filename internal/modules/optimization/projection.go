package optimization

import "math"

const projectionIterations = 200

// projectCappedSimplex returns the Euclidean projection of x onto
// {w : lower ≤ w ≤ upper, Σw = 1}. The projection has the form
// w_i = clip(x_i - τ, lower_i, upper_i); τ is found by bisection because the
// clipped sum is monotone in τ. The caller guarantees Σlower ≤ 1 ≤ Σupper.
func projectCappedSimplex(x []float64, bounds Bounds) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range x {
		lo = math.Min(lo, x[i]-bounds[i].Upper)
		hi = math.Max(hi, x[i]-bounds[i].Lower)
	}

	w := make([]float64, n)
	clipped := func(tau float64) float64 {
		sum := 0.0
		for i := range x {
			w[i] = math.Max(bounds[i].Lower, math.Min(bounds[i].Upper, x[i]-tau))
			sum += w[i]
		}
		return sum
	}

	for iter := 0; iter < projectionIterations && hi-lo > 1e-15*math.Max(1, math.Abs(hi)); iter++ {
		mid := lo + (hi-lo)/2
		if clipped(mid) > 1 {
			lo = mid
		} else {
			hi = mid
		}
	}
	sum := clipped(lo + (hi-lo)/2)

	absorbResidual(w, bounds, 1-sum)
	return w
}

// absorbResidual moves the leftover budget onto the coordinate with the most room
// in the needed direction, so Σw = 1 holds to rounding.
func absorbResidual(w []float64, bounds Bounds, residual float64) {
	if residual == 0 {
		return
	}
	best, room := -1, 0.0
	for i := range w {
		var slack float64
		if residual > 0 {
			slack = bounds[i].Upper - w[i]
		} else {
			slack = w[i] - bounds[i].Lower
		}
		if slack > room {
			best, room = i, slack
		}
	}
	if best < 0 {
		return
	}
	w[best] += math.Copysign(math.Min(math.Abs(residual), room), residual)
}
