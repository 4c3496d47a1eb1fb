package optimization

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Performance returns the expected return μ'w and volatility sqrt(w'Σw) of a weight vector.
// A quadratic form that is slightly negative from floating error is clamped to zero.
func Performance(weights []float64, stats *Statistics) (float64, float64) {
	expectedReturn := floats.Dot(weights, stats.mean)
	return expectedReturn, math.Sqrt(quadraticForm(weights, stats.cov))
}

// Variance returns the portfolio variance, defined as the square of the
// volatility reported by Performance.
func Variance(weights []float64, stats *Statistics) float64 {
	_, volatility := Performance(weights, stats)
	return volatility * volatility
}

// Evaluate builds a Portfolio from a weight vector.
func Evaluate(weights []float64, stats *Statistics, riskFreeRate float64) Portfolio {
	ret, vol := Performance(weights, stats)
	return Portfolio{
		Weights:    append([]float64(nil), weights...),
		Return:     ret,
		Volatility: vol,
		Sharpe:     SharpeRatio(ret, vol, riskFreeRate),
	}
}

func quadraticForm(weights []float64, cov *mat.SymDense) float64 {
	w := mat.NewVecDense(len(weights), weights)
	return math.Max(0, mat.Inner(w, cov, w))
}
