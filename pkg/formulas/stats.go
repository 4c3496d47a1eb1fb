// Package formulas provides small statistical helpers for price and return series.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization factor for daily series.
const TradingDaysPerYear = 252

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// AnnualizedReturn scales the mean periodic return to a yearly figure.
func AnnualizedReturn(returns []float64, periodsPerYear float64) float64 {
	return Mean(returns) * periodsPerYear
}

// AnnualizedVolatility scales the standard deviation of periodic returns by sqrt(periodsPerYear).
func AnnualizedVolatility(returns []float64, periodsPerYear float64) float64 {
	return StdDev(returns) * math.Sqrt(periodsPerYear)
}

// CalculateReturns converts prices to percentage returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]; a missing or zero base price
// yields NaN for that period.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev == 0 || math.IsNaN(prev) || math.IsNaN(cur) {
			returns[i-1] = math.NaN()
			continue
		}
		returns[i-1] = (cur - prev) / prev
	}

	return returns
}

// ForwardFill replaces NaN values with the last valid value before them.
// Leading NaNs stay NaN. The input is not modified.
func ForwardFill(values []float64) []float64 {
	filled := make([]float64, len(values))
	copy(filled, values)

	last := math.NaN()
	for i, v := range filled {
		if math.IsNaN(v) {
			filled[i] = last
			continue
		}
		last = v
	}
	return filled
}

// CalculateAnnualReturn calculates the compound annual growth rate of a series of
// periodic returns: ((1+r1)*(1+r2)*...*(1+rN))^(periodsPerYear/N) - 1.
// Series shorter than three periods return the plain cumulative return.
func CalculateAnnualReturn(returns []float64, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}

	cumulative := 1.0
	for _, r := range returns {
		cumulative *= (1 + r)
	}

	numPeriods := float64(len(returns))
	if numPeriods < 3 {
		return cumulative - 1
	}

	return math.Pow(cumulative, periodsPerYear/numPeriods) - 1
}
