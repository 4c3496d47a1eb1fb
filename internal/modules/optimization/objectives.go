package optimization

// Objective is a scalar function of a weight vector. Fixed arguments such as the
// statistics and the risk-free rate are captured by the closure.
type Objective func(weights []float64) float64

const (
	// DegenerateVolatility is the volatility below which the Sharpe ratio is undefined.
	DegenerateVolatility = 1e-12
	// DegenerateSharpePenalty replaces the negative Sharpe ratio of a zero-volatility
	// portfolio so the solver is pushed away from that region instead of dividing by zero.
	DegenerateSharpePenalty = 1e6
)

// NegativeSharpe returns -(return - riskFreeRate) / volatility, suitable for minimization.
func NegativeSharpe(stats *Statistics, riskFreeRate float64) Objective {
	return func(weights []float64) float64 {
		ret, vol := Performance(weights, stats)
		if vol <= DegenerateVolatility {
			return DegenerateSharpePenalty
		}
		return -(ret - riskFreeRate) / vol
	}
}

// VarianceObjective returns the portfolio variance.
func VarianceObjective(stats *Statistics) Objective {
	return func(weights []float64) float64 {
		return Variance(weights, stats)
	}
}

// SharpeRatio is (return - riskFreeRate) / volatility, or 0 for a degenerate volatility.
func SharpeRatio(ret, vol, riskFreeRate float64) float64 {
	if vol <= DegenerateVolatility {
		return 0
	}
	return (ret - riskFreeRate) / vol
}
