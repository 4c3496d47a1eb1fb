package testing

import (
	"time"

	"github.com/aristath/frontier/internal/modules/optimization"
)

// PricesCSVFixture is a small daily price table for three assets.
const PricesCSVFixture = `date,AAPL,MSFT,BND
2024-01-02,185.64,370.87,72.10
2024-01-03,184.25,370.60,72.35
2024-01-04,181.91,367.94,72.20
2024-01-05,181.18,367.75,72.05
2024-01-08,185.56,374.69,72.30
2024-01-09,185.14,375.79,72.41
2024-01-10,186.19,382.77,72.38
2024-01-11,185.59,384.63,72.60
2024-01-12,185.92,388.47,72.75
2024-01-16,183.63,390.27,72.52
2024-01-17,182.68,389.47,72.31
2024-01-18,188.63,393.87,72.44
`

// NewStatisticsFixture returns well-conditioned annualized statistics for three assets.
func NewStatisticsFixture() *optimization.Statistics {
	stats, err := optimization.NewStatistics(
		[]string{"AAPL", "MSFT", "BND"},
		[]float64{0.15, 0.11, 0.04},
		[][]float64{
			{0.090, 0.030, 0.002},
			{0.030, 0.060, 0.001},
			{0.002, 0.001, 0.010},
		},
	)
	if err != nil {
		panic(err)
	}
	return stats
}

// NewReportFixture returns a small, fully populated report without running the optimizer.
func NewReportFixture() *optimization.Report {
	stats := NewStatisticsFixture()
	maxSharpe := optimization.Evaluate([]float64{0.45, 0.35, 0.20}, stats, 0.02)
	minVariance := optimization.Evaluate([]float64{0.05, 0.10, 0.85}, stats, 0.02)

	return &optimization.Report{
		Assets:       stats.Assets(),
		MeanReturns:  stats.MeanReturns(),
		Covariance:   stats.Covariance(),
		RiskFreeRate: 0.02,
		Bounds:       optimization.DefaultBounds(stats.N()),
		MaxSharpe:    maxSharpe,
		MinVariance:  minVariance,
		Frontier: []optimization.FrontierPoint{
			{TargetReturn: minVariance.Return, Volatility: minVariance.Volatility, Weights: minVariance.Weights, Status: optimization.StatusConverged},
			{TargetReturn: maxSharpe.Return, Volatility: maxSharpe.Volatility, Weights: maxSharpe.Weights, Status: optimization.StatusConverged},
		},
		SharpeRatio:     maxSharpe.Sharpe,
		ConvergedPoints: 2,
		CreatedAt:       time.Date(2024, 1, 18, 12, 0, 0, 0, time.UTC),
		DurationMs:      42,
	}
}
