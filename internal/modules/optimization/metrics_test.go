package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uncorrelatedStats(t *testing.T, mean []float64, variances []float64) *Statistics {
	t.Helper()
	n := len(mean)
	assets := make([]string, n)
	cov := make([][]float64, n)
	for i := range cov {
		assets[i] = string(rune('A' + i))
		cov[i] = make([]float64, n)
		cov[i][i] = variances[i]
	}
	stats, err := NewStatistics(assets, mean, cov)
	require.NoError(t, err)
	return stats
}

func threeAssetStats(t *testing.T) *Statistics {
	t.Helper()
	stats, err := NewStatistics(
		[]string{"AAPL", "MSFT", "BND"},
		[]float64{0.15, 0.11, 0.04},
		[][]float64{
			{0.090, 0.030, 0.002},
			{0.030, 0.060, 0.001},
			{0.002, 0.001, 0.010},
		},
	)
	require.NoError(t, err)
	return stats
}

func TestPerformance(t *testing.T) {
	stats := uncorrelatedStats(t, []float64{0.10, 0.10}, []float64{0.04, 0.09})

	ret, vol := Performance([]float64{0.5, 0.5}, stats)
	assert.InDelta(t, 0.10, ret, 1e-12)
	assert.InDelta(t, math.Sqrt(0.25*0.04+0.25*0.09), vol, 1e-12)

	assert.InDelta(t, vol*vol, Variance([]float64{0.5, 0.5}, stats), 1e-15)
}

func TestPerformance_VolatilityNeverNegative(t *testing.T) {
	stats := threeAssetStats(t)

	for _, w := range [][]float64{
		{0, 0, 0},
		{1, 0, 0},
		{-0.5, 1.2, 0.3},
		{0.2, 0.3, 0.5},
	} {
		_, vol := Performance(w, stats)
		assert.GreaterOrEqual(t, vol, 0.0)
		assert.False(t, math.IsNaN(vol))
	}
}

func TestEvaluate(t *testing.T) {
	stats := uncorrelatedStats(t, []float64{0.12, 0.08}, []float64{0.04, 0.09})

	p := Evaluate([]float64{1, 0}, stats, 0.02)
	assert.InDelta(t, 0.12, p.Return, 1e-12)
	assert.InDelta(t, 0.2, p.Volatility, 1e-12)
	assert.InDelta(t, 0.5, p.Sharpe, 1e-12)
	assert.Equal(t, []float64{1, 0}, p.Weights)
}

func TestNegativeSharpe(t *testing.T) {
	stats := uncorrelatedStats(t, []float64{0.12, 0.08}, []float64{0.04, 0.09})
	objective := NegativeSharpe(stats, 0.02)

	assert.InDelta(t, -0.5, objective([]float64{1, 0}), 1e-12)
	assert.Equal(t, DegenerateSharpePenalty, objective([]float64{0, 0}))
}

func TestSharpeRatio_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, SharpeRatio(0.1, 0, 0.02))
	assert.Equal(t, 0.0, SharpeRatio(0.1, DegenerateVolatility/2, 0.02))
	assert.InDelta(t, 0.4, SharpeRatio(0.1, 0.2, 0.02), 1e-12)
}

func TestVarianceObjective(t *testing.T) {
	stats := uncorrelatedStats(t, []float64{0.10, 0.10}, []float64{0.04, 0.09})
	objective := VarianceObjective(stats)

	assert.InDelta(t, 0.04, objective([]float64{1, 0}), 1e-12)
	assert.InDelta(t, 0.09, objective([]float64{0, 1}), 1e-12)
}
