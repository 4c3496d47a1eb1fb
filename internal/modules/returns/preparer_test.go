package returns

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func tableFromPrices(assets []string, prices [][]float64) *PriceTable {
	dates := make([]time.Time, len(prices))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return &PriceTable{Assets: assets, Dates: dates, Prices: prices}
}

func TestPreparer_Returns(t *testing.T) {
	nan := math.NaN()
	table := tableFromPrices([]string{"A", "B"}, [][]float64{
		{nan, 100},
		{10, 110},
		{nan, 99},
		{12, 99},
	})

	returns, err := NewPreparer(252, false, zerolog.Nop()).Returns(table)
	require.NoError(t, err)

	// The first period has no base price for A and is dropped; the gap at row 2 is forward-filled.
	rows, cols := returns.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.InDeltaSlice(t, []float64{0, 0.2}, mat.Col(nil, 0, returns), 1e-12)
	assert.InDeltaSlice(t, []float64{-0.1, 0}, mat.Col(nil, 1, returns), 1e-12)
}

func TestPreparer_Prepare(t *testing.T) {
	table := tableFromPrices([]string{"A", "B"}, [][]float64{
		{100, 50},
		{101, 49},
		{103, 50},
		{102, 52},
		{104, 51},
	})

	stats, err := NewPreparer(252, false, zerolog.Nop()).Prepare(table)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, stats.Assets())

	a := []float64{0.01, 2.0 / 101, -1.0 / 103, 2.0 / 102}
	meanA := (a[0] + a[1] + a[2] + a[3]) / 4
	assert.InDelta(t, meanA*252, stats.MeanReturns()[0], 1e-12)

	var variance float64
	for _, r := range a {
		variance += (r - meanA) * (r - meanA)
	}
	variance /= 3
	cov := stats.Covariance()
	assert.InDelta(t, variance*252, cov[0][0], 1e-12)
	assert.Equal(t, cov[0][1], cov[1][0])
}

func TestPreparer_Shrink(t *testing.T) {
	table := tableFromPrices([]string{"A", "B", "C"}, [][]float64{
		{100, 50, 20},
		{101, 49, 20.5},
		{103, 50, 20.2},
		{102, 52, 20.1},
		{104, 51, 20.6},
		{105, 53, 20.4},
	})

	plain, err := NewPreparer(252, false, zerolog.Nop()).Prepare(table)
	require.NoError(t, err)
	shrunk, err := NewPreparer(252, false, zerolog.Nop()).WithShrink(true).Prepare(table)
	require.NoError(t, err)

	// Shrinkage toward constant correlation keeps the variances.
	for i := 0; i < 3; i++ {
		assert.InDelta(t, plain.Covariance()[i][i], shrunk.Covariance()[i][i], 1e-12)
	}
	assert.Equal(t, plain.MeanReturns(), shrunk.MeanReturns())
	assert.NotEqual(t, plain.Covariance()[0][1], shrunk.Covariance()[0][1])
}

func TestShrinkConstantCorrelation_IntensityCapped(t *testing.T) {
	sample := [][]float64{
		{0.04, 0.01, 0.0},
		{0.01, 0.09, 0.02},
		{0.0, 0.02, 0.16},
	}
	_, intensity := shrinkConstantCorrelation(sample)
	assert.GreaterOrEqual(t, intensity, 0.0)
	assert.LessOrEqual(t, intensity, maxShrinkage)

	single, intensity := shrinkConstantCorrelation([][]float64{{0.04}})
	assert.Equal(t, 0.0, intensity)
	assert.Equal(t, [][]float64{{0.04}}, single)
}

func TestPreparer_InsufficientData(t *testing.T) {
	table := tableFromPrices([]string{"A"}, [][]float64{{100}, {101}})

	_, err := NewPreparer(252, false, zerolog.Nop()).Prepare(table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}
