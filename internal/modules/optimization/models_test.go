package optimization

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatistics_Validation(t *testing.T) {
	validCov := [][]float64{{0.04, 0.01}, {0.01, 0.09}}

	tests := []struct {
		name   string
		assets []string
		mean   []float64
		cov    [][]float64
		field  string
	}{
		{"no assets", nil, nil, nil, "assets"},
		{"empty ticker", []string{"A", ""}, []float64{0.1, 0.1}, validCov, "assets"},
		{"duplicate ticker", []string{"A", "A"}, []float64{0.1, 0.1}, validCov, "assets"},
		{"ticker with comma", []string{"A", "B,C"}, []float64{0.1, 0.1}, validCov, "assets"},
		{"mean length mismatch", []string{"A", "B"}, []float64{0.1}, validCov, "mean_returns"},
		{"non-finite mean", []string{"A", "B"}, []float64{0.1, nan()}, validCov, "mean_returns"},
		{"covariance rows mismatch", []string{"A", "B"}, []float64{0.1, 0.1}, [][]float64{{0.04, 0.01}}, "covariance"},
		{"non-square covariance", []string{"A", "B"}, []float64{0.1, 0.1}, [][]float64{{0.04, 0.01}, {0.01}}, "covariance"},
		{"asymmetric covariance", []string{"A", "B"}, []float64{0.1, 0.1}, [][]float64{{0.04, 0.01}, {0.02, 0.09}}, "covariance"},
		{"not positive semi-definite", []string{"A", "B"}, []float64{0.1, 0.1}, [][]float64{{0.04, 0.5}, {0.5, 0.09}}, "covariance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := NewStatistics(tt.assets, tt.mean, tt.cov)
			require.Error(t, err)
			assert.Nil(t, stats)
			assert.True(t, errors.Is(err, ErrMalformedInput))

			var inputErr *InputError
			require.True(t, errors.As(err, &inputErr))
			assert.Equal(t, tt.field, inputErr.Field)
		})
	}
}

func TestNewStatistics_CopiesInputs(t *testing.T) {
	assets := []string{"A", "B"}
	mean := []float64{0.1, 0.2}
	cov := [][]float64{{0.04, 0.01}, {0.01, 0.09}}

	stats, err := NewStatistics(assets, mean, cov)
	require.NoError(t, err)

	assets[0] = "Z"
	mean[0] = 9
	cov[0][0] = 9

	assert.Equal(t, []string{"A", "B"}, stats.Assets())
	assert.Equal(t, []float64{0.1, 0.2}, stats.MeanReturns())
	assert.Equal(t, 0.04, stats.Covariance()[0][0])
	assert.Equal(t, 2, stats.N())
}

func TestNewStatistics_AcceptsSingularCovariance(t *testing.T) {
	_, err := NewStatistics([]string{"A", "B"}, []float64{0.1, 0.1}, [][]float64{{0.04, 0.04}, {0.04, 0.04}})
	assert.NoError(t, err)
}

func TestResult_Err(t *testing.T) {
	assert.NoError(t, Result{Status: StatusConverged}.Err())
	assert.ErrorIs(t, Result{Status: StatusNotConverged, Iterations: 100}.Err(), ErrNotConverged)
	assert.ErrorIs(t, Result{Status: StatusInfeasible}.Err(), ErrInfeasible)
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(FrontierPoint{Status: StatusInfeasible})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"infeasible"`)

	var p FrontierPoint
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, StatusInfeasible, p.Status)

	var s Status
	assert.Error(t, s.UnmarshalText([]byte("bogus")))
}
