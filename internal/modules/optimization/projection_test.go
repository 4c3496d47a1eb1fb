package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
)

func TestProjectCappedSimplex(t *testing.T) {
	tests := []struct {
		name     string
		x        []float64
		bounds   Bounds
		expected []float64
	}{
		{"already feasible", []float64{0.3, 0.7}, DefaultBounds(2), []float64{0.3, 0.7}},
		{"shift down", []float64{0.6, 0.6}, DefaultBounds(2), []float64{0.5, 0.5}},
		{"clip negative", []float64{1.5, -0.5}, DefaultBounds(2), []float64{1, 0}},
		{"respect caps", []float64{1, 0, 0}, UniformBounds(3, 0, 0.4), []float64{0.4, 0.3, 0.3}},
		{"respect floors", []float64{0, 0, 1}, UniformBounds(3, 0.2, 1), []float64{0.2, 0.2, 0.6}},
		{"single asset", []float64{0.3}, DefaultBounds(1), []float64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := projectCappedSimplex(tt.x, tt.bounds)
			assert.InDeltaSlice(t, tt.expected, w, 1e-9)
			assert.InDelta(t, 1.0, floats.Sum(w), 1e-12)
			for i := range w {
				assert.GreaterOrEqual(t, w[i], tt.bounds[i].Lower)
				assert.LessOrEqual(t, w[i], tt.bounds[i].Upper)
			}
		})
	}
}

func TestInitialGuess(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25, 0.25}, InitialGuess(DefaultBounds(4)), 1e-12)
	assert.InDeltaSlice(t, []float64{0.6, 0.2, 0.2}, InitialGuess(Bounds{{0.6, 1}, {0, 1}, {0, 1}}), 1e-9)
}
