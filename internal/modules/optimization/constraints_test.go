package optimization

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nan() float64 { return math.NaN() }

func TestBounds_Validate(t *testing.T) {
	assert.NoError(t, DefaultBounds(3).Validate(3))

	tests := []struct {
		name   string
		bounds Bounds
	}{
		{"length mismatch", DefaultBounds(2)},
		{"lower above upper", Bounds{{0, 1}, {0.6, 0.5}, {0, 1}}},
		{"nan", Bounds{{0, 1}, {nan(), 1}, {0, 1}}},
		{"infinite", Bounds{{0, 1}, {0, math.Inf(1)}, {0, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bounds.Validate(3)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedInput))
		})
	}
}

func TestBounds_Clip(t *testing.T) {
	b := Bounds{{0, 0.5}, {0.1, 1}}
	assert.Equal(t, []float64{0.5, 0.1}, b.Clip([]float64{0.9, -0.2}))
}

func TestConstraintSet_Violation(t *testing.T) {
	cs := NewConstraintSet(DefaultBounds(2)).SumToOne().TargetReturn([]float64{0.12, 0.08}, 0.10)

	assert.InDelta(t, 0.0, cs.Violation([]float64{0.5, 0.5}), 1e-12)
	assert.InDelta(t, 0.2, cs.Violation([]float64{0.6, 0.6}), 1e-12)
	assert.InDelta(t, 0.3, cs.Violation([]float64{1.3, -0.3}), 1e-12)
	assert.Len(t, cs.Constraints(), 2)
}

func TestConstraintSet_SumToOneIsIdempotent(t *testing.T) {
	cs := NewConstraintSet(DefaultBounds(2)).SumToOne().SumToOne()
	assert.Len(t, cs.Constraints(), 1)
}

func TestConstraintSet_CustomConstraints(t *testing.T) {
	cs := NewConstraintSet(DefaultBounds(2)).
		SumToOne().
		Inequality("cap_first", func(w []float64) float64 { return 0.4 - w[0] }).
		Equality("pin_second", func(w []float64) float64 { return w[1] - 0.6 })

	assert.InDelta(t, 0.0, cs.Violation([]float64{0.4, 0.6}), 1e-12)
	assert.InDelta(t, 0.1, cs.Violation([]float64{0.5, 0.5}), 1e-12)

	constraints := cs.Constraints()
	require.Len(t, constraints, 3)
	assert.Equal(t, InequalityConstraint, constraints[1].Kind)
	assert.Equal(t, "pin_second", constraints[2].Name)
}

func TestConstraintSet_BoundsAreCopied(t *testing.T) {
	bounds := DefaultBounds(2)
	cs := NewConstraintSet(bounds)
	bounds[0].Upper = 0.1
	assert.Equal(t, 1.0, cs.Bounds()[0].Upper)
}

func TestCheckFeasibility(t *testing.T) {
	mean := []float64{0.12, 0.08}

	t.Run("feasible", func(t *testing.T) {
		_, ok := NewConstraintSet(DefaultBounds(2)).SumToOne().TargetReturn(mean, 0.10).checkFeasibility(1e-8)
		assert.True(t, ok)
	})

	t.Run("upper bounds too tight", func(t *testing.T) {
		closest, ok := NewConstraintSet(UniformBounds(2, 0, 0.4)).SumToOne().checkFeasibility(1e-8)
		assert.False(t, ok)
		assert.Len(t, closest, 2)
	})

	t.Run("lower bounds too loose", func(t *testing.T) {
		_, ok := NewConstraintSet(UniformBounds(2, 0.6, 1)).SumToOne().checkFeasibility(1e-8)
		assert.False(t, ok)
	})

	t.Run("target above attainable", func(t *testing.T) {
		closest, ok := NewConstraintSet(DefaultBounds(2)).SumToOne().TargetReturn(mean, 0.2).checkFeasibility(1e-8)
		assert.False(t, ok)
		assert.InDeltaSlice(t, []float64{1, 0}, closest, 1e-12)
	})

	t.Run("target below attainable", func(t *testing.T) {
		closest, ok := NewConstraintSet(DefaultBounds(2)).SumToOne().TargetReturn(mean, 0.01).checkFeasibility(1e-8)
		assert.False(t, ok)
		assert.InDeltaSlice(t, []float64{0, 1}, closest, 1e-12)
	})
}

func TestAttainableReturns(t *testing.T) {
	mean := []float64{0.04, 0.15, 0.11}
	bounds := Bounds{{0.1, 0.5}, {0, 0.6}, {0, 1}}

	lo, hi, wLo, wHi := attainableReturns(mean, bounds)

	assert.InDeltaSlice(t, []float64{0.1, 0.6, 0.3}, wHi, 1e-12)
	assert.InDelta(t, 0.1*0.04+0.6*0.15+0.3*0.11, hi, 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 0, 0.5}, wLo, 1e-12)
	assert.InDelta(t, 0.5*0.04+0.5*0.11, lo, 1e-12)
}

func TestConstraintSet_ScaledViolation(t *testing.T) {
	cs := NewConstraintSet(DefaultBounds(2)).SumToOne().TargetReturn([]float64{0.12, 0.08}, 0.10)

	w := []float64{0.6, 0.4}
	assert.InDelta(t, 0.004, cs.Violation(w), 1e-12)
	// Return gaps are measured against the 0.04 spread of the means.
	assert.InDelta(t, 0.1, cs.scaledViolation(w), 1e-12)
	assert.InDelta(t, 0.8, cs.scaledViolation([]float64{1.3, -0.3}), 1e-12)
}

func TestCheckFeasibility_DailyScale(t *testing.T) {
	mean := []float64{0.12 / 252, 0.08 / 252}
	cs := NewConstraintSet(DefaultBounds(2)).SumToOne().TargetReturn(mean, mean[0]+1e-9)

	closest, ok := cs.checkFeasibility(1e-8)
	assert.False(t, ok)
	assert.InDeltaSlice(t, []float64{1, 0}, closest, 1e-12)
}
