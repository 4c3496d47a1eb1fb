package formulas

import (
	"math"
	"testing"
)

func makeReturns(value float64, count int) []float64 {
	returns := make([]float64, count)
	for i := range returns {
		returns[i] = value
	}
	return returns
}

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 99, 0, 10})

	expected := []float64{0.1, -0.1}
	for i, want := range expected {
		if math.Abs(returns[i]-want) > 1e-12 {
			t.Errorf("returns[%d] = %f, want %f", i, returns[i], want)
		}
	}
	if !math.IsNaN(returns[3]) {
		t.Errorf("return after a zero price should be NaN, got %f", returns[3])
	}
	if len(CalculateReturns([]float64{100})) != 0 {
		t.Error("a single price should produce no returns")
	}
}

func TestForwardFill(t *testing.T) {
	nan := math.NaN()
	filled := ForwardFill([]float64{nan, 1, nan, nan, 4})

	if !math.IsNaN(filled[0]) {
		t.Errorf("leading NaN should stay NaN, got %f", filled[0])
	}
	for i, want := range []float64{1, 1, 1, 4} {
		if filled[i+1] != want {
			t.Errorf("filled[%d] = %f, want %f", i+1, filled[i+1], want)
		}
	}
}

func TestAnnualized(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.02, 0.0}

	if got := AnnualizedReturn(returns, 252); math.Abs(got-0.005*252) > 1e-12 {
		t.Errorf("AnnualizedReturn = %f, want %f", got, 0.005*252)
	}
	want := StdDev(returns) * math.Sqrt(252)
	if got := AnnualizedVolatility(returns, 252); math.Abs(got-want) > 1e-12 {
		t.Errorf("AnnualizedVolatility = %f, want %f", got, want)
	}
	if StdDev([]float64{1}) != 0 {
		t.Error("standard deviation of a single value should be 0")
	}
}

func TestCalculateAnnualReturn(t *testing.T) {
	tests := []struct {
		name      string
		returns   []float64
		expected  float64
		tolerance float64
	}{
		{"empty returns", []float64{}, 0.0, 0.0},
		{"one year of small positive returns", makeReturns(0.001, 252), 0.286, 0.01},
		{"half year of returns", makeReturns(0.002, 126), 0.654, 0.01},
		{"one year of negative returns", makeReturns(-0.001, 252), -0.221, 0.01},
		{"very short period", []float64{0.01, 0.02}, 0.0302, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateAnnualReturn(tt.returns, TradingDaysPerYear)
			if math.Abs(got-tt.expected) > tt.tolerance {
				t.Errorf("CalculateAnnualReturn() = %f, want %f (±%f)", got, tt.expected, tt.tolerance)
			}
		})
	}
}
