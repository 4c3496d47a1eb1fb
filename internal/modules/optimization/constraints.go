// Package optimization provides mean-variance portfolio optimization: portfolio
// metrics, objective functions, a constrained minimizer and the efficient frontier sweep.
package optimization

import (
	"math"
	"sort"
)

// Bound is a closed interval for a single weight.
type Bound struct {
	Lower float64 `json:"lower" yaml:"lower" msgpack:"lower"`
	Upper float64 `json:"upper" yaml:"upper" msgpack:"upper"`
}

// Bounds holds one Bound per asset, in asset order.
type Bounds []Bound

// DefaultBounds returns [0,1] for every asset: no short-selling, no leverage.
func DefaultBounds(n int) Bounds {
	return UniformBounds(n, 0, 1)
}

// UniformBounds returns the same interval for every asset.
func UniformBounds(n int, lower, upper float64) Bounds {
	b := make(Bounds, n)
	for i := range b {
		b[i] = Bound{Lower: lower, Upper: upper}
	}
	return b
}

// Validate checks that there is one finite, non-empty interval per asset.
func (b Bounds) Validate(n int) error {
	if len(b) != n {
		return malformed("bounds", "got %d bounds for %d assets", len(b), n)
	}
	for i, bound := range b {
		if math.IsNaN(bound.Lower) || math.IsNaN(bound.Upper) ||
			math.IsInf(bound.Lower, 0) || math.IsInf(bound.Upper, 0) {
			return malformed("bounds", "bound %d is not finite", i)
		}
		if bound.Lower > bound.Upper {
			return malformed("bounds", "bound %d has lower %.4f above upper %.4f", i, bound.Lower, bound.Upper)
		}
	}
	return nil
}

// Clip returns a copy of x with every component clamped into its interval.
func (b Bounds) Clip(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = math.Max(b[i].Lower, math.Min(b[i].Upper, x[i]))
	}
	return out
}

func (b Bounds) sums() (lower, upper float64) {
	for _, bound := range b {
		lower += bound.Lower
		upper += bound.Upper
	}
	return lower, upper
}

// ConstraintKind distinguishes equality from inequality constraints.
type ConstraintKind int

const (
	// EqualityConstraint requires Fn(w) == 0.
	EqualityConstraint ConstraintKind = iota
	// InequalityConstraint requires Fn(w) >= 0.
	InequalityConstraint
)

// Constraint is a named predicate on a weight vector.
type Constraint struct {
	Name string
	Kind ConstraintKind
	Fn   func(weights []float64) float64

	// scale is the natural unit of Fn; the solver works on Fn/scale. Zero means 1.
	scale float64
}

func (c Constraint) violation(weights []float64) float64 {
	return violationOf(c.Kind, c.Fn(weights))
}

// scaled evaluates Fn in units of the constraint's scale.
func (c Constraint) scaled(weights []float64) float64 {
	v := c.Fn(weights)
	if c.scale > 0 {
		v /= c.scale
	}
	return v
}

func violationOf(kind ConstraintKind, v float64) float64 {
	if kind == EqualityConstraint {
		return math.Abs(v)
	}
	return math.Max(0, -v)
}

// returnScale is the spread of the mean vector, the unit in which a return
// target is compared. Degenerate spreads fall back to 1.
func returnScale(mean []float64) float64 {
	if len(mean) == 0 {
		return 1
	}
	lo, hi := mean[0], mean[0]
	for _, m := range mean[1:] {
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	if spread := hi - lo; spread > 1e-12 {
		return spread
	}
	return 1
}

type returnTarget struct {
	mean  []float64
	value float64
}

// ConstraintSet composes per-asset bounds with equality and inequality constraints
// for a single optimization call.
type ConstraintSet struct {
	bounds      Bounds
	constraints []Constraint
	budget      bool
	target      *returnTarget
}

// NewConstraintSet starts a constraint set from per-asset bounds.
func NewConstraintSet(bounds Bounds) *ConstraintSet {
	return &ConstraintSet{bounds: append(Bounds(nil), bounds...)}
}

// SumToOne adds the fully-invested constraint Σw = 1.
func (cs *ConstraintSet) SumToOne() *ConstraintSet {
	if cs.budget {
		return cs
	}
	cs.budget = true
	cs.constraints = append(cs.constraints, Constraint{
		Name: "sum_to_one",
		Kind: EqualityConstraint,
		Fn: func(w []float64) float64 {
			sum := 0.0
			for _, x := range w {
				sum += x
			}
			return sum - 1
		},
	})
	return cs
}

// TargetReturn adds the constraint μ'w = target. The solver measures it in
// units of the spread of μ, so daily and annual inputs converge alike.
func (cs *ConstraintSet) TargetReturn(mean []float64, target float64) *ConstraintSet {
	mu := append([]float64(nil), mean...)
	cs.target = &returnTarget{mean: mu, value: target}
	cs.constraints = append(cs.constraints, Constraint{
		Name:  "target_return",
		Kind:  EqualityConstraint,
		scale: returnScale(mu),
		Fn: func(w []float64) float64 {
			ret := 0.0
			for i, x := range w {
				ret += x * mu[i]
			}
			return ret - target
		},
	})
	return cs
}

// Equality adds a custom constraint fn(w) == 0.
func (cs *ConstraintSet) Equality(name string, fn func([]float64) float64) *ConstraintSet {
	cs.constraints = append(cs.constraints, Constraint{Name: name, Kind: EqualityConstraint, Fn: fn})
	return cs
}

// Inequality adds a custom constraint fn(w) >= 0.
func (cs *ConstraintSet) Inequality(name string, fn func([]float64) float64) *ConstraintSet {
	cs.constraints = append(cs.constraints, Constraint{Name: name, Kind: InequalityConstraint, Fn: fn})
	return cs
}

// Bounds returns a copy of the per-asset bounds.
func (cs *ConstraintSet) Bounds() Bounds {
	return append(Bounds(nil), cs.bounds...)
}

// Constraints returns a copy of the equality and inequality constraints.
func (cs *ConstraintSet) Constraints() []Constraint {
	return append([]Constraint(nil), cs.constraints...)
}

// Violation returns the largest violation of any bound or constraint at w.
func (cs *ConstraintSet) Violation(weights []float64) float64 {
	worst := 0.0
	for i, x := range weights {
		worst = math.Max(worst, cs.bounds[i].Lower-x)
		worst = math.Max(worst, x-cs.bounds[i].Upper)
	}
	for _, c := range cs.constraints {
		worst = math.Max(worst, c.violation(weights))
	}
	return worst
}

// scaledViolation is Violation with every constraint measured in its own scale.
// Convergence is judged on it.
func (cs *ConstraintSet) scaledViolation(weights []float64) float64 {
	worst := 0.0
	for i, x := range weights {
		worst = math.Max(worst, cs.bounds[i].Lower-x)
		worst = math.Max(worst, x-cs.bounds[i].Upper)
	}
	for _, c := range cs.constraints {
		worst = math.Max(worst, violationOf(c.Kind, c.scaled(weights)))
	}
	return worst
}

// project maps x onto the bounds, and onto Σw = 1 as well when the budget constraint is set.
func (cs *ConstraintSet) project(x []float64) []float64 {
	if !cs.budget {
		return cs.bounds.Clip(x)
	}
	return projectCappedSimplex(x, cs.bounds)
}

// checkFeasibility detects constraint sets that no weight vector can satisfy.
// When infeasible it returns the closest attainable portfolio.
func (cs *ConstraintSet) checkFeasibility(tol float64) ([]float64, bool) {
	if !cs.budget {
		return nil, true
	}
	lower, upper := cs.bounds.sums()
	if lower > 1+tol || upper < 1-tol {
		return cs.project(make([]float64, len(cs.bounds))), false
	}
	if cs.target == nil {
		return nil, true
	}
	lo, hi, wLo, wHi := attainableReturns(cs.target.mean, cs.bounds)
	slack := tol * returnScale(cs.target.mean)
	switch {
	case cs.target.value > hi+slack:
		return wHi, false
	case cs.target.value < lo-slack:
		return wLo, false
	}
	return nil, true
}

// attainableReturns returns the lowest and highest μ'w reachable with Σw = 1 inside the
// bounds, together with the portfolios reaching them. Both extremes are fractional
// knapsack solutions: start from the lower bounds and fill the remaining budget in
// order of mean return.
func attainableReturns(mean []float64, bounds Bounds) (lo, hi float64, wLo, wHi []float64) {
	order := make([]int, len(mean))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return mean[order[a]] > mean[order[b]] })

	fill := func(idx []int) ([]float64, float64) {
		w := make([]float64, len(mean))
		remaining := 1.0
		for i, b := range bounds {
			w[i] = b.Lower
			remaining -= b.Lower
		}
		for _, i := range idx {
			if remaining <= 0 {
				break
			}
			add := math.Min(bounds[i].Upper-bounds[i].Lower, remaining)
			w[i] += add
			remaining -= add
		}
		ret := 0.0
		for i := range w {
			ret += w[i] * mean[i]
		}
		return w, ret
	}

	wHi, hi = fill(order)
	reversed := make([]int, len(order))
	for i, idx := range order {
		reversed[len(order)-1-i] = idx
	}
	wLo, lo = fill(reversed)
	return lo, hi, wLo, wHi
}
