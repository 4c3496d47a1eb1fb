package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// Optimizer performs constrained mean-variance minimization.
// It holds no state beyond its settings and is safe for concurrent use.
type Optimizer struct {
	settings Settings
	log      zerolog.Logger
}

// NewOptimizer creates a new optimizer.
func NewOptimizer(settings Settings, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		settings: settings,
		log:      log.With().Str("component", "mv_optimizer").Logger(),
	}
}

// Settings returns the solver settings.
func (o *Optimizer) Settings() Settings {
	return o.settings
}

// Minimize finds the weights minimizing objective under the constraint set, starting
// from initial. Numerical failures are reported through Result.Status; the returned
// error is reserved for malformed input.
//
// Mathematical formulation:
//   - minimize f(w)
//   - h_j(w) = 0 for every equality constraint (Σw = 1, μ'w = target, ...)
//   - c_k(w) ≥ 0 for every inequality constraint
//   - lower_i ≤ w_i ≤ upper_i
func (o *Optimizer) Minimize(objective Objective, initial []float64, cs *ConstraintSet) (Result, error) {
	if err := o.settings.Validate(); err != nil {
		return Result{}, err
	}
	if objective == nil {
		return Result{}, malformed("objective", "objective function is nil")
	}
	if cs == nil {
		return Result{}, malformed("constraints", "constraint set is nil")
	}
	n := len(cs.bounds)
	if err := cs.bounds.Validate(n); err != nil {
		return Result{}, err
	}
	if n == 0 {
		return Result{}, malformed("bounds", "no assets to optimize")
	}
	if len(initial) != n {
		return Result{}, malformed("initial", "length %d doesn't match assets count %d", len(initial), n)
	}
	for i, x := range initial {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Result{}, malformed("initial", "value %d is not finite", i)
		}
	}

	if closest, ok := cs.checkFeasibility(o.settings.Tolerance); !ok {
		o.log.Debug().Msg("Constraint set is infeasible, skipping solver")
		return Result{
			Weights:   closest,
			Objective: objective(closest),
			Status:    StatusInfeasible,
			Violation: cs.Violation(closest),
		}, nil
	}

	result := newAugmentedLagrangian(objective, cs, o.settings).solve(initial)

	event := o.log.Debug()
	if !result.Converged() {
		event = o.log.Warn()
	}
	event.
		Str("status", result.Status.String()).
		Int("iterations", result.Iterations).
		Float64("violation", result.Violation).
		Float64("objective", result.Objective).
		Msg("Minimization finished")

	return result, nil
}

// MaxSharpe finds the weights maximizing the Sharpe ratio under the budget constraint.
func (o *Optimizer) MaxSharpe(stats *Statistics, bounds Bounds, riskFreeRate float64, initial []float64) (Result, error) {
	if err := o.checkProblem(stats, bounds, riskFreeRate); err != nil {
		return Result{}, err
	}
	cs := NewConstraintSet(bounds).SumToOne()
	return o.Minimize(NegativeSharpe(stats, riskFreeRate), initialOrDefault(initial, bounds), cs)
}

// MinVariance finds the weights minimizing portfolio variance under the budget constraint.
func (o *Optimizer) MinVariance(stats *Statistics, bounds Bounds, initial []float64) (Result, error) {
	if err := o.checkProblem(stats, bounds, 0); err != nil {
		return Result{}, err
	}
	cs := NewConstraintSet(bounds).SumToOne()
	return o.Minimize(VarianceObjective(stats), initialOrDefault(initial, bounds), cs)
}

// MinVarianceForReturn finds the minimum-variance weights whose expected return equals target.
func (o *Optimizer) MinVarianceForReturn(stats *Statistics, bounds Bounds, target float64, initial []float64) (Result, error) {
	if err := o.checkProblem(stats, bounds, target); err != nil {
		return Result{}, err
	}
	cs := NewConstraintSet(bounds).SumToOne().TargetReturn(stats.mean, target)
	return o.Minimize(VarianceObjective(stats), initialOrDefault(initial, bounds), cs)
}

func (o *Optimizer) checkProblem(stats *Statistics, bounds Bounds, scalar float64) error {
	if stats == nil {
		return malformed("statistics", "statistics are nil")
	}
	if math.IsNaN(scalar) || math.IsInf(scalar, 0) {
		return malformed("parameters", "value %g is not finite", scalar)
	}
	if err := bounds.Validate(stats.N()); err != nil {
		return fmt.Errorf("invalid bounds for %d assets: %w", stats.N(), err)
	}
	return nil
}

// EqualWeights returns the 1/n portfolio.
func EqualWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

// InitialGuess returns equal weights projected onto the bounds, or plain equal
// weights when the bounds cannot hold a fully-invested portfolio.
func InitialGuess(bounds Bounds) []float64 {
	w := EqualWeights(len(bounds))
	lower, upper := bounds.sums()
	if lower > 1 || upper < 1 {
		return w
	}
	return projectCappedSimplex(w, bounds)
}

func initialOrDefault(initial []float64, bounds Bounds) []float64 {
	if initial == nil {
		return InitialGuess(bounds)
	}
	return initial
}
