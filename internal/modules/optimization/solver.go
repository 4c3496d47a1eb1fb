package optimization

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// Settings controls the constrained minimizer.
type Settings struct {
	// MaxIterations bounds the number of outer (multiplier update) iterations.
	MaxIterations int `json:"max_iterations"`
	// InnerIterations bounds the major iterations of each unconstrained sub-problem.
	InnerIterations int `json:"inner_iterations"`
	// Tolerance bounds the relative objective change between outer iterations.
	// Constraint violations, measured on the projected iterate in each
	// constraint's own scale, are accepted up to Tolerance×violationSlack.
	Tolerance float64 `json:"tolerance"`
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		MaxIterations:   100,
		InnerIterations: 500,
		Tolerance:       1e-8,
	}
}

// Validate rejects settings the solver cannot run with.
func (s Settings) Validate() error {
	if s.MaxIterations < 1 {
		return malformed("max_iterations", "must be at least 1, got %d", s.MaxIterations)
	}
	if s.InnerIterations < 1 {
		return malformed("inner_iterations", "must be at least 1, got %d", s.InnerIterations)
	}
	if !(s.Tolerance > 0) || math.IsInf(s.Tolerance, 0) {
		return malformed("tolerance", "must be a positive finite number, got %g", s.Tolerance)
	}
	return nil
}

const (
	initialPenalty     = 10.0
	maxPenalty         = 1e8
	penaltyGrowth      = 10.0
	violationReduction = 0.25
	violationSlack     = 100.0
	// Objective values below this are compared in absolute terms.
	objectiveFloor = 1e-6
)

// inequality is a single c(w) >= 0 term of the augmented Lagrangian.
type inequality func(w []float64) float64

// augmentedLagrangian minimizes an objective under a ConstraintSet with the
// Powell-Hestenes-Rockafellar method. Constraints enter in their own scale. Bounds
// are handled as inequality terms during the iterations and enforced exactly by
// projection, both when testing for convergence and on the returned weights.
type augmentedLagrangian struct {
	objective Objective
	cs        *ConstraintSet
	settings  Settings

	equalities   []func([]float64) float64
	inequalities []inequality
	lambda       []float64
	mu           []float64
	rho          float64
}

func newAugmentedLagrangian(objective Objective, cs *ConstraintSet, settings Settings) *augmentedLagrangian {
	al := &augmentedLagrangian{
		objective: objective,
		cs:        cs,
		settings:  settings,
		rho:       initialPenalty,
	}
	for _, c := range cs.constraints {
		if c.Kind == EqualityConstraint {
			al.equalities = append(al.equalities, c.scaled)
		} else {
			al.inequalities = append(al.inequalities, c.scaled)
		}
	}
	for i, b := range cs.bounds {
		i, b := i, b
		al.inequalities = append(al.inequalities,
			func(w []float64) float64 { return w[i] - b.Lower },
			func(w []float64) float64 { return b.Upper - w[i] },
		)
	}
	al.lambda = make([]float64, len(al.equalities))
	al.mu = make([]float64, len(al.inequalities))
	return al
}

// value is L(w) = f(w) + Σ λh + ρ/2 Σ h² + 1/(2ρ) Σ (max(0, μ - ρc)² - μ²).
func (al *augmentedLagrangian) value(w []float64) float64 {
	v := al.objective(w)
	for j, h := range al.equalities {
		hv := h(w)
		v += al.lambda[j]*hv + 0.5*al.rho*hv*hv
	}
	for k, c := range al.inequalities {
		shifted := math.Max(0, al.mu[k]-al.rho*c(w))
		v += (shifted*shifted - al.mu[k]*al.mu[k]) / (2 * al.rho)
	}
	return v
}

func (al *augmentedLagrangian) updateMultipliers(w []float64) {
	for j, h := range al.equalities {
		al.lambda[j] += al.rho * h(w)
	}
	for k, c := range al.inequalities {
		al.mu[k] = math.Max(0, al.mu[k]-al.rho*c(w))
	}
}

// solve runs the outer loop from initial. Convergence is judged on the projected
// iterate, which is also what gets returned, so the status always describes the
// returned weights.
func (al *augmentedLagrangian) solve(initial []float64) Result {
	feasibility := al.settings.Tolerance * violationSlack
	x := al.cs.project(initial)

	converged := false
	prevViolation := math.Inf(1)
	prevObjective := math.NaN()
	iterations := 0

	for iterations < al.settings.MaxIterations {
		iterations++
		x = al.minimizeInner(x)
		al.updateMultipliers(x)

		projected := al.cs.project(x)
		f := al.objective(projected)
		if al.cs.scaledViolation(projected) <= feasibility && al.settled(f, prevObjective) {
			converged = true
			break
		}

		raw := al.cs.scaledViolation(x)
		if raw > violationReduction*prevViolation {
			al.rho = math.Min(al.rho*penaltyGrowth, maxPenalty)
		}
		prevViolation = raw
		prevObjective = f
	}

	weights := al.cs.project(x)
	status := StatusNotConverged
	if converged {
		status = StatusConverged
	}
	return Result{
		Weights:    weights,
		Objective:  al.objective(weights),
		Status:     status,
		Iterations: iterations,
		Violation:  al.cs.Violation(weights),
	}
}

// settled reports whether the objective stopped moving between outer iterations.
func (al *augmentedLagrangian) settled(f, prev float64) bool {
	if math.IsNaN(prev) {
		return false
	}
	return math.Abs(f-prev) <= al.settings.Tolerance*math.Max(objectiveFloor, math.Abs(f))
}

var successStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
}

// minimizeInner solves the unconstrained sub-problem with BFGS and falls back to
// Nelder-Mead when BFGS fails, keeping whichever point has the lower value.
func (al *augmentedLagrangian) minimizeInner(x []float64) []float64 {
	problem := optimize.Problem{
		Func: al.value,
		Grad: func(grad, w []float64) {
			fd.Gradient(grad, al.value, w, &fd.Settings{Formula: fd.Central})
		},
	}

	best := append([]float64(nil), x...)
	bestValue := al.value(best)
	consider := func(result *optimize.Result) {
		if result == nil || len(result.X) != len(x) {
			return
		}
		v := al.value(result.X)
		if !math.IsNaN(v) && v < bestValue {
			best = append(best[:0], result.X...)
			bestValue = v
		}
	}

	result, err := optimize.Minimize(problem, x, al.innerSettings(), &optimize.BFGS{})
	consider(result)
	if err == nil && result != nil && successStatuses[result.Status] {
		return best
	}

	result, _ = optimize.Minimize(problem, best, al.innerSettings(), &optimize.NelderMead{})
	consider(result)
	return best
}

func (al *augmentedLagrangian) innerSettings() *optimize.Settings {
	return &optimize.Settings{
		GradientThreshold: 1e-10,
		MajorIterations:   al.settings.InnerIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Relative:   1e-12,
			Iterations: 20,
		},
	}
}
