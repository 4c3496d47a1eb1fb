package optimization

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Errors surfaced by the optimizer.
var (
	// ErrMalformedInput marks programming/data errors detected before any optimization runs.
	ErrMalformedInput = errors.New("malformed input")
	// ErrNotConverged is wrapped by Result.Err when the solver ran out of iterations.
	ErrNotConverged = errors.New("optimization did not converge")
	// ErrInfeasible is wrapped by Result.Err when bounds and equality constraints cannot all hold.
	ErrInfeasible = errors.New("constraints are infeasible")
)

// InputError describes which input was rejected and why.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("malformed input: %s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match any InputError with errors.Is(err, ErrMalformedInput).
func (e *InputError) Unwrap() error {
	return ErrMalformedInput
}

func malformed(field, format string, args ...interface{}) error {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Status reports how a single optimization ended.
type Status int

const (
	StatusConverged Status = iota
	StatusNotConverged
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusNotConverged:
		return "not_converged"
	case StatusInfeasible:
		return "infeasible"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "converged":
		*s = StatusConverged
	case "not_converged":
		*s = StatusNotConverged
	case "infeasible":
		*s = StatusInfeasible
	default:
		return fmt.Errorf("unknown optimization status %q", string(text))
	}
	return nil
}

// Result is the outcome of one constrained minimization.
// Weights always lie within the bounds and sum to 1 when the budget constraint is
// part of the set; Status says whether the remaining constraints were met.
type Result struct {
	Weights    []float64 `json:"weights" msgpack:"weights"`
	Objective  float64   `json:"objective" msgpack:"objective"`
	Status     Status    `json:"status" msgpack:"status"`
	Iterations int       `json:"iterations" msgpack:"iterations"`
	Violation  float64   `json:"violation" msgpack:"violation"`
}

// Converged reports whether the solver met its tolerance.
func (r Result) Converged() bool {
	return r.Status == StatusConverged
}

// Err returns nil for a converged result, otherwise an error wrapping
// ErrNotConverged or ErrInfeasible.
func (r Result) Err() error {
	switch r.Status {
	case StatusConverged:
		return nil
	case StatusInfeasible:
		return fmt.Errorf("%w (max violation %.3g)", ErrInfeasible, r.Violation)
	default:
		return fmt.Errorf("%w after %d iterations (max violation %.3g)", ErrNotConverged, r.Iterations, r.Violation)
	}
}

// Statistics holds the annualized mean return vector and covariance matrix of an
// ordered asset universe. Values are validated and copied on construction.
type Statistics struct {
	assets []string
	mean   []float64
	cov    *mat.SymDense
}

const (
	symmetryTolerance = 1e-10
	psdTolerance      = 1e-10
)

// NewStatistics validates the inputs and returns an immutable Statistics value.
// The covariance matrix must be square, symmetric, positive semi-definite and
// match the number of assets; tickers must be non-empty, distinct and free of
// commas, which separate tickers in stored run summaries and query strings.
func NewStatistics(assets []string, meanReturns []float64, covariance [][]float64) (*Statistics, error) {
	n := len(assets)
	if n == 0 {
		return nil, malformed("assets", "no assets provided")
	}
	seen := make(map[string]struct{}, n)
	for i, asset := range assets {
		if asset == "" {
			return nil, malformed("assets", "asset %d has an empty identifier", i)
		}
		if strings.ContainsRune(asset, ',') {
			return nil, malformed("assets", "asset %q contains a comma", asset)
		}
		if _, dup := seen[asset]; dup {
			return nil, malformed("assets", "duplicate asset %s", asset)
		}
		seen[asset] = struct{}{}
	}

	if len(meanReturns) != n {
		return nil, malformed("mean_returns", "length %d doesn't match assets count %d", len(meanReturns), n)
	}
	for i, m := range meanReturns {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return nil, malformed("mean_returns", "value for %s is not finite", assets[i])
		}
	}

	if len(covariance) != n {
		return nil, malformed("covariance", "matrix size %d doesn't match assets count %d", len(covariance), n)
	}
	for i := range covariance {
		if len(covariance[i]) != n {
			return nil, malformed("covariance", "row %d has size %d, expected %d", i, len(covariance[i]), n)
		}
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a, b := covariance[i][j], covariance[j][i]
			if math.IsNaN(a) || math.IsInf(a, 0) || math.IsNaN(b) || math.IsInf(b, 0) {
				return nil, malformed("covariance", "entry (%d,%d) is not finite", i, j)
			}
			scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
			if math.Abs(a-b) > symmetryTolerance*scale {
				return nil, malformed("covariance", "matrix is not symmetric at (%d,%d)", i, j)
			}
			cov.SetSym(i, j, (a+b)/2)
		}
	}

	if err := checkPSD(cov); err != nil {
		return nil, err
	}

	return &Statistics{
		assets: append([]string(nil), assets...),
		mean:   append([]float64(nil), meanReturns...),
		cov:    cov,
	}, nil
}

func checkPSD(cov *mat.SymDense) error {
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, false); !ok {
		return malformed("covariance", "eigen decomposition failed")
	}
	values := eig.Values(nil)
	maxAbs := 0.0
	for _, v := range values {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	for _, v := range values {
		if v < -psdTolerance*math.Max(1, maxAbs) {
			return malformed("covariance", "matrix is not positive semi-definite (eigenvalue %.3g)", v)
		}
	}
	return nil
}

// N returns the number of assets.
func (s *Statistics) N() int {
	return len(s.assets)
}

// Assets returns a copy of the ordered asset identifiers.
func (s *Statistics) Assets() []string {
	return append([]string(nil), s.assets...)
}

// MeanReturns returns a copy of the mean return vector.
func (s *Statistics) MeanReturns() []float64 {
	return append([]float64(nil), s.mean...)
}

// Covariance returns a copy of the covariance matrix as nested slices.
func (s *Statistics) Covariance() [][]float64 {
	n := s.N()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = s.cov.At(i, j)
		}
	}
	return out
}

// Portfolio is a weight vector together with the statistics it implies.
type Portfolio struct {
	Weights    []float64 `json:"weights" msgpack:"weights"`
	Return     float64   `json:"return" msgpack:"return"`
	Volatility float64   `json:"volatility" msgpack:"volatility"`
	Sharpe     float64   `json:"sharpe" msgpack:"sharpe"`
	Status     Status    `json:"status" msgpack:"status"`
	Iterations int       `json:"iterations" msgpack:"iterations"`
}

// FrontierPoint is one step of the frontier sweep.
type FrontierPoint struct {
	TargetReturn float64   `json:"target_return" msgpack:"target_return"`
	Volatility   float64   `json:"volatility" msgpack:"volatility"`
	Weights      []float64 `json:"weights" msgpack:"weights"`
	Status       Status    `json:"status" msgpack:"status"`
}

// Converged reports whether the point's optimization met its tolerance.
func (p FrontierPoint) Converged() bool {
	return p.Status == StatusConverged
}

// Allocation pairs an asset with its weight.
type Allocation struct {
	Asset  string  `json:"asset"`
	Weight float64 `json:"weight"`
}

// Report bundles everything a frontier run produces.
type Report struct {
	Assets          []string        `json:"assets" msgpack:"assets"`
	MeanReturns     []float64       `json:"mean_returns" msgpack:"mean_returns"`
	Covariance      [][]float64     `json:"covariance" msgpack:"covariance"`
	RiskFreeRate    float64         `json:"risk_free_rate" msgpack:"risk_free_rate"`
	Bounds          Bounds          `json:"bounds" msgpack:"bounds"`
	MaxSharpe       Portfolio       `json:"max_sharpe" msgpack:"max_sharpe"`
	MinVariance     Portfolio       `json:"min_variance" msgpack:"min_variance"`
	Frontier        []FrontierPoint `json:"frontier" msgpack:"frontier"`
	SharpeRatio     float64         `json:"sharpe_ratio" msgpack:"sharpe_ratio"`
	ConvergedPoints int             `json:"converged_points" msgpack:"converged_points"`
	CreatedAt       time.Time       `json:"created_at" msgpack:"created_at"`
	DurationMs      int64           `json:"duration_ms" msgpack:"duration_ms"`
}
