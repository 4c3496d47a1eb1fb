package optimization

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/aristath/frontier/internal/utils"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Options configures a single frontier run. Zero values fall back to the
// service defaults.
type Options struct {
	RiskFreeRate   *float64
	Bounds         Bounds
	FrontierPoints int
	Workers        int
	Progress       ProgressFunc
}

// DefaultOptions returns the options used when nothing is configured. The sweep
// runs one point per logical CPU.
func DefaultOptions() Options {
	rf := 0.02
	return Options{
		RiskFreeRate:   &rf,
		FrontierPoints: 100,
		Workers:        runtime.NumCPU(),
	}
}

// OptimizerService runs the full pipeline: max Sharpe, min variance and the frontier between them.
type OptimizerService struct {
	optimizer *Optimizer
	defaults  Options
	log       zerolog.Logger
}

// NewOptimizerService creates a new optimizer service.
func NewOptimizerService(optimizer *Optimizer, defaults Options, log zerolog.Logger) *OptimizerService {
	return &OptimizerService{
		optimizer: optimizer,
		defaults:  defaults,
		log:       log.With().Str("component", "optimizer_service").Logger(),
	}
}

func (s *OptimizerService) resolve(stats *Statistics, opts Options) Options {
	if opts.RiskFreeRate == nil {
		opts.RiskFreeRate = s.defaults.RiskFreeRate
	}
	if opts.RiskFreeRate == nil {
		rf := 0.0
		opts.RiskFreeRate = &rf
	}
	if opts.Bounds == nil {
		opts.Bounds = s.defaults.Bounds
	}
	if opts.Bounds == nil {
		opts.Bounds = DefaultBounds(stats.N())
	}
	if opts.FrontierPoints == 0 {
		opts.FrontierPoints = s.defaults.FrontierPoints
	}
	if opts.Workers <= 0 {
		opts.Workers = s.defaults.Workers
	}
	if opts.Progress == nil {
		opts.Progress = s.defaults.Progress
	}
	return opts
}

// Optimize computes the max-Sharpe portfolio, the min-variance portfolio and the
// frontier sweeping from the min-variance return to the max-Sharpe return.
// Malformed input is returned as an error; numerical outcomes are reported in the
// statuses carried by the Report.
func (s *OptimizerService) Optimize(ctx context.Context, stats *Statistics, opts Options) (*Report, error) {
	if stats == nil {
		return nil, malformed("statistics", "statistics are nil")
	}
	opts = s.resolve(stats, opts)
	if opts.FrontierPoints < 1 {
		return nil, malformed("num_points", "must be at least 1, got %d", opts.FrontierPoints)
	}
	if err := opts.Bounds.Validate(stats.N()); err != nil {
		return nil, err
	}
	rf := *opts.RiskFreeRate

	timer := utils.NewTimer("frontier_run", s.log)
	started := time.Now()
	initial := InitialGuess(opts.Bounds)

	sharpeResult, err := s.optimizer.MaxSharpe(stats, opts.Bounds, rf, initial)
	if err != nil {
		return nil, fmt.Errorf("max sharpe optimization: %w", err)
	}
	s.logAnchor("max_sharpe", sharpeResult)

	minVarResult, err := s.optimizer.MinVariance(stats, opts.Bounds, initial)
	if err != nil {
		return nil, fmt.Errorf("min variance optimization: %w", err)
	}
	s.logAnchor("min_variance", minVarResult)

	maxSharpe := portfolioFromResult(sharpeResult, stats, rf)
	minVariance := portfolioFromResult(minVarResult, stats, rf)

	sweeper := NewSweeper(s.optimizer, opts.Workers, s.log).WithProgress(opts.Progress)
	frontier, err := sweeper.Sweep(ctx, stats, opts.Bounds, minVariance.Return, maxSharpe.Return, opts.FrontierPoints, initial)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Assets:       stats.Assets(),
		MeanReturns:  stats.MeanReturns(),
		Covariance:   stats.Covariance(),
		RiskFreeRate: rf,
		Bounds:       append(Bounds(nil), opts.Bounds...),
		MaxSharpe:    maxSharpe,
		MinVariance:  minVariance,
		Frontier:     frontier,
		SharpeRatio:  maxSharpe.Sharpe,
		ConvergedPoints: lo.CountBy(frontier, func(p FrontierPoint) bool {
			return p.Converged()
		}),
		CreatedAt: started.UTC(),
	}
	report.DurationMs = timer.StopWithContext(map[string]interface{}{
		"assets":           stats.N(),
		"points":           len(frontier),
		"converged_points": report.ConvergedPoints,
	}).Milliseconds()

	s.log.Info().
		Int("assets", stats.N()).
		Float64("sharpe_ratio", report.SharpeRatio).
		Int("frontier_points", len(frontier)).
		Int("converged_points", report.ConvergedPoints).
		Msg("Frontier computed")

	return report, nil
}

func (s *OptimizerService) logAnchor(name string, result Result) {
	if result.Converged() {
		return
	}
	s.log.Warn().
		Str("portfolio", name).
		Str("status", result.Status.String()).
		Int("iterations", result.Iterations).
		Float64("violation", result.Violation).
		Msg("Anchor portfolio did not converge, using best weights found")
}

func portfolioFromResult(result Result, stats *Statistics, riskFreeRate float64) Portfolio {
	p := Evaluate(result.Weights, stats, riskFreeRate)
	p.Status = result.Status
	p.Iterations = result.Iterations
	return p
}

// Allocations pairs the report's assets with the given weights, in asset order.
func (r *Report) Allocations(weights []float64) []Allocation {
	return lo.Map(r.Assets, func(asset string, i int) Allocation {
		w := 0.0
		if i < len(weights) {
			w = weights[i]
		}
		return Allocation{Asset: asset, Weight: w}
	})
}
