package optimization

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// ProgressFunc is called after every frontier point with the number of finished points.
type ProgressFunc func(done, total int)

// TargetReturns returns n evenly spaced target returns from low to high, both included.
// A single point sits at low.
func TargetReturns(low, high float64, n int) []float64 {
	if n < 1 {
		return nil
	}
	if n == 1 {
		return []float64{low}
	}
	return floats.Span(make([]float64, n), low, high)
}

// Sweeper traces the efficient frontier by solving one min-variance problem per target.
type Sweeper struct {
	optimizer *Optimizer
	workers   int
	progress  ProgressFunc
	log       zerolog.Logger
}

// NewSweeper creates a sweeper running up to workers points concurrently.
func NewSweeper(optimizer *Optimizer, workers int, log zerolog.Logger) *Sweeper {
	if workers < 1 {
		workers = 1
	}
	return &Sweeper{
		optimizer: optimizer,
		workers:   workers,
		log:       log.With().Str("component", "frontier_sweeper").Logger(),
	}
}

// WithProgress returns a copy of the sweeper reporting progress to fn.
func (s *Sweeper) WithProgress(fn ProgressFunc) *Sweeper {
	clone := *s
	clone.progress = fn
	return &clone
}

// Sweep computes numPoints frontier points between low and high. Every point starts
// from the same initial guess. Points that fail to converge or are infeasible keep
// their slot and carry their status; only context cancellation aborts the sweep.
func (s *Sweeper) Sweep(ctx context.Context, stats *Statistics, bounds Bounds, low, high float64, numPoints int, initial []float64) ([]FrontierPoint, error) {
	if numPoints < 1 {
		return nil, malformed("num_points", "must be at least 1, got %d", numPoints)
	}
	if stats == nil {
		return nil, malformed("statistics", "statistics are nil")
	}
	if err := bounds.Validate(stats.N()); err != nil {
		return nil, err
	}
	initial = initialOrDefault(initial, bounds)

	targets := TargetReturns(low, high, numPoints)
	points := make([]FrontierPoint, len(targets))

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := s.optimizer.MinVarianceForReturn(stats, bounds, target, initial)
			if err != nil {
				return fmt.Errorf("frontier point %d: %w", i, err)
			}
			_, vol := Performance(result.Weights, stats)
			points[i] = FrontierPoint{
				TargetReturn: target,
				Volatility:   vol,
				Weights:      result.Weights,
				Status:       result.Status,
			}

			if s.progress != nil {
				mu.Lock()
				done++
				s.progress(done, len(targets))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("frontier sweep aborted: %w", err)
	}

	failed := 0
	for _, p := range points {
		if !p.Converged() {
			failed++
		}
	}
	s.log.Debug().
		Int("points", len(points)).
		Int("not_converged", failed).
		Float64("low", low).
		Float64("high", high).
		Msg("Frontier sweep complete")

	return points, nil
}
