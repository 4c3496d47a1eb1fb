package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/modules/returns"
	"github.com/aristath/frontier/internal/utils"
	"github.com/rs/zerolog"
)

const frontierJobTimeout = 30 * time.Minute

// FrontierJob recomputes the efficient frontier from a prices file and records the run
type FrontierJob struct {
	JobBase
	log              zerolog.Logger
	pricesFile       string
	optimizerService OptimizerServiceInterface
	preparer         PreparerInterface
	recorder         RecorderInterface

	mu        sync.Mutex
	lastRunID string
}

// NewFrontierJob creates a new FrontierJob
func NewFrontierJob(
	pricesFile string,
	optimizerService OptimizerServiceInterface,
	preparer PreparerInterface,
	recorder RecorderInterface,
) *FrontierJob {
	return &FrontierJob{
		log:              zerolog.Nop(),
		pricesFile:       pricesFile,
		optimizerService: optimizerService,
		preparer:         preparer,
		recorder:         recorder,
	}
}

// SetLogger sets the logger for the job
func (j *FrontierJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *FrontierJob) Name() string {
	return "frontier_recompute"
}

// LastRunID returns the id of the last recorded run
func (j *FrontierJob) LastRunID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRunID
}

// Run executes the frontier recompute job
func (j *FrontierJob) Run() error {
	if j.optimizerService == nil || j.preparer == nil {
		return fmt.Errorf("optimizer service not available")
	}
	if j.pricesFile == "" {
		return fmt.Errorf("no prices file configured")
	}

	defer utils.OperationTimer(j.Name(), j.log)()

	ctx, cancel := context.WithTimeout(context.Background(), frontierJobTimeout)
	defer cancel()

	// Step 1: Load prices
	f, err := os.Open(j.pricesFile)
	if err != nil {
		j.log.Error().Err(err).Str("file", j.pricesFile).Msg("Failed to open prices file")
		return fmt.Errorf("failed to open prices file: %w", err)
	}
	defer f.Close()

	table, err := returns.LoadCSV(f)
	if err != nil {
		return fmt.Errorf("failed to load prices from %s: %w", j.pricesFile, err)
	}

	// Step 2: Prepare statistics
	stats, err := j.preparer.Prepare(table)
	if err != nil {
		return fmt.Errorf("failed to prepare statistics: %w", err)
	}

	// Step 3: Optimize
	opts := optimization.Options{}
	if reporter := j.GetProgressReporter(); reporter != nil {
		opts.Progress = optimization.ProgressFunc(reporter)
	}
	report, err := j.optimizerService.Optimize(ctx, stats, opts)
	if err != nil {
		j.log.Error().Err(err).Msg("Frontier computation failed")
		return fmt.Errorf("frontier computation failed: %w", err)
	}

	// Step 4: Record
	var runID string
	if j.recorder != nil {
		runID, err = j.recorder.Record(ctx, report)
		if err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		j.mu.Lock()
		j.lastRunID = runID
		j.mu.Unlock()
	}

	j.log.Info().
		Str("run_id", runID).
		Int("assets", len(report.Assets)).
		Float64("sharpe_ratio", report.SharpeRatio).
		Int("converged_points", report.ConvergedPoints).
		Msg("Frontier recomputed")

	return nil
}
