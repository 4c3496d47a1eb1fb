package di

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/modules/returns"
	"github.com/aristath/frontier/internal/modules/runs"
	"github.com/aristath/frontier/internal/reliability"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
)

// InitializeServices creates the optimizer, the preparer, the archive and the recorder
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Preparer = returns.NewPreparer(cfg.Optimizer.PeriodsPerYear, cfg.Optimizer.Shrink, log)

	settings := optimization.DefaultSettings()
	settings.MaxIterations = cfg.Optimizer.MaxIterations
	settings.Tolerance = cfg.Optimizer.Tolerance
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid optimizer settings: %w", err)
	}
	container.Optimizer = optimization.NewOptimizer(settings, log)

	rf := cfg.Optimizer.RiskFreeRate
	defaults := optimization.Options{
		RiskFreeRate:   &rf,
		FrontierPoints: cfg.Optimizer.FrontierPoints,
		Workers:        ResolveWorkers(cfg.Optimizer.Workers, log),
	}
	container.OptimizerService = optimization.NewOptimizerService(container.Optimizer, defaults, log)

	// Report archive is optional
	var archiver runs.Archiver
	if cfg.R2.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client, err := reliability.NewR2Client(ctx,
			cfg.R2.AccountID,
			cfg.R2.AccessKeyID,
			cfg.R2.SecretAccessKey,
			cfg.R2.BucketName,
			log,
		)
		if err != nil {
			return fmt.Errorf("failed to create R2 client: %w", err)
		}
		container.R2Client = client
		container.ReportArchiver = reliability.NewReportArchiver(client, cfg.R2.Prefix, log)
		archiver = container.ReportArchiver
		log.Info().Str("bucket", cfg.R2.BucketName).Msg("Report archive enabled")
	} else {
		log.Info().Msg("R2 not configured, report archive disabled")
	}

	container.Recorder = runs.NewRecorder(container.RunRepo, archiver, log)
	return nil
}

// ResolveWorkers returns configured when positive, otherwise the logical CPU count
func ResolveWorkers(configured int, log zerolog.Logger) int {
	if configured > 0 {
		return configured
	}
	count, err := cpu.Counts(true)
	if err != nil || count < 1 {
		log.Debug().Err(err).Msg("Failed to count CPUs, falling back to runtime")
		return runtime.NumCPU()
	}
	return count
}
