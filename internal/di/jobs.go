package di

import (
	"fmt"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/reliability"
	"github.com/aristath/frontier/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the background jobs and registers them with the scheduler,
// on their schedule when one is configured and on demand otherwise. The scheduler
// is created but not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	container.Scheduler = scheduler.New(log)
	jobs := &JobInstances{}

	jobs.Maintenance = reliability.NewMaintenanceJob(container.RunsDB, container.ReportArchiver, cfg.R2.RetentionDays, log)
	if err := register(container.Scheduler, cfg.Schedule.Maintenance, jobs.Maintenance); err != nil {
		return nil, fmt.Errorf("failed to register maintenance job: %w", err)
	}

	if cfg.Schedule.PricesFile != "" {
		jobs.Frontier = scheduler.NewFrontierJob(
			cfg.Schedule.PricesFile,
			container.OptimizerService,
			container.Preparer,
			container.Recorder,
		)
		jobs.Frontier.SetLogger(log)
	}
	if cfg.Schedule.Frontier != "" && jobs.Frontier == nil {
		return nil, fmt.Errorf("frontier schedule set without a prices file")
	}
	if jobs.Frontier != nil {
		if err := register(container.Scheduler, cfg.Schedule.Frontier, jobs.Frontier); err != nil {
			return nil, fmt.Errorf("failed to register frontier job: %w", err)
		}
	}

	log.Info().Strs("jobs", container.Scheduler.Jobs()).Msg("Jobs registered")
	return jobs, nil
}

func register(s *scheduler.Scheduler, schedule string, job scheduler.Job) error {
	if schedule == "" {
		return s.Register(job)
	}
	return s.AddJob(schedule, job)
}
