/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server and command entry points.
 */
package di

import (
	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/modules/returns"
	"github.com/aristath/frontier/internal/modules/runs"
	"github.com/aristath/frontier/internal/reliability"
	"github.com/aristath/frontier/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config

	// Databases
	RunsDB *database.DB

	// Repositories
	RunRepo *runs.Repository

	// Services
	Preparer         *returns.Preparer
	Optimizer        *optimization.Optimizer
	OptimizerService *optimization.OptimizerService
	R2Client         *reliability.R2Client       // nil when R2 is not configured
	ReportArchiver   *reliability.ReportArchiver // nil when R2 is not configured
	Recorder         *runs.Recorder

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the background jobs so they can be triggered manually
type JobInstances struct {
	Frontier    *scheduler.FrontierJob // nil when no prices file is configured
	Maintenance *reliability.MaintenanceJob
}

// Close releases resources held by the container
func (c *Container) Close() error {
	if c == nil || c.RunsDB == nil {
		return nil
	}
	return c.RunsDB.Close()
}
