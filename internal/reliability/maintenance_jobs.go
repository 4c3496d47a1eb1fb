package reliability

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/scheduler/base"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Disk space thresholds in GB
const (
	criticalFreeGB = 0.5
	lowFreeGB      = 5.0
)

// DiskUsageFunc reports usage of the filesystem holding path
type DiskUsageFunc func(path string) (*disk.UsageStat, error)

// MaintenanceJob keeps the run history database and the report archive healthy
type MaintenanceJob struct {
	base.JobBase
	db            *database.DB
	archiver      *ReportArchiver
	retentionDays int
	diskUsage     DiskUsageFunc
	log           zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job. archiver may be nil.
func NewMaintenanceJob(db *database.DB, archiver *ReportArchiver, retentionDays int, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:            db,
		archiver:      archiver,
		retentionDays: retentionDays,
		diskUsage:     disk.Usage,
		log:           log.With().Str("job", "maintenance").Logger(),
	}
}

// SetDiskUsage replaces the disk usage reader
func (j *MaintenanceJob) SetDiskUsage(fn DiskUsageFunc) {
	j.diskUsage = fn
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting maintenance")
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Step 1: Integrity
	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Str("database", j.db.Name()).Msg("Database health check failed")
		return fmt.Errorf("health check failed for %s: %w", j.db.Name(), err)
	}

	// Step 2: WAL checkpoint
	frames, checkpointed, err := j.db.WALCheckpoint(ctx, "TRUNCATE")
	if err != nil {
		// Not critical
		j.log.Warn().Err(err).Str("database", j.db.Name()).Msg("WAL checkpoint failed")
	} else {
		j.log.Debug().
			Int("wal_frames", frames).
			Int("checkpointed", checkpointed).
			Msg("WAL checkpoint completed")
	}

	// Step 3: Disk space
	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	// Step 4: Archive retention
	if j.archiver != nil {
		if _, err := j.archiver.Rotate(ctx, j.retentionDays); err != nil {
			j.log.Error().Err(err).Msg("Report archive rotation failed")
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Maintenance completed successfully")
	return nil
}

// checkDiskSpace verifies sufficient disk space is available next to the database
func (j *MaintenanceJob) checkDiskSpace() error {
	usage, err := j.diskUsage(filepath.Dir(j.db.Path()))
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(usage.Free) / 1e9
	j.log.Debug().
		Float64("available_gb", availableGB).
		Float64("used_percent", usage.UsedPercent).
		Msg("Disk space check")

	if availableGB < criticalFreeGB {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("CRITICAL: only %.2f GB free", availableGB)
	}
	if availableGB < lowFreeGB {
		j.log.Warn().
			Float64("available_gb", availableGB).
			Msg("Disk space running low")
	}
	return nil
}
