package reliability

import (
	"errors"
	"testing"

	testutil "github.com/aristath/frontier/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedUsage(freeBytes uint64) DiskUsageFunc {
	return func(path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Path: path, Free: freeBytes, UsedPercent: 50}, nil
	}
}

func TestMaintenanceJob_Name(t *testing.T) {
	job := NewMaintenanceJob(nil, nil, 30, zerolog.Nop())
	assert.Equal(t, "maintenance", job.Name())
}

func TestMaintenanceJob_Run(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "runs")
	defer cleanup()

	store := newFakeStore()
	store.put("frontier/2000-01-01-000000_a.json")
	store.put("frontier/2000-01-02-000000_b.json")
	store.put("frontier/2000-01-03-000000_c.json")
	store.put("frontier/2000-01-04-000000_d.json")
	archiver := NewReportArchiver(store, "frontier", zerolog.Nop())

	job := NewMaintenanceJob(db, archiver, 30, zerolog.Nop())
	job.SetDiskUsage(fixedUsage(100e9))

	require.NoError(t, job.Run())
	assert.Len(t, store.keys(), 3)
}

func TestMaintenanceJob_NoArchiver(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "runs")
	defer cleanup()

	job := NewMaintenanceJob(db, nil, 30, zerolog.Nop())
	job.SetDiskUsage(fixedUsage(100e9))

	assert.NoError(t, job.Run())
}

func TestMaintenanceJob_CriticalDiskSpace(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "runs")
	defer cleanup()

	job := NewMaintenanceJob(db, nil, 30, zerolog.Nop())
	job.SetDiskUsage(fixedUsage(100e6))

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRITICAL")
}

func TestMaintenanceJob_DiskUsageError(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "runs")
	defer cleanup()

	job := NewMaintenanceJob(db, nil, 30, zerolog.Nop())
	job.SetDiskUsage(func(string) (*disk.UsageStat, error) {
		return nil, errors.New("no such filesystem")
	})

	assert.Error(t, job.Run())
}
