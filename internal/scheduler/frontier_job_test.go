package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/modules/returns"
	testutil "github.com/aristath/frontier/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockOptimizerService is a mock implementation of OptimizerServiceInterface
type MockOptimizerService struct {
	OptimizeFunc func(ctx context.Context, stats *optimization.Statistics, opts optimization.Options) (*optimization.Report, error)
	calls        int
}

func (m *MockOptimizerService) Optimize(ctx context.Context, stats *optimization.Statistics, opts optimization.Options) (*optimization.Report, error) {
	m.calls++
	if m.OptimizeFunc != nil {
		return m.OptimizeFunc(ctx, stats, opts)
	}
	return testutil.NewReportFixture(), nil
}

// MockRecorder is a mock implementation of RecorderInterface
type MockRecorder struct {
	reports []*optimization.Report
	err     error
}

func (m *MockRecorder) Record(ctx context.Context, report *optimization.Report) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.reports = append(m.reports, report)
	return "run-42", nil
}

func writePricesFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(testutil.PricesCSVFixture), 0o644))
	return path
}

func TestFrontierJob_Name(t *testing.T) {
	job := NewFrontierJob("", nil, nil, nil)
	assert.Equal(t, "frontier_recompute", job.Name())
}

func TestFrontierJob_Run(t *testing.T) {
	service := &MockOptimizerService{}
	recorder := &MockRecorder{}
	preparer := returns.NewPreparer(252, false, zerolog.Nop())

	var seen *optimization.Statistics
	service.OptimizeFunc = func(ctx context.Context, stats *optimization.Statistics, opts optimization.Options) (*optimization.Report, error) {
		seen = stats
		return testutil.NewReportFixture(), nil
	}

	job := NewFrontierJob(writePricesFile(t), service, preparer, recorder)
	job.SetLogger(zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, 1, service.calls)
	require.NotNil(t, seen)
	assert.Equal(t, []string{"AAPL", "MSFT", "BND"}, seen.Assets())
	assert.Len(t, recorder.reports, 1)
	assert.Equal(t, "run-42", job.LastRunID())
}

func TestFrontierJob_Run_PassesProgressReporter(t *testing.T) {
	service := &MockOptimizerService{}
	service.OptimizeFunc = func(ctx context.Context, stats *optimization.Statistics, opts optimization.Options) (*optimization.Report, error) {
		require.NotNil(t, opts.Progress)
		opts.Progress(1, 1)
		return testutil.NewReportFixture(), nil
	}

	job := NewFrontierJob(writePricesFile(t), service, returns.NewPreparer(252, false, zerolog.Nop()), nil)
	reported := 0
	job.SetProgressReporter(func(done, total int) { reported = done })

	require.NoError(t, job.Run())
	assert.Equal(t, 1, reported)
}

func TestFrontierJob_Run_Errors(t *testing.T) {
	preparer := returns.NewPreparer(252, false, zerolog.Nop())

	t.Run("no service", func(t *testing.T) {
		job := NewFrontierJob(writePricesFile(t), nil, preparer, nil)
		assert.Error(t, job.Run())
	})

	t.Run("no prices file", func(t *testing.T) {
		job := NewFrontierJob("", &MockOptimizerService{}, preparer, nil)
		assert.Error(t, job.Run())
	})

	t.Run("missing prices file", func(t *testing.T) {
		job := NewFrontierJob(filepath.Join(t.TempDir(), "missing.csv"), &MockOptimizerService{}, preparer, nil)
		assert.Error(t, job.Run())
	})

	t.Run("optimizer failure", func(t *testing.T) {
		service := &MockOptimizerService{
			OptimizeFunc: func(context.Context, *optimization.Statistics, optimization.Options) (*optimization.Report, error) {
				return nil, errors.New("solver exploded")
			},
		}
		job := NewFrontierJob(writePricesFile(t), service, preparer, &MockRecorder{})
		err := job.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "solver exploded")
	})

	t.Run("recorder failure", func(t *testing.T) {
		job := NewFrontierJob(writePricesFile(t), &MockOptimizerService{}, preparer, &MockRecorder{err: errors.New("disk full")})
		err := job.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}
