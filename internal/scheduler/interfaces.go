package scheduler

import (
	"context"

	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/modules/returns"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// OptimizerServiceInterface defines the contract for frontier computation
// Used by scheduler to enable testing with mocks
type OptimizerServiceInterface interface {
	Optimize(ctx context.Context, stats *optimization.Statistics, opts optimization.Options) (*optimization.Report, error)
}

// PreparerInterface turns a price table into annualized statistics
type PreparerInterface interface {
	Prepare(table *returns.PriceTable) (*optimization.Statistics, error)
}

// RecorderInterface persists a finished run
type RecorderInterface interface {
	Record(ctx context.Context, report *optimization.Report) (string, error)
}
