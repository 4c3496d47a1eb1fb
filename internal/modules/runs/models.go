// Package runs persists frontier runs so they can be listed and fetched later.
package runs

import (
	"errors"
	"time"

	"github.com/aristath/frontier/internal/modules/optimization"
)

// ErrRunNotFound is returned when no run exists for an id.
var ErrRunNotFound = errors.New("run not found")

// Summary is the indexed, payload-free view of a stored run.
type Summary struct {
	ID                    string    `json:"id"`
	CreatedAt             time.Time `json:"created_at"`
	Assets                []string  `json:"assets"`
	RiskFreeRate          float64   `json:"risk_free_rate"`
	SharpeRatio           float64   `json:"sharpe_ratio"`
	MaxSharpeReturn       float64   `json:"max_sharpe_return"`
	MaxSharpeVolatility   float64   `json:"max_sharpe_volatility"`
	MinVarianceReturn     float64   `json:"min_variance_return"`
	MinVarianceVolatility float64   `json:"min_variance_volatility"`
	FrontierPoints        int       `json:"frontier_points"`
	ConvergedPoints       int       `json:"converged_points"`
	DurationMs            int64     `json:"duration_ms"`
}

// Run is a stored run with its full report.
type Run struct {
	Summary
	Report *optimization.Report `json:"report"`
}

func summarize(id string, report *optimization.Report) Summary {
	return Summary{
		ID:                    id,
		CreatedAt:             report.CreatedAt,
		Assets:                append([]string(nil), report.Assets...),
		RiskFreeRate:          report.RiskFreeRate,
		SharpeRatio:           report.SharpeRatio,
		MaxSharpeReturn:       report.MaxSharpe.Return,
		MaxSharpeVolatility:   report.MaxSharpe.Volatility,
		MinVarianceReturn:     report.MinVariance.Return,
		MinVarianceVolatility: report.MinVariance.Volatility,
		FrontierPoints:        len(report.Frontier),
		ConvergedPoints:       report.ConvergedPoints,
		DurationMs:            report.DurationMs,
	}
}
