package returns

import (
	"fmt"
	"math"

	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/pkg/formulas"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const maxShrinkage = 0.5

// Preparer computes annualized mean returns and covariance from price tables.
type Preparer struct {
	periodsPerYear float64
	shrink         bool
	log            zerolog.Logger
}

// NewPreparer creates a new statistics preparer.
func NewPreparer(periodsPerYear int, shrink bool, log zerolog.Logger) *Preparer {
	if periodsPerYear <= 0 {
		periodsPerYear = formulas.TradingDaysPerYear
	}
	return &Preparer{
		periodsPerYear: float64(periodsPerYear),
		shrink:         shrink,
		log:            log.With().Str("component", "returns_preparer").Logger(),
	}
}

// WithShrink returns a copy of the preparer with covariance shrinkage switched on or off.
func (p *Preparer) WithShrink(shrink bool) *Preparer {
	clone := *p
	clone.shrink = shrink
	return &clone
}

// Returns builds the matrix of simple periodic returns (rows = periods, cols = assets).
// Prices are forward-filled first; rows that still contain a gap are dropped.
func (p *Preparer) Returns(table *PriceTable) (*mat.Dense, error) {
	n := len(table.Assets)
	if n == 0 {
		return nil, fmt.Errorf("%w: price table has no assets", ErrInsufficientData)
	}

	columns := make([][]float64, n)
	for i := range columns {
		columns[i] = formulas.CalculateReturns(formulas.ForwardFill(table.Column(i)))
	}

	periods := len(columns[0])
	var rows []float64
	kept, dropped := 0, 0
	for t := 0; t < periods; t++ {
		complete := true
		for i := range columns {
			if math.IsNaN(columns[i][t]) || math.IsInf(columns[i][t], 0) {
				complete = false
				break
			}
		}
		if !complete {
			dropped++
			continue
		}
		for i := range columns {
			rows = append(rows, columns[i][t])
		}
		kept++
	}

	if dropped > 0 {
		p.log.Debug().Int("dropped_rows", dropped).Msg("Dropped return rows with missing prices")
	}
	if kept < 2 {
		return nil, fmt.Errorf("%w: need at least 2 complete return rows, got %d", ErrInsufficientData, kept)
	}
	return mat.NewDense(kept, n, rows), nil
}

// Prepare computes annualized statistics for the price table.
func (p *Preparer) Prepare(table *PriceTable) (*optimization.Statistics, error) {
	returns, err := p.Returns(table)
	if err != nil {
		return nil, err
	}
	rows, n := returns.Dims()

	mean := make([]float64, n)
	for i := 0; i < n; i++ {
		mean[i] = stat.Mean(mat.Col(nil, i, returns), nil) * p.periodsPerYear
	}

	var sample mat.SymDense
	stat.CovarianceMatrix(&sample, returns, nil)
	sample.ScaleSym(p.periodsPerYear, &sample)

	cov := toSlices(&sample)
	if p.shrink {
		var intensity float64
		cov, intensity = shrinkConstantCorrelation(cov)
		p.log.Debug().Float64("shrinkage", intensity).Msg("Applied covariance shrinkage")
	}

	stats, err := optimization.NewStatistics(table.Assets, mean, cov)
	if err != nil {
		return nil, fmt.Errorf("failed to build statistics: %w", err)
	}

	p.log.Debug().
		Int("assets", n).
		Int("periods", rows).
		Bool("shrink", p.shrink).
		Msg("Prepared return statistics")
	return stats, nil
}

func toSlices(m mat.Symmetric) [][]float64 {
	n := m.SymmetricDim()
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// shrinkConstantCorrelation pulls the sample covariance toward a target with the
// sample variances on the diagonal and the average pairwise correlation off it:
// Σ = (1-δ)·S + δ·F. The intensity δ is a simplified Ledoit-Wolf estimate capped at 0.5.
func shrinkConstantCorrelation(sample [][]float64) ([][]float64, float64) {
	n := len(sample)
	if n < 2 {
		return sample, 0
	}

	sd := make([]float64, n)
	for i := range sd {
		sd[i] = math.Sqrt(math.Max(0, sample[i][i]))
	}

	var sumCorr float64
	pairs := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if sd[i] > 0 && sd[j] > 0 {
				sumCorr += sample[i][j] / (sd[i] * sd[j])
			}
			pairs++
		}
	}
	avgCorr := sumCorr / float64(pairs)

	target := make([][]float64, n)
	var sumSqDiff, sumSample, sumSqSample float64
	for i := 0; i < n; i++ {
		target[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				target[i][j] = sample[i][i]
			} else {
				target[i][j] = avgCorr * sd[i] * sd[j]
			}
			diff := sample[i][j] - target[i][j]
			sumSqDiff += diff * diff
			sumSample += sample[i][j]
			sumSqSample += sample[i][j] * sample[i][j]
		}
	}

	count := float64(n * n)
	meanSqDiff := sumSqDiff / count
	meanSample := sumSample / count
	varSample := sumSqSample/count - meanSample*meanSample

	intensity := 0.2
	if varSample > 0 && meanSqDiff > 0 {
		intensity = math.Min(maxShrinkage, math.Max(0, varSample/(varSample+meanSqDiff)))
	}

	shrunk := make([][]float64, n)
	for i := 0; i < n; i++ {
		shrunk[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			shrunk[i][j] = (1-intensity)*sample[i][j] + intensity*target[i][j]
		}
	}
	return shrunk, intensity
}
