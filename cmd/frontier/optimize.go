package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aristath/frontier/internal/di"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/modules/returns"
	"github.com/aristath/frontier/internal/utils"
	"github.com/aristath/frontier/pkg/formulas"
	"github.com/aristath/frontier/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// statsFile is the YAML layout accepted by --stats
type statsFile struct {
	Assets      []string            `yaml:"assets"`
	MeanReturns []float64           `yaml:"mean_returns"`
	Covariance  [][]float64         `yaml:"covariance"`
	Bounds      optimization.Bounds `yaml:"bounds"`
}

// assetSummary describes one asset before optimization
type assetSummary struct {
	Asset      string
	Return     float64
	Volatility float64
	CAGR       *float64 // only known when built from prices
}

type input struct {
	stats  *optimization.Statistics
	bounds optimization.Bounds
	assets []assetSummary
}

func optimizeCommand() *cli.Command {
	return &cli.Command{
		Name:     "optimize",
		HelpName: "optimize",
		Usage:    "Compute the efficient frontier",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "prices",
				Aliases: []string{"p"},
				Usage:   "CSV price table, eg. ./prices.csv",
			},
			&cli.StringFlag{
				Name:    "stats",
				Aliases: []string{"s"},
				Usage:   "YAML file with assets, mean_returns, covariance and optional bounds",
			},
			&cli.StringFlag{
				Name:  "assets",
				Usage: "comma-separated subset of the price table, eg. AAPL,MSFT",
			},
			&cli.Float64Flag{
				Name:  "risk-free",
				Usage: "annual risk-free rate",
				Value: 0.02,
			},
			&cli.IntFlag{
				Name:    "points",
				Aliases: []string{"n"},
				Usage:   "number of frontier points",
				Value:   100,
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "concurrent frontier points, 0 for one per logical CPU",
				Value:   0,
			},
			&cli.IntFlag{
				Name:  "periods-per-year",
				Usage: "annualization factor for the price table",
				Value: formulas.TradingDaysPerYear,
			},
			&cli.BoolFlag{
				Name:  "shrink",
				Usage: "shrink the sample covariance toward constant correlation",
			},
			&cli.IntFlag{
				Name:  "max-iterations",
				Usage: "outer solver iterations",
				Value: optimization.DefaultSettings().MaxIterations,
			},
			&cli.Float64Flag{
				Name:  "tolerance",
				Usage: "solver tolerance",
				Value: optimization.DefaultSettings().Tolerance,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "write the frontier curve as CSV, eg. ./frontier.csv",
			},
		},
		Action: runOptimize,
	}
}

func runOptimize(c *cli.Context) error {
	log := logger.New(logger.Config{
		Level:  c.String("log-level"),
		Pretty: true,
		Output: c.App.ErrWriter,
	})

	in, err := loadInput(c, log)
	if err != nil {
		return err
	}

	settings := optimization.DefaultSettings()
	settings.MaxIterations = c.Int("max-iterations")
	settings.Tolerance = c.Float64("tolerance")
	service := optimization.NewOptimizerService(optimization.NewOptimizer(settings, log), optimization.DefaultOptions(), log)

	points := c.Int("points")
	bar := progressbar.NewOptions(points,
		progressbar.OptionSetWriter(errWriter(c)),
		progressbar.OptionSetDescription("frontier"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	rf := c.Float64("risk-free")
	timer := utils.NewTimer("cli_optimize", log)
	report, err := service.Optimize(c.Context, in.stats, optimization.Options{
		RiskFreeRate:   &rf,
		Bounds:         in.bounds,
		FrontierPoints: points,
		Workers:        di.ResolveWorkers(c.Int("workers"), log),
		Progress: func(done, total int) {
			_ = bar.Set(done)
		},
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}
	timer.Stop()

	out := c.App.Writer
	renderAssets(out, in.assets)
	renderPortfolio(out, "Maximum Sharpe Ratio Portfolio", report, report.MaxSharpe)
	renderPortfolio(out, "Minimum Variance Portfolio", report, report.MinVariance)
	fmt.Fprintf(out, "Sharpe Ratio: %.2f\n\n", report.SharpeRatio)
	renderFrontierSummary(out, report)

	if path := c.String("output"); path != "" {
		if err := writeFrontierFile(path, report); err != nil {
			return err
		}
		fmt.Fprintf(out, "Frontier written to %s\n", path)
	}
	return nil
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func loadInput(c *cli.Context, log zerolog.Logger) (*input, error) {
	pricesPath, statsPath := c.String("prices"), c.String("stats")
	switch {
	case pricesPath != "" && statsPath != "":
		return nil, errors.New("use either --prices or --stats, not both")
	case pricesPath != "":
		return loadPrices(pricesPath, utils.ParseCSV(c.String("assets")), c.Int("periods-per-year"), c.Bool("shrink"), log)
	case statsPath != "":
		return loadStats(statsPath)
	default:
		return nil, errors.New("one of --prices or --stats is required")
	}
}

func loadPrices(path string, assets []string, periodsPerYear int, shrink bool, log zerolog.Logger) (*input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prices: %w", err)
	}
	defer f.Close()

	table, err := returns.LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if table, err = table.Select(assets); err != nil {
		return nil, err
	}

	preparer := returns.NewPreparer(periodsPerYear, shrink, log)
	stats, err := preparer.Prepare(table)
	if err != nil {
		return nil, err
	}
	matrix, err := preparer.Returns(table)
	if err != nil {
		return nil, err
	}

	ppy := float64(periodsPerYear)
	rows, _ := matrix.Dims()
	summaries := make([]assetSummary, len(table.Assets))
	for i, name := range table.Assets {
		col := make([]float64, rows)
		for r := 0; r < rows; r++ {
			col[r] = matrix.At(r, i)
		}
		cagr := formulas.CalculateAnnualReturn(col, ppy)
		summaries[i] = assetSummary{
			Asset:      name,
			Return:     formulas.AnnualizedReturn(col, ppy),
			Volatility: formulas.AnnualizedVolatility(col, ppy),
			CAGR:       &cagr,
		}
	}

	return &input{stats: stats, assets: summaries}, nil
}

func loadStats(path string) (*input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}

	var file statsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	stats, err := optimization.NewStatistics(file.Assets, file.MeanReturns, file.Covariance)
	if err != nil {
		return nil, err
	}

	summaries := make([]assetSummary, stats.N())
	mean, cov := stats.MeanReturns(), stats.Covariance()
	for i, name := range stats.Assets() {
		summaries[i] = assetSummary{
			Asset:      name,
			Return:     mean[i],
			Volatility: sqrtNonNegative(cov[i][i]),
		}
	}

	return &input{stats: stats, bounds: file.Bounds, assets: summaries}, nil
}
