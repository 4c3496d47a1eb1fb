package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/runs"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:     "history",
		HelpName: "history",
		Usage:    "List saved frontier runs, or show one with --id",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "directory holding runs.db",
				Value:   "./data",
				EnvVars: []string{"FRONTIER_DATA_DIR"},
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   20,
			},
			&cli.StringFlag{
				Name:  "id",
				Usage: "run id to show",
			},
		},
		Action: runHistory,
	}
}

func runHistory(c *cli.Context) error {
	db, err := database.New(database.Config{
		Path:    filepath.Join(c.String("data-dir"), "runs.db"),
		Profile: database.ProfileStandard,
		Name:    "runs",
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	repo := runs.NewRepository(db.Conn(), zerolog.Nop())
	out := c.App.Writer

	if id := c.String("id"); id != "" {
		run, err := repo.Get(c.Context, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run %s (%s)\n\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"))
		renderPortfolio(out, "Maximum Sharpe Ratio Portfolio", run.Report, run.Report.MaxSharpe)
		renderPortfolio(out, "Minimum Variance Portfolio", run.Report, run.Report.MinVariance)
		fmt.Fprintf(out, "Sharpe Ratio: %.2f\n\n", run.Report.SharpeRatio)
		renderFrontierSummary(out, run.Report)
		return nil
	}

	summaries, err := repo.List(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No saved runs")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Created", "Assets", "Sharpe", "Max Sharpe Return", "Min Var. Volatility", "Points"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, s := range summaries {
		table.Append([]string{
			s.ID,
			s.CreatedAt.Format("2006-01-02 15:04"),
			strings.Join(s.Assets, ","),
			strconv.FormatFloat(s.SharpeRatio, 'f', 2, 64),
			percent(s.MaxSharpeReturn),
			percent(s.MinVarianceVolatility),
			fmt.Sprintf("%d/%d", s.ConvergedPoints, s.FrontierPoints),
		})
	}
	table.Render()
	return nil
}
