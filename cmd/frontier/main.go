// Package main is the frontier command line tool. It computes the efficient
// frontier for a price history or a statistics file and prints the max-Sharpe and
// min-variance allocations.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "frontier",
		HelpName: "frontier",
		Usage:    "Mean-variance efficient frontier tools",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			optimizeCommand(),
			historyCommand(),
		},
	}
}
