package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func sqrtNonNegative(v float64) float64 {
	return math.Sqrt(math.Max(0, v))
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func renderAssets(out io.Writer, assets []assetSummary) {
	hasCAGR := lo.SomeBy(assets, func(a assetSummary) bool { return a.CAGR != nil })

	header := []string{"Asset", "Exp. Return", "Volatility"}
	if hasCAGR {
		header = append(header, "CAGR")
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, a := range assets {
		row := []string{a.Asset, percent(a.Return), percent(a.Volatility)}
		if hasCAGR {
			row = append(row, percent(lo.FromPtr(a.CAGR)))
		}
		table.Append(row)
	}
	table.Render()
	fmt.Fprintln(out)
}

func renderPortfolio(out io.Writer, title string, report *optimization.Report, p optimization.Portfolio) {
	fmt.Fprintf(out, "%s Allocation:\n", title)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Asset", "Weight"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, a := range report.Allocations(p.Weights) {
		table.Append([]string{a.Asset, percent(a.Weight)})
	}
	table.SetFooter([]string{p.Status.String(), ""})
	table.Render()

	fmt.Fprintf(out, "Expected Return: %s, Volatility: %s\n\n", percent(p.Return), percent(p.Volatility))
}

func renderFrontierSummary(out io.Writer, report *optimization.Report) {
	if len(report.Frontier) == 0 {
		return
	}
	first, last := report.Frontier[0], report.Frontier[len(report.Frontier)-1]
	count := func(status optimization.Status) string {
		return strconv.Itoa(lo.CountBy(report.Frontier, func(p optimization.FrontierPoint) bool {
			return p.Status == status
		}))
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Points", "Converged", "Not Converged", "Infeasible", "Return Range", "Volatility Range"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.Append([]string{
		strconv.Itoa(len(report.Frontier)),
		count(optimization.StatusConverged),
		count(optimization.StatusNotConverged),
		count(optimization.StatusInfeasible),
		percent(first.TargetReturn) + " .. " + percent(last.TargetReturn),
		percent(first.Volatility) + " .. " + percent(last.Volatility),
	})
	table.Render()
	fmt.Fprintln(out)
}

// writeFrontier writes the curve as target_return,volatility,status rows
func writeFrontier(w io.Writer, report *optimization.Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"target_return", "volatility", "status"}); err != nil {
		return err
	}
	for _, p := range report.Frontier {
		record := []string{
			strconv.FormatFloat(p.TargetReturn, 'g', -1, 64),
			strconv.FormatFloat(p.Volatility, 'g', -1, 64),
			p.Status.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeFrontierFile(path string, report *optimization.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeFrontier(f, report); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
