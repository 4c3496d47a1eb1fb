// Package returns turns price histories into the annualized return statistics
// consumed by the optimizer.
package returns

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ErrInsufficientData is returned when a price table has too few usable rows.
var ErrInsufficientData = errors.New("insufficient price data")

// PriceTable is a date-indexed table of closing prices, one column per asset.
// Missing prices are NaN.
type PriceTable struct {
	Assets []string
	Dates  []time.Time
	Prices [][]float64 // Prices[row][asset]
}

// Column returns the price series of the asset at index i.
func (t *PriceTable) Column(i int) []float64 {
	col := make([]float64, len(t.Prices))
	for row := range t.Prices {
		col[row] = t.Prices[row][i]
	}
	return col
}

// Select returns a table restricted to the named assets, in the given order.
func (t *PriceTable) Select(assets []string) (*PriceTable, error) {
	if len(assets) == 0 {
		return t, nil
	}
	if dups := lo.FindDuplicates(assets); len(dups) > 0 {
		return nil, fmt.Errorf("asset %s selected twice", dups[0])
	}

	idx := make([]int, len(assets))
	for i, name := range assets {
		idx[i] = lo.IndexOf(t.Assets, name)
		if idx[i] < 0 {
			return nil, fmt.Errorf("asset %s not in price table", name)
		}
	}

	out := &PriceTable{
		Assets: append([]string(nil), assets...),
		Dates:  t.Dates,
		Prices: make([][]float64, len(t.Prices)),
	}
	for row, prices := range t.Prices {
		out.Prices[row] = lo.Map(idx, func(col int, _ int) float64 { return prices[col] })
	}
	return out, nil
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// LoadCSV reads a price table with a header row "date,<ticker>,<ticker>...".
// Empty cells are treated as missing prices. Rows may come in any date order
// and are returned oldest first; a date appearing twice is an error.
func LoadCSV(r io.Reader) (*PriceTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("header needs a date column and at least one asset, got %d columns", len(header))
	}

	table := &PriceTable{Assets: make([]string, len(header)-1)}
	for i, name := range header[1:] {
		table.Assets[i] = strings.TrimSpace(name)
	}

	var lines []int
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := parseDate(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := make([]float64, len(table.Assets))
		for i, cell := range record[1:] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				row[i] = math.NaN()
				continue
			}
			price, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, table.Assets[i], err)
			}
			row[i] = price
		}

		table.Dates = append(table.Dates, date)
		table.Prices = append(table.Prices, row)
		lines = append(lines, line)
	}

	if len(table.Prices) == 0 {
		return nil, fmt.Errorf("%w: no price rows", ErrInsufficientData)
	}
	if err := table.sortByDate(lines); err != nil {
		return nil, err
	}
	return table, nil
}

// sortByDate orders rows oldest first. lines holds the source line of each row
// for error messages.
func (t *PriceTable) sortByDate(lines []int) error {
	order := make([]int, len(t.Dates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return t.Dates[order[a]].Before(t.Dates[order[b]])
	})

	dates := make([]time.Time, len(order))
	prices := make([][]float64, len(order))
	for i, src := range order {
		if i > 0 && t.Dates[src].Equal(dates[i-1]) {
			return fmt.Errorf("line %d: duplicate date %s (also on line %d)",
				lines[src], t.Dates[src].Format("2006-01-02"), lines[order[i-1]])
		}
		dates[i] = t.Dates[src]
		prices[i] = t.Prices[src]
	}
	t.Dates = dates
	t.Prices = prices
	return nil
}
