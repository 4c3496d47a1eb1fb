package utils

import (
	"strings"

	"github.com/samber/lo"
)

// ParseCSV splits a comma-separated ticker list, trimming blanks and dropping
// empty entries. Nil when nothing is left.
func ParseCSV(s string) []string {
	tickers := lo.FilterMap(strings.Split(s, ","), func(v string, _ int) (string, bool) {
		v = strings.TrimSpace(v)
		return v, v != ""
	})
	if len(tickers) == 0 {
		return nil
	}
	return tickers
}
