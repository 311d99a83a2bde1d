package report

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RankedRow is a comparison row with its position and share of the window's revenue
type RankedRow struct {
	Rank           int     `json:"rank" yaml:"rank"`
	PercentOfTotal float64 `json:"percent_of_total" yaml:"percent_of_total"`
	ComparisonRow  `yaml:",inline"`
}

// Rank orders rows by revenue descending and assigns 1-based ranks.
// Equal revenue keeps input order. Percent of total uses a divisor of 1
// when the window's revenue sums to zero.
func Rank(rows []ComparisonRow) []RankedRow {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Revenue)
	}
	if total.IsZero() {
		total = decimal.NewFromInt(1)
	}

	ranked := make([]RankedRow, len(rows))
	for i, r := range rows {
		ranked[i] = RankedRow{
			PercentOfTotal: r.Revenue.Div(total).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64(),
			ComparisonRow:  r,
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Revenue.GreaterThan(ranked[j].Revenue)
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
