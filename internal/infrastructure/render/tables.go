// Package render turns an aggregated report document into XLSX, HTML and PDF.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/franchise/kpireport/internal/application/report"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CellKind selects how a cell value is formatted
type CellKind int

const (
	KindText     CellKind = iota
	KindInt               // whole number
	KindMoney             // currency, whole dollars
	KindCurrency          // currency, cents
	KindPercent           // Value holds 0-100
)

var hundred = decimal.NewFromInt(100)

// Report amounts are US dollars grouped the English way
var amountPrinter = message.NewPrinter(language.English)

// Cell is one formatted table value. Int holds KindInt values, Value the
// money and percent kinds.
type Cell struct {
	Kind  CellKind
	Text  string
	Int   int
	Value decimal.Decimal
}

func text(s string) Cell {
	return Cell{Kind: KindText, Text: s}
}

func integer(n int) Cell {
	return Cell{Kind: KindInt, Int: n}
}

func money(d decimal.Decimal) Cell {
	return Cell{Kind: KindMoney, Value: d}
}

func currency(d decimal.Decimal) Cell {
	return Cell{Kind: KindCurrency, Value: d}
}

func percent(pct float64) Cell {
	return Cell{Kind: KindPercent, Value: decimal.NewFromFloat(pct)}
}

func optionalPercent(pct *float64) Cell {
	if pct == nil {
		return text("n/a")
	}
	return percent(*pct)
}

// Table is a titled grid shared by the workbook and HTML renderers
type Table struct {
	Title   string
	Headers []string
	Rows    [][]Cell
}

// Summary table column positions (zero-based) referenced by the charts
const (
	summaryStoreCol   = 1
	summaryRevenueCol = 3
	summaryAOVCol     = 5
)

// summaryTable builds the ranked comparison table of one window
func summaryTable(doc *report.Document, summary report.WindowSummary) Table {
	t := Table{
		Title: summary.Label + " Summary",
		Headers: []string{
			"Rank", "Store", rangeHeader(summary.Label), "Revenue", "Orders", "AOV",
			"Drinks %", "Food %", "Seasonal %", "% Orders w/ Food", "Peak Day", "% of Total",
			"Prior Revenue", "Change %",
		},
	}
	for _, r := range doc.Ranked(summary.Label) {
		t.Rows = append(t.Rows, []Cell{
			integer(r.Rank),
			text(r.Store),
			text(r.RangeLabel),
			money(r.Revenue),
			integer(r.Orders),
			currency(r.AOV),
			percent(r.DrinksPct),
			percent(r.FoodPct),
			percent(r.SeasonalPct),
			percent(r.PctOrdersWithFood),
			text(r.PeakDay),
			percent(r.PercentOfTotal),
			money(r.PriorRevenue),
			optionalPercent(r.RevenueChangePct),
		})
	}
	return t
}

func rangeHeader(label string) string {
	switch label {
	case report.WindowWeekly:
		return "Week Range"
	case report.WindowMonthly:
		return "Month Range"
	default:
		return "Range"
	}
}

// storeSections builds the detail tables of one store: four per window
func storeSections(doc *report.Document, store string) []Table {
	var tables []Table
	for _, w := range doc.Aggregation.Windows {
		detail, ok := doc.Aggregation.Detail(store, w.Label)
		if !ok {
			continue
		}
		prefix := fmt.Sprintf("%s – %s • ", store, strings.ToUpper(w.Label))

		categories := Table{Title: prefix + "Category Revenue", Headers: []string{"Category", "Revenue", "% of Total"}}
		for _, c := range detail.CategoryRevenue {
			categories.Rows = append(categories.Rows, []Cell{text(c.Category), currency(c.Revenue), percent(c.PercentOfTotal)})
		}

		top := Table{Title: prefix + "Top 3 Items", Headers: []string{"Item", "Revenue"}}
		for _, it := range detail.TopItems {
			top.Rows = append(top.Rows, []Cell{text(it.Item), currency(it.Revenue)})
		}

		bottom := Table{Title: prefix + "Bottom 3 Items", Headers: []string{"Item", "Revenue"}}
		for _, it := range detail.BottomItems {
			bottom.Rows = append(bottom.Rows, []Cell{text(it.Item), currency(it.Revenue)})
		}

		aov := Table{Title: prefix + "AOV by Category", Headers: []string{"Category", "Orders", "Revenue", "AOV"}}
		for _, a := range detail.AOVByCategory {
			aov.Rows = append(aov.Rows, []Cell{text(a.Category.String()), integer(a.Orders), currency(a.Revenue), currency(a.AOV)})
		}

		tables = append(tables, categories, top, bottom, aov)
	}
	return tables
}

// formatCell renders a cell as display text
func formatCell(c Cell) string {
	switch c.Kind {
	case KindInt:
		return strconv.Itoa(c.Int)
	case KindMoney:
		return formatMoney(c.Value, 0)
	case KindCurrency:
		return formatMoney(c.Value, 2)
	case KindPercent:
		return c.Value.StringFixed(1) + "%"
	default:
		return c.Text
	}
}

// formatMoney formats d as dollars with thousands separators.
// Example: 1234.5 -> "$1,234.50"
func formatMoney(d decimal.Decimal, places int32) string {
	d = d.Round(places)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + "$" + amountPrinter.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(int(places))))
}
