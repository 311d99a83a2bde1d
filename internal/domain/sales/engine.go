package sales

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// topN is the size of the top/bottom item tables.
const topN = 3

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Compute derives the KPI set for the records that fall inside w.
// It never fails: an empty window yields zero scalars and empty, correctly shaped tables.
// Records are not modified.
func Compute(records []LineItem, w Window) KpiResult {
	win := w.Filter(records)

	revenue := decimal.Zero
	orders := make(map[string]struct{})
	foodOrders := make(map[string]struct{})
	kindRevenue := make(map[CategoryKind]decimal.Decimal, len(TrackedCategories))
	for _, r := range win {
		revenue = revenue.Add(r.Revenue)
		orders[r.OrderID] = struct{}{}
		kindRevenue[r.Kind] = kindRevenue[r.Kind].Add(r.Revenue)
		if r.Kind == CategoryFood {
			foodOrders[r.OrderID] = struct{}{}
		}
	}

	items := itemRevenue(win)
	result := KpiResult{
		Revenue:           revenue.Round(2),
		Orders:            len(orders),
		AOV:               averageOrderValue(revenue, len(orders)),
		DrinksPct:         percentOf(kindRevenue[CategoryDrink], revenue),
		FoodPct:           percentOf(kindRevenue[CategoryFood], revenue),
		SeasonalPct:       percentOf(kindRevenue[CategorySeasonal], revenue),
		PctOrdersWithFood: orderShare(len(foodOrders), len(orders)),
		Units:             len(win),
		CategoryRevenue:   categoryRevenue(win, revenue),
		DailyRevenue:      dailyRevenue(win),
		TopItems:          headItems(items),
		BottomItems:       tailItems(items),
		AOVByCategory:     aovByCategory(win),
		TopItemsByUnits:   itemUnits(win),
	}
	result.PeakDayLabel = peakDayLabel(result.DailyRevenue)
	return result
}

// averageOrderValue is revenue/orders rounded to cents, zero without orders
func averageOrderValue(revenue decimal.Decimal, orders int) decimal.Decimal {
	if orders == 0 {
		return decimal.Zero
	}
	return revenue.Div(decimal.NewFromInt(int64(orders))).Round(2)
}

// percentOf returns part/total*100 rounded to one decimal.
// A zero total is replaced by 1 so empty windows report 0%.
func percentOf(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		total = one
	}
	return part.Div(total).Mul(hundred).Round(1).InexactFloat64()
}

func orderShare(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(hundred).
		Round(1).
		InexactFloat64()
}

// categoryRevenue groups by the raw category string; ties are ordered by name.
func categoryRevenue(win []LineItem, total decimal.Decimal) []CategoryRevenueRow {
	sums := make(map[string]decimal.Decimal)
	for _, r := range win {
		sums[r.Category] = sums[r.Category].Add(r.Revenue)
	}

	rows := make([]CategoryRevenueRow, 0, len(sums))
	for category, rev := range sums {
		rows = append(rows, CategoryRevenueRow{
			Category:       category,
			Revenue:        rev,
			PercentOfTotal: percentOf(rev, total),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Revenue.Cmp(rows[j].Revenue); c != 0 {
			return c > 0
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}

// dailyRevenue returns one row per calendar day with records, oldest first.
func dailyRevenue(win []LineItem) []DailyRevenueRow {
	index := make(map[string]int)
	rows := make([]DailyRevenueRow, 0)
	for _, r := range win {
		day := r.Day()
		key := day.Format(time.DateOnly)
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, DailyRevenueRow{Day: day, Revenue: decimal.Zero})
		}
		rows[i].Revenue = rows[i].Revenue.Add(r.Revenue)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Day.Before(rows[j].Day)
	})
	return rows
}

// peakDayLabel formats the highest-revenue day as "Tue ($482.50)".
// On equal revenue the earliest day wins.
func peakDayLabel(daily []DailyRevenueRow) string {
	if len(daily) == 0 {
		return ""
	}
	peak := daily[0]
	for _, d := range daily[1:] {
		if d.Revenue.GreaterThan(peak.Revenue) {
			peak = d
		}
	}
	return fmt.Sprintf("%s ($%s)", peak.Day.Format("Mon"), peak.Revenue.StringFixed(2))
}

// itemRevenue groups by item and sorts by revenue descending, then item name.
func itemRevenue(win []LineItem) []ItemRevenueRow {
	sums := make(map[string]decimal.Decimal)
	for _, r := range win {
		sums[r.Item] = sums[r.Item].Add(r.Revenue)
	}
	rows := make([]ItemRevenueRow, 0, len(sums))
	for item, rev := range sums {
		rows = append(rows, ItemRevenueRow{Item: item, Revenue: rev})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Revenue.Cmp(rows[j].Revenue); c != 0 {
			return c > 0
		}
		return rows[i].Item < rows[j].Item
	})
	return rows
}

func headItems(sorted []ItemRevenueRow) []ItemRevenueRow {
	n := min(topN, len(sorted))
	out := make([]ItemRevenueRow, n)
	copy(out, sorted[:n])
	return out
}

// tailItems returns the last three rows, or every row when there are fewer than three.
func tailItems(sorted []ItemRevenueRow) []ItemRevenueRow {
	if len(sorted) < topN {
		return headItems(sorted)
	}
	out := make([]ItemRevenueRow, topN)
	copy(out, sorted[len(sorted)-topN:])
	return out
}

// itemUnits ranks items by number of line items sold.
func itemUnits(win []LineItem) []ItemUnitsRow {
	counts := make(map[string]int)
	for _, r := range win {
		counts[r.Item]++
	}
	rows := make([]ItemUnitsRow, 0, len(counts))
	for item, units := range counts {
		rows = append(rows, ItemUnitsRow{Item: item, Units: units})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Units != rows[j].Units {
			return rows[i].Units > rows[j].Units
		}
		return rows[i].Item < rows[j].Item
	})
	if len(rows) > topN {
		rows = rows[:topN]
	}
	return rows
}

// aovByCategory always emits one row per tracked category, zeros included.
func aovByCategory(win []LineItem) []AOVByCategoryRow {
	rows := make([]AOVByCategoryRow, 0, len(TrackedCategories))
	for _, kind := range TrackedCategories {
		orders := make(map[string]struct{})
		rev := decimal.Zero
		for _, r := range win {
			if r.Kind != kind {
				continue
			}
			orders[r.OrderID] = struct{}{}
			rev = rev.Add(r.Revenue)
		}
		rows = append(rows, AOVByCategoryRow{
			Category: kind,
			Orders:   len(orders),
			Revenue:  rev,
			AOV:      averageOrderValue(rev, len(orders)),
		})
	}
	return rows
}
