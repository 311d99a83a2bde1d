package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// KpiResult holds every metric computed for one store over one window.
// Tables are never nil: an empty window yields zero-length slices and
// three zero rows in AOVByCategory.
type KpiResult struct {
	Revenue           decimal.Decimal `json:"revenue" yaml:"revenue"`
	Orders            int             `json:"orders" yaml:"orders"`
	AOV               decimal.Decimal `json:"aov" yaml:"aov"`
	DrinksPct         float64         `json:"drinks_pct" yaml:"drinks_pct"`
	FoodPct           float64         `json:"food_pct" yaml:"food_pct"`
	SeasonalPct       float64         `json:"seasonal_pct" yaml:"seasonal_pct"`
	PctOrdersWithFood float64         `json:"pct_orders_with_food" yaml:"pct_orders_with_food"`
	PeakDayLabel      string          `json:"peak_day_label" yaml:"peak_day_label"`
	Units             int             `json:"units" yaml:"units"`

	CategoryRevenue []CategoryRevenueRow `json:"category_revenue" yaml:"category_revenue"`
	DailyRevenue    []DailyRevenueRow    `json:"daily_revenue" yaml:"daily_revenue"`
	TopItems        []ItemRevenueRow     `json:"top_items" yaml:"top_items"`
	BottomItems     []ItemRevenueRow     `json:"bottom_items" yaml:"bottom_items"`
	AOVByCategory   []AOVByCategoryRow   `json:"aov_by_category" yaml:"aov_by_category"`
	TopItemsByUnits []ItemUnitsRow       `json:"top_items_by_units" yaml:"top_items_by_units"`
}

// CategoryRevenueRow is revenue for one raw category string
type CategoryRevenueRow struct {
	Category       string          `json:"category" yaml:"category"`
	Revenue        decimal.Decimal `json:"revenue" yaml:"revenue"`
	PercentOfTotal float64         `json:"percent_of_total" yaml:"percent_of_total"`
}

// DailyRevenueRow is revenue for one calendar day
type DailyRevenueRow struct {
	Day     time.Time       `json:"day" yaml:"day"`
	Revenue decimal.Decimal `json:"revenue" yaml:"revenue"`
}

// ItemRevenueRow is revenue for one item
type ItemRevenueRow struct {
	Item    string          `json:"item" yaml:"item"`
	Revenue decimal.Decimal `json:"revenue" yaml:"revenue"`
}

// ItemUnitsRow is the number of line items sold for one item
type ItemUnitsRow struct {
	Item  string `json:"item" yaml:"item"`
	Units int    `json:"units" yaml:"units"`
}

// AOVByCategoryRow is the average order value among orders touching one tracked category
type AOVByCategoryRow struct {
	Category CategoryKind    `json:"category" yaml:"category"`
	Orders   int             `json:"orders" yaml:"orders"`
	Revenue  decimal.Decimal `json:"revenue" yaml:"revenue"`
	AOV      decimal.Decimal `json:"aov" yaml:"aov"`
}

// IsEmpty reports whether the window contained no line items
func (r *KpiResult) IsEmpty() bool {
	return r.Units == 0
}
