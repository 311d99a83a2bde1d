package report

import (
	"context"
	"runtime"

	"github.com/franchise/kpireport/internal/domain/sales"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ComparisonRow is the scalar KPI set of one store for one window.
// Rows are emitted in store-name order; ranking is a rendering concern (see Rank).
type ComparisonRow struct {
	Store             string          `json:"store" yaml:"store"`
	RangeLabel        string          `json:"range_label" yaml:"range_label"`
	Revenue           decimal.Decimal `json:"revenue" yaml:"revenue"`
	Orders            int             `json:"orders" yaml:"orders"`
	AOV               decimal.Decimal `json:"aov" yaml:"aov"`
	DrinksPct         float64         `json:"drinks_pct" yaml:"drinks_pct"`
	FoodPct           float64         `json:"food_pct" yaml:"food_pct"`
	SeasonalPct       float64         `json:"seasonal_pct" yaml:"seasonal_pct"`
	PctOrdersWithFood float64         `json:"pct_orders_with_food" yaml:"pct_orders_with_food"`
	PeakDay           string          `json:"peak_day" yaml:"peak_day"`
	Units             int             `json:"units" yaml:"units"`
	PriorRevenue      decimal.Decimal `json:"prior_revenue" yaml:"prior_revenue"`
	RevenueChangePct  *float64        `json:"revenue_change_pct,omitempty" yaml:"revenue_change_pct,omitempty"`
}

// StoreDetail holds the per-store tables passed through to the renderer unchanged
type StoreDetail struct {
	CategoryRevenue []sales.CategoryRevenueRow `json:"category_revenue" yaml:"category_revenue"`
	TopItems        []sales.ItemRevenueRow     `json:"top_items" yaml:"top_items"`
	BottomItems     []sales.ItemRevenueRow     `json:"bottom_items" yaml:"bottom_items"`
	AOVByCategory   []sales.AOVByCategoryRow   `json:"aov_by_category" yaml:"aov_by_category"`
	DailyRevenue    []sales.DailyRevenueRow    `json:"daily_revenue" yaml:"daily_revenue"`
}

// DetailKey addresses a StoreDetail
type DetailKey struct {
	Store  string
	Window string
}

// WindowSummary is the comparison table for one labeled window
type WindowSummary struct {
	Label      string          `json:"label" yaml:"label"`
	Window     sales.Window    `json:"window" yaml:"window"`
	RangeLabel string          `json:"range_label" yaml:"range_label"`
	Rows       []ComparisonRow `json:"rows" yaml:"rows"`
}

// Aggregation is the build-once result consumed by renderers
type Aggregation struct {
	Stores  []string                  `json:"stores" yaml:"stores"`
	Windows []WindowSummary           `json:"windows" yaml:"windows"`
	Details map[DetailKey]StoreDetail `json:"-" yaml:"-"`
}

// Detail returns the detail tables of a store for a window label
func (a *Aggregation) Detail(store, window string) (StoreDetail, bool) {
	d, ok := a.Details[DetailKey{Store: store, Window: window}]
	return d, ok
}

// Aggregator runs the KPI engine for every store and window
type Aggregator struct {
	workers int
	logger  *zap.Logger
}

// NewAggregator creates an aggregator. workers bounds the number of concurrent
// store/window computations; values below 1 use GOMAXPROCS.
func NewAggregator(workers int, logger *zap.Logger) *Aggregator {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{workers: workers, logger: logger}
}

// cell is the result of one store/window computation
type cell struct {
	current sales.KpiResult
	prior   sales.KpiResult
}

// Aggregate computes every store for every window and assembles the comparison tables.
// A store without records in a window still gets an all-zero row.
// Besides the one engine run per store and window, each cell runs the engine a
// second time over the preceding window of equal length; that result only feeds
// PriorRevenue and RevenueChangePct.
// The only error is cancellation of ctx.
func (a *Aggregator) Aggregate(ctx context.Context, stores sales.StoreSet, windows []sales.LabeledWindow) (*Aggregation, error) {
	names := stores.Names()
	cells := make([]cell, len(names)*len(windows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, store := range names {
		records := stores[store]
		for j, lw := range windows {
			idx := i*len(windows) + j
			w := lw.Window
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				cells[idx] = cell{
					current: sales.Compute(records, w),
					prior:   sales.Compute(records, w.Previous()),
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := &Aggregation{
		Stores:  names,
		Windows: make([]WindowSummary, len(windows)),
		Details: make(map[DetailKey]StoreDetail, len(cells)),
	}
	for j, lw := range windows {
		summary := WindowSummary{
			Label:      lw.Label,
			Window:     lw.Window,
			RangeLabel: lw.Window.RangeLabel(),
			Rows:       make([]ComparisonRow, 0, len(names)),
		}
		empty := 0
		for i, store := range names {
			c := cells[i*len(windows)+j]
			if c.current.IsEmpty() {
				empty++
			}
			summary.Rows = append(summary.Rows, newComparisonRow(store, summary.RangeLabel, c))
			agg.Details[DetailKey{Store: store, Window: lw.Label}] = newStoreDetail(c.current)
		}
		agg.Windows[j] = summary

		a.logger.Debug("Window aggregated",
			zap.String("window", lw.Label),
			zap.String("range", summary.RangeLabel),
			zap.Int("stores", len(summary.Rows)),
			zap.Int("stores_without_sales", empty),
		)
	}

	return agg, nil
}

func newComparisonRow(store, rangeLabel string, c cell) ComparisonRow {
	r := c.current
	return ComparisonRow{
		Store:             store,
		RangeLabel:        rangeLabel,
		Revenue:           r.Revenue,
		Orders:            r.Orders,
		AOV:               r.AOV,
		DrinksPct:         r.DrinksPct,
		FoodPct:           r.FoodPct,
		SeasonalPct:       r.SeasonalPct,
		PctOrdersWithFood: r.PctOrdersWithFood,
		PeakDay:           r.PeakDayLabel,
		Units:             r.Units,
		PriorRevenue:      c.prior.Revenue,
		RevenueChangePct:  revenueChange(r.Revenue, c.prior.Revenue),
	}
}

func newStoreDetail(r sales.KpiResult) StoreDetail {
	return StoreDetail{
		CategoryRevenue: r.CategoryRevenue,
		TopItems:        r.TopItems,
		BottomItems:     r.BottomItems,
		AOVByCategory:   r.AOVByCategory,
		DailyRevenue:    r.DailyRevenue,
	}
}

// revenueChange is the period-over-period change in percent, nil without prior revenue.
func revenueChange(current, prior decimal.Decimal) *float64 {
	if prior.IsZero() {
		return nil
	}
	pct := current.Sub(prior).Div(prior).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
	return &pct
}
