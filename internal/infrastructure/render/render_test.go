package render

import (
	"context"
	"testing"
	"time"

	"github.com/franchise/kpireport/internal/application/report"
	"github.com/franchise/kpireport/internal/domain/sales"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var generatedAt = time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC)

func line(day int, order, revenue, item, category string) sales.LineItem {
	ts := time.Date(2025, time.January, day, 12, 0, 0, 0, time.UTC)
	return sales.NewLineItem(ts, order, decimal.RequireFromString(revenue), item, category)
}

// testDocument aggregates two stores as of Jan 15 2025.
// Weekly revenue: Store1 20.00 (no prior week), Store2 30.00 (prior week 15.00).
func testDocument(t *testing.T) *report.Document {
	t.Helper()

	stores := sales.StoreSet{
		"Store1": {
			line(10, "A1", "10.00", "Latte", "Drink"),
			line(11, "A2", "6.00", "Scone", "Food"),
			line(11, "A2", "4.00", "Latte", "Drink"),
		},
		"Store2": {
			line(1, "B0", "15.00", "Mocha", "Drink"),
			line(12, "B1", "30.00", "Latte", "Drink"),
		},
	}
	windows := report.StandardWindows(time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), 7, 30)

	agg, err := report.NewAggregator(1, nil).Aggregate(context.Background(), stores, windows)
	require.NoError(t, err)

	return &report.Document{
		RunID:       "run-1",
		Title:       "Franchise Sales Report",
		GeneratedAt: generatedAt,
		Aggregation: agg,
	}
}
