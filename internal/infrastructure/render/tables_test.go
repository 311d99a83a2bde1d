package render

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		value    string
		places   int32
		expected string
	}{
		{"0", 0, "$0"},
		{"999.4", 0, "$999"},
		{"1234.5", 2, "$1,234.50"},
		{"1234567.891", 2, "$1,234,567.89"},
		{"100000", 0, "$100,000"},
		{"-2500.5", 2, "-$2,500.50"},
		{"0.005", 2, "$0.01"},
		{"-0.001", 2, "$0.00"},
		{"1999.5", 0, "$2,000"},
		{"12345678901.25", 2, "$12,345,678,901.25"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatMoney(decimal.RequireFromString(tt.value), tt.places))
		})
	}
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "Latte", formatCell(text("Latte")))
	assert.Equal(t, "42", formatCell(integer(42)))
	assert.Equal(t, "12345", formatCell(integer(12345)))
	assert.Equal(t, "-3", formatCell(integer(-3)))
	assert.Equal(t, "$1,500", formatCell(money(decimal.NewFromInt(1500))))
	assert.Equal(t, "$7.25", formatCell(currency(decimal.RequireFromString("7.25"))))
	assert.Equal(t, "37.5%", formatCell(percent(37.5)))
	assert.Equal(t, "n/a", formatCell(optionalPercent(nil)))
}

func TestSummaryTable_RankedByRevenue(t *testing.T) {
	doc := testDocument(t)

	weekly, ok := doc.Summary("Weekly")
	require.True(t, ok)
	table := summaryTable(doc, weekly)

	assert.Equal(t, "Weekly Summary", table.Title)
	assert.Equal(t, "Week Range", table.Headers[2])
	assert.Equal(t, "Revenue", table.Headers[summaryRevenueCol])
	assert.Equal(t, "AOV", table.Headers[summaryAOVCol])
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, "1", formatCell(first[0]))
	assert.Equal(t, "Store2", first[summaryStoreCol].Text)
	assert.Equal(t, "$30", formatCell(first[summaryRevenueCol]))
	assert.Equal(t, "60.0%", formatCell(first[11]))
	assert.Equal(t, "100.0%", formatCell(first[13]))

	second := table.Rows[1]
	assert.Equal(t, "Store1", second[summaryStoreCol].Text)
	assert.Equal(t, "$10.00", formatCell(second[summaryAOVCol]))
	assert.Equal(t, "n/a", formatCell(second[13]))

	for _, row := range table.Rows {
		assert.Len(t, row, len(table.Headers))
	}
}

func TestStoreSections(t *testing.T) {
	doc := testDocument(t)

	sections := storeSections(doc, "Store1")
	require.Len(t, sections, 8)
	assert.Equal(t, "Store1 – WEEKLY • Category Revenue", sections[0].Title)
	assert.Equal(t, "Store1 – MONTHLY • AOV by Category", sections[7].Title)

	categories := sections[0]
	require.Len(t, categories.Rows, 2)
	assert.Equal(t, "Drink", categories.Rows[0][0].Text)
	assert.Equal(t, "$14.00", formatCell(categories.Rows[0][1]))

	aov := sections[3]
	require.Len(t, aov.Rows, 3)
	for _, row := range aov.Rows {
		assert.Len(t, row, len(aov.Headers))
	}

	assert.Empty(t, storeSections(doc, "Unknown"))
}
