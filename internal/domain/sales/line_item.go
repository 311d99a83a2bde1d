package sales

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is a single normalized sales line. An order may span several line items.
// Revenue may be zero or negative (refunds).
type LineItem struct {
	Date     time.Time       `json:"date" yaml:"date"`
	OrderID  string          `json:"order_id" yaml:"order_id"`
	Revenue  decimal.Decimal `json:"revenue" yaml:"revenue"`
	Item     string          `json:"item" yaml:"item"`
	Category string          `json:"category" yaml:"category"`
	Kind     CategoryKind    `json:"kind" yaml:"kind"`
}

// NewLineItem builds a LineItem, filling the item/category defaults and deriving Kind
// from the raw category.
func NewLineItem(date time.Time, orderID string, revenue decimal.Decimal, item, category string) LineItem {
	if strings.TrimSpace(item) == "" {
		item = DefaultItem
	}
	if strings.TrimSpace(category) == "" {
		category = DefaultCategory
	}
	return LineItem{
		Date:     date,
		OrderID:  orderID,
		Revenue:  revenue,
		Item:     item,
		Category: category,
		Kind:     ParseCategoryKind(category),
	}
}

// Day returns the calendar day of the line item, truncated in its own location
func (li LineItem) Day() time.Time {
	return truncateDay(li.Date)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
