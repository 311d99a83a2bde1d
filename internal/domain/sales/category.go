package sales

import "strings"

// Defaults applied upstream when a source file lacks the optional columns.
const (
	DefaultCategory = "Unknown"
	DefaultItem     = "Unknown Item"
)

// CategoryKind is the closed set of categories the KPIs track explicitly.
// Free-text categories from source files are mapped onto it once, at ingestion.
type CategoryKind int

const (
	CategoryOther CategoryKind = iota
	CategoryDrink
	CategoryFood
	CategorySeasonal
)

// TrackedCategories lists the kinds reported in category mix and AOV-by-category tables, in output order.
var TrackedCategories = []CategoryKind{CategoryDrink, CategoryFood, CategorySeasonal}

// ParseCategoryKind maps a raw category string onto a CategoryKind.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseCategoryKind(raw string) CategoryKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "drink":
		return CategoryDrink
	case "food":
		return CategoryFood
	case "seasonal":
		return CategorySeasonal
	default:
		return CategoryOther
	}
}

// String returns the display label of the kind
func (k CategoryKind) String() string {
	switch k {
	case CategoryDrink:
		return "Drink"
	case CategoryFood:
		return "Food"
	case CategorySeasonal:
		return "Seasonal"
	default:
		return "Other"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k CategoryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
