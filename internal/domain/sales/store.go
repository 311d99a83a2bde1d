package sales

import "sort"

// StoreSet maps a store name to every line item attributed to it.
// Records from several source files that resolve to the same name share one entry.
type StoreSet map[string][]LineItem

// Add appends records to the named store
func (s StoreSet) Add(store string, records ...LineItem) {
	s[store] = append(s[store], records...)
}

// Names returns the store names in ascending order
func (s StoreSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LineItemCount returns the total number of records across stores
func (s StoreSet) LineItemCount() int {
	n := 0
	for _, records := range s {
		n += len(records)
	}
	return n
}

// SortByDate orders each store's records by date, keeping source order for equal timestamps.
func (s StoreSet) SortByDate() {
	for _, records := range s {
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Date.Before(records[j].Date)
		})
	}
}
