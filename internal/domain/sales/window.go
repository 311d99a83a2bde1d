package sales

import (
	"fmt"
	"time"
)

// Window is a half-open time range: Start <= t < End.
type Window struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// NewWindow creates a window from its bounds
func NewWindow(start, end time.Time) Window {
	return Window{Start: start, End: end}
}

// TrailingWindow returns the window of the given number of days ending (exclusive) at end.
func TrailingWindow(end time.Time, days int) Window {
	return Window{Start: end.AddDate(0, 0, -days), End: end}
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns the length of the window
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Previous returns the window of the same length that ends where this one starts.
func (w Window) Previous() Window {
	return Window{Start: w.Start.Add(-w.Duration()), End: w.Start}
}

// RangeLabel formats the window for report headers, e.g. "Jan 01 - Jan 08, 2025".
func (w Window) RangeLabel() string {
	return fmt.Sprintf("%s - %s", w.Start.Format("Jan 02"), w.End.Format("Jan 02, 2006"))
}

// Filter returns the line items that fall inside the window, preserving order.
func (w Window) Filter(records []LineItem) []LineItem {
	out := make([]LineItem, 0, len(records))
	for _, r := range records {
		if w.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// LabeledWindow pairs a window with the name it is reported under ("Weekly", "Monthly").
type LabeledWindow struct {
	Label  string `json:"label" yaml:"label"`
	Window Window `json:"window" yaml:"window"`
}
