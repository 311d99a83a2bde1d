package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franchise/kpireport/internal/domain/sales"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Column names of a store export
const (
	ColumnDate     = "date"
	ColumnOrderID  = "order_id"
	ColumnRevenue  = "revenue"
	ColumnItem     = "item"
	ColumnCategory = "category"
)

// RequiredColumns must be present in every input file
var RequiredColumns = []string{ColumnDate, ColumnOrderID, ColumnRevenue}

// dateLayouts are tried in order when parsing the date column
var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006/01/02",
	"01/02/2006",
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
}

var errEmptyRevenue = errors.New("empty revenue")

// Stats summarizes one load. DroppedRows holds the first few dropped rows
// (bounded like row errors); Dropped counts all of them.
type Stats struct {
	Files       int        `json:"files" yaml:"files"`
	Rows        int        `json:"rows" yaml:"rows"`
	Dropped     int        `json:"dropped" yaml:"dropped"`
	Stores      int        `json:"stores" yaml:"stores"`
	DroppedRows []RowError `json:"dropped_rows,omitempty" yaml:"dropped_rows,omitempty"`
}

// Loader reads store CSV exports into normalized line items
type Loader struct {
	location  *time.Location
	maxErrors int
	logger    *zap.Logger
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithLocation sets the time zone used for dates without an offset (default UTC)
func WithLocation(loc *time.Location) LoaderOption {
	return func(l *Loader) {
		if loc != nil {
			l.location = loc
		}
	}
}

// WithMaxErrors limits how many row errors are reported per file
func WithMaxErrors(n int) LoaderOption {
	return func(l *Loader) {
		l.maxErrors = n
	}
}

// NewLoader creates a Loader
func NewLoader(logger *zap.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{
		location:  time.UTC,
		maxErrors: 20,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CollectStores walks dataDir for *.csv files and groups their line items by store.
// Every store's items are sorted by date.
func (l *Loader) CollectStores(ctx context.Context, dataDir string) (sales.StoreSet, Stats, error) {
	var stats Stats

	paths, err := findCSVFiles(dataDir)
	if err != nil {
		return nil, stats, err
	}
	if len(paths) == 0 {
		return nil, stats, fmt.Errorf("%w in %s", ErrNoInputFiles, dataDir)
	}

	stores := make(sales.StoreSet)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		items, fileStats, err := l.LoadFile(path)
		if err != nil {
			return nil, stats, err
		}
		store := StoreNameFromPath(dataDir, path)
		stores.Add(store, items...)

		stats.Files++
		stats.Dropped += fileStats.Dropped
		for _, drop := range fileStats.DroppedRows {
			if len(stats.DroppedRows) == l.maxErrors {
				break
			}
			drop.File = path
			stats.DroppedRows = append(stats.DroppedRows, drop)
		}

		l.logger.Debug("Loaded store file",
			zap.String("path", path),
			zap.String("store", store),
			zap.Int("rows", fileStats.Rows),
			zap.Int("dropped", fileStats.Dropped),
		)
	}
	stores.SortByDate()
	stats.Rows = stores.LineItemCount()
	stats.Stores = len(stores)

	return stores, stats, nil
}

// LoadFile parses one CSV export. Rows with an unparseable date are dropped and counted;
// a missing order id or an unparseable revenue fails the file.
func (l *Loader) LoadFile(path string) ([]sales.LineItem, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	items, stats, err := l.Parse(f)
	if err != nil {
		return nil, stats, fmt.Errorf("%s: %w", path, err)
	}
	stats.Files = 1
	return items, stats, nil
}

// Parse reads line items from a CSV stream
func (l *Loader) Parse(r io.Reader) ([]sales.LineItem, Stats, error) {
	var stats Stats

	export, err := NewExportReader(r)
	if err != nil {
		return nil, stats, err
	}
	if err := export.Require(RequiredColumns...); err != nil {
		return nil, stats, err
	}

	errs := NewErrorCollection(l.maxErrors)
	drops := NewErrorCollection(l.maxErrors)
	var items []sales.LineItem
	for {
		row, err := export.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr RowError
		if errors.As(err, &rowErr) {
			errs.Add(rowErr)
			continue
		}
		if err != nil {
			return nil, stats, err
		}

		date, ok := l.parseDate(row.Get(ColumnDate))
		if !ok {
			drops.AddTypeError(row.Line, ColumnDate, ErrCodeInvalidDate, "date", row.Get(ColumnDate))
			continue
		}

		orderID := row.Get(ColumnOrderID)
		if orderID == "" {
			errs.AddRequiredError(row.Line, ColumnOrderID)
			continue
		}

		revenue, err := parseRevenue(row.Get(ColumnRevenue))
		if err != nil {
			errs.AddTypeError(row.Line, ColumnRevenue, ErrCodeInvalidRevenue, "decimal amount", row.Get(ColumnRevenue))
			continue
		}

		items = append(items, sales.NewLineItem(
			date,
			orderID,
			revenue,
			row.Get(ColumnItem),
			row.Get(ColumnCategory),
		))
	}
	if err := errs.Err(); err != nil {
		return nil, stats, err
	}

	stats.Rows = len(items)
	if drops.HasErrors() {
		stats.Dropped = drops.TotalCount()
		stats.DroppedRows = drops.Errors()
		l.logger.Debug("Dropped rows with unparseable dates", zap.String("rows", drops.String()))
	}
	return items, stats, nil
}

func (l *Loader) parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, l.location); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseRevenue accepts plain decimals with an optional leading "$" and thousands separators
func parseRevenue(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, errEmptyRevenue
	}
	return decimal.NewFromString(s)
}

// findCSVFiles returns every *.csv file below dir in lexical order
func findCSVFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return paths, nil
}
