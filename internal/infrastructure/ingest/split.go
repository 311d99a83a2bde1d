package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/franchise/kpireport/internal/domain/sales"
	"go.uber.org/zap"
)

// SplitResult summarizes a SplitDaily run
type SplitResult struct {
	Sources []string `json:"sources" yaml:"sources"`
	Folders []string `json:"folders" yaml:"folders"`
	Files   int      `json:"files" yaml:"files"`
	Dropped int      `json:"dropped" yaml:"dropped"`
}

// SplitDaily splits every flat CSV export directly in dataDir into one file per calendar day,
// written as <dataDir>/<store folder>/<YYYY-MM-DD>.csv. Missing item and category columns are
// added with their defaults; rows with an unparseable date are dropped.
// Source files are left in place.
func (l *Loader) SplitDaily(ctx context.Context, dataDir string) (*SplitResult, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dataDir, err)
	}

	result := &SplitResult{}
	folders := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		folder := storeFolderName(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		written, dropped, err := l.splitFile(filepath.Join(dataDir, e.Name()), filepath.Join(dataDir, folder))
		if err != nil {
			return nil, err
		}
		result.Sources = append(result.Sources, e.Name())
		result.Files += written
		result.Dropped += dropped
		folders[folder] = struct{}{}

		l.logger.Info("Split store export into daily files",
			zap.String("source", e.Name()),
			zap.String("folder", folder),
			zap.Int("files", written),
		)
	}
	if len(result.Sources) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInputFiles, dataDir)
	}

	for f := range folders {
		result.Folders = append(result.Folders, f)
	}
	sort.Strings(result.Folders)
	return result, nil
}

func (l *Loader) splitFile(src, outDir string) (int, int, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	export, err := NewExportReader(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", src, err)
	}
	if err := export.Require(RequiredColumns...); err != nil {
		return 0, 0, fmt.Errorf("%s: %w", src, err)
	}

	columns := export.Header()
	header := append([]string(nil), columns...)
	var extra []string
	if !export.Has(ColumnCategory) {
		header = append(header, ColumnCategory)
		extra = append(extra, sales.DefaultCategory)
	}
	if !export.Has(ColumnItem) {
		header = append(header, ColumnItem)
		extra = append(extra, sales.DefaultItem)
	}

	days := make(map[string][][]string)
	dropped := 0
	for {
		row, err := export.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, 0, fmt.Errorf("%s: %w", src, err)
		}
		date, ok := l.parseDate(row.Get(ColumnDate))
		if !ok {
			dropped++
			continue
		}
		record := make([]string, 0, len(header))
		for _, c := range columns {
			record = append(record, row.Get(c))
		}
		record = append(record, extra...)
		day := date.Format(time.DateOnly)
		days[day] = append(days[day], record)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, 0, fmt.Errorf("failed to create %s: %w", outDir, err)
	}
	for day, records := range days {
		if err := writeCSV(filepath.Join(outDir, day+".csv"), header, records); err != nil {
			return 0, 0, err
		}
	}
	return len(days), dropped, nil
}

func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
