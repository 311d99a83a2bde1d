package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/franchise/kpireport/internal/domain/sales"
	"github.com/franchise/kpireport/internal/infrastructure/ingest"
	"github.com/franchise/kpireport/internal/infrastructure/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Window labels used by the standard weekly/monthly run
const (
	WindowWeekly  = "Weekly"
	WindowMonthly = "Monthly"
)

// Artifact content types
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
	ContentTypeHTML = "text/html; charset=utf-8"
)

// Errors returned by the report service
var (
	ErrUnknownStore   = errors.New("store not found in data directory")
	ErrInvalidRequest = errors.New("invalid report request")
)

// StoreSource loads normalized line items grouped by store
type StoreSource interface {
	CollectStores(ctx context.Context, dataDir string) (sales.StoreSet, ingest.Stats, error)
}

// WorkbookRenderer renders a report document as an XLSX workbook
type WorkbookRenderer interface {
	RenderWorkbook(doc *Document) ([]byte, error)
}

// HTMLRenderer renders a report document as a standalone HTML page
type HTMLRenderer interface {
	RenderHTML(doc *Document) (string, error)
}

// PDFExporter converts rendered HTML into a PDF document
type PDFExporter interface {
	Export(ctx context.Context, html, title string) ([]byte, error)
}

// Sink stores a finished artifact and returns where it was written
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// RunRecorder receives the outcome of every successful run
type RunRecorder interface {
	Record(result *RunResult) error
}

// Document is everything a renderer needs for one report
type Document struct {
	RunID       string
	Title       string
	GeneratedAt time.Time
	Aggregation *Aggregation
}

// Summary returns the window summary with the given label
func (d *Document) Summary(label string) (WindowSummary, bool) {
	for _, w := range d.Aggregation.Windows {
		if w.Label == label {
			return w, true
		}
	}
	return WindowSummary{}, false
}

// Ranked returns the ranked comparison rows of a window
func (d *Document) Ranked(label string) []RankedRow {
	w, ok := d.Summary(label)
	if !ok {
		return []RankedRow{}
	}
	return Rank(w.Rows)
}

// RunRequest parameterizes one report run
type RunRequest struct {
	AsOf      time.Time
	DataDir   string `validate:"required"`
	WeekDays  int    `validate:"gt=0"`
	MonthDays int    `validate:"gt=0"`
	PDF       bool
}

// Artifact is one written output file
type Artifact struct {
	Name        string `json:"name" yaml:"name"`
	Location    string `json:"location" yaml:"location"`
	ContentType string `json:"content_type" yaml:"content_type"`
	Bytes       int    `json:"bytes" yaml:"bytes"`
}

// RunResult describes a completed run
type RunResult struct {
	RunID          string                `json:"run_id" yaml:"run_id"`
	GeneratedAt    time.Time             `json:"generated_at" yaml:"generated_at"`
	Windows        []sales.LabeledWindow `json:"windows" yaml:"windows"`
	Load           ingest.Stats          `json:"load" yaml:"load"`
	Artifacts      []Artifact            `json:"artifacts" yaml:"artifacts"`
	RenderDuration time.Duration         `json:"render_duration" yaml:"render_duration"`
	Aggregation    *Aggregation          `json:"aggregation" yaml:"aggregation"`
}

// Service orchestrates a report run: load, aggregate, render, export, store
type Service struct {
	source     StoreSource
	aggregator *Aggregator
	workbook   WorkbookRenderer
	html       HTMLRenderer
	pdf        PDFExporter
	sink       Sink
	recorder   RunRecorder
	filePrefix string
	now        func() time.Time
	validate   *validator.Validate
	logger     *zap.Logger
}

// ServiceOption configures optional collaborators of the Service
type ServiceOption func(*Service)

// WithPDFExport enables PDF output through an HTML renderer and exporter
func WithPDFExport(html HTMLRenderer, pdf PDFExporter) ServiceOption {
	return func(s *Service) {
		s.html = html
		s.pdf = pdf
	}
}

// WithRecorder sets a recorder notified after each run
func WithRecorder(r RunRecorder) ServiceOption {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithClock overrides the time source used for the default as-of date and file names
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithFilePrefix sets the artifact file name prefix (default "franchise_report")
func WithFilePrefix(prefix string) ServiceOption {
	return func(s *Service) {
		s.filePrefix = prefix
	}
}

// NewService creates a report service
func NewService(
	source StoreSource,
	aggregator *Aggregator,
	workbook WorkbookRenderer,
	sink Sink,
	logger *zap.Logger,
	opts ...ServiceOption,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		source:     source,
		aggregator: aggregator,
		workbook:   workbook,
		sink:       sink,
		filePrefix: "franchise_report",
		now:        time.Now,
		validate:   validator.New(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StandardWindows builds the trailing weekly and monthly windows ending at the
// start of the as-of day.
func StandardWindows(asOf time.Time, weekDays, monthDays int) []sales.LabeledWindow {
	y, m, d := asOf.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, asOf.Location())
	return []sales.LabeledWindow{
		{Label: WindowWeekly, Window: sales.TrailingWindow(today, weekDays)},
		{Label: WindowMonthly, Window: sales.TrailingWindow(today, monthDays)},
	}
}

// Run executes a full report run
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.PDF && (s.html == nil || s.pdf == nil) {
		return nil, fmt.Errorf("%w: PDF export is not configured", ErrInvalidRequest)
	}

	generatedAt := s.now()
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = generatedAt
	}
	runID := uuid.New().String()
	ctx, log := logger.WithRunID(ctx, s.logger, runID)

	stores, stats, err := s.source.CollectStores(ctx, req.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load store data: %w", err)
	}
	log.Info("Store data loaded",
		zap.Int("stores", stats.Stores),
		zap.Int("files", stats.Files),
		zap.Int("line_items", stats.Rows),
		zap.Int("dropped_rows", stats.Dropped),
	)

	windows := StandardWindows(asOf, req.WeekDays, req.MonthDays)
	agg, err := s.aggregator.Aggregate(ctx, stores, windows)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate KPIs: %w", err)
	}

	doc := &Document{
		RunID:       runID,
		Title:       "Franchise Sales Report",
		GeneratedAt: generatedAt,
		Aggregation: agg,
	}
	result := &RunResult{
		RunID:       runID,
		GeneratedAt: generatedAt,
		Windows:     windows,
		Load:        stats,
		Artifacts:   make([]Artifact, 0, 2),
		Aggregation: agg,
	}

	start := time.Now()
	baseName := s.artifactBaseName(doc)
	xlsx, err := s.workbook.RenderWorkbook(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	if err := s.store(ctx, result, baseName+".xlsx", xlsx, ContentTypeXLSX); err != nil {
		return nil, err
	}

	if req.PDF {
		html, err := s.html.RenderHTML(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to render HTML: %w", err)
		}
		pdf, err := s.pdf.Export(ctx, html, doc.Title)
		if err != nil {
			// PDF is a convenience copy of the workbook; keep the run successful.
			log.Warn("PDF export failed", zap.Error(err))
		} else if err := s.store(ctx, result, baseName+".pdf", pdf, ContentTypePDF); err != nil {
			return nil, err
		}
	}
	result.RenderDuration = time.Since(start)

	for _, a := range result.Artifacts {
		log.Info("Report artifact written",
			zap.String("name", a.Name),
			zap.String("location", a.Location),
			zap.Int("bytes", a.Bytes),
		)
	}

	if s.recorder != nil {
		if err := s.recorder.Record(result); err != nil {
			log.Warn("Failed to record run metrics", zap.Error(err))
		}
	}

	return result, nil
}

// StoreKPIs computes the KPI set of one store for one window
func (s *Service) StoreKPIs(ctx context.Context, dataDir, store string, w sales.Window) (sales.KpiResult, error) {
	stores, _, err := s.source.CollectStores(ctx, dataDir)
	if err != nil {
		return sales.KpiResult{}, fmt.Errorf("failed to load store data: %w", err)
	}
	records, ok := stores[store]
	if !ok {
		return sales.KpiResult{}, fmt.Errorf("%w: %s", ErrUnknownStore, store)
	}
	return sales.Compute(records, w), nil
}

func (s *Service) store(ctx context.Context, result *RunResult, name string, data []byte, contentType string) error {
	location, err := s.sink.Put(ctx, name, data, contentType)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	result.Artifacts = append(result.Artifacts, Artifact{
		Name:        name,
		Location:    location,
		ContentType: contentType,
		Bytes:       len(data),
	})
	return nil
}

// artifactBaseName builds "<prefix>_<weekly range slug>_<timestamp>".
func (s *Service) artifactBaseName(doc *Document) string {
	slug := "No_Week"
	if w, ok := doc.Summary(WindowWeekly); ok && len(w.Rows) > 0 {
		slug = strings.NewReplacer(" ", "_", ",", "").Replace(w.RangeLabel)
	}
	return fmt.Sprintf("%s_%s_%s", s.filePrefix, slug, doc.GeneratedAt.Format("2006-01-02_150405"))
}
