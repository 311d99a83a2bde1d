package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/franchise/kpireport/internal/application/report"
	"github.com/franchise/kpireport/internal/infrastructure/config"
	"github.com/franchise/kpireport/internal/infrastructure/ingest"
	"github.com/franchise/kpireport/internal/infrastructure/metrics"
	"github.com/franchise/kpireport/internal/infrastructure/render"
	"github.com/franchise/kpireport/internal/infrastructure/storage"
	"github.com/spf13/cobra"
)

// ReportOptions holds the flags of the report command.
type ReportOptions struct {
	WeekDays  int
	MonthDays int
	NoPDF     bool
	DataDir   string
	OutDir    string
	AsOf      string
	DryRun    bool
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the weekly/monthly KPI report",
		Long: `Load every store export under the data directory, compute the weekly and
monthly KPIs for each store and write a timestamped Excel workbook (and PDF copy)
to the output directory and, when configured, to object storage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.WeekDays, "days-week", 0, "length of the weekly window in days (default from config, 7)")
	cmd.Flags().IntVar(&opts.MonthDays, "days-month", 0, "length of the monthly window in days (default from config, 30)")
	cmd.Flags().BoolVar(&opts.NoPDF, "no-pdf", false, "skip the PDF export")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "directory with store CSV exports (default from config)")
	cmd.Flags().StringVarP(&opts.OutDir, "out-dir", "o", "", "directory for report files (default from config)")
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "report date YYYY-MM-DD; windows end at its start (default today)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "render everything but keep the files in memory")

	return cmd
}

func runReport(rootOpts *RootOptions, opts *ReportOptions, cmd *cobra.Command) error {
	e, err := setup(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	pdfEnabled := applyReportFlags(e, opts, cmd)
	loc := e.cfg.Report.Location()
	asOf, err := parseDate(opts.AsOf, loc)
	if err != nil {
		return fail(e.formatter, ExitCommandError, ErrCodeUsage, "invalid --as-of", err)
	}

	svc, cleanup, err := newReportService(cmd, e, pdfEnabled, opts.DryRun)
	if err != nil {
		return fail(e.formatter, ExitFailure, ErrCodeStorage, "failed to initialize storage", err)
	}
	defer cleanup()

	cfg := e.cfg
	e.formatter.VerboseLog("Generating report from %s (week=%dd, month=%dd, pdf=%t)",
		cfg.Data.Dir, cfg.Report.WeekDays, cfg.Report.MonthDays, pdfEnabled)

	result, err := svc.Run(cmd.Context(), reportRequest(cfg, asOf, pdfEnabled))
	if err != nil {
		if errors.Is(err, report.ErrInvalidRequest) {
			return fail(e.formatter, ExitCommandError, ErrCodeUsage, "invalid report parameters", err)
		}
		if isLoadError(err) {
			return fail(e.formatter, ExitFailure, ErrCodeLoad, "failed to load store data", err)
		}
		return fail(e.formatter, ExitFailure, ErrCodeRun, "report run failed", err)
	}

	return e.formatter.Success((*reportView)(result))
}

// applyReportFlags folds explicitly set flags into the loaded configuration and
// reports whether PDF export is enabled.
func applyReportFlags(e *env, opts *ReportOptions, cmd *cobra.Command) bool {
	cfg := e.cfg
	f := cmd.Flags()
	if f.Changed("days-week") {
		cfg.Report.WeekDays = opts.WeekDays
	}
	if f.Changed("days-month") {
		cfg.Report.MonthDays = opts.MonthDays
	}
	if opts.DataDir != "" {
		cfg.Data.Dir = opts.DataDir
	}
	if opts.OutDir != "" {
		cfg.Report.OutputDir = opts.OutDir
	}
	return cfg.Report.PDFEnabled && !opts.NoPDF
}

// newReportService wires the report pipeline from configuration.
// cleanup shuts down the PDF browser, if one was configured.
func newReportService(cmd *cobra.Command, e *env, pdfEnabled, dryRun bool) (*report.Service, func(), error) {
	cfg := e.cfg
	loc := cfg.Report.Location()

	sink, err := buildSink(cmd, e, dryRun)
	if err != nil {
		return nil, nil, err
	}

	serviceOpts := []report.ServiceOption{
		report.WithRecorder(metrics.NewRunMetrics(cfg.Metrics.TextfilePath)),
		report.WithFilePrefix(cfg.Report.FilePrefix),
		report.WithClock(func() time.Time { return time.Now().In(loc) }),
	}
	cleanup := func() {}
	if pdfEnabled {
		exporter := render.NewPDFExporter(render.ChromedpConfig{
			Timeout:   cfg.PDF.Timeout,
			RemoteURL: cfg.PDF.RemoteURL,
			NoSandbox: cfg.PDF.NoSandbox,
			Logger:    e.log.Named("pdf"),
		})
		cleanup = func() { _ = exporter.Close() }
		serviceOpts = append(serviceOpts, report.WithPDFExport(render.NewHTMLRenderer(), exporter))
	}

	svc := report.NewService(
		ingest.NewLoader(e.log.Named("ingest"), ingest.WithLocation(loc)),
		report.NewAggregator(cfg.Report.Workers, e.log.Named("aggregate")),
		render.NewWorkbookRenderer(e.log.Named("workbook")),
		sink,
		e.log,
		serviceOpts...,
	)
	return svc, cleanup, nil
}

func reportRequest(cfg *config.Config, asOf time.Time, pdfEnabled bool) report.RunRequest {
	return report.RunRequest{
		AsOf:      asOf,
		DataDir:   cfg.Data.Dir,
		WeekDays:  cfg.Report.WeekDays,
		MonthDays: cfg.Report.MonthDays,
		PDF:       pdfEnabled,
	}
}

// buildSink writes locally and, with storage enabled, to the configured bucket as well.
// A dry run writes nowhere.
func buildSink(cmd *cobra.Command, e *env, dryRun bool) (report.Sink, error) {
	if dryRun {
		return storage.NewMemorySink(), nil
	}
	local := storage.NewLocalSink(e.cfg.Report.OutputDir)
	if !e.cfg.Storage.Enabled {
		return local, nil
	}

	s3Sink, err := storage.NewS3Sink(cmd.Context(), &e.cfg.Storage, storage.WithLogger(e.log.Named("s3")))
	if err != nil {
		return nil, err
	}
	if err := s3Sink.EnsureBucket(cmd.Context()); err != nil {
		return nil, err
	}
	return storage.NewMultiSink(local, s3Sink), nil
}

// parseDate parses YYYY-MM-DD in loc. An empty value yields the zero time.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a YYYY-MM-DD date", value)
	}
	return t, nil
}

// reportView is the printable form of a run result
type reportView report.RunResult

func (v *reportView) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Run %s generated %s\n", v.RunID, v.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Loaded %d line items from %d files (%d stores, %d rows dropped)\n\n",
		v.Load.Rows, v.Load.Files, v.Load.Stores, v.Load.Dropped)

	for _, summary := range v.Aggregation.Windows {
		fmt.Fprintf(w, "%s  %s\n", summary.Label, summary.RangeLabel)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Rank\tStore\tRevenue\tOrders\tAOV\t% of Total\tChange %\t")
		for _, r := range report.Rank(summary.Rows) {
			change := "n/a"
			if r.RevenueChangePct != nil {
				change = fmt.Sprintf("%.1f%%", *r.RevenueChangePct)
			}
			fmt.Fprintf(tw, "%d\t%s\t$%s\t%d\t$%s\t%.1f%%\t%s\t\n",
				r.Rank, r.Store, r.Revenue.StringFixed(2), r.Orders, r.AOV.StringFixed(2), r.PercentOfTotal, change)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	for _, a := range v.Artifacts {
		fmt.Fprintf(w, "Wrote %s (%d bytes)\n", a.Location, a.Bytes)
	}
	return nil
}

// Ensure the views stay printable
var _ TextWriter = (*reportView)(nil)

func isLoadError(err error) bool {
	for _, target := range []error{
		ingest.ErrNoInputFiles,
		ingest.ErrEmptyFile,
		ingest.ErrInvalidEncoding,
		ingest.ErrMissingHeader,
		ingest.ErrMissingColumns,
		ingest.ErrInvalidRows,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
