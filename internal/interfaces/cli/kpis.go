package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/franchise/kpireport/internal/application/report"
	"github.com/franchise/kpireport/internal/domain/sales"
	"github.com/franchise/kpireport/internal/infrastructure/ingest"
	"github.com/spf13/cobra"
)

// KPIsOptions holds the flags of the kpis command.
type KPIsOptions struct {
	Store   string
	Window  string
	Days    int
	DataDir string
	AsOf    string
}

// NewKPIsCommand creates the kpis command.
func NewKPIsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KPIsOptions{}

	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Print the KPIs of one store for one window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKPIs(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Store, "store", "", "store name as shown in the report, e.g. Store101 (required)")
	cmd.Flags().StringVarP(&opts.Window, "window", "w", "weekly", "window (weekly|monthly)")
	cmd.Flags().IntVar(&opts.Days, "days", 0, "window length in days (default from config)")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "directory with store CSV exports (default from config)")
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "report date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("store")

	return cmd
}

func runKPIs(rootOpts *RootOptions, opts *KPIsOptions, cmd *cobra.Command) error {
	e, err := setup(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	cfg := e.cfg
	if opts.DataDir != "" {
		cfg.Data.Dir = opts.DataDir
	}

	days := opts.Days
	var label string
	switch strings.ToLower(opts.Window) {
	case "weekly", "week":
		label = report.WindowWeekly
		if days == 0 {
			days = cfg.Report.WeekDays
		}
	case "monthly", "month":
		label = report.WindowMonthly
		if days == 0 {
			days = cfg.Report.MonthDays
		}
	default:
		return fail(e.formatter, ExitCommandError, ErrCodeUsage,
			fmt.Sprintf("invalid --window %q: must be weekly or monthly", opts.Window), nil)
	}
	if days <= 0 {
		return fail(e.formatter, ExitCommandError, ErrCodeUsage, "--days must be positive", nil)
	}

	loc := cfg.Report.Location()
	asOf, err := parseDate(opts.AsOf, loc)
	if err != nil {
		return fail(e.formatter, ExitCommandError, ErrCodeUsage, "invalid --as-of", err)
	}
	if asOf.IsZero() {
		asOf = time.Now().In(loc)
	}
	y, m, d := asOf.Date()
	w := sales.TrailingWindow(time.Date(y, m, d, 0, 0, 0, 0, loc), days)

	loader := ingest.NewLoader(e.log.Named("ingest"), ingest.WithLocation(loc))
	svc := report.NewService(loader, report.NewAggregator(cfg.Report.Workers, e.log), nil, nil, e.log)

	result, err := svc.StoreKPIs(cmd.Context(), cfg.Data.Dir, opts.Store, w)
	if err != nil {
		if errors.Is(err, report.ErrUnknownStore) {
			return fail(e.formatter, ExitFailure, ErrCodeUsage, "unknown store "+opts.Store, err)
		}
		return fail(e.formatter, ExitFailure, ErrCodeLoad, "failed to load store data", err)
	}

	return e.formatter.Success(&kpiView{
		Store:  opts.Store,
		Window: label,
		Range:  w.RangeLabel(),
		KPIs:   result,
	})
}

// kpiView is the printable KPI set of one store
type kpiView struct {
	Store  string          `json:"store" yaml:"store"`
	Window string          `json:"window" yaml:"window"`
	Range  string          `json:"range" yaml:"range"`
	KPIs   sales.KpiResult `json:"kpis" yaml:"kpis"`
}

func (v *kpiView) WriteText(w io.Writer) error {
	k := v.KPIs
	fmt.Fprintf(w, "%s – %s (%s)\n\n", v.Store, v.Window, v.Range)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Revenue\t$%s\n", k.Revenue.StringFixed(2))
	fmt.Fprintf(tw, "Orders\t%d\n", k.Orders)
	fmt.Fprintf(tw, "AOV\t$%s\n", k.AOV.StringFixed(2))
	fmt.Fprintf(tw, "Drinks %%\t%.1f%%\n", k.DrinksPct)
	fmt.Fprintf(tw, "Food %%\t%.1f%%\n", k.FoodPct)
	fmt.Fprintf(tw, "Seasonal %%\t%.1f%%\n", k.SeasonalPct)
	fmt.Fprintf(tw, "%% Orders w/ Food\t%.1f%%\n", k.PctOrdersWithFood)
	fmt.Fprintf(tw, "Peak Day\t%s\n", k.PeakDayLabel)
	fmt.Fprintf(tw, "Units\t%d\n", k.Units)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(k.TopItems) > 0 {
		fmt.Fprintln(w, "\nTop items")
		for i, it := range k.TopItems {
			fmt.Fprintf(w, "  %d. %s  $%s\n", i+1, it.Item, it.Revenue.StringFixed(2))
		}
	}
	if len(k.CategoryRevenue) > 0 {
		fmt.Fprintln(w, "\nCategory revenue")
		for _, c := range k.CategoryRevenue {
			fmt.Fprintf(w, "  %s  $%s (%.1f%%)\n", c.Category, c.Revenue.StringFixed(2), c.PercentOfTotal)
		}
	}
	return nil
}
