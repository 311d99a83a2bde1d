package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/franchise/kpireport/internal/infrastructure/sample"
	"github.com/spf13/cobra"
)

// SampleOptions holds the flags of the sample command.
type SampleOptions struct {
	Dir    string
	Stores int
	Days   int
	End    string
	Seed   uint64
	Flat   bool
}

// NewSampleCommand creates the sample command.
func NewSampleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SampleOptions{}

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Generate synthetic store exports",
		Long: `Generate random but plausible coffee-shop sales for a number of stores,
laid out the way the report command expects them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSample(rootOpts, opts, cmd)
		},
	}

	defaults := sample.DefaultConfig(time.Time{})
	cmd.Flags().StringVarP(&opts.Dir, "dir", "d", "", "output directory (default: data dir from config)")
	cmd.Flags().IntVar(&opts.Stores, "stores", defaults.Stores, "number of stores")
	cmd.Flags().IntVar(&opts.Days, "days", defaults.Days, "number of days of history")
	cmd.Flags().StringVar(&opts.End, "end", "", "last generated day is the day before this YYYY-MM-DD date (default today)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed for reproducible output (0 = random)")
	cmd.Flags().BoolVar(&opts.Flat, "flat", false, "write one flat export per store instead of daily files")

	return cmd
}

func runSample(rootOpts *RootOptions, opts *SampleOptions, cmd *cobra.Command) error {
	e, err := setup(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	loc := e.cfg.Report.Location()
	end, err := parseDate(opts.End, loc)
	if err != nil {
		return fail(e.formatter, ExitCommandError, ErrCodeUsage, "invalid --end", err)
	}
	if end.IsZero() {
		y, m, d := time.Now().In(loc).Date()
		end = time.Date(y, m, d, 0, 0, 0, 0, loc)
	}

	dir := opts.Dir
	if dir == "" {
		dir = e.cfg.Data.Dir
	}

	cfg := sample.DefaultConfig(end)
	cfg.Stores = opts.Stores
	cfg.Days = opts.Days
	cfg.Seed = opts.Seed
	cfg.Flat = opts.Flat

	gen, err := sample.NewGenerator(cfg)
	if err != nil {
		if errors.Is(err, sample.ErrInvalidConfig) {
			return fail(e.formatter, ExitCommandError, ErrCodeUsage, "invalid sample options", err)
		}
		return fail(e.formatter, ExitFailure, ErrCodeGeneric, "failed to create generator", err)
	}

	e.formatter.VerboseLog("Generating %d stores × %d days into %s", cfg.Stores, cfg.Days, dir)
	result, err := gen.Generate(cmd.Context(), dir)
	if err != nil {
		return fail(e.formatter, ExitFailure, ErrCodeGeneric, "failed to generate sample data", err)
	}

	return e.formatter.Success((*sampleView)(result))
}

type sampleView sample.Result

func (v *sampleView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Generated %d orders (%d line items) for %d stores in %d files under %s\n",
		v.Orders, v.LineItems, len(v.Stores), v.Files, v.Dir)
	return err
}
