package cli

import (
	"fmt"
	"io"

	"github.com/franchise/kpireport/internal/infrastructure/ingest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSplitCommand creates the split command.
func NewSplitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split [data-dir]",
		Short: "Split flat store exports into one CSV per day",
		Long: `Split every flat CSV export directly inside the data directory into
<data-dir>/<store>/<YYYY-MM-DD>.csv. Source files are left in place.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runSplit(rootOpts, dir, cmd)
		},
	}
	return cmd
}

func runSplit(rootOpts *RootOptions, dir string, cmd *cobra.Command) error {
	e, err := setup(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	if dir == "" {
		dir = e.cfg.Data.Dir
	}

	loader := ingest.NewLoader(e.log.Named("ingest"), ingest.WithLocation(e.cfg.Report.Location()))
	result, err := loader.SplitDaily(cmd.Context(), dir)
	if err != nil {
		return fail(e.formatter, ExitFailure, ErrCodeLoad, "failed to split exports", err)
	}
	e.log.Info("Exports split",
		zap.Int("sources", len(result.Sources)),
		zap.Int("files", result.Files),
		zap.Int("dropped_rows", result.Dropped),
	)

	return e.formatter.Success((*splitView)(result))
}

type splitView ingest.SplitResult

func (v *splitView) WriteText(w io.Writer) error {
	if len(v.Sources) == 0 {
		_, err := fmt.Fprintln(w, "No flat exports found")
		return err
	}
	for _, src := range v.Sources {
		fmt.Fprintf(w, "Split %s\n", src)
	}
	_, err := fmt.Fprintf(w, "Wrote %d daily files into %d folders (%d rows dropped)\n",
		v.Files, len(v.Folders), v.Dropped)
	return err
}
