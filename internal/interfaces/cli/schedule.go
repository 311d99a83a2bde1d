package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/franchise/kpireport/internal/infrastructure/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ScheduleOptions holds the flags of the schedule command.
type ScheduleOptions struct {
	ReportOptions
	Cron   string
	RunNow bool
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate the report every day at a fixed time",
		Long: `Stay in the foreground and run the report once a day at the configured
local time until interrupted. Windows always end at the start of the run day.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.WeekDays, "days-week", 0, "length of the weekly window in days (default from config, 7)")
	cmd.Flags().IntVar(&opts.MonthDays, "days-month", 0, "length of the monthly window in days (default from config, 30)")
	cmd.Flags().BoolVar(&opts.NoPDF, "no-pdf", false, "skip the PDF export")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "directory with store CSV exports (default from config)")
	cmd.Flags().StringVarP(&opts.OutDir, "out-dir", "o", "", "directory for report files (default from config)")
	cmd.Flags().StringVar(&opts.Cron, "cron", "", `daily run time as "minute hour * * *" (default from config, "0 6 * * *")`)
	cmd.Flags().BoolVar(&opts.RunNow, "run-now", false, "also run once immediately on start")

	return cmd
}

func runSchedule(rootOpts *RootOptions, opts *ScheduleOptions, cmd *cobra.Command) error {
	e, err := setup(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	cfg := e.cfg
	pdfEnabled := applyReportFlags(e, &opts.ReportOptions, cmd)
	if opts.Cron != "" {
		cfg.Schedule.Cron = opts.Cron
	}
	loc := cfg.Report.Location()

	svc, cleanup, err := newReportService(cmd, e, pdfEnabled, false)
	if err != nil {
		return fail(e.formatter, ExitFailure, ErrCodeStorage, "failed to initialize storage", err)
	}
	defer cleanup()

	log := e.log.Named("schedule")
	job := func(ctx context.Context) error {
		result, err := svc.Run(ctx, reportRequest(cfg, time.Time{}, pdfEnabled))
		if err != nil {
			return err
		}
		for _, a := range result.Artifacts {
			e.formatter.VerboseLog("Wrote %s (%d bytes)", a.Location, a.Bytes)
		}
		log.Info("Scheduled report generated", zap.String("run_id", result.RunID))
		return nil
	}

	sched, err := scheduler.NewDailyScheduler(scheduler.Config{
		Cron:          cfg.Schedule.Cron,
		JobTimeout:    cfg.Schedule.JobTimeout,
		RetryAttempts: cfg.Schedule.RetryAttempts,
		RetryDelay:    cfg.Schedule.RetryDelay,
	}, job, log, scheduler.WithClock(func() time.Time { return time.Now().In(loc) }))
	if err != nil {
		return fail(e.formatter, ExitCommandError, ErrCodeUsage, "invalid schedule", err)
	}

	ctx := cmd.Context()
	if opts.RunNow {
		// A failed immediate run is already logged and counted; keep scheduling.
		_ = sched.RunOnce(ctx)
	}
	if err := sched.Run(ctx); err != nil {
		return fail(e.formatter, ExitFailure, ErrCodeRun, "scheduler failed", err)
	}

	status := sched.Status()
	return e.formatter.Success((*scheduleView)(&status))
}

type scheduleView scheduler.Status

func (v *scheduleView) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Schedule %02d:%02d daily: %d runs, %d failed\n", v.Hour, v.Minute, v.Runs, v.Failures)
	if v.LastRunAt != nil {
		fmt.Fprintf(w, "Last run %s\n", v.LastRunAt.Format(time.DateTime))
	}
	if v.LastError != "" {
		fmt.Fprintf(w, "Last error: %s\n", v.LastError)
	}
	return nil
}
