// Package cli implements the kpireport command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/franchise/kpireport/internal/infrastructure/config"
	"github.com/franchise/kpireport/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	ConfigFile string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command of the kpireport CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kpireport",
		Short: "Franchise sales KPI reports",
		Long: `kpireport reads per-store sales exports and produces weekly and monthly
KPI comparison reports as an Excel workbook with an optional PDF copy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default: kpireport.toml in ., ./config, /etc/kpireport)")

	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewKPIsCommand(opts))
	cmd.AddCommand(NewSplitCommand(opts))
	cmd.AddCommand(NewSampleCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))

	return cmd
}

// env is what every command needs after bootstrapping
type env struct {
	cfg       *config.Config
	log       *zap.Logger
	formatter *OutputFormatter
}

// setup loads configuration and builds the logger and output formatter of a command.
// Logs share the diagnostic stream with verbose output.
func setup(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, fail(formatter, ExitCommandError, ErrCodeConfig, "failed to load configuration", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logCfg.Output = cfg.Log.Output
	if opts.Verbose {
		logCfg.Level = "debug"
	}

	var log *zap.Logger
	switch cfg.Log.Output {
	case "stderr":
		log = logger.NewWithWriter(logCfg, cmd.ErrOrStderr())
	default:
		log, err = logger.New(logCfg)
		if err != nil {
			return nil, fail(formatter, ExitCommandError, ErrCodeConfig, "failed to initialize logger", err)
		}
	}

	formatter.VerboseLog("Configuration loaded (env=%s, data=%s)", cfg.App.Env, cfg.Data.Dir)
	return &env{
		cfg:       cfg,
		log:       log.With(zap.String("app", cfg.App.Name)),
		formatter: formatter,
	}, nil
}

func (e *env) close() {
	_ = logger.Sync(e.log)
}
