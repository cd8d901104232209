// Package cmd implements the watchdog command line.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agent-autonomy-kit/watchdog/internal/config"
	"github.com/agent-autonomy-kit/watchdog/internal/logging"
	"github.com/agent-autonomy-kit/watchdog/internal/style"
)

// nowFunc is the clock used by commands; tests replace it.
var nowFunc = time.Now

// rootOptions holds persistent flags and the state built from them before
// any subcommand runs.
type rootOptions struct {
	format   string
	jsonOut  bool
	noColor  bool
	workDir  string
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "watchdog",
		Short: "Autonomy watchdog for agent sessions and work queues",
		Long: `watchdog decides whether subagent sessions are actually doing work.

A session counts as active only when its last log record shows work in
progress and it was updated recently. Finished sessions never count,
however recently they were touched. Companion checks keep the task queue
fresh and repositories committed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.format, "format", FormatText, "output format: text, json or yaml")
	pf.BoolVar(&opts.jsonOut, "json", false, "output in JSON format (same as --format json)")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable coloured output")
	pf.StringVarP(&opts.workDir, "dir", "C", "", "work directory (default: current directory)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")

	root.AddCommand(
		newSubagentsCmd(opts),
		newSessionCmd(opts),
		newQueueCmd(opts),
		newDirtyCmd(opts),
		newWatchCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
		newHooksCmd(opts),
		newPreflightCmd(opts),
	)

	return root
}

// setup resolves the work dir, loads config and installs the logger.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	if o.jsonOut {
		o.format = FormatJSON
	}
	if err := validateFormat(o.format); err != nil {
		return usageError(err)
	}

	if o.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		o.workDir = wd
	}

	cfg, err := config.Load(o.workDir)
	if err != nil {
		return err
	}
	o.cfg = cfg

	level := o.logLevel
	if level == "" {
		level = cfg.Logging.GetLevel()
	}
	logger, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.GetFormat(),
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return usageError(err)
	}
	o.logger = logger
	logging.SetGlobal(logger)

	style.Setup(cmd.OutOrStdout(), o.noColor)
	return nil
}

// colorEnabled reports whether text output to cmd's stdout is coloured.
func (o *rootOptions) colorEnabled(cmd *cobra.Command) bool {
	return style.ColorEnabled(cmd.OutOrStdout(), o.noColor)
}
