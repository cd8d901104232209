package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agent-autonomy-kit/watchdog/internal/config"
	"github.com/agent-autonomy-kit/watchdog/internal/style"
	"github.com/agent-autonomy-kit/watchdog/internal/workspace"
)

func newPreflightCmd(o *rootOptions) *cobra.Command {
	var skipRuntime bool

	cmd := &cobra.Command{
		Use:     "preflight",
		Aliases: []string{"doctor"},
		Short:   "Verify the runtime, state dir and repos before relying on the watchdog",
		Long: `Check that the session runtime is on PATH, that the state directory is
writable and that the configured repos are committed. A missing queue file
or an already running watcher is reported as a warning.

Exit codes:
  0  healthy
  1  at least one check failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := workspace.PreflightOptions{
				StateDir:  filepath.Join(o.workDir, config.StateDirName),
				QueuePath: o.cfg.Queue.GetPath(o.workDir),
				Repos:     o.cfg.Repos,
			}
			if !skipRuntime {
				opts.Command = o.cfg.Sessions.GetCommand()
			}

			report, err := workspace.Preflight(cmd.Context(), opts)
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: err}
			}

			if err := render(cmd.OutOrStdout(), o.format, report, func(w io.Writer) error {
				for _, c := range report.Checks {
					mark := style.Success.Render("ok  ")
					if !c.OK {
						mark = style.Error.Render("FAIL")
					}
					fmt.Fprintf(w, "%s %-10s %s\n", mark, c.Name, style.Dim.Render(c.Detail))
				}
				for _, warn := range report.Warnings {
					fmt.Fprintf(w, "%s %s\n", style.Warning.Render("warn"), warn)
				}
				if report.Healthy {
					_, err := fmt.Fprintln(w, style.Success.Render("Preflight passed."))
					return err
				}
				_, err := fmt.Fprintln(w, style.Error.Render("Preflight failed."))
				return err
			}); err != nil {
				return err
			}

			if !report.Healthy {
				return exitCode(ExitFinding)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipRuntime, "skip-runtime", false, "do not look up the session runtime (listings come from files)")
	return cmd
}
