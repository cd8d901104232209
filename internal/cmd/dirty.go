package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agent-autonomy-kit/watchdog/internal/style"
	"github.com/agent-autonomy-kit/watchdog/internal/workspace"
)

func newDirtyCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dirty [repo-path...]",
		Short: "Fail when repositories have uncommitted changes",
		Long: `Run "git status --porcelain" in each repository. Without arguments the
repos listed in the config are checked.

Exit codes:
  0  all clean
  1  at least one repository is dirty
  2  no repositories given, or one is missing or not a git repository`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = o.cfg.Repos
			}
			if len(paths) == 0 {
				return usageError(fmt.Errorf("usage: watchdog dirty <repo-path> [repo-path...]"))
			}

			report, err := workspace.CheckRepos(cmd.Context(), paths)
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: err}
			}

			if err := render(cmd.OutOrStdout(), o.format, report, func(w io.Writer) error {
				return writeDirtyText(w, report)
			}); err != nil {
				return err
			}

			switch {
			case len(report.Missing) > 0:
				if o.format == FormatText {
					return &ExitError{Code: ExitFailure, Err: fmt.Errorf("[dirty-repos] missing or not a repo: %s", strings.Join(report.Missing, ", "))}
				}
				return exitCode(ExitFailure)
			case len(report.Dirty) > 0:
				return exitCode(ExitFinding)
			}
			return nil
		},
	}
}

func writeDirtyText(w io.Writer, report *workspace.DirtyReport) error {
	if len(report.Missing) > 0 {
		// Reported on stderr by the exit error.
		return nil
	}
	if len(report.Dirty) > 0 {
		fmt.Fprintln(w, style.Warning.Render("[dirty-repos] DIRTY repos:"))
		for _, d := range report.Dirty {
			fmt.Fprintf(w, "- %s (%d change(s))\n", d.Path, d.Changes)
		}
		return nil
	}
	_, err := fmt.Fprintln(w, style.Success.Render("[dirty-repos] all clean"))
	return err
}
