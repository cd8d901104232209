package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agent-autonomy-kit/watchdog/internal/sessions"
	"github.com/agent-autonomy-kit/watchdog/internal/style"
	"github.com/agent-autonomy-kit/watchdog/internal/watchdog"
)

func newSessionCmd(o *rootOptions) *cobra.Command {
	var (
		sessionsDir string
		updatedAt   float64
	)

	cmd := &cobra.Command{
		Use:   "session <session-id>",
		Short: "Judge a single session by its log",
		Long: `Read the last record of <sessions-dir>/<session-id>.jsonl, classify it and
decide whether the session is active.

The session's last update time comes from --updated-at (epoch milliseconds).
Without it the age is unknown and the session is reported idle; the log
file's modification time is never used.

Exit codes:
  0  idle
  1  active`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionsDir == "" {
				return usageError(fmt.Errorf("--sessions-dir is required"))
			}
			id := args[0]

			s := sessions.Session{Key: id, SessionID: id}
			if cmd.Flags().Changed("updated-at") {
				s.UpdatedAt = &updatedAt
			}

			checker := watchdog.NewChecker(nil, nil).WithLogger(o.logger)
			result := checker.Check(s, sessionsDir, nowFunc())

			if err := render(cmd.OutOrStdout(), o.format, result, func(w io.Writer) error {
				verdict := style.Success.Render("idle")
				if result.Active {
					verdict = style.Warning.Render("ACTIVE")
				}
				_, err := fmt.Fprintf(w, "%s: %s\n", verdict, resultLine(result))
				return err
			}); err != nil {
				return err
			}

			if result.Active {
				return exitCode(ExitFinding)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionsDir, "sessions-dir", "", "directory holding <session-id>.jsonl logs")
	cmd.Flags().Float64Var(&updatedAt, "updated-at", 0, "session last update time in epoch milliseconds")
	return cmd
}
