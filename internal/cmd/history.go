package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agent-autonomy-kit/watchdog/internal/history"
	"github.com/agent-autonomy-kit/watchdog/internal/style"
)

func newHistoryCmd(o *rootOptions) *cobra.Command {
	var (
		key   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded sweeps, or one session's verdicts with --key",
		Long: `Show sweeps recorded by "subagents" and "watch" while [history] is enabled
in the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := o.cfg.History.GetPath(o.workDir)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "No history recorded. Enable it with [history] enabled = true.")
				return nil
			}

			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			now := nowFunc()
			if key != "" {
				entries, err := store.SessionHistory(cmd.Context(), key, limit)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), o.format, entries, func(w io.Writer) error {
					if len(entries) == 0 {
						_, err := fmt.Fprintf(w, "No recorded verdicts for %s.\n", key)
						return err
					}
					for _, e := range entries {
						verdict := style.Success.Render("idle  ")
						if e.Active {
							verdict = style.Warning.Render("ACTIVE")
						}
						fmt.Fprintf(w, "%s  %s  %s  %s\n",
							style.Dim.Render(style.Since(e.CheckedAt, now)), verdict, e.LastRecordStatus,
							style.Dim.Render(e.LastRecordReason))
					}
					return nil
				})
			}

			sweeps, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), o.format, sweeps, func(w io.Writer) error {
				if len(sweeps) == 0 {
					_, err := fmt.Fprintln(w, "No sweeps recorded.")
					return err
				}
				for _, s := range sweeps {
					fmt.Fprintf(w, "%s  %s  %s/%s active\n",
						style.Bold.Render(shortSweepID(s.SweepID)),
						style.Dim.Render(style.Since(s.CheckedAt, now)),
						style.Count(s.ActiveSubagents), style.Count(s.SubagentsChecked))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "show verdicts for this session key")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows (0 = all)")
	return cmd
}

func shortSweepID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
