package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agent-autonomy-kit/watchdog/internal/hooks"
	"github.com/agent-autonomy-kit/watchdog/internal/queue"
	"github.com/agent-autonomy-kit/watchdog/internal/style"
)

// maxTaskWidth is how much of a task's text the summary shows.
const maxTaskWidth = 80

func newQueueCmd(o *rootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Check the task queue (tasks/QUEUE.md)",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "queue file (default from config: tasks/QUEUE.md)")

	queuePath := func() string {
		if path != "" {
			return path
		}
		return o.cfg.Queue.GetPath(o.workDir)
	}

	cmd.AddCommand(
		newQueueCheckCmd(o, queuePath),
		newQueueFreshnessCmd(o, queuePath),
		newQueueHygieneCmd(o, queuePath),
		newQueueShowCmd(o, queuePath),
	)
	return cmd
}

// fireQueueEvent runs the hooks for a queue finding. Hook failures are
// logged and never change the command's outcome.
func (o *rootOptions) fireQueueEvent(cmd *cobra.Command, event hooks.EventType, meta map[string]interface{}) {
	runner, err := hooks.NewHookRunner(o.workDir)
	if err != nil {
		o.logger.Warn("hooks unavailable", zap.Error(err))
		return
	}
	if !runner.HasHooks(event) {
		return
	}
	for _, r := range runner.Fire(hooks.HookContext{EventType: event, WorkDir: o.workDir, Metadata: meta, Ctx: cmd.Context()}) {
		if r.Err != nil {
			o.logger.Warn("hook failed", zap.String("event", string(event)), zap.Error(r.Err))
		}
	}
}

func newQueueCheckCmd(o *rootOptions, queuePath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fail when HIGH or CRITICAL tasks are ready",
		Long: `Scan the ready section of the queue for urgent work.

Exit codes:
  0  no HIGH/CRITICAL ready tasks (a missing queue counts as empty)
  1  urgent work must be picked up first`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := queue.ParseFile(queuePath())
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: err}
			}
			check := queue.CheckPriorities(q)

			if err := render(cmd.OutOrStdout(), o.format, check, func(w io.Writer) error {
				return writeQueueCheckText(w, check)
			}); err != nil {
				return err
			}

			if check.Urgent {
				o.fireQueueEvent(cmd, hooks.EventQueueUrgent, map[string]interface{}{
					"top_task": check.Top.Text,
					"priority": string(check.Top.Priority),
					"critical": len(check.Critical),
					"high":     len(check.High),
				})
				return exitCode(ExitFinding)
			}
			return nil
		},
	}
}

func writeQueueCheckText(w io.Writer, check *queue.PriorityCheck) error {
	fmt.Fprintln(w, style.Info.Bold(true).Render("=== Queue Priority Check ==="))
	fmt.Fprintln(w)

	if n := len(check.Critical); n > 0 {
		fmt.Fprintln(w, style.Error.Render(fmt.Sprintf("🔥 CRITICAL tasks: %d", n)))
		for _, t := range check.Critical {
			fmt.Fprintln(w, style.Error.Render("   • "+truncate(t.Text, maxTaskWidth)))
		}
		fmt.Fprintln(w)
	}
	if n := len(check.High); n > 0 {
		fmt.Fprintln(w, style.Error.Render(fmt.Sprintf("🔴 HIGH priority tasks: %d", n)))
		for _, t := range check.High {
			fmt.Fprintln(w, style.Warning.Render("   • "+truncate(t.Text, maxTaskWidth)))
		}
		fmt.Fprintln(w)
	}
	if n := len(check.Medium); n > 0 {
		fmt.Fprintln(w, style.Warning.Render(fmt.Sprintf("🟡 MEDIUM priority tasks: %d", n)))
	}
	if n := len(check.Low); n > 0 {
		fmt.Fprintln(w, style.Success.Render(fmt.Sprintf("🟢 LOW priority tasks: %d", n)))
	}
	if check.ReadyCount() == 0 {
		fmt.Fprintln(w, style.Success.Render("✅ Queue is empty - no ready tasks"))
	}
	fmt.Fprintln(w)

	if check.Urgent {
		fmt.Fprintln(w, style.Error.Render("❌ CANNOT SKIP QUEUE"))
		fmt.Fprintln(w, "You must spawn an agent for HIGH/CRITICAL tasks before doing other work.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, style.Bold.Render("Top priority task:"))
		fmt.Fprintln(w, style.Info.Render(check.Top.Text))
		return nil
	}

	fmt.Fprintln(w, style.Success.Render("✅ Safe to continue"))
	_, err := fmt.Fprintln(w, "No HIGH/CRITICAL tasks in queue. You can proceed with other work.")
	return err
}

func newQueueFreshnessCmd(o *rootOptions, queuePath func() string) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "freshness",
		Short: "Fail when the queue has not been modified recently",
		Long: `Compare the queue file's modification time against a maximum age.

Exit codes:
  0  fresh
  1  stale or missing`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := maxAge
			if limit <= 0 {
				limit = o.cfg.Queue.GetMaxAge()
			}

			f, err := queue.CheckFreshness(queuePath(), nowFunc(), limit)
			if errors.Is(err, queue.ErrQueueMissing) {
				o.fireQueueEvent(cmd, hooks.EventQueueStale, map[string]interface{}{"path": queuePath(), "missing": true})
				return &ExitError{Code: ExitFinding, Err: fmt.Errorf("%s does not exist, create it", queuePath())}
			}
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: err}
			}

			if err := render(cmd.OutOrStdout(), o.format, f, func(w io.Writer) error {
				return writeFreshnessText(w, f)
			}); err != nil {
				return err
			}

			if f.Stale {
				o.fireQueueEvent(cmd, hooks.EventQueueStale, map[string]interface{}{
					"path":      f.Path,
					"age_hours": fmt.Sprintf("%.1f", f.AgeHours()),
				})
				return exitCode(ExitFinding)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "maximum allowed age (default from config: 24h)")
	return cmd
}

func writeFreshnessText(w io.Writer, f *queue.Freshness) error {
	if f.Stale {
		fmt.Fprintln(w, style.Error.Render(fmt.Sprintf("❌ QUEUE IS STALE: last modified %.1f hours ago", f.AgeHours())))
		if f.LastUpdated != "" {
			fmt.Fprintf(w, "   Header says: %q\n", f.LastUpdated)
		}
		fmt.Fprintf(w, "   Maximum allowed age: %s\n", f.MaxAge)
		fmt.Fprintln(w)
		_, err := fmt.Fprintln(w, "ACTION REQUIRED: refresh the queue before continuing.")
		return err
	}

	fmt.Fprintln(w, style.Success.Render(fmt.Sprintf("✅ Queue is fresh (modified %.1f hours ago)", f.AgeHours())))
	if f.LastUpdated != "" {
		fmt.Fprintf(w, "   Header: %q\n", f.LastUpdated)
	}
	return nil
}

func newQueueHygieneCmd(o *rootOptions, queuePath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "hygiene",
		Short: "Fail when completed tasks remain in the ready section",
		Long: `Completed "- [x]" items must not linger under "` + queue.ReadyHeader + `".

Exit codes:
  0  ok
  1  violation, missing queue or missing ready header`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(queuePath())
			if errors.Is(err, os.ErrNotExist) {
				return &ExitError{Code: ExitFinding, Err: fmt.Errorf("queue file not found: %s", queuePath())}
			}
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: err}
			}

			h, err := queue.CheckHygiene(string(data))
			if err != nil {
				return &ExitError{Code: ExitFinding, Err: err}
			}

			if err := render(cmd.OutOrStdout(), o.format, h, func(w io.Writer) error {
				if h.OK() {
					_, err := fmt.Fprintln(w, "Queue hygiene OK: no completed items in High Priority / Ready.")
					return err
				}
				fmt.Fprintln(w, style.Error.Render(`QUEUE HYGIENE FAILURE: Completed tasks found in "High Priority / Ready".`))
				fmt.Fprintln(w, `Move these items to "✅ Recently Completed" (or remove them) so Ready stays executable:`)
				for _, l := range h.Completed {
					fmt.Fprintf(w, "  %s\n", l)
				}
				return nil
			}); err != nil {
				return err
			}

			if !h.OK() {
				return exitCode(ExitFinding)
			}
			return nil
		},
	}
}

func newQueueShowCmd(o *rootOptions, queuePath func() string) *cobra.Command {
	var width int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Render the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.format != FormatText {
				q, err := queue.ParseFile(queuePath())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), o.format, q, nil)
			}

			data, err := os.ReadFile(queuePath())
			if err != nil {
				return &ExitError{Code: ExitFailure, Err: fmt.Errorf("reading queue: %w", err)}
			}
			out, err := queue.Render(string(data), width, o.colorEnabled(cmd))
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().IntVar(&width, "width", 100, "wrap width")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
