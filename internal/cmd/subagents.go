package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agent-autonomy-kit/watchdog/internal/history"
	"github.com/agent-autonomy-kit/watchdog/internal/hooks"
	"github.com/agent-autonomy-kit/watchdog/internal/monitoring"
	"github.com/agent-autonomy-kit/watchdog/internal/sessions"
	"github.com/agent-autonomy-kit/watchdog/internal/style"
	"github.com/agent-autonomy-kit/watchdog/internal/watchdog"
)

// sweepFlags are the flags shared by commands that run sweeps.
type sweepFlags struct {
	activeMinutes int
	command       string
	sessionsFile  string
	concurrency   int
}

func (f *sweepFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.activeMinutes, "active-minutes", 0, "only list sessions updated in the last N minutes (default from config: 10)")
	cmd.Flags().StringVar(&f.command, "command", "", "session runtime binary (default from config: openclaw)")
	cmd.Flags().StringVar(&f.sessionsFile, "sessions-file", "", "read the session listing from a file instead of running the command")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "parallel session checks (default from config: 8)")
}

// sweepEnv is everything a sweep needs, built from flags and config.
type sweepEnv struct {
	checker       *watchdog.Checker
	activeMinutes int
	hooks         *hooks.HookRunner
	store         *history.Store
}

func (e *sweepEnv) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

// watcher wraps the sweep in the monitoring layer so hooks and history
// apply to one-shot and repeated sweeps alike.
func (e *sweepEnv) watcher(o *rootOptions) *monitoring.Watcher {
	w := monitoring.NewWatcher(e.checker, nil, o.cfg.Watch.GetInterval(), e.activeMinutes).
		WithHooks(e.hooks, o.workDir).
		WithLogger(o.logger)
	if e.store != nil {
		w.WithRecorder(e.store)
	}
	return w
}

func (o *rootOptions) newSweepEnv(f *sweepFlags) (*sweepEnv, error) {
	sc := &o.cfg.Sessions

	activeMinutes := f.activeMinutes
	if activeMinutes <= 0 {
		activeMinutes = sc.GetActiveMinutes()
	}
	concurrency := f.concurrency
	if concurrency <= 0 {
		concurrency = sc.GetConcurrency()
	}

	var lister sessions.Lister
	if f.sessionsFile != "" {
		lister = &sessions.FileLister{Path: f.sessionsFile}
	} else {
		command := f.command
		if command == "" {
			command = sc.GetCommand()
		}
		cl := sessions.NewCommandLister(command)
		cl.Dir = o.workDir
		lister = cl
	}

	kinds := sessions.NewKindRegistry()
	for _, k := range sc.Kinds {
		if err := kinds.Register(k.Name, k.Pattern, sessions.Kind(k.Kind)); err != nil {
			return nil, usageError(fmt.Errorf("session kind %q: %w", k.Name, err))
		}
	}

	runner, err := hooks.NewHookRunner(o.workDir)
	if err != nil {
		return nil, err
	}

	env := &sweepEnv{
		checker: watchdog.NewChecker(lister, kinds).
			WithConcurrency(concurrency).
			WithClock(nowFunc).
			WithLogger(o.logger),
		activeMinutes: activeMinutes,
		hooks:         runner,
	}

	if o.cfg.History.Enabled {
		store, err := history.Open(o.cfg.History.GetPath(o.workDir))
		if err != nil {
			// History is best effort; the sweep still runs.
			o.logger.Warn("history unavailable", zap.Error(err))
		} else {
			env.store = store.WithRetain(o.cfg.History.GetRetain())
		}
	}

	return env, nil
}

func newSubagentsCmd(o *rootOptions) *cobra.Command {
	var flags sweepFlags

	cmd := &cobra.Command{
		Use:     "subagents",
		Aliases: []string{"check-active-subagents"},
		Short:   "Check whether any subagent session is actively working",
		Long: `List recently updated sessions, keep the subagents, and judge each one
by the last record of its session log.

Exit codes:
  0  no active subagents
  1  at least one active subagent
  2  the session listing could not be obtained`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := o.newSweepEnv(&flags)
			if err != nil {
				return err
			}
			defer env.Close()

			u := env.watcher(o).SweepOnce(cmd.Context())
			switch {
			case u.Err != nil:
				return &ExitError{Code: ExitFailure, Err: u.Err}
			case u.Skipped != "":
				return &ExitError{Code: ExitFailure, Err: fmt.Errorf("sweep blocked by pre-sweep hook: %s", u.Skipped)}
			}

			if err := render(cmd.OutOrStdout(), o.format, u.Report, func(w io.Writer) error {
				return writeSubagentsText(w, u.Report)
			}); err != nil {
				return err
			}

			if u.Report.ActiveSubagents > 0 {
				return exitCode(ExitFinding)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func writeSubagentsText(w io.Writer, report *watchdog.Report) error {
	switch {
	case len(report.Results) == 0:
		_, err := fmt.Fprintln(w, "No subagent sessions found in recent sessions list.")
		return err

	case report.ActiveSubagents == 0:
		fmt.Fprintln(w, style.Success.Render(fmt.Sprintf("No active subagents detected (checked %d).", len(report.Results))))
		for _, r := range report.Results {
			fmt.Fprintf(w, "- idle: %s\n", resultLine(r))
		}

	default:
		fmt.Fprintln(w, style.Warning.Render(fmt.Sprintf("ACTIVE subagents detected (%d/%d):", report.ActiveSubagents, len(report.Results))))
		for _, r := range report.Active() {
			fmt.Fprintf(w, "- ACTIVE: %s\n", resultLine(r))
		}
	}
	return nil
}

// resultLine renders "<key> age=<s>s last=<status> (<reason>)".
func resultLine(r watchdog.SessionResult) string {
	age := "unknown"
	if secs, ok := r.AgeSeconds(); ok {
		age = fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%s age=%s last=%s %s", style.Bold.Render(r.Key), age, r.LastRecordStatus,
		style.Dim.Render("("+r.LastRecordReason+")"))
}
