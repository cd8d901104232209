package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agent-autonomy-kit/watchdog/internal/config"
	"github.com/agent-autonomy-kit/watchdog/internal/monitoring"
	"github.com/agent-autonomy-kit/watchdog/internal/style"
	"github.com/agent-autonomy-kit/watchdog/internal/tui"
	"github.com/agent-autonomy-kit/watchdog/internal/watchdog"
	"github.com/agent-autonomy-kit/watchdog/internal/workspace"
)

func newWatchCmd(o *rootOptions) *cobra.Command {
	var (
		flags     sweepFlags
		interval  time.Duration
		useTUI    bool
		maxSweeps int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sweep repeatedly and fire hooks when sessions change state",
		Long: `Run a sweep every --interval, and early when a session log is written.
Each session's verdict is tracked between sweeps; becoming active, becoming
idle and vanishing from the listing fire the matching hooks.

Only one watcher may run per work directory.

Exit codes:
  0  interrupted or --max-sweeps reached
  1  another watcher holds the lock`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lock, err := workspace.AcquireWatchLock(filepath.Join(o.workDir, config.StateDirName))
			if errors.Is(err, workspace.ErrWatchRunning) {
				return &ExitError{Code: ExitFinding, Err: err}
			}
			if err != nil {
				return err
			}
			defer lock.Release()

			env, err := o.newSweepEnv(&flags)
			if err != nil {
				return err
			}
			defer env.Close()

			every := interval
			if every <= 0 {
				every = o.cfg.Watch.GetInterval()
			}
			w := monitoring.NewWatcher(env.checker, monitoring.NewMultiSessionTracker(100), every, env.activeMinutes).
				WithHooks(env.hooks, o.workDir).
				WithLogger(o.logger).
				WithFSNotify(o.cfg.Watch.GetFSNotify(), 0)
			if env.store != nil {
				w.WithRecorder(env.store)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w.Start(ctx)
			defer w.Stop()

			if useTUI {
				return tui.Run(w.Updates())
			}
			return streamUpdates(ctx, cmd.OutOrStdout(), o.format, w.Updates(), maxSweeps)
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between sweeps (default from config: 30s)")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show a live dashboard")
	cmd.Flags().IntVar(&maxSweeps, "max-sweeps", 0, "exit after this many sweeps (0 = run until interrupted)")
	return cmd
}

// streamUpdates prints each sweep outcome until ctx ends, updates closes or
// maxSweeps outcomes have been printed.
func streamUpdates(ctx context.Context, out io.Writer, format string, updates <-chan monitoring.Update, maxSweeps int) error {
	enc := json.NewEncoder(out)
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			var err error
			if format == FormatJSON {
				err = enc.Encode(newWatchEvent(u))
			} else {
				err = writeUpdateLine(out, u)
			}
			if err != nil {
				return err
			}
			seen++
			if maxSweeps > 0 && seen >= maxSweeps {
				return nil
			}
		}
	}
}

// watchEvent is the JSON line printed per sweep.
type watchEvent struct {
	At      time.Time           `json:"at"`
	Report  *watchdog.Report    `json:"report"`
	Changes []monitoring.Change `json:"changes"`
	Error   string              `json:"error,omitempty"`
	Skipped string              `json:"skipped,omitempty"`
}

func newWatchEvent(u monitoring.Update) watchEvent {
	ev := watchEvent{At: u.At, Report: u.Report, Changes: u.Changes, Skipped: u.Skipped}
	if u.Err != nil {
		ev.Error = u.Err.Error()
	}
	if ev.Changes == nil {
		ev.Changes = []monitoring.Change{}
	}
	return ev
}

func writeUpdateLine(w io.Writer, u monitoring.Update) error {
	stamp := style.Dim.Render(u.At.Format("15:04:05"))
	switch {
	case u.Err != nil:
		_, err := fmt.Fprintf(w, "%s %s\n", stamp, style.Error.Render("sweep failed: "+u.Err.Error()))
		return err
	case u.Skipped != "":
		_, err := fmt.Fprintf(w, "%s %s\n", stamp, style.Warning.Render("sweep skipped: "+u.Skipped))
		return err
	}

	r := u.Report
	summary := fmt.Sprintf("%d/%d subagents active", r.ActiveSubagents, r.SubagentsChecked)
	if r.ActiveSubagents > 0 {
		summary = style.Warning.Render(summary)
	} else {
		summary = style.Success.Render(summary)
	}
	fmt.Fprintf(w, "%s %s\n", stamp, summary)
	for _, c := range u.Changes {
		if c.Transition == monitoring.TransitionFirstSeen && !c.Observation.Active {
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", c.Transition, c.SessionKey)
	}
	return nil
}
