package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// PreflightCheck is the outcome of one preflight step.
type PreflightCheck struct {
	Name   string `json:"name" yaml:"name"`
	OK     bool   `json:"ok" yaml:"ok"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// PreflightReport contains the results of a preflight check.
type PreflightReport struct {
	Healthy  bool             `json:"healthy" yaml:"healthy"`
	Checks   []PreflightCheck `json:"checks" yaml:"checks"`
	Warnings []string         `json:"warnings" yaml:"warnings"`
}

// PreflightOptions names what the watchdog depends on in a work directory.
type PreflightOptions struct {
	// Command is the session runtime binary. Empty skips the lookup, as when
	// listings come from a file.
	Command   string
	StateDir  string
	QueuePath string
	Repos     []string
}

// Preflight verifies that the watchdog can run: the session runtime is on
// PATH, the state dir is writable and the configured repos are committed.
// A missing queue or a running watcher is a warning, never a failure.
func Preflight(ctx context.Context, opts PreflightOptions) (*PreflightReport, error) {
	report := &PreflightReport{
		Healthy:  true,
		Checks:   []PreflightCheck{},
		Warnings: []string{},
	}
	add := func(c PreflightCheck) {
		report.Checks = append(report.Checks, c)
		if !c.OK {
			report.Healthy = false
		}
	}

	// 1. Session runtime
	if opts.Command != "" {
		if path, err := exec.LookPath(opts.Command); err != nil {
			add(PreflightCheck{Name: "runtime", Detail: fmt.Sprintf("%s not found on PATH", opts.Command)})
		} else {
			add(PreflightCheck{Name: "runtime", OK: true, Detail: path})
		}
	}

	// 2. State dir
	if opts.StateDir != "" {
		if err := checkWritable(opts.StateDir); err != nil {
			add(PreflightCheck{Name: "state-dir", Detail: err.Error()})
		} else {
			add(PreflightCheck{Name: "state-dir", OK: true, Detail: opts.StateDir})

			// 3. Watcher
			lock, err := AcquireWatchLock(opts.StateDir)
			switch {
			case errors.Is(err, ErrWatchRunning):
				report.Warnings = append(report.Warnings, "a watcher is already running in this work directory")
			case err != nil:
				report.Warnings = append(report.Warnings, fmt.Sprintf("checking watch lock: %v", err))
			default:
				_ = lock.Release()
			}
		}
	}

	// 4. Queue
	if opts.QueuePath != "" {
		if _, err := os.Stat(opts.QueuePath); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("queue file %s is missing", opts.QueuePath))
		}
	}

	// 5. Repos
	if len(opts.Repos) > 0 {
		dirty, err := CheckRepos(ctx, opts.Repos)
		if err != nil {
			return nil, err
		}
		for _, p := range dirty.Clean {
			add(PreflightCheck{Name: "repo", OK: true, Detail: p})
		}
		for _, d := range dirty.Dirty {
			add(PreflightCheck{Name: "repo", Detail: fmt.Sprintf("%s has %d uncommitted change(s)", d.Path, d.Changes)})
		}
		for _, p := range dirty.Missing {
			add(PreflightCheck{Name: "repo", Detail: fmt.Sprintf("%s is missing or not a repo", p)})
		}
	}

	return report, nil
}

// Failed returns the names and details of failed checks.
func (r *PreflightReport) Failed() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.OK {
			out = append(out, strings.TrimSpace(c.Name+": "+c.Detail))
		}
	}
	return out
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
