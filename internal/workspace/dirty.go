// Package workspace inspects the working trees and state directory the
// watchdog operates on.
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

// ErrNotARepo is returned when a path does not exist or has no .git entry.
var ErrNotARepo = errors.New("missing or not a git repository")

// RepoStatus is the working-tree state of one repository.
type RepoStatus struct {
	Path    string `json:"path" yaml:"path"`
	Changes int    `json:"changes" yaml:"changes"` // modified or untracked entries
}

// Dirty reports whether the repository has uncommitted changes.
func (s RepoStatus) Dirty() bool {
	return s.Changes > 0
}

// DirtyReport collects the results of checking several repositories.
type DirtyReport struct {
	Clean   []string     `json:"clean" yaml:"clean"`
	Dirty   []RepoStatus `json:"dirty" yaml:"dirty"`
	Missing []string     `json:"missing" yaml:"missing"`
}

// CheckRepo runs `git status --porcelain` in path and counts the entries.
// A path that is not a repository, or where git fails, yields ErrNotARepo.
func CheckRepo(ctx context.Context, path string) (RepoStatus, error) {
	status := RepoStatus{Path: path}

	abs, err := filepath.Abs(ExpandHome(path))
	if err != nil {
		return status, fmt.Errorf("%s: %w", path, ErrNotARepo)
	}
	if _, err := os.Stat(filepath.Join(abs, ".git")); err != nil {
		return status, fmt.Errorf("%s: %w", path, ErrNotARepo)
	}

	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain")
	cmd.Dir = abs
	output, err := cmd.Output()
	if err != nil {
		return status, fmt.Errorf("%s: git status: %v: %w", path, err, ErrNotARepo)
	}

	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line != "" {
			status.Changes++
		}
	}
	return status, nil
}

// CheckRepos checks each path in order. Context cancellation stops early and
// is returned; per-repo failures land in Missing.
func CheckRepos(ctx context.Context, paths []string) (*DirtyReport, error) {
	report := &DirtyReport{
		Clean:   []string{},
		Dirty:   []RepoStatus{},
		Missing: []string{},
	}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		status, err := CheckRepo(ctx, p)
		switch {
		case err != nil:
			report.Missing = append(report.Missing, p)
		case status.Dirty():
			report.Dirty = append(report.Dirty, status)
		default:
			report.Clean = append(report.Clean, p)
		}
	}
	return report, nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
