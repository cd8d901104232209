package sessions

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultCommand is the session runtime binary queried for listings.
const DefaultCommand = "openclaw"

// Lister produces a listing of sessions updated within the last
// activeMinutes minutes.
type Lister interface {
	List(ctx context.Context, activeMinutes int) (*Listing, error)
}

// CommandLister lists sessions by running
// `<Command> sessions --json --active <N>`.
type CommandLister struct {
	Command string
	Dir     string // working directory, empty for the current one
}

// NewCommandLister returns a CommandLister for command, falling back to
// DefaultCommand when empty.
func NewCommandLister(command string) *CommandLister {
	if command == "" {
		command = DefaultCommand
	}
	return &CommandLister{Command: command}
}

// List runs the listing command and parses its stdout.
func (c *CommandLister) List(ctx context.Context, activeMinutes int) (*Listing, error) {
	cmd := exec.CommandContext(ctx, c.Command, "sessions", "--json", "--active", strconv.Itoa(activeMinutes))
	cmd.Dir = c.Dir
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s sessions: %w (stderr: %s)", c.Command, err, strings.TrimSpace(stderr.String()))
	}

	return ParseListing(stdout.Bytes())
}

// FileLister reads a previously captured listing from disk. The activeMinutes
// pre-filter is the producer's concern and is ignored here.
type FileLister struct {
	Path string
}

// List reads and parses the listing file.
func (f *FileLister) List(ctx context.Context, _ int) (*Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading session listing: %w", err)
	}
	return ParseListing(data)
}
