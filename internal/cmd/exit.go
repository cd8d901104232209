package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit codes shared by the check commands.
const (
	ExitOK      = 0
	ExitFinding = 1 // something needs attention: active, urgent, stale, dirty
	ExitFailure = 2 // the check itself could not run
)

// ExitError carries a process exit code out of a command. Err, when set, is
// printed to stderr; a nil Err exits silently after the command's own output.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCode returns an ExitError with no message.
func exitCode(code int) error {
	return &ExitError{Code: code}
}

// usageError marks err as a usage problem.
func usageError(err error) error {
	return &ExitError{Code: ExitFailure, Err: err}
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(root.ErrOrStderr(), "Error:", exitErr.Err)
		}
		return exitErr.Code
	}

	fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	return ExitFailure
}
