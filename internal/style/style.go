// Package style provides terminal styling for watchdog output.
package style

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	// Bold is used for headings and identifiers.
	Bold = lipgloss.NewStyle().Bold(true)

	// Dim is used for secondary detail such as reasons and paths.
	Dim = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Success marks idle/clean/ok results.
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	// Warning marks active sessions and stale queues.
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	// Error marks failures.
	Error = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	// Info marks neutral highlights.
	Info = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// ColorEnabled reports whether output to w should be coloured. Colour is off
// when noColor is set, NO_COLOR is present, or w is not a terminal.
func ColorEnabled(w io.Writer, noColor bool) bool {
	if noColor {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Setup configures the renderer for output to w.
func Setup(w io.Writer, noColor bool) {
	if ColorEnabled(w, noColor) {
		lipgloss.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}

// Age renders a duration as a compact "<n>s" count, matching the text report.
func Age(d time.Duration) string {
	return fmt.Sprintf("%ds", int64(d.Round(time.Second)/time.Second))
}

// Since renders t relative to now, e.g. "3 minutes ago".
func Since(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// Count renders n with thousands separators.
func Count(n int) string {
	return humanize.Comma(int64(n))
}
