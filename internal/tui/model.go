// Package tui renders a live dashboard of watch-mode sweeps.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agent-autonomy-kit/watchdog/internal/monitoring"
	"github.com/agent-autonomy-kit/watchdog/internal/style"
	"github.com/agent-autonomy-kit/watchdog/internal/watchdog"
)

// -- messages --

type updateMsg monitoring.Update
type doneMsg struct{}

var columns = []table.Column{
	{Title: "KEY", Width: 36},
	{Title: "STATUS", Width: 10},
	{Title: "AGE", Width: 8},
	{Title: "ACTIVE", Width: 7},
	{Title: "REASON", Width: 32},
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Model is the dashboard state.
type Model struct {
	updates <-chan monitoring.Update
	table   table.Model

	report  *watchdog.Report
	lastErr error
	skipped string
	lastAt  time.Time
	done    bool

	width  int
	height int
}

// New creates a dashboard fed by updates.
func New(updates <-chan monitoring.Update) Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	return Model{updates: updates, table: t}
}

// waitForUpdate blocks on the next sweep outcome.
func waitForUpdate(updates <-chan monitoring.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(u)
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 6; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil
	case updateMsg:
		m.apply(monitoring.Update(msg))
		return m, waitForUpdate(m.updates)
	case doneMsg:
		m.done = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// apply folds a sweep outcome into the model.
func (m *Model) apply(u monitoring.Update) {
	m.lastAt = u.At
	m.lastErr = u.Err
	m.skipped = u.Skipped
	if u.Report == nil {
		return
	}
	m.report = u.Report
	m.table.SetRows(rows(u.Report))
}

func rows(report *watchdog.Report) []table.Row {
	out := make([]table.Row, 0, len(report.Results))
	for _, r := range report.Results {
		age := "-"
		if secs, ok := r.AgeSeconds(); ok {
			age = fmt.Sprintf("%ds", secs)
		}
		active := "no"
		if r.Active {
			active = "YES"
		}
		out = append(out, table.Row{r.Key, string(r.LastRecordStatus), age, active, r.LastRecordReason})
	}
	return out
}

func (m Model) View() string {
	var b strings.Builder

	switch {
	case m.report == nil:
		b.WriteString(headerStyle.Render("watchdog: waiting for first sweep..."))
	default:
		b.WriteString(headerStyle.Render(fmt.Sprintf("watchdog  sweep %s  %s",
			shortID(m.report.SweepID), m.report.CheckedAt.Local().Format("15:04:05"))))
		b.WriteString("  ")
		summary := fmt.Sprintf("%d/%d active", m.report.ActiveSubagents, m.report.SubagentsChecked)
		if m.report.ActiveSubagents > 0 {
			b.WriteString(style.Warning.Render(summary))
		} else {
			b.WriteString(style.Success.Render(summary))
		}
	}
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	switch {
	case m.lastErr != nil:
		b.WriteString(style.Error.Render("last sweep failed: " + m.lastErr.Error()))
	case m.skipped != "":
		b.WriteString(style.Warning.Render("last sweep skipped: " + m.skipped))
	}
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("q quit • ↑/↓ scroll"))
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Run shows the dashboard until the user quits or updates closes.
func Run(updates <-chan monitoring.Update) error {
	p := tea.NewProgram(New(updates), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
