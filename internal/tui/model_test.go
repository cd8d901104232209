package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agent-autonomy-kit/watchdog/internal/activity"
	"github.com/agent-autonomy-kit/watchdog/internal/monitoring"
	"github.com/agent-autonomy-kit/watchdog/internal/watchdog"
)

func sampleReport() *watchdog.Report {
	age := 4200.0
	return &watchdog.Report{
		SweepID:          "0123456789abcdef",
		CheckedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		SubagentsChecked: 2,
		ActiveSubagents:  1,
		Results: []watchdog.SessionResult{
			{Key: "agent:main:subagent:1", AgeMs: &age, LastRecordStatus: activity.StatusRunning, LastRecordReason: "assistant_waiting_tool", Active: true},
			{Key: "agent:main:subagent:2", LastRecordStatus: activity.StatusUnknown, LastRecordReason: "no_session_id"},
		},
	}
}

func TestModel_ApplyUpdate(t *testing.T) {
	updates := make(chan monitoring.Update, 1)
	m := New(updates)

	next, cmd := m.Update(updateMsg(monitoring.Update{At: time.Now(), Report: sampleReport()}))
	if cmd == nil {
		t.Error("expected a command waiting for the next update")
	}
	m = next.(Model)

	rows := m.table.Rows()
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][0] != "agent:main:subagent:1" || rows[0][2] != "4s" || rows[0][3] != "YES" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1][2] != "-" || rows[1][3] != "no" {
		t.Errorf("row 1 = %v", rows[1])
	}

	view := m.View()
	for _, want := range []string{"01234567", "1/2 active", "agent:main:subagent:1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_FailedSweepKeepsRows(t *testing.T) {
	m := New(make(chan monitoring.Update))
	next, _ := m.Update(updateMsg(monitoring.Update{Report: sampleReport()}))
	next, _ = next.(Model).Update(updateMsg(monitoring.Update{Err: errors.New("listing failed")}))
	m = next.(Model)

	if len(m.table.Rows()) != 2 {
		t.Error("rows from the last good sweep should remain")
	}
	if !strings.Contains(m.View(), "last sweep failed: listing failed") {
		t.Errorf("view missing error:\n%s", m.View())
	}
}

func TestModel_WaitingView(t *testing.T) {
	m := New(make(chan monitoring.Update))
	if !strings.Contains(m.View(), "waiting for first sweep") {
		t.Errorf("unexpected view:\n%s", m.View())
	}
}

func TestModel_Quit(t *testing.T) {
	m := New(make(chan monitoring.Update))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestWaitForUpdate_Closed(t *testing.T) {
	updates := make(chan monitoring.Update)
	close(updates)

	msg := waitForUpdate(updates)()
	if _, ok := msg.(doneMsg); !ok {
		t.Errorf("closed channel should yield doneMsg, got %T", msg)
	}

	m := New(updates)
	next, cmd := m.Update(msg)
	if !next.(Model).done || cmd == nil {
		t.Error("doneMsg should mark the model done and quit")
	}
}
