package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-autonomy-kit/watchdog/internal/config"
	"github.com/agent-autonomy-kit/watchdog/internal/watchdog"
	"github.com/agent-autonomy-kit/watchdog/internal/workspace"
)

const (
	recToolUse = `{"type":"message","message":{"role":"assistant"},"stopReason":"toolUse"}`
	recStop    = `{"type":"message","message":{"role":"assistant"},"stopReason":"stop"}`
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fixedClock pins nowFunc to testNow for the duration of the test.
func fixedClock(t *testing.T) {
	t.Helper()
	prev := nowFunc
	nowFunc = func() time.Time { return testNow }
	t.Cleanup(func() { nowFunc = prev })
}

type result struct {
	code   int
	stdout string
	stderr string
}

// execute runs the command line against workDir with colour disabled.
func execute(t *testing.T, workDir string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--dir", workDir, "--no-color"}, args...)
	code := run(full, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

type fixtureSession struct {
	key    string
	id     string
	record string
	age    time.Duration
}

// writeListing lays out a sessions directory with one log per session and a
// listing file pointing at it. It returns the listing file path.
func writeListing(t *testing.T, sessions ...fixtureSession) string {
	t.Helper()
	dir := t.TempDir()

	entries := make([]map[string]interface{}, 0, len(sessions))
	for _, s := range sessions {
		if s.record != "" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, s.id+".jsonl"), []byte(s.record+"\n"), 0644))
		}
		entries = append(entries, map[string]interface{}{
			"key":       s.key,
			"sessionId": s.id,
			"updatedAt": testNow.Add(-s.age).UnixMilli(),
		})
	}

	data, err := json.Marshal(map[string]interface{}{
		"path":     filepath.Join(dir, "sessions.json"),
		"sessions": entries,
	})
	require.NoError(t, err)

	listing := filepath.Join(dir, "listing.json")
	require.NoError(t, os.WriteFile(listing, data, 0644))
	return listing
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// =============================================================================
// Root and exit handling
// =============================================================================

func TestRun_InvalidFormat(t *testing.T) {
	res := execute(t, t.TempDir(), "--format", "xml", "hooks")

	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error:")
}

func TestRun_UnknownCommand(t *testing.T) {
	res := execute(t, t.TempDir(), "frobnicate")

	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "unknown command")
}

func TestRun_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, config.Path(dir), "[sessions]\nbogus = 1\n")

	res := execute(t, dir, "hooks")

	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error:")
}

func TestExitError(t *testing.T) {
	silent := exitCode(ExitFinding)
	assert.Equal(t, "exit status 1", silent.Error())

	wrapped := &ExitError{Code: ExitFailure, Err: workspace.ErrWatchRunning}
	assert.ErrorIs(t, wrapped, workspace.ErrWatchRunning)
	assert.Equal(t, workspace.ErrWatchRunning.Error(), wrapped.Error())
}

// =============================================================================
// subagents
// =============================================================================

func TestSubagents_NoneFound(t *testing.T) {
	fixedClock(t)
	listing := writeListing(t, fixtureSession{key: "agent:main:main", id: "m", record: recToolUse, age: time.Minute})

	res := execute(t, t.TempDir(), "subagents", "--sessions-file", listing)

	assert.Equal(t, ExitOK, res.code)
	assert.Equal(t, "No subagent sessions found in recent sessions list.\n", res.stdout)
}

func TestSubagents_AllIdle(t *testing.T) {
	fixedClock(t)
	listing := writeListing(t,
		fixtureSession{key: "agent:main:subagent:a", id: "a", record: recStop, age: 10 * time.Second},
		fixtureSession{key: "agent:main:subagent:b", id: "b", record: recToolUse, age: 20 * time.Minute},
	)

	res := execute(t, t.TempDir(), "subagents", "--sessions-file", listing)

	assert.Equal(t, ExitOK, res.code)
	assert.Contains(t, res.stdout, "No active subagents detected (checked 2).")
	assert.Contains(t, res.stdout, "- idle: agent:main:subagent:a age=10s last=completed (assistant_stopReason:stop)")
	assert.Contains(t, res.stdout, "- idle: agent:main:subagent:b age=1200s last=running")
}

func TestSubagents_Active(t *testing.T) {
	fixedClock(t)
	listing := writeListing(t,
		fixtureSession{key: "agent:main:subagent:a", id: "a", record: recToolUse, age: 30 * time.Second},
		fixtureSession{key: "agent:main:subagent:b", id: "b", record: recStop, age: 30 * time.Second},
	)

	res := execute(t, t.TempDir(), "subagents", "--sessions-file", listing)

	assert.Equal(t, ExitFinding, res.code)
	assert.Contains(t, res.stdout, "ACTIVE subagents detected (1/2):")
	assert.Contains(t, res.stdout, "- ACTIVE: agent:main:subagent:a age=30s last=running")
	assert.NotContains(t, res.stdout, "subagent:b")
	assert.NotContains(t, res.stderr, "Error:", "active exit is silent")
}

func TestSubagents_AliasAndJSON(t *testing.T) {
	fixedClock(t)
	listing := writeListing(t,
		fixtureSession{key: "agent:main:subagent:a", id: "a", record: recToolUse, age: time.Minute},
	)

	res := execute(t, t.TempDir(), "--json", "check-active-subagents", "--sessions-file", listing)
	require.Equal(t, ExitFinding, res.code, res.stderr)

	var report watchdog.Report
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	assert.Equal(t, 1, report.SubagentsChecked)
	assert.Equal(t, 1, report.ActiveSubagents)
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Active)
	require.NotNil(t, report.Results[0].AgeMs)
	assert.Equal(t, float64(time.Minute/time.Millisecond), *report.Results[0].AgeMs)
}

func TestSubagents_YAML(t *testing.T) {
	fixedClock(t)
	listing := writeListing(t,
		fixtureSession{key: "agent:main:subagent:a", id: "a", record: recStop, age: time.Minute},
	)

	res := execute(t, t.TempDir(), "--format", "yaml", "subagents", "--sessions-file", listing)

	assert.Equal(t, ExitOK, res.code)
	assert.Contains(t, res.stdout, "subagentsChecked: 1")
	assert.Contains(t, res.stdout, "lastRecordStatus: completed")
}

func TestSubagents_ListingFailure(t *testing.T) {
	res := execute(t, t.TempDir(), "subagents", "--sessions-file", filepath.Join(t.TempDir(), "missing.json"))

	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error:")
}

func TestSubagents_Command(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
	fixedClock(t)

	listing := writeListing(t,
		fixtureSession{key: "agent:main:subagent:a", id: "a", record: recToolUse, age: time.Minute},
	)
	bin := t.TempDir()
	writeFile(t, filepath.Join(bin, "fake-runtime"), fmt.Sprintf("#!/bin/sh\ncat %q\n", listing))
	require.NoError(t, os.Chmod(filepath.Join(bin, "fake-runtime"), 0755))

	res := execute(t, t.TempDir(), "subagents", "--command", filepath.Join(bin, "fake-runtime"))

	assert.Equal(t, ExitFinding, res.code, res.stderr)
	assert.Contains(t, res.stdout, "ACTIVE subagents detected (1/1):")
}

func TestSubagents_PreSweepHookBlocks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("command hooks require a POSIX shell")
	}
	fixedClock(t)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".watchdog", "hooks.json"),
		`{"hooks":{"pre-sweep":[{"type":"command","cmd":"echo paused; exit 3"}]}}`)
	listing := writeListing(t,
		fixtureSession{key: "agent:main:subagent:a", id: "a", record: recToolUse, age: time.Minute},
	)

	res := execute(t, dir, "subagents", "--sessions-file", listing)

	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "sweep blocked by pre-sweep hook")
	assert.Empty(t, res.stdout)
}

func TestSubagents_ConfiguredKind(t *testing.T) {
	fixedClock(t)

	dir := t.TempDir()
	writeFile(t, config.Path(dir), `[[sessions.kinds]]
name = "workers"
pattern = "^worker:"
kind = "subagent"
`)
	listing := writeListing(t,
		fixtureSession{key: "worker:7", id: "w7", record: recToolUse, age: time.Minute},
	)

	res := execute(t, dir, "subagents", "--sessions-file", listing)

	assert.Equal(t, ExitFinding, res.code, res.stderr)
	assert.Contains(t, res.stdout, "- ACTIVE: worker:7")
}

// =============================================================================
// session
// =============================================================================

func TestSession(t *testing.T) {
	fixedClock(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "run.jsonl"), recToolUse+"\n")
	writeFile(t, filepath.Join(dir, "done.jsonl"), recStop+"\n")

	recent := fmt.Sprint(testNow.Add(-time.Minute).UnixMilli())

	t.Run("running and recent", func(t *testing.T) {
		res := execute(t, t.TempDir(), "session", "run", "--sessions-dir", dir, "--updated-at", recent)
		assert.Equal(t, ExitFinding, res.code)
		assert.Equal(t, "ACTIVE: run age=60s last=running (assistant_waiting_tool stopReason:toolUse)\n", res.stdout)
	})

	t.Run("completed", func(t *testing.T) {
		res := execute(t, t.TempDir(), "session", "done", "--sessions-dir", dir, "--updated-at", recent)
		assert.Equal(t, ExitOK, res.code)
		assert.Contains(t, res.stdout, "idle: done age=60s last=completed")
	})

	t.Run("fresh log without updated-at stays idle", func(t *testing.T) {
		touched := testNow.Add(-30 * time.Second)
		require.NoError(t, os.Chtimes(filepath.Join(dir, "run.jsonl"), touched, touched))

		res := execute(t, t.TempDir(), "session", "run", "--sessions-dir", dir)
		assert.Equal(t, ExitOK, res.code)
		assert.Equal(t, "idle: run age=unknown last=running (assistant_waiting_tool stopReason:toolUse)\n", res.stdout)

		res = execute(t, t.TempDir(), "--json", "session", "run", "--sessions-dir", dir)
		var r watchdog.SessionResult
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &r))
		assert.Nil(t, r.UpdatedAt)
		assert.Nil(t, r.AgeMs)
		assert.False(t, r.Active)
	})

	t.Run("missing log past unknown grace", func(t *testing.T) {
		stale := fmt.Sprint(testNow.Add(-10 * time.Minute).UnixMilli())
		res := execute(t, t.TempDir(), "--json", "session", "nope", "--sessions-dir", dir, "--updated-at", stale)
		assert.Equal(t, ExitOK, res.code)

		var r watchdog.SessionResult
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &r))
		assert.False(t, r.Active)
		assert.Equal(t, "unknown", string(r.LastRecordStatus))
	})

	t.Run("sessions dir required", func(t *testing.T) {
		res := execute(t, t.TempDir(), "session", "run")
		assert.Equal(t, ExitFailure, res.code)
		assert.Contains(t, res.stderr, "--sessions-dir is required")
	})
}

// =============================================================================
// watch and history
// =============================================================================

func TestWatch_MaxSweeps(t *testing.T) {
	fixedClock(t)
	listing := writeListing(t,
		fixtureSession{key: "agent:main:subagent:a", id: "a", record: recToolUse, age: time.Minute},
	)

	res := execute(t, t.TempDir(), "--json", "watch", "--sessions-file", listing, "--max-sweeps", "1")
	require.Equal(t, ExitOK, res.code, res.stderr)

	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 1)

	var ev struct {
		Report  *watchdog.Report `json:"report"`
		Changes []struct {
			SessionKey string `json:"session_key"`
			Transition string `json:"transition"`
		} `json:"changes"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ev))
	require.NotNil(t, ev.Report)
	assert.Equal(t, 1, ev.Report.ActiveSubagents)
	require.Len(t, ev.Changes, 1)
}

func TestWatch_Text(t *testing.T) {
	fixedClock(t)
	listing := writeListing(t,
		fixtureSession{key: "agent:main:subagent:a", id: "a", record: recToolUse, age: time.Minute},
	)

	res := execute(t, t.TempDir(), "watch", "--sessions-file", listing, "--max-sweeps", "1")

	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "1/1 subagents active")
	assert.Contains(t, res.stdout, "agent:main:subagent:a")
}

func TestWatch_AlreadyRunning(t *testing.T) {
	dir := t.TempDir()
	lock, err := workspace.AcquireWatchLock(filepath.Join(dir, config.StateDirName))
	require.NoError(t, err)
	defer lock.Release()

	res := execute(t, dir, "watch", "--sessions-file", filepath.Join(dir, "unused.json"), "--max-sweeps", "1")

	assert.Equal(t, ExitFinding, res.code)
	assert.Contains(t, res.stderr, "Error:")
}

func TestHistory(t *testing.T) {
	fixedClock(t)
	dir := t.TempDir()

	res := execute(t, dir, "history")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "No history recorded.")

	writeFile(t, config.Path(dir), "[history]\nenabled = true\n")
	listing := writeListing(t,
		fixtureSession{key: "agent:main:subagent:a", id: "a", record: recToolUse, age: time.Minute},
		fixtureSession{key: "agent:main:subagent:b", id: "b", record: recStop, age: time.Minute},
	)
	res = execute(t, dir, "subagents", "--sessions-file", listing)
	require.Equal(t, ExitFinding, res.code, res.stderr)

	_, err := os.Stat(filepath.Join(dir, config.DefaultHistoryPath))
	require.NoError(t, err, "history database should exist")

	res = execute(t, dir, "history")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "1/2 active")

	res = execute(t, dir, "--json", "history", "--key", "agent:main:subagent:a")
	require.Equal(t, ExitOK, res.code, res.stderr)

	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0]["active"])

	res = execute(t, dir, "history", "--key", "agent:main:subagent:zzz")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "No recorded verdicts for agent:main:subagent:zzz.")
}
