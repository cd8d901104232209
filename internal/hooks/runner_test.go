package hooks

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeHooksConfig writes .watchdog/hooks.json under dir.
func writeHooksConfig(t *testing.T, dir, config string) {
	t.Helper()
	stateDir := filepath.Join(dir, ".watchdog")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatalf("failed to create .watchdog directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, "hooks.json"), []byte(config), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping on windows - command hooks use sh")
	}
}

func TestNewHookRunner(t *testing.T) {
	tmpDir := t.TempDir()

	runner, err := NewHookRunner(tmpDir)
	if err != nil {
		t.Fatalf("NewHookRunner failed: %v", err)
	}

	if runner.workDir != tmpDir {
		t.Errorf("expected workDir %q, got %q", tmpDir, runner.workDir)
	}
	if runner.config == nil {
		t.Fatal("config should not be nil")
	}
	if runner.HasHooks(EventPreSweep) {
		t.Error("empty config should have no hooks")
	}
}

func TestNewHookRunnerWithConfig(t *testing.T) {
	tmpDir := t.TempDir()
	writeHooksConfig(t, tmpDir, `{
		"hooks": {
			"pre-sweep": [
				{
					"type": "command",
					"cmd": "echo 'sweeping'",
					"timeout": 10
				}
			]
		}
	}`)

	runner, err := NewHookRunner(tmpDir)
	if err != nil {
		t.Fatalf("NewHookRunner failed: %v", err)
	}

	if !runner.HasHooks(EventPreSweep) {
		t.Error("expected pre-sweep hooks to be loaded")
	}

	hooks := runner.GetHooks(EventPreSweep)
	if len(hooks) != 1 {
		t.Fatalf("expected 1 hook, got %d", len(hooks))
	}
	if hooks[0].Type != HookTypeCommand {
		t.Errorf("expected type %q, got %q", HookTypeCommand, hooks[0].Type)
	}
}

func TestNewHookRunnerInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	writeHooksConfig(t, tmpDir, `{"hooks": [`)

	if _, err := NewHookRunner(tmpDir); err == nil {
		t.Error("expected error for malformed hooks.json")
	}
}

func TestFireCommandHookEnv(t *testing.T) {
	skipWithoutShell(t)
	tmpDir := t.TempDir()
	writeHooksConfig(t, tmpDir, `{
		"hooks": {
			"session-idle": [
				{
					"type": "command",
					"cmd": "echo \"$WATCHDOG_EVENT|$WATCHDOG_SESSION_KEY|$WATCHDOG_META_LAST_STATUS|$WATCHDOG_META_AGEMS\""
				}
			]
		}
	}`)

	runner, err := NewHookRunner(tmpDir)
	if err != nil {
		t.Fatalf("NewHookRunner failed: %v", err)
	}

	results := runner.Fire(HookContext{
		EventType:  EventSessionIdle,
		SessionKey: "agent:main:subagent:1",
		Metadata:   map[string]interface{}{"last-status": "completed", "ageMs": 1500},
		Ctx:        context.Background(),
	})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("expected no error, got %v", results[0].Err)
	}
	want := "session-idle|agent:main:subagent:1|completed|1500"
	if got := strings.TrimSpace(results[0].Message); got != want {
		t.Errorf("hook output = %q, want %q", got, want)
	}
}

func TestFireCommandFailureBlocksOnlyPreEvents(t *testing.T) {
	skipWithoutShell(t)
	tmpDir := t.TempDir()
	writeHooksConfig(t, tmpDir, `{
		"hooks": {
			"pre-sweep": [{"type": "command", "cmd": "echo maintenance; exit 1"}],
			"sweep-complete": [{"type": "command", "cmd": "exit 1"}]
		}
	}`)

	runner, err := NewHookRunner(tmpDir)
	if err != nil {
		t.Fatalf("NewHookRunner failed: %v", err)
	}

	pre := runner.Fire(HookContext{EventType: EventPreSweep, Ctx: context.Background()})
	if len(pre) != 1 || !pre[0].Block {
		t.Fatalf("failing pre-sweep command should block, got %+v", pre)
	}
	if pre[0].Message != "maintenance" {
		t.Errorf("block message = %q, want %q", pre[0].Message, "maintenance")
	}

	post := runner.Fire(HookContext{EventType: EventSweepComplete, Ctx: context.Background()})
	if len(post) != 1 || post[0].Block {
		t.Fatalf("failing sweep-complete command should not block, got %+v", post)
	}
	if post[0].Err == nil {
		t.Error("expected error from failing command")
	}
}

func TestFireBuiltinHook(t *testing.T) {
	tmpDir := t.TempDir()
	writeHooksConfig(t, tmpDir, `{
		"hooks": {
			"sweep-complete": [
				{
					"type": "builtin",
					"builtin": "write-heartbeat"
				}
			]
		}
	}`)

	runner, err := NewHookRunner(tmpDir)
	if err != nil {
		t.Fatalf("NewHookRunner failed: %v", err)
	}

	results := runner.Fire(HookContext{EventType: EventSweepComplete, Ctx: context.Background()})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("expected no error, got %v", results[0].Err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, HeartbeatFile)); err != nil {
		t.Errorf("heartbeat not written: %v", err)
	}
}

func TestFireMultipleHooksStopsOnBlock(t *testing.T) {
	tmpDir := t.TempDir()

	// Register a custom builtin that blocks
	RegisterBuiltin("test-blocking-hook", func(ctx HookContext) HookResult {
		return BlockOperation("test block", 0)
	})

	writeHooksConfig(t, tmpDir, `{
		"hooks": {
			"pre-sweep": [
				{"type": "builtin", "builtin": "test-blocking-hook"},
				{"type": "builtin", "builtin": "write-heartbeat"}
			]
		}
	}`)

	runner, err := NewHookRunner(tmpDir)
	if err != nil {
		t.Fatalf("NewHookRunner failed: %v", err)
	}

	results := runner.Fire(HookContext{EventType: EventPreSweep, Ctx: context.Background()})

	// Should only get 1 result because the first hook blocks
	if len(results) != 1 {
		t.Errorf("expected 1 result (second hook should not run), got %d", len(results))
	}
	if !results[0].Block {
		t.Error("expected first hook to block")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, HeartbeatFile)); !os.IsNotExist(err) {
		t.Error("second hook should not have written a heartbeat")
	}
}

func TestFireBlockIgnoredOnPostEvents(t *testing.T) {
	tmpDir := t.TempDir()
	RegisterBuiltin("test-blocking-post", func(ctx HookContext) HookResult {
		return BlockOperation("ignored", 0)
	})
	writeHooksConfig(t, tmpDir, `{
		"hooks": {
			"session-active": [
				{"type": "builtin", "builtin": "test-blocking-post"},
				{"type": "builtin", "builtin": "log-event"}
			]
		}
	}`)

	runner, err := NewHookRunner(tmpDir)
	if err != nil {
		t.Fatalf("NewHookRunner failed: %v", err)
	}

	results := runner.Fire(HookContext{EventType: EventSessionActive, Ctx: context.Background()})
	if len(results) != 2 {
		t.Fatalf("expected both hooks to run, got %d results", len(results))
	}
	if blocked, _ := Blocked(results); blocked {
		t.Error("post events must not report a block")
	}
}

func TestFireUnknownHooks(t *testing.T) {
	tmpDir := t.TempDir()
	writeHooksConfig(t, tmpDir, `{
		"hooks": {
			"sweep-failed": [
				{"type": "webhook"},
				{"type": "builtin", "builtin": "no-such-builtin"},
				{"type": "builtin"},
				{"type": "command"}
			]
		}
	}`)

	runner, err := NewHookRunner(tmpDir)
	if err != nil {
		t.Fatalf("NewHookRunner failed: %v", err)
	}

	results := runner.Fire(HookContext{EventType: EventSweepFailed, Ctx: context.Background()})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Err == nil {
			t.Errorf("results[%d]: expected error", i)
		}
	}
}

func TestFireWithTimeout(t *testing.T) {
	skipWithoutShell(t)
	tmpDir := t.TempDir()
	writeHooksConfig(t, tmpDir, `{
		"hooks": {
			"sweep-complete": [
				{
					"type": "command",
					"cmd": "sleep 5",
					"timeout": 1
				}
			]
		}
	}`)

	runner, err := NewHookRunner(tmpDir)
	if err != nil {
		t.Fatalf("NewHookRunner failed: %v", err)
	}

	start := time.Now()
	results := runner.Fire(HookContext{EventType: EventSweepComplete, Ctx: context.Background()})
	elapsed := time.Since(start)

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err == nil {
		t.Error("expected timeout error")
	}
	if elapsed > 3*time.Second {
		t.Errorf("timeout did not trigger in time: took %v", elapsed)
	}
}

func TestIsPreEvent(t *testing.T) {
	for _, event := range AllEventTypes {
		want := event == EventPreSweep
		if got := isPreEvent(event); got != want {
			t.Errorf("isPreEvent(%q) = %v, want %v", event, got, want)
		}
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"ageMs":       "AGEMS",
		"last-status": "LAST_STATUS",
		"sweep id":    "SWEEP_ID",
		"x.y":         "X_Y",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
