package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
)

// ConfigFile is the hooks config location relative to the work dir.
var ConfigFile = filepath.Join(".watchdog", "hooks.json")

// HookRunner loads hook configurations and executes hooks for events.
type HookRunner struct {
	workDir string
	config  *WatchdogHooksConfig
}

// NewHookRunner creates a new HookRunner for the given work dir.
// It loads the hooks configuration from .watchdog/hooks.json if it exists.
func NewHookRunner(workDir string) (*HookRunner, error) {
	runner := &HookRunner{
		workDir: workDir,
		config:  &WatchdogHooksConfig{Hooks: make(map[EventType][]HookConfig)},
	}

	if err := runner.loadConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading hooks config: %w", err)
		}
		// Config file doesn't exist - use empty config
	}

	return runner, nil
}

// loadConfig loads the hooks configuration from .watchdog/hooks.json.
func (r *HookRunner) loadConfig() error {
	data, err := os.ReadFile(filepath.Join(r.workDir, ConfigFile))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, r.config); err != nil {
		return err
	}
	if r.config.Hooks == nil {
		r.config.Hooks = make(map[EventType][]HookConfig)
	}
	return nil
}

// Fire executes all hooks registered for the given event type.
// Returns a slice of HookResults, one for each hook executed.
// For pre-* events, if any hook returns Block=true, later hooks are skipped.
func (r *HookRunner) Fire(ctx HookContext) []HookResult {
	hooks, exists := r.config.Hooks[ctx.EventType]
	if !exists || len(hooks) == 0 {
		return nil
	}
	if ctx.Ctx == nil {
		ctx.Ctx = context.Background()
	}
	if ctx.WorkDir == "" {
		ctx.WorkDir = r.workDir
	}

	results := make([]HookResult, 0, len(hooks))
	isPre := isPreEvent(ctx.EventType)

	for _, hook := range hooks {
		result := r.executeHook(hook, ctx)
		if !isPre {
			// Only pre-* events can block.
			result.Block = false
		}
		results = append(results, result)

		// For pre-* events, stop if a hook blocks the operation
		if isPre && result.Block {
			break
		}
	}

	return results
}

// executeHook executes a single hook and returns the result.
func (r *HookRunner) executeHook(hook HookConfig, ctx HookContext) HookResult {
	start := time.Now()

	// Set up timeout if specified
	execCtx := ctx.Ctx
	if hook.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx.Ctx, time.Duration(hook.Timeout)*time.Second)
		defer cancel()
	}

	switch hook.Type {
	case HookTypeCommand:
		return r.executeCommand(hook, ctx, execCtx, start)
	case HookTypeBuiltin:
		return r.executeBuiltin(hook, ctx, execCtx, start)
	default:
		return Failure(fmt.Errorf("unknown hook type: %s", hook.Type), time.Since(start))
	}
}

// executeCommand executes a shell command hook. On pre-* events a command
// that exits non-zero blocks the operation.
func (r *HookRunner) executeCommand(hook HookConfig, ctx HookContext, execCtx context.Context, start time.Time) HookResult {
	if hook.Cmd == "" {
		return Failure(fmt.Errorf("command hook missing cmd field"), time.Since(start))
	}

	cmd := exec.CommandContext(execCtx, "sh", "-c", hook.Cmd)
	cmd.Dir = r.workDir
	cmd.WaitDelay = time.Second
	cmd.Env = append(os.Environ(), hookEnv(ctx)...)

	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		if isPreEvent(ctx.EventType) && errors.As(err, &exitErr) && execCtx.Err() == nil {
			return BlockOperation(strings.TrimSpace(string(output)), duration)
		}
		return Failure(fmt.Errorf("command failed: %w: %s", err, string(output)), duration)
	}

	return Success(string(output), duration)
}

// hookEnv builds the WATCHDOG_* environment passed to command hooks.
func hookEnv(ctx HookContext) []string {
	env := []string{
		fmt.Sprintf("WATCHDOG_EVENT=%s", ctx.EventType),
		fmt.Sprintf("WATCHDOG_WORKDIR=%s", ctx.WorkDir),
		fmt.Sprintf("WATCHDOG_SESSION_KEY=%s", ctx.SessionKey),
	}

	keys := make([]string, 0, len(ctx.Metadata))
	for k := range ctx.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("WATCHDOG_META_%s=%v", envKey(k), ctx.Metadata[k]))
	}
	return env
}

// envKey upper-cases a metadata key and maps anything outside [A-Z0-9] to '_'.
func envKey(k string) string {
	return strings.Map(func(r rune) rune {
		r = unicode.ToUpper(r)
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, k)
}

// executeBuiltin executes a built-in hook function.
func (r *HookRunner) executeBuiltin(hook HookConfig, ctx HookContext, execCtx context.Context, start time.Time) HookResult {
	if hook.Builtin == "" {
		return Failure(fmt.Errorf("builtin hook missing builtin field"), time.Since(start))
	}

	fn, exists := lookupBuiltin(hook.Builtin)
	if !exists {
		return Failure(fmt.Errorf("unknown builtin hook: %s", hook.Builtin), time.Since(start))
	}

	// Update context in case timeout was added
	ctx.Ctx = execCtx

	return fn(ctx)
}

// isPreEvent returns true if the event type is a pre-* event.
func isPreEvent(eventType EventType) bool {
	return eventType == EventPreSweep
}

// HasHooks returns true if there are hooks registered for the given event type.
func (r *HookRunner) HasHooks(eventType EventType) bool {
	hooks, exists := r.config.Hooks[eventType]
	return exists && len(hooks) > 0
}

// GetHooks returns the hooks registered for the given event type.
func (r *HookRunner) GetHooks(eventType EventType) []HookConfig {
	return r.config.Hooks[eventType]
}
