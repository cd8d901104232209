package hooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agent-autonomy-kit/watchdog/internal/logging"
	"github.com/agent-autonomy-kit/watchdog/internal/workspace"
)

// BuiltinHookFunc is a function that executes a built-in hook.
type BuiltinHookFunc func(ctx HookContext) HookResult

// HeartbeatFile is where write-heartbeat records the last event, relative
// to the work dir.
var HeartbeatFile = filepath.Join(".watchdog", "heartbeat.json")

var (
	builtinMu sync.RWMutex

	// builtinHooks maps builtin hook names to their implementation functions.
	builtinHooks = map[string]BuiltinHookFunc{
		"check-dirty-repo": checkDirtyRepo,
		"write-heartbeat":  writeHeartbeat,
		"log-event":        logEvent,
	}
)

func lookupBuiltin(name string) (BuiltinHookFunc, bool) {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	fn, ok := builtinHooks[name]
	return fn, ok
}

// checkDirtyRepo blocks when the work dir has uncommitted changes.
func checkDirtyRepo(ctx HookContext) HookResult {
	start := time.Now()

	status, err := workspace.CheckRepo(ctx.Ctx, ctx.WorkDir)
	if err != nil {
		if errors.Is(err, workspace.ErrNotARepo) {
			// Not a git repo - nothing to check
			return Success("no git repository", time.Since(start))
		}
		return Failure(fmt.Errorf("checking repository: %w", err), time.Since(start))
	}

	if status.Dirty() {
		return BlockOperation(
			fmt.Sprintf("%d uncommitted change(s) in %s", status.Changes, ctx.WorkDir),
			time.Since(start),
		)
	}
	return Success("working tree clean", time.Since(start))
}

// Heartbeat is the record write-heartbeat leaves behind.
type Heartbeat struct {
	Event      EventType              `json:"event"`
	Time       time.Time              `json:"time"`
	SessionKey string                 `json:"session_key,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// writeHeartbeat records the event in .watchdog/heartbeat.json so external
// supervisors can tell the watchdog is alive. Never blocks.
func writeHeartbeat(ctx HookContext) HookResult {
	start := time.Now()

	hb := Heartbeat{
		Event:      ctx.EventType,
		Time:       start.UTC(),
		SessionKey: ctx.SessionKey,
		Metadata:   ctx.Metadata,
	}
	data, err := json.MarshalIndent(hb, "", "  ")
	if err != nil {
		return Failure(fmt.Errorf("encoding heartbeat: %w", err), time.Since(start))
	}

	path := filepath.Join(ctx.WorkDir, HeartbeatFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Failure(fmt.Errorf("creating heartbeat dir: %w", err), time.Since(start))
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return Failure(fmt.Errorf("writing heartbeat: %w", err), time.Since(start))
	}
	if err := os.Rename(tmp, path); err != nil {
		return Failure(fmt.Errorf("writing heartbeat: %w", err), time.Since(start))
	}

	return Success("heartbeat written", time.Since(start))
}

// logEvent writes the event to the structured log. Never blocks.
func logEvent(ctx HookContext) HookResult {
	start := time.Now()

	fields := []zap.Field{zap.String("event", string(ctx.EventType))}
	if ctx.SessionKey != "" {
		fields = append(fields, zap.String("session_key", ctx.SessionKey))
	}
	keys := make([]string, 0, len(ctx.Metadata))
	for k := range ctx.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.Any(k, ctx.Metadata[k]))
	}
	logging.L().Info("watchdog event", fields...)

	return Success("event logged", time.Since(start))
}

// RegisterBuiltin registers a new built-in hook function.
// This allows external packages to extend the built-in hooks.
func RegisterBuiltin(name string, fn BuiltinHookFunc) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	builtinHooks[name] = fn
}

// GetBuiltinNames returns the names of all registered built-in hooks.
func GetBuiltinNames() []string {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	names := make([]string, 0, len(builtinHooks))
	for name := range builtinHooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
