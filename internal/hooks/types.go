// Package hooks runs user-configured actions on watchdog lifecycle events.
package hooks

import (
	"context"
	"time"
)

// EventType represents a watchdog lifecycle event that can trigger hooks.
type EventType string

// Event type constants for watchdog lifecycle events.
const (
	EventPreSweep        EventType = "pre-sweep"
	EventSweepComplete   EventType = "sweep-complete"
	EventSweepFailed     EventType = "sweep-failed"
	EventSessionActive   EventType = "session-active"
	EventSessionIdle     EventType = "session-idle"
	EventSessionVanished EventType = "session-vanished"
	EventQueueUrgent     EventType = "queue-urgent"
	EventQueueStale      EventType = "queue-stale"
)

// AllEventTypes returns all supported event types.
var AllEventTypes = []EventType{
	EventPreSweep,
	EventSweepComplete,
	EventSweepFailed,
	EventSessionActive,
	EventSessionIdle,
	EventSessionVanished,
	EventQueueUrgent,
	EventQueueStale,
}

// HookType represents the type of hook to execute.
type HookType string

const (
	// HookTypeCommand executes a shell command.
	HookTypeCommand HookType = "command"

	// HookTypeBuiltin executes a built-in Go function.
	HookTypeBuiltin HookType = "builtin"
)

// HookConfig represents a single hook configuration.
type HookConfig struct {
	Type    HookType `json:"type"`              // Type of hook: "command" or "builtin"
	Cmd     string   `json:"cmd,omitempty"`     // Shell command to execute (for command hooks)
	Builtin string   `json:"builtin,omitempty"` // Built-in function name (for builtin hooks)
	Timeout int      `json:"timeout,omitempty"` // Timeout in seconds (0 = no timeout)
}

// HookResult represents the result of executing a hook.
type HookResult struct {
	Block    bool          // Whether to block the operation (for pre-* hooks)
	Message  string        // Message to display/log
	Err      error         // Error if the hook failed
	Duration time.Duration // How long the hook took to execute
}

// HookContext provides context to hook execution.
type HookContext struct {
	EventType  EventType              // The event that triggered the hook
	WorkDir    string                 // Directory the watchdog runs in
	SessionKey string                 // Session the event concerns, empty for sweep-level events
	Metadata   map[string]interface{} // Event-specific metadata
	Ctx        context.Context        // Context for cancellation/timeout
}

// WatchdogHooksConfig represents the .watchdog/hooks.json configuration.
type WatchdogHooksConfig struct {
	Hooks map[EventType][]HookConfig `json:"hooks"`
}

// Success creates a successful HookResult.
func Success(message string, duration time.Duration) HookResult {
	return HookResult{
		Block:    false,
		Message:  message,
		Duration: duration,
	}
}

// Failure creates a failed HookResult.
func Failure(err error, duration time.Duration) HookResult {
	return HookResult{
		Block:    false,
		Err:      err,
		Message:  err.Error(),
		Duration: duration,
	}
}

// BlockOperation creates a HookResult that blocks the operation.
func BlockOperation(message string, duration time.Duration) HookResult {
	return HookResult{
		Block:    true,
		Message:  message,
		Duration: duration,
	}
}

// Blocked reports whether any result blocks the operation.
func Blocked(results []HookResult) (bool, string) {
	for _, r := range results {
		if r.Block {
			return true, r.Message
		}
	}
	return false, ""
}
