// Package monitoring watches subagent sessions over time.
//
// It repeats sweeps on an interval, remembers each session's verdicts, and
// reports the moments a session starts or stops counting as active so hooks
// can react to them.
package monitoring

import (
	"time"

	"github.com/agent-autonomy-kit/watchdog/internal/activity"
)

// Transition describes how a session's verdict changed between sweeps.
type Transition string

const (
	// TransitionNone means the verdict did not change.
	TransitionNone Transition = ""

	// TransitionFirstSeen means the session appeared in a sweep for the first time.
	TransitionFirstSeen Transition = "first-seen"

	// TransitionBecameActive means an idle session is active again.
	TransitionBecameActive Transition = "became-active"

	// TransitionBecameIdle means an active session stopped counting as active.
	TransitionBecameIdle Transition = "became-idle"

	// TransitionVanished means the session is no longer listed.
	TransitionVanished Transition = "vanished"
)

// Observation is one sweep's verdict for a session.
type Observation struct {
	// SessionKey identifies the session.
	SessionKey string `json:"session_key"`

	// SweepID is the sweep that produced this observation.
	SweepID string `json:"sweep_id,omitempty"`

	// Active is the liveness verdict.
	Active bool `json:"active"`

	// Status is the classification of the session's last log record.
	Status activity.Status `json:"status"`

	// Reason explains the classification.
	Reason string `json:"reason,omitempty"`

	// Timestamp is when the sweep judged the session.
	Timestamp time.Time `json:"timestamp"`
}

// Change is a transition detected for one session during a sweep.
type Change struct {
	SessionKey  string      `json:"session_key"`
	Transition  Transition  `json:"transition"`
	Observation Observation `json:"observation"`
}
