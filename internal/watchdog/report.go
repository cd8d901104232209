// Package watchdog sweeps recent subagent sessions and decides which are
// still doing work.
package watchdog

import (
	"math"
	"time"

	"github.com/agent-autonomy-kit/watchdog/internal/activity"
)

// SessionResult is the verdict for one listed session. JSON keys follow the
// field names consumers of the sweep output already parse.
type SessionResult struct {
	Key              string          `json:"key" yaml:"key"`
	Kind             string          `json:"kind,omitempty" yaml:"kind,omitempty"`
	SessionID        string          `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`
	UpdatedAt        *float64        `json:"updatedAt" yaml:"updatedAt"`
	AgeMs            *float64        `json:"ageMs" yaml:"ageMs"`
	LastRecordStatus activity.Status `json:"lastRecordStatus" yaml:"lastRecordStatus"`
	LastRecordReason string          `json:"lastRecordReason" yaml:"lastRecordReason"`
	JSONLPath        *string         `json:"jsonlPath" yaml:"jsonlPath"`
	Active           bool            `json:"active" yaml:"active"`
}

// Age returns the session's age as a duration, zero when unknown.
func (r SessionResult) Age() time.Duration {
	if r.AgeMs == nil {
		return 0
	}
	age, ok := activity.AgeFromMillis(0, *r.AgeMs)
	if !ok {
		return 0
	}
	return age
}

// AgeSeconds returns the age rounded to whole seconds, the unit text
// output reports. ok is false when the age is unknown.
func (r SessionResult) AgeSeconds() (secs int64, ok bool) {
	if r.AgeMs == nil {
		return 0, false
	}
	return int64(math.Floor(*r.AgeMs/1000 + 0.5)), true
}

// Report is the outcome of one sweep.
type Report struct {
	SweepID          string          `json:"sweepId" yaml:"sweepId"`
	CheckedAt        time.Time       `json:"checkedAt" yaml:"checkedAt"`
	ActiveMinutes    int             `json:"activeMinutes" yaml:"activeMinutes"`
	SessionsDir      string          `json:"sessionsDir,omitempty" yaml:"sessionsDir,omitempty"`
	SessionsListed   int             `json:"sessionsListed" yaml:"sessionsListed"`
	SubagentsChecked int             `json:"subagentsChecked" yaml:"subagentsChecked"`
	ActiveSubagents  int             `json:"activeSubagents" yaml:"activeSubagents"`
	Results          []SessionResult `json:"results" yaml:"results"`
}

// Active returns the results judged active, in sweep order.
func (r *Report) Active() []SessionResult {
	out := make([]SessionResult, 0, r.ActiveSubagents)
	for _, res := range r.Results {
		if res.Active {
			out = append(out, res)
		}
	}
	return out
}

// ActiveCount returns how many results are active.
func ActiveCount(results []SessionResult) int {
	n := 0
	for _, r := range results {
		if r.Active {
			n++
		}
	}
	return n
}
