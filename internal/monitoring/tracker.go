package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/agent-autonomy-kit/watchdog/internal/watchdog"
)

// SessionTracker tracks the current verdict and history for a single session.
// It is thread-safe for concurrent reads and writes.
type SessionTracker struct {
	mu         sync.RWMutex
	sessionKey string
	current    Observation
	seen       bool
	lastActive time.Time
	history    []Observation
	maxHistory int
}

// NewSessionTracker creates a new SessionTracker for the given session.
// maxHistory limits the number of observations kept (0 = unlimited).
func NewSessionTracker(sessionKey string, maxHistory int) *SessionTracker {
	return &SessionTracker{
		sessionKey: sessionKey,
		history:    make([]Observation, 0),
		maxHistory: maxHistory,
	}
}

// Observe records a verdict and returns how it differs from the previous one.
func (st *SessionTracker) Observe(obs Observation) Transition {
	st.mu.Lock()
	defer st.mu.Unlock()

	obs.SessionKey = st.sessionKey

	transition := TransitionNone
	switch {
	case !st.seen:
		transition = TransitionFirstSeen
	case obs.Active && !st.current.Active:
		transition = TransitionBecameActive
	case !obs.Active && st.current.Active:
		transition = TransitionBecameIdle
	}

	st.current = obs
	st.seen = true
	if obs.Active {
		st.lastActive = obs.Timestamp
	}

	st.history = append(st.history, obs)
	if st.maxHistory > 0 && len(st.history) > st.maxHistory {
		st.history = st.history[len(st.history)-st.maxHistory:]
	}

	return transition
}

// Current returns the latest observation and whether there is one.
func (st *SessionTracker) Current() (Observation, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current, st.seen
}

// GetHistory returns a copy of the observation history.
func (st *SessionTracker) GetHistory() []Observation {
	st.mu.RLock()
	defer st.mu.RUnlock()

	history := make([]Observation, len(st.history))
	copy(history, st.history)
	return history
}

// GetLastActive returns when the session was last judged active, zero if never.
func (st *SessionTracker) GetLastActive() time.Time {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.lastActive
}

// SessionKey returns the session this tracker is for.
func (st *SessionTracker) SessionKey() string {
	return st.sessionKey
}

// MultiSessionTracker manages SessionTrackers for every swept session.
type MultiSessionTracker struct {
	mu         sync.RWMutex
	trackers   map[string]*SessionTracker
	maxHistory int
}

// NewMultiSessionTracker creates a new MultiSessionTracker. maxHistory is
// passed to every tracker it creates.
func NewMultiSessionTracker(maxHistory int) *MultiSessionTracker {
	return &MultiSessionTracker{
		trackers:   make(map[string]*SessionTracker),
		maxHistory: maxHistory,
	}
}

// GetOrCreate returns the SessionTracker for a session, creating it if needed.
func (mst *MultiSessionTracker) GetOrCreate(sessionKey string) *SessionTracker {
	mst.mu.Lock()
	defer mst.mu.Unlock()

	if tracker, exists := mst.trackers[sessionKey]; exists {
		return tracker
	}

	tracker := NewSessionTracker(sessionKey, mst.maxHistory)
	mst.trackers[sessionKey] = tracker
	return tracker
}

// Get returns the SessionTracker for a session, or nil if not found.
func (mst *MultiSessionTracker) Get(sessionKey string) *SessionTracker {
	mst.mu.RLock()
	defer mst.mu.RUnlock()
	return mst.trackers[sessionKey]
}

// Observe records every result in report and returns the transitions, in
// report order, followed by a vanished change for each tracked session the
// report no longer lists. Vanished sessions are forgotten.
func (mst *MultiSessionTracker) Observe(report *watchdog.Report) []Change {
	changes := make([]Change, 0)
	seen := make(map[string]bool, len(report.Results))

	for _, r := range report.Results {
		seen[r.Key] = true
		obs := Observation{
			SessionKey: r.Key,
			SweepID:    report.SweepID,
			Active:     r.Active,
			Status:     r.LastRecordStatus,
			Reason:     r.LastRecordReason,
			Timestamp:  report.CheckedAt,
		}
		if t := mst.GetOrCreate(r.Key).Observe(obs); t != TransitionNone {
			changes = append(changes, Change{SessionKey: r.Key, Transition: t, Observation: obs})
		}
	}

	for _, key := range mst.Prune(seen) {
		changes = append(changes, Change{
			SessionKey: key,
			Transition: TransitionVanished,
			Observation: Observation{
				SessionKey: key,
				SweepID:    report.SweepID,
				Timestamp:  report.CheckedAt,
			},
		})
	}

	return changes
}

// Prune drops trackers for sessions not in seen and returns their keys, sorted.
func (mst *MultiSessionTracker) Prune(seen map[string]bool) []string {
	mst.mu.Lock()
	defer mst.mu.Unlock()

	var vanished []string
	for key := range mst.trackers {
		if !seen[key] {
			vanished = append(vanished, key)
			delete(mst.trackers, key)
		}
	}
	sort.Strings(vanished)
	return vanished
}

// All returns a map of all session keys to their latest verdict.
func (mst *MultiSessionTracker) All() map[string]bool {
	mst.mu.RLock()
	defer mst.mu.RUnlock()

	result := make(map[string]bool, len(mst.trackers))
	for key, tracker := range mst.trackers {
		obs, _ := tracker.Current()
		result[key] = obs.Active
	}
	return result
}

// Remove removes the SessionTracker for a session.
func (mst *MultiSessionTracker) Remove(sessionKey string) {
	mst.mu.Lock()
	defer mst.mu.Unlock()
	delete(mst.trackers, sessionKey)
}

// Count returns the number of tracked sessions.
func (mst *MultiSessionTracker) Count() int {
	mst.mu.RLock()
	defer mst.mu.RUnlock()
	return len(mst.trackers)
}
