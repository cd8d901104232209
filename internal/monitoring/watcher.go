package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agent-autonomy-kit/watchdog/internal/hooks"
	"github.com/agent-autonomy-kit/watchdog/internal/watchdog"
)

// DefaultMinWakeGap is the shortest gap between a sweep and one triggered by
// a log write.
const DefaultMinWakeGap = 5 * time.Second

// Sweeper runs one sweep. Satisfied by *watchdog.Checker.
type Sweeper interface {
	Sweep(ctx context.Context, activeMinutes int) (*watchdog.Report, error)
}

// hookFirer is satisfied by *hooks.HookRunner; mockable in tests.
type hookFirer interface {
	Fire(ctx hooks.HookContext) []hooks.HookResult
}

// Recorder persists sweep reports, e.g. the history store.
type Recorder interface {
	Record(ctx context.Context, report *watchdog.Report) error
}

// Update is published after every sweep attempt.
type Update struct {
	At      time.Time
	Report  *watchdog.Report // nil when the sweep failed or was skipped
	Changes []Change
	Err     error
	Skipped string // why a pre-sweep hook blocked the sweep
}

// Watcher repeats sweeps on an interval, tracks per-session verdicts and
// fires hooks on transitions. It runs in the background between Start and
// Stop.
type Watcher struct {
	mu            sync.RWMutex
	sweeper       Sweeper
	tracker       *MultiSessionTracker
	hooks         hookFirer
	recorder      Recorder
	logger        *zap.Logger
	workDir       string
	interval      time.Duration
	activeMinutes int
	fsNotify      bool
	minWakeGap    time.Duration
	dirWatcher    *DirWatcher
	updates       chan Update
	running       bool
	stopChan      chan struct{}
	stoppedChan   chan struct{}
}

// NewWatcher creates a Watcher. interval is the time between sweeps and
// activeMinutes the listing pre-filter passed to each sweep.
func NewWatcher(sweeper Sweeper, tracker *MultiSessionTracker, interval time.Duration, activeMinutes int) *Watcher {
	if tracker == nil {
		tracker = NewMultiSessionTracker(0)
	}
	return &Watcher{
		sweeper:       sweeper,
		tracker:       tracker,
		logger:        zap.NewNop(),
		interval:      interval,
		activeMinutes: activeMinutes,
		minWakeGap:    DefaultMinWakeGap,
		updates:       make(chan Update, 1),
		stopChan:      make(chan struct{}),
		stoppedChan:   make(chan struct{}),
	}
}

// WithHooks sets the hook runner fired on sweep and session events.
func (w *Watcher) WithHooks(h hookFirer, workDir string) *Watcher {
	w.hooks = h
	w.workDir = workDir
	return w
}

// WithRecorder sets where completed sweeps are persisted.
func (w *Watcher) WithRecorder(r Recorder) *Watcher {
	w.recorder = r
	return w
}

// WithLogger sets the logger.
func (w *Watcher) WithLogger(l *zap.Logger) *Watcher {
	if l != nil {
		w.logger = l
	}
	return w
}

// WithFSNotify enables early sweeps when a session log in the swept
// directory is written, at most once per minGap.
func (w *Watcher) WithFSNotify(enabled bool, minGap time.Duration) *Watcher {
	w.fsNotify = enabled
	if minGap > 0 {
		w.minWakeGap = minGap
	}
	return w
}

// Tracker returns the tracker holding per-session history.
func (w *Watcher) Tracker() *MultiSessionTracker {
	return w.tracker
}

// Updates delivers the outcome of each sweep. Only the latest unread update
// is kept. The channel is closed when the watcher stops.
func (w *Watcher) Updates() <-chan Update {
	return w.updates
}

// Start begins sweeping in a background goroutine. The first sweep runs
// immediately. Returns immediately; use Stop() to halt.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
}

// run is the main sweep loop.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.stoppedChan)
	defer close(w.updates)
	defer w.closeDirWatcher()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var lastSweep time.Time
	sweep := func() {
		lastSweep = time.Now()
		w.publish(w.SweepOnce(ctx))
	}
	sweep()

	for {
		select {
		case <-ctx.Done():
			w.setStopped()
			return

		case <-w.stopChan:
			w.setStopped()
			return

		case <-ticker.C:
			sweep()

		case <-w.wakeChan():
			if time.Since(lastSweep) < w.minWakeGap {
				continue
			}
			w.logger.Debug("session log changed, sweeping early")
			sweep()
		}
	}
}

func (w *Watcher) setStopped() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// wakeChan returns the directory watcher's channel, or nil (never ready)
// when there is none.
func (w *Watcher) wakeChan() <-chan struct{} {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.dirWatcher == nil {
		return nil
	}
	return w.dirWatcher.Start()
}

// SweepOnce runs a single sweep with hooks and tracking, without publishing.
func (w *Watcher) SweepOnce(ctx context.Context) Update {
	update := Update{At: time.Now()}

	if blocked, msg := hooks.Blocked(w.fire(ctx, hooks.EventPreSweep, "", nil)); blocked {
		w.logger.Info("sweep skipped by pre-sweep hook", zap.String("reason", msg))
		update.Skipped = msg
		return update
	}

	report, err := w.sweeper.Sweep(ctx, w.activeMinutes)
	if err != nil {
		w.logger.Error("sweep failed", zap.Error(err))
		update.Err = err
		w.fire(ctx, hooks.EventSweepFailed, "", map[string]interface{}{"error": err.Error()})
		return update
	}
	update.Report = report
	update.Changes = w.tracker.Observe(report)

	for _, c := range update.Changes {
		w.fireChange(ctx, report, c)
	}

	if w.recorder != nil {
		if err := w.recorder.Record(ctx, report); err != nil {
			w.logger.Warn("recording sweep failed", zap.Error(err))
		}
	}

	if w.fsNotify {
		w.ensureDirWatcher(report.SessionsDir)
	}

	w.fire(ctx, hooks.EventSweepComplete, "", map[string]interface{}{
		"sweep_id": report.SweepID,
		"checked":  report.SubagentsChecked,
		"active":   report.ActiveSubagents,
	})
	w.logger.Info("sweep complete",
		zap.String("sweep_id", report.SweepID),
		zap.Int("checked", report.SubagentsChecked),
		zap.Int("active", report.ActiveSubagents),
		zap.Int("changes", len(update.Changes)))

	return update
}

// fireChange maps a tracker transition to its hook event.
func (w *Watcher) fireChange(ctx context.Context, report *watchdog.Report, c Change) {
	var event hooks.EventType
	switch {
	case c.Transition == TransitionVanished:
		event = hooks.EventSessionVanished
	case c.Transition == TransitionBecameIdle:
		event = hooks.EventSessionIdle
	case c.Observation.Active:
		// first-seen active sessions count as becoming active
		event = hooks.EventSessionActive
	default:
		return
	}

	w.logger.Debug("session transition",
		zap.String("key", c.SessionKey),
		zap.String("transition", string(c.Transition)))

	w.fire(ctx, event, c.SessionKey, map[string]interface{}{
		"sweep_id":   report.SweepID,
		"transition": string(c.Transition),
		"status":     string(c.Observation.Status),
		"reason":     c.Observation.Reason,
	})
}

func (w *Watcher) fire(ctx context.Context, event hooks.EventType, sessionKey string, meta map[string]interface{}) []hooks.HookResult {
	if w.hooks == nil {
		return nil
	}
	results := w.hooks.Fire(hooks.HookContext{
		EventType:  event,
		WorkDir:    w.workDir,
		SessionKey: sessionKey,
		Metadata:   meta,
		Ctx:        ctx,
	})
	for _, r := range results {
		if r.Err != nil {
			w.logger.Warn("hook failed", zap.String("event", string(event)), zap.Error(r.Err))
		}
	}
	return results
}

// ensureDirWatcher starts watching dir once it is known. A failure is
// logged and the watcher falls back to the ticker alone.
func (w *Watcher) ensureDirWatcher(dir string) {
	if dir == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirWatcher != nil && w.dirWatcher.Dir() == dir {
		return
	}
	if w.dirWatcher != nil {
		_ = w.dirWatcher.Close()
		w.dirWatcher = nil
	}
	dw, err := NewDirWatcher(dir)
	if err != nil {
		w.logger.Warn("log directory watch unavailable", zap.String("dir", dir), zap.Error(err))
		return
	}
	w.dirWatcher = dw
}

func (w *Watcher) closeDirWatcher() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirWatcher != nil {
		_ = w.dirWatcher.Close()
		w.dirWatcher = nil
	}
}

// publish delivers u, replacing any unread update.
func (w *Watcher) publish(u Update) {
	for {
		select {
		case w.updates <- u:
			return
		default:
		}
		select {
		case <-w.updates:
		default:
		}
	}
}

// Stop halts the watcher and waits for the sweep goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	close(w.stopChan)
	<-w.stoppedChan
}

// Wait blocks until the sweep goroutine has exited.
func (w *Watcher) Wait() {
	<-w.stoppedChan
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// String describes the watcher's configuration.
func (w *Watcher) String() string {
	return fmt.Sprintf("watcher(interval=%s, active_minutes=%d, fs_notify=%v)", w.interval, w.activeMinutes, w.fsNotify)
}
