package monitoring

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/agent-autonomy-kit/watchdog/internal/hooks"
	"github.com/agent-autonomy-kit/watchdog/internal/watchdog"
)

// fakeSweeper returns scripted reports in order, repeating the last one.
type fakeSweeper struct {
	mu      sync.Mutex
	reports []*watchdog.Report
	err     error
	calls   int
	minutes []int
}

func (f *fakeSweeper) Sweep(ctx context.Context, activeMinutes int) (*watchdog.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.minutes = append(f.minutes, activeMinutes)
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls - 1
	if i >= len(f.reports) {
		i = len(f.reports) - 1
	}
	return f.reports[i], nil
}

func (f *fakeSweeper) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// mockHooks records fired events and blocks pre-sweep when told to.
type mockHooks struct {
	mu       sync.Mutex
	events   []hooks.HookContext
	blockPre string
}

func (m *mockHooks) Fire(ctx hooks.HookContext) []hooks.HookResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ctx)
	if ctx.EventType == hooks.EventPreSweep && m.blockPre != "" {
		return []hooks.HookResult{hooks.BlockOperation(m.blockPre, 0)}
	}
	return []hooks.HookResult{hooks.Success("ok", 0)}
}

func (m *mockHooks) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		if e.SessionKey != "" {
			out[i] = fmt.Sprintf("%s:%s", e.EventType, e.SessionKey)
		} else {
			out[i] = string(e.EventType)
		}
	}
	return out
}

type mockRecorder struct {
	mu      sync.Mutex
	reports []*watchdog.Report
	err     error
}

func (m *mockRecorder) Record(ctx context.Context, report *watchdog.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return m.err
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWatcher_SweepOnceFiresTransitionHooks(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{reports: []*watchdog.Report{
		reportOf("s1", base, result("a", true), result("b", false)),
		reportOf("s2", base.Add(time.Minute), result("a", false), result("b", true)),
		reportOf("s3", base.Add(2*time.Minute), result("b", true)),
	}}
	h := &mockHooks{}
	rec := &mockRecorder{}
	w := NewWatcher(sweeper, nil, time.Hour, 15).WithHooks(h, "/work").WithRecorder(rec)
	ctx := context.Background()

	u := w.SweepOnce(ctx)
	if u.Err != nil || u.Report == nil || len(u.Changes) != 2 {
		t.Fatalf("first update = %+v", u)
	}
	w.SweepOnce(ctx)
	w.SweepOnce(ctx)

	want := []string{
		"pre-sweep", "session-active:a", "sweep-complete",
		"pre-sweep", "session-idle:a", "session-active:b", "sweep-complete",
		"pre-sweep", "session-vanished:a", "sweep-complete",
	}
	if got := h.Events(); !equalStrings(got, want) {
		t.Errorf("events =\n%v\nwant\n%v", got, want)
	}
	if len(rec.reports) != 3 {
		t.Errorf("recorded %d reports, want 3", len(rec.reports))
	}
	for _, m := range sweeper.minutes {
		if m != 15 {
			t.Errorf("sweep called with activeMinutes=%d, want 15", m)
		}
	}
	for _, e := range h.events {
		if e.WorkDir != "/work" {
			t.Errorf("hook workdir = %q", e.WorkDir)
		}
	}
}

func TestWatcher_PreSweepBlockSkips(t *testing.T) {
	sweeper := &fakeSweeper{reports: []*watchdog.Report{reportOf("s1", time.Now(), result("a", true))}}
	h := &mockHooks{blockPre: "repo is dirty"}
	w := NewWatcher(sweeper, nil, time.Hour, 10).WithHooks(h, t.TempDir())

	u := w.SweepOnce(context.Background())
	if u.Skipped != "repo is dirty" {
		t.Errorf("Skipped = %q", u.Skipped)
	}
	if u.Report != nil || sweeper.Calls() != 0 {
		t.Error("blocked sweep should not run")
	}
	if got := h.Events(); !equalStrings(got, []string{"pre-sweep"}) {
		t.Errorf("events = %v", got)
	}
}

func TestWatcher_SweepFailure(t *testing.T) {
	boom := errors.New("listing failed")
	sweeper := &fakeSweeper{err: boom}
	h := &mockHooks{}
	rec := &mockRecorder{}
	w := NewWatcher(sweeper, nil, time.Hour, 10).WithHooks(h, "").WithRecorder(rec)

	u := w.SweepOnce(context.Background())
	if !errors.Is(u.Err, boom) {
		t.Errorf("Err = %v, want %v", u.Err, boom)
	}
	if got := h.Events(); !equalStrings(got, []string{"pre-sweep", "sweep-failed"}) {
		t.Errorf("events = %v", got)
	}
	if h.events[1].Metadata["error"] != "listing failed" {
		t.Errorf("metadata = %v", h.events[1].Metadata)
	}
	if len(rec.reports) != 0 {
		t.Error("failed sweep should not be recorded")
	}
}

func TestWatcher_RecorderErrorDoesNotFailSweep(t *testing.T) {
	sweeper := &fakeSweeper{reports: []*watchdog.Report{reportOf("s1", time.Now(), result("a", true))}}
	w := NewWatcher(sweeper, nil, time.Hour, 10).WithRecorder(&mockRecorder{err: errors.New("disk full")})

	u := w.SweepOnce(context.Background())
	if u.Err != nil || u.Report == nil {
		t.Errorf("update = %+v", u)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	sweeper := &fakeSweeper{reports: []*watchdog.Report{reportOf("s1", time.Now(), result("a", true))}}
	w := NewWatcher(sweeper, nil, 10*time.Millisecond, 10)

	if w.IsRunning() {
		t.Error("watcher should not be running after creation")
	}

	w.Start(context.Background())
	if !w.IsRunning() {
		t.Error("watcher should be running after Start()")
	}

	select {
	case u := <-w.Updates():
		if u.Report == nil || u.Report.SweepID != "s1" {
			t.Errorf("update = %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update published")
	}

	time.Sleep(50 * time.Millisecond)
	w.Stop()

	if w.IsRunning() {
		t.Error("watcher should not be running after Stop()")
	}
	if sweeper.Calls() < 2 {
		t.Errorf("expected ticker sweeps, got %d calls", sweeper.Calls())
	}

	// Stop closes the update channel.
	for range w.Updates() {
	}

	// Idempotent.
	w.Stop()
}

func TestWatcher_ContextCancellation(t *testing.T) {
	sweeper := &fakeSweeper{reports: []*watchdog.Report{reportOf("s1", time.Now())}}
	w := NewWatcher(sweeper, nil, time.Hour, 10)

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not exit on context cancellation")
	}
	if w.IsRunning() {
		t.Error("watcher should not be running after cancellation")
	}
}

func TestWatcher_PublishKeepsLatest(t *testing.T) {
	w := NewWatcher(&fakeSweeper{}, nil, time.Hour, 10)

	w.publish(Update{Skipped: "first"})
	w.publish(Update{Skipped: "second"})

	u := <-w.Updates()
	if u.Skipped != "second" {
		t.Errorf("got %q, want latest update", u.Skipped)
	}
	select {
	case u := <-w.Updates():
		t.Errorf("unexpected extra update %+v", u)
	default:
	}
}

func TestWatcher_FSNotifyWakesEarly(t *testing.T) {
	dir := t.TempDir()
	report := reportOf("s1", time.Now(), result("a", true))
	report.SessionsDir = dir
	sweeper := &fakeSweeper{reports: []*watchdog.Report{report}}
	w := NewWatcher(sweeper, nil, time.Hour, 10).WithFSNotify(true, time.Millisecond)

	w.Start(context.Background())
	defer w.Stop()

	<-w.Updates()

	deadline := time.Now().Add(3 * time.Second)
	for sweeper.Calls() < 2 && time.Now().Before(deadline) {
		// The directory watch is armed after the first sweep; keep writing
		// until a write lands after it.
		if err := os.WriteFile(filepath.Join(dir, "abc.jsonl"), []byte("{}\n"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if sweeper.Calls() < 2 {
		t.Errorf("log write did not trigger a sweep, calls = %d", sweeper.Calls())
	}
}
