package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agent-autonomy-kit/watchdog/internal/activity"
	"github.com/agent-autonomy-kit/watchdog/internal/sessions"
)

// DefaultConcurrency bounds parallel per-session checks.
const DefaultConcurrency = 8

// Checker lists recent sessions and judges each subagent's activity.
type Checker struct {
	lister      sessions.Lister
	kinds       *sessions.KindRegistry
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

// NewChecker creates a Checker. A nil kinds registry gets the defaults.
func NewChecker(lister sessions.Lister, kinds *sessions.KindRegistry) *Checker {
	if kinds == nil {
		kinds = sessions.NewKindRegistry()
	}
	return &Checker{
		lister:      lister,
		kinds:       kinds,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
}

// WithConcurrency sets the parallel check limit; n < 1 means one at a time.
func (c *Checker) WithConcurrency(n int) *Checker {
	if n < 1 {
		n = 1
	}
	c.concurrency = n
	return c
}

// WithClock replaces the clock sweeps read their single timestamp from.
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// WithLogger sets the logger verdicts and absences are reported to.
func (c *Checker) WithLogger(l *zap.Logger) *Checker {
	if l != nil {
		c.logger = l
	}
	return c
}

// Check judges a single session against its log in sessionsDir at now.
func (c *Checker) Check(s sessions.Session, sessionsDir string, now time.Time) SessionResult {
	result := SessionResult{
		Key:       s.Key,
		Kind:      s.Kind,
		SessionID: s.SessionID,
		UpdatedAt: s.UpdatedAt,
	}

	var info activity.Info
	if sessionsDir == "" {
		info.Classification = activity.ClassifyAbsence(activity.AbsenceNoSessionsDir)
	} else {
		info = activity.Inspect(sessionsDir, s.SessionID)
	}
	result.LastRecordStatus = info.Classification.Status
	result.LastRecordReason = info.Classification.Reason
	if info.LogPath != "" {
		path := info.LogPath
		result.JSONLPath = &path
	}

	if s.UpdatedAt != nil {
		nowMs := float64(now.UnixMilli())
		age := nowMs - *s.UpdatedAt
		result.AgeMs = &age
		result.Active = activity.IsActiveMillis(*s.UpdatedAt, nowMs, info.Classification.Status)
	}

	if info.Record == nil {
		c.logger.Debug("no usable log record",
			zap.String("key", s.Key),
			zap.String("reason", result.LastRecordReason))
	}
	c.logger.Debug("session verdict",
		zap.String("key", s.Key),
		zap.String("status", string(result.LastRecordStatus)),
		zap.Bool("active", result.Active))

	return result
}

// Sweep lists sessions updated in the last activeMinutes minutes and checks
// every subagent among them. A listing failure is the only error; problems
// with individual sessions are reported in their results. All sessions are
// judged against one timestamp taken at the start of the sweep.
func (c *Checker) Sweep(ctx context.Context, activeMinutes int) (*Report, error) {
	listing, err := c.lister.List(ctx, activeMinutes)
	if err != nil {
		c.logger.Error("listing sessions failed", zap.Error(err))
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	now := c.now()
	dir := listing.SessionsDir()
	subagents := c.kinds.Filter(listing.Sessions, sessions.KindSubagent)

	results := make([]SessionResult, len(subagents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, s := range subagents {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.Check(s, dir, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sweep interrupted: %w", err)
	}

	report := &Report{
		SweepID:          uuid.NewString(),
		CheckedAt:        now.UTC(),
		ActiveMinutes:    activeMinutes,
		SessionsDir:      dir,
		SessionsListed:   len(listing.Sessions),
		SubagentsChecked: len(results),
		ActiveSubagents:  ActiveCount(results),
		Results:          results,
	}

	c.logger.Debug("sweep complete",
		zap.String("sweep_id", report.SweepID),
		zap.Int("checked", report.SubagentsChecked),
		zap.Int("active", report.ActiveSubagents))

	return report, nil
}
