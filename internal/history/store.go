// Package history keeps past sweep reports in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agent-autonomy-kit/watchdog/internal/activity"
	"github.com/agent-autonomy-kit/watchdog/internal/watchdog"
)

const schema = `
CREATE TABLE IF NOT EXISTS sweeps (
	seq               INTEGER PRIMARY KEY AUTOINCREMENT,
	id                TEXT NOT NULL UNIQUE,
	checked_at        INTEGER NOT NULL,
	active_minutes    INTEGER NOT NULL,
	sessions_dir      TEXT NOT NULL DEFAULT '',
	sessions_listed   INTEGER NOT NULL,
	subagents_checked INTEGER NOT NULL,
	active_subagents  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	sweep_id   TEXT NOT NULL,
	position   INTEGER NOT NULL,
	key        TEXT NOT NULL,
	kind       TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL DEFAULT '',
	updated_at REAL,
	age_ms     REAL,
	status     TEXT NOT NULL,
	reason     TEXT NOT NULL,
	jsonl_path TEXT,
	active     INTEGER NOT NULL,
	PRIMARY KEY (sweep_id, position)
);
CREATE INDEX IF NOT EXISTS results_key ON results (key);
`

// Sweep summarises one recorded sweep.
type Sweep struct {
	SweepID          string    `json:"sweepId" yaml:"sweepId"`
	CheckedAt        time.Time `json:"checkedAt" yaml:"checkedAt"`
	ActiveMinutes    int       `json:"activeMinutes" yaml:"activeMinutes"`
	SessionsDir      string    `json:"sessionsDir,omitempty" yaml:"sessionsDir,omitempty"`
	SessionsListed   int       `json:"sessionsListed" yaml:"sessionsListed"`
	SubagentsChecked int       `json:"subagentsChecked" yaml:"subagentsChecked"`
	ActiveSubagents  int       `json:"activeSubagents" yaml:"activeSubagents"`
}

// Entry is one session's recorded verdict in a sweep.
type Entry struct {
	SweepID                string    `json:"sweepId" yaml:"sweepId"`
	CheckedAt              time.Time `json:"checkedAt" yaml:"checkedAt"`
	watchdog.SessionResult `yaml:",inline"`
}

// Store is a sweep history database.
type Store struct {
	db     *sql.DB
	path   string
	retain int
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialising history schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// WithRetain makes Record keep only the newest n sweeps. Zero keeps all.
func (s *Store) WithRetain(n int) *Store {
	s.retain = n
	return s
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record stores a sweep report and its results.
func (s *Store) Record(ctx context.Context, report *watchdog.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recording sweep: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sweeps (id, checked_at, active_minutes, sessions_dir, sessions_listed, subagents_checked, active_subagents)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.SweepID, report.CheckedAt.UnixMilli(), report.ActiveMinutes, report.SessionsDir,
		report.SessionsListed, report.SubagentsChecked, report.ActiveSubagents)
	if err != nil {
		return fmt.Errorf("recording sweep %s: %w", report.SweepID, err)
	}

	for i, r := range report.Results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO results (sweep_id, position, key, kind, session_id, updated_at, age_ms, status, reason, jsonl_path, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.SweepID, i, r.Key, r.Kind, r.SessionID, nullFloat(r.UpdatedAt), nullFloat(r.AgeMs),
			string(r.LastRecordStatus), r.LastRecordReason, nullString(r.JSONLPath), r.Active)
		if err != nil {
			return fmt.Errorf("recording result %s: %w", r.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("recording sweep: %w", err)
	}

	if s.retain > 0 {
		if _, err := s.Prune(ctx, s.retain); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns up to limit sweeps, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Sweep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, checked_at, active_minutes, sessions_dir, sessions_listed, subagents_checked, active_subagents
		FROM sweeps
		ORDER BY seq DESC
		LIMIT ?`, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("querying sweeps: %w", err)
	}
	defer rows.Close()

	sweeps := make([]Sweep, 0)
	for rows.Next() {
		var sw Sweep
		var checkedAt int64
		if err := rows.Scan(&sw.SweepID, &checkedAt, &sw.ActiveMinutes, &sw.SessionsDir,
			&sw.SessionsListed, &sw.SubagentsChecked, &sw.ActiveSubagents); err != nil {
			return nil, fmt.Errorf("reading sweep: %w", err)
		}
		sw.CheckedAt = time.UnixMilli(checkedAt).UTC()
		sweeps = append(sweeps, sw)
	}
	return sweeps, rows.Err()
}

// SessionHistory returns up to limit recorded verdicts for a session key,
// newest first.
func (s *Store) SessionHistory(ctx context.Context, key string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.sweep_id, s.checked_at, r.key, r.kind, r.session_id, r.updated_at, r.age_ms,
		       r.status, r.reason, r.jsonl_path, r.active
		FROM results r
		JOIN sweeps s ON s.id = r.sweep_id
		WHERE r.key = ?
		ORDER BY s.seq DESC
		LIMIT ?`, key, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("querying session history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e         Entry
			checkedAt int64
			updatedAt sql.NullFloat64
			ageMs     sql.NullFloat64
			status    string
			jsonlPath sql.NullString
		)
		if err := rows.Scan(&e.SweepID, &checkedAt, &e.Key, &e.Kind, &e.SessionID, &updatedAt, &ageMs,
			&status, &e.LastRecordReason, &jsonlPath, &e.Active); err != nil {
			return nil, fmt.Errorf("reading session history: %w", err)
		}
		e.CheckedAt = time.UnixMilli(checkedAt).UTC()
		e.LastRecordStatus = activity.Status(status)
		if updatedAt.Valid {
			e.UpdatedAt = &updatedAt.Float64
		}
		if ageMs.Valid {
			e.AgeMs = &ageMs.Float64
		}
		if jsonlPath.Valid {
			e.JSONLPath = &jsonlPath.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes all but the newest keep sweeps and returns how many were
// removed. A non-positive keep removes nothing.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	defer tx.Rollback()

	const stale = `SELECT id FROM sweeps WHERE seq NOT IN (SELECT seq FROM sweeps ORDER BY seq DESC LIMIT ?)`
	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE sweep_id IN (`+stale+`)`, keep); err != nil {
		return 0, fmt.Errorf("pruning results: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sweeps WHERE seq NOT IN (SELECT seq FROM sweeps ORDER BY seq DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning sweeps: %w", err)
	}
	removed, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	return removed, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
