package config

import (
	"path/filepath"
	"time"
)

// GetCommand returns the session-listing binary, defaulting to "openclaw".
func (c *SessionsConfig) GetCommand() string {
	if c == nil || c.Command == "" {
		return DefaultCommand
	}
	return c.Command
}

// GetActiveMinutes returns ActiveMinutes or the default (10) if unset.
func (c *SessionsConfig) GetActiveMinutes() int {
	if c == nil || c.ActiveMinutes == nil {
		return DefaultActiveMinutes
	}
	return *c.ActiveMinutes
}

// GetConcurrency returns Concurrency or the default (8) if unset.
func (c *SessionsConfig) GetConcurrency() int {
	if c == nil || c.Concurrency == nil {
		return DefaultConcurrency
	}
	return *c.Concurrency
}

// GetInterval returns Interval as a duration, defaulting to 30s.
func (c *WatchConfig) GetInterval() time.Duration {
	if c == nil {
		return DefaultInterval
	}
	return ParseDurationOrDefault(c.Interval, DefaultInterval)
}

// GetFSNotify reports whether log changes should wake the watcher.
// Defaults to true.
func (c *WatchConfig) GetFSNotify() bool {
	if c == nil || c.FSNotify == nil {
		return true
	}
	return *c.FSNotify
}

// GetPath returns the queue file path relative to workDir, or as given when
// absolute.
func (c *QueueConfig) GetPath(workDir string) string {
	p := DefaultQueuePath
	if c != nil && c.Path != "" {
		p = c.Path
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workDir, p)
}

// GetMaxAge returns MaxAge as a duration, defaulting to 24h.
func (c *QueueConfig) GetMaxAge() time.Duration {
	if c == nil {
		return DefaultQueueMaxAge
	}
	return ParseDurationOrDefault(c.MaxAge, DefaultQueueMaxAge)
}

// GetLevel returns the log level, defaulting to info.
func (c *LoggingConfig) GetLevel() string {
	if c == nil || c.Level == "" {
		return DefaultLogLevel
	}
	return c.Level
}

// GetFormat returns the log format, defaulting to text.
func (c *LoggingConfig) GetFormat() string {
	if c == nil || c.Format == "" {
		return DefaultLogFormat
	}
	return c.Format
}

// GetPath returns the history database path resolved against workDir.
func (c *HistoryConfig) GetPath(workDir string) string {
	p := DefaultHistoryPath
	if c != nil && c.Path != "" {
		p = c.Path
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workDir, p)
}

// GetRetain returns Retain or the default (500) if unset.
// Returns 0 if explicitly set to 0 (keep everything).
func (c *HistoryConfig) GetRetain() int {
	if c == nil || c.Retain == nil {
		return DefaultHistoryRetain
	}
	return *c.Retain
}

// ParseDurationOrDefault parses a Go duration string, returning fallback on error or empty input.
func ParseDurationOrDefault(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
