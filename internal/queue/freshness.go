package queue

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultMaxAge is how long the queue may go unmodified before it is stale.
const DefaultMaxAge = 24 * time.Hour

// Freshness describes how recently the queue file was modified.
type Freshness struct {
	Path        string        `json:"path" yaml:"path"`
	ModTime     time.Time     `json:"modTime" yaml:"modTime"`
	Age         time.Duration `json:"age" yaml:"age"`
	MaxAge      time.Duration `json:"maxAge" yaml:"maxAge"`
	Stale       bool          `json:"stale" yaml:"stale"`
	LastUpdated string        `json:"lastUpdated,omitempty" yaml:"lastUpdated,omitempty"` // the file's own "Last updated:" line
}

// AgeHours returns the age in fractional hours.
func (f *Freshness) AgeHours() float64 {
	return f.Age.Hours()
}

// CheckFreshness reports whether the queue at path was modified within
// maxAge of now. A non-positive maxAge uses DefaultMaxAge.
func CheckFreshness(path string, now time.Time, maxAge time.Duration) (*Freshness, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrQueueMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("checking queue: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}

	f := &Freshness{
		Path:    path,
		ModTime: info.ModTime(),
		Age:     now.Sub(info.ModTime()),
		MaxAge:  maxAge,
	}
	f.Stale = f.Age > maxAge
	if m := lastUpdatedRegex.FindStringSubmatch(string(content)); m != nil {
		f.LastUpdated = strings.TrimSpace(m[1])
	}
	return f, nil
}
