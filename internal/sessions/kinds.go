package sessions

import (
	"regexp"
	"sync"
)

// Kind is the role a session plays, inferred from its key.
type Kind string

const (
	// KindSubagent is a session spawned by another session to do delegated work.
	KindSubagent Kind = "subagent"

	// KindCron is a session started by a scheduled job.
	KindCron Kind = "cron"
)

// KindPattern maps a compiled regex over session keys to a kind.
type KindPattern struct {
	Regex *regexp.Regexp
	Kind  Kind
	Name  string // Human-readable pattern name for debugging
}

// KindRegistry manages the key patterns used to infer session kinds.
// It is thread-safe and supports registering extra patterns from config.
type KindRegistry struct {
	mu       sync.RWMutex
	patterns []KindPattern
}

// NewKindRegistry creates a KindRegistry with the default patterns.
func NewKindRegistry() *KindRegistry {
	kr := &KindRegistry{
		patterns: make([]KindPattern, 0),
	}
	kr.registerDefaults()
	return kr
}

func (kr *KindRegistry) registerDefaults() {
	defaults := []struct {
		name    string
		pattern string
		kind    Kind
	}{
		{"subagent_segment", `:subagent:`, KindSubagent},
		{"cron_segment", `:cron:`, KindCron},
	}

	for _, d := range defaults {
		_ = kr.Register(d.name, d.pattern, d.kind)
	}
}

// Register adds a pattern. Patterns are tried in registration order.
// Returns an error if the regex is invalid.
func (kr *KindRegistry) Register(name, pattern string, kind Kind) error {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}

	kr.mu.Lock()
	defer kr.mu.Unlock()

	kr.patterns = append(kr.patterns, KindPattern{
		Regex: regex,
		Kind:  kind,
		Name:  name,
	})
	return nil
}

// Detect returns the kind and pattern name of the first pattern matching
// key, or empty values if none match.
func (kr *KindRegistry) Detect(key string) (Kind, string) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()

	for _, p := range kr.patterns {
		if p.Regex.MatchString(key) {
			return p.Kind, p.Name
		}
	}
	return "", ""
}

// Filter returns the sessions whose key is detected as kind, in input order.
func (kr *KindRegistry) Filter(list []Session, kind Kind) []Session {
	out := make([]Session, 0, len(list))
	for _, s := range list {
		if k, _ := kr.Detect(s.Key); k == kind {
			out = append(out, s)
		}
	}
	return out
}

// Clear removes all patterns.
func (kr *KindRegistry) Clear() {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	kr.patterns = make([]KindPattern, 0)
}

// Count returns the number of registered patterns.
func (kr *KindRegistry) Count() int {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return len(kr.patterns)
}
