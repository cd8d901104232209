// Package sessions enumerates recently updated agent sessions.
//
// The session runtime exposes its store through a listing command that
// prints a JSON object naming the store file and the recent sessions. This
// package decodes that listing leniently: malformed entries are dropped,
// never fatal.
package sessions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
)

// Session is one entry of a session listing.
type Session struct {
	Key       string   `json:"key"`
	Kind      string   `json:"kind,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
	UpdatedAt *float64 `json:"updatedAt"` // epoch milliseconds, nil when absent
}

// Listing is a decoded session listing.
type Listing struct {
	// Path is the session store file; its directory holds the session logs.
	Path     string    `json:"path,omitempty"`
	Sessions []Session `json:"sessions"`
}

// SessionsDir returns the directory holding per-session logs, or "" when the
// listing did not name a store path.
func (l *Listing) SessionsDir() string {
	if l == nil || l.Path == "" {
		return ""
	}
	return filepath.Dir(l.Path)
}

// ParseListing decodes listing JSON. Only a top-level syntax error or a
// non-object document is an error. A non-array sessions field yields no
// sessions, entries whose key is not a string are dropped, and a
// non-numeric updatedAt is treated as absent.
func ParseListing(data []byte) (*Listing, error) {
	var raw struct {
		Path     json.RawMessage `json:"path"`
		Sessions json.RawMessage `json:"sessions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing session listing: %w", err)
	}

	listing := &Listing{Path: stringField(raw.Path)}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw.Sessions, &entries); err != nil {
		return listing, nil
	}

	listing.Sessions = make([]Session, 0, len(entries))
	for _, entry := range entries {
		s, ok := decodeSession(entry)
		if !ok {
			continue
		}
		listing.Sessions = append(listing.Sessions, s)
	}
	return listing, nil
}

func decodeSession(entry json.RawMessage) (Session, bool) {
	var raw struct {
		Key       json.RawMessage `json:"key"`
		Kind      json.RawMessage `json:"kind"`
		SessionID json.RawMessage `json:"sessionId"`
		UpdatedAt json.RawMessage `json:"updatedAt"`
	}
	if err := json.Unmarshal(entry, &raw); err != nil {
		return Session{}, false
	}

	var key string
	if err := json.Unmarshal(raw.Key, &key); err != nil {
		return Session{}, false
	}

	s := Session{
		Key:       key,
		Kind:      stringField(raw.Kind),
		SessionID: stringField(raw.SessionID),
	}
	var updated float64
	if !isNull(raw.UpdatedAt) && json.Unmarshal(raw.UpdatedAt, &updated) == nil {
		s.UpdatedAt = &updated
	}
	return s, true
}

// isNull reports whether raw is the JSON literal null, which decodes into a
// number without error.
func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// stringField returns the JSON string in raw, or "" for any other value.
func stringField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
