package activity

import (
	"path/filepath"
	"strings"
)

// LogExtension is the file extension of session event logs.
const LogExtension = ".jsonl"

// Info is what Inspect learned about one session log.
type Info struct {
	// LogPath is the resolved log location, empty when none could be resolved.
	LogPath string `json:"log_path,omitempty"`

	// Record is the last decodable record, nil when absent.
	Record *Record `json:"record,omitempty"`

	Classification Classification `json:"classification"`
}

// LogPath returns the conventional log location for a session.
func LogPath(sessionsDir, sessionID string) string {
	return filepath.Join(sessionsDir, sessionID+LogExtension)
}

// Inspect resolves a session's log inside sessionsDir, reads its last
// record and classifies it. Every failure is reported through the
// classification reason.
func Inspect(sessionsDir, sessionID string) Info {
	if sessionsDir == "" {
		return Info{Classification: ClassifyAbsence(AbsenceNoSessionsDir)}
	}
	if sessionID == "" {
		return Info{Classification: ClassifyAbsence(AbsenceNoSessionID)}
	}
	if !validSessionID(sessionID) {
		return Info{Classification: ClassifyAbsence(AbsenceInvalidSessionID)}
	}

	path := LogPath(sessionsDir, sessionID)
	rec, absence := ReadLastRecord(path)
	if rec == nil {
		return Info{LogPath: path, Classification: ClassifyAbsence(absence)}
	}
	return Info{LogPath: path, Record: rec, Classification: Classify(rec)}
}

// validSessionID rejects ids that would resolve outside the sessions dir.
func validSessionID(id string) bool {
	if id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.ContainsRune(id, 0)
}
