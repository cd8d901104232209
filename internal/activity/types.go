// Package activity decides whether an agent session is still doing work.
//
// A session's update timestamp alone is not enough: sessions are touched
// after they finish. The package reads the last record of the session's
// append-only event log, classifies it, and combines that class with the
// age of the update timestamp into an active/idle verdict. Every failure
// to read or decode the log degrades to StatusUnknown; nothing here returns
// an error or keeps state between calls.
package activity

// Status is the classification of a session's most recent log record.
type Status string

const (
	// StatusCompleted means the last record is a normal-termination marker.
	StatusCompleted Status = "completed"

	// StatusRunning means the last record shows the session mid-turn.
	StatusRunning Status = "running"

	// StatusUnknown means there is no usable signal either way.
	StatusUnknown Status = "unknown"
)

// Record discriminants and field values with meaning to the classifier.
// Any other value is carried through as plain data.
const (
	RecordTypeMessage = "message"

	RoleAssistant  = "assistant"
	RoleUser       = "user"
	RoleToolResult = "toolResult"

	StopReasonStop    = "stop"
	StopReasonEnd     = "end"
	StopReasonToolUse = "toolUse"
)

// Record is one decoded line from a session event log.
//
// Only the fields the classifier looks at are kept. Type is the record
// discriminant; Message and StopReason are meaningful when Type is
// RecordTypeMessage.
type Record struct {
	Type       string   `json:"type"`
	Message    *Message `json:"message,omitempty"`
	StopReason string   `json:"stopReason,omitempty"`
}

// Message is the payload of a "message" record.
type Message struct {
	Role string `json:"role"`
}

// Role returns the message role, or "" when the record carries none.
func (r *Record) Role() string {
	if r == nil || r.Message == nil {
		return ""
	}
	return r.Message.Role
}

// AbsenceReason explains why no record could be produced for a session.
type AbsenceReason string

const (
	AbsenceNoRecord         AbsenceReason = "no_record"
	AbsenceMissing          AbsenceReason = "missing"
	AbsenceEmpty            AbsenceReason = "empty"
	AbsenceUnreadable       AbsenceReason = "unreadable"
	AbsenceNoParseableLine  AbsenceReason = "no_parseable_line"
	AbsenceNoSessionsDir    AbsenceReason = "no_sessions_dir"
	AbsenceNoSessionID      AbsenceReason = "no_session_id"
	AbsenceInvalidSessionID AbsenceReason = "invalid_session_id"
)

// Classification is the status assigned to a record plus a reason naming
// the branch that fired and the field values it saw.
type Classification struct {
	Status Status `json:"status"`
	Reason string `json:"reason"`
}
