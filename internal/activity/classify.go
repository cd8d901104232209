package activity

import "fmt"

// Classify maps the last record of a session log to a Status.
//
// Only the two literal stop reasons "stop" and "end" count as completion.
// Roles and stop reasons outside the known vocabulary fall through to
// StatusUnknown instead of being treated as errors.
func Classify(rec *Record) Classification {
	if rec == nil {
		return ClassifyAbsence(AbsenceNoRecord)
	}

	if rec.Type != RecordTypeMessage {
		return Classification{
			Status: StatusUnknown,
			Reason: "record_type:" + orNone(rec.Type),
		}
	}

	role := rec.Role()
	switch {
	case role == RoleAssistant && isCompletionStop(rec.StopReason):
		return Classification{
			Status: StatusCompleted,
			Reason: "assistant_stopReason:" + rec.StopReason,
		}

	case role == RoleAssistant && rec.StopReason == StopReasonToolUse:
		return Classification{
			Status: StatusRunning,
			Reason: "assistant_waiting_tool stopReason:" + rec.StopReason,
		}

	case role == RoleToolResult:
		return Classification{
			Status: StatusRunning,
			Reason: "tool_result_last stopReason:" + orNone(rec.StopReason),
		}

	default:
		return Classification{
			Status: StatusUnknown,
			Reason: fmt.Sprintf("message_role:%s stopReason:%s", orNone(role), orNone(rec.StopReason)),
		}
	}
}

// ClassifyAbsence folds every kind of missing record into StatusUnknown,
// keeping the absence reason for display.
func ClassifyAbsence(reason AbsenceReason) Classification {
	if reason == "" {
		reason = AbsenceNoRecord
	}
	return Classification{Status: StatusUnknown, Reason: string(reason)}
}

func isCompletionStop(stopReason string) bool {
	return stopReason == StopReasonStop || stopReason == StopReasonEnd
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
