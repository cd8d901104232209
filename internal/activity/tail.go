package activity

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
)

// TailWindow is the most bytes read from the end of a log. Only the last
// record matters, so logs that grow without bound cost the same to check.
// When the log is longer than the window, the window's first byte only marks
// whether the next byte starts a line.
const TailWindow int64 = 128 * 1024

// ReadLastRecord returns the chronologically last record in the log at path
// that decodes as a JSON object. When there is none it returns nil and the
// reason. It never reads more than TailWindow bytes of the file.
func ReadLastRecord(path string) (*Record, AbsenceReason) {
	return readLastRecord(path, TailWindow)
}

func readLastRecord(path string, window int64) (*Record, AbsenceReason) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, AbsenceMissing
		}
		return nil, AbsenceUnreadable
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return nil, AbsenceUnreadable
	}
	size := info.Size()
	if size == 0 {
		return nil, AbsenceEmpty
	}

	start := int64(0)
	if size > window {
		start = size - window
	}

	buf := make([]byte, size-start)
	n, err := f.ReadAt(buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, AbsenceUnreadable
	}
	buf = buf[:n]

	// Past the start of the file, a record is whole only if the byte before
	// it is a newline.
	if start > 0 && len(buf) > 0 {
		lead := buf[0]
		buf = buf[1:]
		if lead != '\n' {
			if i := bytes.IndexByte(buf, '\n'); i >= 0 {
				buf = buf[i+1:]
			} else {
				buf = nil
			}
		}
	}

	if rec := lastRecord(buf); rec != nil {
		return rec, ""
	}
	return nil, AbsenceNoParseableLine
}

// lastRecord scans lines from the end and returns the first that decodes.
func lastRecord(window []byte) *Record {
	lines := bytes.Split(window, []byte{'\n'})
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 {
			continue
		}
		if rec, ok := decodeRecord(line); ok {
			return rec
		}
	}
	return nil
}

// decodeRecord decodes one log line. Only JSON objects are records; field
// values of an unexpected JSON type are treated as absent rather than
// failing the line.
func decodeRecord(line []byte) (*Record, bool) {
	if len(line) == 0 || line[0] != '{' {
		return nil, false
	}

	var raw struct {
		Type       json.RawMessage `json:"type"`
		Message    json.RawMessage `json:"message"`
		StopReason json.RawMessage `json:"stopReason"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, false
	}

	rec := &Record{
		Type:       rawString(raw.Type),
		StopReason: rawString(raw.StopReason),
	}

	if len(raw.Message) > 0 && raw.Message[0] == '{' {
		var msg struct {
			Role json.RawMessage `json:"role"`
		}
		if err := json.Unmarshal(raw.Message, &msg); err == nil {
			rec.Message = &Message{Role: rawString(msg.Role)}
		}
	}

	return rec, true
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || raw[0] != '"' {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
