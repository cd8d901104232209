package queue

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// Section header patterns
	readyHeaderRegex      = regexp.MustCompile(`(?i)^##\s+(?:🔥|🔴)?\s*(?:High Priority|Ready)`)
	inProgressHeaderRegex = regexp.MustCompile(`(?i)^##\s+(?:🟡|⏳)?\s*(?:Medium Priority|In Progress)`)
	blockedHeaderRegex    = regexp.MustCompile(`(?i)^##\s+(?:🔵|🚫)?\s*Blocked`)
	doneHeaderRegex       = regexp.MustCompile(`(?i)^##\s+(?:✅|✔️|✔)?\s*Done`)

	taskRegex        = regexp.MustCompile(`^-\s*\[([ x])\]\s*(.*)$`)
	lastUpdatedRegex = regexp.MustCompile(`(?i)Last updated:\s*(.+)`)
)

// Parse reads a queue document. Only unchecked tasks in the ready,
// in-progress and blocked sections are kept. Headings that match no section
// leave the current section unchanged.
func Parse(reader io.Reader) (*Queue, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	q := &Queue{
		Ready:      make([]Task, 0),
		InProgress: make([]Task, 0),
		Blocked:    make([]Task, 0),
	}

	var current *[]Task
	var section Section

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := norm.NFC.String(scanner.Text())
		trimmed := strings.TrimSpace(line)

		if q.LastUpdated == "" {
			if m := lastUpdatedRegex.FindStringSubmatch(trimmed); m != nil {
				q.LastUpdated = strings.TrimSpace(m[1])
			}
		}

		switch {
		case readyHeaderRegex.MatchString(trimmed):
			current, section = &q.Ready, SectionReady
			continue
		case inProgressHeaderRegex.MatchString(trimmed):
			current, section = &q.InProgress, SectionInProgress
			continue
		case blockedHeaderRegex.MatchString(trimmed):
			current, section = &q.Blocked, SectionBlocked
			continue
		case doneHeaderRegex.MatchString(trimmed):
			current, section = nil, ""
			continue
		case strings.HasPrefix(trimmed, "##"):
			// Subsection; keep the current section
			continue
		}

		if current == nil || !strings.HasPrefix(trimmed, "-") {
			continue
		}
		m := taskRegex.FindStringSubmatch(trimmed)
		if m == nil || m[1] == "x" {
			continue
		}
		*current = append(*current, Task{
			Text:     m[2],
			Priority: DetectPriority(m[2]),
			Section:  section,
			Line:     lineNum,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}

	return q, nil
}

// ParseFile parses the queue at path. A missing file is an empty queue.
func ParseFile(path string) (*Queue, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Queue{Ready: []Task{}, InProgress: []Task{}, Blocked: []Task{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening queue: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// DetectPriority infers a task's priority from its text. Explicit markers
// win, then fix/bug wording, then a bold lead-in. Anything else is MEDIUM.
func DetectPriority(text string) Priority {
	upper := strings.ToUpper(text)
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(upper, s) {
				return true
			}
		}
		return false
	}

	switch {
	case has("[CRITICAL]", "🔥 CRITICAL", "URGENT:"):
		return PriorityCritical
	case has("[HIGH]", "🔴 HIGH", "HIGH PRIORITY"):
		return PriorityHigh
	case has("[MEDIUM]", "🟡 MEDIUM", "MEDIUM PRIORITY"),
		strings.Contains(upper, "⭐") && strings.Contains(upper, "MEDIUM"):
		return PriorityMedium
	case has("[LOW]", "🟡 LOW", "LOW PRIORITY"):
		return PriorityLow
	case has("FIX:", "BUG:", "BROKEN"):
		return PriorityHigh
	case strings.HasPrefix(text, "**"):
		return PriorityHigh
	}
	return PriorityMedium
}

// CheckPriorities buckets the ready tasks by priority. Work is urgent when
// any ready task is CRITICAL or HIGH.
func CheckPriorities(q *Queue) *PriorityCheck {
	check := &PriorityCheck{
		Critical: make([]Task, 0),
		High:     make([]Task, 0),
		Medium:   make([]Task, 0),
		Low:      make([]Task, 0),
	}
	for _, t := range q.Ready {
		switch t.Priority {
		case PriorityCritical:
			check.Critical = append(check.Critical, t)
		case PriorityHigh:
			check.High = append(check.High, t)
		case PriorityLow:
			check.Low = append(check.Low, t)
		default:
			check.Medium = append(check.Medium, t)
		}
	}

	switch {
	case len(check.Critical) > 0:
		check.Top = &check.Critical[0]
	case len(check.High) > 0:
		check.Top = &check.High[0]
	}
	check.Urgent = check.Top != nil
	return check
}
