// Package queue checks the agent task queue markdown file.
//
// The queue is a markdown document with "##" sections for ready,
// in-progress, blocked and done work, each holding "- [ ]" task lines.
package queue

import "errors"

// DefaultPath is the queue location relative to the work directory.
const DefaultPath = "tasks/QUEUE.md"

var (
	// ErrQueueMissing is returned when the queue file does not exist.
	ErrQueueMissing = errors.New("queue file not found")

	// ErrReadyHeaderMissing is returned when the ready section header is absent.
	ErrReadyHeaderMissing = errors.New("ready section header not found")
)

// Section identifies which part of the queue a task was listed in.
type Section string

const (
	SectionReady      Section = "ready"
	SectionInProgress Section = "in-progress"
	SectionBlocked    Section = "blocked"
)

// Priority is a task's urgency.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Urgent reports whether work at this priority must be picked up first.
func (p Priority) Urgent() bool {
	return p == PriorityCritical || p == PriorityHigh
}

// Task is an open task line.
type Task struct {
	Text     string   `json:"text" yaml:"text"`
	Priority Priority `json:"priority" yaml:"priority"`
	Section  Section  `json:"section" yaml:"section"`
	Line     int      `json:"line" yaml:"line"` // 1-based
}

// Queue holds the open tasks of a parsed queue file. Done tasks are dropped.
type Queue struct {
	LastUpdated string `json:"lastUpdated,omitempty" yaml:"lastUpdated,omitempty"`
	Ready       []Task `json:"ready" yaml:"ready"`
	InProgress  []Task `json:"inProgress" yaml:"inProgress"`
	Blocked     []Task `json:"blocked" yaml:"blocked"`
}

// PriorityCheck is the result of checking ready tasks for urgent work.
type PriorityCheck struct {
	Critical []Task `json:"critical" yaml:"critical"`
	High     []Task `json:"high" yaml:"high"`
	Medium   []Task `json:"medium" yaml:"medium"`
	Low      []Task `json:"low" yaml:"low"`
	Urgent   bool   `json:"urgent" yaml:"urgent"`
	Top      *Task  `json:"top,omitempty" yaml:"top,omitempty"` // first critical, else first high
}

// ReadyCount returns the number of ready tasks checked.
func (c *PriorityCheck) ReadyCount() int {
	return len(c.Critical) + len(c.High) + len(c.Medium) + len(c.Low)
}
