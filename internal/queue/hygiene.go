package queue

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ReadyHeader is the exact heading of the section that must hold only open work.
const ReadyHeader = "## 🔥 High Priority / Ready"

var (
	nextHeaderRegex    = regexp.MustCompile(`\n##\s+`)
	lineBreakRegex     = regexp.MustCompile(`\r?\n`)
	completedLineRegex = regexp.MustCompile(`(?i)^- \[x\]`)
)

// Hygiene lists completed tasks left in the ready section.
type Hygiene struct {
	Completed []string `json:"completed" yaml:"completed"`
}

// OK reports whether the ready section holds no completed tasks.
func (h *Hygiene) OK() bool {
	return len(h.Completed) == 0
}

// CheckHygiene finds "- [x]" lines between ReadyHeader and the next "##"
// heading. It returns ErrReadyHeaderMissing when the header is absent.
func CheckHygiene(text string) (*Hygiene, error) {
	text = norm.NFC.String(text)

	start := strings.Index(text, ReadyHeader)
	if start == -1 {
		return nil, fmt.Errorf("%w: %q", ErrReadyHeaderMissing, ReadyHeader)
	}

	bodyStart := start + len(ReadyHeader)
	end := len(text)
	if loc := nextHeaderRegex.FindStringIndex(text[bodyStart:]); loc != nil {
		end = bodyStart + loc[0]
	}

	h := &Hygiene{Completed: make([]string, 0)}
	for _, line := range lineBreakRegex.Split(text[start:end], -1) {
		trimmed := strings.TrimSpace(line)
		if completedLineRegex.MatchString(trimmed) {
			h.Completed = append(h.Completed, trimmed)
		}
	}
	return h, nil
}
