package queue

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// Render formats queue markdown for the terminal. With color off the plain
// "notty" style is used.
func Render(markdown string, width int, color bool) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle("notty")}
	if color {
		opts = []glamour.TermRendererOption{glamour.WithAutoStyle()}
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("rendering queue: %w", err)
	}
	return out, nil
}
