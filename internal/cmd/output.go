package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	}
	return fmt.Errorf("invalid --format %q (want %s, %s or %s)", format, FormatText, FormatJSON, FormatYAML)
}

// render writes v as JSON or YAML, or calls text for the text format.
func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}
