package summarizer

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

// Formatter defines the interface for formatting a Summary.
type Formatter interface {
	// Format converts a Summary to a formatted string.
	Format(summary *Summary) string
}

// FormatFunc is a function adapter for the Formatter interface.
type FormatFunc func(summary *Summary) string

// Format implements the Formatter interface.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// JSONFormatter renders a Summary as indented JSON.
var JSONFormatter Formatter = FormatFunc(func(summary *Summary) string {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return ""
	}
	return string(data) + "\n"
})

// FormatterFor picks the formatter matching the report path: JSON for ".json",
// Markdown otherwise.
func FormatterFor(path string) Formatter {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSONFormatter
	}
	return NewMarkdownFormatter()
}
