package summarizer

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder

	b.WriteString("# Poster Summary\n\n")
	fmt.Fprintf(&b, "Generated at %s\n\n", s.GeneratedAt.Format("2006-01-02 15:04:05"))

	b.WriteString("## Template\n\n")
	fmt.Fprintf(&b, "- Name: %s\n", orDash(s.Template.Name))
	fmt.Fprintf(&b, "- ID: %s\n\n", orDash(s.Template.ID))

	b.WriteString("## Poster\n\n")
	b.WriteString("| Item | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| File | %s |\n", orDash(s.Poster.Filename))
	fmt.Fprintf(&b, "| Location | %s |\n", orDash(s.Poster.Location))
	fmt.Fprintf(&b, "| Size | %dx%d (%s) |\n", s.Poster.Width, s.Poster.Height, orDash(string(s.Poster.DimensionSource)))
	if s.Poster.Scale > 0 {
		fmt.Fprintf(&b, "| Pixels | %dx%d |\n", int(float64(s.Poster.Width)*s.Poster.Scale), int(float64(s.Poster.Height)*s.Poster.Scale))
	}
	fmt.Fprintf(&b, "| File size | %s |\n", formatBytes(s.Poster.FileSize))
	fmt.Fprintf(&b, "| Record | %s |\n\n", orDash(s.Poster.RecordID))

	if len(s.Fields) > 0 {
		b.WriteString("## Fields\n\n")
		b.WriteString("| Field | Value | Formula |\n|---|---|---|\n")
		for _, field := range s.Fields {
			derived := ""
			if field.Derived {
				derived = "yes"
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", field.Name, escapeCell(field.Value), derived)
		}
		b.WriteString("\n")
	}

	if s.Formulas.Passes > 0 || len(s.Formulas.Cyclic) > 0 {
		b.WriteString("## Formulas\n\n")
		fmt.Fprintf(&b, "- Passes: %d\n", s.Formulas.Passes)
		if len(s.Formulas.Cyclic) > 0 {
			fmt.Fprintf(&b, "- Not computed (cycle): %s\n", strings.Join(s.Formulas.Cyclic, ", "))
		}
	}

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// escapeCell keeps a value on one table row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", "<br>")
}

// formatBytes formats a byte count in B, KB or MB.
func formatBytes(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

var _ Formatter = (*MarkdownFormatter)(nil)
