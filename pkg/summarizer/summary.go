// Package summarizer provides report generation for rendered posters.
package summarizer

import (
	"sort"
	"time"

	"github.com/user/postergen/pkg/pipeline"
)

// Summary contains the data collected during one poster render.
type Summary struct {
	// Metadata
	GeneratedAt time.Time `json:"generated_at"`

	// Template information
	Template TemplateInfo `json:"template"`

	// Form values after formula convergence
	Fields []FieldValue `json:"fields"`

	// Formula evaluation
	Formulas FormulaInfo `json:"formulas"`

	// Exported poster details
	Poster PosterInfo `json:"poster"`
}

// TemplateInfo identifies the rendered template.
type TemplateInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FieldValue is one form field as it was exported.
type FieldValue struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Derived bool   `json:"derived,omitempty"`
}

// FormulaInfo describes the fixed-point evaluation.
type FormulaInfo struct {
	Passes int      `json:"passes"`
	Cyclic []string `json:"cyclic,omitempty"`
}

// PosterInfo contains information about the exported file.
type PosterInfo struct {
	Filename        string                   `json:"filename"`
	Location        string                   `json:"location"`
	Width           int                      `json:"width"`
	Height          int                      `json:"height"`
	DimensionSource pipeline.DimensionSource `json:"dimension_source"`
	Scale           float64                  `json:"scale"`
	FileSize        int64                    `json:"file_size"`
	RecordID        string                   `json:"record_id,omitempty"`
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithTemplate sets template information.
func (b *Builder) WithTemplate(tpl pipeline.TemplateDefinition) *Builder {
	b.summary.Template = TemplateInfo{ID: tpl.ID, Name: tpl.Name}
	return b
}

// WithFields lists values in schema order. Values for names outside the
// schema follow in name order.
func (b *Builder) WithFields(schema []pipeline.FieldSpec, values pipeline.FormState) *Builder {
	fields := make([]FieldValue, 0, len(values))
	seen := make(map[string]bool, len(schema))
	for _, f := range schema {
		seen[f.Name] = true
		fields = append(fields, FieldValue{Name: f.Name, Value: values[f.Name], Derived: f.IsDerived()})
	}
	var extra []string
	for name := range values {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		fields = append(fields, FieldValue{Name: name, Value: values[name]})
	}
	b.summary.Fields = fields
	return b
}

// WithFormulas sets formula evaluation information.
func (b *Builder) WithFormulas(passes int, cyclic []string) *Builder {
	b.summary.Formulas = FormulaInfo{Passes: passes, Cyclic: cyclic}
	return b
}

// WithPoster sets the exported poster details.
func (b *Builder) WithPoster(export pipeline.ExportResult, source pipeline.DimensionSource, scale float64) *Builder {
	b.summary.Poster = PosterInfo{
		Filename:        export.Filename,
		Location:        export.Location,
		Width:           export.Record.Width,
		Height:          export.Record.Height,
		DimensionSource: source,
		Scale:           scale,
		FileSize:        int64(len(export.Data)),
		RecordID:        export.Record.ID,
	}
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
