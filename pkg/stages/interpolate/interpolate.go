// Package interpolate binds form values into template markup.
package interpolate

import (
	"context"
	"regexp"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// placeholder matches {{ name }} with optional whitespace around the name.
var placeholder = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Stage renders the preview and export markup.
type Stage struct {
	logger ports.Logger
}

// NewStage creates a new interpolation stage.
func NewStage(logger ports.Logger) *Stage {
	return &Stage{
		logger: logger.WithComponent("interpolate"),
	}
}

// Execute interpolates input.Values into input.HTML.
func (s *Stage) Execute(ctx context.Context, input pipeline.InterpolateInput) (pipeline.InterpolateResult, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.InterpolateResult{}, err
	}

	html := Interpolate(input.HTML, input.Values)
	if missing := Unbound(html); len(missing) > 0 {
		s.logger.Debug("Unbound placeholders left in markup: %v", missing)
	}
	return pipeline.InterpolateResult{HTML: html}, nil
}

// Interpolate replaces every placeholder whose name is a key of values with
// that value. Placeholders without a matching key stay as literal text.
// Substitution happens in a single pass, so placeholders inside values are
// never expanded.
func Interpolate(html string, values pipeline.FormState) string {
	if len(values) == 0 {
		return html
	}
	return placeholder.ReplaceAllStringFunc(html, func(token string) string {
		name := placeholder.FindStringSubmatch(token)[1]
		if v, ok := values[name]; ok {
			return v
		}
		return token
	})
}

// Unbound returns the distinct placeholder names still present in html, in
// order of first appearance.
func Unbound(html string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(html, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

var _ pipeline.Stage[pipeline.InterpolateInput, pipeline.InterpolateResult] = (*Stage)(nil)
