package dimension

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"

	"github.com/user/postergen/pkg/pipeline"
)

// ContainerSelectors are the classes whose width and height define the poster
// size, in priority order.
var ContainerSelectors = []string{
	".poster-container",
	".poster",
	".poster-root",
	".template-container",
	".canvas-container",
}

var pxValue = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*px$`)

// FromCSS extracts explicit pixel dimensions from the first container class
// declaring both a width and a height. Declarations for the same class
// accumulate across rules, later ones winning.
func FromCSS(styles string) (pipeline.Dimensions, string, error) {
	sheet, err := parser.Parse(styles)
	if err != nil {
		return pipeline.Dimensions{}, "", err
	}

	found := make(map[string]*pipeline.Dimensions, len(ContainerSelectors))
	var walk func(rules []*css.Rule)
	walk = func(rules []*css.Rule) {
		for _, rule := range rules {
			if len(rule.Rules) > 0 {
				walk(rule.Rules)
			}
			for _, sel := range rule.Selectors {
				class := containerClass(sel)
				if class == "" {
					continue
				}
				d := found[class]
				if d == nil {
					d = &pipeline.Dimensions{}
					found[class] = d
				}
				for _, decl := range rule.Declarations {
					px, ok := parsePixels(decl.Value)
					if !ok {
						continue
					}
					switch strings.ToLower(strings.TrimSpace(decl.Property)) {
					case "width":
						d.Width = px
					case "height":
						d.Height = px
					}
				}
			}
		}
	}
	walk(sheet.Rules)

	for _, class := range ContainerSelectors {
		if d := found[class]; d != nil && d.Valid() {
			return *d, class, nil
		}
	}
	return pipeline.Dimensions{}, "", nil
}

// containerClass returns the recognized class targeted by a selector's last
// compound, or "" when it targets something else.
func containerClass(selector string) string {
	fields := strings.FieldsFunc(selector, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '>' || r == '+' || r == '~'
	})
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	for _, class := range ContainerSelectors {
		if last == class {
			return class
		}
	}
	return ""
}

func parsePixels(value string) (int, bool) {
	value = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(value)), "!important"))
	m := pxValue.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return int(math.Round(v)), true
}
