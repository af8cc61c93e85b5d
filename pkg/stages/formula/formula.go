// Package formula implements the derived-field evaluation stage.
package formula

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

// Stage recomputes derived fields until the form state stops changing.
type Stage struct {
	logger ports.Logger
}

// NewStage creates a new formula stage.
func NewStage(logger ports.Logger) *Stage {
	return &Stage{
		logger: logger.WithComponent("formula"),
	}
}

// Execute runs the fixed-point loop and returns the accumulated updates.
// Per-field failures are logged and never returned.
func (s *Stage) Execute(ctx context.Context, input pipeline.FormulaInput) (pipeline.FormulaResult, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.FormulaResult{}, err
	}

	for _, name := range NonNumeric(input.Fields, input.Values) {
		s.logger.Debug("Non-numeric value of %s counted as 0: %q", name, input.Values[name])
	}

	result := Converge(input.Fields, input.Values, func(field string, err error) {
		s.logger.Debug("Formula skipped for %s: %v", field, err)
	})
	if len(result.Cyclic) > 0 {
		s.logger.Warn("Circular formulas ignored: %s", strings.Join(result.Cyclic, ", "))
	}
	s.logger.Debug("Formulas converged after %d passes with %d updates", result.Passes, len(result.Updates))
	return result, nil
}

// FailureFunc receives the fields whose formula could not be evaluated.
type FailureFunc func(field string, err error)

// Evaluate runs a single pass over every derived field against values and
// returns the fields whose computed value differs from the current one.
// The result is nil when nothing changed.
func Evaluate(fields []pipeline.FieldSpec, values pipeline.FormState, onFailure FailureFunc) pipeline.FormState {
	return evaluate(fields, values, nil, onFailure)
}

// Converge applies Evaluate repeatedly until no field changes. Fields taking
// part in a dependency cycle are left out, which bounds the loop to one pass
// per derived field plus the final check.
func Converge(fields []pipeline.FieldSpec, values pipeline.FormState, onFailure FailureFunc) pipeline.FormulaResult {
	cyclic := FindCycles(fields)
	skip := make(map[string]bool, len(cyclic))
	for _, name := range cyclic {
		skip[name] = true
	}

	limit := 1
	for _, f := range fields {
		if f.IsDerived() {
			limit++
		}
	}

	state := values.Clone()
	result := pipeline.FormulaResult{Updates: pipeline.FormState{}, Cyclic: cyclic}
	for pass := 0; pass < limit; pass++ {
		updates := evaluate(fields, state, skip, onFailure)
		if len(updates) == 0 {
			break
		}
		result.Passes++
		for k, v := range updates {
			state[k] = v
			result.Updates[k] = v
		}
	}
	return result
}

func evaluate(fields []pipeline.FieldSpec, values pipeline.FormState, skip map[string]bool, onFailure FailureFunc) pipeline.FormState {
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
	}

	var updates pipeline.FormState
	for _, f := range fields {
		if !f.IsDerived() || skip[f.Name] {
			continue
		}
		next, err := Compute(f.Formula, declared, values)
		if err != nil {
			if onFailure != nil {
				onFailure(f.Name, err)
			}
			continue
		}
		if values[f.Name] == next {
			continue
		}
		if updates == nil {
			updates = pipeline.FormState{}
		}
		updates[f.Name] = next
	}
	return updates
}

// Compute substitutes declared field values into formula, evaluates it and
// formats the result.
func Compute(formula string, declared map[string]bool, values pipeline.FormState) (string, error) {
	expr := Substitute(formula, declared, values)
	v, err := Eval(expr)
	if err != nil {
		return "", pipeline.WrapError(pipeline.KindFormula, err, "evaluate %q", expr)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", pipeline.NewError(pipeline.KindFormula, "%q is not finite", expr)
	}
	return FormatNumber(v), nil
}

// Substitute replaces each identifier naming a declared field with the field's
// numeric value. Missing and non-numeric values count as 0. Other identifiers
// and numeric literals are copied unchanged.
func Substitute(formula string, declared map[string]bool, values pipeline.FormState) string {
	var b strings.Builder
	b.Grow(len(formula))
	for i := 0; i < len(formula); {
		c := formula[i]
		switch {
		case isDigit(c) || c == '.':
			start := i
			for i < len(formula) && (isDigit(formula[i]) || formula[i] == '.') {
				i++
			}
			b.WriteString(formula[start:i])
		case isIdentStart(c):
			start := i
			for i < len(formula) && (isIdentPart(formula[i]) || (formula[i] == '.' && i+1 < len(formula) && isIdentStart(formula[i+1]))) {
				i++
			}
			name := formula[start:i]
			if declared[name] {
				b.WriteString(numericLiteral(values[name]))
			} else {
				b.WriteString(name)
			}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

func parseNumber(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func numericLiteral(raw string) string {
	v, ok := parseNumber(raw)
	if !ok {
		return "0"
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v < 0 {
		return "(" + s + ")"
	}
	return s
}

// NonNumeric returns, sorted, the fields referenced by some formula whose
// value is set but is not a number. Substitute counts those values as 0.
func NonNumeric(fields []pipeline.FieldSpec, values pipeline.FormState) []string {
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
	}
	seen := map[string]bool{}
	var out []string
	for _, f := range fields {
		if !f.IsDerived() {
			continue
		}
		for _, ref := range References(f.Formula, declared) {
			if seen[ref] {
				continue
			}
			seen[ref] = true
			if raw := values[ref]; strings.TrimSpace(raw) != "" {
				if _, ok := parseNumber(raw); !ok {
					out = append(out, ref)
				}
			}
		}
	}
	sort.Strings(out)
	return out
}

// FormatNumber renders whole numbers without decimals and everything else
// fixed to two decimal places.
func FormatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// References returns the declared field names a formula mentions.
func References(formula string, declared map[string]bool) []string {
	seen := map[string]bool{}
	var refs []string
	for i := 0; i < len(formula); {
		c := formula[i]
		switch {
		case isDigit(c) || c == '.':
			for i < len(formula) && (isDigit(formula[i]) || formula[i] == '.') {
				i++
			}
		case isIdentStart(c):
			start := i
			for i < len(formula) && (isIdentPart(formula[i]) || (formula[i] == '.' && i+1 < len(formula) && isIdentStart(formula[i+1]))) {
				i++
			}
			name := formula[start:i]
			if declared[name] && !seen[name] {
				seen[name] = true
				refs = append(refs, name)
			}
		default:
			i++
		}
	}
	return refs
}

// FindCycles returns the sorted names of derived fields that depend on themselves,
// directly or through other derived fields.
func FindCycles(fields []pipeline.FieldSpec) []string {
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
	}
	deps := make(map[string][]string)
	for _, f := range fields {
		if f.IsDerived() {
			deps[f.Name] = References(f.Formula, declared)
		}
	}

	var cyclic []string
	for name := range deps {
		if reaches(deps, name, name) {
			cyclic = append(cyclic, name)
		}
	}
	sort.Strings(cyclic)
	return cyclic
}

// reaches reports whether target is reachable from start through at least one edge.
func reaches(deps map[string][]string, start, target string) bool {
	visited := map[string]bool{}
	stack := append([]string(nil), deps[start]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == target {
			return true
		}
		if visited[n] {
			continue
		}
		visited[n] = true
		stack = append(stack, deps[n]...)
	}
	return false
}

var _ pipeline.Stage[pipeline.FormulaInput, pipeline.FormulaResult] = (*Stage)(nil)
