package formula

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/user/postergen/pkg/adapters/logger"
	"github.com/user/postergen/pkg/mocks"
	"github.com/user/postergen/pkg/pipeline"
	"github.com/user/postergen/pkg/ports"
)

func numberField(name string) pipeline.FieldSpec {
	return pipeline.FieldSpec{Name: name, Label: name, Type: pipeline.FieldNumber}
}

func derivedField(name, formula string) pipeline.FieldSpec {
	return pipeline.FieldSpec{Name: name, Label: name, Type: pipeline.FieldNumber, Formula: formula, ReadOnly: true}
}

func TestConverge_DivisionFixedPoint(t *testing.T) {
	fields := []pipeline.FieldSpec{numberField("a"), numberField("b"), derivedField("c", "a / b")}
	values := pipeline.FormState{"a": "10", "b": "4", "c": ""}

	result := Converge(fields, values, nil)
	if got := result.Updates["c"]; got != "2.50" {
		t.Fatalf("c = %q, want %q", got, "2.50")
	}
	if result.Passes != 1 {
		t.Errorf("Passes = %d, want 1", result.Passes)
	}

	// Once applied, a further pass emits nothing.
	values["c"] = result.Updates["c"]
	if again := Evaluate(fields, values, nil); again != nil {
		t.Errorf("Evaluate after convergence = %v, want nil", again)
	}
	if second := Converge(fields, values, nil); len(second.Updates) != 0 || second.Passes != 0 {
		t.Errorf("second Converge = %+v, want no updates", second)
	}
}

func TestEvaluate_RejectsUnsafeFormulas(t *testing.T) {
	tests := []struct {
		name    string
		formula string
	}{
		{"semicolon", "a; b"},
		{"backtick", "`a`"},
		{"quote", "'1' + a"},
		{"brackets", "a[0]"},
		{"assignment", "a = 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := []pipeline.FieldSpec{numberField("a"), numberField("b"), derivedField("c", tt.formula)}
			values := pipeline.FormState{"a": "1", "b": "2", "c": "previous"}

			var failed []string
			updates := Evaluate(fields, values, func(field string, err error) {
				failed = append(failed, field)
				if !pipeline.IsKind(err, pipeline.KindFormula) {
					t.Errorf("error kind = %v, want formula", err)
				}
			})
			if updates != nil {
				t.Errorf("updates = %v, want nil", updates)
			}
			if diff := cmp.Diff([]string{"c"}, failed); diff != "" {
				t.Errorf("failed fields mismatch (-want +got):\n%s", diff)
			}
			if values["c"] != "previous" {
				t.Errorf("c = %q, want unchanged", values["c"])
			}
		})
	}
}

func TestEvaluate_Results(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		values  pipeline.FormState
		want    string
		skipped bool
	}{
		{name: "whole number", formula: "a * 2", values: pipeline.FormState{"a": "10"}, want: "20"},
		{name: "two decimals", formula: "a / 3", values: pipeline.FormState{"a": "10"}, want: "3.33"},
		{name: "missing is zero", formula: "b + 1", values: pipeline.FormState{}, want: "1"},
		{name: "non-numeric is zero", formula: "a + 5", values: pipeline.FormState{"a": "abc"}, want: "5"},
		{name: "negative value", formula: "a - a * 2", values: pipeline.FormState{"a": "-3"}, want: "3"},
		{name: "function", formula: "round(a / 3)", values: pipeline.FormState{"a": "10"}, want: "3"},
		{name: "Math prefix", formula: "Math.max(a, b, 7)", values: pipeline.FormState{"a": "10", "b": "12"}, want: "12"},
		{name: "percentage", formula: "(a / b) * 100", values: pipeline.FormState{"a": "1", "b": "8"}, want: "12.50"},
		{name: "division by zero", formula: "a / 0", values: pipeline.FormState{"a": "1"}, skipped: true},
		{name: "zero over zero", formula: "b / b", values: pipeline.FormState{}, skipped: true},
		{name: "unknown function", formula: "eval(a)", values: pipeline.FormState{"a": "1"}, skipped: true},
		{name: "unknown identifier", formula: "a + window", values: pipeline.FormState{"a": "1"}, skipped: true},
		{name: "syntax error", formula: "a +", values: pipeline.FormState{"a": "1"}, skipped: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := []pipeline.FieldSpec{numberField("a"), numberField("b"), derivedField("out", tt.formula)}
			updates := Evaluate(fields, tt.values, nil)
			got, ok := updates["out"]
			if tt.skipped {
				if ok {
					t.Errorf("out = %q, want no update", got)
				}
				return
			}
			if got != tt.want {
				t.Errorf("out = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvaluate_OnlyChangedFields(t *testing.T) {
	fields := []pipeline.FieldSpec{
		numberField("a"),
		derivedField("same", "a + 1"),
		derivedField("changed", "a * 3"),
	}
	values := pipeline.FormState{"a": "2", "same": "3", "changed": "0"}

	updates := Evaluate(fields, values, nil)
	want := pipeline.FormState{"changed": "6"}
	if diff := cmp.Diff(want, updates); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
}

func TestConverge_MultiHop(t *testing.T) {
	// d depends on c, which is declared after it, so the first pass sees c empty.
	fields := []pipeline.FieldSpec{
		derivedField("d", "c * 2"),
		derivedField("c", "a + b"),
		numberField("a"),
		numberField("b"),
	}
	values := pipeline.FormState{"a": "1", "b": "2"}

	result := Converge(fields, values, nil)
	want := pipeline.FormState{"c": "3", "d": "6"}
	if diff := cmp.Diff(want, result.Updates); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
	if result.Passes != 2 {
		t.Errorf("Passes = %d, want 2", result.Passes)
	}
	if _, ok := values["c"]; ok {
		t.Error("Converge mutated the input state")
	}
}

func TestConverge_CyclesExcluded(t *testing.T) {
	fields := []pipeline.FieldSpec{
		numberField("a"),
		derivedField("x", "y + 1"),
		derivedField("y", "x + 1"),
		derivedField("self", "self + a"),
		derivedField("ok", "a * 10"),
	}
	values := pipeline.FormState{"a": "2"}

	result := Converge(fields, values, nil)
	if diff := cmp.Diff([]string{"self", "x", "y"}, result.Cyclic); diff != "" {
		t.Errorf("Cyclic mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(pipeline.FormState{"ok": "20"}, result.Updates); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
}

func TestFindCycles_DownstreamOfCycleIsNotCyclic(t *testing.T) {
	fields := []pipeline.FieldSpec{
		derivedField("x", "y"),
		derivedField("y", "x"),
		derivedField("z", "x + 1"),
	}
	if diff := cmp.Diff([]string{"x", "y"}, FindCycles(fields)); diff != "" {
		t.Errorf("FindCycles mismatch (-want +got):\n%s", diff)
	}
}

func TestSubstitute(t *testing.T) {
	declared := map[string]bool{"a": true, "total_2": true}
	values := pipeline.FormState{"a": "1.5", "total_2": "-4"}

	tests := []struct {
		in   string
		want string
	}{
		{"a + total_2", "1.5 + (-4)"},
		{"Math.round(a)", "Math.round(1.5)"},
		{"a1 + 2.5", "a1 + 2.5"},
		{"abs(a)*a", "abs(1.5)*1.5"},
	}
	for _, tt := range tests {
		if got := Substitute(tt.in, declared, values); got != tt.want {
			t.Errorf("Substitute(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"-(2 + 3)", -5},
		{"2 - -3", 5},
		{"10 / 4", 2.5},
		{"8 - 2 - 1", 5},
		{"16 / 4 / 2", 2},
		{"pow(2, 10)", 1024},
		{"min(3, 1, 2)", 1},
		{"floor(2.7) + ceil(2.1)", 5},
		{"sqrt(81)", 9},
		{".5 * 4", 2},
		{"PI", math.Pi},
	}
	for _, tt := range tests {
		got, err := Eval(tt.expr)
		if err != nil {
			t.Errorf("Eval(%q) error: %v", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []string{
		"",
		"2 +",
		"(1 + 2",
		"1 2",
		"alert(1)",
		"pow(2)",
		"1; 2",
		"process.exit",
		"max()",
	}
	for _, expr := range tests {
		if v, err := Eval(expr); err == nil {
			t.Errorf("Eval(%q) = %v, want error", expr, v)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{3, "3"},
		{-4, "-4"},
		{0, "0"},
		{2.5, "2.50"},
		{1.234, "1.23"},
		{1e6, "1000000"},
		{1e15, "1000000000000000"},
		{-2e16, "-20000000000000000"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNonNumeric(t *testing.T) {
	fields := []pipeline.FieldSpec{
		numberField("prix"),
		numberField("places"),
		numberField("note"),
		numberField("remise"),
		derivedField("total", "prix * places - remise"),
		derivedField("moyenne", "total / places"),
	}
	values := pipeline.FormState{"prix": "12,5", "places": "abc", "note": "n/a", "remise": " ", "total": "0"}

	got := NonNumeric(fields, values)
	if diff := cmp.Diff([]string{"places", "prix"}, got); diff != "" {
		t.Errorf("NonNumeric() mismatch (-want +got):\n%s", diff)
	}
}

func TestStage_Execute_LogsNonNumericInputs(t *testing.T) {
	log := mocks.NewLogger()
	input := pipeline.FormulaInput{
		Fields: []pipeline.FieldSpec{numberField("prix"), numberField("places"), derivedField("total", "prix * places")},
		Values: pipeline.FormState{"prix": "12,5", "places": "4"},
	}

	result, err := NewStage(log).Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got := result.Updates["total"]; got != "0" {
		t.Errorf("total = %q, want 0", got)
	}
	found := false
	for _, e := range log.Entries(ports.LevelDebug) {
		if strings.Contains(e.Message, `prix counted as 0: "12,5"`) {
			found = true
		}
	}
	if !found {
		t.Errorf("debug entries = %+v, want the non-numeric prix reported", log.Entries(ports.LevelDebug))
	}
}

func TestStage_Execute(t *testing.T) {
	stage := NewStage(logger.NewNoop())
	input := pipeline.FormulaInput{
		Fields: []pipeline.FieldSpec{numberField("prix"), numberField("qte"), derivedField("total", "prix * qte")},
		Values: pipeline.FormState{"prix": "2.5", "qte": "3"},
	}

	result, err := stage.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if result.Updates["total"] != "7.50" {
		t.Errorf("total = %q, want %q", result.Updates["total"], "7.50")
	}
}

func TestStage_ExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStage(logger.NewNoop()).Execute(ctx, pipeline.FormulaInput{})
	if err == nil {
		t.Error("Execute() on cancelled context should fail")
	}
}
