package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kingrea/thunder-muscle/internal/tool"
	"github.com/kingrea/thunder-muscle/internal/workflow"
)

func stubTool(name string, category tool.Category, schema tool.Schema) tool.Tool {
	return tool.Func{Desc: tool.Descriptor{Name: name, Category: category, Source: "test", Params: schema}}
}

func testRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	reg, err := tool.NewRegistry(
		stubTool("filter", tool.CategoryTool, tool.Schema{
			"year":   {Type: tool.TypeAny},
			"format": {Type: tool.TypeString, Default: "json"},
		}),
		stubTool("analyze", tool.CategoryAnalyzer, tool.Schema{
			"pattern":  {Type: tool.TypeString, Required: true},
			"baseline": {Type: tool.TypePath},
		}),
		stubTool("plot", tool.CategoryPlotter, nil),
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func mustParse(t *testing.T, payload string) workflow.Document {
	t.Helper()
	doc, err := workflow.Parse([]byte(payload), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestResolveBindsOutputsToInputs(t *testing.T) {
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "emails.json"), []byte("[]"), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	doc := mustParse(t, `timeout: 1m
defaults: {format: csv, dpi: 300}
steps:
  - id: stepA
    tool: filter
    inputs: [emails.json]
    params: {year: 2024}
    outputs: [{id: X, path: out/x.json}]
  - id: stepB
    tool: analyze
    inputs: [X]
    params: {pattern: unsubscribe, baseline: "${stepA.X}"}
    outputs: [report.json]
    timeout: 5s
  - id: stepC
    tool: plot
    inputs: ["${stepB}"]
`)
	plan, err := Resolve(doc, testRegistry(t), Options{BaseDir: base})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("expected 3 bound steps, got %d", len(plan.Steps))
	}
	a, b, c := plan.Steps[0], plan.Steps[1], plan.Steps[2]
	produced := filepath.Join(base, "out/x.json")

	if diff := cmp.Diff([]string{filepath.Join(base, "emails.json")}, a.Inputs); diff != "" {
		t.Fatalf("stepA inputs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"year": 2024, "format": "csv"}, a.Params); diff != "" {
		t.Fatalf("stepA params (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{produced}, b.Inputs); diff != "" {
		t.Fatalf("stepB must bind to stepA's artifact (-want +got):\n%s", diff)
	}
	if b.Params["baseline"] != produced {
		t.Fatalf("expected param reference to resolve, got %v", b.Params["baseline"])
	}
	if diff := cmp.Diff([]string{"stepA"}, b.DependsOn); diff != "" {
		t.Fatalf("stepB deps (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{filepath.Join(base, "report.json")}, c.Inputs); diff != "" {
		t.Fatalf("stepC inputs (-want +got):\n%s", diff)
	}
	if c.Params["dpi"] != 300 || c.Params["format"] != "csv" {
		t.Fatalf("open schema should receive every default, got %v", c.Params)
	}
	if a.Timeout != time.Minute || b.Timeout != 5*time.Second {
		t.Fatalf("unexpected timeouts %v %v", a.Timeout, b.Timeout)
	}
	if diff := cmp.Diff([]string{"stepB", "stepC"}, plan.Dependents("stepA")); diff != "" {
		t.Fatalf("dependents (-want +got):\n%s", diff)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(error) bool
	}{
		{
			name:    "unknown tool",
			payload: "steps:\n  - {id: a, tool: missing}\n",
			check:   func(err error) bool { var e *tool.UnknownToolError; return errors.As(err, &e) },
		},
		{
			name:    "self reference",
			payload: "steps:\n  - {id: a, tool: plot, inputs: [out], outputs: [out]}\n",
			check:   func(err error) bool { var e *CyclicDependencyError; return errors.As(err, &e) },
		},
		{
			name:    "explicit self reference",
			payload: "steps:\n  - {id: a, tool: plot, inputs: [\"${a}\"], outputs: [out]}\n",
			check:   func(err error) bool { var e *CyclicDependencyError; return errors.As(err, &e) },
		},
		{
			name:    "forward reference",
			payload: "steps:\n  - {id: a, tool: plot, inputs: [later]}\n  - {id: b, tool: plot, outputs: [later]}\n",
			check:   func(err error) bool { var e *UnresolvedReferenceError; return errors.As(err, &e) },
		},
		{
			name:    "unknown step",
			payload: "steps:\n  - {id: a, tool: plot, inputs: [\"${ghost}\"]}\n",
			check:   func(err error) bool { var e *UnresolvedReferenceError; return errors.As(err, &e) },
		},
		{
			name:    "unknown output",
			payload: "steps:\n  - {id: a, tool: plot, outputs: [x]}\n  - {id: b, tool: plot, inputs: [\"${a.y}\"]}\n",
			check:   func(err error) bool { var e *UnresolvedReferenceError; return errors.As(err, &e) },
		},
		{
			name:    "missing literal input",
			payload: "steps:\n  - {id: a, tool: plot, inputs: [nowhere.json]}\n",
			check:   func(err error) bool { return errors.Is(err, ErrUnresolvedReference) },
		},
		{
			name:    "missing required param",
			payload: "steps:\n  - {id: a, tool: analyze}\n",
			check: func(err error) bool {
				var e *tool.SchemaError
				return errors.As(err, &e) && e.Step == "a" && e.Param == "pattern"
			},
		},
		{
			name:    "unknown param for closed schema",
			payload: "steps:\n  - {id: a, tool: analyze, params: {pattern: x, colour: red}}\n",
			check:   func(err error) bool { return errors.Is(err, tool.ErrSchema) },
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := mustParse(t, tc.payload)
			_, err := Resolve(doc, testRegistry(t), Options{BaseDir: t.TempDir()})
			if err == nil || !tc.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			if !IsValidationError(err) {
				t.Fatalf("expected %v to be a validation error", err)
			}
		})
	}
}

func TestResolveSharedOutputPathBindsNearestProducer(t *testing.T) {
	doc := mustParse(t, `steps:
  - id: a
    tool: plot
    outputs: [{id: first, path: out.json}]
  - id: b
    tool: plot
    inputs: [out.json]
    outputs: [{id: second, path: out.json}]
  - id: c
    tool: plot
    inputs: [out.json]
`)
	plan, err := Resolve(doc, testRegistry(t), Options{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if diff := cmp.Diff([]string{"a"}, plan.Steps[1].DependsOn); diff != "" {
		t.Fatalf("step b deps (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, plan.Steps[2].DependsOn); diff != "" {
		t.Fatalf("step c must depend on the step that last wrote out.json (-want +got):\n%s", diff)
	}
}

func TestResolveLiteralInputProducedLater(t *testing.T) {
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "assets"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	seed := filepath.Join(base, "assets", "seed.json")
	if err := os.WriteFile(seed, []byte("[]"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	doc := mustParse(t, `steps:
  - id: a
    tool: plot
    inputs: [assets/seed.json]
  - id: b
    tool: plot
    outputs: [{id: regenerated, path: assets/seed.json}]
`)
	plan, err := Resolve(doc, testRegistry(t), Options{BaseDir: base})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if diff := cmp.Diff([]string{seed}, plan.Steps[0].Inputs); diff != "" {
		t.Fatalf("step a inputs (-want +got):\n%s", diff)
	}
	if len(plan.Steps[0].DependsOn) != 0 {
		t.Fatalf("literal input must not add deps, got %v", plan.Steps[0].DependsOn)
	}
}

func TestResolveAllowMissingInputs(t *testing.T) {
	doc := mustParse(t, "steps:\n  - {id: a, tool: plot, inputs: [later.json]}\n")
	plan, err := Resolve(doc, testRegistry(t), Options{AllowMissingInputs: true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if plan.Steps[0].Inputs[0] != "later.json" {
		t.Fatalf("unexpected input %q", plan.Steps[0].Inputs[0])
	}
}

func TestIsValidationError(t *testing.T) {
	if IsValidationError(errors.New("boom")) {
		t.Fatalf("plain errors are not validation errors")
	}
	if !IsValidationError(&workflow.MalformedWorkflowError{Reason: "x"}) {
		t.Fatalf("malformed workflows are validation errors")
	}
}
