package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kingrea/thunder-muscle/internal/tool"
	"github.com/kingrea/thunder-muscle/internal/workflow"
)

// Registry is the lookup surface the resolver needs.
type Registry interface {
	Lookup(ref string) (tool.Tool, error)
}

// Options tunes resolution.
type Options struct {
	// BaseDir anchors relative input and output paths.
	BaseDir string
	// AllowMissingInputs skips the existence check for literal inputs.
	AllowMissingInputs bool
	// DefaultTimeout applies when neither step nor document set one.
	DefaultTimeout time.Duration
}

// BoundStep is a step with its tool and concrete paths.
type BoundStep struct {
	Step      workflow.Step
	Tool      tool.Tool
	Inputs    []string
	Params    map[string]any
	Outputs   []workflow.Output
	DependsOn []string
	Timeout   time.Duration
}

// OutputPaths lists the materialized output paths in declared order.
func (b BoundStep) OutputPaths() []string {
	paths := make([]string, len(b.Outputs))
	for i, out := range b.Outputs {
		paths[i] = out.Path
	}
	return paths
}

// Plan is the resolved, ordered form of a document.
type Plan struct {
	Workflow workflow.Document
	Steps    []BoundStep
}

// Step returns the bound step with the given id.
func (p Plan) Step(id string) (BoundStep, bool) {
	for _, step := range p.Steps {
		if step.Step.ID == id {
			return step, true
		}
	}
	return BoundStep{}, false
}

// Dependents returns the ids of every step that depends on id directly or
// transitively, in plan order.
func (p Plan) Dependents(id string) []string {
	affected := map[string]bool{id: true}
	var out []string
	for _, step := range p.Steps {
		if affected[step.Step.ID] {
			continue
		}
		for _, dep := range step.DependsOn {
			if affected[dep] {
				affected[step.Step.ID] = true
				out = append(out, step.Step.ID)
				break
			}
		}
	}
	return out
}

// Resolve binds doc against reg. The first problem found, walking steps in
// declaration order, is returned.
func Resolve(doc workflow.Document, reg Registry, opts Options) (Plan, error) {
	if reg == nil {
		return Plan{}, fmt.Errorf("resolver: tool registry is required")
	}
	plan := Plan{Workflow: doc, Steps: make([]BoundStep, 0, len(doc.Steps))}
	for idx, step := range doc.Steps {
		bound, err := bindStep(doc, idx, step, reg, opts)
		if err != nil {
			return Plan{}, err
		}
		plan.Steps = append(plan.Steps, bound)
	}
	return plan, nil
}

func bindStep(doc workflow.Document, idx int, step workflow.Step, reg Registry, opts Options) (BoundStep, error) {
	t, err := reg.Lookup(step.Tool)
	if err != nil {
		return BoundStep{}, fmt.Errorf("step %s: %w", step.ID, err)
	}
	b := &binder{doc: doc, idx: idx, step: step, opts: opts}

	bound := BoundStep{
		Step:    step,
		Tool:    t,
		Timeout: doc.StepTimeout(step, opts.DefaultTimeout),
	}
	for _, out := range step.Outputs {
		bound.Outputs = append(bound.Outputs, workflow.Output{ID: out.ID, Path: b.path(out.Path)})
	}
	for _, in := range step.Inputs {
		path, err := b.input(in)
		if err != nil {
			return BoundStep{}, err
		}
		bound.Inputs = append(bound.Inputs, path)
	}

	schema := t.Descriptor().Params
	params := schema.WithDefaults(doc.EffectiveParams(step, schema))
	for key, value := range params {
		resolved, err := b.param(value)
		if err != nil {
			return BoundStep{}, err
		}
		params[key] = resolved
	}
	name := t.Descriptor().Name
	if err := schema.Check(name, params); err != nil {
		return BoundStep{}, stepSchemaError(err, step.ID)
	}
	if err := schema.CheckRequired(name, params); err != nil {
		return BoundStep{}, stepSchemaError(err, step.ID)
	}
	bound.Params = params
	bound.DependsOn = b.deps
	return bound, nil
}

type binder struct {
	doc  workflow.Document
	idx  int
	step workflow.Step
	opts Options
	deps []string
}

func (b *binder) path(p string) string {
	if p == "" || filepath.IsAbs(p) || b.opts.BaseDir == "" {
		return p
	}
	return filepath.Join(b.opts.BaseDir, p)
}

func (b *binder) input(value string) (string, error) {
	if ref, ok := b.doc.InputRef(value, b.idx); ok {
		return b.bind(value, ref)
	}
	path := b.path(value)
	if !b.opts.AllowMissingInputs {
		if _, err := os.Stat(path); err != nil {
			return "", &UnresolvedReferenceError{Step: b.step.ID, Reference: value, Reason: "input file does not exist"}
		}
	}
	return path, nil
}

func (b *binder) param(value any) (any, error) {
	switch v := value.(type) {
	case string:
		ref, ok := workflow.ParseRef(v)
		if !ok {
			return v, nil
		}
		return b.bind(v, b.doc.CanonicalRef(ref))
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := b.param(item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func (b *binder) bind(raw string, ref workflow.Ref) (string, error) {
	if ref.Step == b.step.ID {
		return "", &CyclicDependencyError{Step: b.step.ID, Reference: raw}
	}
	target, ok := b.doc.StepIndex(ref.Step)
	if !ok {
		return "", &UnresolvedReferenceError{Step: b.step.ID, Reference: raw, Reason: fmt.Sprintf("no step or output named %s", ref.Step)}
	}
	if target > b.idx {
		return "", &UnresolvedReferenceError{Step: b.step.ID, Reference: raw, Reason: fmt.Sprintf("step %s is declared later", ref.Step)}
	}
	producer := b.doc.Steps[target]
	out, ok := producer.Output(ref.Output)
	if !ok {
		return "", &UnresolvedReferenceError{Step: b.step.ID, Reference: raw, Reason: fmt.Sprintf("step %s declares no output %q", ref.Step, ref.Output)}
	}
	b.addDep(producer.ID)
	return b.path(out.Path), nil
}

func (b *binder) addDep(id string) {
	for _, dep := range b.deps {
		if dep == id {
			return
		}
	}
	b.deps = append(b.deps, id)
}

func stepSchemaError(err error, stepID string) error {
	if se, ok := err.(*tool.SchemaError); ok {
		clone := *se
		clone.Step = stepID
		return &clone
	}
	return err
}
