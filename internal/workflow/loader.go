package workflow

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/thunder-muscle/internal/tool"
)

// DefaultWorkflowDir is the conventional location of workflow documents.
const DefaultWorkflowDir = "workflows"

// SchemaSource supplies tool parameter schemas during parsing.
// *tool.Registry satisfies it.
type SchemaSource interface {
	Schema(ref string) (tool.Schema, bool)
}

type rawDocument struct {
	Name            string         `yaml:"name"`
	Description     string         `yaml:"description"`
	ContinueOnError bool           `yaml:"continue_on_error"`
	Timeout         string         `yaml:"timeout"`
	Defaults        map[string]any `yaml:"defaults"`
	Params          map[string]any `yaml:"params"`
	Steps           []rawStep      `yaml:"steps"`
}

type rawStep struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Tool     string         `yaml:"tool"`
	Action   string         `yaml:"action"`
	Inputs   stringList     `yaml:"inputs"`
	Params   map[string]any `yaml:"params"`
	Outputs  []Output       `yaml:"outputs"`
	Optional bool           `yaml:"optional"`
	Timeout  string         `yaml:"timeout"`
}

// stringList decodes either a single string or a sequence of strings.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = stringList{node.Value}
		return nil
	}
	var values []string
	if err := node.Decode(&values); err != nil {
		return err
	}
	*l = values
	return nil
}

// Parse decodes a workflow document. When schemas is non-nil, explicit step
// parameters and applicable defaults are checked against the schema of each
// known tool; unknown tools are left for the resolver to report.
func Parse(data []byte, schemas SchemaSource) (Document, error) {
	return parse(data, "", schemas)
}

// LoadFile reads and parses a workflow document from disk.
func LoadFile(path string, schemas SchemaSource) (Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	return parse(content, filepath.Clean(path), schemas)
}

func parse(data []byte, source string, schemas SchemaSource) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, malformed(source, "", "document is empty")
	}
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Document{}, &MalformedWorkflowError{Source: source, Reason: "decode: " + err.Error(), Err: err}
	}
	if len(raw.Steps) == 0 {
		return Document{}, malformed(source, "", "at least one step is required")
	}
	if raw.Defaults != nil && raw.Params != nil {
		return Document{}, malformed(source, "", "defaults and params are aliases; set only one")
	}
	timeout, err := parseTimeout(raw.Timeout)
	if err != nil {
		return Document{}, malformed(source, "", "timeout: %v", err)
	}
	doc := Document{
		Name:            strings.TrimSpace(raw.Name),
		Description:     strings.TrimSpace(raw.Description),
		ContinueOnError: raw.ContinueOnError,
		Timeout:         timeout,
		Defaults:        raw.Defaults,
		Source:          source,
	}
	if doc.Defaults == nil {
		doc.Defaults = raw.Params
	}
	if doc.Name == "" && source != "" {
		doc.Name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}

	seenSteps := make(map[string]struct{}, len(raw.Steps))
	seenOutputs := make(map[string]string)
	for idx, rs := range raw.Steps {
		step, err := normalizeStep(rs, idx, source)
		if err != nil {
			return Document{}, err
		}
		if _, dup := seenSteps[step.ID]; dup {
			return Document{}, malformed(source, step.ID, "duplicate step id")
		}
		seenSteps[step.ID] = struct{}{}
		for _, out := range step.Outputs {
			if owner, dup := seenOutputs[out.ID]; dup {
				return Document{}, malformed(source, step.ID, "output %q is already declared by step %s", out.ID, owner)
			}
			seenOutputs[out.ID] = step.ID
		}
		doc.Steps = append(doc.Steps, step)
	}

	if err := checkReferencedOutputs(doc); err != nil {
		return Document{}, err
	}
	if schemas != nil {
		if err := checkSchemas(doc, schemas); err != nil {
			return Document{}, err
		}
	}
	return doc, nil
}

func normalizeStep(rs rawStep, idx int, source string) (Step, error) {
	id := strings.TrimSpace(rs.ID)
	if id == "" {
		id = fmt.Sprintf("step-%d", idx+1)
	}
	if err := validStepID(id); err != nil {
		return Step{}, malformed(source, fmt.Sprintf("#%d", idx+1), "%v", err)
	}
	toolName := strings.TrimSpace(rs.Tool)
	action := strings.TrimSpace(rs.Action)
	switch {
	case toolName == "":
		toolName = action
	case action != "" && action != toolName:
		return Step{}, malformed(source, id, "tool %q and action %q disagree", toolName, action)
	}
	if toolName == "" {
		return Step{}, malformed(source, id, "tool is required")
	}
	timeout, err := parseTimeout(rs.Timeout)
	if err != nil {
		return Step{}, malformed(source, id, "timeout: %v", err)
	}
	step := Step{
		ID:       id,
		Name:     strings.TrimSpace(rs.Name),
		Tool:     toolName,
		Optional: rs.Optional,
		Timeout:  timeout,
		Params:   make(map[string]any, len(rs.Params)),
	}
	for key, value := range rs.Params {
		step.Params[key] = value
	}
	for _, in := range rs.Inputs {
		trimmed := strings.TrimSpace(in)
		if trimmed == "" {
			return Step{}, malformed(source, id, "input is empty")
		}
		step.Inputs = append(step.Inputs, trimmed)
	}
	for pos, out := range rs.Outputs {
		if out.ID == "" {
			return Step{}, malformed(source, id, "output %d has an empty id", pos+1)
		}
		step.Outputs = append(step.Outputs, out)
	}
	if err := liftLegacyParams(&step, source); err != nil {
		return Step{}, err
	}
	return step, nil
}

// liftLegacyParams moves params.input and params.output into inputs and
// outputs when those are not declared explicitly.
func liftLegacyParams(step *Step, source string) error {
	if value, ok := step.Params["input"]; ok && len(step.Inputs) == 0 {
		values, err := stringValues(value)
		if err != nil {
			return malformed(source, step.ID, "params.input: %v", err)
		}
		step.Inputs = values
		delete(step.Params, "input")
	}
	if value, ok := step.Params["output"]; ok && len(step.Outputs) == 0 {
		values, err := stringValues(value)
		if err != nil {
			return malformed(source, step.ID, "params.output: %v", err)
		}
		for _, v := range values {
			step.Outputs = append(step.Outputs, Output{ID: v, Path: v})
		}
		delete(step.Params, "output")
	}
	return nil
}

func stringValues(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("value is empty")
		}
		return []string{strings.TrimSpace(v)}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return nil, fmt.Errorf("expected a list of paths, got %v", item)
			}
			out = append(out, strings.TrimSpace(s))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a path or list of paths, got %T", value)
	}
}

// checkReferencedOutputs rejects explicit references to steps that declare
// no outputs.
func checkReferencedOutputs(doc Document) error {
	check := func(step Step, ref Ref) error {
		idx, ok := doc.StepIndex(ref.Step)
		if !ok {
			return nil
		}
		if len(doc.Steps[idx].Outputs) == 0 {
			return malformed(doc.Source, step.ID, "references %s but step %s declares no outputs", ref, ref.Step)
		}
		return nil
	}
	for idx, step := range doc.Steps {
		for _, in := range step.Inputs {
			if ref, ok := doc.InputRef(in, idx); ok {
				if err := check(step, ref); err != nil {
					return err
				}
			}
		}
		for _, refs := range doc.ParamRefs(step.Params) {
			for _, ref := range refs {
				if err := check(step, ref); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkSchemas(doc Document, schemas SchemaSource) error {
	for _, step := range doc.Steps {
		schema, ok := schemas.Schema(step.Tool)
		if !ok {
			continue
		}
		if err := schema.Check(step.Tool, literalParams(step.Params)); err != nil {
			return withStep(err, step.ID)
		}
		defaults := make(map[string]any)
		for key, value := range doc.Defaults {
			if _, explicit := step.Params[key]; !explicit && schema.Accepts(key) {
				defaults[key] = value
			}
		}
		if err := schema.Check(step.Tool, defaults); err != nil {
			return withStep(err, step.ID)
		}
	}
	return nil
}

// literalParams drops reference-valued parameters, which are typed only
// once resolved to paths.
func literalParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for key, value := range params {
		if s, ok := value.(string); ok {
			if _, isRef := ParseRef(s); isRef {
				continue
			}
		}
		out[key] = value
	}
	return out
}

func withStep(err error, stepID string) error {
	if se, ok := err.(*SchemaError); ok {
		clone := *se
		clone.Step = stepID
		return &clone
	}
	return err
}

func parseTimeout(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(trimmed); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("must not be negative")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}
