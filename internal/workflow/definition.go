package workflow

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/thunder-muscle/internal/tool"
)

// Document is a parsed workflow. Steps keep their declaration order, which
// is also their execution order.
type Document struct {
	Name        string
	Description string
	// ContinueOnError keeps running after a required step fails. Dependents
	// of the failed step are still skipped.
	ContinueOnError bool
	// Timeout is the default per-step timeout; zero means none.
	Timeout  time.Duration
	Defaults map[string]any
	Steps    []Step
	// Source is the file the document was loaded from, if any.
	Source string
}

// Step binds a tool to its inputs, parameters and outputs.
type Step struct {
	ID   string
	Name string
	Tool string
	// Inputs holds literal paths and unresolved references in declared order.
	Inputs   []string
	Params   map[string]any
	Outputs  []Output
	Optional bool
	Timeout  time.Duration
}

// Output is a declared step artifact. ID is what later steps reference;
// Path is where the tool writes it.
type Output struct {
	ID   string `json:"id" yaml:"id"`
	Path string `json:"path" yaml:"path"`
}

// UnmarshalYAML accepts a bare string (used as both id and path) or a
// mapping with id and path.
func (o *Output) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		value := strings.TrimSpace(node.Value)
		*o = Output{ID: value, Path: value}
		return nil
	}
	var raw struct {
		ID   string `yaml:"id"`
		Path string `yaml:"path"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	o.ID = strings.TrimSpace(raw.ID)
	o.Path = strings.TrimSpace(raw.Path)
	if o.ID == "" {
		o.ID = o.Path
	}
	if o.Path == "" {
		o.Path = o.ID
	}
	return nil
}

// DisplayName returns the step name, falling back to its id.
func (s Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Output returns the declared output with the given id. An empty id selects
// the first output.
func (s Step) Output(id string) (Output, bool) {
	if len(s.Outputs) == 0 {
		return Output{}, false
	}
	if id == "" {
		return s.Outputs[0], true
	}
	for _, out := range s.Outputs {
		if out.ID == id {
			return out, true
		}
	}
	return Output{}, false
}

// StepIndex returns the position of the step with the given id.
func (d Document) StepIndex(id string) (int, bool) {
	for idx, step := range d.Steps {
		if step.ID == id {
			return idx, true
		}
	}
	return -1, false
}

// Producer finds the step declaring an output whose id or path equals value.
func (d Document) Producer(value string) (Ref, bool) {
	for _, step := range d.Steps {
		for _, out := range step.Outputs {
			if out.ID == value || out.Path == value {
				return Ref{Step: step.ID, Output: out.ID}, true
			}
		}
	}
	return Ref{}, false
}

// ProducerBefore finds the nearest step ahead of position before that
// declares an output whose id or path equals value.
func (d Document) ProducerBefore(value string, before int) (Ref, bool) {
	if before > len(d.Steps) {
		before = len(d.Steps)
	}
	for idx := before - 1; idx >= 0; idx-- {
		step := d.Steps[idx]
		for _, out := range step.Outputs {
			if out.ID == value || out.Path == value {
				return Ref{Step: step.ID, Output: out.ID}, true
			}
		}
	}
	return Ref{}, false
}

// InputRef classifies the input of the step at position idx. Explicit ${...}
// references are always symbolic. A bare value binds to the nearest earlier
// step declaring it as an output, falling back to the step itself so a
// self-reference stays visible; anything else is a literal path.
func (d Document) InputRef(value string, idx int) (Ref, bool) {
	if ref, ok := ParseRef(value); ok {
		return d.CanonicalRef(ref), true
	}
	if ref, ok := d.ProducerBefore(value, idx); ok {
		return ref, true
	}
	if idx >= 0 && idx < len(d.Steps) {
		for _, out := range d.Steps[idx].Outputs {
			if out.ID == value || out.Path == value {
				return Ref{Step: d.Steps[idx].ID, Output: out.ID}, true
			}
		}
	}
	return Ref{}, false
}

// CanonicalRef lets ${X} name an output id when X is not a step id.
func (d Document) CanonicalRef(ref Ref) Ref {
	if ref.Output != "" {
		return ref
	}
	if _, ok := d.StepIndex(ref.Step); ok {
		return ref
	}
	if producer, ok := d.Producer(ref.Step); ok {
		return producer
	}
	return ref
}

// ParamRefs lists the references found in string parameter values,
// including string elements of lists, keyed by parameter name.
func (d Document) ParamRefs(params map[string]any) map[string][]Ref {
	out := make(map[string][]Ref)
	for key, value := range params {
		switch v := value.(type) {
		case string:
			if ref, ok := ParseRef(v); ok {
				out[key] = append(out[key], d.CanonicalRef(ref))
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					if ref, ok := ParseRef(s); ok {
						out[key] = append(out[key], d.CanonicalRef(ref))
					}
				}
			}
		}
	}
	return out
}

// EffectiveParams merges document defaults under the step's own parameters.
// Step values always win and nothing is merged deeply. Defaults are only
// offered to parameters the schema accepts; an open schema accepts all.
func (d Document) EffectiveParams(step Step, schema tool.Schema) map[string]any {
	out := make(map[string]any, len(d.Defaults)+len(step.Params))
	for key, value := range d.Defaults {
		if schema.Accepts(key) {
			out[key] = value
		}
	}
	for key, value := range step.Params {
		out[key] = value
	}
	return out
}

// StepTimeout picks the step timeout, then the document timeout, then
// fallback.
func (d Document) StepTimeout(step Step, fallback time.Duration) time.Duration {
	switch {
	case step.Timeout > 0:
		return step.Timeout
	case d.Timeout > 0:
		return d.Timeout
	default:
		return fallback
	}
}

// Ref is a symbolic reference to another step's output.
type Ref struct {
	Step string
	// Output is empty for the step's first output.
	Output string
}

func (r Ref) String() string {
	if r.Output == "" {
		return "${" + r.Step + "}"
	}
	return "${" + r.Step + "." + r.Output + "}"
}

// ParseRef recognizes values of the form ${step} and ${step.output}. The
// reference must span the whole value.
func ParseRef(value string) (Ref, bool) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "${") || !strings.HasSuffix(trimmed, "}") {
		return Ref{}, false
	}
	body := strings.TrimSpace(trimmed[2 : len(trimmed)-1])
	if body == "" || strings.ContainsAny(body, "${}") {
		return Ref{}, false
	}
	step, output, _ := strings.Cut(body, ".")
	return Ref{Step: strings.TrimSpace(step), Output: strings.TrimSpace(output)}, true
}

func validStepID(id string) error {
	if id == "" {
		return fmt.Errorf("id is empty")
	}
	if strings.ContainsAny(id, " \t\n.${}/") {
		return fmt.Errorf("id %q must not contain whitespace or any of . $ { } /", id)
	}
	return nil
}
