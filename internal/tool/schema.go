package tool

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ParamType names the accepted value shape of a tool parameter.
type ParamType string

const (
	TypeString ParamType = "string"
	TypeInt    ParamType = "int"
	TypeFloat  ParamType = "float"
	TypeBool   ParamType = "bool"
	TypePath   ParamType = "path"
	TypeList   ParamType = "list"
	TypeAny    ParamType = "any"
)

// ParamSpec declares one accepted parameter.
type ParamSpec struct {
	Type        ParamType `json:"type" yaml:"type"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// Schema maps parameter names to their specs. A nil schema is open and
// accepts any parameter.
type Schema map[string]ParamSpec

// Open reports whether the schema accepts arbitrary parameters.
func (s Schema) Open() bool { return s == nil }

// Accepts reports whether name is a declared parameter (always true for open schemas).
func (s Schema) Accepts(name string) bool {
	if s.Open() {
		return true
	}
	_, ok := s[name]
	return ok
}

// Names returns declared parameter names in sorted order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check validates the supplied values. Unknown parameters are rejected by
// closed schemas. Missing required parameters are not reported; see
// CheckRequired.
func (s Schema) Check(toolName string, params map[string]any) error {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if s.Open() {
			continue
		}
		spec, ok := s[key]
		if !ok {
			return &SchemaError{Tool: toolName, Param: key, Reason: "unknown parameter"}
		}
		if err := spec.check(params[key]); err != nil {
			return &SchemaError{Tool: toolName, Param: key, Reason: err.Error()}
		}
	}
	return nil
}

// CheckRequired reports the first required parameter absent from params.
func (s Schema) CheckRequired(toolName string, params map[string]any) error {
	for _, name := range s.Names() {
		spec := s[name]
		if !spec.Required {
			continue
		}
		if value, ok := params[name]; !ok || value == nil {
			return &SchemaError{Tool: toolName, Param: name, Reason: "required parameter is missing"}
		}
	}
	return nil
}

// WithDefaults returns a copy of params with schema defaults filled in.
func (s Schema) WithDefaults(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+len(s))
	for name, spec := range s {
		if spec.Default != nil {
			out[name] = spec.Default
		}
	}
	for key, value := range params {
		out[key] = value
	}
	return out
}

func (s Schema) validate(toolName string) error {
	for name, spec := range s {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("tool %s: parameter name is empty", toolName)
		}
		switch spec.Type {
		case TypeString, TypeInt, TypeFloat, TypeBool, TypePath, TypeList, TypeAny:
		case "":
			return fmt.Errorf("tool %s: parameter %s has no type", toolName, name)
		default:
			return fmt.Errorf("tool %s: parameter %s has unknown type %q", toolName, name, spec.Type)
		}
		if spec.Default != nil {
			if err := spec.check(spec.Default); err != nil {
				return fmt.Errorf("tool %s: default for %s: %w", toolName, name, err)
			}
		}
	}
	return nil
}

func (spec ParamSpec) check(value any) error {
	if value == nil {
		return nil
	}
	switch spec.Type {
	case TypeAny, "":
		return nil
	case TypeString, TypePath:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected %s, got %T", spec.Type, value)
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
	case TypeInt:
		if !isInteger(value) {
			return fmt.Errorf("expected int, got %T", value)
		}
	case TypeFloat:
		if !isInteger(value) && !isFloat(value) {
			return fmt.Errorf("expected float, got %T", value)
		}
	case TypeList:
		switch value.(type) {
		case []any, []string:
		default:
			return fmt.Errorf("expected list, got %T", value)
		}
	}
	return nil
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return v == math.Trunc(v)
	}
	return false
}

func isFloat(value any) bool {
	switch value.(type) {
	case float32, float64:
		return true
	}
	return false
}
