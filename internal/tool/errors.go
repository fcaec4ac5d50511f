package tool

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateTool = errors.New("duplicate tool")
	ErrEmptyRegistry = errors.New("empty tool category")
	ErrUnknownTool   = errors.New("unknown tool")
	ErrSchema        = errors.New("parameter schema violation")
)

// DuplicateToolError reports two candidates resolving to the same name
// within one category.
type DuplicateToolError struct {
	Category Category
	Name     string
	First    string
	Second   string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("%s: %s/%s declared by %s and %s", ErrDuplicateTool, e.Category, e.Name, e.First, e.Second)
}

func (e *DuplicateToolError) Unwrap() error { return ErrDuplicateTool }

// EmptyRegistryError is returned when a required category has no tools.
type EmptyRegistryError struct {
	Category Category
}

func (e *EmptyRegistryError) Error() string {
	return fmt.Sprintf("%s: no %s tools discovered", ErrEmptyRegistry, e.Category)
}

func (e *EmptyRegistryError) Unwrap() error { return ErrEmptyRegistry }

// UnknownToolError is returned when a name is absent from the registry.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnknownTool, e.Name)
}

func (e *UnknownToolError) Unwrap() error { return ErrUnknownTool }

// SchemaError reports a parameter value that does not satisfy the tool's schema.
type SchemaError struct {
	Step   string
	Tool   string
	Param  string
	Reason string
}

func (e *SchemaError) Error() string {
	prefix := ErrSchema.Error()
	if e.Step != "" {
		prefix = fmt.Sprintf("%s: step %s", prefix, e.Step)
	}
	return fmt.Sprintf("%s: tool %s param %s: %s", prefix, e.Tool, e.Param, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }
