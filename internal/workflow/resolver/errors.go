package resolver

import (
	"errors"
	"fmt"

	"github.com/kingrea/thunder-muscle/internal/tool"
	"github.com/kingrea/thunder-muscle/internal/workflow"
)

var (
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrCyclicDependency    = errors.New("cyclic dependency")
)

// UnresolvedReferenceError reports an input or parameter that names an
// unknown or later step output, or a literal input path that does not exist.
type UnresolvedReferenceError struct {
	Step      string
	Reference string
	Reason    string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("%s: step %s: %s: %s", ErrUnresolvedReference, e.Step, e.Reference, e.Reason)
}

func (e *UnresolvedReferenceError) Unwrap() error { return ErrUnresolvedReference }

// CyclicDependencyError reports a step that consumes its own output.
type CyclicDependencyError struct {
	Step      string
	Reference string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("%s: step %s references its own output %s", ErrCyclicDependency, e.Step, e.Reference)
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// IsValidationError reports whether err belongs to the family detected
// before any tool runs.
func IsValidationError(err error) bool {
	for _, kind := range []error{
		workflow.ErrMalformed,
		tool.ErrSchema,
		tool.ErrUnknownTool,
		tool.ErrDuplicateTool,
		tool.ErrEmptyRegistry,
		ErrUnresolvedReference,
		ErrCyclicDependency,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
