package workflow

import (
	"errors"
	"fmt"

	"github.com/kingrea/thunder-muscle/internal/tool"
)

// ErrMalformed classifies MalformedWorkflowError values for errors.Is.
var ErrMalformed = errors.New("malformed workflow")

// MalformedWorkflowError reports a document that cannot describe a runnable
// pipeline.
type MalformedWorkflowError struct {
	Source string
	// Step is empty for document-level problems.
	Step   string
	Reason string
	Err    error
}

func (e *MalformedWorkflowError) Error() string {
	prefix := "workflow"
	if e.Source != "" {
		prefix += " " + e.Source
	}
	if e.Step != "" {
		return fmt.Sprintf("%s: step %s: %s", prefix, e.Step, e.Reason)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Reason)
}

func (e *MalformedWorkflowError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformed, e.Err}
	}
	return []error{ErrMalformed}
}

// SchemaError reports a parameter value rejected by a tool schema.
type SchemaError = tool.SchemaError

func malformed(source, step, format string, args ...any) *MalformedWorkflowError {
	return &MalformedWorkflowError{Source: source, Step: step, Reason: fmt.Sprintf(format, args...)}
}
