// Package executor runs a single bound workflow step and reports its result.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/thunder-muscle/internal/tool"
	"github.com/kingrea/thunder-muscle/internal/workflow/resolver"
)

// Status is the terminal state of a step.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// diagnosticLines bounds how much stderr is kept as a failure diagnostic.
const diagnosticLines = 20

// StepResult describes one step of a run.
type StepResult struct {
	StepID    string   `json:"step_id" yaml:"step_id"`
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	Tool      string   `json:"tool" yaml:"tool"`
	Status    Status   `json:"status" yaml:"status"`
	Optional  bool     `json:"optional,omitempty" yaml:"optional,omitempty"`
	Artifacts []string `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Message   string   `json:"message,omitempty" yaml:"message,omitempty"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	// Diagnostic is the captured tail of the tool's stderr, when any.
	Diagnostic string        `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`
	Started    time.Time     `json:"started" yaml:"started"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Err        error         `json:"-" yaml:"-"`
}

// Succeeded reports whether the step finished successfully.
func (r StepResult) Succeeded() bool { return r.Status == StatusSuccess }

// StepExecutionError wraps a tool failure with its captured diagnostic.
type StepExecutionError struct {
	StepID     string
	Tool       string
	Diagnostic string
	Err        error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s: tool %s: %v", e.StepID, e.Tool, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// ErrMissingOutput marks a tool that returned without writing a declared output.
var ErrMissingOutput = errors.New("declared output was not produced")

// Executor invokes tools synchronously, one step at a time.
type Executor struct {
	stdout io.Writer
	stderr io.Writer
	dir    string
	clock  func() time.Time
	logger *slog.Logger
}

// Option customizes an Executor.
type Option func(*Executor)

// WithOutput sets where tool stdout and stderr are streamed.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Executor) {
		if stdout != nil {
			e.stdout = stdout
		}
		if stderr != nil {
			e.stderr = stderr
		}
	}
}

// WithDir sets the working directory for command tools.
func WithDir(dir string) Option {
	return func(e *Executor) { e.dir = dir }
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New builds an executor. Tool output is discarded unless WithOutput is set.
func New(opts ...Option) *Executor {
	e := &Executor{
		stdout: io.Discard,
		stderr: io.Discard,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs step and waits for it to finish. Failures are reported in
// the result, never as a panic or a separate error.
func (e *Executor) Execute(ctx context.Context, step resolver.BoundStep) StepResult {
	desc := step.Tool.Descriptor()
	started := e.clock()
	result := StepResult{
		StepID:   step.Step.ID,
		Name:     step.Step.Name,
		Tool:     desc.QualifiedName(),
		Optional: step.Step.Optional,
		Started:  started,
	}
	finish := func(err error, diagnostic string) StepResult {
		result.Duration = e.clock().Sub(started)
		if err == nil {
			result.Status = StatusSuccess
			e.logger.Info("step succeeded", "step", result.StepID, "tool", result.Tool, "duration", result.Duration)
			return result
		}
		execErr := &StepExecutionError{StepID: result.StepID, Tool: result.Tool, Diagnostic: diagnostic, Err: err}
		result.Status = StatusFailure
		result.Err = execErr
		result.Error = err.Error()
		result.Diagnostic = diagnostic
		e.logger.Warn("step failed", "step", result.StepID, "tool", result.Tool, "error", err)
		return result
	}

	outputs := step.OutputPaths()
	for _, path := range outputs {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return finish(fmt.Errorf("create output directory: %w", err), "")
			}
		}
	}

	runCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}
	diag := &lineTail{limit: diagnosticLines}
	e.logger.Debug("invoking tool", "step", result.StepID, "tool", result.Tool, "inputs", step.Inputs, "outputs", outputs)
	outcome, err := step.Tool.Invoke(runCtx, tool.Invocation{
		StepID:  step.Step.ID,
		Inputs:  append([]string(nil), step.Inputs...),
		Params:  cloneParams(step.Params),
		Outputs: outputs,
		Dir:     e.dir,
		Stdout:  e.stdout,
		Stderr:  io.MultiWriter(e.stderr, diag),
	})
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", step.Timeout, err)
		}
		return finish(err, diag.String())
	}
	for _, path := range outputs {
		if _, statErr := os.Stat(path); statErr != nil {
			return finish(fmt.Errorf("%w: %s", ErrMissingOutput, path), "")
		}
	}
	result.Message = outcome.Message
	result.Artifacts = outcome.Outputs
	if len(result.Artifacts) == 0 {
		result.Artifacts = outputs
	}
	return finish(nil, "")
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for key, value := range params {
		out[key] = value
	}
	return out
}

// lineTail keeps the last limit lines written to it.
type lineTail struct {
	mu      sync.Mutex
	limit   int
	lines   []string
	partial strings.Builder
}

func (t *lineTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range p {
		if b == '\n' {
			t.push(t.partial.String())
			t.partial.Reset()
			continue
		}
		t.partial.WriteByte(b)
	}
	return len(p), nil
}

func (t *lineTail) push(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := t.lines
	if rest := strings.TrimSpace(t.partial.String()); rest != "" {
		lines = append(append([]string(nil), lines...), rest)
	}
	return strings.Join(lines, "\n")
}
