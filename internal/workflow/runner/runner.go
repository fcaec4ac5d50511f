package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/thunder-muscle/internal/logbook"
	"github.com/kingrea/thunder-muscle/internal/workflow"
	"github.com/kingrea/thunder-muscle/internal/workflow/executor"
	"github.com/kingrea/thunder-muscle/internal/workflow/resolver"
)

// Observer receives run progress. Calls happen on the goroutine running the
// workflow, in order.
type Observer interface {
	RunStarted(runID string, plan resolver.Plan)
	StepStarted(index, total int, step resolver.BoundStep)
	StepFinished(index, total int, result executor.StepResult)
	RunFinished(report Report)
}

// ObserverFuncs adapts optional callbacks into an Observer.
type ObserverFuncs struct {
	OnRunStarted   func(runID string, plan resolver.Plan)
	OnStepStarted  func(index, total int, step resolver.BoundStep)
	OnStepFinished func(index, total int, result executor.StepResult)
	OnRunFinished  func(report Report)
}

func (o ObserverFuncs) RunStarted(runID string, plan resolver.Plan) {
	if o.OnRunStarted != nil {
		o.OnRunStarted(runID, plan)
	}
}

func (o ObserverFuncs) StepStarted(index, total int, step resolver.BoundStep) {
	if o.OnStepStarted != nil {
		o.OnStepStarted(index, total, step)
	}
}

func (o ObserverFuncs) StepFinished(index, total int, result executor.StepResult) {
	if o.OnStepFinished != nil {
		o.OnStepFinished(index, total, result)
	}
}

func (o ObserverFuncs) RunFinished(report Report) {
	if o.OnRunFinished != nil {
		o.OnRunFinished(report)
	}
}

// Runner validates and executes workflow documents.
type Runner struct {
	registry        resolver.Registry
	executor        *executor.Executor
	resolveOpts     resolver.Options
	continueOnError bool
	observers       []Observer
	logbook         *logbook.Logbook
	clock           func() time.Time
	newID           func() string
	logger          *slog.Logger
}

// Option customizes the runner instance.
type Option func(*Runner)

// WithExecutor replaces the default executor.
func WithExecutor(exec *executor.Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.executor = exec
		}
	}
}

// WithResolveOptions sets how documents are resolved.
func WithResolveOptions(opts resolver.Options) Option {
	return func(r *Runner) { r.resolveOpts = opts }
}

// WithContinueOnError keeps running after required failures for every
// document, as if each set continue_on_error.
func WithContinueOnError(enabled bool) Option {
	return func(r *Runner) { r.continueOnError = enabled }
}

// WithObserver registers a progress observer.
func WithObserver(obs Observer) Option {
	return func(r *Runner) {
		if obs != nil {
			r.observers = append(r.observers, obs)
		}
	}
}

// WithLogbook records run events in the run log.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(r *Runner) { r.logbook = lb }
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithRunID overrides run id generation (primarily for tests).
func WithRunID(newID func() string) Option {
	return func(r *Runner) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New wires a runner to the tool registry.
func New(registry resolver.Registry, opts ...Option) (*Runner, error) {
	if registry == nil {
		return nil, fmt.Errorf("runner: tool registry is required")
	}
	r := &Runner{
		registry: registry,
		clock:    time.Now,
		newID:    uuid.NewString,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.executor == nil {
		r.executor = executor.New(executor.WithClock(r.clock), executor.WithLogger(r.logger))
	}
	return r, nil
}

// Validate performs the dry-validate pass without invoking any tool.
func (r *Runner) Validate(doc workflow.Document) (resolver.Plan, error) {
	return resolver.Resolve(doc, r.registry, r.resolveOpts)
}

// Run validates doc and, if it is valid, executes its steps in order.
// Validation errors are returned with an empty report. A cancelled context
// stops the run before the next step; the partial report is returned with
// the context error.
func (r *Runner) Run(ctx context.Context, doc workflow.Document) (Report, error) {
	plan, err := r.Validate(doc)
	if err != nil {
		r.logbook.Error("workflow %s rejected: %v", displayName(doc), err)
		return Report{}, err
	}
	report := Report{
		RunID:    r.newID(),
		Workflow: displayName(doc),
		Started:  r.clock(),
	}
	logger := r.logger.With("run", report.RunID, "workflow", report.Workflow)
	logger.Info("workflow started", "steps", len(plan.Steps))
	r.logbook.Info("run %s: workflow %s started (%d steps)", report.RunID, report.Workflow, len(plan.Steps))
	for _, obs := range r.observers {
		obs.RunStarted(report.RunID, plan)
	}

	continueOnError := doc.ContinueOnError || r.continueOnError
	blocked := make(map[string]string)
	var abortReason string
	var runErr error
	total := len(plan.Steps)
	for idx, step := range plan.Steps {
		var result executor.StepResult
		switch {
		case abortReason != "":
			result = skipped(step, abortReason, r.clock())
		case blockedBy(step, blocked) != "":
			cause := blockedBy(step, blocked)
			result = skipped(step, "depends on "+cause, r.clock())
			blocked[step.Step.ID] = blocked[cause]
		case ctx.Err() != nil:
			runErr = ctx.Err()
			abortReason = "run cancelled"
			result = skipped(step, abortReason, r.clock())
		default:
			for _, obs := range r.observers {
				obs.StepStarted(idx, total, step)
			}
			r.logbook.Info("run %s: step %d/%d %s (%s) started", report.RunID, idx+1, total, step.Step.ID, step.Tool.Descriptor().QualifiedName())
			result = r.executor.Execute(ctx, step)
			if result.Status == executor.StatusFailure {
				blocked[step.Step.ID] = step.Step.ID
				if !step.Step.Optional && !continueOnError {
					abortReason = fmt.Sprintf("aborted after %s failed", step.Step.ID)
				}
			}
		}
		r.record(report.RunID, idx, total, result)
		report.Steps = append(report.Steps, result)
	}

	report.Status = overallStatus(report.Steps)
	report.Duration = r.clock().Sub(report.Started)
	counts := report.Counts()
	logger.Info("workflow finished", "status", report.Status, "succeeded", counts.Succeeded, "failed", counts.Failed, "skipped", counts.Skipped, "duration", report.Duration)
	r.logbook.Info("run %s: workflow %s finished %s (%d/%d steps successful)", report.RunID, report.Workflow, report.Status, counts.Succeeded, counts.Total)
	for _, obs := range r.observers {
		obs.RunFinished(report)
	}
	return report, runErr
}

func (r *Runner) record(runID string, idx, total int, result executor.StepResult) {
	switch result.Status {
	case executor.StatusSuccess:
		r.logbook.Info("run %s: step %d/%d %s succeeded in %s", runID, idx+1, total, result.StepID, result.Duration)
	case executor.StatusFailure:
		r.logbook.Error("run %s: step %d/%d %s failed: %s", runID, idx+1, total, result.StepID, result.Error)
	default:
		r.logbook.Warn("run %s: step %d/%d %s skipped: %s", runID, idx+1, total, result.StepID, result.Message)
	}
	for _, obs := range r.observers {
		obs.StepFinished(idx, total, result)
	}
}

// blockedBy returns the first dependency of step that failed or was skipped
// because of a failure.
func blockedBy(step resolver.BoundStep, blocked map[string]string) string {
	for _, dep := range step.DependsOn {
		if _, ok := blocked[dep]; ok {
			return dep
		}
	}
	return ""
}

func skipped(step resolver.BoundStep, reason string, now time.Time) executor.StepResult {
	return executor.StepResult{
		StepID:   step.Step.ID,
		Name:     step.Step.Name,
		Tool:     step.Tool.Descriptor().QualifiedName(),
		Status:   executor.StatusSkipped,
		Optional: step.Step.Optional,
		Message:  reason,
		Started:  now,
	}
}

func displayName(doc workflow.Document) string {
	if doc.Name != "" {
		return doc.Name
	}
	return "unnamed"
}
