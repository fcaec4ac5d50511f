package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/thunder-muscle/internal/config"
	"github.com/kingrea/thunder-muscle/internal/report"
	"github.com/kingrea/thunder-muscle/internal/tool"
	"github.com/kingrea/thunder-muscle/internal/workflow"
	"github.com/kingrea/thunder-muscle/internal/workflow/executor"
	"github.com/kingrea/thunder-muscle/internal/workflow/resolver"
)

// keyValueFlag collects repeatable key=value overrides. Values are decoded
// as YAML scalars so --set limit=5 yields an int and --set has_body=true a bool.
type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	var pairs []string
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("override key is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = val
	return nil
}

func (kv *keyValueFlag) Type() string { return "key=value" }

// Params decodes every value as a YAML scalar.
func (kv keyValueFlag) Params() (map[string]any, error) {
	params := make(map[string]any, len(kv))
	for key, raw := range kv {
		var value any
		if strings.TrimSpace(raw) == "" {
			params[key] = ""
			continue
		}
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("--set %s: %w", key, err)
		}
		params[key] = value
	}
	return params, nil
}

// execRequest is a single ad-hoc tool invocation outside a workflow.
type execRequest struct {
	Tool    string
	Inputs  []string
	Outputs []string
	Params  map[string]any
	Timeout time.Duration
}

// execTool binds req against reg, validates its params and runs it with the
// same executor a workflow step would use.
func execTool(ctx context.Context, cfg *config.Config, reg *tool.Registry, req execRequest, stdout, stderr io.Writer) (executor.StepResult, error) {
	t, err := reg.Lookup(req.Tool)
	if err != nil {
		return executor.StepResult{}, err
	}
	desc := t.Descriptor()
	params := desc.Params.WithDefaults(req.Params)
	if err := desc.Params.Check(desc.QualifiedName(), params); err != nil {
		return executor.StepResult{}, err
	}
	if err := desc.Params.CheckRequired(desc.QualifiedName(), params); err != nil {
		return executor.StepResult{}, err
	}
	outputs := make([]workflow.Output, len(req.Outputs))
	for i, path := range req.Outputs {
		outputs[i] = workflow.Output{ID: fmt.Sprintf("out%d", i+1), Path: path}
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = cfg.Workflows.StepTimeout
	}
	step := resolver.BoundStep{
		Step:    workflow.Step{ID: desc.Name, Tool: req.Tool},
		Tool:    t,
		Inputs:  req.Inputs,
		Params:  params,
		Outputs: outputs,
		Timeout: timeout,
	}
	exec := executor.New(
		executor.WithDir(cfg.ProjectDir),
		executor.WithOutput(stdout, stderr),
		executor.WithLogger(logger("exec")),
	)
	return exec.Execute(ctx, step), nil
}

// printExecResult prints the details of a failed ad-hoc invocation.
func printExecResult(w io.Writer, result executor.StepResult) error {
	if result.Succeeded() {
		return nil
	}
	for _, line := range report.StepDetails(result) {
		fmt.Fprintln(w, line)
	}
	return errRunFailed
}
