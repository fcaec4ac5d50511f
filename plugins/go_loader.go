package plugins

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/thunder-muscle/internal/tool"
)

const (
	goInvokeFuncName   = "Invoke"
	goDescribeFuncName = "Describe"
)

// InvokeFunc is the signature a Go plugin must export as Invoke.
type InvokeFunc = func(inputs []string, params map[string]any, outputs []string) (string, error)

// GoTool is an in-process tool interpreted from a Go source file.
type GoTool struct {
	desc   tool.Descriptor
	invoke InvokeFunc
	stdout *switchWriter
	stderr *switchWriter
	// the interpreter is not safe for concurrent calls
	mu sync.Mutex
}

// LoadGoTool interprets path and binds its Invoke function. Describe, when
// present, supplies the name, description and params in manifest form.
func LoadGoTool(path string, category tool.Category) (*GoTool, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("plugin: %s is empty", path)
	}
	stdout, stderr := &switchWriter{}, &switchWriter{}
	i := interp.New(interp.Options{Stdout: stdout, Stderr: stderr})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("plugin: %s: load stdlib symbols: %w", path, err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("plugin: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(goInvokeFuncName)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s must define %s([]string, map[string]any, []string) (string, error): %w", path, goInvokeFuncName, err)
	}
	invoke, ok := fnValue.Interface().(InvokeFunc)
	if !ok {
		return nil, fmt.Errorf("plugin: %s: %s has signature %s", path, goInvokeFuncName, fnValue.Type())
	}

	manifest := ToolManifest{Name: baseName(fileName(path))}
	if describe, err := i.Eval(goDescribeFuncName); err == nil {
		raw, err := invokeDescribeFunc(describe)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s: %w", path, err)
		}
		payload, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s: %w", path, err)
		}
		described, err := ParseManifestYAML(payload)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s: %w", path, err)
		}
		if len(described.Command) > 0 || described.Script != "" {
			return nil, fmt.Errorf("plugin: %s: %s must not declare command or script", path, goDescribeFuncName)
		}
		if described.Name == "" {
			described.Name = manifest.Name
		}
		manifest = described
	}
	desc := tool.Descriptor{
		Name:        manifest.Name,
		Category:    category,
		Description: manifest.Description,
		Source:      path,
		Params:      manifest.Schema(),
	}
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return &GoTool{desc: desc, invoke: invoke, stdout: stdout, stderr: stderr}, nil
}

// Descriptor implements tool.Tool.
func (g *GoTool) Descriptor() tool.Descriptor { return g.desc }

// Invoke implements tool.Tool. The interpreted call cannot be interrupted;
// on cancellation Invoke returns early and the call finishes in the background.
func (g *GoTool) Invoke(ctx context.Context, inv tool.Invocation) (tool.Outcome, error) {
	type result struct {
		message string
		err     error
	}
	done := make(chan result, 1)
	go func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.stdout.set(inv.Stdout)
		g.stderr.set(inv.Stderr)
		defer g.stdout.set(nil)
		defer g.stderr.set(nil)
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%s panicked: %v", g.desc.Name, r)}
			}
		}()
		params := inv.Params
		if params == nil {
			params = map[string]any{}
		}
		msg, err := g.invoke(append([]string(nil), inv.Inputs...), params, append([]string(nil), inv.Outputs...))
		done <- result{message: msg, err: err}
	}()
	select {
	case <-ctx.Done():
		return tool.Outcome{}, fmt.Errorf("%s: %w", g.desc.Name, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return tool.Outcome{}, res.err
		}
		return tool.Outcome{Message: strings.TrimSpace(res.message)}, nil
	}
}

func invokeDescribeFunc(value reflect.Value) (map[string]any, error) {
	if !value.IsValid() || value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goDescribeFuncName)
	}
	results := value.Call(nil)
	if len(results) != 1 {
		return nil, fmt.Errorf("%s must return map[string]any", goDescribeFuncName)
	}
	raw, ok := results[0].Interface().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must return map[string]any, got %s", goDescribeFuncName, results[0].Type())
	}
	return raw, nil
}

func fileName(path string) string {
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// switchWriter forwards to the writer of the invocation currently running.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return len(p), nil
	}
	return s.w.Write(p)
}
