package plugins

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/thunder-muscle/internal/tool"
)

const goPluginSource = `package main

import (
	"fmt"
	"os"
	"strings"
)

func Describe() map[string]any {
	return map[string]any{
		"name":        "shout",
		"description": "Upper-cases the input file",
		"params": map[string]any{
			"suffix": map[string]any{"type": "string", "default": "!"},
		},
	}
}

func Invoke(inputs []string, params map[string]any, outputs []string) (string, error) {
	data, err := os.ReadFile(inputs[0])
	if err != nil {
		return "", err
	}
	suffix, _ := params["suffix"].(string)
	fmt.Println("shouting")
	out := strings.ToUpper(string(data)) + suffix
	if err := os.WriteFile(outputs[0], []byte(out), 0644); err != nil {
		return "", err
	}
	return "wrote " + outputs[0], nil
}
`

func writeFile(t *testing.T, path, body string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadGoTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shout.go")
	writeFile(t, path, goPluginSource, 0o644)
	gt, err := LoadGoTool(path, tool.CategoryTool)
	if err != nil {
		t.Fatalf("load go tool: %v", err)
	}
	desc := gt.Descriptor()
	if desc.Name != "shout" || desc.Params["suffix"].Default != "!" {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}

	input := filepath.Join(dir, "in.txt")
	output := filepath.Join(dir, "out.txt")
	writeFile(t, input, "hello", 0o644)
	var stdout bytes.Buffer
	outcome, err := gt.Invoke(context.Background(), tool.Invocation{
		Inputs:  []string{input},
		Params:  map[string]any{"suffix": "?"},
		Outputs: []string{output},
		Stdout:  &stdout,
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if outcome.Message != "wrote "+output {
		t.Fatalf("unexpected message %q", outcome.Message)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "HELLO?" {
		t.Fatalf("unexpected output %q", data)
	}
	if !strings.Contains(stdout.String(), "shouting") {
		t.Fatalf("expected plugin stdout to be forwarded, got %q", stdout.String())
	}
}

func TestLoadGoToolNameFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noop.go")
	writeFile(t, path, "package main\n\nfunc Invoke(inputs []string, params map[string]any, outputs []string) (string, error) {\n\treturn \"\", nil\n}\n", 0o644)
	gt, err := LoadGoTool(path, tool.CategoryAnalyzer)
	if err != nil {
		t.Fatalf("load go tool: %v", err)
	}
	if got := gt.Descriptor().QualifiedName(); got != "analyzer/noop" {
		t.Fatalf("unexpected name %q", got)
	}
	if !gt.Descriptor().Params.Open() {
		t.Fatalf("expected open schema without Describe")
	}
}

func TestLoadGoToolMissingInvoke(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.go")
	writeFile(t, path, "package main\n", 0o644)
	if _, err := LoadGoTool(path, tool.CategoryTool); err == nil {
		t.Fatalf("expected error for missing Invoke function")
	}
}

func TestGoToolInvokeTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stall.go")
	writeFile(t, path, "package main\n\nimport \"time\"\n\nfunc Invoke(inputs []string, params map[string]any, outputs []string) (string, error) {\n\ttime.Sleep(3 * time.Second)\n\treturn \"done\", nil\n}\n", 0o644)
	gt, err := LoadGoTool(path, tool.CategoryTool)
	if err != nil {
		t.Fatalf("load go tool: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = gt.Invoke(ctx, tool.Invocation{})
	elapsed := time.Since(start)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("invoke returned after %v, expected the deadline to win", elapsed)
	}
}
