package tool

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Category groups tools by the directory they were discovered in.
type Category string

const (
	CategoryAnalyzer Category = "analyzer"
	CategoryPlotter  Category = "plotter"
	CategoryTool     Category = "tool"
)

// Categories lists every category in lookup precedence order.
var Categories = []Category{CategoryAnalyzer, CategoryPlotter, CategoryTool}

// ParseCategory accepts the singular, plural and directory spellings.
func ParseCategory(value string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "analyzer", "analyzers":
		return CategoryAnalyzer, nil
	case "plotter", "plotters":
		return CategoryPlotter, nil
	case "tool", "tools", "filter", "filters":
		return CategoryTool, nil
	default:
		return "", fmt.Errorf("tool: unknown category %q", value)
	}
}

// Descriptor describes a discovered tool. It is immutable after discovery.
type Descriptor struct {
	Name        string
	Category    Category
	Description string
	// Source is the file the tool was discovered from, or "builtin".
	Source string
	// Command is the argv template for command tools; empty for in-process tools.
	Command []string
	Params  Schema
}

// QualifiedName returns category/name.
func (d Descriptor) QualifiedName() string {
	return string(d.Category) + "/" + d.Name
}

// Validate ensures the descriptor can be registered.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("tool: name is required")
	}
	if strings.ContainsAny(d.Name, "/ \t") {
		return fmt.Errorf("tool: name %q must not contain spaces or slashes", d.Name)
	}
	switch d.Category {
	case CategoryAnalyzer, CategoryPlotter, CategoryTool:
	default:
		return fmt.Errorf("tool %s: unknown category %q", d.Name, d.Category)
	}
	return d.Params.validate(d.Name)
}

// Invocation carries everything a tool needs for one step.
type Invocation struct {
	StepID  string
	Inputs  []string
	Params  map[string]any
	Outputs []string
	// Dir is the working directory for command tools.
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Outcome is what a tool reports back after a successful run.
type Outcome struct {
	// Outputs lists produced artifact paths. Empty means the declared outputs.
	Outputs []string
	Message string
}

// Tool is implemented by every invocable unit in the registry.
type Tool interface {
	Descriptor() Descriptor
	Invoke(ctx context.Context, inv Invocation) (Outcome, error)
}

// Func adapts an in-process function into a Tool.
type Func struct {
	Desc Descriptor
	Fn   func(ctx context.Context, inv Invocation) (Outcome, error)
}

// Descriptor implements Tool.
func (f Func) Descriptor() Descriptor { return f.Desc }

// Invoke implements Tool.
func (f Func) Invoke(ctx context.Context, inv Invocation) (Outcome, error) {
	if f.Fn == nil {
		return Outcome{}, fmt.Errorf("tool %s: no function bound", f.Desc.Name)
	}
	return f.Fn(ctx, inv)
}
