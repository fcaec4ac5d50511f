// Package builtin provides the in-process tools that ship with tm:
// extract, filter, analyze and stats.
package builtin

import (
	"fmt"
	"io"

	"github.com/kingrea/thunder-muscle/internal/gloda"
	"github.com/kingrea/thunder-muscle/internal/tool"
)

// Source marks descriptors of in-process tools.
const Source = "builtin"

// Options carries project settings the built-ins fall back on.
type Options struct {
	// Profile is the default mail profile directory for extract.
	Profile string
	Filters gloda.Filters
	// OutputFormat is used when an output path has no recognizable extension.
	OutputFormat string
}

// Tools returns every built-in tool.
func Tools(opts Options) []tool.Tool {
	return []tool.Tool{
		extractTool(opts),
		filterTool(opts),
		analyzeTool(opts),
		statsTool(opts),
	}
}

func singleInput(name string, inv tool.Invocation) (string, error) {
	if len(inv.Inputs) == 0 {
		return "", fmt.Errorf("%s: an input dataset is required", name)
	}
	if len(inv.Inputs) > 1 {
		return "", fmt.Errorf("%s: expected one input dataset, got %d", name, len(inv.Inputs))
	}
	return inv.Inputs[0], nil
}

func firstOutput(inv tool.Invocation) string {
	if len(inv.Outputs) == 0 {
		return ""
	}
	return inv.Outputs[0]
}

func stdout(inv tool.Invocation) io.Writer {
	if inv.Stdout == nil {
		return io.Discard
	}
	return inv.Stdout
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func boolParam(params map[string]any, key string) bool {
	v, _ := params[key].(bool)
	return v
}

func intParam(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func outputFormat(opts Options, params map[string]any, path string) string {
	if f := stringParam(params, "format"); f != "" {
		return f
	}
	if ext := extOf(path); ext != "" {
		return ""
	}
	return opts.OutputFormat
}
