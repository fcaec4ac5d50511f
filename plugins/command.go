package plugins

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/thunder-muscle/internal/tool"
)

// stderrTailBytes bounds the stderr excerpt attached to a failed command.
const stderrTailBytes = 2048

// commandWaitDelay bounds how long Invoke waits for output pipes to drain
// after the process group has been killed.
const commandWaitDelay = 2 * time.Second

// CommandError reports a command tool that exited unsuccessfully.
type CommandError struct {
	Tool     string
	Argv     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		msg += ": " + lastLine(tail)
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// CommandTool runs an external process built from an argv template.
type CommandTool struct {
	desc tool.Descriptor
}

// NewCommandTool wraps desc, whose Command must be non-empty.
func NewCommandTool(desc tool.Descriptor) (*CommandTool, error) {
	if len(desc.Command) == 0 {
		return nil, fmt.Errorf("plugin %s: command is empty", desc.Name)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &CommandTool{desc: desc}, nil
}

// Descriptor implements tool.Tool.
func (c *CommandTool) Descriptor() tool.Descriptor { return c.desc }

// Invoke implements tool.Tool.
func (c *CommandTool) Invoke(ctx context.Context, inv tool.Invocation) (tool.Outcome, error) {
	argv := BuildArgs(c.desc.Command, c.desc.Params, inv)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), "TM_STEP_ID="+inv.StepID, "TM_TOOL="+c.desc.Name)
	cmd.WaitDelay = commandWaitDelay
	killProcessGroup(cmd)
	tail := &tailBuffer{limit: stderrTailBytes}
	cmd.Stdout = writerOrDiscard(inv.Stdout)
	cmd.Stderr = io.MultiWriter(writerOrDiscard(inv.Stderr), tail)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return tool.Outcome{}, fmt.Errorf("%s: %w", c.desc.Name, ctxErr)
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return tool.Outcome{}, &CommandError{Tool: c.desc.Name, Argv: argv, ExitCode: code, Stderr: tail.String(), Err: err}
	}
	return tool.Outcome{}, nil
}

// BuildArgs expands an argv template for one invocation.
//
// Tokens may contain {input}, {output} and {param:NAME}; a token equal to
// {inputs}, {outputs} or {params} expands to several arguments. Inputs not
// placed by the template are appended positionally, then parameters not
// referenced by the template as sorted --kebab-case flags, then outputs as
// --output flags unless the schema declares an output parameter.
func BuildArgs(template []string, schema tool.Schema, inv tool.Invocation) []string {
	referenced := make(map[string]bool)
	var usesInputs, usesOutputs, usesParams bool
	for _, token := range template {
		if strings.Contains(token, "{input}") || token == "{inputs}" {
			usesInputs = true
		}
		if strings.Contains(token, "{output}") || token == "{outputs}" {
			usesOutputs = true
		}
		if token == "{params}" {
			usesParams = true
		}
		for _, name := range paramRefs(token) {
			referenced[name] = true
		}
	}
	remaining := make(map[string]any, len(inv.Params))
	for key, value := range inv.Params {
		if !referenced[key] {
			remaining[key] = value
		}
	}

	argv := make([]string, 0, len(template)+len(inv.Inputs)+2*len(remaining)+2*len(inv.Outputs))
	for _, token := range template {
		switch token {
		case "{inputs}":
			argv = append(argv, inv.Inputs...)
			continue
		case "{outputs}":
			argv = append(argv, inv.Outputs...)
			continue
		case "{params}":
			argv = append(argv, ParamFlags(remaining)...)
			continue
		}
		argv = append(argv, expandToken(token, inv))
	}
	if !usesInputs {
		argv = append(argv, inv.Inputs...)
	}
	if !usesParams {
		argv = append(argv, ParamFlags(remaining)...)
	}
	if _, declared := schema["output"]; !usesOutputs && !declared {
		if _, given := inv.Params["output"]; !given {
			for _, out := range inv.Outputs {
				argv = append(argv, "--output", out)
			}
		}
	}
	return argv
}

// ParamFlags renders params as sorted command-line flags. Snake-case keys
// become kebab-case, true becomes a bare flag, false and nil are omitted and
// lists repeat the flag.
func ParamFlags(params map[string]any) []string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var args []string
	for _, key := range keys {
		flag := "--" + strings.ReplaceAll(key, "_", "-")
		switch v := params[key].(type) {
		case nil:
		case bool:
			if v {
				args = append(args, flag)
			}
		case []any:
			for _, item := range v {
				args = append(args, flag, formatValue(item))
			}
		case []string:
			for _, item := range v {
				args = append(args, flag, item)
			}
		default:
			args = append(args, flag, formatValue(v))
		}
	}
	return args
}

func expandToken(token string, inv tool.Invocation) string {
	out := token
	if strings.Contains(out, "{input}") {
		out = strings.ReplaceAll(out, "{input}", first(inv.Inputs))
	}
	if strings.Contains(out, "{output}") {
		out = strings.ReplaceAll(out, "{output}", first(inv.Outputs))
	}
	for _, name := range paramRefs(out) {
		out = strings.ReplaceAll(out, "{param:"+name+"}", formatValue(inv.Params[name]))
	}
	return out
}

func paramRefs(token string) []string {
	var names []string
	rest := token
	for {
		start := strings.Index(rest, "{param:")
		if start < 0 {
			return names
		}
		rest = rest[start+len("{param:"):]
		end := strings.Index(rest, "}")
		if end < 0 {
			return names
		}
		names = append(names, rest[:end])
		rest = rest[end+1:]
	}
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = formatValue(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// scriptCommand picks an interpreter for a script by extension.
func scriptCommand(path string) []string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return []string{"python3", path}
	case ".sh":
		return []string{"sh", path}
	default:
		return []string{path}
	}
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

func lastLine(text string) string {
	lines := strings.Split(text, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
