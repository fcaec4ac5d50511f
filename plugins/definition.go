package plugins

import (
	"fmt"
	"strings"

	"github.com/kingrea/thunder-muscle/internal/tool"
)

// ToolManifest describes a tool declared in YAML next to (or instead of) a
// script in one of the plugin directories.
//
// A manifest with a command is a tool on its own. A manifest without one
// annotates the sibling script that shares its basename (or Script, when
// set) with a name, description and parameter schema.
type ToolManifest struct {
	Name        string                    `json:"name,omitempty" yaml:"name,omitempty"`
	Description string                    `json:"description,omitempty" yaml:"description,omitempty"`
	Command     []string                  `json:"command,omitempty" yaml:"command,omitempty"`
	Script      string                    `json:"script,omitempty" yaml:"script,omitempty"`
	Params      map[string]tool.ParamSpec `json:"params,omitempty" yaml:"params,omitempty"`
}

// Normalized returns a trimmed copy of the manifest.
func (m ToolManifest) Normalized() ToolManifest {
	clone := ToolManifest{
		Name:        strings.TrimSpace(m.Name),
		Description: strings.TrimSpace(m.Description),
		Script:      strings.TrimSpace(m.Script),
	}
	for _, arg := range m.Command {
		clone.Command = append(clone.Command, strings.TrimSpace(arg))
	}
	if m.Params != nil {
		clone.Params = make(map[string]tool.ParamSpec, len(m.Params))
		for key, spec := range m.Params {
			trimmed := strings.TrimSpace(key)
			if trimmed == "" {
				continue
			}
			spec.Type = tool.ParamType(strings.ToLower(strings.TrimSpace(string(spec.Type))))
			clone.Params[trimmed] = spec
		}
	}
	return clone
}

// Validate ensures the manifest is usable.
func (m ToolManifest) Validate() error {
	normalized := m.Normalized()
	if strings.ContainsAny(normalized.Name, "/ \t") {
		return fmt.Errorf("plugin: name %q must not contain spaces or slashes", normalized.Name)
	}
	if len(normalized.Command) > 0 && normalized.Command[0] == "" {
		return fmt.Errorf("plugin %s: command[0] is empty", normalized.Name)
	}
	if len(normalized.Command) > 0 && normalized.Script != "" {
		return fmt.Errorf("plugin %s: command and script are mutually exclusive", normalized.Name)
	}
	desc := tool.Descriptor{Name: "manifest", Category: tool.CategoryTool, Params: normalized.Schema()}
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("plugin %s: %w", normalized.Name, err)
	}
	return nil
}

// Schema converts the declared params into a tool schema. No params block
// means an open schema.
func (m ToolManifest) Schema() tool.Schema {
	if m.Params == nil {
		return nil
	}
	schema := make(tool.Schema, len(m.Params))
	for key, spec := range m.Params {
		schema[key] = spec
	}
	return schema
}
