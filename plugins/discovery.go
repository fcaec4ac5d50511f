package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kingrea/thunder-muscle/internal/tool"
)

// Dirs names the directory scanned for each category. Empty or missing
// directories contribute no tools.
type Dirs struct {
	Analyzers string
	Plotters  string
	Tools     string
}

func (d Dirs) forCategory(c tool.Category) string {
	switch c {
	case tool.CategoryAnalyzer:
		return d.Analyzers
	case tool.CategoryPlotter:
		return d.Plotters
	default:
		return d.Tools
	}
}

// Options tunes Discover.
type Options struct {
	// Builtins are registered ahead of discovered tools.
	Builtins []tool.Tool
	// Require lists categories that must end up non-empty.
	Require []tool.Category
	Logger  *slog.Logger
}

// Discover scans the category directories concurrently and builds the
// registry. Name collisions within a category, including with built-ins,
// fail discovery.
func Discover(ctx context.Context, dirs Dirs, opts Options) (*tool.Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	found := make([][]tool.Tool, len(tool.Categories))
	g, gctx := errgroup.WithContext(ctx)
	for idx, category := range tool.Categories {
		idx, category := idx, category
		dir := dirs.forCategory(category)
		g.Go(func() error {
			tools, err := ScanDir(gctx, dir, category)
			if err != nil {
				return err
			}
			found[idx] = tools
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := append([]tool.Tool(nil), opts.Builtins...)
	for idx, category := range tool.Categories {
		logger.Debug("scanned plugin directory", "category", category, "dir", dirs.forCategory(category), "tools", len(found[idx]))
		all = append(all, found[idx]...)
	}
	reg, err := tool.NewRegistry(all...)
	if err != nil {
		return nil, err
	}
	if err := reg.Require(opts.Require...); err != nil {
		return nil, err
	}
	logger.Info("tool registry ready", "tools", reg.Len())
	return reg, nil
}

// ScanDir discovers the tools in a single directory. Subdirectories, hidden
// files and files that are neither manifests, scripts nor Go sources are
// ignored.
func ScanDir(ctx context.Context, dir string, category tool.Category) ([]tool.Tool, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("plugin: read %s: %w", trimmed, err)
	}

	var manifests []ManifestFile
	scripts := make(map[string]string)
	var goFiles []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		path := filepath.Join(trimmed, name)
		switch {
		case isYAMLFile(name):
			file, err := LoadManifestFile(path)
			if err != nil {
				return nil, err
			}
			manifests = append(manifests, file)
		case strings.EqualFold(filepath.Ext(name), ".go"):
			if strings.HasSuffix(name, "_test.go") {
				continue
			}
			goFiles = append(goFiles, path)
		case isScript(entry):
			scripts[name] = path
		}
	}

	var tools []tool.Tool
	claimed := make(map[string]bool)
	for _, file := range manifests {
		t, script, err := manifestTool(file, category, scripts)
		if err != nil {
			return nil, err
		}
		if script != "" {
			claimed[script] = true
		}
		tools = append(tools, t)
	}
	scriptNames := make([]string, 0, len(scripts))
	for name := range scripts {
		scriptNames = append(scriptNames, name)
	}
	sort.Strings(scriptNames)
	for _, name := range scriptNames {
		if claimed[name] {
			continue
		}
		path := scripts[name]
		t, err := NewCommandTool(tool.Descriptor{
			Name:     baseName(name),
			Category: category,
			Source:   path,
			Command:  scriptCommand(path),
		})
		if err != nil {
			return nil, fmt.Errorf("plugin: %s: %w", path, err)
		}
		tools = append(tools, t)
	}
	for _, path := range goFiles {
		t, err := LoadGoTool(path, category)
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// manifestTool turns a manifest into a command tool. It returns the name of
// the sibling script the manifest describes, if any.
func manifestTool(file ManifestFile, category tool.Category, scripts map[string]string) (tool.Tool, string, error) {
	m := file.Manifest
	dir := filepath.Dir(file.Path)
	name := m.Name
	if name == "" {
		name = baseName(filepath.Base(file.Path))
	}
	desc := tool.Descriptor{
		Name:        name,
		Category:    category,
		Description: m.Description,
		Source:      file.Path,
		Params:      m.Schema(),
	}
	var claimed string
	if len(m.Command) > 0 {
		desc.Command = resolveCommand(m.Command, dir)
	} else {
		script := m.Script
		if script == "" {
			script = siblingScript(baseName(filepath.Base(file.Path)), scripts)
		}
		if script == "" {
			return nil, "", fmt.Errorf("plugin: %s declares no command and has no sibling script", file.Path)
		}
		path := filepath.Join(dir, script)
		if _, err := os.Stat(path); err != nil {
			return nil, "", fmt.Errorf("plugin: %s: script %s: %w", file.Path, script, err)
		}
		desc.Command = scriptCommand(path)
		claimed = filepath.Base(script)
	}
	t, err := NewCommandTool(desc)
	if err != nil {
		return nil, "", fmt.Errorf("plugin: %s: %w", file.Path, err)
	}
	return t, claimed, nil
}

func siblingScript(base string, scripts map[string]string) string {
	var matches []string
	for name := range scripts {
		if baseName(name) == base {
			matches = append(matches, name)
		}
	}
	if len(matches) != 1 {
		return ""
	}
	return matches[0]
}

// resolveCommand anchors ./relative argv entries to the manifest directory.
func resolveCommand(command []string, dir string) []string {
	out := make([]string, len(command))
	for i, arg := range command {
		if strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../") {
			out[i] = filepath.Join(dir, arg)
			continue
		}
		out[i] = arg
	}
	return out
}

func isScript(entry os.DirEntry) bool {
	switch strings.ToLower(filepath.Ext(entry.Name())) {
	case ".py", ".sh":
		return true
	case ".md", ".txt", ".json", ".csv", ".yaml", ".yml":
		return false
	}
	info, err := entry.Info()
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
