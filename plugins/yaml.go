package plugins

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFile pairs a parsed manifest with its on-disk source.
type ManifestFile struct {
	Manifest ToolManifest
	Path     string
}

// ParseManifestYAML decodes and validates a single tool manifest payload.
func ParseManifestYAML(data []byte) (ToolManifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return ToolManifest{}, fmt.Errorf("plugin: manifest payload is empty")
	}
	var m ToolManifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return ToolManifest{}, fmt.Errorf("plugin: decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return ToolManifest{}, err
	}
	return m.Normalized(), nil
}

// LoadManifestFile reads a YAML manifest from disk.
func LoadManifestFile(path string) (ManifestFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ManifestFile{}, fmt.Errorf("plugin: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return ManifestFile{}, fmt.Errorf("plugin: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ManifestFile{}, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	m, err := ParseManifestYAML(data)
	if err != nil {
		return ManifestFile{}, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return ManifestFile{Manifest: m, Path: filepath.Clean(path)}, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

// baseName strips the final extension from a file name.
func baseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
